// Package annotate turns pytest JUnit XML reports into GitHub Actions
// log annotations, so CI failures show up inline on the pull request.
package annotate

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	coreerrors "testdiff/internal/core/errors"
)

type Options struct {
	// IncludeSkipped emits warnings for skipped tests too.
	IncludeSkipped bool
}

type testCase struct {
	ClassName string   `xml:"classname,attr"`
	Name      string   `xml:"name,attr"`
	File      string   `xml:"file,attr"`
	Line      string   `xml:"line,attr"`
	Failure   *outcome `xml:"failure"`
	Error     *outcome `xml:"error"`
	Skipped   *outcome `xml:"skipped"`
}

type outcome struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// Typical pytest traceback fragment: File "/path/to/test.py", line 12
var fileLineRe = regexp.MustCompile(`File "([^"]+)", line (\d+)`)

// WriteReport reads the JUnit XML file at reportPath and writes one
// annotation line per failed or errored testcase (plus skips when
// requested). File paths are shown relative to baseDir when possible.
// The count of emitted annotations is returned.
func WriteReport(w io.Writer, reportPath, baseDir string, opts Options) (int, error) {
	f, err := os.Open(reportPath)
	if err != nil {
		return 0, coreerrors.Wrap(err, coreerrors.CodeNotFound, "cannot read report")
	}
	defer f.Close()
	return write(w, f, baseDir, opts)
}

func write(w io.Writer, r io.Reader, baseDir string, opts Options) (int, error) {
	dec := xml.NewDecoder(r)
	reported := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return reported, coreerrors.Wrap(err, coreerrors.CodeParseFailure, "malformed JUnit XML")
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "testcase" {
			continue
		}

		var tc testCase
		if err := dec.DecodeElement(&tc, &start); err != nil {
			return reported, coreerrors.Wrap(err, coreerrors.CodeParseFailure, "malformed testcase element")
		}

		switch {
		case tc.Failure != nil || tc.Error != nil:
			out := tc.Failure
			if out == nil {
				out = tc.Error
			}
			file, line := tc.location(out.Body)
			msg := tc.displayName() + ": " + out.pickMessage("Test failed")
			fmt.Fprintln(w, buildAnnotation("error", file, line, msg, baseDir))
			reported++
		case opts.IncludeSkipped && tc.Skipped != nil:
			file, line := tc.location(tc.Skipped.Body)
			msg := tc.displayName() + ": " + tc.Skipped.pickMessage("Test skipped")
			fmt.Fprintln(w, buildAnnotation("warning", file, line, msg, baseDir))
			reported++
		}
	}

	return reported, nil
}

func (tc *testCase) displayName() string {
	switch {
	case tc.ClassName != "" && tc.Name != "":
		return tc.ClassName + "." + tc.Name
	case tc.Name != "":
		return tc.Name
	default:
		return "(unknown test)"
	}
}

// location prefers explicit file/line attributes and falls back to
// scraping the traceback in the outcome body.
func (tc *testCase) location(body string) (string, int) {
	line, _ := strconv.Atoi(tc.Line)
	if tc.File != "" || line > 0 {
		return tc.File, line
	}

	if m := fileLineRe.FindStringSubmatch(body); m != nil {
		line, _ = strconv.Atoi(m[2])
		return m[1], line
	}
	return "", 0
}

// pickMessage prefers the message attribute, then the first non-blank
// body line, then the provided default.
func (o *outcome) pickMessage(fallback string) string {
	if msg := strings.TrimSpace(o.Message); msg != "" {
		return msg
	}
	for _, line := range strings.Split(o.Body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return fallback
}

func buildAnnotation(level, file string, line int, message, baseDir string) string {
	var parts []string
	if file != "" {
		display := file
		if rel, err := filepath.Rel(baseDir, file); err == nil && !strings.HasPrefix(rel, "..") {
			display = filepath.ToSlash(rel)
		}
		parts = append(parts, "file="+display)
	}
	if line > 0 {
		parts = append(parts, "line="+strconv.Itoa(line))
	}

	prefix := "::" + level
	if len(parts) > 0 {
		prefix += " " + strings.Join(parts, ",")
	}
	return prefix + "::" + escapeForGitHub(message)
}

// escapeForGitHub encodes characters the Actions log protocol treats
// as message terminators.
func escapeForGitHub(message string) string {
	message = strings.ReplaceAll(message, "%", "%25")
	message = strings.ReplaceAll(message, "\r", "%0D")
	message = strings.ReplaceAll(message, "\n", "%0A")
	return message
}
