package resolver

import (
	_ "embed"
	"strings"
)

//go:embed stdlib/python.txt
var pythonStdlibData string

var pythonStdlib = map[string]bool{}

func init() {
	for _, line := range strings.Split(pythonStdlibData, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			pythonStdlib[line] = true
		}
	}
}

// IsStdlib reports whether a dotted import targets the Python standard
// library. Only the top-level segment matters: `os.path` is stdlib
// because `os` is.
func IsStdlib(module string) bool {
	top, _, _ := strings.Cut(module, ".")
	return pythonStdlib[top]
}
