package diag

import (
	"fmt"
	"io"
)

type Kind int

const (
	UnresolvedImport Kind = iota
	ParseFailure
	DistanceTruncated
	MaxCapped
	NonPythonChange
	UnindexedChange
)

func (k Kind) String() string {
	switch k {
	case UnresolvedImport:
		return "unresolved-import"
	case ParseFailure:
		return "parse-failure"
	case DistanceTruncated:
		return "distance-truncated"
	case MaxCapped:
		return "max-capped"
	case NonPythonChange:
		return "non-python-change"
	case UnindexedChange:
		return "unindexed-change"
	default:
		return "unknown"
	}
}

// Diagnostic is one warning-level event from the scan or selection.
// File and Line are set when the event has a source location.
type Diagnostic struct {
	Kind    Kind
	Message string
	File    string
	Line    int
}

func (d Diagnostic) String() string {
	if d.File != "" && d.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
	}
	if d.File != "" {
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	}
	return d.Message
}

// Set accumulates diagnostics in insertion order. Entries are never
// deduplicated: multiplicity is informative.
type Set struct {
	entries []Diagnostic
}

func NewSet() *Set {
	return &Set{}
}

func (s *Set) Add(d Diagnostic) {
	s.entries = append(s.entries, d)
}

func (s *Set) Addf(kind Kind, format string, args ...any) {
	s.Add(Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	s.entries = append(s.entries, other.entries...)
}

func (s *Set) Entries() []Diagnostic {
	out := make([]Diagnostic, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Set) Len() int {
	return len(s.entries)
}

func (s *Set) Has(kind Kind) bool {
	for _, d := range s.entries {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// Reporter owns the side channel for diagnostics and the warn-as-error
// exit policy. The primary selection output never goes through it, so
// stdout stays machine-parseable.
type Reporter struct {
	Out         io.Writer
	Quiet       bool
	WarnAsError bool
}

// Report prints every diagnostic to the side channel. Quiet suppresses
// printing but the set still decides the exit code.
func (r *Reporter) Report(s *Set) {
	if r.Quiet {
		return
	}
	for _, d := range s.entries {
		fmt.Fprintf(r.Out, "Warning: %s\n", d)
	}
}

// Err returns a non-nil error when warn-as-error is set and any
// diagnostic was recorded. The selection result it accompanies is still
// valid; only the exit code changes.
func (r *Reporter) Err(s *Set) error {
	if !r.WarnAsError || s.Len() == 0 {
		return nil
	}
	return fmt.Errorf("warnings treated as errors (%d warnings), first: %s", s.Len(), s.entries[0])
}
