package clspv

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SourceName is the file name that compilers report for the program
// passed to CompileFromSourceString.
const SourceName = "<source>"

// Severity of a compiler diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	}
	return "unknown"
}

// Diagnostic is one clang-style message from a compiler log. Line and
// Column are 1-based; both are 0 when the message has no location.
type Diagnostic struct {
	File     string
	Line     int
	Column   int
	Severity Severity
	Message  string
	Notes    []Diagnostic
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

var (
	locatedDiag = regexp.MustCompile(`^(.*?):(\d+):(\d+): (fatal error|error|warning|note): (.*)$`)
	bareDiag    = regexp.MustCompile(`^(?:[^:\s]+: )?(fatal error|error|warning|note): (.*)$`)
)

func parseSeverity(s string) Severity {
	switch s {
	case "warning":
		return SeverityWarning
	case "note":
		return SeverityNote
	}
	return SeverityError
}

// ParseDiagnostics extracts diagnostics from a compiler log. Notes are
// attached to the preceding error or warning. Lines that are not
// diagnostics (source excerpts, carets, summaries) are skipped.
func ParseDiagnostics(logText string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(logText, "\n") {
		line = strings.TrimRight(line, "\r")

		var d Diagnostic
		if m := locatedDiag.FindStringSubmatch(line); m != nil {
			d.File = m[1]
			d.Line, _ = strconv.Atoi(m[2])
			d.Column, _ = strconv.Atoi(m[3])
			d.Severity = parseSeverity(m[4])
			d.Message = m[5]
		} else if m := bareDiag.FindStringSubmatch(line); m != nil {
			d.Severity = parseSeverity(m[1])
			d.Message = m[2]
		} else {
			continue
		}

		if d.Severity == SeverityNote && len(diags) > 0 {
			last := &diags[len(diags)-1]
			last.Notes = append(last.Notes, d)
			continue
		}
		diags = append(diags, d)
	}
	return diags
}

// CountErrors returns the number of error diagnostics in diags.
func CountErrors(diags []Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}
