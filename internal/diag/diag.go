package diag

import (
	"encoding/json"
	"fmt"
	"io"
)

// Severity classifies a diagnostic record.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
)

// Reporter collects and renders diagnostics. The core never sees source
// text, so locations are entity names (component, group, cell) rather than
// file positions.
type Reporter struct {
	w        io.Writer
	format   string
	errors   int
	warnings int
}

// NewReporter builds a reporter writing to w. format selects "text" or
// "json" rendering; anything else falls back to text.
func NewReporter(w io.Writer, format string) *Reporter {
	if format != "json" {
		format = "text"
	}
	return &Reporter{w: w, format: format}
}

// Error records an error attached to the named entity.
func (r *Reporter) Error(loc, msg string) {
	r.errors++
	r.emit(SeverityError, loc, msg)
}

// Errorf records an error with no location.
func (r *Reporter) Errorf(format string, args ...interface{}) {
	r.errors++
	r.emit(SeverityError, "", fmt.Sprintf(format, args...))
}

// Warning records a warning attached to the named entity.
func (r *Reporter) Warning(loc, msg string) {
	r.warnings++
	r.emit(SeverityWarning, loc, msg)
}

// Warningf records a warning with no location.
func (r *Reporter) Warningf(format string, args ...interface{}) {
	r.warnings++
	r.emit(SeverityWarning, "", fmt.Sprintf(format, args...))
}

// Notef records an informational message, e.g. resource estimates logged by
// the cost model.
func (r *Reporter) Notef(format string, args ...interface{}) {
	r.emit(SeverityNote, "", fmt.Sprintf(format, args...))
}

// HasErrors reports whether any error-level diagnostic was recorded.
func (r *Reporter) HasErrors() bool {
	return r.errors > 0
}

// Count returns the number of error-level diagnostics.
func (r *Reporter) Count() int {
	return r.errors
}

type record struct {
	Severity string `json:"severity"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
}

func (r *Reporter) emit(sev Severity, loc, msg string) {
	if r.w == nil {
		return
	}
	if r.format == "json" {
		rec := record{Severity: severityName(sev), Location: loc, Message: msg}
		data, err := json.Marshal(rec)
		if err != nil {
			return
		}
		fmt.Fprintln(r.w, string(data))
		return
	}
	if loc != "" {
		fmt.Fprintf(r.w, "%s: %s: %s\n", severityName(sev), loc, msg)
		return
	}
	fmt.Fprintf(r.w, "%s: %s\n", severityName(sev), msg)
}

func severityName(sev Severity) string {
	switch sev {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
