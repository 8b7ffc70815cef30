package clashpatch

import (
	"fmt"
	"strings"
)

// Status is the terminal outcome of a run.
type Status int

const (
	// StatusUnchanged means the document was already converged.
	StatusUnchanged Status = iota
	// StatusPlanned means changes were computed but not written (preview).
	StatusPlanned
	// StatusWritten means the document was rewritten in place.
	StatusWritten
)

// Report accumulates the ordered change descriptions and warnings of a
// single reconcile run. Warnings never abort the run; only structural
// failures surface as errors from Reconcile.
type Report struct {
	Changes  []string
	Warnings []string
}

// Notef records an applied (or planned) change.
func (r *Report) Notef(format string, args ...any) {
	r.Changes = append(r.Changes, fmt.Sprintf(format, args...))
}

// Warnf records a non-fatal warning.
func (r *Report) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Summary renders the human-readable status block for the given outcome.
func (r *Report) Summary(status Status, features Features) string {
	var b strings.Builder
	switch status {
	case StatusUnchanged:
		fmt.Fprintf(&b, "No changes needed. (features=%s)", features)
	case StatusPlanned:
		fmt.Fprintf(&b, "Dry-run: changes would be applied. (features=%s)", features)
	case StatusWritten:
		fmt.Fprintf(&b, "Patched successfully. (features=%s)", features)
	}
	if len(r.Changes) > 0 && status != StatusUnchanged {
		label := "Applied changes"
		if status == StatusPlanned {
			label = "Planned changes"
		}
		fmt.Fprintf(&b, "\n%s:\n- %s", label, strings.Join(r.Changes, "\n- "))
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings:\n- %s", strings.Join(r.Warnings, "\n- "))
	}
	return b.String()
}

// Result is the outcome of Reconcile.
type Result struct {
	// Doc is the reconciled document. Byte-identical to the input when
	// Changed is false.
	Doc     []byte
	Changed bool
	Report  *Report
}
