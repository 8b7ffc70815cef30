package clashpatch

import "errors"

// Fatal condition sentinels. Anything wrapping these aborts the run before
// a single byte is written; everything else the engine can express is a
// warning on the Report.
var (
	// ErrMissingSection means a required top-level section header was not
	// found, so the document is too non-standard to patch safely.
	ErrMissingSection = errors.New("missing section header")

	// ErrDialect means a requested feature needs a capability the
	// document's dialect does not have.
	ErrDialect = errors.New("unsupported dialect")

	// ErrInvalidDocument means the reconciled text no longer decodes as
	// YAML; the engine refuses to hand back a broken document.
	ErrInvalidDocument = errors.New("reconciled document is not valid YAML")
)
