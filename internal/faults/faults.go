package faults

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for caller branching.
type Kind string

const (
	// Validation covers malformed paths/URLs and missing required fields.
	Validation Kind = "validation"
	// Conflict covers destinations occupied by unrecognized content and
	// variant groups with divergent content. Never auto-resolved.
	Conflict Kind = "conflict"
	// NotAvailable covers tools or hosts that are not installed/reachable.
	NotAvailable Kind = "not_available"
	// Connection covers network, auth and timeout failures.
	Connection Kind = "connection"
	// IO covers filesystem failures (permissions, disk, path length).
	IO Kind = "io"
	// PartialFailure is the aggregate outcome of a batch where some units
	// succeeded and some failed.
	PartialFailure Kind = "partial_failure"
)

// Fault is a classified error. Path is set when the error is about a
// specific filesystem or remote location.
type Fault struct {
	Kind Kind
	Msg  string
	Path string
	Err  error
}

func (f *Fault) Error() string {
	switch {
	case f.Err != nil && f.Path != "":
		return fmt.Sprintf("%s: %s (%s): %v", f.Kind, f.Msg, f.Path, f.Err)
	case f.Err != nil:
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	case f.Path != "":
		return fmt.Sprintf("%s: %s (%s)", f.Kind, f.Msg, f.Path)
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
	}
}

func (f *Fault) Unwrap() error { return f.Err }

// New creates a fault with a formatted message.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a fault wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// At attaches a location to the fault and returns it.
func (f *Fault) At(path string) *Fault {
	f.Path = path
	return f
}

// KindOf returns the kind of the first Fault in err's chain, or "" when
// the chain carries none.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
