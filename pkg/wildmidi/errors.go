package wildmidi

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is.
var (
	ErrConfigNotFound     = errors.New("config not found")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrUseAfterShutdown   = errors.New("use after shutdown")
	ErrClosed             = errors.New("use after close")
	ErrInvalidFormat      = errors.New("invalid midi format")
	ErrIO                 = errors.New("i/o error")
	ErrOutOfRange         = errors.New("out of range")
	ErrUnsupportedOption  = errors.New("unsupported option")
	ErrInvalidValue       = errors.New("invalid value")
	ErrEngine             = errors.New("engine error")
)

// Error describes a failed operation on the library or a decoder.
type Error struct {
	Op     string // operation, e.g. "open", "render"
	Kind   error  // one of the Err* sentinels
	Detail string // engine message or extra context, may be empty
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := "wildmidi: " + e.Op + ": " + e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind error, detail string) error {
	return &Error{Op: op, Kind: kind, Detail: detail}
}

func wrapError(op string, kind error, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func errorf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
