// Package errs classifies pipeline failures so callers can tell a missing
// import target from a broken image or a bad configuration.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindResolution: a reference could not be mapped to a file.
	KindResolution
	// KindCodec: decoding or encoding an image failed.
	KindCodec
	// KindIO: a read, write or delete failed.
	KindIO
	// KindConfig: policy values are out of range or inconsistent.
	KindConfig
	// KindConflict: two originals would produce the same variant.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "resolution"
	case KindCodec:
		return "codec"
	case KindIO:
		return "io"
	case KindConfig:
		return "config"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error carries a Kind along with the operation and path that failed.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind when the target leaves Op and Path empty,
// so errors.Is(err, errs.ErrCodec) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrResolution = &Error{Kind: KindResolution}
	ErrCodec      = &Error{Kind: KindCodec}
	ErrIO         = &Error{Kind: KindIO}
	ErrConfig     = &Error{Kind: KindConfig}
	ErrConflict   = &Error{Kind: KindConflict}
)

func Resolution(spec string, err error) error {
	return &Error{Kind: KindResolution, Op: "resolve", Path: spec, Err: err}
}

func Codec(op string, err error) error {
	return &Error{Kind: KindCodec, Op: op, Err: err}
}

func IO(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

func Conflict(path string, err error) error {
	return &Error{Kind: KindConflict, Op: "claim variant", Path: path, Err: err}
}

// Config builds a configuration error from a format string.
func Config(format string, args ...any) error {
	return &Error{Kind: KindConfig, Op: "config", Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
