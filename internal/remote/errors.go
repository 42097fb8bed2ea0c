package remote

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed remote call
type ErrorKind int

const (
	// KindTransport covers connection failures, timeouts and non-2xx statuses
	KindTransport ErrorKind = iota + 1
	// KindDecode covers responses that do not have the expected shape
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

var (
	// ErrTransport matches any transport FetchError with errors.Is
	ErrTransport = errors.New("remote transport error")
	// ErrDecode matches any decode FetchError with errors.Is
	ErrDecode = errors.New("remote decode error")
)

// FetchError describes a failed call to the simulation server
type FetchError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) and errors.Is(err, ErrDecode) match
// by kind
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

func transportErr(op string, err error) error {
	return &FetchError{Kind: KindTransport, Op: op, Err: err}
}

func decodeErr(op string, err error) error {
	return &FetchError{Kind: KindDecode, Op: op, Err: err}
}
