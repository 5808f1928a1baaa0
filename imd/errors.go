package imd

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed, per the error taxonomy a caller
// needs to branch on. Use errors.Is against the sentinel Err* values below,
// or the Kind field of a returned *Error, to discriminate.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindIO
	KindInvalidFormat
	KindSectorNotFound
	KindTrackNotFound
	KindSectorUnavailable
	KindBufferTooSmall
	KindSectorSizeMismatch
	KindWriteProtected
	KindGeometryViolation
)

// Sentinel errors a caller can compare against with errors.Is. Each wraps
// into the matching Kind when surfaced through (*Error).
var (
	ErrInvalidArgument    = stderrors.New("imd: invalid argument")
	ErrIO                 = stderrors.New("imd: I/O error")
	ErrInvalidFormat      = stderrors.New("imd: invalid format")
	ErrSectorNotFound     = stderrors.New("imd: sector not found")
	ErrTrackNotFound      = stderrors.New("imd: track not found")
	ErrSectorUnavailable  = stderrors.New("imd: sector data unavailable")
	ErrBufferTooSmall     = stderrors.New("imd: buffer too small")
	ErrSectorSizeMismatch = stderrors.New("imd: sector size mismatch")
	ErrWriteProtected     = stderrors.New("imd: image is write-protected")
	ErrGeometryViolation  = stderrors.New("imd: geometry violation")
)

var sentinelByKind = map[Kind]error{
	KindInvalidArgument:    ErrInvalidArgument,
	KindIO:                 ErrIO,
	KindInvalidFormat:      ErrInvalidFormat,
	KindSectorNotFound:     ErrSectorNotFound,
	KindTrackNotFound:      ErrTrackNotFound,
	KindSectorUnavailable:  ErrSectorUnavailable,
	KindBufferTooSmall:     ErrBufferTooSmall,
	KindSectorSizeMismatch: ErrSectorSizeMismatch,
	KindWriteProtected:     ErrWriteProtected,
	KindGeometryViolation:  ErrGeometryViolation,
}

// Error is the concrete error type returned by this package's fallible
// operations. It carries a Kind so callers can branch without string
// matching, and wraps the underlying cause (if any) with pkg/errors so the
// stack recorded at the wrap stays reachable through Unwrap. Error itself
// prints only the op and the cause's message, also under %+v.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("imd: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("imd: %s", e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrWriteProtected) etc. succeed against an *Error
// whose Kind matches, even when Err itself doesn't chain to the sentinel.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinelByKind[e.Kind]
	return ok && sentinel == target
}

// newErr builds an *Error, wrapping cause with errors.Wrap so the original
// call site is preserved in the error chain.
func newErr(kind Kind, op string, cause error) *Error {
	if cause != nil {
		cause = errors.Wrap(cause, op)
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// errorf is a small fmt.Errorf wrapper used to build ad-hoc causes passed
// into newErr, kept local so callers never need to import fmt just for this.
func errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
