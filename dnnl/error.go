package dnnl

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// Status is the raw status code of a native call.
type Status = native.Status

// ErrorKind classifies every failure this package reports.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSuccess
	KindInvalidArguments
	KindOutOfMemory
	KindUnsupported
	KindInvalidDataType
	KindInvalidShape
	KindInvalidLayout
	KindRuntimeError
	KindNonNullViolation
	KindInvalidQueryOutput
	KindLastImplReached
	KindNotRequired
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindSuccess:            "success",
	KindInvalidArguments:   "invalid_arguments",
	KindOutOfMemory:        "out_of_memory",
	KindUnsupported:        "unsupported",
	KindInvalidDataType:    "invalid_data_type",
	KindInvalidShape:       "invalid_shape",
	KindInvalidLayout:      "invalid_layout",
	KindRuntimeError:       "runtime_error",
	KindNonNullViolation:   "non_null_violation",
	KindInvalidQueryOutput: "invalid_query_output",
	KindLastImplReached:    "last_impl_reached",
	KindNotRequired:        "not_required",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is returned by every fallible call. Op names the native entry point
// or the check that failed; Status is the native status, or Success when the
// failure was detected before reaching the native library.
type Error struct {
	Kind   ErrorKind
	Op     string
	Status Status
	Detail string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("dnnl: %s: %s", e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Status != native.Success {
		msg += fmt.Sprintf(" (status %s)", e.Status)
	}
	return msg
}

// Is matches the sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnknown            = &Error{Kind: KindUnknown}
	ErrSuccess            = &Error{Kind: KindSuccess}
	ErrInvalidArguments   = &Error{Kind: KindInvalidArguments}
	ErrOutOfMemory        = &Error{Kind: KindOutOfMemory}
	ErrUnsupported        = &Error{Kind: KindUnsupported}
	ErrInvalidDataType    = &Error{Kind: KindInvalidDataType}
	ErrInvalidShape       = &Error{Kind: KindInvalidShape}
	ErrInvalidLayout      = &Error{Kind: KindInvalidLayout}
	ErrRuntimeError       = &Error{Kind: KindRuntimeError}
	ErrNonNullViolation   = &Error{Kind: KindNonNullViolation}
	ErrInvalidQueryOutput = &Error{Kind: KindInvalidQueryOutput}
	ErrLastImplReached    = &Error{Kind: KindLastImplReached}
	ErrNotRequired        = &Error{Kind: KindNotRequired}
)

// KindOf maps a native status to its error kind. Codes outside the known
// set map to KindUnknown, never to KindSuccess.
func KindOf(st Status) ErrorKind {
	switch st {
	case native.Success:
		return KindSuccess
	case native.OutOfMemory:
		return KindOutOfMemory
	case native.InvalidArguments:
		return KindInvalidArguments
	case native.Unimplemented:
		return KindUnsupported
	case native.LastImplReached:
		return KindLastImplReached
	case native.RuntimeError:
		return KindRuntimeError
	case native.NotRequired:
		return KindNotRequired
	case native.InvalidShape:
		return KindInvalidShape
	case native.InvalidDataType:
		return KindInvalidDataType
	}
	return KindUnknown
}

// check translates the status of one native call.
func check(op string, st Status) error {
	if st == native.Success {
		return nil
	}
	err := &Error{Kind: KindOf(st), Op: op, Status: st}
	nativeErrors.WithLabelValues(err.Kind.String()).Inc()
	log.Debug().Str("op", op).Stringer("status", st).Msg("native call failed")
	return err
}

// fail reports a failure detected by this package before any native call.
func fail(kind ErrorKind, op, detail string) error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}
