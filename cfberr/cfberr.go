// Package cfberr defines the domain x kind tagged error type used
// throughout the olecf engine.
//
// Every fallible operation in the header, alloc, directory, cfb and
// propset packages returns (or wraps) an *Error rather than a bare
// fmt.Errorf, so callers can switch on Domain/Kind with errors.As
// instead of string-matching messages.
package cfberr

import (
	"errors"
	"fmt"
)

// Domain groups errors by the subsystem that raised them.
type Domain string

const (
	Arguments   Domain = "arguments"
	Conversion  Domain = "conversion"
	Compression Domain = "compression"
	IO          Domain = "io"
	Input       Domain = "input"
	Memory      Domain = "memory"
	Output      Domain = "output"
	Runtime     Domain = "runtime"
)

// Kind narrows a Domain to a specific failure mode.
type Kind string

const (
	// Input kinds.
	InvalidData       Kind = "invalid_data"
	SignatureMismatch Kind = "signature_mismatch"
	ChecksumMismatch  Kind = "checksum_mismatch"
	ValueMismatch     Kind = "value_mismatch"

	// Runtime kinds.
	ValueMissing        Kind = "value_missing"
	ValueAlreadySet     Kind = "value_already_set"
	InitializeFailed    Kind = "initialize_failed"
	ResizeFailed        Kind = "resize_failed"
	FinalizeFailed      Kind = "finalize_failed"
	GetFailed           Kind = "get_failed"
	SetFailed           Kind = "set_failed"
	AppendFailed        Kind = "append_failed"
	CopyFailed          Kind = "copy_failed"
	RemoveFailed        Kind = "remove_failed"
	PrintFailed         Kind = "print_failed"
	ValueOutOfBounds    Kind = "value_out_of_bounds"
	ValueExceedsMaximum Kind = "value_exceeds_maximum"
	UnsupportedValue    Kind = "unsupported_value"
	AbortRequested      Kind = "abort_requested"
)

// Error is the tagged error type returned by this module.
type Error struct {
	Domain  Domain
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("olecf: %s/%s: %s: %v", e.Domain, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("olecf: %s/%s: %s", e.Domain, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an *Error with no wrapped cause.
func New(domain Domain, kind Kind, message string) *Error {
	return &Error{Domain: domain, Kind: kind, Message: message}
}

// Newf creates an *Error with a formatted message.
func Newf(domain Domain, kind Kind, format string, args ...any) *Error {
	return &Error{Domain: domain, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error that wraps an existing error as its cause.
func Wrap(domain Domain, kind Kind, message string, err error) *Error {
	return &Error{Domain: domain, Kind: kind, Message: message, Err: err}
}

// Wrapf creates an *Error with a formatted message that wraps err.
func Wrapf(domain Domain, kind Kind, err error, format string, args ...any) *Error {
	return &Error{Domain: domain, Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether the first *Error in err's chain (as found by
// errors.As) has the given domain and kind. Tagged causes wrapped
// beneath that first *Error are not consulted.
func Is(err error, domain Domain, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Domain == domain && e.Kind == kind
}
