// Package errors defines the error taxonomy shared by every layer of the UDP
// transport.
//
// Each failure is reported as a *NetworkError or *ValidationError carrying a
// Kind sentinel. Callers match on the sentinel with errors.Is and can still
// reach the underlying OS error (syscall.Errno, *net.DNSError, ...) through
// the same chain.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind sentinels. A kind that refines another (for example ErrBufferConfig
// refines ErrSetOption) matches both with errors.Is.
var (
	ErrResolution            = stderrors.New("address resolution failed")
	ErrSocketCreation        = stderrors.New("socket creation failed")
	ErrNoUsableAddressFamily = fmt.Errorf("%w: no usable address family", ErrSocketCreation)
	ErrBind                  = stderrors.New("bind failed")
	ErrSetOption             = stderrors.New("set socket option failed")
	ErrBufferConfig          = fmt.Errorf("%w: socket buffer", ErrSetOption)
	ErrJoin                  = stderrors.New("multicast join failed")
	ErrInvalidSourceFilter   = fmt.Errorf("%w: invalid source filter", ErrJoin)
	ErrConnect               = stderrors.New("connect failed")
	ErrIO                    = stderrors.New("i/o error")
	ErrUnsupported           = stderrors.New("unsupported operation")
	ErrTimeoutOrInterrupt    = stderrors.New("wait interrupted or timed out")
	ErrInvalidOption         = stderrors.New("invalid option")

	// ErrWouldBlock is returned by non-blocking sessions when the socket is
	// not ready. It is a readiness signal, not a failure.
	ErrWouldBlock = stderrors.New("operation would block")
)

// NetworkError reports a failed socket-layer operation.
//
// Operation names the step that failed ("bind", "join group", ...), Kind is
// one of the sentinels above, Err is the underlying cause and Details adds
// human context such as the address involved.
type NetworkError struct {
	Operation string
	Kind      error
	Err       error
	Details   string
}

func (e *NetworkError) Error() string {
	msg := e.Operation
	if e.Kind != nil {
		msg = fmt.Sprintf("%s: %v", e.Operation, e.Kind)
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *NetworkError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ValidationError reports a malformed URL or option value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidOption) match.
func (e *ValidationError) Unwrap() error { return ErrInvalidOption }

// New is shorthand for building a *NetworkError.
func New(kind error, op string, err error, details string) *NetworkError {
	return &NetworkError{Operation: op, Kind: kind, Err: err, Details: details}
}
