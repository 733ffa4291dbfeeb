// Package adberr defines the structured error kinds shared by the adb and
// fastboot protocol engines.
package adberr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a protocol-layer failure.
type Kind string

const (
	DeviceNotFound          Kind = "device_not_found"
	DeviceAuthError         Kind = "device_auth_error"
	ReadFailed              Kind = "read_failed"
	WriteFailed             Kind = "write_failed"
	TcpTimeout              Kind = "tcp_timeout"
	InvalidCommand          Kind = "invalid_command"
	InvalidResponse         Kind = "invalid_response"
	InvalidChecksum         Kind = "invalid_checksum"
	InterleavedData         Kind = "interleaved_data"
	AdbCommandFailure       Kind = "adb_command_failure"
	PushFailed              Kind = "push_failed"
	FastbootTransferError   Kind = "fastboot_transfer_error"
	FastbootRemoteFailure   Kind = "fastboot_remote_failure"
	FastbootStateMismatch   Kind = "fastboot_state_mismatch"
	FastbootInvalidResponse Kind = "fastboot_invalid_response"
)

// Error is a structured error carrying a Kind, a human-readable message and
// an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("adb: [%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("adb: [%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, adberr.New(adberr.ReadFailed, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that carries cause as its Unwrap() target.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Of reports the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
