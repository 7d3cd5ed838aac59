// Package merr classifies the error kinds a caller of this driver can
// observe, per the taxonomy in spec.md §4.10.
package merr

import (
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// MessageError is an error that carries a human-readable summary
// separate from any wrapped cause.
type MessageError interface {
	Message() string
}

// WrappedError is a MessageError that may wrap another error.
type WrappedError interface {
	MessageError
	Inner() error
}

// rolledUp walks the Inner() chain of a WrappedError, building a
// colon-joined message, the same shape as core/error.go's
// rolledUpErrorMessage.
func rolledUp(err error) string {
	if w, ok := err.(WrappedError); ok {
		if inner := w.Inner(); inner != nil {
			return fmt.Sprintf("%s: %s", w.Message(), rolledUp(inner))
		}
		return w.Message()
	}
	return err.Error()
}

// ConfigError indicates a malformed connection string or an illegal
// builder argument.
type ConfigError struct {
	message string
	inner   error
}

func NewConfigError(message string) *ConfigError       { return &ConfigError{message: message} }
func WrapConfigError(inner error, message string) error { return &ConfigError{message, inner} }
func (e *ConfigError) Message() string                  { return e.message }
func (e *ConfigError) Inner() error                     { return e.inner }
func (e *ConfigError) Error() string                    { return rolledUp(e) }

// AuthenticationError indicates a failed authentication handshake.
type AuthenticationError struct {
	Mechanism string
	message   string
	inner     error
}

func NewAuthenticationError(mechanism, message string, inner error) *AuthenticationError {
	return &AuthenticationError{Mechanism: mechanism, message: message, inner: inner}
}
func (e *AuthenticationError) Message() string { return e.message }
func (e *AuthenticationError) Inner() error    { return e.inner }
func (e *AuthenticationError) Error() string   { return rolledUp(e) }

// SocketErrorKind distinguishes the transport failure modes named in
// spec.md §4.10.
type SocketErrorKind int

const (
	// SocketError is a generic transport failure.
	SocketError SocketErrorKind = iota
	// SocketReadTimeout indicates a read exceeded socketTimeoutMillis.
	SocketReadTimeout
	// SocketWriteTimeout indicates a write exceeded socketTimeoutMillis.
	SocketWriteTimeout
	// SocketOpenTimeout indicates connect exceeded connectTimeoutMillis.
	SocketOpenTimeout
)

func (k SocketErrorKind) String() string {
	switch k {
	case SocketReadTimeout:
		return "SocketReadTimeout"
	case SocketWriteTimeout:
		return "SocketWriteTimeout"
	case SocketOpenTimeout:
		return "SocketOpenTimeout"
	default:
		return "SocketError"
	}
}

// TransportError carries the originating address for any transport
// failure, per spec.md §6's "Error visibility" requirement.
type TransportError struct {
	Kind    SocketErrorKind
	Address string
	message string
	inner   error
}

func NewTransportError(kind SocketErrorKind, address string, inner error) *TransportError {
	return &TransportError{
		Kind:    kind,
		Address: address,
		message: fmt.Sprintf("%s on %s", kind, address),
		inner:   inner,
	}
}
func (e *TransportError) Message() string { return e.message }
func (e *TransportError) Inner() error    { return e.inner }
func (e *TransportError) Error() string   { return rolledUp(e) }

// ProtocolError indicates a malformed frame, or a reply whose
// responseTo did not match the outstanding requestId.
type ProtocolError struct {
	message string
	inner   error
}

func NewProtocolError(message string, inner error) *ProtocolError {
	return &ProtocolError{message: message, inner: inner}
}
func (e *ProtocolError) Message() string { return e.message }
func (e *ProtocolError) Inner() error    { return e.inner }
func (e *ProtocolError) Error() string   { return rolledUp(e) }

// ResourceError indicates that a pool or cluster could not hand out a
// resource: its wait queue is full, the wait timed out, or it is closed.
type ResourceError struct {
	message string
}

func (e *ResourceError) Message() string { return e.message }
func (e *ResourceError) Error() string   { return e.message }

// ErrWaitQueueFull is returned when a checkout arrives and the pool's
// wait queue is already at maxWaitQueueSize.
var ErrWaitQueueFull = &ResourceError{"wait queue is full"}

// ErrWaitQueueTimeout is returned when a checkout waited past its
// deadline without an idle connection becoming available.
var ErrWaitQueueTimeout = &ResourceError{"timed out waiting for a connection"}

// ErrPoolClosed is returned from an attempt to use a closed pool.
var ErrPoolClosed = &ResourceError{"pool is closed"}

// ErrClusterClosed is returned from an attempt to select a server on a
// closed Cluster.
var ErrClusterClosed = &ResourceError{"cluster is closed"}

// NoServerAvailableError is returned when server selection timed out.
type NoServerAvailableError struct {
	Selector string
	message  string
}

func NewNoServerAvailableError(selector string) *NoServerAvailableError {
	return &NoServerAvailableError{
		Selector: selector,
		message:  fmt.Sprintf("no server available matching selector %q within maxWaitTime", selector),
	}
}
func (e *NoServerAvailableError) Message() string { return e.message }
func (e *NoServerAvailableError) Error() string    { return e.message }

// CommandFailure is raised when a server reply reports ok:0 or a
// non-empty err/errmsg. It carries the raw response document per
// spec.md §6's "command errors carry the server response document".
type CommandFailure struct {
	Response bson.M
	Code     int
	message  string
}

// NewCommandFailure builds a CommandFailure from a server response
// document, extracting $err/errmsg and code the way
// core/error.go's QueryFailureError does.
func NewCommandFailure(response bson.M) *CommandFailure {
	msg, _ := response["errmsg"].(string)
	if msg == "" {
		msg, _ = response["$err"].(string)
	}
	if msg == "" {
		msg = "command failed"
	}

	code := 0
	switch c := response["code"].(type) {
	case int:
		code = c
	case int32:
		code = int(c)
	case float64:
		code = int(c)
	}

	return &CommandFailure{Response: response, Code: code, message: msg}
}

func (e *CommandFailure) Message() string { return e.message }
func (e *CommandFailure) Error() string   { return fmt.Sprintf("%s (code %d)", e.message, e.Code) }

// IsNamespaceNotFound reports whether this failure is exactly the
// "ns not found" response that Drop() is permitted to swallow, per
// spec.md §4.10/§7.
func (e *CommandFailure) IsNamespaceNotFound() bool {
	return e.message == "ns not found"
}

// duplicateKeyCodes are the getLastError/write-command codes that
// indicate a unique-index violation, per spec.md §4.10.
var duplicateKeyCodes = map[int]bool{11000: true, 11001: true, 12582: true}

// IsDuplicateKey reports whether this CommandFailure's code is one of
// the duplicate-key codes.
func (e *CommandFailure) IsDuplicateKey() bool {
	return duplicateKeyCodes[e.Code]
}

// CursorNotFoundError is raised when an OP_REPLY sets the
// CursorNotFound flag.
type CursorNotFoundError struct {
	CursorID int64
}

func NewCursorNotFoundError(cursorID int64) *CursorNotFoundError {
	return &CursorNotFoundError{CursorID: cursorID}
}
func (e *CursorNotFoundError) Error() string {
	return fmt.Sprintf("cursor %d not found", e.CursorID)
}

// WriteConcernError reports a wnote/wtimeout failure embedded in a
// getLastError response.
type WriteConcernError struct {
	Code    int
	Message string
}

func (e *WriteConcernError) Error() string {
	return fmt.Sprintf("write concern error (code %d): %s", e.Code, e.Message)
}

// InternalError indicates an invariant of this module was breached.
type InternalError struct {
	message string
}

func NewInternalError(format string, args ...interface{}) *InternalError {
	return &InternalError{message: fmt.Sprintf(format, args...)}
}
func (e *InternalError) Message() string { return e.message }
func (e *InternalError) Error() string   { return "internal error: " + e.message }
