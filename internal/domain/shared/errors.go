package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error for retry and propagation decisions.
// Handlers and the API client branch on kinds, never on concrete types.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindRateLimited       ErrorKind = "rate_limited"
	KindOpenCircuit       ErrorKind = "open_circuit"
	KindTransient         ErrorKind = "transient"
	KindBadRequest        ErrorKind = "bad_request"
	KindCancelled         ErrorKind = "cancelled"
	KindTimeout           ErrorKind = "timeout"
)

// DomainError is the base error type carrying a kind and an optional cause
type DomainError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewDomainError creates an error with the given kind and message
func NewDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// WrapError wraps a cause with a kind and message
func WrapError(kind ErrorKind, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first DomainError in the chain,
// or an empty kind if none is found
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var ae *ShipAlreadyAssignedError
	if errors.As(err, &ae) {
		return KindConflict
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindBadRequest
	}
	return ""
}

// Kind predicates

func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool          { return KindOf(err) == KindConflict }
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }
func IsRateLimited(err error) bool       { return KindOf(err) == KindRateLimited }
func IsOpenCircuit(err error) bool       { return KindOf(err) == KindOpenCircuit }
func IsTransient(err error) bool         { return KindOf(err) == KindTransient }
func IsBadRequest(err error) bool        { return KindOf(err) == KindBadRequest }
func IsCancelled(err error) bool         { return KindOf(err) == KindCancelled }
func IsTimeout(err error) bool           { return KindOf(err) == KindTimeout }

// ValidationError reports a malformed field on a request or entity
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ShipAlreadyAssignedError reports a failed acquire on a locked ship
type ShipAlreadyAssignedError struct {
	ShipSymbol  string
	ContainerID string
}

func (e *ShipAlreadyAssignedError) Error() string {
	return fmt.Sprintf("ship %s is already assigned to container %s", e.ShipSymbol, e.ContainerID)
}

func NewShipAlreadyAssignedError(shipSymbol, containerID string) *ShipAlreadyAssignedError {
	return &ShipAlreadyAssignedError{ShipSymbol: shipSymbol, ContainerID: containerID}
}

// NoOpError reports an operation that was already applied (e.g. double release).
// Callers that only care about the end state may ignore it.
type NoOpError struct {
	Message string
}

func (e *NoOpError) Error() string {
	return e.Message
}

func NewNoOpError(message string) *NoOpError {
	return &NoOpError{Message: message}
}

// IsNoOp returns true if the error reports an already-applied operation
func IsNoOp(err error) bool {
	var ne *NoOpError
	return errors.As(err, &ne)
}
