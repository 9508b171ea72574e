package services

import "fmt"

// ValidationError is a business-rule rejection (tier bounds, cooldown, active
// lock). The message carries the computed boundary values so the caller can show
// them directly. Maps to HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError maps to HTTP 404.
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// SignatureError rejects a gateway callback whose secure hash does not match.
// No ledger mutation and no history row may follow it.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "invalid gateway signature: " + e.Reason
}

// ConflictError marks a gateway transaction that was already applied. Callers
// treat it as success-no-op to keep reconciliation idempotent.
type ConflictError struct {
	TransactionID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction %s already processed", e.TransactionID)
}

// ComputationError rejects malformed callback payloads (unparseable order info
// or amount) before any mutation happens.
type ComputationError struct {
	Message string
}

func (e *ComputationError) Error() string { return e.Message }

func NewComputationError(format string, args ...interface{}) *ComputationError {
	return &ComputationError{Message: fmt.Sprintf(format, args...)}
}
