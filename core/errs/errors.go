// Package errs holds the error taxonomy shared by the ledger engine.
// Each concrete error carries enough context to diagnose a failure and
// matches one of the sentinels below through errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrPermission   = errors.New("permission denied")
	ErrNotFound     = errors.New("not found")
	ErrParse        = errors.New("parse error")
	ErrInvalidState = errors.New("invalid state")
	ErrIntegrity    = errors.New("ledger integrity violation")
	ErrValidation   = errors.New("validation failed")
)

// PermissionError is returned when the role matrix or the dynamic
// authorization check denies a request.
type PermissionError struct {
	Actor   string `json:"actor"`
	Role    string `json:"role,omitempty"`
	Action  string `json:"action"`
	AssetID string `json:"assetId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied: %s (%s) may not %s", e.Actor, e.Role, e.Action)
	if e.AssetID != "" {
		msg += " " + e.AssetID
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// NotFoundError names the kind and id of a missing participant, asset or grant.
type NotFoundError struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ParseError reports a malformed physiological field.
type ParseError struct {
	Field string `json:"field"`
	Raw   string `json:"raw"`
	Err   error  `json:"-"`
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s %q: %v", e.Field, e.Raw, e.Err)
	}
	return fmt.Sprintf("parse %s %q", e.Field, e.Raw)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidStateError aborts an operation that conflicts with current state.
type InvalidStateError struct {
	Op     string `json:"op"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (e *InvalidStateError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// IntegrityError identifies the first block whose hash, linkage or
// content does not verify.
type IntegrityError struct {
	BlockIndex uint64 `json:"blockIndex"`
	Reason     string `json:"reason"`
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation at block %d: %s", e.BlockIndex, e.Reason)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// ValidationError reports input that failed schema validation.
type ValidationError struct {
	Subject  string   `json:"subject"`
	Problems []string `json:"problems"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s failed validation: %v", e.Subject, e.Problems)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFound is a convenience constructor.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvalidState is a convenience constructor.
func InvalidState(op, id, reason string) error {
	return &InvalidStateError{Op: op, ID: id, Reason: reason}
}
