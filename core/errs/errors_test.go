package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{&PermissionError{Actor: "d1", Role: "MedicalEntity", Action: "READ", AssetID: "p1_PHI"}, ErrPermission},
		{NotFound("participant", "p9"), ErrNotFound},
		{&ParseError{Field: "pulse", Raw: "fast"}, ErrParse},
		{InvalidState("trigger_emergency", "p1", "already active"), ErrInvalidState},
		{&IntegrityError{BlockIndex: 3, Reason: "hash mismatch"}, ErrIntegrity},
		{&ValidationError{Subject: "phi", Problems: []string{"name: required"}}, ErrValidation},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("op: %w", tc.err)
		assert.True(t, errors.Is(wrapped, tc.sentinel), "%v should match %v", tc.err, tc.sentinel)
		assert.False(t, errors.Is(wrapped, ErrIntegrity) && tc.sentinel != ErrIntegrity)
	}
}

func TestErrorMessagesCarryContext(t *testing.T) {
	perm := &PermissionError{Actor: "d1", Role: "MedicalEntity", Action: "UPDATE", AssetID: "p1_PHI", Reason: "not authorized"}
	assert.Contains(t, perm.Error(), "d1")
	assert.Contains(t, perm.Error(), "UPDATE")
	assert.Contains(t, perm.Error(), "p1_PHI")

	integrity := &IntegrityError{BlockIndex: 7, Reason: "previous hash mismatch"}
	assert.Contains(t, integrity.Error(), "block 7")

	var pe *PermissionError
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", perm), &pe))
	assert.Equal(t, "p1_PHI", pe.AssetID)
}

func TestParseErrorUnwraps(t *testing.T) {
	inner := errors.New("strconv failure")
	err := &ParseError{Field: "pulse", Raw: "x bpm", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.ErrorIs(t, err, ErrParse)
}
