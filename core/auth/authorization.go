package auth

import (
	"strings"
	"time"

	"healthledger/core/audit"
)

// Authorizer turns an Authorization header into a verified participant ID
// and audit-logs the outcome.
type Authorizer struct {
	Verifier    *Verifier
	AuditLogger audit.AuditLogger
}

// AuthorizationResult is the outcome of Authorize.
type AuthorizationResult struct {
	Authorized    bool
	ParticipantID string
	Reason        string
}

// Authorize checks a "Bearer <token>" header value.
func (a *Authorizer) Authorize(header string) AuthorizationResult {
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) || strings.TrimSpace(header[len(scheme):]) == "" {
		return a.fail("", "missing bearer token")
	}
	token := strings.TrimSpace(header[len(scheme):])
	claims, err := a.Verifier.Verify(token)
	if err != nil {
		return a.fail("", err.Error())
	}
	a.AuditLogger.LogEvent(audit.AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: audit.EventTokenVerification,
		EntityID:  claims.Subject,
		Result:    "success",
		Metadata:  map[string]string{"role": claims.Role},
	})
	return AuthorizationResult{Authorized: true, ParticipantID: claims.Subject}
}

func (a *Authorizer) fail(subject, reason string) AuthorizationResult {
	a.AuditLogger.LogEvent(audit.AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: audit.EventTokenVerification,
		EntityID:  subject,
		Result:    "failure",
		Reason:    reason,
	})
	return AuthorizationResult{Reason: reason}
}
