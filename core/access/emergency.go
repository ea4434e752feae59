package access

import (
	"sort"
	"time"

	"healthledger/core/errs"
)

// Grant is an emergency override letting a responder read one patient's
// records. A zero ExpiresAt means the grant lasts until resolved.
type Grant struct {
	PatientID   string    `json:"patientId"`
	ResponderID string    `json:"responderId"`
	GrantedBy   string    `json:"grantedBy"`
	GrantedAt   time.Time `json:"grantedAt"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// Active reports whether the grant is in force at t.
func (g Grant) Active(t time.Time) bool {
	return g.ExpiresAt.IsZero() || t.Before(g.ExpiresAt)
}

// TriggerEmergency installs one grant per responder for patientID. If any
// responder already holds an active grant for the patient nothing is
// installed. Duplicate responder IDs collapse to one grant.
func (e *Engine) TriggerEmergency(patientID, grantedBy string, responderIDs []string) ([]Grant, error) {
	responderIDs = dedupe(responderIDs)
	if len(responderIDs) == 0 {
		return nil, errs.InvalidState("trigger emergency", patientID, "no responders given")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	byResponder := e.grants[patientID]
	for _, r := range responderIDs {
		if g, ok := byResponder[r]; ok && g.Active(now) {
			return nil, errs.InvalidState("trigger emergency", patientID, "responder "+r+" already holds an active grant")
		}
	}

	if byResponder == nil {
		byResponder = make(map[string]Grant)
		e.grants[patientID] = byResponder
	}
	installed := make([]Grant, 0, len(responderIDs))
	for _, r := range responderIDs {
		g := Grant{PatientID: patientID, ResponderID: r, GrantedBy: grantedBy, GrantedAt: now}
		if e.maxDuration > 0 {
			g.ExpiresAt = now.Add(e.maxDuration)
		}
		if _, replaced := byResponder[r]; !replaced {
			activeEmergencyGrants.Inc()
		}
		byResponder[r] = g
		installed = append(installed, g)
	}
	return installed, nil
}

// ResolveEmergency removes the active grants held by responderIDs for
// patientID. It fails with NotFound, removing nothing, when any responder
// lacks an active grant.
func (e *Engine) ResolveEmergency(patientID string, responderIDs []string) ([]Grant, error) {
	responderIDs = dedupe(responderIDs)
	if len(responderIDs) == 0 {
		return nil, errs.InvalidState("resolve emergency", patientID, "no responders given")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	byResponder := e.grants[patientID]
	for _, r := range responderIDs {
		if g, ok := byResponder[r]; !ok || !g.Active(now) {
			return nil, errs.NotFound("emergency grant", patientID+"/"+r)
		}
	}

	removed := make([]Grant, 0, len(responderIDs))
	for _, r := range responderIDs {
		removed = append(removed, byResponder[r])
		delete(byResponder, r)
		activeEmergencyGrants.Dec()
	}
	if len(byResponder) == 0 {
		delete(e.grants, patientID)
	}
	return removed, nil
}

// HasEmergencyGrant reports whether entityID holds an active grant for
// patientID.
func (e *Engine) HasEmergencyGrant(entityID, patientID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.grants[patientID][entityID]
	return ok && g.Active(e.now())
}

// ActiveEmergencies lists the active grants for patientID ordered by
// responder.
func (e *Engine) ActiveEmergencies(patientID string) []Grant {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	var out []Grant
	for _, g := range e.grants[patientID] {
		if g.Active(now) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponderID < out[j].ResponderID })
	return out
}

// ClearEmergencies drops every grant for patientID, active or not, and
// returns how many were removed. Used when the patient's PHI is deleted.
func (e *Engine) ClearEmergencies(patientID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.grants[patientID])
	delete(e.grants, patientID)
	activeEmergencyGrants.Sub(float64(n))
	return n
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
