// Package access decides whether a participant may act on a record. It
// combines the static role matrix with each PHI asset's authorized-entities
// set and the emergency grants held by responders.
package access

import (
	"sync"
	"time"

	"healthledger/core/asset"
	"healthledger/core/errs"
	"healthledger/core/participant"
)

// Engine holds emergency grant state. The authorized-entities sets live on
// the PHI assets themselves.
type Engine struct {
	mu          sync.Mutex
	grants      map[string]map[string]Grant // patient -> responder -> grant
	maxDuration time.Duration
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDuration bounds every emergency grant. Zero keeps grants until
// they are resolved.
func WithMaxDuration(d time.Duration) Option {
	return func(e *Engine) { e.maxDuration = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine with no grants installed.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		grants: make(map[string]map[string]Grant),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// IsAuthorized is true when entityID is in phi's authorized set or holds
// an active emergency grant for phi's patient.
func (e *Engine) IsAuthorized(entityID string, phi *asset.PHI) bool {
	if phi == nil {
		return false
	}
	if phi.HasAuthorized(entityID) {
		return true
	}
	return e.HasEmergencyGrant(entityID, phi.Owner())
}

// GrantAccess adds entityID to phi's authorized set and reports whether
// it was added.
func (e *Engine) GrantAccess(phi *asset.PHI, entityID string) bool {
	return phi.Authorize(entityID)
}

// RevokeAccess removes entityID from phi's authorized set and reports
// whether it was present.
func (e *Engine) RevokeAccess(phi *asset.PHI, entityID string) bool {
	return phi.Deauthorize(entityID)
}

// Request describes one access attempt.
type Request struct {
	Actor  participant.Participant
	Kind   asset.Kind
	Action Action
	// OwnerID is the patient owning the target record. Empty for
	// participant records.
	OwnerID string
	// AssetID names the target for error reporting.
	AssetID string
	// PHI is the owner's PHI asset when one exists. Medical entities are
	// checked against its authorized set.
	PHI *asset.PHI
	// Target is the participant being acted on for Participant requests.
	Target *participant.Participant
}

// Decide grants a request when the role matrix allows it and the
// role-specific check passes: patients act only on their own records,
// medical entities must be authorized on the patient's PHI, responders
// need an active emergency grant, and only a SuperAdmin may modify
// another administrator.
func (e *Engine) Decide(req Request) error {
	err := e.decide(req)
	result := "allow"
	if err != nil {
		result = "deny"
	}
	decisionsTotal.WithLabelValues(string(req.Actor.Role), string(req.Kind), string(req.Action), result).Inc()
	return err
}

func (e *Engine) decide(req Request) error {
	role := req.Actor.Role
	if !CheckPermission(role, req.Kind, req.Action) {
		return deny(req, "role does not permit this action")
	}

	if req.Kind == asset.KindParticipant {
		if req.Target != nil && req.Target.Role.IsAdmin() && req.Action != ActionRead &&
			!CheckPermission(role, asset.KindParticipant, ActionGrant) {
			return deny(req, "only a SuperAdmin may modify administrators")
		}
		return nil
	}

	switch role {
	case participant.RoleAdmin, participant.RoleSuperAdmin:
		return nil
	case participant.RolePatient:
		if req.OwnerID != req.Actor.ID {
			return deny(req, "patients may only act on their own records")
		}
		return nil
	case participant.RoleMedicalEntity:
		if req.PHI == nil {
			return deny(req, "no PHI on record to authorize against")
		}
		if !e.IsAuthorized(req.Actor.ID, req.PHI) {
			return deny(req, "not in the authorized entities")
		}
		return nil
	case participant.RoleEmergencyResponder:
		if !e.HasEmergencyGrant(req.Actor.ID, req.OwnerID) {
			return deny(req, "no active emergency grant")
		}
		return nil
	}
	return deny(req, "unknown role")
}

// DecideTransfer allows a medical entity holding standing authorization on
// phi to hand it to another entity. Authorization obtained through an
// emergency grant cannot be transferred.
func (e *Engine) DecideTransfer(from participant.Participant, phi *asset.PHI) error {
	req := Request{Actor: from, Kind: asset.KindPHI, Action: ActionTransfer, OwnerID: phi.Owner(), AssetID: phi.ID(), PHI: phi}
	var err error
	switch {
	case from.Role != participant.RoleMedicalEntity:
		err = deny(req, "only medical entities transfer rights")
	case !phi.HasAuthorized(from.ID):
		err = deny(req, "source entity is not in the authorized entities")
	}
	result := "allow"
	if err != nil {
		result = "deny"
	}
	decisionsTotal.WithLabelValues(string(from.Role), string(asset.KindPHI), string(ActionTransfer), result).Inc()
	return err
}

func deny(req Request, reason string) error {
	id := req.AssetID
	if id == "" && req.Target != nil {
		id = req.Target.ID
	}
	return &errs.PermissionError{
		Actor:   req.Actor.ID,
		Role:    string(req.Actor.Role),
		Action:  string(req.Action) + " " + string(req.Kind),
		AssetID: id,
		Reason:  reason,
	}
}
