package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthledger/core/asset"
	"healthledger/core/errs"
	"healthledger/core/participant"
)

type fixture struct {
	admin, super, patient, other, doctor, nurse, responder participant.Participant
	phi                                                   *asset.PHI
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	must := func(p participant.Participant, err error) participant.Participant {
		require.NoError(t, err)
		return p
	}
	f := fixture{
		admin:     must(participant.NewAdmin("a1", "Admin", false)),
		super:     must(participant.NewAdmin("s1", "Root", true)),
		patient:   must(participant.NewPatient("p1", "Ada", participant.PatientIndoor)),
		other:     must(participant.NewPatient("p2", "Bob", participant.PatientOutdoor)),
		doctor:    must(participant.NewMedicalEntity("d1", "Dr. Grey", "Surgeon", "General")),
		nurse:     must(participant.NewMedicalEntity("d2", "Nurse Joy", "Nurse", "Ward 3")),
		responder: must(participant.NewEmergencyResponder("r1", "Sam", "Paramedic")),
	}
	f.phi = asset.NewPHI("p1", asset.Demographics{Name: "Ada"}, nil, nil, "d1")
	f.phi.Authorize("p1")
	f.phi.Authorize("d1")
	return f
}

func phiRead(actor participant.Participant, phi *asset.PHI) Request {
	return Request{Actor: actor, Kind: asset.KindPHI, Action: ActionRead, OwnerID: phi.Owner(), AssetID: phi.ID(), PHI: phi}
}

func TestCheckPermissionMatrix(t *testing.T) {
	tests := []struct {
		role   participant.Role
		kind   asset.Kind
		action Action
		want   bool
	}{
		{participant.RoleAdmin, asset.KindPHI, ActionDelete, true},
		{participant.RoleAdmin, asset.KindParticipant, ActionCreate, true},
		{participant.RoleAdmin, asset.KindParticipant, ActionGrant, false},
		{participant.RoleSuperAdmin, asset.KindPHI, ActionUpdate, true},
		{participant.RoleSuperAdmin, asset.KindParticipant, ActionGrant, true},
		{participant.RolePatient, asset.KindPHI, ActionCreate, true},
		{participant.RolePatient, asset.KindPHI, ActionUpdate, false},
		{participant.RolePatient, asset.KindPPPs, ActionRead, true},
		{participant.RolePatient, asset.KindParticipant, ActionRead, false},
		{participant.RoleMedicalEntity, asset.KindPHI, ActionRead, true},
		{participant.RoleMedicalEntity, asset.KindPHI, ActionUpdate, false},
		{participant.RoleMedicalEntity, asset.KindPPPs, ActionUpdate, true},
		{participant.RoleEmergencyResponder, asset.KindPHI, ActionRead, true},
		{participant.RoleEmergencyResponder, asset.KindPPPs, ActionCreate, false},
		{participant.Role("Visitor"), asset.KindPHI, ActionRead, false},
	}
	for _, tt := range tests {
		got := CheckPermission(tt.role, tt.kind, tt.action)
		assert.Equal(t, tt.want, got, "%s %s %s", tt.role, tt.action, tt.kind)
	}
}

func TestSuperAdminRowDoesNotLeakIntoAdmin(t *testing.T) {
	assert.True(t, CheckPermission(participant.RoleSuperAdmin, asset.KindParticipant, ActionGrant))
	assert.False(t, CheckPermission(participant.RoleAdmin, asset.KindParticipant, ActionGrant))
}

func TestDecideAuthorizedAndUnauthorizedReads(t *testing.T) {
	f := newFixture(t)
	e := NewEngine()

	assert.NoError(t, e.Decide(phiRead(f.doctor, f.phi)))
	assert.NoError(t, e.Decide(phiRead(f.patient, f.phi)))
	assert.NoError(t, e.Decide(phiRead(f.admin, f.phi)))

	err := e.Decide(phiRead(f.nurse, f.phi))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPermission)
	var perr *errs.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "d2", perr.Actor)
	assert.Equal(t, "p1_PHI", perr.AssetID)

	assert.ErrorIs(t, e.Decide(phiRead(f.other, f.phi)), errs.ErrPermission)
	assert.ErrorIs(t, e.Decide(phiRead(f.responder, f.phi)), errs.ErrPermission)
}

func TestDecideMatrixComesFirst(t *testing.T) {
	f := newFixture(t)
	e := NewEngine()
	req := phiRead(f.doctor, f.phi)
	req.Action = ActionUpdate
	assert.ErrorIs(t, e.Decide(req), errs.ErrPermission, "authorized entities still need the matrix")
}

func TestDecideMedicalEntityWithoutPHI(t *testing.T) {
	f := newFixture(t)
	e := NewEngine()
	err := e.Decide(Request{Actor: f.doctor, Kind: asset.KindPPPs, Action: ActionRead, OwnerID: "p9"})
	assert.ErrorIs(t, err, errs.ErrPermission)
}

func TestDecideAdministratorTargets(t *testing.T) {
	f := newFixture(t)
	e := NewEngine()

	update := func(actor, target participant.Participant) Request {
		return Request{Actor: actor, Kind: asset.KindParticipant, Action: ActionUpdate, Target: &target}
	}
	assert.NoError(t, e.Decide(update(f.admin, f.doctor)))
	assert.ErrorIs(t, e.Decide(update(f.admin, f.super)), errs.ErrPermission)
	assert.NoError(t, e.Decide(update(f.super, f.admin)))

	read := update(f.admin, f.super)
	read.Action = ActionRead
	assert.NoError(t, e.Decide(read))
}

func TestEmergencyGrantOverlay(t *testing.T) {
	f := newFixture(t)
	e := NewEngine()
	before := f.phi.AuthorizedEntities()

	grants, err := e.TriggerEmergency("p1", "d1", []string{"r1"})
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.True(t, e.IsAuthorized("r1", f.phi))
	assert.NoError(t, e.Decide(phiRead(f.responder, f.phi)))
	assert.Equal(t, before, f.phi.AuthorizedEntities(), "trigger must not touch the authorized set")

	_, err = e.ResolveEmergency("p1", []string{"r1"})
	require.NoError(t, err)
	assert.False(t, e.IsAuthorized("r1", f.phi))
	assert.Equal(t, before, f.phi.AuthorizedEntities())
	assert.Empty(t, e.ActiveEmergencies("p1"))
}

func TestDoubleTriggerHasNoPartialEffect(t *testing.T) {
	e := NewEngine()
	_, err := e.TriggerEmergency("p1", "d1", []string{"r1"})
	require.NoError(t, err)

	_, err = e.TriggerEmergency("p1", "d1", []string{"r2", "r1"})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	assert.False(t, e.HasEmergencyGrant("r2", "p1"))

	_, err = e.TriggerEmergency("p2", "d1", []string{"r1"})
	assert.NoError(t, err, "grants are per patient")
}

func TestResolveWithoutGrantHasNoPartialEffect(t *testing.T) {
	e := NewEngine()
	_, err := e.TriggerEmergency("p1", "d1", []string{"r1"})
	require.NoError(t, err)

	_, err = e.ResolveEmergency("p1", []string{"r1", "r2"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.True(t, e.HasEmergencyGrant("r1", "p1"))

	_, err = e.ResolveEmergency("p3", []string{"r1"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestExpiredGrants(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(WithMaxDuration(time.Hour), WithClock(func() time.Time { return now }))

	grants, err := e.TriggerEmergency("p1", "d1", []string{"r1"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), grants[0].ExpiresAt)
	assert.True(t, e.HasEmergencyGrant("r1", "p1"))

	now = now.Add(2 * time.Hour)
	assert.False(t, e.HasEmergencyGrant("r1", "p1"))
	assert.Empty(t, e.ActiveEmergencies("p1"))

	_, err = e.ResolveEmergency("p1", []string{"r1"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.TriggerEmergency("p1", "d1", []string{"r1"})
	assert.NoError(t, err, "an expired grant does not block a new trigger")
}

func TestClearEmergencies(t *testing.T) {
	e := NewEngine()
	_, err := e.TriggerEmergency("p1", "d1", []string{"r1", "r2", "r1"})
	require.NoError(t, err)
	assert.Len(t, e.ActiveEmergencies("p1"), 2)
	assert.Equal(t, 2, e.ClearEmergencies("p1"))
	assert.Empty(t, e.ActiveEmergencies("p1"))
}

func TestGrantAndRevokeAreIdempotent(t *testing.T) {
	f := newFixture(t)
	e := NewEngine()
	assert.True(t, e.GrantAccess(f.phi, "d2"))
	assert.False(t, e.GrantAccess(f.phi, "d2"))
	assert.True(t, e.IsAuthorized("d2", f.phi))
	assert.True(t, e.RevokeAccess(f.phi, "d2"))
	assert.False(t, e.RevokeAccess(f.phi, "d2"))
	assert.False(t, e.IsAuthorized("d2", f.phi))
	assert.False(t, e.IsAuthorized("d1", nil))
}

func TestDecideTransfer(t *testing.T) {
	f := newFixture(t)
	e := NewEngine()
	assert.NoError(t, e.DecideTransfer(f.doctor, f.phi))
	assert.ErrorIs(t, e.DecideTransfer(f.nurse, f.phi), errs.ErrPermission)
	assert.ErrorIs(t, e.DecideTransfer(f.patient, f.phi), errs.ErrPermission)

	_, err := e.TriggerEmergency("p1", "a1", []string{"r1"})
	require.NoError(t, err)
	assert.ErrorIs(t, e.DecideTransfer(f.responder, f.phi), errs.ErrPermission, "emergency access is not transferable")
}
