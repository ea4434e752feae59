package network

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"healthledger/core/access"
	"healthledger/core/asset"
	"healthledger/core/audit"
	"healthledger/core/crypto"
	"healthledger/core/errs"
	"healthledger/core/ledger"
	"healthledger/core/notify"
	"healthledger/core/participant"
)

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) SaveBlock(b ledger.Block) error {
	args := m.Called(b)
	return args.Error(0)
}

type env struct {
	net    *Network
	outbox *notify.Outbox
	audit  *audit.Recorder
}

// newEnv registers an admin (a1), a super admin (s1), two patients (p1,
// p2), two medical entities (d1, d2) and two responders (r1, r2), and
// uploads p1's PHI authorized by d1.
func newEnv(t *testing.T, opts ...Option) env {
	t.Helper()
	e := env{outbox: &notify.Outbox{}, audit: &audit.Recorder{}}
	opts = append([]Option{WithNotifier(e.outbox), WithAuditLogger(e.audit)}, opts...)
	n, err := New(opts...)
	require.NoError(t, err)
	e.net = n

	must := func(p participant.Participant, err error) participant.Participant {
		require.NoError(t, err)
		return p
	}
	require.NoError(t, n.AddParticipant(must(participant.NewAdmin("s1", "Root", true))))
	require.NoError(t, n.RegisterParticipant("s1", must(participant.NewAdmin("a1", "Admin", false))))
	for _, p := range []participant.Participant{
		must(participant.NewPatient("p1", "Ada", participant.PatientIndoor)),
		must(participant.NewPatient("p2", "Bob", participant.PatientOutdoor)),
		must(participant.NewMedicalEntity("d1", "Dr. Grey", "Surgeon", "General")),
		must(participant.NewMedicalEntity("d2", "Dr. Shepherd", "Neurologist", "Neuro")),
		must(participant.NewEmergencyResponder("r1", "Sam", "Paramedic")),
		must(participant.NewEmergencyResponder("r2", "Kim", "EMT")),
	} {
		require.NoError(t, n.RegisterParticipant("a1", p))
	}
	_, err = n.UploadPHI("p1", phiInput("p1"), "d1")
	require.NoError(t, err)
	return e
}

func phiInput(patientID string) PHIInput {
	return PHIInput{
		PatientID: patientID,
		Demographics: asset.Demographics{
			Name:        "Ada Lovelace",
			Gender:      "female",
			DateOfBirth: "1985-12-10",
			Email:       "ada@example.org",
		},
		Conditions: map[string]string{"asthma": "mild"},
		Allergies:  []string{"penicillin"},
	}
}

func pendingKinds(n *Network) []ledger.Kind {
	var out []ledger.Kind
	for _, tx := range n.Ledger().Pending() {
		out = append(out, tx.Kind)
	}
	return out
}

func TestUploadPHISetsAuthorizedEntities(t *testing.T) {
	e := newEnv(t)
	rec, err := e.net.AccessPHI("d1", "p1_PHI")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "p1"}, rec.AuthorizedEntities)
	assert.Equal(t, "Ada Lovelace", rec.Demographics.Name)

	_, err = e.net.UploadPHI("p1", phiInput("p1"), "d1")
	assert.ErrorIs(t, err, errs.ErrInvalidState, "duplicate PHI")

	_, err = e.net.UploadPHI("p2", phiInput("p2"), "r1")
	assert.ErrorIs(t, err, errs.ErrInvalidState, "authorizer must be a medical entity")

	_, err = e.net.UploadPHI("p1", phiInput("p2"), "d1")
	assert.ErrorIs(t, err, errs.ErrPermission, "patients upload only their own PHI")

	_, err = e.net.UploadPHI("a1", phiInput("p2"), "d2")
	assert.NoError(t, err, "admins upload on behalf of patients")
}

func TestUploadPHIRejectsInvalidDocument(t *testing.T) {
	e := newEnv(t)
	in := phiInput("p2")
	in.Demographics.DateOfBirth = "10 Dec 1985"
	before := len(e.net.Ledger().Pending())

	_, err := e.net.UploadPHI("p2", in, "d1")
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Len(t, e.net.Ledger().Pending(), before)
}

func TestAccessPHIAuthorization(t *testing.T) {
	e := newEnv(t)
	before := len(e.net.Ledger().Pending())

	_, err := e.net.AccessPHI("d2", "p1_PHI")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPermission)
	assert.Len(t, e.net.Ledger().Pending(), before, "denials record nothing")

	events := e.audit.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, audit.EventAccessDenied, events[len(events)-1].EventType)

	_, err = e.net.AccessPHI("p2", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrPermission)

	_, err = e.net.AccessPHI("d1", "p9_PHI")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.net.AccessPHI("nobody", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.net.AccessPHI("p1", "p1_PHI")
	require.NoError(t, err)
	pending := e.net.Ledger().Pending()
	last := pending[len(pending)-1]
	assert.Equal(t, ledger.KindAccessPHI, last.Kind)
	assert.Equal(t, "owner", last.Get("via"))
}

func TestUpdatePHIRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	_, err := e.net.UpdatePHI("d1", "p1_PHI", map[string]string{"address": "12 St James Sq"})
	assert.ErrorIs(t, err, errs.ErrPermission)

	rec, err := e.net.UpdatePHI("a1", "p1_PHI", map[string]string{"address": "12 St James Sq", "condition.asthma": ""})
	require.NoError(t, err)
	assert.Equal(t, "12 St James Sq", rec.Demographics.Address)
	assert.NotContains(t, rec.Conditions, "asthma")

	_, err = e.net.UpdatePHI("a1", "p1_PHI", map[string]string{"blood_type": "O+"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestTransferRightsMovesAccess(t *testing.T) {
	e := newEnv(t)
	rec, err := e.net.TransferRights("d1", "d2", "p1_PHI")
	require.NoError(t, err)
	assert.Equal(t, []string{"d2", "p1"}, rec.AuthorizedEntities)

	_, err = e.net.AccessPHI("d1", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrPermission)
	_, err = e.net.AccessPHI("d2", "p1_PHI")
	assert.NoError(t, err)

	_, err = e.net.TransferRights("d1", "d2", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrPermission, "d1 no longer holds rights")
	_, err = e.net.TransferRights("d2", "r1", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	_, err = e.net.TransferRights("d2", "d2", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestGrantAndRevokeAccess(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.net.GrantAccess("p1", "d2", "p1_PHI"))
	_, err := e.net.AccessPHI("d2", "p1_PHI")
	assert.NoError(t, err)

	require.NoError(t, e.net.RevokeAccess("a1", "d2", "p1_PHI"))
	_, err = e.net.AccessPHI("d2", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrPermission)

	assert.ErrorIs(t, e.net.GrantAccess("d1", "d2", "p1_PHI"), errs.ErrPermission, "entities cannot grant")
	assert.ErrorIs(t, e.net.GrantAccess("p2", "d2", "p1_PHI"), errs.ErrPermission)
	assert.ErrorIs(t, e.net.RevokeAccess("a1", "p1", "p1_PHI"), errs.ErrInvalidState, "the owner cannot be revoked")

	require.NoError(t, e.net.RevokeAccess("p1", "d2", "p1_PHI"))
	pending := e.net.Ledger().Pending()
	assert.Equal(t, "false", pending[len(pending)-1].Get("changed"))
}

func TestDeletePHIClearsAccessState(t *testing.T) {
	e := newEnv(t)
	_, err := e.net.TriggerEmergency("d1", "p1", []string{"r1"})
	require.NoError(t, err)

	assert.ErrorIs(t, e.net.DeletePHI("p1", "p1_PHI"), errs.ErrPermission)
	require.NoError(t, e.net.DeletePHI("a1", "p1_PHI"))

	_, err = e.net.AccessPHI("d1", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, e.net.ActiveEmergencies("p1"))

	_, err = e.net.UploadPHI("p1", phiInput("p1"), "d2")
	assert.NoError(t, err, "a deleted record can be uploaded again")
}

func TestUploadAndReadPPPs(t *testing.T) {
	e := newEnv(t)
	r, err := e.net.UploadPPPs("p1", ReadingInput{PatientID: "p1", CapturedAt: "2025-03-01 08:30", BloodPressure: "120/80", Pulse: "72 bpm"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC), r.CapturedAt)

	_, err = e.net.UploadPPPs("d1", ReadingInput{PatientID: "p1", CapturedAt: "2025-03-01T09:30:00Z", HeartRate: "80"})
	require.NoError(t, err, "authorized entities append readings")

	_, err = e.net.UploadPPPs("d2", ReadingInput{PatientID: "p1", HeartRate: "80"})
	assert.ErrorIs(t, err, errs.ErrPermission)
	_, err = e.net.UploadPPPs("r1", ReadingInput{PatientID: "p1", HeartRate: "80"})
	assert.ErrorIs(t, err, errs.ErrPermission)
	_, err = e.net.UploadPPPs("p1", ReadingInput{PatientID: "p1"})
	assert.ErrorIs(t, err, errs.ErrValidation, "a reading needs at least one vital")
	_, err = e.net.UploadPPPs("p1", ReadingInput{PatientID: "p1", Pulse: "70", CapturedAt: "not a time"})
	assert.ErrorIs(t, err, errs.ErrParse)

	readings, err := e.net.ReadPPPs("d1", "p1")
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "120/80", readings[0].BloodPressure)

	_, err = e.net.ReadPPPs("p2", "p1")
	assert.ErrorIs(t, err, errs.ErrPermission)
	_, err = e.net.ReadPPPs("d1", "p2")
	assert.ErrorIs(t, err, errs.ErrPermission, "no PHI means no authorized entities")
}

func TestEmergencyTriggerAndResolveRestoresAccess(t *testing.T) {
	e := newEnv(t)
	rec, err := e.net.AccessPHI("p1", "p1_PHI")
	require.NoError(t, err)
	before := rec.AuthorizedEntities

	_, err = e.net.AccessPHI("r1", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrPermission)

	grants, err := e.net.TriggerEmergency("d1", "p1", []string{"r1", "r2"})
	require.NoError(t, err)
	assert.Len(t, grants, 2)

	rec, err = e.net.AccessPHI("r1", "p1_PHI")
	require.NoError(t, err)
	assert.Equal(t, before, rec.AuthorizedEntities)
	_, err = e.net.ReadPPPs("r2", "p1")
	assert.NoError(t, err)

	_, err = e.net.TriggerEmergency("d1", "p1", []string{"r1"})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	_, err = e.net.TriggerEmergency("d2", "p1", []string{"r1"})
	assert.ErrorIs(t, err, errs.ErrPermission)
	_, err = e.net.TriggerEmergency("p1", "p1", []string{"d2"})
	assert.ErrorIs(t, err, errs.ErrInvalidState, "only responders receive emergency grants")

	_, err = e.net.ResolveEmergency("p1", "p1", []string{"r1", "r2"})
	require.NoError(t, err)
	_, err = e.net.AccessPHI("r1", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrPermission)
	rec, err = e.net.AccessPHI("p1", "p1_PHI")
	require.NoError(t, err)
	assert.Equal(t, before, rec.AuthorizedEntities)

	_, err = e.net.ResolveEmergency("p1", "p1", []string{"r1"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	var notified []string
	for _, m := range e.outbox.Sent() {
		if m.Type == notify.NotifyEmergency {
			notified = append(notified, m.Recipient)
		}
	}
	assert.Contains(t, notified, "r1")
	assert.Contains(t, notified, "p1")
}

func TestPredictiveAnalysis(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.net.PerformPredictiveAnalysis(ctx, "d1", "p1")
	assert.ErrorIs(t, err, errs.ErrNotFound, "no readings yet")

	_, err = e.net.UploadPPPs("p1", ReadingInput{PatientID: "p1", CapturedAt: "2025-03-01T08:00:00Z", BloodPressure: "120/80", BodyTemperature: "98.6°F", Pulse: "72 bpm"})
	require.NoError(t, err)
	res, err := e.net.PerformPredictiveAnalysis(ctx, "d1", "p1")
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.TxID)

	_, err = e.net.UploadPPPs("p1", ReadingInput{PatientID: "p1", CapturedAt: "2025-03-01T09:00:00Z", BloodPressure: "180/110", BodyTemperature: "101.5°F", Pulse: "120 bpm"})
	require.NoError(t, err)
	res, err = e.net.PerformPredictiveAnalysis(ctx, "d1", "p1")
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 4)
	require.NotEmpty(t, res.TxID)

	again, err := e.net.PerformPredictiveAnalysis(ctx, "p1", "p1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Empty(t, again.TxID)

	var earlyWarnings int
	for _, k := range pendingKinds(e.net) {
		if k == ledger.KindEarlyWarning {
			earlyWarnings++
		}
	}
	assert.Equal(t, 1, earlyWarnings)

	recipients := map[string]bool{}
	for _, m := range e.outbox.Sent() {
		if m.Type == notify.NotifyEarlyWarning {
			recipients[m.Recipient] = true
		}
	}
	assert.Equal(t, map[string]bool{"p1": true, "d1": true}, recipients)

	_, err = e.net.PerformPredictiveAnalysis(ctx, "d2", "p1")
	assert.ErrorIs(t, err, errs.ErrPermission)
}

func TestMineArchivesBlocks(t *testing.T) {
	arch := &mockArchiver{}
	arch.On("SaveBlock", mock.AnythingOfType("ledger.Block")).Return(nil).Once()
	e := newEnv(t, WithArchiver(arch))

	pending := len(e.net.Ledger().Pending())
	b, err := e.net.MineBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.Index)
	assert.Len(t, b.Transactions, pending)
	assert.Empty(t, e.net.Ledger().Pending())
	arch.AssertExpectations(t)

	arch.On("SaveBlock", mock.AnythingOfType("ledger.Block")).Return(errors.New("disk full")).Once()
	b, err = e.net.MineBlock()
	require.Error(t, err)
	assert.Equal(t, uint64(2), b.Index, "the block is committed even if archiving fails")
	assert.Empty(t, b.Transactions)
	assert.NoError(t, e.net.VerifyIntegrity())
}

func TestHistoryFiltersByActor(t *testing.T) {
	e := newEnv(t)
	_, err := e.net.AccessPHI("d1", "p1_PHI")
	require.NoError(t, err)
	_, err = e.net.MineBlock()
	require.NoError(t, err)

	all, err := e.net.GetTransactionHistory("")
	require.NoError(t, err)
	d1, err := e.net.GetTransactionHistory("d1")
	require.NoError(t, err)

	var want []ledger.Transaction
	for _, tx := range all {
		if tx.Actor == "d1" {
			want = append(want, tx)
		}
	}
	assert.Equal(t, want, d1)
	require.Len(t, d1, 1)
	assert.Equal(t, ledger.KindAccessPHI, d1[0].Kind)

	phiHistory, err := e.net.AssetHistory("p1_PHI")
	require.NoError(t, err)
	assert.Equal(t, ledger.KindUploadPHI, phiHistory[0].Kind)
}

func TestIntegrityFailureHaltsNetwork(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.net.VerifyIntegrity())

	halt := &errs.IntegrityError{BlockIndex: 1, Reason: "hash mismatch"}
	e.net.halt(halt)

	_, err := e.net.AccessPHI("d1", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrIntegrity)
	_, err = e.net.MineBlock()
	assert.ErrorIs(t, err, errs.ErrIntegrity)
	assert.ErrorIs(t, e.net.VerifyIntegrity(), errs.ErrIntegrity)
	assert.True(t, e.net.Status().Halted)
}

func TestSignedTransactionsVerify(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	e := newEnv(t, WithSigner(kp))
	_, err = e.net.MineBlock()
	require.NoError(t, err)

	txs, err := e.net.GetTransactionHistory("")
	require.NoError(t, err)
	require.NotEmpty(t, txs)
	assert.NoError(t, e.net.VerifyTransaction(txs[0].TxID))

	assert.ErrorIs(t, e.net.VerifyTransaction("missing"), errs.ErrNotFound)

	unsigned := newEnv(t)
	_, err = unsigned.net.MineBlock()
	require.NoError(t, err)
	txs, err = unsigned.net.GetTransactionHistory("")
	require.NoError(t, err)
	assert.ErrorIs(t, unsigned.net.VerifyTransaction(txs[0].TxID), errs.ErrInvalidState)
}

func TestRegisterAdministratorsNeedsSuperAdmin(t *testing.T) {
	e := newEnv(t)
	admin2, err := participant.NewAdmin("a2", "Second", false)
	require.NoError(t, err)
	assert.ErrorIs(t, e.net.RegisterParticipant("a1", admin2), errs.ErrPermission)
	assert.NoError(t, e.net.RegisterParticipant("s1", admin2))

	_, err = e.net.UpdateParticipant("a1", "s1", participant.Attributes{Designation: "x"})
	assert.ErrorIs(t, err, errs.ErrPermission)

	p, err := e.net.UpdateParticipant("a1", "d1", participant.Attributes{Department: "Cardiology"})
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", p.Attributes.Department)
	assert.Equal(t, "Surgeon", p.Attributes.Designation)

	dup, err := participant.NewPatient("p1", "Again", participant.PatientIndoor)
	require.NoError(t, err)
	assert.ErrorIs(t, e.net.RegisterParticipant("a1", dup), errs.ErrInvalidState)

	assert.ErrorIs(t, e.net.RegisterParticipant("p1", admin2), errs.ErrPermission)
}

func TestConcurrentOperationsKeepChainValid(t *testing.T) {
	e := newEnv(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = e.net.AccessPHI("d1", "p1_PHI")
				if j%5 == 0 {
					_, _ = e.net.MineBlock()
				}
			}
		}(i)
	}
	wg.Wait()
	_, err := e.net.MineBlock()
	require.NoError(t, err)
	require.NoError(t, e.net.VerifyIntegrity())

	history, err := e.net.GetTransactionHistory("d1")
	require.NoError(t, err)
	assert.Len(t, history, 80)
}

func TestEmergencyGrantExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := access.NewEngine(access.WithMaxDuration(time.Hour), access.WithClock(func() time.Time { return now }))
	e := newEnv(t, WithAccessEngine(eng))

	grants, err := e.net.TriggerEmergency("a1", "p1", []string{"r1"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), grants[0].ExpiresAt)
	_, err = e.net.AccessPHI("r1", "p1_PHI")
	require.NoError(t, err)

	now = now.Add(90 * time.Minute)
	_, err = e.net.AccessPHI("r1", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrPermission)
}

func TestConcurrentTransfersMoveRightsOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		e := newEnv(t)
		d3, err := participant.NewMedicalEntity("d3", "Dr. Yang", "Cardiologist", "Cardio")
		require.NoError(t, err)
		require.NoError(t, e.net.RegisterParticipant("a1", d3))

		var wg sync.WaitGroup
		results := make([]error, 2)
		for j, to := range []string{"d2", "d3"} {
			wg.Add(1)
			go func(j int, to string) {
				defer wg.Done()
				_, results[j] = e.net.TransferRights("d1", to, "p1_PHI")
			}(j, to)
		}
		wg.Wait()

		var ok int
		for _, err := range results {
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, errs.ErrPermission)
			}
		}
		require.Equal(t, 1, ok, "exactly one transfer wins")

		phi, err := e.net.phi("p1_PHI")
		require.NoError(t, err)
		assert.Len(t, phi.AuthorizedEntities(), 2, "the patient plus one recipient")
		assert.False(t, phi.HasAuthorized("d1"))

		var transfers int
		for _, k := range pendingKinds(e.net) {
			if k == ledger.KindTransferRights {
				transfers++
			}
		}
		assert.Equal(t, 1, transfers)
	}
}

func TestTransferFromRevokedEntityIsDenied(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.net.GrantAccess("p1", "d2", "p1_PHI"))
	require.NoError(t, e.net.RevokeAccess("p1", "d1", "p1_PHI"))

	_, err := e.net.TransferRights("d1", "d2", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrPermission)

	_, err = e.net.TransferRights("d2", "d2", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	require.NoError(t, e.net.GrantAccess("p1", "d1", "p1_PHI"))
	_, err = e.net.TransferRights("d1", "d2", "p1_PHI")
	assert.ErrorIs(t, err, errs.ErrInvalidState, "the recipient already holds access")
}

// assetOrder returns the pending transaction kinds recorded for assetID.
func assetOrder(n *Network, assetID string) []ledger.Kind {
	var out []ledger.Kind
	for _, tx := range n.Ledger().Pending() {
		if tx.AssetID == assetID {
			out = append(out, tx.Kind)
		}
	}
	return out
}

func TestUploadPHIIsQueuedBeforeConcurrentReads(t *testing.T) {
	for i := 0; i < 20; i++ {
		e := newEnv(t)
		var wg sync.WaitGroup
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					if _, err := e.net.AccessPHI("d1", "p2_PHI"); err == nil {
						return
					}
				}
			}()
		}
		_, err := e.net.UploadPHI("p2", phiInput("p2"), "d1")
		require.NoError(t, err)
		wg.Wait()

		kinds := assetOrder(e.net, "p2_PHI")
		require.Len(t, kinds, 5)
		assert.Equal(t, ledger.KindUploadPHI, kinds[0])
	}
}

func TestNoReadIsRecordedAfterDeletePHI(t *testing.T) {
	for i := 0; i < 20; i++ {
		e := newEnv(t)
		var wg sync.WaitGroup
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if _, err := e.net.AccessPHI("d1", "p1_PHI"); err != nil {
						assert.ErrorIs(t, err, errs.ErrNotFound)
						return
					}
				}
			}()
		}
		require.NoError(t, e.net.DeletePHI("a1", "p1_PHI"))
		wg.Wait()

		kinds := assetOrder(e.net, "p1_PHI")
		require.NotEmpty(t, kinds)
		deleted := -1
		for j, k := range kinds {
			if k == ledger.KindDeletePHI {
				deleted = j
			}
		}
		assert.Equal(t, len(kinds)-1, deleted, "the deletion is the last record for the asset")
	}
}

func TestRegisteredParticipantIsQueuedFirst(t *testing.T) {
	e := newEnv(t)
	d3, err := participant.NewMedicalEntity("d3", "Dr. Yang", "Cardiologist", "Cardio")
	require.NoError(t, err)
	require.NoError(t, e.net.RegisterParticipant("a1", d3))
	_, err = e.net.UpdateParticipant("a1", "d3", participant.Attributes{Department: "ICU"})
	require.NoError(t, err)

	kinds := assetOrder(e.net, "d3")
	assert.Equal(t, []ledger.Kind{ledger.KindRegisterParticipant, ledger.KindUpdateParticipant}, kinds)
	p, err := e.net.Participant("d3")
	require.NoError(t, err)
	assert.Equal(t, "ICU", p.Attributes.Department)

	_, err = e.net.UpdateParticipant("a1", "p1", participant.Attributes{PatientKind: "nowhere"})
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Len(t, assetOrder(e.net, "p1"), 1, "a rejected update records nothing")
}

func TestReadPPPsWindow(t *testing.T) {
	e := newEnv(t)
	for _, at := range []string{"2025-03-01T08:00:00Z", "2025-03-01T09:00:00Z", "2025-03-01T10:00:00Z"} {
		_, err := e.net.UploadPPPs("p1", ReadingInput{PatientID: "p1", CapturedAt: at, Pulse: "70"})
		require.NoError(t, err)
	}
	from := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	readings, err := e.net.ReadPPPsWindow("d1", "p1", from, time.Time{})
	require.NoError(t, err)
	assert.Len(t, readings, 2)

	readings, err = e.net.ReadPPPsWindow("d1", "p1", time.Time{}, from)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), readings[0].CapturedAt)

	pending := e.net.Ledger().Pending()
	last := pending[len(pending)-1]
	assert.Equal(t, "1", last.Get("count"))
	assert.Equal(t, "3", last.Get("total"))
	assert.Equal(t, from.Format(time.RFC3339Nano), last.Get("to"))

	_, err = e.net.ReadPPPsWindow("d1", "p1", from, from)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestAnalysisListsUnevaluatedFields(t *testing.T) {
	e := newEnv(t)
	_, err := e.net.UploadPPPs("p1", ReadingInput{PatientID: "p1", Pulse: "72 bpm", ECG: "sinus rhythm", EEG: "alpha"})
	require.NoError(t, err)
	res, err := e.net.PerformPredictiveAnalysis(context.Background(), "d1", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ecg", "eeg"}, res.Unevaluated)
	assert.Empty(t, res.Warnings)
}
