// Package network is the facade over the ledger, the access engine, the
// warning engine and the physiological store. Every public operation
// resolves the acting participant, asks the access engine, mutates state
// and records exactly one ledger transaction. Denied requests record
// nothing.
package network

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthledger/core/access"
	"healthledger/core/asset"
	"healthledger/core/audit"
	"healthledger/core/crypto"
	"healthledger/core/errs"
	"healthledger/core/ledger"
	"healthledger/core/notify"
	"healthledger/core/participant"
	"healthledger/core/physio"
	"healthledger/core/validation"
	"healthledger/core/warning"
)

// SystemActor is recorded as the actor of bootstrap operations.
const SystemActor = "system"

// BlockArchiver receives every mined block.
type BlockArchiver interface {
	SaveBlock(b ledger.Block) error
}

type Network struct {
	mu           sync.RWMutex
	participants map[string]participant.Participant
	phis         map[string]*asset.PHI // asset ID -> PHI
	warned       map[string]struct{}   // recorded EarlyWarning keys

	// locks serializes each patient's operations from decision to
	// submitted transaction.
	locks patientLocks

	haltMu sync.RWMutex
	halted error

	ledger    *ledger.Ledger
	access    *access.Engine
	warnings  *warning.Engine
	store     *physio.Store
	validator *validation.Validator
	archiver  BlockArchiver
	notifier  notify.Notifier
	audit     audit.AuditLogger
	signer    *crypto.KeyPair
	log       *zap.Logger
}

// Option configures a Network.
type Option func(*Network)

func WithLedger(l *ledger.Ledger) Option          { return func(n *Network) { n.ledger = l } }
func WithAccessEngine(e *access.Engine) Option    { return func(n *Network) { n.access = e } }
func WithWarningEngine(e *warning.Engine) Option  { return func(n *Network) { n.warnings = e } }
func WithArchiver(a BlockArchiver) Option         { return func(n *Network) { n.archiver = a } }
func WithNotifier(x notify.Notifier) Option       { return func(n *Network) { n.notifier = x } }
func WithAuditLogger(a audit.AuditLogger) Option  { return func(n *Network) { n.audit = a } }
func WithLogger(l *zap.Logger) Option             { return func(n *Network) { n.log = l } }
func WithValidator(v *validation.Validator) Option { return func(n *Network) { n.validator = v } }

// WithSigner signs every transaction with kp.
func WithSigner(kp crypto.KeyPair) Option {
	return func(n *Network) { n.signer = &kp }
}

// New assembles a network. Components not supplied get defaults: a fresh
// ledger, an access engine without grant expiry and the default rules.
func New(opts ...Option) (*Network, error) {
	n := &Network{
		participants: make(map[string]participant.Participant),
		phis:         make(map[string]*asset.PHI),
		warned:       make(map[string]struct{}),
		store:        physio.NewStore(),
		log:          zap.NewNop(),
	}
	for _, o := range opts {
		o(n)
	}
	if n.ledger == nil {
		n.ledger = ledger.New(ledger.WithLogger(n.log))
	}
	if n.access == nil {
		n.access = access.NewEngine()
	}
	if n.warnings == nil {
		n.warnings = warning.NewDefaultEngine(n.log)
	}
	if n.validator == nil {
		v, err := validation.New()
		if err != nil {
			return nil, err
		}
		n.validator = v
	}
	if n.notifier == nil {
		n.notifier = notify.NewLogNotifier(n.log)
	}
	if n.audit == nil {
		n.audit = audit.NewZapAuditLogger(n.log)
	}
	return n, nil
}

// Ledger exposes the underlying ledger for read access.
func (n *Network) Ledger() *ledger.Ledger { return n.ledger }

// checkHalted returns the integrity error that halted the network, if any.
func (n *Network) checkHalted() error {
	n.haltMu.RLock()
	defer n.haltMu.RUnlock()
	return n.halted
}

func (n *Network) halt(err error) {
	n.haltMu.Lock()
	defer n.haltMu.Unlock()
	if n.halted == nil {
		n.halted = err
	}
}

func (n *Network) participant(id string) (participant.Participant, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.participants[id]
	if !ok {
		return participant.Participant{}, errs.NotFound("participant", id)
	}
	return p, nil
}

func (n *Network) phi(assetID string) (*asset.PHI, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.phis[assetID]
	if !ok {
		return nil, errs.NotFound("phi", assetID)
	}
	return p, nil
}

// phiOf returns the patient's PHI or nil.
func (n *Network) phiOf(patientID string) *asset.PHI {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.phis[asset.PHIAssetID(patientID)]
}

func (n *Network) patient(id string) (participant.Participant, error) {
	p, err := n.participant(id)
	if err != nil {
		return p, err
	}
	if p.Role != participant.RolePatient {
		return p, errs.InvalidState("resolve patient", id, "participant is not a patient")
	}
	return p, nil
}

// decide asks the access engine and audit-logs denials.
func (n *Network) decide(req access.Request) error {
	err := n.access.Decide(req)
	if err != nil {
		n.audit.LogEvent(audit.AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: audit.EventAccessDenied,
			EntityID:  req.Actor.ID,
			Result:    "failure",
			Reason:    err.Error(),
			Metadata:  map[string]string{"action": string(req.Action), "kind": string(req.Kind), "asset": req.AssetID},
		})
	}
	return err
}

// record builds, signs and submits one transaction.
func (n *Network) record(kind ledger.Kind, actor, assetID string, payload map[string]string) (ledger.Transaction, error) {
	tx := ledger.NewTransaction(kind, actor, assetID, payload)
	if n.signer != nil {
		tx = tx.WithSignature(crypto.Sign(n.signer.Private, tx.SigningPayload()), n.signer.Public)
	}
	if err := n.ledger.Submit(tx); err != nil {
		return ledger.Transaction{}, fmt.Errorf("submit %s: %w", kind, err)
	}
	return tx, nil
}

// AddParticipant registers p without an access check. It is meant for
// bootstrapping the first administrators.
func (n *Network) AddParticipant(p participant.Participant) error {
	if err := n.checkHalted(); err != nil {
		return err
	}
	return n.insertParticipant(SystemActor, p)
}

// RegisterParticipant adds p on behalf of an administrator. Registering
// another administrator requires SuperAdmin.
func (n *Network) RegisterParticipant(actorID string, p participant.Participant) error {
	if err := n.checkHalted(); err != nil {
		return err
	}
	actor, err := n.participant(actorID)
	if err != nil {
		return err
	}
	if err := n.decide(access.Request{Actor: actor, Kind: asset.KindParticipant, Action: access.ActionCreate, AssetID: p.ID, Target: &p}); err != nil {
		return err
	}
	return n.insertParticipant(actor.ID, p)
}

// insertParticipant queues the registration and adds p under the registry
// lock, so no lookup finds p before its transaction is pending.
func (n *Network) insertParticipant(actorID string, p participant.Participant) error {
	if err := p.Validate(); err != nil {
		return &errs.ValidationError{Subject: "participant", Problems: []string{err.Error()}}
	}
	if p.ID == SystemActor {
		return errs.InvalidState("register participant", p.ID, "reserved identifier")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.participants[p.ID]; exists {
		return errs.InvalidState("register participant", p.ID, "already registered")
	}
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now().UTC()
	}
	if _, err := n.record(ledger.KindRegisterParticipant, actorID, p.ID, participantPayload(p)); err != nil {
		return err
	}
	n.participants[p.ID] = p
	n.log.Info("participant registered", zap.String("id", p.ID), zap.String("role", string(p.Role)))
	return nil
}

func participantPayload(p participant.Participant) map[string]string {
	m := map[string]string{"role": string(p.Role)}
	if p.Attributes.PatientKind != "" {
		m["patient_kind"] = string(p.Attributes.PatientKind)
	}
	if p.Attributes.Designation != "" {
		m["designation"] = p.Attributes.Designation
	}
	if p.Attributes.Department != "" {
		m["department"] = p.Attributes.Department
	}
	if p.Attributes.Specialization != "" {
		m["specialization"] = p.Attributes.Specialization
	}
	return m
}

// UpdateParticipant merges the non-empty fields of attrs into the
// participant's role-specific attributes.
func (n *Network) UpdateParticipant(actorID, id string, attrs participant.Attributes) (participant.Participant, error) {
	if err := n.checkHalted(); err != nil {
		return participant.Participant{}, err
	}
	actor, err := n.participant(actorID)
	if err != nil {
		return participant.Participant{}, err
	}
	target, err := n.participant(id)
	if err != nil {
		return participant.Participant{}, err
	}
	if err := n.decide(access.Request{Actor: actor, Kind: asset.KindParticipant, Action: access.ActionUpdate, AssetID: id, Target: &target}); err != nil {
		return participant.Participant{}, err
	}

	// Merge against the current record and queue the transaction before
	// the update becomes visible.
	n.mu.Lock()
	defer n.mu.Unlock()
	current, ok := n.participants[id]
	if !ok {
		return participant.Participant{}, errs.NotFound("participant", id)
	}
	updated, err := current.WithAttributes(current.Attributes.Merge(attrs))
	if err != nil {
		return participant.Participant{}, &errs.ValidationError{Subject: "participant", Problems: []string{err.Error()}}
	}
	if _, err := n.record(ledger.KindUpdateParticipant, actor.ID, id, participantPayload(updated)); err != nil {
		return participant.Participant{}, err
	}
	n.participants[id] = updated
	return updated, nil
}

// Participant looks up a registered participant.
func (n *Network) Participant(id string) (participant.Participant, error) {
	if err := n.checkHalted(); err != nil {
		return participant.Participant{}, err
	}
	return n.participant(id)
}

// Participants lists every participant ordered by ID.
func (n *Network) Participants() []participant.Participant {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]participant.Participant, 0, len(n.participants))
	for _, p := range n.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MineBlock seals the pending transactions and hands the block to the
// archiver. The block is returned even when archiving fails.
func (n *Network) MineBlock() (ledger.Block, error) {
	if err := n.checkHalted(); err != nil {
		return ledger.Block{}, err
	}
	b := n.ledger.Mine()
	if n.archiver != nil {
		if err := n.archiver.SaveBlock(b); err != nil {
			n.log.Error("archiving block failed", zap.Uint64("index", b.Index), zap.Error(err))
			return b, fmt.Errorf("archive block %d: %w", b.Index, err)
		}
	}
	return b, nil
}

// GetTransactionHistory returns committed transactions, optionally only
// those whose actor is participantID.
func (n *Network) GetTransactionHistory(participantID string) ([]ledger.Transaction, error) {
	if err := n.checkHalted(); err != nil {
		return nil, err
	}
	return n.ledger.History(participantID), nil
}

// AssetHistory returns committed transactions naming assetID.
func (n *Network) AssetHistory(assetID string) ([]ledger.Transaction, error) {
	if err := n.checkHalted(); err != nil {
		return nil, err
	}
	return n.ledger.AssetHistory(assetID), nil
}

// VerifyIntegrity checks the chain. A failure halts the network: every
// later operation returns the same IntegrityError.
func (n *Network) VerifyIntegrity() error {
	if err := n.checkHalted(); err != nil {
		return err
	}
	err := n.ledger.VerifyIntegrity()
	result := "success"
	reason := ""
	if err != nil {
		n.halt(err)
		result = "failure"
		reason = err.Error()
	}
	n.audit.LogEvent(audit.AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: audit.EventIntegrity,
		EntityID:  SystemActor,
		Result:    result,
		Reason:    reason,
		Metadata:  map[string]string{"height": fmt.Sprint(n.ledger.Height())},
	})
	return err
}

// VerifyTransaction checks the signature of a committed transaction.
func (n *Network) VerifyTransaction(txID string) error {
	if err := n.checkHalted(); err != nil {
		return err
	}
	tx, _, err := n.ledger.Find(txID)
	if err != nil {
		return err
	}
	if tx.Signature == "" {
		return errs.InvalidState("verify transaction", txID, "transaction is unsigned")
	}
	if !crypto.VerifyHex(tx.SignerKey, tx.SigningPayload(), tx.Signature) {
		return errs.InvalidState("verify transaction", txID, "signature does not verify")
	}
	return nil
}

// Status summarizes the node.
type Status struct {
	Height       uint64 `json:"height"`
	TipHash      string `json:"tipHash"`
	Pending      int    `json:"pending"`
	Participants int    `json:"participants"`
	PHIAssets    int    `json:"phiAssets"`
	Difficulty   int    `json:"difficulty"`
	Halted       bool   `json:"halted"`
	HaltReason   string `json:"haltReason,omitempty"`
}

func (n *Network) Status() Status {
	n.mu.RLock()
	s := Status{Participants: len(n.participants), PHIAssets: len(n.phis)}
	n.mu.RUnlock()
	tip := n.ledger.Tip()
	s.Height = tip.Index
	s.TipHash = tip.Hash
	s.Pending = len(n.ledger.Pending())
	s.Difficulty = n.ledger.Difficulty()
	if err := n.checkHalted(); err != nil {
		s.Halted = true
		s.HaltReason = err.Error()
	}
	return s
}

// RunAutoMiner mines whenever transactions are pending, checking every
// interval, until ctx is done.
func (n *Network) RunAutoMiner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if len(n.ledger.Pending()) == 0 {
				continue
			}
			if _, err := n.MineBlock(); err != nil {
				n.log.Warn("auto mine failed", zap.Error(err))
			}
		}
	}
}

func joinSorted(ids []string) string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return strings.Join(out, ",")
}
