package ledger

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"healthledger/types/ids"
)

// Kind tags what a transaction records.
type Kind string

const (
	KindUploadPHI          Kind = "UploadPHI"
	KindUploadPPPs         Kind = "UploadPPPs"
	KindAccessPHI          Kind = "AccessPHI"
	KindUpdatePHI          Kind = "UpdatePHI"
	KindTransferRights     Kind = "TransferRights"
	KindEmergencyTriggered Kind = "EmergencyTriggered"
	KindEmergencyResolved  Kind = "EmergencyResolved"
	KindEarlyWarning       Kind = "EarlyWarning"

	KindRegisterParticipant Kind = "RegisterParticipant"
	KindUpdateParticipant   Kind = "UpdateParticipant"
	KindAccessPPPs          Kind = "AccessPPPs"
	KindGrantAccess         Kind = "GrantAccess"
	KindRevokeAccess        Kind = "RevokeAccess"
	KindDeletePHI           Kind = "DeletePHI"
)

const timeFormat = time.RFC3339Nano

// Transaction is an immutable audit record. The payload is only reachable
// through Payload, which returns a copy.
type Transaction struct {
	TxID      string
	Kind      Kind
	Actor     string
	AssetID   string
	Timestamp time.Time
	Signature string // hex, empty when unsigned
	SignerKey string // hex public key
	payload   map[string]string
}

// NewTransaction stamps a new transaction with a random ID and the
// current UTC time. payload is copied.
func NewTransaction(kind Kind, actor, assetID string, payload map[string]string) Transaction {
	return Transaction{
		TxID:      uuid.NewString(),
		Kind:      kind,
		Actor:     actor,
		AssetID:   assetID,
		Timestamp: time.Now().UTC(),
		payload:   copyPayload(payload),
	}
}

// Payload returns a copy of the kind-specific fields.
func (tx Transaction) Payload() map[string]string {
	return copyPayload(tx.payload)
}

// Get returns one payload field.
func (tx Transaction) Get(key string) string {
	return tx.payload[key]
}

// WithSignature returns a signed copy.
func (tx Transaction) WithSignature(sig, pubKey []byte) Transaction {
	tx.payload = copyPayload(tx.payload)
	tx.Signature = hex.EncodeToString(sig)
	tx.SignerKey = hex.EncodeToString(pubKey)
	return tx
}

func (tx Transaction) clone() Transaction {
	tx.payload = copyPayload(tx.payload)
	return tx
}

func (tx Transaction) unsignedFields() map[string]interface{} {
	return map[string]interface{}{
		"tx_id":     tx.TxID,
		"kind":      string(tx.Kind),
		"actor":     tx.Actor,
		"asset_id":  tx.AssetID,
		"timestamp": tx.Timestamp.UTC().Format(timeFormat),
		"payload":   tx.payload,
	}
}

func (tx Transaction) canonicalFields() map[string]interface{} {
	m := tx.unsignedFields()
	m["signature"] = tx.Signature
	m["signer_key"] = tx.SignerKey
	return m
}

// SigningPayload is the canonical encoding a signature covers: every
// field except the signature itself.
func (tx Transaction) SigningPayload() []byte {
	b, _ := canonicalJSON(tx.unsignedFields())
	return b
}

// Canonical is the deterministic encoding used for hashing.
func (tx Transaction) Canonical() []byte {
	b, _ := canonicalJSON(tx.canonicalFields())
	return b
}

// Hash is the hex SHA-256 of Canonical.
func (tx Transaction) Hash() string {
	return ids.HashHex(tx.Canonical())
}

type transactionJSON struct {
	TxID      string            `json:"tx_id"`
	Kind      Kind              `json:"kind"`
	Actor     string            `json:"actor"`
	AssetID   string            `json:"asset_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
	Signature string            `json:"signature,omitempty"`
	SignerKey string            `json:"signer_key,omitempty"`
}

func (tx Transaction) MarshalJSON() ([]byte, error) {
	payload := tx.payload
	if payload == nil {
		payload = map[string]string{}
	}
	return json.Marshal(transactionJSON{
		TxID:      tx.TxID,
		Kind:      tx.Kind,
		Actor:     tx.Actor,
		AssetID:   tx.AssetID,
		Timestamp: tx.Timestamp,
		Payload:   payload,
		Signature: tx.Signature,
		SignerKey: tx.SignerKey,
	})
}

func (tx *Transaction) UnmarshalJSON(b []byte) error {
	var j transactionJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*tx = Transaction{
		TxID:      j.TxID,
		Kind:      j.Kind,
		Actor:     j.Actor,
		AssetID:   j.AssetID,
		Timestamp: j.Timestamp.UTC(),
		Signature: j.Signature,
		SignerKey: j.SignerKey,
		payload:   copyPayload(j.Payload),
	}
	return nil
}

func copyPayload(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
