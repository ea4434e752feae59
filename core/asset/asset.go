// Package asset models the two record kinds held for a patient: the PHI
// record (demographics and medical history) and PPPs readings (vital
// signs). They share ownership data but little else, so they are kept as
// distinct variants behind a small sealed interface.
package asset

import (
	"encoding/json"
	"time"

	"healthledger/types/ids"
)

// Kind is the resource kind used by the access matrix.
type Kind string

const (
	KindPHI         Kind = "PHI"
	KindPPPs        Kind = "PPPs"
	KindParticipant Kind = "Participant"
)

// Asset is implemented by *PHI and Reading only.
type Asset interface {
	Kind() Kind
	ID() string
	Owner() string
	isAsset()
}

// Ownership is embedded by every asset variant.
type Ownership struct {
	PatientID string    `json:"patientId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Owner returns the owning patient's participant ID.
func (o Ownership) Owner() string { return o.PatientID }

// digest hashes the JSON encoding of v. encoding/json emits struct fields
// in declaration order and map keys sorted, so equal values hash equally.
func digest(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return ids.HashHex(b)
}
