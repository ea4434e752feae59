package asset

import (
	"time"
)

// Field keys of a physiological reading.
const (
	FieldBloodPressure   = "blood_pressure"
	FieldBodyTemperature = "body_temperature"
	FieldPulse           = "pulse"
	FieldHeartRate       = "heart_rate"
	FieldEEG             = "eeg"
	FieldECG             = "ecg"
)

// PPPsSeriesID names a patient's reading series on the ledger.
func PPPsSeriesID(patientID string) string {
	return patientID + "_PPPs"
}

// Reading is a PPPs record: raw vital-sign strings captured at one instant.
// It has no identity beyond patient and capture time.
type Reading struct {
	Ownership
	CapturedAt      time.Time `json:"capturedAt"`
	BloodPressure   string    `json:"blood_pressure,omitempty"`
	BodyTemperature string    `json:"body_temperature,omitempty"`
	Pulse           string    `json:"pulse,omitempty"`
	HeartRate       string    `json:"heart_rate,omitempty"`
	EEG             string    `json:"eeg,omitempty"`
	ECG             string    `json:"ecg,omitempty"`
}

func (r Reading) Kind() Kind { return KindPPPs }
func (r Reading) isAsset()   {}

// ID combines the patient and capture time.
func (r Reading) ID() string {
	return r.PatientID + "_PPPs@" + r.CapturedAt.UTC().Format(time.RFC3339Nano)
}

// Fields returns the non-empty raw fields keyed by field name.
func (r Reading) Fields() map[string]string {
	out := make(map[string]string, 6)
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set(FieldBloodPressure, r.BloodPressure)
	set(FieldBodyTemperature, r.BodyTemperature)
	set(FieldPulse, r.Pulse)
	set(FieldHeartRate, r.HeartRate)
	set(FieldEEG, r.EEG)
	set(FieldECG, r.ECG)
	return out
}

// Digest fingerprints the reading content.
func (r Reading) Digest() string {
	return digest(struct {
		PatientID  string            `json:"patientId"`
		CapturedAt string            `json:"capturedAt"`
		Fields     map[string]string `json:"fields"`
	}{r.PatientID, r.CapturedAt.UTC().Format(time.RFC3339Nano), r.Fields()})
}
