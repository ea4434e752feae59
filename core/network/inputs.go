package network

import (
	"healthledger/core/asset"
)

// PHIInput is the document accepted by UploadPHI. Field names follow the
// phi_v1 schema.
type PHIInput struct {
	PatientID       string             `json:"patient_id"`
	Demographics    asset.Demographics `json:"demographics"`
	Conditions      map[string]string  `json:"conditions,omitempty"`
	Allergies       []string           `json:"allergies,omitempty"`
	ReferringEntity string             `json:"referring_entity,omitempty"`
}

// ReadingInput is one PPPs upload. CapturedAt is free-form; empty means
// the time of upload.
type ReadingInput struct {
	PatientID       string `json:"patient_id"`
	CapturedAt      string `json:"captured_at,omitempty"`
	BloodPressure   string `json:"blood_pressure,omitempty"`
	BodyTemperature string `json:"body_temperature,omitempty"`
	Pulse           string `json:"pulse,omitempty"`
	HeartRate       string `json:"heart_rate,omitempty"`
	EEG             string `json:"eeg,omitempty"`
	ECG             string `json:"ecg,omitempty"`
}

func (in ReadingInput) reading() asset.Reading {
	return asset.Reading{
		Ownership:       asset.Ownership{PatientID: in.PatientID},
		BloodPressure:   in.BloodPressure,
		BodyTemperature: in.BodyTemperature,
		Pulse:           in.Pulse,
		HeartRate:       in.HeartRate,
		EEG:             in.EEG,
		ECG:             in.ECG,
	}
}
