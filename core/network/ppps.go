package network

import (
	"strconv"
	"time"

	"healthledger/core/access"
	"healthledger/core/asset"
	"healthledger/core/errs"
	"healthledger/core/ledger"
	"healthledger/core/participant"
	"healthledger/core/physio"
)

// pppsRequest checks action on the patient's reading series. Medical
// entities are judged against the patient's PHI authorized set.
func (n *Network) pppsRequest(actorID, patientID string, action func(participant.Participant) access.Action) (participant.Participant, error) {
	if err := n.checkHalted(); err != nil {
		return participant.Participant{}, err
	}
	actor, err := n.participant(actorID)
	if err != nil {
		return participant.Participant{}, err
	}
	if _, err := n.patient(patientID); err != nil {
		return participant.Participant{}, err
	}
	req := access.Request{
		Actor:   actor,
		Kind:    asset.KindPPPs,
		Action:  action(actor),
		OwnerID: patientID,
		AssetID: asset.PPPsSeriesID(patientID),
		PHI:     n.phiOf(patientID),
	}
	if err := n.decide(req); err != nil {
		return participant.Participant{}, err
	}
	return actor, nil
}

// uploadAction is UPDATE for medical entities, who append to a series a
// patient started, and CREATE for everyone else.
func uploadAction(p participant.Participant) access.Action {
	if p.Role == participant.RoleMedicalEntity {
		return access.ActionUpdate
	}
	return access.ActionCreate
}

func readAction(participant.Participant) access.Action { return access.ActionRead }

// UploadPPPs stores one physiological reading. Raw values are stored as
// given; they are only parsed by the warning engine.
func (n *Network) UploadPPPs(actorID string, in ReadingInput) (asset.Reading, error) {
	if err := n.checkHalted(); err != nil {
		return asset.Reading{}, err
	}
	if err := n.validator.ValidateReading(in); err != nil {
		return asset.Reading{}, err
	}
	defer n.locks.lock(in.PatientID)()
	actor, err := n.pppsRequest(actorID, in.PatientID, uploadAction)
	if err != nil {
		return asset.Reading{}, err
	}
	at, err := physio.ParseCaptureTime(in.CapturedAt)
	if err != nil {
		return asset.Reading{}, err
	}

	r := in.reading()
	r.CapturedAt = at
	r.CreatedAt = time.Now().UTC()
	if err := n.store.Append(r); err != nil {
		return asset.Reading{}, err
	}

	fields := make([]string, 0, 6)
	for k := range r.Fields() {
		fields = append(fields, k)
	}
	_, err = n.record(ledger.KindUploadPPPs, actor.ID, asset.PPPsSeriesID(in.PatientID), map[string]string{
		"reading_id":  r.ID(),
		"captured_at": at.Format(time.RFC3339Nano),
		"fields":      joinSorted(fields),
		"digest":      r.Digest(),
	})
	if err != nil {
		return asset.Reading{}, err
	}
	return r, nil
}

// ReadPPPs returns the patient's readings in capture order and records
// the access.
func (n *Network) ReadPPPs(entityID, patientID string) ([]asset.Reading, error) {
	return n.ReadPPPsWindow(entityID, patientID, time.Time{}, time.Time{})
}

// ReadPPPsWindow returns the readings captured in [from, to). A zero from
// or to leaves that side open.
func (n *Network) ReadPPPsWindow(entityID, patientID string, from, to time.Time) ([]asset.Reading, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, errs.InvalidState("read ppps", patientID, "window start is not before its end")
	}
	defer n.locks.lock(patientID)()
	actor, err := n.pppsRequest(entityID, patientID, readAction)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{"total": strconv.Itoa(n.store.Count(patientID))}
	var readings []asset.Reading
	if from.IsZero() && to.IsZero() {
		readings = n.store.Readings(patientID)
	} else {
		end := to
		if end.IsZero() {
			end = time.Unix(1<<62, 0)
		}
		readings = n.store.Range(patientID, from, end)
		if !from.IsZero() {
			payload["from"] = from.UTC().Format(time.RFC3339Nano)
		}
		if !to.IsZero() {
			payload["to"] = to.UTC().Format(time.RFC3339Nano)
		}
	}
	payload["count"] = strconv.Itoa(len(readings))
	if _, err := n.record(ledger.KindAccessPPPs, actor.ID, asset.PPPsSeriesID(patientID), payload); err != nil {
		return nil, err
	}
	return readings, nil
}
