package network

import (
	"time"

	"go.uber.org/zap"

	"healthledger/core/access"
	"healthledger/core/asset"
	"healthledger/core/audit"
	"healthledger/core/errs"
	"healthledger/core/ledger"
	"healthledger/core/notify"
	"healthledger/core/participant"
)

// emergencyRequest authorizes actor to declare or end an emergency for
// patientID and checks that every responder is a registered emergency
// responder.
func (n *Network) emergencyRequest(op, actorID, patientID string, responderIDs []string) (participant.Participant, error) {
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
		Kind:    asset.KindPHI,
		Action:  access.ActionEmergency,
		OwnerID: patientID,
		AssetID: asset.PHIAssetID(patientID),
		PHI:     n.phiOf(patientID),
	}
	if err := n.decide(req); err != nil {
		return participant.Participant{}, err
	}
	if len(responderIDs) == 0 {
		return participant.Participant{}, errs.InvalidState(op, patientID, "no responders named")
	}
	for _, id := range responderIDs {
		r, err := n.participant(id)
		if err != nil {
			return participant.Participant{}, err
		}
		if r.Role != participant.RoleEmergencyResponder {
			return participant.Participant{}, errs.InvalidState(op, id, "participant is not an emergency responder")
		}
	}
	return actor, nil
}

// TriggerEmergency gives each responder temporary read access to the
// patient's records. The PHI authorized set is left untouched.
func (n *Network) TriggerEmergency(actorID, patientID string, responderIDs []string) ([]access.Grant, error) {
	defer n.locks.lock(patientID)()
	actor, err := n.emergencyRequest("trigger emergency", actorID, patientID, responderIDs)
	if err != nil {
		return nil, err
	}
	grants, err := n.access.TriggerEmergency(patientID, actor.ID, responderIDs)
	if err != nil {
		return nil, err
	}
	ids := grantResponders(grants)
	payload := map[string]string{"responders": joinSorted(ids)}
	if exp := grants[0].ExpiresAt; !exp.IsZero() {
		payload["expires_at"] = exp.Format(time.RFC3339Nano)
	}
	tx, err := n.record(ledger.KindEmergencyTriggered, actor.ID, asset.PHIAssetID(patientID), payload)
	if err != nil {
		return nil, err
	}
	n.auditOK(audit.EventEmergency, actor.ID, map[string]string{"patient": patientID, "state": "triggered", "responders": payload["responders"]})
	for _, id := range ids {
		n.notifier.Notify(notify.Notification{Type: notify.NotifyEmergency, Recipient: id, PatientID: patientID, TxID: tx.TxID, Reason: "emergency access granted"})
	}
	n.notifier.Notify(notify.Notification{Type: notify.NotifyEmergency, Recipient: patientID, PatientID: patientID, TxID: tx.TxID, Reason: "emergency declared"})
	n.log.Warn("emergency triggered", zap.String("patient", patientID), zap.Strings("responders", ids))
	return grants, nil
}

// ResolveEmergency withdraws the responders' emergency access.
func (n *Network) ResolveEmergency(actorID, patientID string, responderIDs []string) ([]access.Grant, error) {
	defer n.locks.lock(patientID)()
	actor, err := n.emergencyRequest("resolve emergency", actorID, patientID, responderIDs)
	if err != nil {
		return nil, err
	}
	grants, err := n.access.ResolveEmergency(patientID, responderIDs)
	if err != nil {
		return nil, err
	}
	ids := grantResponders(grants)
	tx, err := n.record(ledger.KindEmergencyResolved, actor.ID, asset.PHIAssetID(patientID), map[string]string{
		"responders": joinSorted(ids),
	})
	if err != nil {
		return nil, err
	}
	n.auditOK(audit.EventEmergency, actor.ID, map[string]string{"patient": patientID, "state": "resolved", "responders": joinSorted(ids)})
	for _, id := range ids {
		n.notifier.Notify(notify.Notification{Type: notify.NotifyEmergency, Recipient: id, PatientID: patientID, TxID: tx.TxID, Reason: "emergency access withdrawn"})
	}
	n.log.Info("emergency resolved", zap.String("patient", patientID), zap.Strings("responders", ids))
	return grants, nil
}

// ActiveEmergencies lists unexpired grants for the patient.
func (n *Network) ActiveEmergencies(patientID string) []access.Grant {
	return n.access.ActiveEmergencies(patientID)
}

func grantResponders(grants []access.Grant) []string {
	ids := make([]string, len(grants))
	for i, g := range grants {
		ids[i] = g.ResponderID
	}
	return ids
}
