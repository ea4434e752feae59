package network

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"healthledger/core/access"
	"healthledger/core/asset"
	"healthledger/core/audit"
	"healthledger/core/errs"
	"healthledger/core/ledger"
	"healthledger/core/participant"
)

func (n *Network) auditOK(eventType, actor string, meta map[string]string) {
	n.audit.LogEvent(audit.AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		EntityID:  actor,
		Result:    "success",
		Metadata:  meta,
	})
}

// phiRequest resolves the actor and the PHI asset and asks for action.
func (n *Network) phiRequest(actorID, assetID string, action access.Action) (participant.Participant, *asset.PHI, error) {
	if err := n.checkHalted(); err != nil {
		return participant.Participant{}, nil, err
	}
	actor, err := n.participant(actorID)
	if err != nil {
		return participant.Participant{}, nil, err
	}
	phi, err := n.phi(assetID)
	if err != nil {
		return participant.Participant{}, nil, err
	}
	req := access.Request{Actor: actor, Kind: asset.KindPHI, Action: action, OwnerID: phi.Owner(), AssetID: phi.ID(), PHI: phi}
	if err := n.decide(req); err != nil {
		return participant.Participant{}, nil, err
	}
	return actor, phi, nil
}

// UploadPHI stores a patient's PHI. The patient uploads their own record
// or an administrator does so on their behalf. authorizingEntityID must be
// a registered medical entity; it and the patient form the initial
// authorized set. Only the record digest is written to the ledger.
func (n *Network) UploadPHI(actorID string, in PHIInput, authorizingEntityID string) (asset.PHIRecord, error) {
	if err := n.checkHalted(); err != nil {
		return asset.PHIRecord{}, err
	}
	if err := n.validator.ValidatePHI(in); err != nil {
		return asset.PHIRecord{}, err
	}
	actor, err := n.participant(actorID)
	if err != nil {
		return asset.PHIRecord{}, err
	}
	if _, err := n.patient(in.PatientID); err != nil {
		return asset.PHIRecord{}, err
	}
	defer n.locks.lock(in.PatientID)()

	assetID := asset.PHIAssetID(in.PatientID)
	if err := n.decide(access.Request{Actor: actor, Kind: asset.KindPHI, Action: access.ActionCreate, OwnerID: in.PatientID, AssetID: assetID}); err != nil {
		return asset.PHIRecord{}, err
	}
	authorizer, err := n.participant(authorizingEntityID)
	if err != nil {
		return asset.PHIRecord{}, err
	}
	if authorizer.Role != participant.RoleMedicalEntity {
		return asset.PHIRecord{}, errs.InvalidState("upload phi", authorizingEntityID, "authorizing entity is not a medical entity")
	}

	phi := asset.NewPHI(in.PatientID, in.Demographics, in.Conditions, in.Allergies, in.ReferringEntity)
	phi.Authorize(in.PatientID)
	phi.Authorize(authorizer.ID)

	if n.phiOf(in.PatientID) != nil {
		return asset.PHIRecord{}, errs.InvalidState("upload phi", assetID, "patient already has PHI on record")
	}

	// The patient lock keeps the slot free until the transaction is queued.
	_, err = n.record(ledger.KindUploadPHI, actor.ID, assetID, map[string]string{
		"patient_id":          in.PatientID,
		"authorizing_entity":  authorizer.ID,
		"digest":              phi.Digest(),
		"authorized_entities": strings.Join(phi.AuthorizedEntities(), ","),
	})
	if err != nil {
		return asset.PHIRecord{}, err
	}
	n.mu.Lock()
	n.phis[assetID] = phi
	n.mu.Unlock()
	n.log.Info("phi uploaded", zap.String("asset", assetID), zap.String("actor", actor.ID))
	return phi.Snapshot(), nil
}

// AccessPHI returns a snapshot of the record to an authorized reader and
// records the access.
func (n *Network) AccessPHI(entityID, assetID string) (asset.PHIRecord, error) {
	defer n.locks.lock(ownerOf(assetID))()
	actor, phi, err := n.phiRequest(entityID, assetID, access.ActionRead)
	if err != nil {
		return asset.PHIRecord{}, err
	}
	_, err = n.record(ledger.KindAccessPHI, actor.ID, assetID, map[string]string{
		"via":    n.accessPath(actor, phi),
		"digest": phi.Digest(),
	})
	if err != nil {
		return asset.PHIRecord{}, err
	}
	return phi.Snapshot(), nil
}

// accessPath names the rule under which actor was admitted.
func (n *Network) accessPath(actor participant.Participant, phi *asset.PHI) string {
	switch {
	case actor.Role.IsAdmin():
		return "admin"
	case actor.ID == phi.Owner():
		return "owner"
	case phi.HasAuthorized(actor.ID):
		return "authorized"
	default:
		return "emergency"
	}
}

// UpdatePHI applies field updates. See asset.PHI.ApplyUpdates for the
// accepted keys.
func (n *Network) UpdatePHI(actorID, assetID string, updates map[string]string) (asset.PHIRecord, error) {
	defer n.locks.lock(ownerOf(assetID))()
	actor, phi, err := n.phiRequest(actorID, assetID, access.ActionUpdate)
	if err != nil {
		return asset.PHIRecord{}, err
	}
	changed, err := phi.ApplyUpdates(updates)
	if err != nil {
		return asset.PHIRecord{}, err
	}
	_, err = n.record(ledger.KindUpdatePHI, actor.ID, assetID, map[string]string{
		"fields": strings.Join(changed, ","),
		"digest": phi.Digest(),
	})
	if err != nil {
		return asset.PHIRecord{}, err
	}
	return phi.Snapshot(), nil
}

// TransferRights moves standing authorization on a PHI record from one
// medical entity to another. The source loses access.
func (n *Network) TransferRights(fromID, toID, assetID string) (asset.PHIRecord, error) {
	if err := n.checkHalted(); err != nil {
		return asset.PHIRecord{}, err
	}
	defer n.locks.lock(ownerOf(assetID))()
	from, err := n.participant(fromID)
	if err != nil {
		return asset.PHIRecord{}, err
	}
	phi, err := n.phi(assetID)
	if err != nil {
		return asset.PHIRecord{}, err
	}
	if err := n.access.DecideTransfer(from, phi); err != nil {
		n.denyTransfer(from, assetID, err)
		return asset.PHIRecord{}, err
	}
	to, err := n.participant(toID)
	if err != nil {
		return asset.PHIRecord{}, err
	}
	if to.Role != participant.RoleMedicalEntity {
		return asset.PHIRecord{}, errs.InvalidState("transfer rights", toID, "recipient is not a medical entity")
	}
	if to.ID == from.ID {
		return asset.PHIRecord{}, errs.InvalidState("transfer rights", toID, "recipient is the current holder")
	}
	if phi.HasAuthorized(to.ID) {
		return asset.PHIRecord{}, errs.InvalidState("transfer rights", toID, "recipient already holds access")
	}

	if !phi.Move(from.ID, to.ID) {
		err := &errs.PermissionError{Actor: from.ID, Role: string(from.Role), Action: string(access.ActionTransfer), AssetID: assetID, Reason: "no longer in the authorized set"}
		n.denyTransfer(from, assetID, err)
		return asset.PHIRecord{}, err
	}
	_, err = n.record(ledger.KindTransferRights, from.ID, assetID, map[string]string{
		"from": from.ID,
		"to":   to.ID,
	})
	if err != nil {
		return asset.PHIRecord{}, err
	}
	n.auditOK(audit.EventRightsTransferred, from.ID, map[string]string{"asset": assetID, "to": to.ID})
	return phi.Snapshot(), nil
}

func (n *Network) denyTransfer(from participant.Participant, assetID string, err error) {
	n.audit.LogEvent(audit.AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: audit.EventAccessDenied,
		EntityID:  from.ID,
		Result:    "failure",
		Reason:    err.Error(),
		Metadata:  map[string]string{"action": string(access.ActionTransfer), "asset": assetID},
	})
}

// GrantAccess adds a medical entity to the authorized set. The owner
// patient or an administrator may grant. A transaction is recorded even
// when the entity already had access.
func (n *Network) GrantAccess(actorID, entityID, assetID string) error {
	return n.changeAccess(actorID, entityID, assetID, true)
}

// RevokeAccess removes a medical entity from the authorized set. The
// owning patient cannot be revoked.
func (n *Network) RevokeAccess(actorID, entityID, assetID string) error {
	return n.changeAccess(actorID, entityID, assetID, false)
}

func (n *Network) changeAccess(actorID, entityID, assetID string, grant bool) error {
	defer n.locks.lock(ownerOf(assetID))()
	actor, phi, err := n.phiRequest(actorID, assetID, access.ActionGrant)
	if err != nil {
		return err
	}
	entity, err := n.participant(entityID)
	if err != nil {
		return err
	}
	op, kind, event := "grant access", ledger.KindGrantAccess, audit.EventAccessGranted
	if !grant {
		op, kind, event = "revoke access", ledger.KindRevokeAccess, audit.EventAccessRevoked
	}
	if entity.Role != participant.RoleMedicalEntity {
		return errs.InvalidState(op, entityID, "only medical entities can be granted standing access")
	}

	var changed bool
	if grant {
		changed = n.access.GrantAccess(phi, entity.ID)
	} else {
		changed = n.access.RevokeAccess(phi, entity.ID)
	}
	_, err = n.record(kind, actor.ID, assetID, map[string]string{
		"entity":  entity.ID,
		"changed": strconv.FormatBool(changed),
	})
	if err != nil {
		return err
	}
	n.auditOK(event, actor.ID, map[string]string{"asset": assetID, "entity": entity.ID})
	return nil
}

// DeletePHI removes the record, its authorized set and any emergency
// grants for the patient. Ledger history is untouched.
func (n *Network) DeletePHI(actorID, assetID string) error {
	defer n.locks.lock(ownerOf(assetID))()
	actor, phi, err := n.phiRequest(actorID, assetID, access.ActionDelete)
	if err != nil {
		return err
	}
	n.mu.Lock()
	delete(n.phis, assetID)
	n.mu.Unlock()
	cleared := n.access.ClearEmergencies(phi.Owner())

	_, err = n.record(ledger.KindDeletePHI, actor.ID, assetID, map[string]string{
		"digest":              phi.Digest(),
		"cleared_emergencies": strconv.Itoa(cleared),
	})
	return err
}
