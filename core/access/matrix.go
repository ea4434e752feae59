package access

import (
	"healthledger/core/asset"
	"healthledger/core/participant"
)

// Action is an operation class in the role matrix.
type Action string

const (
	ActionCreate    Action = "CREATE"
	ActionRead      Action = "READ"
	ActionUpdate    Action = "UPDATE"
	ActionDelete    Action = "DELETE"
	ActionGrant     Action = "GRANT"
	ActionEmergency Action = "EMERGENCY"

	// ActionTransfer is decided outside the matrix by DecideTransfer.
	ActionTransfer Action = "TRANSFER"
)

type actionSet map[Action]struct{}

func actions(as ...Action) actionSet {
	s := make(actionSet, len(as))
	for _, a := range as {
		s[a] = struct{}{}
	}
	return s
}

type row map[asset.Kind]actionSet

// extend returns a copy of r with extra entries merged in.
func (r row) extend(extra row) row {
	out := make(row, len(r))
	for kind, set := range r {
		merged := make(actionSet, len(set))
		for a := range set {
			merged[a] = struct{}{}
		}
		out[kind] = merged
	}
	for kind, set := range extra {
		if out[kind] == nil {
			out[kind] = make(actionSet, len(set))
		}
		for a := range set {
			out[kind][a] = struct{}{}
		}
	}
	return out
}

var adminRow = row{
	asset.KindPHI:         actions(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionGrant, ActionEmergency),
	asset.KindPPPs:        actions(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
	asset.KindParticipant: actions(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
}

var matrix = map[participant.Role]row{
	participant.RoleAdmin: adminRow,
	participant.RoleSuperAdmin: adminRow.extend(row{
		asset.KindParticipant: actions(ActionGrant),
	}),
	participant.RolePatient: {
		asset.KindPHI:  actions(ActionCreate, ActionRead, ActionGrant, ActionEmergency),
		asset.KindPPPs: actions(ActionCreate, ActionRead),
	},
	participant.RoleMedicalEntity: {
		asset.KindPHI:  actions(ActionRead, ActionEmergency),
		asset.KindPPPs: actions(ActionRead, ActionUpdate),
	},
	participant.RoleEmergencyResponder: {
		asset.KindPHI:  actions(ActionRead),
		asset.KindPPPs: actions(ActionRead),
	},
}

// CheckPermission is the static matrix lookup. It knows nothing about
// ownership or grants.
func CheckPermission(role participant.Role, kind asset.Kind, action Action) bool {
	r, ok := matrix[role]
	if !ok {
		return false
	}
	_, ok = r[kind][action]
	return ok
}
