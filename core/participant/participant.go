package participant

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role tags a participant with its capability row in the access matrix.
type Role string

const (
	RoleAdmin              Role = "Admin"
	RoleSuperAdmin         Role = "SuperAdmin"
	RolePatient            Role = "Patient"
	RoleMedicalEntity      Role = "MedicalEntity"
	RoleEmergencyResponder Role = "EmergencyResponder"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleSuperAdmin, RolePatient, RoleMedicalEntity, RoleEmergencyResponder}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// IsAdmin is true for Admin and SuperAdmin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// PatientKind distinguishes admitted and ambulatory patients.
type PatientKind string

const (
	PatientIndoor  PatientKind = "indoor"
	PatientOutdoor PatientKind = "outdoor"
)

// Attributes holds the role-specific fields. Only the fields relevant to
// the participant's role are populated.
type Attributes struct {
	PatientKind    PatientKind `json:"patientKind,omitempty"`
	Designation    string      `json:"designation,omitempty"`
	Department     string      `json:"department,omitempty"`
	Specialization string      `json:"specialization,omitempty"`
}

// Participant is a registered actor. Identity, name and role are fixed
// once created; Attributes are mutable by administrators only.
type Participant struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Attributes   Attributes `json:"attributes"`
	RegisteredAt time.Time  `json:"registeredAt"`
}

// New builds a participant, assigning a random ID when id is empty.
func New(id, name string, role Role, attrs Attributes) (Participant, error) {
	if id == "" {
		id = uuid.NewString()
	}
	p := Participant{
		ID:           id,
		Name:         name,
		Role:         role,
		Attributes:   attrs,
		RegisteredAt: time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return Participant{}, err
	}
	return p, nil
}

// NewPatient is a convenience constructor for patients.
func NewPatient(id, name string, kind PatientKind) (Participant, error) {
	return New(id, name, RolePatient, Attributes{PatientKind: kind})
}

// NewMedicalEntity is a convenience constructor for clinical staff.
func NewMedicalEntity(id, name, designation, department string) (Participant, error) {
	return New(id, name, RoleMedicalEntity, Attributes{Designation: designation, Department: department})
}

// NewEmergencyResponder is a convenience constructor for responders.
func NewEmergencyResponder(id, name, specialization string) (Participant, error) {
	return New(id, name, RoleEmergencyResponder, Attributes{Specialization: specialization})
}

// NewAdmin is a convenience constructor for Admin and SuperAdmin.
func NewAdmin(id, name string, super bool) (Participant, error) {
	role := RoleAdmin
	if super {
		role = RoleSuperAdmin
	}
	return New(id, name, role, Attributes{})
}

// Validate checks the identity fields and the role-specific attributes.
func (p Participant) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("participant id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("participant %s: name is required", p.ID)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("participant %s: unknown role %q", p.ID, p.Role)
	}
	return p.Attributes.validateFor(p.Role)
}

func (a Attributes) validateFor(role Role) error {
	switch role {
	case RolePatient:
		if a.PatientKind != PatientIndoor && a.PatientKind != PatientOutdoor {
			return fmt.Errorf("patient kind must be %q or %q, got %q", PatientIndoor, PatientOutdoor, a.PatientKind)
		}
	case RoleMedicalEntity:
		if a.Designation == "" || a.Department == "" {
			return fmt.Errorf("medical entity requires designation and department")
		}
	case RoleEmergencyResponder:
		if a.Specialization == "" {
			return fmt.Errorf("emergency responder requires specialization")
		}
	}
	return nil
}

// WithAttributes returns a copy of p carrying attrs, validated for p's role.
func (p Participant) WithAttributes(attrs Attributes) (Participant, error) {
	if err := attrs.validateFor(p.Role); err != nil {
		return Participant{}, err
	}
	p.Attributes = attrs
	return p, nil
}

// Merge overlays the non-empty fields of update onto a.
func (a Attributes) Merge(update Attributes) Attributes {
	if update.PatientKind != "" {
		a.PatientKind = update.PatientKind
	}
	if update.Designation != "" {
		a.Designation = update.Designation
	}
	if update.Department != "" {
		a.Department = update.Department
	}
	if update.Specialization != "" {
		a.Specialization = update.Specialization
	}
	return a
}
