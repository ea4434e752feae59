package asset

import (
	"sort"
	"strings"
	"sync"
	"time"

	"healthledger/core/errs"
)

// PHIAssetID derives the PHI asset identifier from the patient ID.
func PHIAssetID(patientID string) string {
	return patientID + "_PHI"
}

// Demographics are the identifying fields of a PHI record.
type Demographics struct {
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"date_of_birth"`
	Address     string `json:"address"`
	Contact     string `json:"contact"`
	Email       string `json:"email"`
}

// PHIRecord is a point-in-time copy of a PHI asset, safe to hand to callers.
type PHIRecord struct {
	Ownership
	AssetID            string            `json:"assetId"`
	Demographics       Demographics      `json:"demographics"`
	Conditions         map[string]string `json:"conditions"`
	Allergies          []string          `json:"allergies"`
	ReferringEntity    string            `json:"referringEntity"`
	AuthorizedEntities []string          `json:"authorizedEntities"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// PHI is the live PHI asset. The authorized-entities set and the record
// fields are guarded by a per-asset lock.
type PHI struct {
	mu              sync.RWMutex
	ownership       Ownership
	assetID         string
	demographics    Demographics
	conditions      map[string]string
	allergies       []string
	referringEntity string
	authorized      map[string]struct{}
	updatedAt       time.Time
}

// NewPHI creates the PHI asset for patientID with an empty authorized set.
func NewPHI(patientID string, d Demographics, conditions map[string]string, allergies []string, referringEntity string) *PHI {
	now := time.Now().UTC()
	return &PHI{
		ownership:       Ownership{PatientID: patientID, CreatedAt: now},
		assetID:         PHIAssetID(patientID),
		demographics:    d,
		conditions:      copyMap(conditions),
		allergies:       orderedSet(allergies),
		referringEntity: referringEntity,
		authorized:      make(map[string]struct{}),
		updatedAt:       now,
	}
}

func (p *PHI) Kind() Kind    { return KindPHI }
func (p *PHI) ID() string    { return p.assetID }
func (p *PHI) Owner() string { return p.ownership.PatientID }
func (p *PHI) isAsset()      {}

// Authorize adds entityID to the authorized set. It reports whether the
// set changed.
func (p *PHI) Authorize(entityID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.authorized[entityID]; ok {
		return false
	}
	p.authorized[entityID] = struct{}{}
	return true
}

// Deauthorize removes entityID from the authorized set. It reports
// whether the set changed.
func (p *PHI) Deauthorize(entityID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.authorized[entityID]; !ok {
		return false
	}
	delete(p.authorized, entityID)
	return true
}

// Move transfers membership from one entity to another under a single
// lock acquisition, so no reader observes the intermediate state. It does
// nothing and returns false unless from is a member and to is not.
func (p *PHI) Move(from, to string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if from == to {
		return false
	}
	if _, ok := p.authorized[from]; !ok {
		return false
	}
	if _, ok := p.authorized[to]; ok {
		return false
	}
	delete(p.authorized, from)
	p.authorized[to] = struct{}{}
	return true
}

// HasAuthorized reports set membership.
func (p *PHI) HasAuthorized(entityID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.authorized[entityID]
	return ok
}

// AuthorizedEntities returns the set members in sorted order.
func (p *PHI) AuthorizedEntities() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedKeys(p.authorized)
}

// Snapshot copies the current state.
func (p *PHI) Snapshot() PHIRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PHIRecord{
		Ownership:          p.ownership,
		AssetID:            p.assetID,
		Demographics:       p.demographics,
		Conditions:         copyMap(p.conditions),
		Allergies:          append([]string(nil), p.allergies...),
		ReferringEntity:    p.referringEntity,
		AuthorizedEntities: sortedKeys(p.authorized),
		UpdatedAt:          p.updatedAt,
	}
}

// Digest fingerprints the medical content, excluding access state and
// timestamps. Ledger transactions carry this instead of the record.
func (p *PHI) Digest() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return digest(struct {
		AssetID         string            `json:"assetId"`
		Demographics    Demographics      `json:"demographics"`
		Conditions      map[string]string `json:"conditions"`
		Allergies       []string          `json:"allergies"`
		ReferringEntity string            `json:"referringEntity"`
	}{p.assetID, p.demographics, p.conditions, p.allergies, p.referringEntity})
}

// Update field names accepted by ApplyUpdates. Conditions are addressed
// as "condition.<name>"; an empty value removes the condition.
const (
	FieldName            = "name"
	FieldGender          = "gender"
	FieldDateOfBirth     = "date_of_birth"
	FieldAddress         = "address"
	FieldContact         = "contact"
	FieldEmail           = "email"
	FieldReferringEntity = "referring_entity"
	FieldAllergies       = "allergies"
	ConditionPrefix      = "condition."
)

// ApplyUpdates validates every key before mutating anything and returns
// the sorted list of updated field names. Allergies are given as a comma
// separated list that replaces the current set.
func (p *PHI) ApplyUpdates(updates map[string]string) ([]string, error) {
	var problems []string
	for k := range updates {
		if !isUpdatableField(k) {
			problems = append(problems, "unknown field "+k)
		}
	}
	if len(updates) == 0 {
		problems = append(problems, "no fields to update")
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &errs.ValidationError{Subject: "phi update", Problems: problems}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fields := make([]string, 0, len(updates))
	for k, v := range updates {
		switch k {
		case FieldName:
			p.demographics.Name = v
		case FieldGender:
			p.demographics.Gender = v
		case FieldDateOfBirth:
			p.demographics.DateOfBirth = v
		case FieldAddress:
			p.demographics.Address = v
		case FieldContact:
			p.demographics.Contact = v
		case FieldEmail:
			p.demographics.Email = v
		case FieldReferringEntity:
			p.referringEntity = v
		case FieldAllergies:
			p.allergies = orderedSet(strings.Split(v, ","))
		default:
			name := strings.TrimPrefix(k, ConditionPrefix)
			if v == "" {
				delete(p.conditions, name)
			} else {
				p.conditions[name] = v
			}
		}
		fields = append(fields, k)
	}
	p.updatedAt = time.Now().UTC()
	sort.Strings(fields)
	return fields, nil
}

func isUpdatableField(k string) bool {
	switch k {
	case FieldName, FieldGender, FieldDateOfBirth, FieldAddress, FieldContact, FieldEmail, FieldReferringEntity, FieldAllergies:
		return true
	}
	return strings.HasPrefix(k, ConditionPrefix) && len(k) > len(ConditionPrefix)
}

// orderedSet trims entries and drops blanks and repeats, keeping the
// first occurrence.
func orderedSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
