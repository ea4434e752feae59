// Package physio keeps each patient's physiological readings as an
// append-only time series.
package physio

import (
	"sort"
	"sync"
	"time"

	"github.com/araddon/dateparse"

	"healthledger/core/asset"
	"healthledger/core/errs"
)

// Store maps patient IDs to readings ordered by capture time.
type Store struct {
	mu       sync.RWMutex
	readings map[string][]asset.Reading
}

func NewStore() *Store {
	return &Store{readings: make(map[string][]asset.Reading)}
}

// Append inserts r into its patient's series, keeping capture-time order.
// Readings with equal timestamps keep arrival order.
func (s *Store) Append(r asset.Reading) error {
	if r.PatientID == "" {
		return errs.InvalidState("append reading", "", "reading has no patient")
	}
	if r.CapturedAt.IsZero() {
		return errs.InvalidState("append reading", r.PatientID, "reading has no capture time")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.readings[r.PatientID]
	i := sort.Search(len(series), func(i int) bool { return series[i].CapturedAt.After(r.CapturedAt) })
	series = append(series, asset.Reading{})
	copy(series[i+1:], series[i:])
	series[i] = r
	s.readings[r.PatientID] = series
	return nil
}

// Readings returns a copy of the patient's series.
func (s *Store) Readings(patientID string) []asset.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]asset.Reading(nil), s.readings[patientID]...)
}

// Latest returns the most recent reading.
func (s *Store) Latest(patientID string) (asset.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.readings[patientID]
	if len(series) == 0 {
		return asset.Reading{}, errs.NotFound("readings", patientID)
	}
	return series[len(series)-1], nil
}

// Range returns readings captured in [from, to).
func (s *Store) Range(patientID string, from, to time.Time) []asset.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []asset.Reading
	for _, r := range s.readings[patientID] {
		if !r.CapturedAt.Before(from) && r.CapturedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out
}

// Count is the number of readings held for patientID.
func (s *Store) Count(patientID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings[patientID])
}

// ParseCaptureTime accepts the loose timestamp formats devices send
// ("2025-03-01 08:30", RFC3339, "03/01/2025 8:30 AM", epoch seconds).
// Values without a zone are taken as UTC. An empty string yields now.
func ParseCaptureTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, &errs.ParseError{Field: "captured_at", Raw: raw, Err: err}
	}
	return t.UTC(), nil
}
