package store

import (
	"context"
	"strings"
	"sync"

	"github.com/placescout/api/internal/model"
	"github.com/placescout/api/internal/search"
)

type businessKey struct {
	jobID    string
	provider model.Provider
	placeID  string
}

// MemoryBusinessStore keeps business records in process memory. Used when no
// database is configured.
type MemoryBusinessStore struct {
	mu      sync.RWMutex
	records []*model.BusinessRecord
	keys    map[businessKey]struct{}
}

func NewMemoryBusinessStore() *MemoryBusinessStore {
	return &MemoryBusinessStore{keys: make(map[businessKey]struct{})}
}

func (s *MemoryBusinessStore) InsertIfAbsent(_ context.Context, rec *model.BusinessRecord) (bool, error) {
	key := businessKey{jobID: rec.JobID, provider: rec.Candidate.Provider, placeID: rec.Candidate.PlaceID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Candidate.PlaceID != "" {
		if _, ok := s.keys[key]; ok {
			return false, nil
		}
		s.keys[key] = struct{}{}
	}
	cp := *rec
	s.records = append(s.records, &cp)
	return true, nil
}

func (s *MemoryBusinessStore) ExistsByPhone(_ context.Context, jobID, phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.JobID == jobID && r.Candidate.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryBusinessStore) ExistsNearWithName(_ context.Context, jobID string, p model.Point, meters float64, name string, threshold float64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		loc := r.Candidate.Location
		if r.JobID != jobID || loc == nil {
			continue
		}
		if search.DistanceMeters(*loc, p) > meters {
			continue
		}
		if strings.EqualFold(r.Candidate.Name, name) || search.TrigramSimilarity(r.Candidate.Name, name) > threshold {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryBusinessStore) CountByJob(_ context.Context, jobID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if r.JobID == jobID {
			n++
		}
	}
	return n, nil
}

// ListByJob returns the records of a job in insertion order
func (s *MemoryBusinessStore) ListByJob(_ context.Context, jobID string) ([]model.BusinessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.BusinessRecord
	for _, r := range s.records {
		if r.JobID == jobID {
			out = append(out, *r)
		}
	}
	return out, nil
}
