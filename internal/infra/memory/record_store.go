package memory

import (
	"context"
	"sync"

	"quiz-eval-service/internal/domain"
)

// RecordStore keeps evaluation records in per-collection slices. Useful for
// tests, demos and single-process runs without a database.
type RecordStore struct {
	mu          sync.RWMutex
	collections map[string][]domain.Record
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		collections: make(map[string][]domain.Record),
	}
}

func (s *RecordStore) Create(_ context.Context, d domain.Domain, rec domain.Record) error {
	collection := d.Collection()
	if collection == "" {
		return domain.ErrUnknownDomain
	}
	if rec.Domain == "" {
		rec.Domain = d
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], rec)
	return nil
}

func (s *RecordStore) Count(_ context.Context, d domain.Domain, correct bool) (int, error) {
	collection := d.Collection()
	if collection == "" {
		return 0, domain.ErrUnknownDomain
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.collections[collection] {
		if rec.CorrectBoolean == correct {
			n++
		}
	}
	return n, nil
}

func (s *RecordStore) ResponseTimes(_ context.Context, d domain.Domain) ([]int64, error) {
	collection := d.Collection()
	if collection == "" {
		return nil, domain.ErrUnknownDomain
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.collections[collection]
	times := make([]int64, 0, len(records))
	for _, rec := range records {
		times = append(times, rec.ResponseTimeMs)
	}
	return times, nil
}

// Records returns a copy of a collection, oldest first.
func (s *RecordStore) Records(d domain.Domain) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Record(nil), s.collections[d.Collection()]...)
}
