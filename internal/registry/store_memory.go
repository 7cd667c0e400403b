package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"veridoc/internal/domain"
)

// InMemoryStore mirrors both uniqueness rules of the persistent store so
// unit tests exercise the same idempotency guarantees.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.RegistryRecord // keyed by record ID
	clock   func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]domain.RegistryRecord),
		clock:   time.Now,
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, rec domain.RegistryRecord) (domain.RegistryRecord, UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()

	if rec.NaturalKey != "" {
		if existing, ok := s.findByNaturalKeyLocked(rec.IssuerID, rec.Lane, rec.NaturalKey); ok {
			existing.ContentHash = rec.ContentHash
			existing.EmbeddedHash = rec.EmbeddedHash
			existing.Location = rec.Location
			existing.SizeBytes = rec.SizeBytes
			existing.Category = rec.Category
			existing.UpdatedAt = now
			s.records[existing.ID] = existing
			return existing, OutcomeUpdated, nil
		}
		return s.insertLocked(rec, now), OutcomeInserted, nil
	}

	for _, existing := range s.records {
		if existing.ContentHash == rec.ContentHash {
			existing.UpdatedAt = now
			s.records[existing.ID] = existing
			return existing, OutcomeCollapsed, nil
		}
	}
	return s.insertLocked(rec, now), OutcomeInserted, nil
}

func (s *InMemoryStore) insertLocked(rec domain.RegistryRecord, now time.Time) domain.RegistryRecord {
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = rec
	return rec
}

func (s *InMemoryStore) FindByNaturalKey(_ context.Context, issuerID string, lane domain.Lane, naturalKey string) (domain.RegistryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.findByNaturalKeyLocked(issuerID, lane, naturalKey); ok {
		return rec, nil
	}
	return domain.RegistryRecord{}, ErrNotFound
}

func (s *InMemoryStore) FindByContentHash(_ context.Context, hash domain.ContentHash) (domain.RegistryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ContentHash == hash {
			return rec, nil
		}
	}
	return domain.RegistryRecord{}, ErrNotFound
}

func (s *InMemoryStore) FindByEmbeddedHash(_ context.Context, hash domain.ContentHash) (domain.RegistryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.EmbeddedHash == hash {
			return rec, nil
		}
	}
	return domain.RegistryRecord{}, ErrNotFound
}

func (s *InMemoryStore) findByNaturalKeyLocked(issuerID string, lane domain.Lane, naturalKey string) (domain.RegistryRecord, bool) {
	for _, rec := range s.records {
		if rec.IssuerID == issuerID && rec.Lane == lane && rec.NaturalKey == naturalKey && rec.NaturalKey != "" {
			return rec, true
		}
	}
	return domain.RegistryRecord{}, false
}

// Len reports the number of stored records, for idempotency assertions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
