package blobstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"veridoc/internal/domain"
)

type memObject struct {
	data     []byte
	modified time.Time
}

// InMemoryStore is the development and test blob backend. Signed links are
// HS256 tokens minted by the LinkSigner; lane isolation holds because the
// bucket name is part of every key and every token.
type InMemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]memObject
	signer  *LinkSigner
	now     func() time.Time
}

func NewInMemoryStore(signer *LinkSigner) *InMemoryStore {
	return &InMemoryStore{
		buckets: make(map[string]map[string]memObject),
		signer:  signer,
		now:     time.Now,
	}
}

func (s *InMemoryStore) Upload(_ context.Context, loc domain.StorageLocation, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[loc.Bucket]
	if !ok {
		bucket = make(map[string]memObject)
		s.buckets[loc.Bucket] = bucket
	}
	bucket[loc.Path] = memObject{data: append([]byte(nil), data...), modified: s.now()}
	return nil
}

func (s *InMemoryStore) SignedURL(_ context.Context, loc domain.StorageLocation, ttl time.Duration) (domain.ResolvedLink, error) {
	s.mu.RLock()
	_, exists := s.buckets[loc.Bucket][loc.Path]
	s.mu.RUnlock()
	if !exists {
		return domain.ResolvedLink{}, ErrObjectNotFound
	}
	now := s.now()
	token, err := s.signer.Sign(loc, ttl, now)
	if err != nil {
		return domain.ResolvedLink{}, err
	}
	return domain.ResolvedLink{
		URL:       fmt.Sprintf("local://object?token=%s", token),
		Location:  loc,
		ExpiresAt: now.Add(ttl),
	}, nil
}

func (s *InMemoryStore) List(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ObjectInfo
	for path, obj := range s.buckets[bucket] {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		out = append(out, ObjectInfo{
			Key:          path,
			SizeBytes:    int64(len(obj.data)),
			LastModified: obj.modified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get returns stored bytes, for tests and the local retrieval endpoint.
func (s *InMemoryStore) Get(_ context.Context, loc domain.StorageLocation) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.buckets[loc.Bucket][loc.Path]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// SetModified backdates an object, used by tests that exercise the
// most-recently-modified fallback preference.
func (s *InMemoryStore) SetModified(loc domain.StorageLocation, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.buckets[loc.Bucket][loc.Path]; ok {
		obj.modified = at
		s.buckets[loc.Bucket][loc.Path] = obj
	}
}
