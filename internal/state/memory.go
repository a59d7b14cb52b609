package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eastgate/supplysync/internal/domain"
)

type MemoryStore struct {
	mu sync.RWMutex

	products map[string]domain.Product
	variants map[string]map[string]domain.Variant // pid -> variant id -> variant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]domain.Product),
		variants: make(map[string]map[string]domain.Variant),
	}
}

func (s *MemoryStore) BulkUpsertProducts(ctx context.Context, recs []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		if rec.ExternalID == "" {
			continue
		}
		if prev, ok := s.products[rec.ExternalID]; ok {
			// Upsert updates catalog fields; removal bookkeeping is owned by
			// MarkRemoved/ClearRemoval and survives a re-import.
			rec.RemovedAt = prev.RemovedAt
			rec.RemovedReason = prev.RemovedReason
		}
		s.products[rec.ExternalID] = rec
	}
	return nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, pid string) (domain.Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[pid]
	return p, ok, nil
}

func (s *MemoryStore) MarkRemoved(ctx context.Context, pid, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[pid]
	if !ok {
		p = domain.Product{ExternalID: pid}
	}
	t := now.UTC()
	p.Active = false
	p.SyncEnabled = false
	p.RemovedAt = &t
	p.RemovedReason = reason
	s.products[pid] = p
	return nil
}

func (s *MemoryStore) ClearRemoval(ctx context.Context, pid string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[pid]
	if !ok {
		return nil
	}
	t := now.UTC()
	p.Active = true
	p.RemovedAt = nil
	p.RemovedReason = ""
	p.LastSyncedAt = &t
	s.products[pid] = p
	return nil
}

func (s *MemoryStore) UpsertVariant(ctx context.Context, v domain.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.variants[v.ProductExternalID]
	if !ok {
		m = make(map[string]domain.Variant)
		s.variants[v.ProductExternalID] = m
	}
	m[v.ExternalVariantID] = v
	return nil
}

func (s *MemoryStore) ListVariants(ctx context.Context, pid string) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.variants[pid]
	out := make([]domain.Variant, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}

	// stable ordering for predictability
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExternalVariantID < out[j].ExternalVariantID
	})
	return out, nil
}
