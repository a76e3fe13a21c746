package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same downgrade rules as the
// durable backends. Used by dry runs and tests; nothing survives the process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	locked  bool
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Lookup returns the entry for an invoice number, or nil if unseen.
func (s *MemoryStore) Lookup(ctx context.Context, invoiceNumber string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[invoiceNumber]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

// List returns entries filtered by status, newest first.
func (s *MemoryStore) List(ctx context.Context, status Status) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if status != "" && entry.Status != status {
			continue
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].InvoiceNumber < out[j].InvoiceNumber
	})
	return out, nil
}

// Record upserts the entry; submitted stays terminal.
func (s *MemoryStore) Record(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[entry.InvoiceNumber]; ok &&
		existing.Status == StatusSubmitted && entry.Status != StatusSubmitted {
		return nil
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	copied := entry
	s.entries[entry.InvoiceNumber] = &copied
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// LockRun implements RunLocker within the process.
func (s *MemoryStore) LockRun(ctx context.Context) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return nil, ErrLocked
	}
	s.locked = true
	return func() {
		s.mu.Lock()
		s.locked = false
		s.mu.Unlock()
	}, nil
}
