/*
Package memory provides the in-memory invoice Store.

PURPOSE:
  The authoritative reference model of the storage contract, used by
  tests and development servers. All four structures (live set, indices,
  history log, tracking log) live behind one RWMutex, so every Apply and
  Retire is trivially atomic: a reader either sees the whole mutation or
  none of it.

ORDERING:
  The live set keeps an explicit insertion-order slice; index buckets
  keep ids in the order they entered the bucket. Both survive updates
  (an updated record keeps its original position).

SEE ALSO:
  - invoice/store.go: the contract this implements
  - store/sqlite, store/postgres: persistent implementations
*/
package memory

import (
	"context"
	"sync"

	"github.com/warp/invoice-ledger/invoice"
)

// Store implements invoice.Store in memory.
type Store struct {
	mu       sync.RWMutex
	records  map[string]invoice.Invoice
	order    []string // live-set insertion order
	history  map[string][]invoice.Invoice
	tracking map[string][]invoice.TrackingEvent

	byTxnHash    map[string][]string
	byEmailHash  map[string][]string
	byMobileHash map[string][]string

	count int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:      make(map[string]invoice.Invoice),
		history:      make(map[string][]invoice.Invoice),
		tracking:     make(map[string][]invoice.TrackingEvent),
		byTxnHash:    make(map[string][]string),
		byEmailHash:  make(map[string][]string),
		byMobileHash: make(map[string][]string),
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

func (s *Store) Apply(_ context.Context, inv invoice.Invoice, events ...invoice.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := inv.MongoID
	prev, exists := s.records[id]
	if exists {
		// Re-key index buckets that changed between versions. The
		// settlement hash rotates on every mutation; the vendor hashes
		// are immutable but handled uniformly.
		if prev.TxnHash != inv.TxnHash {
			removeID(s.byTxnHash, prev.TxnHash, id)
		}
		if prev.VendorEmailHash != inv.VendorEmailHash {
			removeID(s.byEmailHash, prev.VendorEmailHash, id)
		}
		if prev.VendorMobileHash != inv.VendorMobileHash {
			removeID(s.byMobileHash, prev.VendorMobileHash, id)
		}
	} else {
		s.order = append(s.order, id)
		s.count++
	}

	s.records[id] = inv.Clone()
	addID(s.byTxnHash, inv.TxnHash, id)
	addID(s.byEmailHash, inv.VendorEmailHash, id)
	addID(s.byMobileHash, inv.VendorMobileHash, id)

	s.history[id] = append(s.history[id], inv.Clone())
	for _, e := range events {
		s.tracking[id] = append(s.tracking[id], e)
	}
	return nil
}

func (s *Store) Retire(_ context.Context, inv invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := inv.MongoID
	s.history[id] = append(s.history[id], inv.Clone())

	prev, exists := s.records[id]
	if !exists {
		return nil
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	removeID(s.byTxnHash, prev.TxnHash, id)
	removeID(s.byEmailHash, prev.VendorEmailHash, id)
	removeID(s.byMobileHash, prev.VendorMobileHash, id)
	s.count--
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) Get(_ context.Context, mongoID string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.records[mongoID]
	if !ok {
		return nil, nil
	}
	out := inv.Clone()
	return &out, nil
}

func (s *Store) All(_ context.Context) ([]invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]invoice.Invoice, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}

func (s *Store) History(_ context.Context, mongoID string) ([]invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.history[mongoID]
	out := make([]invoice.Invoice, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Clone())
	}
	return out, nil
}

func (s *Store) TrackingEvents(_ context.Context, mongoID string) ([]invoice.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]invoice.TrackingEvent(nil), s.tracking[mongoID]...), nil
}

func (s *Store) ByTxnHash(_ context.Context, hash string) ([]invoice.Invoice, error) {
	return s.collect(s.byTxnHash, hash)
}

func (s *Store) ByVendorEmailHash(_ context.Context, hash string) ([]invoice.Invoice, error) {
	return s.collect(s.byEmailHash, hash)
}

func (s *Store) ByVendorMobileHash(_ context.Context, hash string) ([]invoice.Invoice, error) {
	return s.collect(s.byMobileHash, hash)
}

func (s *Store) collect(index map[string][]string, hash string) ([]invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := index[hash]
	out := make([]invoice.Invoice, 0, len(ids))
	for _, id := range ids {
		if inv, ok := s.records[id]; ok {
			out = append(out, inv.Clone())
		}
	}
	return out, nil
}

// =============================================================================
// INDEX HELPERS
// =============================================================================

func addID(index map[string][]string, key, id string) {
	if key == "" {
		return
	}
	for _, existing := range index[key] {
		if existing == id {
			return
		}
	}
	index[key] = append(index[key], id)
}

func removeID(index map[string][]string, key, id string) {
	ids := index[key]
	for i, existing := range ids {
		if existing == id {
			index[key] = append(ids[:i], ids[i+1:]...)
			if len(index[key]) == 0 {
				delete(index, key)
			}
			return
		}
	}
}
