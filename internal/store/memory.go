package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryBackend implements Backend with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[recordKey]Record
	applies int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[recordKey]Record),
	}
}

func (b *MemoryBackend) Load(_ context.Context, kind Kind, id string) (Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.records[recordKey{kind, id}]
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (b *MemoryBackend) Scan(_ context.Context, kind Kind, parent string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Record
	for k, rec := range b.records {
		if k.kind == kind && rec.Parent == parent {
			out = append(out, cloneRecord(rec))
		}
	}
	sortRecords(out)
	return out, nil
}

// Apply upserts the batch under a single lock, so readers never observe
// half of it.
func (b *MemoryBackend) Apply(_ context.Context, records []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, rec := range records {
		b.records[recordKey{rec.Kind, rec.ID}] = cloneRecord(rec)
	}
	b.applies++
	return nil
}

// Len returns the number of stored records.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Applies returns the number of batches applied so far.
func (b *MemoryBackend) Applies() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.applies
}

// Dump returns every stored record ordered by kind, parent, seq and id.
func (b *MemoryBackend) Dump() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Record, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, cloneRecord(rec))
	}
	slices.SortFunc(out, func(x, y Record) int {
		if x.Kind != y.Kind {
			if x.Kind < y.Kind {
				return -1
			}
			return 1
		}
		if x.Parent != y.Parent {
			if x.Parent < y.Parent {
				return -1
			}
			return 1
		}
		return compareSeq(x, y)
	})
	return out
}

func cloneRecord(r Record) Record {
	r.Body = slices.Clone(r.Body)
	return r
}

func sortRecords(recs []Record) {
	slices.SortFunc(recs, compareSeq)
}

func compareSeq(x, y Record) int {
	switch {
	case x.Seq < y.Seq:
		return -1
	case x.Seq > y.Seq:
		return 1
	case x.ID < y.ID:
		return -1
	case x.ID > y.ID:
		return 1
	}
	return 0
}
