/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/HamedShams/agile-ingest/internal/domain"
)

// Store persists canonical documents by (partition, natural key).
type Store interface {
	// Upsert replaces the document with the same key or inserts it.
	Upsert(ctx context.Context, partition string, doc domain.Document) error
	// UpsertMany is unordered: a failing document does not stop the rest.
	// It returns how many documents were written and the joined errors.
	UpsertMany(ctx context.Context, partition string, docs []domain.Document) (int, error)
	// Delete reports whether a document was removed.
	Delete(ctx context.Context, partition, key string) (bool, error)
}

// MemoryStore keeps JSON bodies in maps. Used for tests and STORE=memory.
type MemoryStore struct {
	mu    sync.RWMutex
	parts map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{parts: map[string]map[string]json.RawMessage{}}
}

func (m *MemoryStore) Upsert(_ context.Context, partition string, doc domain.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.parts[partition]
	if p == nil {
		p = map[string]json.RawMessage{}
		m.parts[partition] = p
	}
	p[doc.Key()] = b
	return nil
}

func (m *MemoryStore) UpsertMany(ctx context.Context, partition string, docs []domain.Document) (int, error) {
	n := 0
	var errs []error
	for _, d := range docs {
		if err := m.Upsert(ctx, partition, d); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, joinErrs(errs)
}

func (m *MemoryStore) Delete(_ context.Context, partition, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.parts[partition]
	if _, ok := p[key]; !ok {
		return false, nil
	}
	delete(p, key)
	return true, nil
}

func (m *MemoryStore) Get(partition, key string) (json.RawMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.parts[partition][key]
	return b, ok
}

func (m *MemoryStore) Count(partition string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parts[partition])
}
