package inmemdb

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"

	"github.com/trezcool/ilmlab/core"
)

type (
	// DocumentStore keeps documents in memory. It is safe for concurrent use.
	DocumentStore struct {
		mutex       sync.RWMutex
		collections map[string]collection
	}

	collection map[string]map[string]json.RawMessage // {id: fields}
)

// interface compliance checks
var (
	_ core.DocumentStore  = (*DocumentStore)(nil)
	_ core.DocumentRanker = (*DocumentStore)(nil)
)

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{collections: make(map[string]collection)}
}

func copyFields(fields map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func (s *DocumentStore) Get(_ context.Context, coll, id string) (core.Document, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	fields, ok := s.collections[coll][id]
	if !ok {
		return core.Document{}, core.ErrDocumentNotFound
	}
	return core.Document{ID: id, Fields: copyFields(fields)}, nil
}

func (s *DocumentStore) Set(_ context.Context, coll, id string, fields core.Fields, opts core.SetOptions) error {
	encoded, err := core.EncodeFields(fields)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	c, ok := s.collections[coll]
	if !ok {
		c = make(collection)
		s.collections[coll] = c
	}
	c[id] = core.MergeFields(c[id], encoded, opts.Merge)
	return nil
}

func (s *DocumentStore) Update(_ context.Context, coll, id string, fields core.Fields) error {
	encoded, err := core.EncodeFields(fields)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.collections[coll][id]
	if !ok {
		return core.ErrDocumentNotFound
	}
	s.collections[coll][id] = core.MergeFields(current, encoded, true)
	return nil
}

// Rank skips documents whose field is missing or not a number.
func (s *DocumentStore) Rank(_ context.Context, coll, field string, limit int) ([]core.Document, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	type ranked struct {
		doc   core.Document
		value float64
	}
	all := make([]ranked, 0, len(s.collections[coll]))
	for id, fields := range s.collections[coll] {
		v := core.ParseNumber(fields[field])
		if math.IsNaN(v) {
			continue
		}
		all = append(all, ranked{doc: core.Document{ID: id, Fields: copyFields(fields)}, value: v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].value != all[j].value {
			return all[i].value > all[j].value
		}
		return all[i].doc.ID < all[j].doc.ID
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	docs := make([]core.Document, 0, len(all))
	for _, r := range all {
		docs = append(docs, r.doc)
	}
	return docs, nil
}

// Len returns the number of documents in a collection.
func (s *DocumentStore) Len(coll string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.collections[coll])
}
