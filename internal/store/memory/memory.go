// Package memory provides an in-memory document store for tests and local
// development. It mirrors the postgres store's observable behavior: assigned
// IDs and timestamps, sentinel errors, uniqueness constraints and per
// collection change streams.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chirag4452/sportsclub-core/internal/store"
)

const streamBuffer = 128

// UniqueIndex declares a uniqueness constraint over payload fields, scoped
// by optional equality conditions. Matches the partial unique index the
// postgres migration creates for scheduled sessions.
type UniqueIndex struct {
	Collection string
	Fields     []string
	Where      map[string]string
}

// Hooks inject failures ahead of store operations, for tests. A hook runs
// with the store lock held and must not call back into the store.
type Hooks struct {
	BeforeQuery  func(collection string, q store.Query) error
	BeforeCreate func(collection string, payload map[string]any) error
	BeforeUpdate func(collection, id string, patch map[string]any) error
}

// Store is an in-memory store.Client.
type Store struct {
	mu      sync.RWMutex
	docs    map[string]map[string]store.Document
	streams map[string][]*stream
	indexes []UniqueIndex
	hooks   Hooks
	closed  bool
	now     func() time.Time
}

// Option adjusts a Store.
type Option func(*Store)

// WithUniqueIndex registers a uniqueness constraint.
func WithUniqueIndex(idx UniqueIndex) Option {
	return func(s *Store) { s.indexes = append(s.indexes, idx) }
}

// WithClock replaces the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:    make(map[string]map[string]store.Document),
		streams: make(map[string][]*stream),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetHooks installs failure-injection hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// Query returns documents matching all filters, ordered and limited.
func (s *Store) Query(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	if s.hooks.BeforeQuery != nil {
		if err := s.hooks.BeforeQuery(collection, q); err != nil {
			return nil, err
		}
	}

	type row struct {
		doc     store.Document
		payload map[string]any
	}
	rows := make([]row, 0)
	for _, doc := range s.docs[collection] {
		payload, err := decodePayload(doc.Data)
		if err != nil {
			return nil, err
		}
		if matchesAll(payload, q.Filters) {
			rows = append(rows, row{doc: doc, payload: payload})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		for _, field := range q.OrderBy {
			a, b := fieldString(rows[i].payload, field), fieldString(rows[j].payload, field)
			if a != b {
				if q.Descending {
					return a > b
				}
				return a < b
			}
		}
		if !rows[i].doc.CreatedAt.Equal(rows[j].doc.CreatedAt) {
			if q.Descending {
				return rows[i].doc.CreatedAt.After(rows[j].doc.CreatedAt)
			}
			return rows[i].doc.CreatedAt.Before(rows[j].doc.CreatedAt)
		}
		return rows[i].doc.ID < rows[j].doc.ID
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]store.Document, len(rows))
	for i, r := range rows {
		out[i] = cloneDocument(r.doc)
	}
	return out, nil
}

// Create stores a new document, assigning ID and timestamps. Violating a
// registered unique index returns store.ErrConflict.
func (s *Store) Create(ctx context.Context, collection string, v any) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	data, payload, err := encodePayload(v)
	if err != nil {
		return store.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.Document{}, store.ErrClosed
	}
	if s.hooks.BeforeCreate != nil {
		if err := s.hooks.BeforeCreate(collection, payload); err != nil {
			return store.Document{}, err
		}
	}
	if err := s.checkUnique(collection, payload, ""); err != nil {
		return store.Document{}, err
	}

	now := s.now()
	doc := store.Document{
		ID:        uuid.NewString(),
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]store.Document)
	}
	s.docs[collection][doc.ID] = doc

	s.emit(collection, store.EventCreate, doc)
	return cloneDocument(doc), nil
}

// Update merges a top-level patch into an existing document's payload.
func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.Document{}, store.ErrClosed
	}
	doc, ok := s.docs[collection][id]
	if !ok {
		return store.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	if s.hooks.BeforeUpdate != nil {
		if err := s.hooks.BeforeUpdate(collection, id, patch); err != nil {
			return store.Document{}, err
		}
	}

	payload, err := decodePayload(doc.Data)
	if err != nil {
		return store.Document{}, err
	}
	for k, v := range patch {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}
	if err := s.checkUnique(collection, payload, id); err != nil {
		return store.Document{}, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return store.Document{}, err
	}
	doc.Data = data
	doc.UpdatedAt = s.now()
	s.docs[collection][id] = doc

	s.emit(collection, store.EventUpdate, doc)
	return cloneDocument(doc), nil
}

// Delete removes a document. Not part of store.Client; exists so tests and
// local tooling can produce delete change events.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	doc, ok := s.docs[collection][id]
	if !ok {
		return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
	}
	delete(s.docs[collection], id)

	s.emit(collection, store.EventDelete, doc)
	return nil
}

// Changes opens a change stream for one collection.
func (s *Store) Changes(ctx context.Context, collection string) (store.ChangeStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	st := &stream{
		owner:      s,
		collection: collection,
		ch:         make(chan store.ChangeEvent, streamBuffer),
	}
	s.streams[collection] = append(s.streams[collection], st)
	return st, nil
}

// Close shuts the store; subsequent operations return store.ErrClosed and
// all open change streams end.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, streams := range s.streams {
		for _, st := range streams {
			st.shut()
		}
	}
	s.streams = make(map[string][]*stream)
	return nil
}

// emit fans an event out to the collection's streams. Called with the write
// lock held; sends never block (full buffers drop the event).
func (s *Store) emit(collection string, typ store.EventType, doc store.Document) {
	evt := store.ChangeEvent{
		Collection: collection,
		Type:       typ,
		Document:   cloneDocument(doc),
		Timestamp:  s.now(),
	}
	for _, st := range s.streams[collection] {
		select {
		case st.ch <- evt:
		default:
		}
	}
}

func (s *Store) checkUnique(collection string, payload map[string]any, excludeID string) error {
	for _, idx := range s.indexes {
		if idx.Collection != collection || !matchesWhere(payload, idx.Where) {
			continue
		}
		key := indexKey(payload, idx.Fields)
		for id, doc := range s.docs[collection] {
			if id == excludeID {
				continue
			}
			existing, err := decodePayload(doc.Data)
			if err != nil {
				return err
			}
			if matchesWhere(existing, idx.Where) && indexKey(existing, idx.Fields) == key {
				return fmt.Errorf("unique index on %s %v: %w", collection, idx.Fields, store.ErrConflict)
			}
		}
	}
	return nil
}

type stream struct {
	owner      *Store
	collection string
	ch         chan store.ChangeEvent
	once       sync.Once
}

func (st *stream) Events() <-chan store.ChangeEvent { return st.ch }

// Close detaches the stream from the store and closes the events channel.
func (st *stream) Close() error {
	st.owner.mu.Lock()
	streams := st.owner.streams[st.collection]
	for i, other := range streams {
		if other == st {
			st.owner.streams[st.collection] = append(streams[:i], streams[i+1:]...)
			break
		}
	}
	st.owner.mu.Unlock()

	st.shut()
	return nil
}

func (st *stream) shut() {
	st.once.Do(func() { close(st.ch) })
}

func encodePayload(v any) (json.RawMessage, map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode payload: %w", err)
	}
	payload, err := decodePayload(data)
	if err != nil {
		return nil, nil, err
	}
	return data, payload, nil
}

func decodePayload(data json.RawMessage) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

func matchesAll(payload map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		if !matches(payload, f) {
			return false
		}
	}
	return true
}

func matches(payload map[string]any, f store.Filter) bool {
	raw, ok := payload[f.Field]
	if !ok {
		return false
	}
	val := valueString(raw)
	switch f.Op {
	case store.OpEqual:
		return val == f.Value
	case store.OpGTE:
		return val >= f.Value
	case store.OpLTE:
		return val <= f.Value
	default:
		return false
	}
}

func matchesWhere(payload map[string]any, where map[string]string) bool {
	for field, want := range where {
		raw, ok := payload[field]
		if !ok || valueString(raw) != want {
			return false
		}
	}
	return true
}

func indexKey(payload map[string]any, fields []string) string {
	key := ""
	for _, f := range fields {
		key += valueString(payload[f]) + "\x00"
	}
	return key
}

func fieldString(payload map[string]any, field string) string {
	raw, ok := payload[field]
	if !ok {
		return ""
	}
	return valueString(raw)
}

func valueString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func cloneDocument(doc store.Document) store.Document {
	data := make(json.RawMessage, len(doc.Data))
	copy(data, doc.Data)
	doc.Data = data
	return doc
}
