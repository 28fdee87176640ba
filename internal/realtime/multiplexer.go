// Package realtime demultiplexes store change streams: one underlying stream
// per watched collection, fanned out to registered callbacks, with an
// in-memory mirror of each collection kept current so observers can read
// without re-querying.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/store"
)

// ChangeSource opens change streams; the store client satisfies it.
type ChangeSource interface {
	Changes(ctx context.Context, collection string) (store.ChangeStream, error)
}

// Event is the normalized envelope delivered to callbacks.
type Event struct {
	Collection string          `json:"collection"`
	Type       store.EventType `json:"eventType"`
	Document   store.Document  `json:"document"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Callback receives events on the collection's dispatch goroutine. Callbacks
// must be fast and must not block; hand slow work off to another goroutine.
// A callback must not unsubscribe itself: teardown waits for the dispatch
// goroutine, which would then be waiting on its own return.
type Callback func(Event)

// Status describes the current subscription state.
type Status struct {
	ActiveCollections []string `json:"activeCollections"`
	SubscriptionCount int      `json:"subscriptionCount"`
}

// UnsubscribeFunc removes one registration. Safe to call more than once.
type UnsubscribeFunc func()

type registration struct {
	id     uint64
	fn     Callback
	filter map[store.EventType]bool // nil means every event type
}

// subscription is the per-collection state: the single underlying stream, the
// callback registrations in registration order, and the document mirror. done
// closes when the pump goroutine exits; teardown waits on it so that no
// callback runs after an unsubscribe returns.
type subscription struct {
	stream store.ChangeStream
	regs   []*registration
	mirror map[string]store.Document
	done   chan struct{}
}

// Multiplexer owns the collection subscriptions. Construct one per process at
// the composition root and share it; there is no package-level instance.
type Multiplexer struct {
	source ChangeSource
	log    *slog.Logger

	mu     sync.Mutex
	subs   map[string]*subscription
	nextID uint64
}

// NewMultiplexer constructs a Multiplexer over a change source.
func NewMultiplexer(source ChangeSource, log *slog.Logger) *Multiplexer {
	if log == nil {
		log = slog.Default()
	}
	return &Multiplexer{
		source: source,
		log:    log,
		subs:   map[string]*subscription{},
	}
}

// Subscribe registers a callback for a collection, opening the underlying
// change stream on the collection's first registration. An empty events list
// subscribes to every event type. The returned func removes exactly this
// registration; the last one out closes the stream and waits for the
// dispatch goroutine to drain, so no callback runs after it returns.
func (m *Multiplexer) Subscribe(ctx context.Context, collection string, fn Callback, events ...store.EventType) (UnsubscribeFunc, error) {
	if fn == nil {
		return nil, errors.New("realtime: nil callback")
	}
	filter := filterSet(events)

	m.mu.Lock()
	sub, ok := m.subs[collection]
	if !ok {
		stream, err := m.source.Changes(ctx, collection)
		if err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("open change stream for %s: %w", collection, err)
		}
		sub = &subscription{
			stream: stream,
			mirror: map[string]store.Document{},
			done:   make(chan struct{}),
		}
		m.subs[collection] = sub
		activeStreams.Inc()
		m.log.Info("change stream opened", slog.String("collection", collection))
		go m.pump(collection, sub)
	}
	m.nextID++
	reg := &registration{id: m.nextID, fn: fn, filter: filter}
	sub.regs = append(sub.regs, reg)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(collection, reg.id) })
	}, nil
}

// Unsubscribe drops every registration for a collection, closes its stream
// and waits for the dispatch goroutine to exit. Unknown collections are a
// no-op.
func (m *Multiplexer) Unsubscribe(collection string) {
	m.mu.Lock()
	sub, ok := m.subs[collection]
	if ok {
		sub.regs = nil
		delete(m.subs, collection)
		activeStreams.Dec()
	}
	m.mu.Unlock()

	if ok {
		_ = sub.stream.Close()
		<-sub.done
		m.log.Info("change stream closed", slog.String("collection", collection))
	}
}

// UnsubscribeAll tears down every subscription and waits for the dispatch
// goroutines to exit. Calling it twice, or with nothing subscribed, is a
// no-op.
func (m *Multiplexer) UnsubscribeAll() {
	m.mu.Lock()
	dropped := make(map[string]*subscription, len(m.subs))
	for name, sub := range m.subs {
		sub.regs = nil
		dropped[name] = sub
		activeStreams.Dec()
	}
	m.subs = map[string]*subscription{}
	m.mu.Unlock()

	for name, sub := range dropped {
		_ = sub.stream.Close()
		<-sub.done
		m.log.Info("change stream closed", slog.String("collection", name))
	}
}

// Status reports the active collections and the total registration count.
func (m *Multiplexer) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	collections := make([]string, 0, len(m.subs))
	count := 0
	for name, sub := range m.subs {
		collections = append(collections, name)
		count += len(sub.regs)
	}
	sort.Strings(collections)
	return Status{ActiveCollections: collections, SubscriptionCount: count}
}

// Snapshot returns the mirrored documents of a collection, ordered by
// creation time then ID. The mirror reflects only changes observed since the
// collection's first subscription; it is not primed with a query.
func (m *Multiplexer) Snapshot(collection string) []store.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[collection]
	if !ok {
		return nil
	}
	docs := make([]store.Document, 0, len(sub.mirror))
	for _, doc := range sub.mirror {
		out := doc
		out.Data = append(json.RawMessage(nil), doc.Data...)
		docs = append(docs, out)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}

// pump drains one collection's stream until it closes, applying each event to
// the mirror and fanning it out. When the stream ends on its own (store shut
// down) the subscription is dropped from the registry here.
func (m *Multiplexer) pump(collection string, sub *subscription) {
	defer close(sub.done)

	for raw := range sub.stream.Events() {
		m.dispatch(collection, sub, raw)
	}

	m.mu.Lock()
	if current, ok := m.subs[collection]; ok && current == sub {
		sub.regs = nil
		delete(m.subs, collection)
		activeStreams.Dec()
		m.log.Warn("change stream ended", slog.String("collection", collection))
	}
	m.mu.Unlock()
}

func (m *Multiplexer) dispatch(collection string, sub *subscription, raw store.ChangeEvent) {
	m.mu.Lock()
	switch raw.Type {
	case store.EventDelete:
		delete(sub.mirror, raw.Document.ID)
	default:
		sub.mirror[raw.Document.ID] = raw.Document
	}
	regs := make([]*registration, len(sub.regs))
	copy(regs, sub.regs)
	m.mu.Unlock()

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	event := Event{Collection: collection, Type: raw.Type, Document: raw.Document, Timestamp: ts}

	for _, reg := range regs {
		if reg.filter != nil && !reg.filter[raw.Type] {
			continue
		}
		reg.fn(event)
		eventsDispatched.WithLabelValues(collection, string(raw.Type)).Inc()
	}
}

// remove drops one registration; the last one out closes the stream and
// waits out the pump.
func (m *Multiplexer) remove(collection string, id uint64) {
	m.mu.Lock()
	sub, ok := m.subs[collection]
	if !ok {
		m.mu.Unlock()
		return
	}
	kept := make([]*registration, 0, len(sub.regs))
	for _, reg := range sub.regs {
		if reg.id != id {
			kept = append(kept, reg)
		}
	}
	sub.regs = kept

	var last bool
	if len(kept) == 0 {
		delete(m.subs, collection)
		activeStreams.Dec()
		last = true
	}
	m.mu.Unlock()

	if last {
		_ = sub.stream.Close()
		<-sub.done
		m.log.Info("change stream closed", slog.String("collection", collection))
	}
}

func filterSet(events []store.EventType) map[store.EventType]bool {
	if len(events) == 0 {
		return nil
	}
	filter := make(map[store.EventType]bool, len(events))
	for _, ev := range events {
		filter[ev] = true
	}
	return filter
}
