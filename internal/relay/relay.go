// Package relay publishes observed document changes to Kafka, one topic per
// collection, so other club systems can follow the schedule without polling
// the store.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Chirag4452/sportsclub-core/internal/events"
	"github.com/Chirag4452/sportsclub-core/internal/observability"
	"github.com/Chirag4452/sportsclub-core/internal/realtime"
)

const (
	defaultTopicPrefix  = "sportsclub"
	defaultQueueSize    = 256
	defaultWriteTimeout = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// Relay forwards multiplexer events to Kafka. Callbacks only enqueue; a
// single worker goroutine does the blocking writes so the dispatch goroutines
// never stall on the broker.
type Relay struct {
	mux      *realtime.Multiplexer
	producer messageWriter
	prefix   string
	timeout  time.Duration
	log      *slog.Logger

	queue  chan realtime.Event
	unsubs []realtime.UnsubscribeFunc
	done   chan struct{}
}

// Option configures optional Relay behavior.
type Option func(*Relay)

// WithTopicPrefix overrides the topic prefix; topics are <prefix>.<collection>.
func WithTopicPrefix(prefix string) Option {
	return func(r *Relay) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithQueueSize overrides the in-flight event buffer.
func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queue = make(chan realtime.Event, n)
		}
	}
}

// WithWriteTimeout overrides the per-publish timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New constructs a Relay over a multiplexer and a producer.
func New(mux *realtime.Multiplexer, producer messageWriter, log *slog.Logger, opts ...Option) *Relay {
	if log == nil {
		log = slog.Default()
	}
	r := &Relay{
		mux:      mux,
		producer: producer,
		prefix:   defaultTopicPrefix,
		timeout:  defaultWriteTimeout,
		log:      log,
		queue:    make(chan realtime.Event, defaultQueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to the given collections and launches the publish loop.
// The loop runs until ctx is cancelled.
func (r *Relay) Start(ctx context.Context, collections ...string) error {
	for _, collection := range collections {
		unsubscribe, err := r.mux.Subscribe(ctx, collection, r.enqueue)
		if err != nil {
			r.Stop()
			return fmt.Errorf("subscribe %s: %w", collection, err)
		}
		r.unsubs = append(r.unsubs, unsubscribe)
		r.log.Info("relaying collection", slog.String("collection", collection), slog.String("topic", r.topic(collection)))
	}

	go r.run(ctx)
	return nil
}

// Stop removes the relay's subscriptions. Events already queued keep
// publishing until the Start context ends.
func (r *Relay) Stop() {
	for _, unsubscribe := range r.unsubs {
		unsubscribe()
	}
	r.unsubs = nil
}

// Wait blocks until the publish loop has exited.
func (r *Relay) Wait() {
	<-r.done
}

func (r *Relay) enqueue(e realtime.Event) {
	select {
	case r.queue <- e:
	default:
		eventsDropped.Inc()
		r.log.Warn("relay queue full, dropping event",
			slog.String("collection", e.Collection),
			slog.String("document", e.Document.ID),
		)
	}
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-r.queue:
			r.publish(ctx, e)
		}
	}
}

func (r *Relay) publish(ctx context.Context, e realtime.Event) {
	start := time.Now()
	topic := r.topic(e.Collection)

	envelope := events.ChangeEnvelope{
		ID:         uuid.NewString(),
		Collection: e.Collection,
		EventType:  string(e.Type),
		Document: events.DocumentSnapshot{
			ID:        e.Document.ID,
			Data:      e.Document.Data,
			CreatedAt: e.Document.CreatedAt,
			UpdatedAt: e.Document.UpdatedAt,
		},
		Timestamp: e.Timestamp,
		Version:   events.SchemaVersion,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		eventsFailed.WithLabelValues(topic).Inc()
		r.log.Error("encode change envelope", slog.String("document", e.Document.ID), slog.String("error", err.Error()))
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(e.Document.ID),
		Value: payload,
		Time:  e.Timestamp,
	}
	if err := r.producer.WriteMessages(writeCtx, topic, msg); err != nil {
		eventsFailed.WithLabelValues(topic).Inc()
		r.log.Error("publish change event",
			slog.String("topic", topic),
			slog.String("document", e.Document.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	eventsDelivered.WithLabelValues(topic).Inc()
	publishDuration.Observe(time.Since(start).Seconds())
	observability.RecordChangeRelayed(e.Timestamp)
}

func (r *Relay) topic(collection string) string {
	return r.prefix + "." + collection
}
