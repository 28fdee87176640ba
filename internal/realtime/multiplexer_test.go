package realtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Chirag4452/sportsclub-core/internal/store"
	"github.com/Chirag4452/sportsclub-core/internal/store/memory"
)

func TestSubscribeDeliversNormalizedEvents(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)
	defer mux.UnsubscribeAll()

	events := make(chan Event, 8)
	_, err := mux.Subscribe(context.Background(), "sessions", func(e Event) { events <- e })
	require.NoError(t, err)

	doc, err := st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-16"})
	require.NoError(t, err)
	created := recvEvent(t, events)
	require.Equal(t, "sessions", created.Collection)
	require.Equal(t, store.EventCreate, created.Type)
	require.Equal(t, doc.ID, created.Document.ID)
	require.False(t, created.Timestamp.IsZero())

	_, err = st.Update(context.Background(), "sessions", doc.ID, map[string]any{"seats": 12})
	require.NoError(t, err)
	require.Equal(t, store.EventUpdate, recvEvent(t, events).Type)

	require.NoError(t, st.Delete(context.Background(), "sessions", doc.ID))
	deleted := recvEvent(t, events)
	require.Equal(t, store.EventDelete, deleted.Type)
	require.Equal(t, doc.ID, deleted.Document.ID)
}

func TestFanOutInRegistrationOrder(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)
	defer mux.UnsubscribeAll()

	order := make(chan string, 4)
	_, err := mux.Subscribe(context.Background(), "sessions", func(Event) { order <- "first" })
	require.NoError(t, err)
	_, err = mux.Subscribe(context.Background(), "sessions", func(Event) { order <- "second" })
	require.NoError(t, err)

	_, err = st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-16"})
	require.NoError(t, err)

	require.Equal(t, "first", recvString(t, order))
	require.Equal(t, "second", recvString(t, order))
}

func TestEventFilter(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)
	defer mux.UnsubscribeAll()

	createsOnly := make(chan Event, 8)
	everything := make(chan Event, 8)
	_, err := mux.Subscribe(context.Background(), "sessions", func(e Event) { createsOnly <- e }, store.EventCreate)
	require.NoError(t, err)
	_, err = mux.Subscribe(context.Background(), "sessions", func(e Event) { everything <- e })
	require.NoError(t, err)

	doc, err := st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-16"})
	require.NoError(t, err)
	require.Equal(t, store.EventCreate, recvEvent(t, createsOnly).Type)
	require.Equal(t, store.EventCreate, recvEvent(t, everything).Type)

	_, err = st.Update(context.Background(), "sessions", doc.ID, map[string]any{"seats": 9})
	require.NoError(t, err)
	require.Equal(t, store.EventUpdate, recvEvent(t, everything).Type)
	requireSilent(t, createsOnly)
}

func TestUnsubscribeFuncIsIdempotent(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)

	events := make(chan Event, 8)
	unsubscribe, err := mux.Subscribe(context.Background(), "sessions", func(e Event) { events <- e })
	require.NoError(t, err)
	require.Equal(t, 1, mux.Status().SubscriptionCount)

	unsubscribe()
	unsubscribe()

	status := mux.Status()
	require.Equal(t, 0, status.SubscriptionCount)
	require.Empty(t, status.ActiveCollections)

	_, err = st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-16"})
	require.NoError(t, err)
	requireSilent(t, events)
}

func TestUnsubscribeWaitsForInFlightCallback(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32
	unsubscribe, err := mux.Subscribe(context.Background(), "sessions", func(Event) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
	})
	require.NoError(t, err)

	_, err = st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-16"})
	require.NoError(t, err)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the callback to start")
	}

	returned := make(chan struct{})
	go func() {
		unsubscribe()
		close(returned)
	}()

	// The callback is still blocked, so teardown must not have finished.
	select {
	case <-returned:
		t.Fatal("unsubscribe returned while a callback was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unsubscribe to return")
	}

	// The dispatch goroutine has exited, so the count is final.
	require.EqualValues(t, 1, calls.Load())
	require.Empty(t, mux.Status().ActiveCollections)

	_, err = st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-17"})
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())
}

func TestLastUnsubscribeClosesSharedStream(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)

	streamsBefore := testutil.ToFloat64(activeStreams)
	first, err := mux.Subscribe(context.Background(), "sessions", func(Event) {})
	require.NoError(t, err)
	second, err := mux.Subscribe(context.Background(), "sessions", func(Event) {})
	require.NoError(t, err)

	// Two registrations share one stream.
	require.Equal(t, streamsBefore+1, testutil.ToFloat64(activeStreams))
	require.Equal(t, 2, mux.Status().SubscriptionCount)

	first()
	require.Equal(t, streamsBefore+1, testutil.ToFloat64(activeStreams))

	second()
	require.Equal(t, streamsBefore, testutil.ToFloat64(activeStreams))
	require.Empty(t, mux.Status().ActiveCollections)
}

func TestUnsubscribeCollection(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)

	events := make(chan Event, 8)
	_, err := mux.Subscribe(context.Background(), "sessions", func(e Event) { events <- e })
	require.NoError(t, err)
	_, err = mux.Subscribe(context.Background(), "sessions", func(e Event) { events <- e })
	require.NoError(t, err)

	mux.Unsubscribe("sessions")
	require.Equal(t, 0, mux.Status().SubscriptionCount)

	// Unknown or already-removed collections are no-ops.
	mux.Unsubscribe("sessions")
	mux.Unsubscribe("never-subscribed")

	_, err = st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-16"})
	require.NoError(t, err)
	requireSilent(t, events)
}

func TestUnsubscribeAllIsIdempotent(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)

	_, err := mux.Subscribe(context.Background(), "sessions", func(Event) {})
	require.NoError(t, err)
	_, err = mux.Subscribe(context.Background(), "audit_log", func(Event) {})
	require.NoError(t, err)
	require.Equal(t, []string{"audit_log", "sessions"}, mux.Status().ActiveCollections)
	require.Equal(t, 2, mux.Status().SubscriptionCount)

	mux.UnsubscribeAll()
	mux.UnsubscribeAll()

	status := mux.Status()
	require.Equal(t, 0, status.SubscriptionCount)
	require.Empty(t, status.ActiveCollections)
}

func TestMirrorTracksCollection(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)
	defer mux.UnsubscribeAll()

	events := make(chan Event, 8)
	_, err := mux.Subscribe(context.Background(), "sessions", func(e Event) { events <- e })
	require.NoError(t, err)

	keep, err := st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-16"})
	require.NoError(t, err)
	drop, err := st.Create(context.Background(), "sessions", map[string]any{"date": "2024-12-17"})
	require.NoError(t, err)
	_, err = st.Update(context.Background(), "sessions", keep.ID, map[string]any{"seats": 12})
	require.NoError(t, err)
	require.NoError(t, st.Delete(context.Background(), "sessions", drop.ID))
	for range 4 {
		recvEvent(t, events)
	}

	docs := mux.Snapshot("sessions")
	require.Len(t, docs, 1)
	require.Equal(t, keep.ID, docs[0].ID)

	var payload map[string]any
	require.NoError(t, docs[0].Decode(&payload))
	require.Equal(t, "2024-12-16", payload["date"])
	require.EqualValues(t, 12, payload["seats"])

	require.Nil(t, mux.Snapshot("never-subscribed"))
}

func TestStreamEndDropsSubscription(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)

	_, err := mux.Subscribe(context.Background(), "sessions", func(Event) {})
	require.NoError(t, err)

	require.NoError(t, st.Close())

	require.Eventually(t, func() bool {
		return mux.Status().SubscriptionCount == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeRejectsNilCallbackAndClosedSource(t *testing.T) {
	st := memory.New()
	mux := newTestMux(st)

	_, err := mux.Subscribe(context.Background(), "sessions", nil)
	require.Error(t, err)

	require.NoError(t, st.Close())
	_, err = mux.Subscribe(context.Background(), "sessions", func(Event) {})
	require.ErrorIs(t, err, store.ErrClosed)
	require.Equal(t, 0, mux.Status().SubscriptionCount)
}

// --- helpers ---

func newTestMux(st *memory.Store) *Multiplexer {
	return NewMultiplexer(st, slog.New(slog.DiscardHandler))
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return Event{}
	}
}

func recvString(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		return ""
	}
}

func requireSilent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected %s event for %s", e.Type, e.Document.ID)
	case <-time.After(100 * time.Millisecond):
	}
}
