package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Chirag4452/sportsclub-core/internal/store"
)

const notifyChannelPrefix = "sportsclub_changes_"

var opTypes = map[string]store.EventType{
	"create": store.EventCreate,
	"update": store.EventUpdate,
	"delete": store.EventDelete,
}

// notification is the trigger payload shape; see the documents_notify_change
// function in the migrations.
type notification struct {
	Op        string          `json:"op"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Changes opens a change stream backed by LISTEN/NOTIFY. The stream owns a
// dedicated connection hijacked from the pool; it ends when ctx is cancelled,
// Close is called, or the connection drops.
func (s *Store) Changes(ctx context.Context, collection string) (store.ChangeStream, error) {
	poolConn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener connection: %w", err)
	}
	conn := poolConn.Hijack()

	channel := notifyChannelPrefix + collection
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen on %s: %w", channel, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	st := &pgStream{
		ch:     make(chan store.ChangeEvent, streamBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen(streamCtx, conn, collection, st)
	return st, nil
}

func (s *Store) listen(ctx context.Context, conn *pgx.Conn, collection string, st *pgStream) {
	defer func() {
		_ = conn.Close(context.Background())
		close(st.ch)
		close(st.done)
	}()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error("change stream interrupted",
					slog.String("collection", collection),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		evt, err := decodeNotification(collection, n.Payload)
		if err != nil {
			s.log.Warn("drop malformed change notification",
				slog.String("collection", collection),
				slog.String("error", err.Error()),
			)
			continue
		}

		// Never block notification processing on a slow consumer.
		select {
		case st.ch <- evt:
		default:
			s.log.Warn("change stream buffer full, dropping event",
				slog.String("collection", collection),
			)
		}
	}
}

func decodeNotification(collection, payload string) (store.ChangeEvent, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return store.ChangeEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	typ, ok := opTypes[n.Op]
	if !ok {
		return store.ChangeEvent{}, fmt.Errorf("unknown change op %q", n.Op)
	}
	return store.ChangeEvent{
		Collection: collection,
		Type:       typ,
		Document: store.Document{
			ID:        n.ID,
			Data:      n.Data,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		},
		Timestamp: time.Now().UTC(),
	}, nil
}

type pgStream struct {
	ch     chan store.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (st *pgStream) Events() <-chan store.ChangeEvent { return st.ch }

// Close ends the stream and waits for the listener connection to be torn
// down. Safe to call more than once.
func (st *pgStream) Close() error {
	st.once.Do(st.cancel)
	<-st.done
	return nil
}
