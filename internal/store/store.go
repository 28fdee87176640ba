// Package store defines the document-store contract the scheduling core is
// written against. Documents are schemaless JSON objects grouped into named
// collections; implementations live in the memory and postgres subpackages.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventType classifies a change-stream event.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Document is one stored JSON object. ID and the timestamps are assigned by
// the store on create.
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Decode unmarshals the document payload into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Op is a filter comparison operator. Comparisons are textual; date and time
// fields use sortable wire forms (YYYY-MM-DD, HH:MM) so text order is
// chronological order.
type Op string

const (
	OpEqual Op = "=="
	OpGTE   Op = ">="
	OpLTE   Op = "<="
)

// Filter constrains a top-level field of the document payload.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Where builds an equality filter.
func Where(field, value string) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// AtLeast builds a >= filter.
func AtLeast(field, value string) Filter {
	return Filter{Field: field, Op: OpGTE, Value: value}
}

// AtMost builds a <= filter.
func AtMost(field, value string) Filter {
	return Filter{Field: field, Op: OpLTE, Value: value}
}

// Query describes a filtered, ordered read of one collection. OrderBy names
// payload fields in precedence order; ties fall back to creation time.
type Query struct {
	Filters    []Filter
	OrderBy    []string
	Descending bool
	Limit      int
}

// ChangeEvent is one observed mutation in a collection.
type ChangeEvent struct {
	Collection string
	Type       EventType
	Document   Document
	Timestamp  time.Time
}

// ChangeStream delivers change events for a single collection until closed.
// The events channel is closed when the stream ends, whether by Close or by
// the store shutting down.
type ChangeStream interface {
	Events() <-chan ChangeEvent
	Close() error
}

// Client is the full store surface. Query returns documents matching all
// filters; Create assigns ID and timestamps; Update merges a partial patch
// into the payload. Implementations return ErrNotFound, ErrConflict and
// ErrClosed as sentinel causes.
type Client interface {
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Create(ctx context.Context, collection string, v any) (Document, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error)
	Changes(ctx context.Context, collection string) (ChangeStream, error)
}
