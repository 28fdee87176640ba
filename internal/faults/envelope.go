package faults

import "time"

// Envelope is the standard wrapper returned by every public operation:
// success carries data, failure carries the classified error. Meta holds
// operation-specific extras (counts, pagination) without widening the type.
type Envelope struct {
	Success   bool             `json:"success"`
	Data      any              `json:"data,omitempty"`
	Error     *ClassifiedError `json:"error,omitempty"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Meta      map[string]any   `json:"meta,omitempty"`
}

// OK builds a success envelope.
func OK(data any, message string) Envelope {
	return Envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// OKWithMeta builds a success envelope carrying extra metadata.
func OKWithMeta(data any, message string, meta map[string]any) Envelope {
	e := OK(data, message)
	e.Meta = meta
	return e
}

// Envelope wraps the classified error in a failure envelope. The message is
// the user-facing one; technical detail stays inside the error object.
func (e *ClassifiedError) Envelope() Envelope {
	return Envelope{
		Success:   false,
		Error:     e,
		Message:   e.UserMessage,
		Timestamp: time.Now().UTC(),
	}
}
