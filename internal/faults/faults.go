// Package faults classifies raw failures into a stable taxonomy and builds
// the result envelopes returned at the public operation boundary. Every
// failure that reaches a caller carries a kind, a severity, a user-facing
// message and a retryability flag; the raw cause stays attached for
// diagnostics but is never the displayed string.
package faults

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/store"
)

// Kind is the failure taxonomy.
type Kind string

const (
	KindNetwork        Kind = "NETWORK"
	KindTimeout        Kind = "TIMEOUT"
	KindAuthentication Kind = "AUTHENTICATION"
	KindPermission     Kind = "PERMISSION"
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindRateLimit      Kind = "RATE_LIMIT"
	KindServer         Kind = "SERVER"
	KindUnknown        Kind = "UNKNOWN"
)

// Severity drives the log channel a classification is reported on.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Stable string codes assigned during classification.
const (
	CodeNetworkUnavailable = "network_unavailable"
	CodeConnectionTimeout  = "connection_timeout"
	CodeDeadlineExceeded   = "deadline_exceeded"
	CodeOperationCancelled = "operation_cancelled"
	CodeUnauthenticated    = "unauthenticated"
	CodePermissionDenied   = "permission_denied"
	CodeValidationFailed   = "validation_failed"
	CodeInvalidArgument    = "invalid_argument"
	CodeNotFound           = "not_found"
	CodeDuplicateSession   = "duplicate_session"
	CodeSessionConflict    = "session_conflict"
	CodeRateLimited        = "rate_limited"
	CodeServiceUnavailable = "service_unavailable"
	CodeDatabaseError      = "database_error"
	CodeInternalError      = "internal_error"
	CodeUnknown            = "unknown_error"
)

type classification struct {
	kind     Kind
	severity Severity
}

var codeTable = map[string]classification{
	CodeNetworkUnavailable: {KindNetwork, SeverityHigh},
	CodeConnectionTimeout:  {KindTimeout, SeverityMedium},
	CodeDeadlineExceeded:   {KindTimeout, SeverityMedium},
	CodeOperationCancelled: {KindUnknown, SeverityLow},
	CodeUnauthenticated:    {KindAuthentication, SeverityHigh},
	CodePermissionDenied:   {KindPermission, SeverityHigh},
	CodeValidationFailed:   {KindValidation, SeverityLow},
	CodeInvalidArgument:    {KindValidation, SeverityLow},
	CodeNotFound:           {KindNotFound, SeverityLow},
	CodeDuplicateSession:   {KindConflict, SeverityMedium},
	CodeSessionConflict:    {KindConflict, SeverityMedium},
	CodeRateLimited:        {KindRateLimit, SeverityMedium},
	CodeServiceUnavailable: {KindServer, SeverityHigh},
	CodeDatabaseError:      {KindServer, SeverityCritical},
	CodeInternalError:      {KindServer, SeverityHigh},
}

var messageTable = map[string]string{
	CodeNetworkUnavailable: "Network connection lost. Check your connection and try again.",
	CodeConnectionTimeout:  "The request timed out. Please try again.",
	CodeDeadlineExceeded:   "The operation took too long to complete. Please try again.",
	CodeOperationCancelled: "The operation was cancelled.",
	CodeUnauthenticated:    "Your session has expired. Please sign in again.",
	CodePermissionDenied:   "You don't have permission to perform this action.",
	CodeValidationFailed:   "Some of the provided values are invalid.",
	CodeInvalidArgument:    "Please check the provided values and try again.",
	CodeNotFound:           "The requested record could not be found.",
	CodeDuplicateSession:   "A session is already scheduled for this date and batch.",
	CodeSessionConflict:    "Scheduling conflicts were detected for the selected range.",
	CodeRateLimited:        "Too many requests. Please wait a moment and try again.",
	CodeServiceUnavailable: "The service is temporarily unavailable. Please try again shortly.",
	CodeDatabaseError:      "A storage error occurred. Please try again.",
	CodeInternalError:      "Something went wrong on our side. Please try again.",
}

const genericMessage = "Something went wrong. Please try again."

// Codes retryable regardless of kind.
var retryableCodes = map[string]bool{
	CodeServiceUnavailable: true,
	CodeConnectionTimeout:  true,
	CodeDatabaseError:      true,
}

// ClassifiedError is the normalized failure produced by the Classifier. It is
// never mutated after creation; retry exhaustion produces a tagged copy via
// WithFinalAttempt.
type ClassifiedError struct {
	Kind            Kind           `json:"kind"`
	Severity        Severity       `json:"severity"`
	Code            string         `json:"code"`
	UserMessage     string         `json:"userMessage"`
	TechnicalDetail string         `json:"technicalDetail,omitempty"`
	Operation       string         `json:"operation,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	Retryable       bool           `json:"retryable"`
	FinalAttempt    bool           `json:"finalAttempt,omitempty"`
	Context         map[string]any `json:"context,omitempty"`

	cause error
}

func (e *ClassifiedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s: %s", e.Operation, e.Code, e.TechnicalDetail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.TechnicalDetail)
}

// Unwrap exposes the raw cause for errors.Is / errors.As.
func (e *ClassifiedError) Unwrap() error { return e.cause }

// WithFinalAttempt returns a copy marked as the final retry attempt.
func (e *ClassifiedError) WithFinalAttempt() *ClassifiedError {
	out := *e
	out.FinalAttempt = true
	return &out
}

// ValidationError aggregates field-level input problems into one failure. The
// zero map is valid; Add lazily initializes it.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds an empty aggregate.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a problem for a field, keeping the first message per field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// Empty reports whether no problems were recorded.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// CodedError carries an explicit taxonomy code chosen by the caller.
type CodedError struct {
	Code   string
	Detail string
}

func (e *CodedError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

// Coded builds a CodedError.
func Coded(code, detail string) *CodedError {
	return &CodedError{Code: code, Detail: detail}
}

// StatusError carries an HTTP-like numeric status from a remote collaborator.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return "status " + strconv.Itoa(e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Detail)
}

// Classifier turns raw errors into ClassifiedErrors and reports each
// classification on the log channel matching its severity.
type Classifier struct {
	log *slog.Logger
}

// NewClassifier constructs a Classifier. A nil logger falls back to
// slog.Default.
func NewClassifier(log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{log: log}
}

// Classify maps err to a taxonomy entry. It is total: any non-nil error
// yields a non-nil ClassifiedError, and an already-classified error passes
// through unchanged. Classify(nil) returns nil.
func (c *Classifier) Classify(err error, operation string, extra map[string]any) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	code, detail, status := extractCode(err)

	entry, known := codeTable[code]
	if !known {
		entry = classification{KindUnknown, SeverityMedium}
	}
	if status != 0 {
		entry = statusClassification(status)
	}

	message, ok := messageTable[code]
	if !ok {
		message = statusMessage(status)
	}

	out := &ClassifiedError{
		Kind:            entry.kind,
		Severity:        entry.severity,
		Code:            code,
		UserMessage:     message,
		TechnicalDetail: detail,
		Operation:       operation,
		Timestamp:       time.Now().UTC(),
		Retryable:       isRetryable(entry.kind, code, status),
		Context:         contextFields(err, extra),
		cause:           err,
	}

	c.report(out)
	return out
}

func (c *Classifier) report(e *ClassifiedError) {
	attrs := []any{
		slog.String("operation", e.Operation),
		slog.String("code", e.Code),
		slog.String("kind", string(e.Kind)),
		slog.Bool("retryable", e.Retryable),
		slog.String("detail", e.TechnicalDetail),
	}
	switch e.Severity {
	case SeverityCritical, SeverityHigh:
		c.log.Error("operation failed", attrs...)
	case SeverityMedium:
		c.log.Warn("operation failed", attrs...)
	default:
		c.log.Info("operation failed", attrs...)
	}
}

// extractCode pulls a string code (and numeric status when present) out of a
// raw error. Sentinels and typed wrappers are checked before the generic
// network probes so the most specific cause wins.
func extractCode(err error) (code, detail string, status int) {
	detail = err.Error()

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, detail, 0
	}

	var se *StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.StatusCode), detail, se.StatusCode
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return CodeValidationFailed, detail, 0
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound, detail, 0
	case errors.Is(err, store.ErrConflict):
		return CodeDuplicateSession, detail, 0
	case errors.Is(err, store.ErrClosed):
		return CodeServiceUnavailable, detail, 0
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded, detail, 0
	case errors.Is(err, context.Canceled):
		return CodeOperationCancelled, detail, 0
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CodeConnectionTimeout, detail, 0
		}
		return CodeNetworkUnavailable, detail, 0
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.EPIPE) {
		return CodeNetworkUnavailable, detail, 0
	}

	return CodeUnknown, detail, 0
}

func statusClassification(status int) classification {
	switch {
	case status == 400:
		return classification{KindValidation, SeverityLow}
	case status == 401:
		return classification{KindAuthentication, SeverityHigh}
	case status == 403:
		return classification{KindPermission, SeverityHigh}
	case status == 404:
		return classification{KindNotFound, SeverityLow}
	case status == 409:
		return classification{KindConflict, SeverityMedium}
	case status == 429:
		return classification{KindRateLimit, SeverityMedium}
	case status >= 500 && status < 600:
		return classification{KindServer, SeverityHigh}
	default:
		return classification{KindUnknown, SeverityMedium}
	}
}

func statusMessage(status int) string {
	switch {
	case status == 400:
		return messageTable[CodeInvalidArgument]
	case status == 401:
		return messageTable[CodeUnauthenticated]
	case status == 403:
		return messageTable[CodePermissionDenied]
	case status == 404:
		return messageTable[CodeNotFound]
	case status == 409:
		return messageTable[CodeDuplicateSession]
	case status == 429:
		return messageTable[CodeRateLimited]
	case status >= 500 && status < 600:
		return messageTable[CodeServiceUnavailable]
	default:
		return genericMessage
	}
}

func isRetryable(kind Kind, code string, status int) bool {
	if kind == KindNetwork || kind == KindTimeout || kind == KindRateLimit {
		return true
	}
	if status >= 500 && status < 600 {
		return true
	}
	return retryableCodes[code]
}

func contextFields(err error, extra map[string]any) map[string]any {
	var ve *ValidationError
	hasFields := errors.As(err, &ve) && len(ve.Fields) > 0

	if len(extra) == 0 && !hasFields {
		return nil
	}
	out := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}
	if hasFields {
		out["fields"] = ve.Fields
	}
	return out
}
