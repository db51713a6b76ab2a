package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const auditBufferSize = 1024

// AuditLogger records mutating API requests to the audit_logs table. Writes
// happen on a background goroutine so a slow database never stalls request
// handling; when the buffer is full the entry is dropped, not the request.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	queue  chan auditEntry
}

type auditEntry struct {
	Actor        string
	Method       string
	Path         string
	ResourceType *string
	ResourceID   *string
	StatusCode   int
	RequestBody  json.RawMessage
}

func NewAuditLogger(pool *pgxpool.Pool, logger zerolog.Logger) *AuditLogger {
	al := &AuditLogger{
		pool:   pool,
		logger: logger,
		queue:  make(chan auditEntry, auditBufferSize),
	}
	go al.drain()
	return al
}

func (al *AuditLogger) drain() {
	// context.Background: entries outlive the requests that produced them.
	for e := range al.queue {
		_, err := al.pool.Exec(context.Background(),
			`INSERT INTO audit_logs (actor, method, path, resource_type, resource_id, status_code, request_body, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			e.Actor, e.Method, e.Path, e.ResourceType, e.ResourceID, e.StatusCode, e.RequestBody,
		)
		if err != nil {
			al.logger.Error().Err(err).Str("path", e.Path).Msg("failed to write audit log")
		}
	}
}

// Close stops accepting entries; the drain goroutine flushes what is queued.
func (al *AuditLogger) Close() {
	close(al.queue)
}

// Middleware audits POST, PUT and DELETE requests. Reads pass through
// untouched.
func (al *AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		// The handler consumes the body too, so buffer and replace it.
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		al.record(r, sw.status, body)
	})
}

func (al *AuditLogger) record(r *http.Request, status int, body []byte) {
	resourceType, resourceID := extractResource(r.URL.Path)

	var recorded json.RawMessage
	if len(body) > 0 && json.Valid(body) {
		recorded = sanitizeBody(body)
	}

	select {
	case al.queue <- auditEntry{
		Actor:        GetActor(r.Context()),
		Method:       r.Method,
		Path:         r.URL.Path,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		StatusCode:   status,
		RequestBody:  recorded,
	}:
	default:
		al.logger.Warn().Msg("audit log buffer full, dropping entry")
	}
}

// extractResource pulls the last resource collection and optional ID out of
// an /api/v1 path. Collections sit at even segment positions, IDs at odd
// ones, so /instances/abc/executions yields type=executions with no ID and
// /instances/abc yields type=instances id=abc.
func extractResource(path string) (*string, *string) {
	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(parts) == 0 {
		return nil, nil
	}

	var resourceType, resourceID *string
	for i, part := range parts {
		if part == "" {
			continue
		}
		p := part
		if i%2 == 0 {
			resourceType = &p
			resourceID = nil
		} else {
			resourceID = &p
		}
	}

	return resourceType, resourceID
}

// sensitiveFields never reach the audit table. Tenant config regularly
// carries kubeconfigs and backend credentials.
var sensitiveFields = map[string]bool{
	"password": true, "secret": true, "secrets": true, "token": true,
	"api_key": true, "kubeconfig": true, "credentials": true,
}

func sanitizeBody(body []byte) json.RawMessage {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}
	for k := range data {
		if sensitiveFields[k] {
			data[k] = "[REDACTED]"
		}
	}
	sanitized, _ := json.Marshal(data)
	return sanitized
}
