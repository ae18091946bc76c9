// Package security records an audit trail of the commands an Engine runs.
package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coregx/rse/internal/core"
	"github.com/coregx/rse/internal/logger"
)

// AuditLevel selects which commands are audited.
type AuditLevel int

const (
	// AuditNone disables auditing.
	AuditNone AuditLevel = iota
	// AuditFailures records failed commands only.
	AuditFailures
	// AuditAll records every command.
	AuditAll
)

// ParseAuditLevel accepts none, failures and all.
func ParseAuditLevel(s string) (AuditLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AuditNone, nil
	case "failures":
		return AuditFailures, nil
	case "all":
		return AuditAll, nil
	}
	return AuditNone, fmt.Errorf("unknown audit level %q", s)
}

// AuditEvent is one audited command.
type AuditEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	User       string    `json:"user,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Operation  string    `json:"operation"`
	Tables     []string  `json:"tables,omitempty"`
	SQL        string    `json:"sql"`
	ParamsHash string    `json:"params_hash,omitempty"` // hash of the masked args
	Rows       int64     `json:"rows"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Duration   int64     `json:"duration_ms"`
}

// Auditor writes audit events to a logger.
type Auditor struct {
	logger logger.Logger
	level  AuditLevel
	now    func() time.Time
}

// NewAuditor returns an auditor writing to l at level.
func NewAuditor(l logger.Logger, level AuditLevel) *Auditor {
	return &Auditor{logger: l, level: level, now: time.Now}
}

// Hook returns a query hook that audits every event.
//
//	auditor := security.NewAuditor(log, security.AuditAll)
//	engine, _ := core.New("postgres", core.WithQueryHook(auditor.Hook()))
func (a *Auditor) Hook() core.QueryHook {
	return func(ctx context.Context, ev core.QueryEvent) {
		a.Record(ctx, ev)
	}
}

// Record audits ev if the level asks for it and returns the event written.
func (a *Auditor) Record(ctx context.Context, ev core.QueryEvent) (AuditEvent, bool) {
	if a.logger == nil || a.level == AuditNone || (a.level == AuditFailures && ev.Error == nil) {
		return AuditEvent{}, false
	}
	event := AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  a.now().UTC(),
		User:       User(ctx),
		ClientIP:   ClientIP(ctx),
		RequestID:  RequestID(ctx),
		Operation:  ev.Operation,
		Tables:     ev.Tables,
		SQL:        ev.SQL,
		ParamsHash: hashParams(ev.Args),
		Rows:       ev.Rows,
		Success:    ev.Error == nil,
		Duration:   ev.Duration.Milliseconds(),
	}
	if ev.Error != nil {
		event.Error = ev.Error.Error()
	}

	log := a.logger.Info
	if !event.Success {
		log = a.logger.Warn
	}
	log("audit_event",
		"id", event.ID,
		"timestamp", event.Timestamp,
		"user", event.User,
		"client_ip", event.ClientIP,
		"request_id", event.RequestID,
		"operation", event.Operation,
		"tables", event.Tables,
		"sql", event.SQL,
		"params_hash", event.ParamsHash,
		"rows", event.Rows,
		"success", event.Success,
		"error", event.Error,
		"duration_ms", event.Duration,
	)
	return event, true
}

func hashParams(params []any) string {
	if len(params) == 0 {
		return ""
	}
	h := sha256.New()
	for _, p := range params {
		_, _ = fmt.Fprintf(h, "%T:%v\x00", p, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type contextKey string

const (
	userKey      contextKey = "rse:user"
	clientIPKey  contextKey = "rse:client_ip"
	requestIDKey contextKey = "rse:request_id"
)

// WithUser attaches the acting user to ctx for auditing.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithClientIP attaches the client address to ctx for auditing.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithRequestID attaches a request ID to ctx for auditing.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func User(ctx context.Context) string {
	v, _ := ctx.Value(userKey).(string)
	return v
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
