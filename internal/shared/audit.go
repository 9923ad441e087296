package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded by the dashboard.
const (
	AuditLogin          = "LOGIN"
	AuditLogout         = "LOGOUT"
	AuditCreate         = "CREATE"
	AuditUpdate         = "UPDATE"
	AuditDelete         = "DELETE"
	AuditSettingsChange = "SETTINGS_UPDATE"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs. A logger without a pool
// discards records; the trail is optional.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditLogger returns a new AuditLogger. pool may be nil.
func NewAuditLogger(pool *pgxpool.Pool, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{pool: pool, logger: logger}
}

// Enabled reports whether records are persisted.
func (l *AuditLogger) Enabled() bool {
	return l != nil && l.pool != nil
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if log.Action == "" || log.Entity == "" {
		return errors.New("audit log requires action/entity")
	}
	if !l.Enabled() {
		return nil
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (id, actor, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), log.Actor, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}

// RecordQuietly records and logs failures instead of returning them. Audit
// failures never fail the user's request.
func (l *AuditLogger) RecordQuietly(ctx context.Context, log AuditLog) {
	if l == nil {
		return
	}
	if err := l.Record(ctx, log); err != nil && l.logger != nil {
		l.logger.Warn("audit record", slog.String("action", log.Action), slog.String("entity", log.Entity), slog.Any("error", err))
	}
}
