package notification

import (
	"log/slog"
	"time"

	"atelier-sync-core/internal/logging"
)

// AuditEntry is one structured record of an action taken by the sync core.
type AuditEntry struct {
	Action string         `json:"action"`
	Source string         `json:"source"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

// AuditLogger is the best-effort audit port. Implementations must swallow
// their own failures.
type AuditLogger interface {
	Log(entry AuditEntry)
}

// SlogAudit writes audit entries through the structured logger.
type SlogAudit struct {
	logger *slog.Logger
}

func NewSlogAudit(logger *slog.Logger) *SlogAudit {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlogAudit{logger: logger}
}

func (a *SlogAudit) Log(entry AuditEntry) {
	a.logger.Info("audit",
		slog.String("action", entry.Action),
		slog.String("source", entry.Source),
		slog.Any("data", entry.Data),
		slog.Time("at", entry.At),
	)
}

// NoopAudit discards every entry.
type NoopAudit struct{}

func (NoopAudit) Log(entry AuditEntry) {}

// AuditSubscriber adapts an AuditLogger into a bus handler so every emitted
// event also lands in the audit trail.
func AuditSubscriber(audit AuditLogger) Handler {
	return func(e Event) {
		audit.Log(AuditEntry{
			Action: e.Type,
			Source: e.Source,
			Data:   e.Data,
			At:     e.At,
		})
	}
}
