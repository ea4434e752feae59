package audit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types recorded by the engine.
const (
	EventAccessDenied      = "AccessDenied"
	EventAccessGranted     = "AccessGranted"
	EventAccessRevoked     = "AccessRevoked"
	EventRightsTransferred = "RightsTransferred"
	EventEmergency         = "Emergency"
	EventTokenVerification = "TokenVerification"
	EventIntegrity         = "IntegrityCheck"
)

// AuditEvent represents an authorization or integrity event.
type AuditEvent struct {
	Timestamp time.Time
	EventType string
	EntityID  string // acting participant or token subject
	Result    string // "success" or "failure"
	Reason    string
	Metadata  map[string]string
}

// AuditLogger is the interface for logging audit events.
type AuditLogger interface {
	LogEvent(event AuditEvent)
}

// ZapAuditLogger writes events to a zap logger under the "audit" name.
type ZapAuditLogger struct {
	log *zap.Logger
}

// NewZapAuditLogger returns an AuditLogger backed by log.
func NewZapAuditLogger(log *zap.Logger) AuditLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapAuditLogger{log: log.Named("audit")}
}

func (l *ZapAuditLogger) LogEvent(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	fields := []zap.Field{
		zap.Time("at", event.Timestamp),
		zap.String("event", event.EventType),
		zap.String("entity", event.EntityID),
		zap.String("result", event.Result),
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	if event.Result == "failure" {
		l.log.Warn("audit", fields...)
		return
	}
	l.log.Info("audit", fields...)
}

// Recorder keeps events in memory. Useful for tests and the demo.
type Recorder struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *Recorder) LogEvent(event AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEvent(nil), r.events...)
}
