package notify

import (
	"sync"

	"go.uber.org/zap"
)

// NotificationType represents the kind of notification to send.
type NotificationType string

const (
	NotifyEmergency    NotificationType = "emergency"
	NotifyEarlyWarning NotificationType = "early_warning"
	NotifyAdmin        NotificationType = "admin"
)

// Notification holds the data for one alert.
type Notification struct {
	Type      NotificationType
	Recipient string // participant ID
	PatientID string
	TxID      string
	Reason    string
}

// Notifier delivers notifications. Implementations must not block the
// caller for long; the engine calls them inline.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log.Named("notify")}
}

func (l *LogNotifier) Notify(n Notification) {
	l.log.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("to", n.Recipient),
		zap.String("patient", n.PatientID),
		zap.String("tx_id", n.TxID),
		zap.String("reason", n.Reason))
}

// Outbox collects notifications in memory.
type Outbox struct {
	mu   sync.Mutex
	sent []Notification
}

func (o *Outbox) Notify(n Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
}

// Sent returns a copy of the delivered notifications.
func (o *Outbox) Sent() []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Notification(nil), o.sent...)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}
