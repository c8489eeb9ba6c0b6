// Package notify provides the notifier collaborator implementations. The core
// reports breaches, warnings, terminal transitions and schedule expiries
// through schemas.Notifier; delivery transports (email, chat, webhook) live
// behind that interface and are out of scope here.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/cindralabs/riskcore/api/schemas"
)

// LogNotifier writes every event to the structured log. It is the default
// sink for single-process deployments and a useful audit trail in front of
// any real transport.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{log: logger.Named("notifier")}
}

// Notify implements schemas.Notifier.
func (n *LogNotifier) Notify(_ context.Context, entityID string, event schemas.EventType, payload map[string]any) error {
	n.log.Info("Entity event",
		zap.String("entity_id", entityID),
		zap.String("event", string(event)),
		zap.Any("payload", payload),
	)
	return nil
}

// Multi fans one event out to several notifiers. Delivery failures do not
// stop the remaining notifiers; the first error is returned after all have
// been attempted.
type Multi struct {
	notifiers []schemas.Notifier
}

// NewMulti combines notifiers into one fan-out sink.
func NewMulti(notifiers ...schemas.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify implements schemas.Notifier.
func (m *Multi) Notify(ctx context.Context, entityID string, event schemas.EventType, payload map[string]any) error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, entityID, event, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop discards every event.
type Nop struct{}

// Notify implements schemas.Notifier.
func (Nop) Notify(context.Context, string, schemas.EventType, map[string]any) error { return nil }
