// Package notify forwards progress announcements to the outbound broadcast
// channel. Delivery is best-effort: a failed send is logged and never
// blocks or reverses a state transition that has already been persisted.
package notify

import (
	"context"
	"log"

	"github.com/tallybot/tally/pkg/stream"
)

// Publisher publishes an announcement to the external broadcast channel.
// *stream.Client satisfies this; tests substitute a recorder.
type Publisher interface {
	PublishAnnouncement(ctx context.Context, m *stream.Message) error
}

// Notifier sends completion announcements through a Publisher.
type Notifier struct {
	publisher Publisher
}

// New creates a Notifier that publishes through the given Publisher.
func New(publisher Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Send forwards the announcement. A nil message is a no-op. Failures are
// logged and swallowed: by the time an announcement exists the completion is
// already durable, and notification problems must not propagate back into
// the consumer or the store.
func (n *Notifier) Send(ctx context.Context, m *stream.Message) {
	if m == nil {
		return
	}

	if err := n.publisher.PublishAnnouncement(ctx, m); err != nil {
		log.Printf("[WARN] Failed to send announcement to %s/%s: %v", m.Channel, m.Subject, err)
		return
	}
	log.Printf("[INFO] Announced to %s/%s: %s", m.Channel, m.Subject, m.Body)
}
