// Package engine implements the event consumer: the single long-running
// loop that receives chat events from the stream, resolves each one to a
// tracked user, evaluates it against every registered attribute, and checks
// off the matches.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tallybot/tally/internal/attribute"
	"github.com/tallybot/tally/internal/notify"
	"github.com/tallybot/tally/internal/roster"
	"github.com/tallybot/tally/pkg/stream"
)

// RemapRule describes how events from the anonymous broadcast relay sender
// are attributed to a real tracked user. The relay posts bodies of the form
// "<content> <delimiter> <author>"; the rule takes the text after the last
// delimiter, skips one following space, and appends the configured
// display-name suffix.
type RemapRule struct {
	// Sender is the relay's display name, e.g. "Broadcasts". Empty disables
	// remapping.
	Sender string

	// Delimiter separates the body from the author name
	Delimiter string

	// Suffix is appended to the parsed author to form the roster username
	Suffix string
}

// Engine consumes chat events and drives achievement check-offs.
// Events are processed strictly in arrival order; each event is fully
// handled (including any persistence inside the store) before the next one
// is taken or a shutdown signal is honored.
type Engine struct {
	client   *stream.Client
	store    *roster.Store
	registry *attribute.Registry
	notifier *notify.Notifier
	remap    RemapRule
}

// New creates an engine over the given collaborators. The engine does not
// begin consuming until Start is called.
func New(client *stream.Client, store *roster.Store, registry *attribute.Registry, notifier *notify.Notifier, remap RemapRule) *Engine {
	return &Engine{
		client:   client,
		store:    store,
		registry: registry,
		notifier: notifier,
		remap:    remap,
	}
}

// Start subscribes to the event stream and blocks, processing events until
// the context is cancelled. Cancellation is only observed between events, so
// the event in flight — and its persistence write — always completes before
// Start returns.
func (e *Engine) Start(ctx context.Context) error {
	sub, err := e.client.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}
	defer sub.Close()

	log.Printf("[INFO] Event consumer started, tracking %d attribute(s) for %d user(s)",
		len(e.registry.Names()), len(e.store.Users()))

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] Event consumer received shutdown signal")
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			// Undecodable payloads are malformed events: log and move on
			log.Printf("[WARN] Dropping malformed event: %v", err)

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			e.handleEvent(ctx, event)
		}
	}
}

// handleEvent runs a single event through resolution, every predicate, and
// any resulting check-offs.
func (e *Engine) handleEvent(ctx context.Context, event *stream.Event) {
	if err := event.Validate(); err != nil {
		log.Printf("[WARN] Dropping malformed event: %v", err)
		return
	}

	username, ok := e.resolveUser(event)
	if !ok {
		return
	}

	for _, name := range e.registry.Names() {
		def, err := e.registry.Lookup(name)
		if err != nil {
			// Names() and Lookup() share the same registry; unreachable
			continue
		}

		if !e.matches(def, event) {
			continue
		}

		msg, err := e.store.CheckOff(username, name)
		if err != nil {
			// Persistence failure: the flag was rolled back, so the event
			// counts as unprocessed for this attribute. CheckOff is
			// idempotent, so a later event for the same pair is safe.
			log.Printf("[ERROR] Failed to check off %q for %q: %v", name, username, err)
			continue
		}

		e.notifier.Send(ctx, msg)
	}
}

// matches evaluates a single predicate with panic isolation: a predicate
// that panics is treated as a non-match and does not prevent the remaining
// attributes from being evaluated.
func (e *Engine) matches(def *attribute.Definition, event *stream.Event) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Predicate for attribute %q panicked on event %s: %v", def.Name, event.ID, r)
			matched = false
		}
	}()
	return def.Matches(event)
}

// resolveUser maps an event to a tracked username. Non-message events,
// unknown senders, and relay messages without a parseable author all resolve
// to nothing and the event is silently dropped.
func (e *Engine) resolveUser(event *stream.Event) (string, bool) {
	if event.Kind != stream.EventKindMessage || event.Message == nil {
		return "", false
	}

	sender := event.Message.SenderName
	if e.remap.Sender != "" && sender == e.remap.Sender {
		content := event.Message.Content
		i := strings.LastIndex(content, e.remap.Delimiter)
		if i < 0 {
			log.Printf("[DEBUG] Dropping relay event %s: no %q delimiter in body", event.ID, e.remap.Delimiter)
			return "", false
		}

		name := strings.TrimPrefix(content[i+len(e.remap.Delimiter):], " ")
		sender = name + e.remap.Suffix
		log.Printf("[DEBUG] Relay event %s remapped to %q", event.ID, sender)
	}

	if !e.store.Has(sender) {
		log.Printf("[DEBUG] Dropping event %s: sender %q is not on the roster", event.ID, sender)
		return "", false
	}
	return sender, true
}
