// Package control exposes the administrative operations of the tracker: the
// Port façade the control panel drives, and the daemon-side loop that serves
// Port operations to other processes over the control channel.
package control

import (
	"context"

	"github.com/tallybot/tally/internal/attribute"
	"github.com/tallybot/tally/internal/notify"
	"github.com/tallybot/tally/internal/roster"
)

// Port is a thin façade over the roster store and attribute registry for
// administrative callers. It bypasses the event consumer entirely: control
// operations and consumer-driven check-offs interleave only through the
// store's lock.
type Port struct {
	store    *roster.Store
	registry *attribute.Registry
	notifier *notify.Notifier
}

// NewPort creates the control façade.
func NewPort(store *roster.Store, registry *attribute.Registry, notifier *notify.Notifier) *Port {
	return &Port{
		store:    store,
		registry: registry,
		notifier: notifier,
	}
}

// AddUser puts a new user on the roster.
func (p *Port) AddUser(username string) error {
	return p.store.Add(username)
}

// RemoveUser deletes a user from the roster.
func (p *Port) RemoveUser(username string) error {
	return p.store.Remove(username)
}

// CheckOffManual marks an attribute complete for a user without announcing
// it. Administrative corrections are silent: the completion is recorded and
// persisted exactly as for an observed event, but the progress message is
// discarded.
func (p *Port) CheckOffManual(username, attributeName string) error {
	_, err := p.store.CheckOff(username, attributeName)
	return err
}

// Uncheck marks an attribute incomplete for a user.
func (p *Port) Uncheck(username, attributeName string) error {
	return p.store.Uncheck(username, attributeName)
}

// UpdateBroadcast re-announces the current progress for an attribute without
// mutating any state. Returns true if an announcement was sent.
func (p *Port) UpdateBroadcast(ctx context.Context, attributeName string) (bool, error) {
	msg, err := p.store.Recompute(attributeName)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}
	p.notifier.Send(ctx, msg)
	return true, nil
}

// ListUsers returns all tracked usernames, sorted.
func (p *Port) ListUsers() []string {
	return p.store.Users()
}

// ListAttributeNames returns the registered attribute names in registration
// order.
func (p *Port) ListAttributeNames() []string {
	return p.registry.Names()
}
