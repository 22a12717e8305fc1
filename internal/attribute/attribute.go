// Package attribute defines the achievements Tally tracks: named predicates
// over single chat events, plus the progress announcements produced when a
// user first completes one.
package attribute

import (
	"github.com/tallybot/tally/pkg/stream"
)

// Definition is a single named achievement. Definitions are registered once
// at startup and immutable thereafter.
//
// Matches is a pure predicate over a single event — no cross-event state.
// OnComplete computes the progress announcement for a completion; it is
// called with the completing username, the set of users that have completed
// the attribute (including the one that just did), and all tracked users.
// Returning nil means no announcement.
type Definition struct {
	// Name uniquely identifies the attribute within a registry
	Name string

	// DisplayName is a human-readable description of the achievement
	DisplayName string

	// Matches reports whether a single chat event satisfies the achievement
	Matches func(e *stream.Event) bool

	// OnComplete builds the progress announcement for a completion, or nil
	OnComplete func(username string, complete []string, all []string) *stream.Message
}
