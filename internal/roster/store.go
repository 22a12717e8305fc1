// Package roster owns the per-user achievement completion state: which of
// the registered attributes each tracked user has completed. All mutations
// are serialized through a single lock and persisted to the state file
// before the lock is released, so no caller ever observes state that is not
// yet durable.
package roster

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tallybot/tally/internal/attribute"
	"github.com/tallybot/tally/pkg/stream"
)

// Store maps each tracked username to its attribute completion flags and
// keeps the mapping durable across restarts. Attribute names are resolved
// through the registry supplied at construction; the store itself only holds
// flags.
type Store struct {
	mu       sync.Mutex
	path     string
	registry *attribute.Registry
	users    map[string]map[string]bool
}

// New opens the store backed by the state file at path.
//
// If the file exists its contents win: the seed list is ignored and the
// persisted mapping is loaded as-is (flags for attributes that are no longer
// registered are dropped with a warning). If the file does not exist, the
// store is initialized with the seed usernames, each with an empty flag map,
// and written immediately.
func New(path string, registry *attribute.Registry, seed []string) (*Store, error) {
	s := &Store{
		path:     path,
		registry: registry,
		users:    make(map[string]map[string]bool),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		for _, name := range seed {
			s.users[name] = make(map[string]bool)
		}
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("failed to initialize state file: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.users); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}

	s.pruneUnregistered()

	return s, nil
}

// pruneUnregistered drops persisted flags whose attribute is no longer
// registered, keeping flag keys a subset of registered names.
func (s *Store) pruneUnregistered() {
	registered := make(map[string]bool)
	for _, name := range s.registry.Names() {
		registered[name] = true
	}

	for user, flags := range s.users {
		if flags == nil {
			s.users[user] = make(map[string]bool)
			continue
		}
		for att := range flags {
			if !registered[att] {
				log.Printf("[WARN] Dropping flag for unregistered attribute %q on user %q", att, user)
				delete(flags, att)
			}
		}
	}
}

// Add puts a new user on the roster with no completed attributes.
// Add is strict: it returns a DuplicateUserError if the user is already
// tracked rather than silently succeeding.
func (s *Store) Add(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return &DuplicateUserError{Username: username}
	}

	s.users[username] = make(map[string]bool)
	if err := s.persistLocked(); err != nil {
		delete(s.users, username)
		return fmt.Errorf("failed to persist after adding %q: %w", username, err)
	}
	return nil
}

// Remove deletes a user and all their completion flags.
// Returns an UnknownUserError if the user is not tracked.
func (s *Store) Remove(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.users[username]
	if !exists {
		return &UnknownUserError{Username: username}
	}

	delete(s.users, username)
	if err := s.persistLocked(); err != nil {
		s.users[username] = prev
		return fmt.Errorf("failed to persist after removing %q: %w", username, err)
	}
	return nil
}

// CheckOff marks an attribute complete for a user and returns the progress
// announcement computed by the attribute's OnComplete callback, if any.
//
// CheckOff is idempotent: if the flag is already set it returns (nil, nil)
// without touching the state file, so reprocessing an event is always safe.
// On the first transition the flag update and the persistence write succeed
// or fail as a unit — if the write fails the in-memory flag is rolled back
// and the error returned, leaving the pair incomplete.
func (s *Store) CheckOff(username, attributeName string) (*stream.Message, error) {
	def, err := s.registry.Lookup(attributeName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flags, exists := s.users[username]
	if !exists {
		return nil, &UnknownUserError{Username: username}
	}

	if flags[attributeName] {
		// Already complete - nothing to do, nothing to announce
		return nil, nil
	}

	flags[attributeName] = true

	// Completed set is computed after the flag update so the announcement
	// counts the user that just completed.
	var msg *stream.Message
	if def.OnComplete != nil {
		msg = def.OnComplete(username, s.completeLocked(attributeName), s.namesLocked())
	}

	if err := s.persistLocked(); err != nil {
		delete(flags, attributeName)
		return nil, fmt.Errorf("failed to persist check-off of %q for %q: %w", attributeName, username, err)
	}

	return msg, nil
}

// Uncheck unconditionally marks an attribute incomplete for a user,
// regardless of its prior state. Uncheck is a correction action and never
// produces an announcement.
func (s *Store) Uncheck(username, attributeName string) error {
	if _, err := s.registry.Lookup(attributeName); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flags, exists := s.users[username]
	if !exists {
		return &UnknownUserError{Username: username}
	}

	prev, had := flags[attributeName]
	flags[attributeName] = false

	if err := s.persistLocked(); err != nil {
		if had {
			flags[attributeName] = prev
		} else {
			delete(flags, attributeName)
		}
		return fmt.Errorf("failed to persist uncheck of %q for %q: %w", attributeName, username, err)
	}
	return nil
}

// Recompute runs the attribute's OnComplete callback against the current
// state without mutating any flag. It backs the manual "re-broadcast current
// progress" control operation.
func (s *Store) Recompute(attributeName string) (*stream.Message, error) {
	def, err := s.registry.Lookup(attributeName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if def.OnComplete == nil {
		return nil, nil
	}
	return def.OnComplete("someone", s.completeLocked(attributeName), s.namesLocked()), nil
}

// ListComplete returns the sorted usernames that have completed the
// attribute.
func (s *Store) ListComplete(attributeName string) ([]string, error) {
	if _, err := s.registry.Lookup(attributeName); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked(attributeName), nil
}

// ListIncomplete returns the sorted usernames that have not completed the
// attribute.
func (s *Store) ListIncomplete(attributeName string) ([]string, error) {
	if _, err := s.registry.Lookup(attributeName); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var incomplete []string
	for user, flags := range s.users {
		if !flags[attributeName] {
			incomplete = append(incomplete, user)
		}
	}
	sort.Strings(incomplete)
	return incomplete, nil
}

// Users returns all tracked usernames, sorted.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namesLocked()
}

// Has reports whether the username is on the roster.
func (s *Store) Has(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.users[username]
	return exists
}

// completeLocked returns the sorted usernames with the attribute flag set.
// Callers must hold s.mu.
func (s *Store) completeLocked(attributeName string) []string {
	var complete []string
	for user, flags := range s.users {
		if flags[attributeName] {
			complete = append(complete, user)
		}
	}
	sort.Strings(complete)
	return complete
}

// namesLocked returns all tracked usernames, sorted. Callers must hold s.mu.
func (s *Store) namesLocked() []string {
	names := make([]string, 0, len(s.users))
	for user := range s.users {
		names = append(names, user)
	}
	sort.Strings(names)
	return names
}

// persistLocked writes the full user mapping to the state file via a temp
// file and atomic rename, so a crash mid-write never leaves a truncated or
// half-updated file behind. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tally-state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
