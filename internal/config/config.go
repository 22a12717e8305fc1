// Package config loads and validates tally.yml, the tracker's startup
// configuration: the state file location, the seed roster, the enabled
// achievements, and the broadcast-relay remap rule.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tallybot/tally/internal/attribute"
)

// TallyConfig represents the top-level tally.yml configuration
type TallyConfig struct {
	Version    string           `yaml:"version"`
	StateFile  string           `yaml:"state_file"`
	Users      []string         `yaml:"users,omitempty"`      // Seed roster, used only when no state file exists
	Attributes []string         `yaml:"attributes,omitempty"` // Enabled builtin achievements, in evaluation order
	Announce   *AnnounceConfig  `yaml:"announce,omitempty"`
	Broadcast  *BroadcastConfig `yaml:"broadcast,omitempty"`
}

// AnnounceConfig specifies where progress announcements are posted
type AnnounceConfig struct {
	Channel string `yaml:"channel,omitempty"` // Destination stream (default "participation")
	Cohort  string `yaml:"cohort,omitempty"`  // Singular noun for a tracked user (default "member")
}

// BroadcastConfig specifies the relay-sender remap rule
type BroadcastConfig struct {
	Sender    string `yaml:"sender,omitempty"`    // Relay display name (default "Broadcasts")
	Delimiter string `yaml:"delimiter,omitempty"` // Delimiter before the author name (default "-")
	Suffix    string `yaml:"suffix,omitempty"`    // Appended to the parsed author (default "")
}

// Load reads, parses, and validates the configuration file at path.
// Defaults are applied before validation, so the returned config is fully
// populated.
func Load(path string) (*TallyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg TallyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted sections.
func (c *TallyConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: state file
	if c.StateFile == "" {
		return fmt.Errorf("state_file is required")
	}

	// Default: all builtin achievements, in catalog order
	if len(c.Attributes) == 0 {
		c.Attributes = attribute.BuiltinNames()
	}

	// Enabled attributes must be known builtins and unique
	seen := make(map[string]bool)
	for _, name := range c.Attributes {
		if _, err := attribute.Builtin(name, attribute.AnnounceOptions{}); err != nil {
			return fmt.Errorf("unknown attribute %q (valid attributes: %v)", name, attribute.BuiltinNames())
		}
		if seen[name] {
			return fmt.Errorf("duplicate attribute %q", name)
		}
		seen[name] = true
	}

	// Seed usernames must be non-empty and unique
	seenUsers := make(map[string]bool)
	for i, user := range c.Users {
		if user == "" {
			return fmt.Errorf("users[%d]: username cannot be empty", i)
		}
		if seenUsers[user] {
			return fmt.Errorf("duplicate user %q", user)
		}
		seenUsers[user] = true
	}

	// Apply default announce config if missing
	if c.Announce == nil {
		c.Announce = &AnnounceConfig{}
	}
	if c.Announce.Channel == "" {
		c.Announce.Channel = "participation"
	}
	if c.Announce.Cohort == "" {
		c.Announce.Cohort = "member"
	}

	// Apply default broadcast remap config if missing
	if c.Broadcast == nil {
		c.Broadcast = &BroadcastConfig{}
	}
	if c.Broadcast.Sender == "" {
		c.Broadcast.Sender = "Broadcasts"
	}
	if c.Broadcast.Delimiter == "" {
		c.Broadcast.Delimiter = "-"
	}

	return nil
}

// AnnounceOptions converts the announce section into builtin catalog options.
func (c *TallyConfig) AnnounceOptions() attribute.AnnounceOptions {
	return attribute.AnnounceOptions{
		Channel: c.Announce.Channel,
		Cohort:  c.Announce.Cohort,
	}
}
