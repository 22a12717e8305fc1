package attribute

import (
	"fmt"
	"strings"

	"github.com/tallybot/tally/pkg/stream"
)

// Builtin achievement names. These are the values accepted in the
// `attributes` list of tally.yml.
const (
	NameMessage   = "zulip"     // sent any chat message
	NameCode      = "zulipcode" // sent a message containing formatted code
	NameCommit    = "commit"    // pushed a commit announced by the commits integration
	NameBroadcast = "broadcast" // posted a site broadcast
)

// Stream names the builtin predicates key on.
const (
	commitsRecipient   = "commits"
	broadcastRecipient = "Broadcasts"
)

// AnnounceOptions configures where builtin progress announcements go and how
// tracked users are referred to in them.
type AnnounceOptions struct {
	// Channel is the chat stream announcements are posted to
	Channel string

	// Cohort is the singular noun for a tracked user, e.g. "Hacker Schooler"
	Cohort string
}

// Builtin returns the builtin definition registered under name, or an
// UnknownAttributeError if there is no builtin with that name.
func Builtin(name string, opts AnnounceOptions) (*Definition, error) {
	switch name {
	case NameMessage:
		return messageAttribute(opts), nil
	case NameCode:
		return codeAttribute(opts), nil
	case NameCommit:
		return commitAttribute(opts), nil
	case NameBroadcast:
		return broadcastAttribute(opts), nil
	default:
		return nil, &UnknownAttributeError{Name: name}
	}
}

// BuiltinNames returns the names of all builtin achievements.
func BuiltinNames() []string {
	return []string{NameMessage, NameCode, NameCommit, NameBroadcast}
}

// BuiltinRegistry builds a registry containing the named builtin
// achievements in the given order.
func BuiltinRegistry(names []string, opts AnnounceOptions) (*Registry, error) {
	reg := NewRegistry()
	for _, name := range names {
		def, err := Builtin(name, opts)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func messageAttribute(opts AnnounceOptions) *Definition {
	return &Definition{
		Name:        NameMessage,
		DisplayName: "sent a chat message",
		Matches: func(e *stream.Event) bool {
			return e.Kind == stream.EventKindMessage && e.Message != nil
		},
		OnComplete: progressMessage(opts, "Chat Participation Progress", "sent messages in chat"),
	}
}

func codeAttribute(opts AnnounceOptions) *Definition {
	return &Definition{
		Name:        NameCode,
		DisplayName: "sent a chat message containing formatted code",
		Matches: func(e *stream.Event) bool {
			if e.Kind != stream.EventKindMessage || e.Message == nil {
				return false
			}
			content := e.Message.Content
			return strings.Contains(content, "`") ||
				strings.Contains(content, "~~~") ||
				strings.Contains(content, "    ")
		},
		OnComplete: progressMessage(opts, "Chat Participation Progress", "sent messages containing code in chat"),
	}
}

func commitAttribute(opts AnnounceOptions) *Definition {
	return &Definition{
		Name:        NameCommit,
		DisplayName: "pushed a commit announced on the commits stream",
		Matches: func(e *stream.Event) bool {
			if e.Kind != stream.EventKindMessage || e.Message == nil {
				return false
			}
			m := e.Message
			return m.MessageType == stream.MessageTypeStream &&
				m.Recipient == commitsRecipient &&
				strings.Contains(m.Content, "pushed") &&
				strings.Contains(m.Content, "to branch")
		},
		OnComplete: progressMessage(opts, "Commit Participation Progress", "published pushing of commits"),
	}
}

func broadcastAttribute(opts AnnounceOptions) *Definition {
	return &Definition{
		Name:        NameBroadcast,
		DisplayName: "posted a broadcast from the site",
		Matches: func(e *stream.Event) bool {
			return e.Kind == stream.EventKindMessage && e.Message != nil &&
				e.Message.Recipient == broadcastRecipient
		},
		OnComplete: progressMessage(opts, "Broadcast Participation Progress", "posted broadcasts"),
	}
}

// progressMessage builds an OnComplete callback that announces how many of
// the tracked users have completed the achievement.
func progressMessage(opts AnnounceOptions, subject, deed string) func(string, []string, []string) *stream.Message {
	return func(username string, complete []string, all []string) *stream.Message {
		return &stream.Message{
			Channel: opts.Channel,
			Subject: subject,
			Body:    progressBody(len(complete), len(all), opts.Cohort, deed),
		}
	}
}

// progressBody renders the "N out of M" progress line with the grammatical
// number of the cohort noun.
func progressBody(done, total int, cohort, deed string) string {
	if done == 1 {
		return fmt.Sprintf("1 out of %d %s has %s!", total, cohort, deed)
	}
	return fmt.Sprintf("%d out of %d %ss have %s!", done, total, cohort, deed)
}
