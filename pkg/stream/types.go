// Package stream provides type-safe Go definitions and Redis channel patterns
// for the Tally event stream. The stream is how the external collaborators
// (the chat-platform bridge and the control panel CLI) talk to the tracker
// daemon: inbound chat events, outbound announcements, and control requests
// all travel over namespaced Redis Pub/Sub channels.
//
// All channels are namespaced by instance name to enable multiple Tally
// instances to safely coexist on a single Redis server.
package stream

import (
	"fmt"

	"github.com/google/uuid"
)

// EventKindMessage is the only event kind the tracker evaluates. Other kinds
// (presence, typing notifications, etc.) pass through the stream but are
// dropped by the consumer.
const EventKindMessage = "message"

// MessageType describes where a chat message was sent.
type MessageType string

const (
	// MessageTypeStream is a message sent to a public stream/channel
	MessageTypeStream MessageType = "stream"

	// MessageTypeDirect is a private message sent directly to the bot
	MessageTypeDirect MessageType = "direct"
)

// Validate returns an error if the message type is not a known value.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeStream, MessageTypeDirect:
		return nil
	default:
		return fmt.Errorf("unknown message type: %q", string(mt))
	}
}

// Event is a single read-only chat event as delivered by the bridge.
// Events are never mutated; the consumer evaluates each one exactly once.
type Event struct {
	ID      string       `json:"id"`                // UUID assigned by the publisher
	Kind    string       `json:"kind"`              // Event kind, e.g. "message"
	Message *ChatMessage `json:"message,omitempty"` // Present when Kind == "message"
}

// ChatMessage carries the message payload of a message event.
type ChatMessage struct {
	SenderName  string      `json:"sender_name"`  // Display name of the sender
	MessageType MessageType `json:"message_type"` // "stream" or "direct"
	Recipient   string      `json:"recipient"`    // Stream name or direct recipient
	Content     string      `json:"content"`      // Raw message text
}

// Validate checks structural validity of an event. Events that fail
// validation are malformed and get dropped by the consumer without error.
func (e *Event) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid event ID: not a valid UUID")
	}

	if e.Kind == "" {
		return fmt.Errorf("event kind cannot be empty")
	}

	if e.Kind == EventKindMessage {
		if e.Message == nil {
			return fmt.Errorf("message event missing message payload")
		}
		if e.Message.SenderName == "" {
			return fmt.Errorf("message event missing sender name")
		}
		if err := e.Message.MessageType.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Message is an outbound announcement produced when a user completes an
// achievement. It is fire-and-forget: the tracker never retries a failed
// send and a failed send never reverses a persisted completion.
type Message struct {
	Channel string `json:"channel"` // Destination stream/channel
	Subject string `json:"subject"` // Topic within the channel
	Body    string `json:"body"`    // Announcement text
}

// Validate returns an error if the announcement is missing required fields.
func (m *Message) Validate() error {
	if m.Channel == "" {
		return fmt.Errorf("announcement channel cannot be empty")
	}
	if m.Body == "" {
		return fmt.Errorf("announcement body cannot be empty")
	}
	return nil
}

// ControlAction identifies a control-plane operation. Control requests are
// published by the CLI (or a web panel) and applied by the daemon, which is
// the single writer of the state file.
type ControlAction string

const (
	ControlAddUser        ControlAction = "add_user"
	ControlRemoveUser     ControlAction = "remove_user"
	ControlCheckOff       ControlAction = "check_off"
	ControlUncheck        ControlAction = "uncheck"
	ControlUpdate         ControlAction = "update"
	ControlListUsers      ControlAction = "list_users"
	ControlListAttributes ControlAction = "list_attributes"
)

// requiresUser reports whether the action needs a user argument.
func (a ControlAction) requiresUser() bool {
	switch a {
	case ControlAddUser, ControlRemoveUser, ControlCheckOff, ControlUncheck:
		return true
	}
	return false
}

// requiresAttribute reports whether the action needs an attribute argument.
func (a ControlAction) requiresAttribute() bool {
	switch a {
	case ControlCheckOff, ControlUncheck, ControlUpdate:
		return true
	}
	return false
}

// Validate returns an error if the action is not a known value.
func (a ControlAction) Validate() error {
	switch a {
	case ControlAddUser, ControlRemoveUser, ControlCheckOff, ControlUncheck,
		ControlUpdate, ControlListUsers, ControlListAttributes:
		return nil
	default:
		return fmt.Errorf("unknown control action: %q", string(a))
	}
}

// ControlRequest is a single control-plane operation addressed to the daemon.
// The ID doubles as the reply-channel suffix, so each request gets a private
// reply channel.
type ControlRequest struct {
	ID        string        `json:"id"`                  // UUID assigned by the caller
	Action    ControlAction `json:"action"`              // Operation to perform
	User      string        `json:"user,omitempty"`      // Target username (action-dependent)
	Attribute string        `json:"attribute,omitempty"` // Target attribute name (action-dependent)
}

// Validate checks that the request is well formed for its action.
func (r *ControlRequest) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid control request ID: not a valid UUID")
	}

	if err := r.Action.Validate(); err != nil {
		return err
	}

	if r.Action.requiresUser() && r.User == "" {
		return fmt.Errorf("control action %q requires a user", string(r.Action))
	}

	if r.Action.requiresAttribute() && r.Attribute == "" {
		return fmt.Errorf("control action %q requires an attribute", string(r.Action))
	}

	return nil
}

// ControlReply is the daemon's response to a control request, published on
// the request's private reply channel.
type ControlReply struct {
	ID         string   `json:"id"`                   // Echoes the request ID
	OK         bool     `json:"ok"`                   // True if the operation succeeded
	Error      string   `json:"error,omitempty"`      // Failure description when OK is false
	Users      []string `json:"users,omitempty"`      // Populated for list_users
	Attributes []string `json:"attributes,omitempty"` // Populated for list_attributes
	Announced  bool     `json:"announced,omitempty"`  // True if the operation produced an announcement
}

// isValidUUID checks if a string is a valid UUID format
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
