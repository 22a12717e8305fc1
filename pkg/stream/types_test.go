package stream

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validEvent() *Event {
	return &Event{
		ID:   uuid.New().String(),
		Kind: EventKindMessage,
		Message: &ChatMessage{
			SenderName:  "Alice",
			MessageType: MessageTypeStream,
			Recipient:   "general",
			Content:     "hello",
		},
	}
}

func TestEventValidate(t *testing.T) {
	t.Run("accepts valid message event", func(t *testing.T) {
		assert.NoError(t, validEvent().Validate())
	})

	t.Run("accepts non-message event without payload", func(t *testing.T) {
		event := &Event{ID: uuid.New().String(), Kind: "presence"}
		assert.NoError(t, event.Validate())
	})

	t.Run("rejects invalid ID", func(t *testing.T) {
		event := validEvent()
		event.ID = "not-a-uuid"
		err := event.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not a valid UUID")
	})

	t.Run("rejects empty kind", func(t *testing.T) {
		event := validEvent()
		event.Kind = ""
		assert.Error(t, event.Validate())
	})

	t.Run("rejects message event without payload", func(t *testing.T) {
		event := validEvent()
		event.Message = nil
		err := event.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "missing message payload")
	})

	t.Run("rejects message event without sender", func(t *testing.T) {
		event := validEvent()
		event.Message.SenderName = ""
		assert.Error(t, event.Validate())
	})

	t.Run("rejects unknown message type", func(t *testing.T) {
		event := validEvent()
		event.Message.MessageType = "carrier-pigeon"
		assert.Error(t, event.Validate())
	})
}

func TestMessageValidate(t *testing.T) {
	t.Run("accepts valid announcement", func(t *testing.T) {
		m := &Message{Channel: "participation", Subject: "Progress", Body: "1 out of 2"}
		assert.NoError(t, m.Validate())
	})

	t.Run("rejects empty channel", func(t *testing.T) {
		m := &Message{Body: "text"}
		assert.Error(t, m.Validate())
	})

	t.Run("rejects empty body", func(t *testing.T) {
		m := &Message{Channel: "participation"}
		assert.Error(t, m.Validate())
	})
}

func TestControlRequestValidate(t *testing.T) {
	t.Run("accepts valid request", func(t *testing.T) {
		req := &ControlRequest{
			ID:     uuid.New().String(),
			Action: ControlAddUser,
			User:   "Alice",
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("rejects invalid ID", func(t *testing.T) {
		req := &ControlRequest{ID: "nope", Action: ControlListUsers}
		assert.Error(t, req.Validate())
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		req := &ControlRequest{ID: uuid.New().String(), Action: "reboot"}
		err := req.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown control action")
	})

	t.Run("rejects missing user for user actions", func(t *testing.T) {
		for _, action := range []ControlAction{ControlAddUser, ControlRemoveUser, ControlCheckOff, ControlUncheck} {
			req := &ControlRequest{ID: uuid.New().String(), Action: action, Attribute: "zulip"}
			assert.Error(t, req.Validate(), "action %s should require a user", action)
		}
	})

	t.Run("rejects missing attribute for attribute actions", func(t *testing.T) {
		for _, action := range []ControlAction{ControlCheckOff, ControlUncheck, ControlUpdate} {
			req := &ControlRequest{ID: uuid.New().String(), Action: action, User: "Alice"}
			assert.Error(t, req.Validate(), "action %s should require an attribute", action)
		}
	})

	t.Run("list actions need no arguments", func(t *testing.T) {
		for _, action := range []ControlAction{ControlListUsers, ControlListAttributes} {
			req := &ControlRequest{ID: uuid.New().String(), Action: action}
			assert.NoError(t, req.Validate())
		}
	})
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "tally:demo:events", EventsChannel("demo"))
	assert.Equal(t, "tally:demo:announcements", AnnouncementsChannel("demo"))
	assert.Equal(t, "tally:demo:control", ControlChannel("demo"))
	assert.Equal(t, "tally:demo:control_reply:abc", ControlReplyChannel("demo", "abc"))
}
