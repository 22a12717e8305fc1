package control

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybot/tally/internal/notify"
	"github.com/tallybot/tally/internal/roster"
	"github.com/tallybot/tally/pkg/stream"
)

// setupLoop starts a control loop over miniredis and returns a client for
// issuing requests against it
func setupLoop(t *testing.T, seed []string) *stream.Client {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := stream.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	reg := testRegistry(t)
	store, err := roster.New(filepath.Join(t.TempDir(), "state.json"), reg, seed)
	require.NoError(t, err)

	loop := NewLoop(client, NewPort(store, reg, notify.New(&recorderPublisher{})))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("control loop did not shut down")
		}
	})

	// Give the subscription a moment to register before requests arrive
	time.Sleep(100 * time.Millisecond)

	return client
}

// call performs one control round trip with a generous timeout
func call(t *testing.T, client *stream.Client, req *stream.ControlRequest) *stream.ControlReply {
	t.Helper()
	req.ID = uuid.New().String()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := client.CallControl(ctx, req)
	require.NoError(t, err)
	return reply
}

func TestLoopServesControlRequests(t *testing.T) {
	client := setupLoop(t, []string{"Alice"})

	t.Run("add user", func(t *testing.T) {
		reply := call(t, client, &stream.ControlRequest{Action: stream.ControlAddUser, User: "Bob"})
		assert.True(t, reply.OK)
	})

	t.Run("duplicate add is reported", func(t *testing.T) {
		reply := call(t, client, &stream.ControlRequest{Action: stream.ControlAddUser, User: "Alice"})
		assert.False(t, reply.OK)
		assert.Contains(t, reply.Error, "already on the roster")
	})

	t.Run("list users", func(t *testing.T) {
		reply := call(t, client, &stream.ControlRequest{Action: stream.ControlListUsers})
		assert.True(t, reply.OK)
		assert.Equal(t, []string{"Alice", "Bob"}, reply.Users)
	})

	t.Run("check off and uncheck", func(t *testing.T) {
		reply := call(t, client, &stream.ControlRequest{Action: stream.ControlCheckOff, User: "Alice", Attribute: "zulip"})
		assert.True(t, reply.OK)

		reply = call(t, client, &stream.ControlRequest{Action: stream.ControlUncheck, User: "Alice", Attribute: "zulip"})
		assert.True(t, reply.OK)
	})

	t.Run("update re-announces", func(t *testing.T) {
		reply := call(t, client, &stream.ControlRequest{Action: stream.ControlUpdate, Attribute: "zulip"})
		assert.True(t, reply.OK)
		assert.True(t, reply.Announced)
	})

	t.Run("unknown user is reported", func(t *testing.T) {
		reply := call(t, client, &stream.ControlRequest{Action: stream.ControlCheckOff, User: "Mallory", Attribute: "zulip"})
		assert.False(t, reply.OK)
		assert.Contains(t, reply.Error, "not on the roster")
	})

	t.Run("unknown attribute is reported", func(t *testing.T) {
		reply := call(t, client, &stream.ControlRequest{Action: stream.ControlUpdate, Attribute: "skydiving"})
		assert.False(t, reply.OK)
		assert.Contains(t, reply.Error, "unknown attribute")
	})

	t.Run("list attributes", func(t *testing.T) {
		reply := call(t, client, &stream.ControlRequest{Action: stream.ControlListAttributes})
		assert.True(t, reply.OK)
		assert.Equal(t, []string{"zulip"}, reply.Attributes)
	})

	t.Run("invalid request gets an error reply", func(t *testing.T) {
		// Bypass client-side validation to exercise the loop's own check
		mr := miniredis.NewMiniRedis()
		require.NoError(t, mr.Start())
		t.Cleanup(mr.Close)

		raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { raw.Close() })

		rawClient, err := stream.NewClient(&redis.Options{Addr: mr.Addr()}, "raw-instance")
		require.NoError(t, err)
		t.Cleanup(func() { rawClient.Close() })

		reg := testRegistry(t)
		store, err := roster.New(filepath.Join(t.TempDir(), "state.json"), reg, nil)
		require.NoError(t, err)
		loop := NewLoop(rawClient, NewPort(store, reg, notify.New(&recorderPublisher{})))

		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go func() { _ = loop.Start(ctx) }()
		time.Sleep(100 * time.Millisecond)

		reqID := uuid.New().String()
		pubsub := raw.Subscribe(ctx, stream.ControlReplyChannel("raw-instance", reqID))
		t.Cleanup(func() { pubsub.Close() })
		_, err = pubsub.Receive(ctx)
		require.NoError(t, err)

		payload := `{"id":"` + reqID + `","action":"add_user"}`
		require.NoError(t, raw.Publish(ctx, stream.ControlChannel("raw-instance"), payload).Err())

		select {
		case msg := <-pubsub.Channel():
			assert.Contains(t, msg.Payload, "requires a user")
			assert.Contains(t, msg.Payload, `"ok":false`)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for error reply")
		}
	})
}
