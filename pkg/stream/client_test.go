package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.instanceName)
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	err := client.Ping(ctx)
	assert.NoError(t, err)
}

func TestPublishEvent(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("rejects invalid event", func(t *testing.T) {
		err := client.PublishEvent(ctx, &Event{ID: "bad", Kind: EventKindMessage})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid event")
	})

	t.Run("publishes valid event", func(t *testing.T) {
		err := client.PublishEvent(ctx, validEvent())
		assert.NoError(t, err)
	})
}

func TestSubscribeEvents(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := client.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	// Give the subscription a moment to register before publishing
	time.Sleep(100 * time.Millisecond)

	t.Run("receives published event", func(t *testing.T) {
		event := validEvent()
		require.NoError(t, client.PublishEvent(ctx, event))

		select {
		case got := <-sub.Events():
			assert.Equal(t, event.ID, got.ID)
			assert.Equal(t, "Alice", got.Message.SenderName)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("reports undecodable payloads on the error channel", func(t *testing.T) {
		// Publish garbage directly, bypassing validation
		raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer raw.Close()
		require.NoError(t, raw.Publish(ctx, EventsChannel("test-instance"), "{not json").Err())

		select {
		case err := <-sub.Errors():
			assert.Contains(t, err.Error(), "failed to unmarshal event")
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for decode error")
		}
	})

	t.Run("closes channels on cancellation", func(t *testing.T) {
		cancel()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "events channel should be closed")
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for channel close")
		}
	})
}

func TestControlRoundTrip(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stand-in daemon: echo every request back as a successful reply
	sub, err := client.SubscribeControl(ctx)
	require.NoError(t, err)
	defer sub.Close()

	go func() {
		for req := range sub.Requests() {
			reply := &ControlReply{ID: req.ID, OK: true, Users: []string{"Alice"}}
			_ = client.PublishControlReply(ctx, reply)
		}
	}()

	// Give the subscription a moment to register before publishing
	time.Sleep(100 * time.Millisecond)

	t.Run("round trips a request", func(t *testing.T) {
		callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
		defer callCancel()

		reply, err := client.CallControl(callCtx, &ControlRequest{
			ID:     uuid.New().String(),
			Action: ControlListUsers,
		})
		require.NoError(t, err)
		assert.True(t, reply.OK)
		assert.Equal(t, []string{"Alice"}, reply.Users)
	})

	t.Run("rejects invalid request before publishing", func(t *testing.T) {
		_, err := client.CallControl(ctx, &ControlRequest{ID: "bad", Action: ControlListUsers})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid control request")
	})
}

func TestCallControlTimesOutWithoutDaemon(t *testing.T) {
	client, _ := setupTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.CallControl(ctx, &ControlRequest{
		ID:     uuid.New().String(),
		Action: ControlListUsers,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out waiting for control reply")
}
