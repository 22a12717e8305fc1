package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the Tally stream.
// All channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new stream client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Tally instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
// Returns an error if Redis is not reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishEvent publishes a chat event to the instance's events channel.
// Validates the event before publishing. Used by the chat bridge and by the
// emit command; the daemon only subscribes.
func (c *Client) PublishEvent(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := EventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// PublishAnnouncement publishes a progress announcement to the instance's
// announcements channel for the chat bridge to forward.
func (c *Client) PublishAnnouncement(ctx context.Context, m *Message) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid announcement: %w", err)
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}

	channel := AnnouncementsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish announcement: %w", err)
	}

	return nil
}

// EventSubscription wraps a Pub/Sub subscription to the events channel.
// Consumers read decoded events from Events() and decode failures from
// Errors(). Both channels close when the subscription is closed or the
// parent context is cancelled.
type EventSubscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events.
func (s *EventSubscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of decode errors.
func (s *EventSubscription) Errors() <-chan error {
	return s.errors
}

// Close cancels the subscription. Safe to call multiple times.
func (s *EventSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to chat events for this instance.
// A background goroutine decodes each Pub/Sub payload and forwards it on the
// subscription's Events channel; payloads that fail to decode are reported on
// the Errors channel and skipped.
func (c *Client) SubscribeEvents(ctx context.Context) (*EventSubscription, error) {
	channel := EventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Event, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &EventSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// ControlSubscription wraps a Pub/Sub subscription to the control channel.
type ControlSubscription struct {
	requests <-chan *ControlRequest
	errors   <-chan error
	cancel   func()
	once     sync.Once
}

// Requests returns the channel of decoded control requests.
func (s *ControlSubscription) Requests() <-chan *ControlRequest {
	return s.requests
}

// Errors returns the channel of decode errors.
func (s *ControlSubscription) Errors() <-chan error {
	return s.errors
}

// Close cancels the subscription. Safe to call multiple times.
func (s *ControlSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeControl subscribes to control requests for this instance.
// Only the daemon should subscribe; it is the single writer of tracker state.
func (c *Client) SubscribeControl(ctx context.Context) (*ControlSubscription, error) {
	channel := ControlChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	requestsChan := make(chan *ControlRequest, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(requestsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var req ControlRequest
				if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal control request: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case requestsChan <- &req:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &ControlSubscription{
		requests: requestsChan,
		errors:   errorsChan,
		cancel:   cancelFunc,
	}, nil
}

// PublishControlReply publishes the daemon's reply on the request's private
// reply channel.
func (c *Client) PublishControlReply(ctx context.Context, reply *ControlReply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal control reply: %w", err)
	}

	channel := ControlReplyChannel(c.instanceName, reply.ID)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish control reply: %w", err)
	}

	return nil
}

// CallControl performs a control-plane round trip: subscribe to the
// request's reply channel, publish the request, and wait for the daemon's
// reply. The caller bounds the wait through ctx (use context.WithTimeout).
//
// Returns an error if the request is invalid, publishing fails, or the
// context expires before a reply arrives — typically because no daemon is
// running for this instance.
func (c *Client) CallControl(ctx context.Context, req *ControlRequest) (*ControlReply, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid control request: %w", err)
	}

	// Subscribe to the reply channel before publishing so the reply cannot
	// be missed.
	replyChannel := ControlReplyChannel(c.instanceName, req.ID)
	pubsub := c.rdb.Subscribe(ctx, replyChannel)
	defer pubsub.Close()

	// Force subscription confirmation before the request goes out.
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply channel: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal control request: %w", err)
	}

	channel := ControlChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return nil, fmt.Errorf("failed to publish control request: %w", err)
	}

	ch := pubsub.Channel()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out waiting for control reply (is the tally daemon running?): %w", ctx.Err())
	case msg, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("reply subscription closed before a reply arrived")
		}

		var reply ControlReply
		if err := json.Unmarshal([]byte(msg.Payload), &reply); err != nil {
			return nil, fmt.Errorf("failed to unmarshal control reply: %w", err)
		}
		return &reply, nil
	}
}
