package control

import (
	"context"
	"fmt"
	"log"

	"github.com/tallybot/tally/pkg/stream"
)

// Loop serves Port operations to external processes over the control
// channel. The daemon runs exactly one Loop, so every state-file write —
// consumer-driven or administrative — happens inside this process, keeping
// the single-writer discipline on the state file.
type Loop struct {
	client *stream.Client
	port   *Port
}

// NewLoop creates a control loop dispatching into the given Port.
func NewLoop(client *stream.Client, port *Port) *Loop {
	return &Loop{
		client: client,
		port:   port,
	}
}

// Start subscribes to the control channel and blocks, serving requests until
// the context is cancelled. Each request is fully applied and replied to
// before the next one is taken.
func (l *Loop) Start(ctx context.Context) error {
	sub, err := l.client.SubscribeControl(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to control channel: %w", err)
	}
	defer sub.Close()

	log.Printf("[INFO] Control loop started")

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] Control loop received shutdown signal")
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			log.Printf("[WARN] Dropping malformed control request: %v", err)

		case req, ok := <-sub.Requests():
			if !ok {
				return nil
			}
			l.handle(ctx, req)
		}
	}
}

// handle applies one request and publishes its reply. Reply publish failures
// are logged only: the operation itself has already been applied and
// persisted, and the caller's timeout covers the lost reply.
func (l *Loop) handle(ctx context.Context, req *stream.ControlRequest) {
	reply := l.apply(ctx, req)
	if err := l.client.PublishControlReply(ctx, reply); err != nil {
		log.Printf("[WARN] Failed to publish control reply %s: %v", req.ID, err)
	}
}

// apply dispatches a request into the Port and builds the reply.
func (l *Loop) apply(ctx context.Context, req *stream.ControlRequest) *stream.ControlReply {
	reply := &stream.ControlReply{ID: req.ID}

	if err := req.Validate(); err != nil {
		reply.Error = err.Error()
		return reply
	}

	log.Printf("[INFO] Control request %s: %s user=%q attribute=%q", req.ID, req.Action, req.User, req.Attribute)

	var err error
	switch req.Action {
	case stream.ControlAddUser:
		err = l.port.AddUser(req.User)
	case stream.ControlRemoveUser:
		err = l.port.RemoveUser(req.User)
	case stream.ControlCheckOff:
		err = l.port.CheckOffManual(req.User, req.Attribute)
	case stream.ControlUncheck:
		err = l.port.Uncheck(req.User, req.Attribute)
	case stream.ControlUpdate:
		reply.Announced, err = l.port.UpdateBroadcast(ctx, req.Attribute)
	case stream.ControlListUsers:
		reply.Users = l.port.ListUsers()
	case stream.ControlListAttributes:
		reply.Attributes = l.port.ListAttributeNames()
	}

	if err != nil {
		reply.Error = err.Error()
		return reply
	}

	reply.OK = true
	return reply
}
