package stream

import "fmt"

// Redis channel pattern helpers
//
// All Pub/Sub channels are namespaced by instance name so multiple Tally
// instances can share one Redis server.
//
// Channel pattern: tally:{instance_name}:{purpose}

// EventsChannel returns the Pub/Sub channel the chat bridge publishes
// inbound events to.
// Pattern: tally:{instance_name}:events
func EventsChannel(instanceName string) string {
	return fmt.Sprintf("tally:%s:events", instanceName)
}

// AnnouncementsChannel returns the Pub/Sub channel the tracker publishes
// outbound progress announcements to. The chat bridge forwards these to the
// chat platform.
// Pattern: tally:{instance_name}:announcements
func AnnouncementsChannel(instanceName string) string {
	return fmt.Sprintf("tally:%s:announcements", instanceName)
}

// ControlChannel returns the Pub/Sub channel control requests are published
// to. Only the daemon subscribes to it.
// Pattern: tally:{instance_name}:control
func ControlChannel(instanceName string) string {
	return fmt.Sprintf("tally:%s:control", instanceName)
}

// ControlReplyChannel returns the per-request reply channel for a control
// request. The caller subscribes before publishing the request.
// Pattern: tally:{instance_name}:control_reply:{request_id}
func ControlReplyChannel(instanceName, requestID string) string {
	return fmt.Sprintf("tally:%s:control_reply:%s", instanceName, requestID)
}
