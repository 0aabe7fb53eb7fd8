package network

import (
	"context"

	"locked-study/server/logging"
)

const (
	// EventCommandRejected is emitted when a staged command is refused.
	EventCommandRejected logging.EventType = "network.command_rejected"
	// EventMalformedFrame is emitted when a client frame cannot be decoded.
	EventMalformedFrame logging.EventType = "network.malformed_frame"
	// EventHeartbeat is emitted when a heartbeat updates a player's RTT.
	EventHeartbeat logging.EventType = "network.heartbeat"
)

// CommandRejectedPayload captures the refused command.
type CommandRejectedPayload struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq,omitempty"`
	Reason string `json:"reason"`
}

// MalformedFramePayload describes the decode failure.
type MalformedFramePayload struct {
	Codec string `json:"codec"`
	Error string `json:"error"`
	Size  int    `json:"size"`
}

// HeartbeatPayload records the measured round trip.
type HeartbeatPayload struct {
	RTTMillis int64 `json:"rttMillis"`
}

// CommandRejected publishes a warning for a refused command.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// MalformedFrame publishes a warning for an undecodable frame.
func MalformedFrame(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MalformedFramePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMalformedFrame,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// Heartbeat publishes a debug event for a heartbeat round trip.
func Heartbeat(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload HeartbeatPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHeartbeat,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
