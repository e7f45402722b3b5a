// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/launch-controller/internal/logic"
)

// Topic is the MQTT topic for controller events.
const Topic = "launch/controller/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "launch/controller/system"

// TopicCountdown is the MQTT topic for display telemetry.
const TopicCountdown = "launch/controller/countdown"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishCountdown sends a display value to the broker.
	PublishCountdown(c Countdown) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Countdown is the value shown on one display at a point in time.
type Countdown struct {
	Timestamp time.Time
	Display   string // "main" or "pad1".."padN"
	Value     int
	Blank     bool
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Launch LaunchPayload `json:"launch"`
}

// LaunchPayload contains the controller event details.
type LaunchPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Pad       int    `json:"pad,omitempty"` // 1-based, omitted when the event has no pad
	Session   string `json:"session,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event logic.Event) ([]byte, error) {
	inner := LaunchPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Session:   event.Session,
		Reason:    event.Reason,
	}
	if event.Pad != logic.NoPad {
		inner.Pad = event.Pad + 1
	}
	return json.Marshal(Payload{Launch: inner})
}

// CountdownPayload represents the MQTT message payload for display telemetry.
type CountdownPayload struct {
	Countdown CountdownInner `json:"countdown"`
}

// CountdownInner contains the display details.
type CountdownInner struct {
	Timestamp string `json:"timestamp"`
	Display   string `json:"display"`
	Value     int    `json:"value"`
	Blank     bool   `json:"blank"`
}

// FormatCountdownPayload creates the JSON payload for a display value.
func FormatCountdownPayload(c Countdown) ([]byte, error) {
	return json.Marshal(CountdownPayload{
		Countdown: CountdownInner{
			Timestamp: c.Timestamp.UTC().Format(time.RFC3339),
			Display:   c.Display,
			Value:     c.Value,
			Blank:     c.Blank,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
