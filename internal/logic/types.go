// Package logic contains the pure control core of the launch controller:
// input debouncing, the safety state machine, the connection handshake and
// the per-pad launch sequencer.
// This package has NO hardware dependencies (no GPIO, serial, MQTT or
// time.Sleep). Time is always injectable via time.Time parameters and all
// outputs go through the Channel, Display and Indicators interfaces.
package logic

import "time"

// PadCount is the number of launch pads. It is fixed at startup.
const PadCount = 5

// NoPad marks events and messages that are not addressed to a pad.
const NoPad = -1

// SafetyState is the top-level state of the controller.
type SafetyState string

const (
	SafetyOff              SafetyState = "OFF"
	SafetyStarting         SafetyState = "STARTING"
	SafetyArmed            SafetyState = "ARMED"
	SafetyEmergencyStopped SafetyState = "EMERGENCY_STOPPED"
)

// ConnectionState is the state of the wireless session with the pad controller.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "DISCONNECTED"
	ConnConnecting   ConnectionState = "CONNECTING"
	ConnConnected    ConnectionState = "CONNECTED"
	ConnFailed       ConnectionState = "FAILED"
)

// LinkStatus drives the two status indicators. The indicators are mutually
// exclusive, so a single value describes both.
type LinkStatus string

const (
	LinkNone  LinkStatus = "NONE"
	LinkOK    LinkStatus = "OK"
	LinkError LinkStatus = "ERROR"
)

// Timing holds the timing constants of the control core.
type Timing struct {
	Debounce          time.Duration
	ConnectionTimeout time.Duration
	RetryInterval     time.Duration
	Countdown         time.Duration
	// StartupSweep is the length of the digit sweep shown on all displays
	// when the key switch is turned on. Zero disables it.
	StartupSweep time.Duration
}

// DefaultTiming returns the standard controller timings.
func DefaultTiming() Timing {
	return Timing{
		Debounce:          50 * time.Millisecond,
		ConnectionTimeout: 5000 * time.Millisecond,
		RetryInterval:     100 * time.Millisecond,
		Countdown:         5000 * time.Millisecond,
		StartupSweep:      1000 * time.Millisecond,
	}
}

// PinMap names the input pin of every switch. Pin numbers are only carried
// for logging and status; the logic never touches hardware.
type PinMap struct {
	Key     int
	Enable  int
	Trigger int
	EStop   int
	Pads    [PadCount]int
}

// Sample is a single reading of all inputs in logical form
// (true = engaged, i.e. the active-low pin reads low).
type Sample struct {
	Key     bool
	Enable  bool
	Trigger bool
	EStop   bool
	Pads    [PadCount]bool
}

// EventType identifies a controller event.
type EventType string

const (
	EventKeyOn            EventType = "KEY_ON"
	EventKeyOff           EventType = "KEY_OFF"
	EventEnabled          EventType = "ENABLED"
	EventDisabled         EventType = "DISABLED"
	EventLinkOK           EventType = "LINK_OK"
	EventLinkFailed       EventType = "LINK_FAILED"
	EventArmed            EventType = "ARMED"
	EventEStop            EventType = "ESTOP"
	EventEStopReleased    EventType = "ESTOP_RELEASED"
	EventTriggerIgnored   EventType = "TRIGGER_IGNORED"
	EventSequenceStart    EventType = "SEQUENCE_START"
	EventPadFired         EventType = "PAD_FIRED"
	EventPadSkipped       EventType = "PAD_SKIPPED"
	EventSequenceComplete EventType = "SEQUENCE_COMPLETE"
	EventSequenceAborted  EventType = "SEQUENCE_ABORTED"
)

// Event is a state change worth logging and publishing.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Pad       int    // NoPad unless the event concerns a single pad
	Session   string // handshake session, empty when none
	Reason    string
}

// EventCounts tracks the number of notable events since startup.
type EventCounts struct {
	Sequences int
	Fired     int
	Skipped   int
	EStops    int
	LinkFails int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// Display renders small non-negative integers. Segment encoding is the
// implementation's concern.
type Display interface {
	Render(value int) error
	Clear() error
}

// Channel sends and receives coded messages over the lossy wireless link.
type Channel interface {
	Send(msg Message) error
	// TryReceive returns the next decoded message, if one is waiting.
	// It never blocks.
	TryReceive() (Message, bool)
}

// Indicators drives the link-ok / link-error status lamps.
type Indicators interface {
	SetLink(status LinkStatus) error
}

// Outputs groups everything the control core drives.
type Outputs struct {
	Channel Channel
	Main    Display
	Pads    [PadCount]Display
	Link    Indicators
}
