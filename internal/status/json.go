package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Safety        string       `json:"safety"`
	Connection    string       `json:"connection"`
	Link          string       `json:"link"`
	Key           bool         `json:"key"`
	Enabled       bool         `json:"enabled"`
	Session       string       `json:"session,omitempty"`
	Sequence      SequenceJSON `json:"sequence"`
	Pads          []PadJSON    `json:"pads"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Config        ConfigJSON   `json:"config"`
}

// SequenceJSON is the JSON representation of the launch sequence.
type SequenceJSON struct {
	Running bool `json:"running"`
	// Current is the 1-based pad being counted down; N+1 once complete.
	Current int `json:"current"`
}

// PadJSON is the JSON representation of one pad.
type PadJSON struct {
	Pad     int  `json:"pad"`
	Engaged bool `json:"engaged"`
	Elapsed int  `json:"elapsed_seconds"`
	Frozen  bool `json:"frozen"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Sequences int `json:"sequences"`
	Fired     int `json:"fired"`
	Skipped   int `json:"skipped"`
	EStops    int `json:"estops"`
	LinkFails int `json:"link_fails"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs              int64  `json:"poll_ms"`
	DebounceMs          int64  `json:"debounce_ms"`
	HeartbeatMs         int64  `json:"heartbeat_ms"`
	CountdownMs         int64  `json:"countdown_ms"`
	ConnectionTimeoutMs int64  `json:"connection_timeout_ms"`
	Broker              string `json:"broker"`
	HTTPAddr            string `json:"http_addr"`
	SerialPort          string `json:"serial_port,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Controller

	safety := string(c.Safety)
	if !snap.Updated {
		safety = "UNKNOWN"
	}

	pads := make([]PadJSON, len(c.Pads))
	for i, p := range c.Pads {
		pads[i] = PadJSON{Pad: i + 1, Engaged: p.Engaged, Elapsed: p.Elapsed, Frozen: p.Frozen}
	}

	return StatusInner{
		Safety:        safety,
		Connection:    string(c.Connection),
		Link:          string(c.Link),
		Key:           c.Key,
		Enabled:       c.Enabled,
		Session:       c.Session,
		Sequence:      SequenceJSON{Running: c.Sequence.Running, Current: c.Sequence.Current + 1},
		Pads:          pads,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Sequences: c.Counts.Sequences,
			Fired:     c.Counts.Fired,
			Skipped:   c.Counts.Skipped,
			EStops:    c.Counts.EStops,
			LinkFails: c.Counts.LinkFails,
		},
		Config: ConfigJSON{
			PollMs:              snap.Config.PollMs,
			DebounceMs:          snap.Config.DebounceMs,
			HeartbeatMs:         snap.Config.HeartbeatMs,
			CountdownMs:         snap.Config.CountdownMs,
			ConnectionTimeoutMs: snap.Config.ConnectionTimeoutMs,
			Broker:              snap.Config.Broker,
			HTTPAddr:            snap.Config.HTTPAddr,
			SerialPort:          snap.Config.SerialPort,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
