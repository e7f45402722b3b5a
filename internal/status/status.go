// Package status provides a thread-safe status tracker for the
// launch-controller daemon. The control loop writes it once per tick; HTTP
// handlers and MQTT system events read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/launch-controller/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs              int64
	DebounceMs          int64
	HeartbeatMs         int64
	CountdownMs         int64
	ConnectionTimeoutMs int64
	Broker              string
	HTTPAddr            string
	SerialPort          string // empty when the pad link is simulated
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Controller    logic.Status
	Updated       bool // false until the first Update
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the controller state.
// Called from runLoop on every tick.
func (t *Tracker) Update(st logic.Status) {
	t.mu.Lock()
	t.snap.Controller = st
	t.snap.Updated = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
