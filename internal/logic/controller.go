package logic

import (
	"log"
	"time"
)

// Config holds everything the control core needs at startup.
type Config struct {
	Timing Timing
	Codes  Codes
	Pins   PinMap
}

// DefaultConfig returns the standard configuration with zero pin numbers.
func DefaultConfig() Config {
	return Config{Timing: DefaultTiming(), Codes: DefaultCodes()}
}

// Controller is the safety state machine. It owns the whole controller
// context (safety state, connection state, pads and sequence) and is advanced
// by a single loop calling Step; it is not safe for concurrent use.
type Controller struct {
	cfg Config
	out *Outputs

	safety     SafetyState
	connection ConnectionState
	link       LinkStatus

	inputs    *InputBank
	handshake *Handshake
	seq       *Sequencer

	sweeping   bool
	sweepStart time.Time
	sweepDigit int

	startTime     time.Time
	lastHeartbeat time.Time
	counts        EventCounts
}

// NewController creates a controller in the Off state. startTime is used
// for uptime in heartbeats.
func NewController(cfg Config, out *Outputs, startTime time.Time) *Controller {
	return &Controller{
		cfg:           cfg,
		out:           out,
		safety:        SafetyOff,
		connection:    ConnDisconnected,
		link:          LinkNone,
		inputs:        NewInputBank(cfg.Timing.Debounce, cfg.Pins),
		seq:           NewSequencer(cfg.Timing.Countdown, cfg.Codes, out),
		sweepDigit:    -1,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Step processes one sample of all inputs at now and advances every state
// machine once. It returns the events produced, in order.
func (c *Controller) Step(s Sample, now time.Time) []Event {
	var events []Event

	edges := c.inputs.Process(s, now)

	// The emergency stop edge always comes first and overrides everything
	// else on this tick.
	for _, e := range edges {
		if e.Input == InputEStop && e.Engaged {
			events = append(events, c.toggleEmergencyStop(now)...)
		}
	}

	// Pad switches are levels, not commands. They follow the debounced state
	// even while stopped, as does the enable switch read in trigger.
	for i := range c.inputs.Pads {
		c.seq.SetEngaged(i, c.inputs.Pads[i].Stable)
	}
	if c.safety == SafetyEmergencyStopped {
		c.drainChannel()
		return c.count(events)
	}

	for _, e := range edges {
		switch e.Input {
		case InputKey:
			if e.Engaged {
				events = append(events, c.keyOn(now)...)
			} else {
				events = append(events, c.keyOff(now)...)
			}
		case InputEnable:
			if e.Engaged {
				events = append(events, Event{Timestamp: now, Type: EventEnabled, Pad: NoPad})
			} else {
				events = append(events, Event{Timestamp: now, Type: EventDisabled, Pad: NoPad})
			}
		}
	}

	if c.safety == SafetyStarting {
		events = append(events, c.stepStarting(now)...)
	}

	for _, e := range edges {
		if e.Input == InputTrigger && e.Engaged {
			events = append(events, c.trigger(now)...)
		}
	}

	if c.seq.Running() {
		events = append(events, c.seq.Tick(now)...)
	}

	// Only a running handshake may consume messages. Anything arriving at
	// any other time is stale and must not reach a later session.
	if c.connection != ConnConnecting {
		c.drainChannel()
	}

	return c.count(events)
}

func (c *Controller) toggleEmergencyStop(now time.Time) []Event {
	if c.safety == SafetyEmergencyStopped {
		// Releasing never re-arms; the key switch has to be cycled.
		c.safety = SafetyOff
		log.Printf("controller: emergency stop released")
		return []Event{{Timestamp: now, Type: EventEStopReleased, Pad: NoPad}}
	}

	log.Printf("controller: emergency stop activated (was %s)", c.safety)
	events := []Event{{Timestamp: now, Type: EventEStop, Pad: NoPad, Session: c.session()}}
	if c.seq.Running() {
		events = append(events, Event{
			Timestamp: now,
			Type:      EventSequenceAborted,
			Pad:       c.seq.State.Current,
			Reason:    "ESTOP",
		})
	}
	c.resetAll()
	c.safety = SafetyEmergencyStopped
	return events
}

func (c *Controller) keyOn(now time.Time) []Event {
	if c.safety != SafetyOff {
		return nil
	}
	c.safety = SafetyStarting
	c.connection = ConnConnecting
	c.handshake = nil
	events := []Event{{Timestamp: now, Type: EventKeyOn, Pad: NoPad}}

	if c.cfg.Timing.StartupSweep > 0 {
		c.sweeping = true
		c.sweepStart = now
		c.sweepDigit = -1
		return events
	}
	c.beginHandshake(now)
	return events
}

func (c *Controller) keyOff(now time.Time) []Event {
	events := []Event{{Timestamp: now, Type: EventKeyOff, Pad: NoPad, Session: c.session()}}
	if c.seq.Running() {
		events = append(events, Event{
			Timestamp: now,
			Type:      EventSequenceAborted,
			Pad:       c.seq.State.Current,
			Reason:    "KEY_OFF",
		})
	}
	c.resetAll()
	c.safety = SafetyOff
	return events
}

// resetAll returns every owned state to its idle value and clears all
// outputs.
func (c *Controller) resetAll() {
	c.seq.Reset()
	c.handshake = nil
	c.connection = ConnDisconnected
	c.sweeping = false
	c.setLink(LinkNone)
	clearDisplays(c.out)
}

func (c *Controller) beginHandshake(now time.Time) {
	c.drainChannel()
	c.handshake = NewHandshake(now, c.cfg.Timing, c.cfg.Codes)
	c.connection = ConnConnecting
	// The error lamp stays lit until the link is up.
	c.setLink(LinkError)
	log.Printf("controller: handshake %s started", c.handshake.Session)
}

func (c *Controller) stepStarting(now time.Time) []Event {
	if c.sweeping {
		if !c.stepSweep(now) {
			return nil
		}
		c.beginHandshake(now)
	}

	if c.handshake == nil || c.connection != ConnConnecting {
		return nil
	}

	switch c.connection = c.handshake.Step(now, c.out.Channel); c.connection {
	case ConnConnected:
		c.safety = SafetyArmed
		c.setLink(LinkOK)
		log.Printf("controller: handshake %s connected after %d request(s)", c.handshake.Session, c.handshake.Requests)
		return []Event{
			{Timestamp: now, Type: EventLinkOK, Pad: NoPad, Session: c.handshake.Session},
			{Timestamp: now, Type: EventArmed, Pad: NoPad, Session: c.handshake.Session},
		}
	case ConnFailed:
		c.setLink(LinkError)
		log.Printf("controller: handshake %s failed after %v", c.handshake.Session, c.handshake.Elapsed(now))
		return []Event{{Timestamp: now, Type: EventLinkFailed, Pad: NoPad, Session: c.handshake.Session, Reason: "TIMEOUT"}}
	}
	return nil
}

// stepSweep shows digits 0..9 on every display across the startup sweep and
// reports true once the sweep is over.
func (c *Controller) stepSweep(now time.Time) bool {
	elapsed := now.Sub(c.sweepStart)
	if elapsed >= c.cfg.Timing.StartupSweep {
		c.sweeping = false
		clearDisplays(c.out)
		return true
	}

	digit := int(elapsed * 10 / c.cfg.Timing.StartupSweep)
	if digit != c.sweepDigit {
		c.sweepDigit = digit
		c.renderAll(digit)
	}
	return false
}

func (c *Controller) renderAll(value int) {
	if err := c.out.Main.Render(value); err != nil {
		log.Printf("display: render main: %v", err)
	}
	for i, d := range c.out.Pads {
		if err := d.Render(value); err != nil {
			log.Printf("display: render pad %d: %v", i+1, err)
		}
	}
}

func (c *Controller) trigger(now time.Time) []Event {
	switch {
	case c.safety != SafetyArmed:
		return []Event{{Timestamp: now, Type: EventTriggerIgnored, Pad: NoPad, Reason: "NOT_ARMED"}}
	case !c.inputs.Enable.Stable:
		return []Event{{Timestamp: now, Type: EventTriggerIgnored, Pad: NoPad, Reason: "NOT_ENABLED"}}
	case c.seq.Running():
		return []Event{{Timestamp: now, Type: EventTriggerIgnored, Pad: NoPad, Reason: "RUNNING"}}
	}
	c.seq.Start()
	return []Event{{Timestamp: now, Type: EventSequenceStart, Pad: NoPad, Session: c.session()}}
}

// drainChannel discards every message waiting on the channel.
func (c *Controller) drainChannel() {
	for {
		msg, ok := c.out.Channel.TryReceive()
		if !ok {
			return
		}
		log.Printf("controller: ignoring %s", msg)
	}
}

func (c *Controller) setLink(status LinkStatus) {
	c.link = status
	if err := c.out.Link.SetLink(status); err != nil {
		log.Printf("controller: set link indicators %s: %v", status, err)
	}
}

func (c *Controller) session() string {
	if c.handshake == nil {
		return ""
	}
	return c.handshake.Session
}

func (c *Controller) count(events []Event) []Event {
	for _, e := range events {
		switch e.Type {
		case EventSequenceStart:
			c.counts.Sequences++
		case EventPadFired:
			c.counts.Fired++
		case EventPadSkipped:
			c.counts.Skipped++
		case EventEStop:
			c.counts.EStops++
		case EventLinkFailed:
			c.counts.LinkFails++
		}
	}
	return events
}

// Shutdown aborts any run and clears all outputs. Used when the process exits.
func (c *Controller) Shutdown(now time.Time) []Event {
	var events []Event
	if c.seq.Running() {
		events = append(events, Event{
			Timestamp: now,
			Type:      EventSequenceAborted,
			Pad:       c.seq.State.Current,
			Reason:    "SHUTDOWN",
		})
	}
	c.resetAll()
	c.safety = SafetyOff
	return events
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}

// Status is a point-in-time copy of the controller context.
type Status struct {
	Safety     SafetyState
	Connection ConnectionState
	Link       LinkStatus
	Key        bool
	Enabled    bool
	Session    string
	Sequence   SequenceState
	Pads       [PadCount]Pad
	Counts     EventCounts
}

// Status returns a copy of the current controller state.
func (c *Controller) Status() Status {
	inputs := c.inputs.Stable()
	return Status{
		Safety:     c.safety,
		Connection: c.connection,
		Link:       c.link,
		Key:        inputs.Key,
		Enabled:    inputs.Enable,
		Session:    c.session(),
		Sequence:   c.seq.State,
		Pads:       c.seq.Pads,
		Counts:     c.counts,
	}
}
