package logic

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// script describes raw input levels over time. Each field lists the
// [from, to) windows in ms during which the input is engaged.
type script struct {
	key     [][2]int
	enable  [][2]int
	trigger [][2]int
	estop   [][2]int
	pads    [PadCount][][2]int
}

func within(ms int, windows [][2]int) bool {
	for _, w := range windows {
		if ms >= w[0] && ms < w[1] {
			return true
		}
	}
	return false
}

func (s script) sample(ms int) Sample {
	out := Sample{
		Key:     within(ms, s.key),
		Enable:  within(ms, s.enable),
		Trigger: within(ms, s.trigger),
		EStop:   within(ms, s.estop),
	}
	for i := range out.Pads {
		out.Pads[i] = within(ms, s.pads[i])
	}
	return out
}

// timedEvent pairs an event with the tick it was produced on.
type timedEvent struct {
	ms int
	Event
}

// simulate steps c every 10ms over [from, to). hook, if set, runs before
// each step and may queue received messages.
func simulate(r *rig, c *Controller, sc script, from, to int, hook func(ms int)) []timedEvent {
	var out []timedEvent
	for ms := from; ms < to; ms += 10 {
		if hook != nil {
			hook(ms)
		}
		r.now = at(ms)
		for _, e := range c.Step(sc.sample(ms), at(ms)) {
			out = append(out, timedEvent{ms: ms, Event: e})
		}
	}
	return out
}

func findEvent(events []timedEvent, typ EventType) (timedEvent, bool) {
	for _, e := range events {
		if e.Type == typ {
			return e, true
		}
	}
	return timedEvent{}, false
}

func noSweep() Config {
	cfg := DefaultConfig()
	cfg.Timing.StartupSweep = 0
	return cfg
}

const forever = 1 << 30

// armedScript keeps the key and enable switches on from t=0 and engages the
// given pads.
func armedScript(pads ...int) script {
	sc := script{
		key:    [][2]int{{0, forever}},
		enable: [][2]int{{0, forever}},
	}
	for _, p := range pads {
		sc.pads[p] = [][2]int{{0, forever}}
	}
	return sc
}

// replyAt queues a connection reply on the first tick at or after ms.
func replyAt(r *rig, ms int) func(int) {
	done := false
	return func(now int) {
		if !done && now >= ms {
			r.ch.deliver(DefaultCodes().ReplyMessage())
			done = true
		}
	}
}

func TestControllerArmsAfterHandshake(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript()

	events := simulate(r, c, sc, 0, 400, replyAt(r, 270))

	want := []EventType{EventKeyOn, EventEnabled, EventLinkOK, EventArmed}
	var got []EventType
	for _, e := range events {
		got = append(got, e.Type)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	if e, _ := findEvent(events, EventKeyOn); e.ms != 50 {
		t.Errorf("KEY_ON at %dms, want 50ms", e.ms)
	}
	if e, _ := findEvent(events, EventArmed); e.ms != 270 || e.Session == "" {
		t.Errorf("ARMED at %dms session %q, want 270ms with a session", e.ms, e.Session)
	}

	requests := r.ch.sentOfKind(KindConnectionRequest)
	if len(requests) != 3 {
		t.Errorf("expected 3 connection requests (50, 150, 250ms), got %d", len(requests))
	}

	st := c.Status()
	if st.Safety != SafetyArmed || st.Connection != ConnConnected {
		t.Errorf("status: safety=%s connection=%s", st.Safety, st.Connection)
	}
	if !st.Key || !st.Enabled {
		t.Errorf("status: key=%v enabled=%v, want debounced switches on", st.Key, st.Enabled)
	}
	if r.link.status != LinkOK {
		t.Errorf("link indicators %s, want OK", r.link.status)
	}
	if diff := cmp.Diff([]LinkStatus{LinkError, LinkOK}, r.link.history); diff != "" {
		t.Errorf("link history mismatch (-want +got):\n%s", diff)
	}
}

func TestControllerHandshakeFailure(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript(0)
	sc.trigger = [][2]int{{6000, 6200}}

	events := simulate(r, c, sc, 0, 7000, nil)

	e, ok := findEvent(events, EventLinkFailed)
	if !ok {
		t.Fatal("expected LINK_FAILED")
	}
	if e.ms != 5050 {
		t.Errorf("LINK_FAILED at %dms, want 5050ms (5000ms after handshake start)", e.ms)
	}

	st := c.Status()
	if st.Safety != SafetyStarting || st.Connection != ConnFailed {
		t.Errorf("status: safety=%s connection=%s, want STARTING/FAILED", st.Safety, st.Connection)
	}
	if r.link.status != LinkError {
		t.Errorf("link %s, want ERROR", r.link.status)
	}

	ign, ok := findEvent(events, EventTriggerIgnored)
	if !ok || ign.Reason != "NOT_ARMED" {
		t.Errorf("expected trigger ignored as NOT_ARMED, got %+v", ign)
	}
	if len(r.ch.sentOfKind(KindLaunchCommand)) != 0 {
		t.Error("launch command sent while not armed")
	}

	// A reply arriving after the failure does not arm.
	r.ch.deliver(DefaultCodes().ReplyMessage())
	simulate(r, c, sc, 7000, 7100, nil)
	if c.Status().Safety == SafetyArmed {
		t.Error("armed after failed handshake")
	}
	if len(r.ch.inbox) != 0 {
		t.Errorf("late reply should be discarded, %d left", len(r.ch.inbox))
	}
}

func TestControllerKeyCycleRecoversFromFailure(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript()
	sc.key = [][2]int{{0, 6000}, {6200, forever}}

	simulate(r, c, sc, 0, 6100, nil)
	if st := c.Status(); st.Safety != SafetyOff || st.Connection != ConnDisconnected {
		t.Fatalf("after key off: safety=%s connection=%s", st.Safety, st.Connection)
	}
	if r.link.status != LinkNone {
		t.Errorf("link %s, want NONE after key off", r.link.status)
	}

	events := simulate(r, c, sc, 6100, 6500, replyAt(r, 6300))
	if _, ok := findEvent(events, EventArmed); !ok {
		t.Fatal("expected ARMED after key cycle")
	}
}

func TestControllerStaleReplyDoesNotArmNextSession(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript()
	sc.key = [][2]int{{0, 6000}, {6200, forever}}

	// The first handshake fails at 5050ms; a late reply turns up at 5500ms.
	late := func(ms int) {
		if ms == 5500 {
			r.ch.deliver(DefaultCodes().ReplyMessage())
		}
	}
	simulate(r, c, sc, 0, 6200, late)
	before := len(r.ch.sentOfKind(KindConnectionRequest))

	events := simulate(r, c, sc, 6200, 6600, nil)
	if e, ok := findEvent(events, EventArmed); ok {
		t.Fatalf("armed at %dms on a reply from an earlier session", e.ms)
	}
	if _, ok := findEvent(events, EventKeyOn); !ok {
		t.Fatal("expected KEY_ON after the key cycle")
	}
	if st := c.Status(); st.Safety != SafetyStarting || st.Connection != ConnConnecting {
		t.Errorf("status: safety=%s connection=%s, want STARTING/CONNECTING", st.Safety, st.Connection)
	}
	if n := len(r.ch.sentOfKind(KindConnectionRequest)) - before; n == 0 {
		t.Error("new session sent no connection request")
	}

	// A reply to the new session still arms.
	events = simulate(r, c, sc, 6600, 6700, replyAt(r, 6620))
	if e, ok := findEvent(events, EventArmed); !ok || e.ms != 6620 {
		t.Errorf("expected ARMED at 6620ms, got %+v", e)
	}
}

func TestControllerReplyDuringSweepIsDiscarded(t *testing.T) {
	r := newRig()
	c := NewController(DefaultConfig(), r.out, at(0))
	sc := armedScript()

	// Key on at 50ms, sweep until 1050ms; the reply arrives mid-sweep.
	events := simulate(r, c, sc, 0, 1200, replyAt(r, 500))
	if e, ok := findEvent(events, EventArmed); ok {
		t.Fatalf("armed at %dms on a reply received before the handshake began", e.ms)
	}
	if len(r.ch.inbox) != 0 {
		t.Errorf("expected inbox drained, %d left", len(r.ch.inbox))
	}
	requests := r.ch.sentOfKind(KindConnectionRequest)
	if len(requests) == 0 || !requests[0].At.Equal(at(1050)) {
		t.Errorf("first request should go out when the sweep ends at 1050ms, got %v", requests)
	}
}

func TestControllerFullSequence(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript(0, 1, 3, 4)
	sc.trigger = [][2]int{{300, 400}}

	events := simulate(r, c, sc, 0, 25000, replyAt(r, 270))

	start, ok := findEvent(events, EventSequenceStart)
	if !ok || start.ms != 350 {
		t.Fatalf("SEQUENCE_START at %dms (found=%v), want 350ms", start.ms, ok)
	}

	launches := r.ch.sentOfKind(KindLaunchCommand)
	var pads []int
	var times []time.Time
	for _, l := range launches {
		pads = append(pads, l.Msg.Pad)
		times = append(times, l.At)
	}
	if diff := cmp.Diff([]int{0, 1, 3, 4}, pads); diff != "" {
		t.Errorf("fired pads mismatch (-want +got):\n%s", diff)
	}
	wantTimes := []time.Time{at(5350), at(10350), at(15350), at(20350)}
	if diff := cmp.Diff(wantTimes, times); diff != "" {
		t.Errorf("fire times mismatch (-want +got):\n%s", diff)
	}

	done, ok := findEvent(events, EventSequenceComplete)
	if !ok || done.ms != 20350 {
		t.Errorf("SEQUENCE_COMPLETE at %dms (found=%v), want 20350ms", done.ms, ok)
	}

	st := c.Status()
	if st.Sequence.Running || st.Sequence.Current != PadCount {
		t.Errorf("sequence state %+v, want idle at %d", st.Sequence, PadCount)
	}
	if !st.Pads[2].Frozen {
		t.Error("pad 3 should be frozen")
	}
	if st.Counts.Fired != 4 || st.Counts.Skipped != 1 || st.Counts.Sequences != 1 {
		t.Errorf("counts %+v", st.Counts)
	}
	if st.Safety != SafetyArmed {
		t.Errorf("safety %s after completion, want ARMED", st.Safety)
	}
}

func TestControllerTriggerNeedsEnable(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript(0)
	sc.enable = nil
	sc.trigger = [][2]int{{300, 400}}

	events := simulate(r, c, sc, 0, 6000, replyAt(r, 100))

	ign, ok := findEvent(events, EventTriggerIgnored)
	if !ok || ign.Reason != "NOT_ENABLED" {
		t.Errorf("expected trigger ignored as NOT_ENABLED, got %+v", ign)
	}
	if c.Status().Safety != SafetyArmed {
		t.Error("enable switch must not change the safety state")
	}
	if len(r.ch.sentOfKind(KindLaunchCommand)) != 0 {
		t.Error("launch command sent without enable")
	}
}

func TestControllerSecondTriggerWhileRunning(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript(0)
	sc.trigger = [][2]int{{300, 400}, {2000, 2100}}

	events := simulate(r, c, sc, 0, 6000, replyAt(r, 100))

	ign, ok := findEvent(events, EventTriggerIgnored)
	if !ok || ign.Reason != "RUNNING" {
		t.Errorf("expected trigger ignored as RUNNING, got %+v", ign)
	}
	if n := len(r.ch.sentOfKind(KindLaunchCommand)); n != 1 {
		t.Errorf("expected 1 launch command, got %d", n)
	}
}

func TestControllerEmergencyStopDuringCountdown(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript(0, 1, 2, 3, 4)
	sc.trigger = [][2]int{{300, 400}}
	// Pad 2's countdown runs from 5350ms; stop is pressed 2000ms into it.
	sc.estop = [][2]int{{7350, 7500}, {8000, 8100}}

	events := simulate(r, c, sc, 0, 7350, replyAt(r, 270))
	if c.Status().Sequence.Current != 1 {
		t.Fatalf("expected pad 2 counting down, current=%d", c.Status().Sequence.Current)
	}

	events = simulate(r, c, sc, 7350, 7900, nil)
	stop, ok := findEvent(events, EventEStop)
	if !ok || stop.ms != 7400 {
		t.Fatalf("ESTOP at %dms (found=%v), want 7400ms", stop.ms, ok)
	}
	abort, ok := findEvent(events, EventSequenceAborted)
	if !ok || abort.Pad != 1 || abort.Reason != "ESTOP" {
		t.Errorf("expected SEQUENCE_ABORTED for pad 2, got %+v", abort)
	}

	st := c.Status()
	if st.Safety != SafetyEmergencyStopped {
		t.Errorf("safety %s, want EMERGENCY_STOPPED", st.Safety)
	}
	if st.Sequence.Running {
		t.Error("sequence still running after emergency stop")
	}
	if st.Connection != ConnDisconnected {
		t.Errorf("connection %s, want DISCONNECTED", st.Connection)
	}
	if r.link.status != LinkNone {
		t.Errorf("link %s, want both indicators off", r.link.status)
	}
	if r.main.shown {
		t.Error("main display not cleared")
	}
	for i, d := range r.pads {
		if d.shown {
			t.Errorf("pad %d display not cleared", i+1)
		}
	}

	launches := r.ch.sentOfKind(KindLaunchCommand)
	if len(launches) != 1 || launches[0].Msg.Pad != 0 {
		t.Errorf("expected only pad 1 fired, got %+v", launches)
	}

	// Second press releases into Off; the key is still on but the
	// controller does not restart until it is cycled.
	events = simulate(r, c, sc, 7900, 12000, nil)
	if _, ok := findEvent(events, EventEStopReleased); !ok {
		t.Fatal("expected ESTOP_RELEASED")
	}
	if _, ok := findEvent(events, EventKeyOn); ok {
		t.Error("controller restarted without a key cycle")
	}
	if st := c.Status(); st.Safety != SafetyOff {
		t.Errorf("safety %s after release, want OFF", st.Safety)
	}
	if n := len(r.ch.sentOfKind(KindLaunchCommand)); n != 1 {
		t.Errorf("launch commands after stop: %d", n)
	}
}

func TestControllerEmergencyStopIgnoresInputs(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := script{
		estop: [][2]int{{0, 100}},
		key:   [][2]int{{200, forever}},
	}

	events := simulate(r, c, sc, 0, 1000, nil)
	if _, ok := findEvent(events, EventKeyOn); ok {
		t.Error("key switch honoured while emergency stopped")
	}
	if c.Status().Safety != SafetyEmergencyStopped {
		t.Errorf("safety %s, want EMERGENCY_STOPPED", c.Status().Safety)
	}
	if len(r.ch.sent) != 0 {
		t.Error("messages sent while emergency stopped")
	}
}

func TestControllerEmergencyStopDuringHandshake(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript()
	sc.estop = [][2]int{{1000, 1100}}

	simulate(r, c, sc, 0, 1050, nil)
	sent := len(r.ch.sent)
	if c.Status().Connection != ConnConnecting {
		t.Fatalf("expected handshake in progress, got %s", c.Status().Connection)
	}

	simulate(r, c, sc, 1050, 3000, nil)
	if c.Status().Safety != SafetyEmergencyStopped {
		t.Fatalf("safety %s, want EMERGENCY_STOPPED", c.Status().Safety)
	}
	if len(r.ch.sent) != sent {
		t.Errorf("handshake kept sending after emergency stop: %d -> %d", sent, len(r.ch.sent))
	}
}

func TestControllerKeyOffAbortsSequence(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript(0, 1)
	sc.key = [][2]int{{0, 3000}}
	sc.trigger = [][2]int{{300, 400}}

	events := simulate(r, c, sc, 0, 8000, replyAt(r, 100))

	abort, ok := findEvent(events, EventSequenceAborted)
	if !ok || abort.Reason != "KEY_OFF" || abort.ms != 3050 {
		t.Errorf("expected KEY_OFF abort at 3050ms, got %+v", abort)
	}
	if len(r.ch.sentOfKind(KindLaunchCommand)) != 0 {
		t.Error("launch command sent after key off")
	}
	st := c.Status()
	if st.Safety != SafetyOff || st.Sequence.Running || st.Sequence.Current != 0 {
		t.Errorf("state after key off: %+v", st)
	}
	for i, p := range st.Pads {
		if p.Elapsed != 0 || p.Frozen {
			t.Errorf("pad %d timer not cleared: %+v", i+1, p)
		}
	}
}

func TestControllerStartupSweep(t *testing.T) {
	r := newRig()
	c := NewController(DefaultConfig(), r.out, at(0))
	sc := armedScript()

	simulate(r, c, sc, 0, 1040, nil)
	if c.Status().Connection != ConnConnecting {
		t.Fatalf("connection %s, want CONNECTING during sweep", c.Status().Connection)
	}
	if len(r.ch.sent) != 0 {
		t.Fatal("handshake started before the sweep finished")
	}
	if r.main.renders != 10 || r.pads[4].renders != 10 {
		t.Errorf("expected 10 digits per display, main=%d pad5=%d", r.main.renders, r.pads[4].renders)
	}

	simulate(r, c, sc, 1040, 1100, nil)
	if len(r.ch.sent) != 1 {
		t.Errorf("expected first request at end of sweep, got %d sends", len(r.ch.sent))
	}
	if r.main.shown {
		t.Error("displays should be cleared after the sweep")
	}
}

func TestControllerDrainsChannelWhenArmed(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript()

	simulate(r, c, sc, 0, 200, replyAt(r, 100))
	r.ch.deliver(DefaultCodes().ReplyMessage())
	r.ch.deliver(DefaultCodes().Decode(0x1, NoPad))
	simulate(r, c, sc, 200, 220, nil)

	if len(r.ch.inbox) != 0 {
		t.Errorf("expected inbox drained, %d left", len(r.ch.inbox))
	}
	if c.Status().Safety != SafetyArmed {
		t.Error("stray messages changed the safety state")
	}
}

func TestControllerHeartbeat(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))

	if hb := c.CheckHeartbeat(at(1000), 0); hb != nil {
		t.Error("heartbeat should be disabled with interval 0")
	}
	if hb := c.CheckHeartbeat(at(500), time.Second); hb != nil {
		t.Error("heartbeat before interval")
	}
	hb := c.CheckHeartbeat(at(1000), time.Second)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != time.Second {
		t.Errorf("uptime %v, want 1s", hb.Uptime)
	}
	if c.CheckHeartbeat(at(1500), time.Second) != nil {
		t.Error("heartbeat repeated before next interval")
	}
}

func TestControllerShutdown(t *testing.T) {
	r := newRig()
	c := NewController(noSweep(), r.out, at(0))
	sc := armedScript(0)
	sc.trigger = [][2]int{{300, 400}}
	simulate(r, c, sc, 0, 1000, replyAt(r, 100))

	events := c.Shutdown(at(1000))
	if len(events) != 1 || events[0].Type != EventSequenceAborted || events[0].Reason != "SHUTDOWN" {
		t.Errorf("unexpected shutdown events: %v", events)
	}
	if r.link.status != LinkNone || r.main.shown {
		t.Error("outputs not cleared on shutdown")
	}
}
