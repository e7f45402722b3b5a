package logic

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHandshakeReplyAfterThreeRequests(t *testing.T) {
	r := newRig()
	codes := DefaultCodes()
	h := NewHandshake(at(0), DefaultTiming(), codes)

	if h.Session == "" {
		t.Fatal("expected a session id")
	}

	for _, ms := range []int{0, 100, 200} {
		r.now = at(ms)
		if got := h.Step(at(ms), r.ch); got != ConnConnecting {
			t.Fatalf("t=%dms: state %s, want CONNECTING", ms, got)
		}
	}

	r.ch.deliver(codes.ReplyMessage())
	r.now = at(220)
	if got := h.Step(at(220), r.ch); got != ConnConnected {
		t.Fatalf("t=220ms: state %s, want CONNECTED", got)
	}

	// Later steps send nothing more.
	for _, ms := range []int{300, 400, 6000} {
		r.now = at(ms)
		if got := h.Step(at(ms), r.ch); got != ConnConnected {
			t.Errorf("t=%dms: state %s, want CONNECTED", ms, got)
		}
	}

	var times []time.Time
	for _, s := range r.ch.sent {
		if s.Msg != codes.RequestMessage() {
			t.Errorf("unexpected message sent: %s", s.Msg)
		}
		times = append(times, s.At)
	}
	if diff := cmp.Diff([]time.Time{at(0), at(100), at(200)}, times); diff != "" {
		t.Errorf("request times mismatch (-want +got):\n%s", diff)
	}
}

func TestHandshakeTimeout(t *testing.T) {
	r := newRig()
	h := NewHandshake(at(0), DefaultTiming(), DefaultCodes())

	for ms := 0; ms < 5000; ms += 10 {
		r.now = at(ms)
		if got := h.Step(at(ms), r.ch); got != ConnConnecting {
			t.Fatalf("t=%dms: state %s, want CONNECTING", ms, got)
		}
	}
	if got := h.Step(at(4999), r.ch); got != ConnConnecting {
		t.Fatalf("t=4999ms: state %s, want CONNECTING", got)
	}
	if got := h.Step(at(5000), r.ch); got != ConnFailed {
		t.Fatalf("t=5000ms: state %s, want FAILED", got)
	}
	if h.Requests != 50 {
		t.Errorf("expected 50 requests (one per 100ms), got %d", h.Requests)
	}

	// A late reply does not revive a failed session.
	r.ch.deliver(DefaultCodes().ReplyMessage())
	if got := h.Step(at(5100), r.ch); got != ConnFailed {
		t.Errorf("late reply: state %s, want FAILED", got)
	}
}

func TestHandshakeIgnoresOtherMessages(t *testing.T) {
	r := newRig()
	codes := DefaultCodes()
	h := NewHandshake(at(0), DefaultTiming(), codes)

	r.ch.deliver(codes.LaunchMessage(0))
	r.ch.deliver(codes.Decode(0xDEADBEEF, NoPad))
	r.ch.deliver(codes.RequestMessage())

	if got := h.Step(at(0), r.ch); got != ConnConnecting {
		t.Fatalf("state %s, want CONNECTING", got)
	}
	if len(r.ch.inbox) != 0 {
		t.Errorf("expected inbox drained, %d left", len(r.ch.inbox))
	}

	r.ch.deliver(codes.Decode(0x87654321, NoPad))
	if got := h.Step(at(10), r.ch); got != ConnConnected {
		t.Errorf("state %s, want CONNECTED", got)
	}
}

func TestHandshakeReplyBeatsDeadline(t *testing.T) {
	r := newRig()
	h := NewHandshake(at(0), DefaultTiming(), DefaultCodes())
	h.Step(at(0), r.ch)

	r.ch.deliver(DefaultCodes().ReplyMessage())
	if got := h.Step(at(5000), r.ch); got != ConnConnected {
		t.Errorf("state %s, want CONNECTED", got)
	}
}

func TestHandshakeNoBurstAfterStall(t *testing.T) {
	r := newRig()
	h := NewHandshake(at(0), DefaultTiming(), DefaultCodes())

	h.Step(at(0), r.ch)
	h.Step(at(1000), r.ch) // loop stalled for 900ms
	h.Step(at(1010), r.ch)
	h.Step(at(1100), r.ch)

	if h.Requests != 3 {
		t.Errorf("expected 3 requests, got %d", h.Requests)
	}
}

func TestHandshakeSessionsAreUnique(t *testing.T) {
	a := NewHandshake(at(0), DefaultTiming(), DefaultCodes())
	b := NewHandshake(at(0), DefaultTiming(), DefaultCodes())
	if a.Session == b.Session {
		t.Errorf("expected distinct sessions, both %q", a.Session)
	}
}
