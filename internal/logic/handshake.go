package logic

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// Handshake establishes a wireless session with the pad controller.
// It is a tick-driven task: the control loop calls Step once per tick until
// the state leaves ConnConnecting, so other inputs keep being serviced while
// the handshake waits.
type Handshake struct {
	Session  string
	State    ConnectionState
	Requests int

	start    time.Time
	nextSend time.Time
	timeout  time.Duration
	interval time.Duration
	codes    Codes
}

// NewHandshake starts a fresh session at now.
func NewHandshake(now time.Time, timing Timing, codes Codes) *Handshake {
	return &Handshake{
		Session:  uuid.NewString(),
		State:    ConnConnecting,
		start:    now,
		nextSend: now,
		timeout:  timing.ConnectionTimeout,
		interval: timing.RetryInterval,
		codes:    codes,
	}
}

// Step advances the handshake at now and returns its state.
// Received messages are checked before the deadline, so a reply that is
// already waiting wins over a timeout on the same tick. Messages other than
// a connection reply are dropped.
func (h *Handshake) Step(now time.Time, ch Channel) ConnectionState {
	if h.State != ConnConnecting {
		return h.State
	}

	for {
		msg, ok := ch.TryReceive()
		if !ok {
			break
		}
		if msg.Kind == KindConnectionReply {
			h.State = ConnConnected
			return h.State
		}
		log.Printf("handshake %s: ignoring %s", h.Session, msg)
	}

	if now.Sub(h.start) >= h.timeout {
		h.State = ConnFailed
		return h.State
	}

	if !now.Before(h.nextSend) {
		if err := ch.Send(h.codes.RequestMessage()); err != nil {
			log.Printf("handshake %s: send request: %v", h.Session, err)
		}
		h.Requests++
		h.nextSend = h.nextSend.Add(h.interval)
		if h.nextSend.Before(now) {
			// The loop fell behind; don't burst the missed requests.
			h.nextSend = now.Add(h.interval)
		}
	}

	return h.State
}

// Elapsed returns how long the handshake has been running at now.
func (h *Handshake) Elapsed(now time.Time) time.Duration {
	return now.Sub(h.start)
}
