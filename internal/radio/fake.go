package radio

import (
	"log"
	"sync"
	"time"

	"github.com/sweeney/launch-controller/internal/logic"
)

// Sent records one message passed to Fake.Send.
type Sent struct {
	At  time.Time
	Msg logic.Message
}

type scheduled struct {
	at  time.Time
	msg logic.Message
}

// Fake is an in-memory logic.Channel. Messages are scheduled for delivery at
// a point in time and become visible to TryReceive once the clock reaches
// it. With Reply set, Fake also plays the pad controller and answers every
// connection request after ReplyDelay.
type Fake struct {
	mu sync.Mutex

	// Now is the clock deliveries are compared against. Nil means every
	// scheduled message is due immediately.
	Now func() time.Time

	// Reply, if set, is the code book used to answer connection requests.
	Reply      *logic.Codes
	ReplyDelay time.Duration

	// SendError, if set, will be returned by Send. The message is still recorded.
	SendError error

	sent    []Sent
	pending []scheduled
}

// NewFake creates a Fake channel reading time from now.
func NewFake(now func() time.Time) *Fake {
	return &Fake{Now: now}
}

// NewSimulator creates a Fake that answers connection requests like a pad
// controller and logs launch commands. It lets the controller run on a bench
// without a transceiver.
func NewSimulator(codes logic.Codes, delay time.Duration) *Fake {
	return &Fake{Now: time.Now, Reply: &codes, ReplyDelay: delay}
}

func (f *Fake) now() time.Time {
	if f.Now == nil {
		return time.Time{}
	}
	return f.Now()
}

// Send records msg.
func (f *Fake) Send(msg logic.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	f.sent = append(f.sent, Sent{At: now, Msg: msg})

	if f.Reply != nil {
		switch msg.Kind {
		case logic.KindConnectionRequest:
			f.schedule(now.Add(f.ReplyDelay), f.Reply.ReplyMessage())
		case logic.KindLaunchCommand:
			log.Printf("radio: simulated pad controller: launch pad %d", msg.Pad+1)
		}
	}
	return f.SendError
}

// TryReceive returns the oldest message whose delivery time has come.
func (f *Fake) TryReceive() (logic.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		return logic.Message{}, false
	}
	next := f.pending[0]
	if f.Now != nil && f.now().Before(next.at) {
		return logic.Message{}, false
	}
	f.pending = f.pending[1:]
	return next.msg, true
}

// Deliver schedules msg for delivery at at.
func (f *Fake) Deliver(at time.Time, msg logic.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedule(at, msg)
}

// schedule inserts msg keeping pending ordered by delivery time.
func (f *Fake) schedule(at time.Time, msg logic.Message) {
	i := len(f.pending)
	for i > 0 && f.pending[i-1].at.After(at) {
		i--
	}
	f.pending = append(f.pending, scheduled{})
	copy(f.pending[i+1:], f.pending[i:])
	f.pending[i] = scheduled{at: at, msg: msg}
}

// Sent returns a copy of every message sent so far.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// SentOfKind returns the sent messages of one kind.
func (f *Fake) SentOfKind(kind logic.MessageKind) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Sent
	for _, s := range f.sent {
		if s.Msg.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Close is a no-op.
func (f *Fake) Close() error {
	return nil
}
