package logic

import "time"

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// sentMsg is a message recorded by fakeChannel along with the clock at send time.
type sentMsg struct {
	At  time.Time
	Msg Message
}

// fakeChannel records sends and hands out queued messages.
type fakeChannel struct {
	clock func() time.Time
	sent  []sentMsg
	inbox []Message
}

func (f *fakeChannel) Send(msg Message) error {
	var now time.Time
	if f.clock != nil {
		now = f.clock()
	}
	f.sent = append(f.sent, sentMsg{At: now, Msg: msg})
	return nil
}

func (f *fakeChannel) TryReceive() (Message, bool) {
	if len(f.inbox) == 0 {
		return Message{}, false
	}
	msg := f.inbox[0]
	f.inbox = f.inbox[1:]
	return msg, true
}

func (f *fakeChannel) deliver(msg Message) {
	f.inbox = append(f.inbox, msg)
}

func (f *fakeChannel) sentOfKind(kind MessageKind) []sentMsg {
	var out []sentMsg
	for _, s := range f.sent {
		if s.Msg.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// fakeDisplay keeps the value currently shown.
type fakeDisplay struct {
	value   int
	shown   bool
	renders int
}

func (d *fakeDisplay) Render(v int) error {
	d.value = v
	d.shown = true
	d.renders++
	return nil
}

func (d *fakeDisplay) Clear() error {
	d.shown = false
	return nil
}

type fakeLink struct {
	status  LinkStatus
	history []LinkStatus
}

func (l *fakeLink) SetLink(s LinkStatus) error {
	l.status = s
	l.history = append(l.history, s)
	return nil
}

type rig struct {
	out  *Outputs
	ch   *fakeChannel
	main *fakeDisplay
	pads [PadCount]*fakeDisplay
	link *fakeLink
	now  time.Time
}

func newRig() *rig {
	r := &rig{
		ch:   &fakeChannel{},
		main: &fakeDisplay{},
		link: &fakeLink{status: LinkNone},
	}
	r.ch.clock = func() time.Time { return r.now }
	r.out = &Outputs{Channel: r.ch, Main: r.main, Link: r.link}
	for i := range r.pads {
		r.pads[i] = &fakeDisplay{}
		r.out.Pads[i] = r.pads[i]
	}
	return r
}

func eventTypes(events []Event) []EventType {
	var out []EventType
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
