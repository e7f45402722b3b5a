package logic

import "time"

// SwitchInput holds the debounce bookkeeping for one input.
type SwitchInput struct {
	Pin int
	// Raw is the most recent reading.
	Raw bool
	// Stable is the accepted (debounced) state.
	Stable bool
	// Pending is set while Raw differs from Stable.
	Pending bool
	// PendingSince is when the current difference was first observed.
	PendingSince time.Time
}

// Debounce feeds one reading into in and reports whether the accepted state
// changed. A change is committed only once the reading has differed from the
// accepted state for at least delay without interruption; a reading equal to
// the accepted state cancels the pending change. Each stable transition
// reports true exactly once.
func Debounce(in *SwitchInput, raw bool, now time.Time, delay time.Duration) bool {
	in.Raw = raw

	if raw == in.Stable {
		in.Pending = false
		return false
	}

	if !in.Pending {
		in.Pending = true
		in.PendingSince = now
	}

	if now.Sub(in.PendingSince) >= delay {
		in.Stable = raw
		in.Pending = false
		return true
	}
	return false
}

// InputKind names a controller input.
type InputKind string

const (
	InputKey     InputKind = "KEY"
	InputEnable  InputKind = "ENABLE"
	InputTrigger InputKind = "TRIGGER"
	InputEStop   InputKind = "ESTOP"
	InputPad     InputKind = "PAD"
)

// Edge is a debounced transition of one input.
type Edge struct {
	Input   InputKind
	Pad     int // NoPad unless Input is InputPad
	Engaged bool
}

// InputBank debounces every controller input. All inputs start released.
type InputBank struct {
	delay   time.Duration
	Key     SwitchInput
	Enable  SwitchInput
	Trigger SwitchInput
	EStop   SwitchInput
	Pads    [PadCount]SwitchInput
}

// NewInputBank creates an InputBank for the given pins.
func NewInputBank(delay time.Duration, pins PinMap) *InputBank {
	b := &InputBank{
		delay:   delay,
		Key:     SwitchInput{Pin: pins.Key},
		Enable:  SwitchInput{Pin: pins.Enable},
		Trigger: SwitchInput{Pin: pins.Trigger},
		EStop:   SwitchInput{Pin: pins.EStop},
	}
	for i := range b.Pads {
		b.Pads[i].Pin = pins.Pads[i]
	}
	return b
}

// Process debounces one sample and returns the resulting edges.
// The emergency stop edge, when present, is always first.
func (b *InputBank) Process(s Sample, now time.Time) []Edge {
	var edges []Edge

	if Debounce(&b.EStop, s.EStop, now, b.delay) {
		edges = append(edges, Edge{Input: InputEStop, Pad: NoPad, Engaged: b.EStop.Stable})
	}
	if Debounce(&b.Key, s.Key, now, b.delay) {
		edges = append(edges, Edge{Input: InputKey, Pad: NoPad, Engaged: b.Key.Stable})
	}
	if Debounce(&b.Enable, s.Enable, now, b.delay) {
		edges = append(edges, Edge{Input: InputEnable, Pad: NoPad, Engaged: b.Enable.Stable})
	}
	for i := range b.Pads {
		if Debounce(&b.Pads[i], s.Pads[i], now, b.delay) {
			edges = append(edges, Edge{Input: InputPad, Pad: i, Engaged: b.Pads[i].Stable})
		}
	}
	if Debounce(&b.Trigger, s.Trigger, now, b.delay) {
		edges = append(edges, Edge{Input: InputTrigger, Pad: NoPad, Engaged: b.Trigger.Stable})
	}

	return edges
}

// Stable returns the debounced state of every input as a Sample.
func (b *InputBank) Stable() Sample {
	s := Sample{
		Key:     b.Key.Stable,
		Enable:  b.Enable.Stable,
		Trigger: b.Trigger.Stable,
		EStop:   b.EStop.Stable,
	}
	for i := range b.Pads {
		s.Pads[i] = b.Pads[i].Stable
	}
	return s
}
