// Package gpio provides GPIO input reading and status lamp output with
// hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/launch-controller/internal/logic"

// Reader reads controller input states.
type Reader interface {
	// Read returns the logical state of every input.
	// All inputs are active-low with pull-ups: raw low = logical engaged.
	Read() (logic.Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering).
const (
	DefaultPinKey       = 17
	DefaultPinEnable    = 27
	DefaultPinTrigger   = 22
	DefaultPinEStop     = 23
	DefaultPinLinkOK    = 20
	DefaultPinLinkError = 21
)

// DefaultPadPins are the presence switch pins of pads 1..5.
var DefaultPadPins = [logic.PadCount]int{5, 6, 13, 19, 26}

// DefaultPins returns the default input pin map.
func DefaultPins() logic.PinMap {
	return logic.PinMap{
		Key:     DefaultPinKey,
		Enable:  DefaultPinEnable,
		Trigger: DefaultPinTrigger,
		EStop:   DefaultPinEStop,
		Pads:    DefaultPadPins,
	}
}

// inputOffsets lists the pins of m in the order Read decodes them.
func inputOffsets(m logic.PinMap) []int {
	offsets := []int{m.Key, m.Enable, m.Trigger, m.EStop}
	return append(offsets, m.Pads[:]...)
}

// decodeSample turns raw line values, ordered as inputOffsets, into a
// logical sample. Raw 0 (pulled low by the switch) means engaged.
func decodeSample(raw []int) logic.Sample {
	var s logic.Sample
	s.Key = raw[0] == 0
	s.Enable = raw[1] == 0
	s.Trigger = raw[2] == 0
	s.EStop = raw[3] == 0
	for i := range s.Pads {
		s.Pads[i] = raw[4+i] == 0
	}
	return s
}

// linkValues returns the (ok, error) lamp line values for a link status.
// At most one lamp is ever lit.
func linkValues(status logic.LinkStatus) []int {
	switch status {
	case logic.LinkOK:
		return []int{1, 0}
	case logic.LinkError:
		return []int{0, 1}
	default:
		return []int{0, 0}
	}
}
