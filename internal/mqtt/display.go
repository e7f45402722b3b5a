package mqtt

import "time"

// Display is a logic.Display that publishes what it shows as countdown
// telemetry. Only changes are published.
type Display struct {
	name string
	pub  Publisher
	now  func() time.Time

	value int
	shown bool
}

// NewDisplay creates a blank Display named name (e.g. "main", "pad3").
func NewDisplay(name string, pub Publisher, now func() time.Time) *Display {
	return &Display{name: name, pub: pub, now: now}
}

// Render publishes value if it differs from what is shown.
func (d *Display) Render(value int) error {
	if d.shown && d.value == value {
		return nil
	}
	d.value = value
	d.shown = true
	return d.pub.PublishCountdown(Countdown{Timestamp: d.now(), Display: d.name, Value: value})
}

// Clear publishes a blank display.
func (d *Display) Clear() error {
	if !d.shown {
		return nil
	}
	d.shown = false
	return d.pub.PublishCountdown(Countdown{Timestamp: d.now(), Display: d.name, Blank: true})
}
