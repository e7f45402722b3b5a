// Package display provides the numeric display adapters used by the control
// core: a recording fake for tests, a logging display for hosts without a
// segment driver, and a mirror that fans values out to several displays.
package display

import (
	"errors"
	"fmt"
	"log"

	"github.com/sweeney/launch-controller/internal/logic"
)

// MaxValue is the largest value a single digit display can show.
const MaxValue = 9

// Bank is the main display plus one display per pad.
type Bank struct {
	Main logic.Display
	Pads [logic.PadCount]logic.Display
}

// NewLoggerBank returns a bank of Logger displays named "main" and "pad1".."padN".
func NewLoggerBank() Bank {
	var b Bank
	b.Main = NewLogger("main")
	for i := range b.Pads {
		b.Pads[i] = NewLogger(fmt.Sprintf("pad%d", i+1))
	}
	return b
}

// Apply installs the bank's displays into out.
func (b Bank) Apply(out *logic.Outputs) {
	out.Main = b.Main
	out.Pads = b.Pads
}

// Logger writes rendered values through the standard logger.
// Repeated renders of the same value are logged once.
type Logger struct {
	name  string
	value int
	shown bool
}

// NewLogger creates a blank Logger display.
func NewLogger(name string) *Logger {
	return &Logger{name: name}
}

// Render logs value if it differs from what is shown.
func (l *Logger) Render(value int) error {
	if err := checkValue(value); err != nil {
		return fmt.Errorf("display %s: %w", l.name, err)
	}
	if l.shown && l.value == value {
		return nil
	}
	l.value = value
	l.shown = true
	log.Printf("display: %s=%d", l.name, value)
	return nil
}

// Clear logs that the display went blank.
func (l *Logger) Clear() error {
	if !l.shown {
		return nil
	}
	l.shown = false
	log.Printf("display: %s blank", l.name)
	return nil
}

// Mirror renders every value on all of its targets.
type Mirror []logic.Display

// Render renders value on every target and joins their errors.
func (m Mirror) Render(value int) error {
	var errs []error
	for _, d := range m {
		if err := d.Render(value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear clears every target and joins their errors.
func (m Mirror) Clear() error {
	var errs []error
	for _, d := range m {
		if err := d.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkValue rejects values a single digit display cannot show.
func checkValue(value int) error {
	if value < 0 || value > MaxValue {
		return fmt.Errorf("value %d out of range 0..%d", value, MaxValue)
	}
	return nil
}
