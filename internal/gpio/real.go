//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/launch-controller/internal/logic"
)

const consumer = "launch-controller"

// RealReader reads inputs from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	raw   []int
}

// NewRealReader requests every input line of pins on chip.
func NewRealReader(chipName string, pins logic.PinMap) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Switches pull the line to ground when engaged.
	offsets := inputOffsets(pins)
	lines, err := chip.RequestLines(offsets,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request input pins %v: %w", offsets, err)
	}

	return &RealReader{
		chip:  chip,
		lines: lines,
		raw:   make([]int, len(offsets)),
	}, nil
}

// Read returns the logical state of every input.
func (r *RealReader) Read() (logic.Sample, error) {
	if err := r.lines.Values(r.raw); err != nil {
		return logic.Sample{}, fmt.Errorf("read input pins: %w", err)
	}
	return decodeSample(r.raw), nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error
	if r.lines != nil {
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealIndicators drives the link-ok and link-error lamps.
type RealIndicators struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
}

// NewRealIndicators requests the two lamp lines as outputs, both off.
func NewRealIndicators(chipName string, pinOK, pinError int) (*RealIndicators, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	lines, err := chip.RequestLines([]int{pinOK, pinError},
		gpiocdev.AsOutput(0, 0),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request lamp pins %d/%d: %w", pinOK, pinError, err)
	}

	return &RealIndicators{chip: chip, lines: lines}, nil
}

// SetLink lights at most one lamp.
func (i *RealIndicators) SetLink(status logic.LinkStatus) error {
	if err := i.lines.SetValues(linkValues(status)); err != nil {
		return fmt.Errorf("set lamps %s: %w", status, err)
	}
	return nil
}

// Close turns both lamps off and releases the lines.
// The lines are reconfigured as inputs so the lamps stay dark after exit.
func (i *RealIndicators) Close() error {
	var errs []error
	if i.lines != nil {
		if err := i.lines.SetValues(linkValues(logic.LinkNone)); err != nil {
			errs = append(errs, fmt.Errorf("clear lamps: %w", err))
		}
		if err := i.lines.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure lamps: %w", err))
		}
		if err := i.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lamp lines: %w", err))
		}
	}
	if i.chip != nil {
		if err := i.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
