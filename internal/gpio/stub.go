//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/launch-controller/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pins logic.PinMap) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (logic.Sample, error) {
	return logic.Sample{}, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealIndicators is not available on non-Linux platforms.
type RealIndicators struct{}

// NewRealIndicators returns an error on non-Linux platforms.
func NewRealIndicators(chipName string, pinOK, pinError int) (*RealIndicators, error) {
	return nil, errUnsupported
}

// SetLink is not implemented on non-Linux platforms.
func (i *RealIndicators) SetLink(status logic.LinkStatus) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (i *RealIndicators) Close() error {
	return nil
}
