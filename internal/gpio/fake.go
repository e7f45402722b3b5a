package gpio

import (
	"errors"

	"github.com/sweeney/launch-controller/internal/logic"
)

// FakeReader is a test double that returns scripted input samples.
type FakeReader struct {
	// Samples contains scripted samples to return.
	// Each call to Read() consumes the next sample.
	Samples []logic.Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []logic.Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (logic.Sample, error) {
	if f.ReadError != nil {
		return logic.Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return logic.Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeIndicators records lamp changes.
type FakeIndicators struct {
	Status  logic.LinkStatus
	History []logic.LinkStatus

	// SetError, if set, will be returned by SetLink.
	SetError error
}

// NewFakeIndicators creates FakeIndicators with both lamps off.
func NewFakeIndicators() *FakeIndicators {
	return &FakeIndicators{Status: logic.LinkNone}
}

// SetLink records the new status.
func (f *FakeIndicators) SetLink(status logic.LinkStatus) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Status = status
	f.History = append(f.History, status)
	return nil
}

// Lamps returns the (ok, error) lamp states.
func (f *FakeIndicators) Lamps() (ok, fail bool) {
	v := linkValues(f.Status)
	return v[0] == 1, v[1] == 1
}
