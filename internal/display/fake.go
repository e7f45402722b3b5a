package display

// Fake is a test double that records every value rendered.
type Fake struct {
	// Value is the digit currently shown, valid only when Shown is true.
	Value int
	Shown bool

	// Renders records every rendered value in order.
	Renders []int

	// Clears counts calls to Clear.
	Clears int

	// RenderError, if set, will be returned by Render.
	RenderError error
}

// NewFake creates a blank Fake display.
func NewFake() *Fake {
	return &Fake{}
}

// Render records value.
func (f *Fake) Render(value int) error {
	if f.RenderError != nil {
		return f.RenderError
	}
	if err := checkValue(value); err != nil {
		return err
	}
	f.Value = value
	f.Shown = true
	f.Renders = append(f.Renders, value)
	return nil
}

// Clear blanks the display.
func (f *Fake) Clear() error {
	f.Shown = false
	f.Clears++
	return nil
}

// NewFakeBank returns a bank of fresh Fake displays along with the fakes
// themselves for inspection.
func NewFakeBank() (Bank, *Fake, []*Fake) {
	main := NewFake()
	pads := make([]*Fake, len(Bank{}.Pads))
	b := Bank{Main: main}
	for i := range b.Pads {
		pads[i] = NewFake()
		b.Pads[i] = pads[i]
	}
	return b, main, pads
}
