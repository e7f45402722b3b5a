package logic

import (
	"log"
	"time"
)

// Pad is the state of one launch position.
type Pad struct {
	Index   int
	Engaged bool
	// Elapsed is the whole seconds the pad's countdown has been running.
	Elapsed int
	// Frozen pads keep their last Elapsed value and never advance again
	// during the run.
	Frozen     bool
	timerStart time.Time
}

// SequenceState tracks the progress of one launch sequence.
type SequenceState struct {
	Running bool
	// Current is the pad being counted down. It only increases during a run
	// and reaches PadCount when the run is complete.
	Current int
	// CountdownStart is the zero time while no countdown is active.
	CountdownStart time.Time
}

// Sequencer runs the pads one at a time: each engaged pad gets a full
// countdown and exactly one launch command, each disengaged pad is frozen
// and skipped without delay.
type Sequencer struct {
	Pads  [PadCount]Pad
	State SequenceState

	countdown time.Duration
	codes     Codes
	out       *Outputs
}

// NewSequencer creates an idle sequencer driving out.
func NewSequencer(countdown time.Duration, codes Codes, out *Outputs) *Sequencer {
	s := &Sequencer{countdown: countdown, codes: codes, out: out}
	for i := range s.Pads {
		s.Pads[i].Index = i
	}
	return s
}

// SetEngaged records the debounced state of a pad switch.
func (s *Sequencer) SetEngaged(pad int, engaged bool) {
	s.Pads[pad].Engaged = engaged
}

// Running reports whether a sequence is in progress.
func (s *Sequencer) Running() bool {
	return s.State.Running
}

// Start begins a new run. It returns false if a run is already in progress.
func (s *Sequencer) Start() bool {
	if s.State.Running {
		return false
	}
	s.State = SequenceState{Running: true}
	s.resetPads()
	return true
}

// Abort stops the run immediately without sending anything.
// It reports whether a run was in progress.
func (s *Sequencer) Abort() bool {
	was := s.State.Running
	s.State.Running = false
	s.State.CountdownStart = time.Time{}
	return was
}

// Reset aborts any run and clears all pad timers.
func (s *Sequencer) Reset() {
	s.Abort()
	s.State.Current = 0
	s.resetPads()
}

func (s *Sequencer) resetPads() {
	for i := range s.Pads {
		s.Pads[i].Elapsed = 0
		s.Pads[i].Frozen = false
		s.Pads[i].timerStart = time.Time{}
	}
}

// Tick advances the run at now and returns the events it produced.
// Skipped pads are passed over within the same tick; a fired pad hands over
// to the next pad at the same instant, so pad countdowns follow each other
// back to back.
func (s *Sequencer) Tick(now time.Time) []Event {
	if !s.State.Running {
		return nil
	}

	var events []Event
	for s.State.Running {
		if s.State.Current >= PadCount {
			s.State.Running = false
			s.State.Current = PadCount
			s.State.CountdownStart = time.Time{}
			clearDisplays(s.out)
			events = append(events, Event{Timestamp: now, Type: EventSequenceComplete, Pad: NoPad})
			break
		}

		pad := &s.Pads[s.State.Current]

		if !pad.Engaged {
			pad.Frozen = true
			s.advance()
			events = append(events, Event{Timestamp: now, Type: EventPadSkipped, Pad: pad.Index})
			continue
		}

		if s.State.CountdownStart.IsZero() {
			s.State.CountdownStart = now
		}
		remaining := s.countdown - now.Sub(s.State.CountdownStart)

		if remaining > 0 {
			s.showCountdown(pad, now, remaining)
			break
		}

		s.fire(pad)
		s.advance()
		events = append(events, Event{Timestamp: now, Type: EventPadFired, Pad: pad.Index})
	}

	return events
}

func (s *Sequencer) advance() {
	s.State.Current++
	s.State.CountdownStart = time.Time{}
}

func (s *Sequencer) showCountdown(pad *Pad, now time.Time, remaining time.Duration) {
	if pad.timerStart.IsZero() {
		pad.timerStart = now
	}
	if !pad.Frozen {
		pad.Elapsed = int(now.Sub(pad.timerStart) / time.Second)
	}

	if err := s.out.Main.Render(int(remaining / time.Second)); err != nil {
		log.Printf("sequencer: render main display: %v", err)
	}
	if err := s.out.Pads[pad.Index].Render(pad.Elapsed); err != nil {
		log.Printf("sequencer: render pad %d display: %v", pad.Index+1, err)
	}
}

func (s *Sequencer) fire(pad *Pad) {
	msg := s.codes.LaunchMessage(pad.Index)
	if err := s.out.Channel.Send(msg); err != nil {
		// The link is lossy and unacknowledged; a failed write is not retried.
		log.Printf("sequencer: send %s: %v", msg, err)
	}
	if err := s.out.Main.Clear(); err != nil {
		log.Printf("sequencer: clear main display: %v", err)
	}
	if err := s.out.Pads[pad.Index].Clear(); err != nil {
		log.Printf("sequencer: clear pad %d display: %v", pad.Index+1, err)
	}
}

func clearDisplays(out *Outputs) {
	if err := out.Main.Clear(); err != nil {
		log.Printf("display: clear main: %v", err)
	}
	for i, d := range out.Pads {
		if err := d.Clear(); err != nil {
			log.Printf("display: clear pad %d: %v", i+1, err)
		}
	}
}
