package radio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/sweeney/launch-controller/internal/logic"
)

// ReceiveBuffer is the number of decoded messages held for TryReceive.
const ReceiveBuffer = 64

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("radio: channel closed")

// Serial is a logic.Channel backed by a transceiver modem on a serial port.
// Received lines are decoded on the Monitor goroutine into a bounded buffer;
// when the buffer is full new messages are dropped, as the air link would.
type Serial struct {
	port  Port
	codes logic.Codes
	mod   Modulation

	writeMu sync.Mutex
	closed  bool

	rx      chan logic.Message
	dropped atomic.Uint64
}

// NewSerial wraps an already open port.
func NewSerial(port Port, codes logic.Codes, mod Modulation) *Serial {
	return &Serial{
		port:  port,
		codes: codes,
		mod:   mod,
		rx:    make(chan logic.Message, ReceiveBuffer),
	}
}

// Open opens the modem at path and wraps it.
func Open(path string, opts PortOptions, codes logic.Codes, mod Modulation) (*Serial, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial options: %w", err)
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	return NewSerial(port, codes, mod), nil
}

// Send transmits msg once.
func (s *Serial) Send(msg logic.Message) error {
	line := formatTX(msg, s.mod)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrClosed
	}
	n, err := s.port.Write([]byte(line))
	if err != nil {
		return fmt.Errorf("write %s: %w", msg, err)
	}
	if n != len(line) {
		return fmt.Errorf("write %s: short write (%d of %d bytes)", msg, n, len(line))
	}
	return nil
}

// TryReceive returns the oldest buffered message without blocking.
func (s *Serial) TryReceive() (logic.Message, bool) {
	select {
	case msg := <-s.rx:
		return msg, true
	default:
		return logic.Message{}, false
	}
}

// Dropped returns the number of received messages discarded because the
// buffer was full.
func (s *Serial) Dropped() uint64 {
	return s.dropped.Load()
}

// Monitor reads receive lines from the modem until ctx is cancelled or the
// port returns an error. Lines that do not parse are logged and skipped.
func (s *Serial) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The scanner blocks in Read, so it runs on its own goroutine and the
	// loop below stays responsive to ctx.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return fmt.Errorf("read serial port: %w", err)

		case line, ok := <-lineChan:
			if !ok {
				return nil
			}
			s.handleLine(line)
		}
	}
}

func (s *Serial) handleLine(line string) {
	if line == "" {
		return
	}
	code, err := parseRX(line)
	if err != nil {
		log.Printf("radio: ignoring modem line: %v", err)
		return
	}

	msg := s.codes.Decode(code, logic.NoPad)
	select {
	case s.rx <- msg:
	default:
		if s.dropped.Add(1) == 1 {
			log.Printf("radio: receive buffer full, dropping %s", msg)
		}
	}
}

// Close closes the port. Monitor returns once the pending read fails.
func (s *Serial) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}
