// Package radio implements the coded message channel between the launch
// controller and the pad controller.
//
// The infrared/RF transceiver is a small modem on a serial port. The
// controller writes one line per message to transmit:
//
//	TX <code> <bits> <khz> <pad>
//
// and the modem reports every decoded code it hears as:
//
//	RX <code>
//
// Codes are 8 hex digits. Delivery is lossy and unacknowledged.
package radio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sweeney/launch-controller/internal/logic"
)

// Port is the byte stream to the transceiver modem.
type Port interface {
	io.ReadWriteCloser
}

// Modulation describes how the modem keys each code onto the carrier.
type Modulation struct {
	Bits       int
	CarrierKHz int
}

// DefaultModulation returns 32-bit codes on a 38 kHz carrier.
func DefaultModulation() Modulation {
	return Modulation{Bits: 32, CarrierKHz: 38}
}

// formatTX renders the transmit line for msg, newline included.
// Messages that are not addressed to a pad carry pad 0.
func formatTX(msg logic.Message, mod Modulation) string {
	pad := 0
	if msg.Pad != logic.NoPad {
		pad = msg.Pad + 1
	}
	return fmt.Sprintf("TX %08X %d %d %d\n", msg.Code, mod.Bits, mod.CarrierKHz, pad)
}

// parseRX extracts the code from a receive line.
func parseRX(line string) (uint32, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "RX" {
		return 0, fmt.Errorf("not a receive line: %q", line)
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(fields[1], "0x"), "0X")
	code, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad code %q: %w", fields[1], err)
	}
	return uint32(code), nil
}
