// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"io"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// MH-Z19 UART frames are 9 bytes: start byte, sensor/command byte, payload,
// checksum.
const (
	mhz19FrameLen = 9
	mhz19Start    = 0xFF
	mhz19Sensor   = 0x01

	mhz19CmdReadCO2 = 0x86
	mhz19CmdABC     = 0x79

	// Bytes discarded while looking for a frame header before giving up.
	mhz19MaxSkip = 4 * mhz19FrameLen
)

var errBadFrame = errors.New("mh-z19: malformed response frame")

// MHZ19Opts configures the serial link to the CO2 sensor.
type MHZ19Opts struct {
	PortName string
	BaudRate uint
}

// MHZ19 talks to a Winsen MH-Z19 over UART.
type MHZ19 struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
}

// OpenMHZ19 opens the serial port. Reads time out after one second of
// silence so a dead sensor shows up as a read error instead of a hang.
func OpenMHZ19(opts MHZ19Opts) (*MHZ19, error) {
	serialOpts := serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 1000,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, &InitializationError{Subsystem: SubsystemCO2, Err: fmt.Errorf("open %s: %w", opts.PortName, err)}
	}
	return NewMHZ19(port), nil
}

// NewMHZ19 wraps an already open port.
func NewMHZ19(port io.ReadWriteCloser) *MHZ19 {
	return &MHZ19{port: port}
}

// ReadCO2 issues command 0x86 and decodes the concentration.
func (m *MHZ19) ReadCO2() (int, error) {
	resp, err := m.exchange(mhz19Command(mhz19CmdReadCO2, 0x00))
	if err != nil {
		return 0, err
	}
	return int(resp[2])<<8 | int(resp[3]), nil
}

// DisableABC issues command 0x79 with payload 0x00. The sensor does not
// answer this command.
func (m *MHZ19) DisableABC() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.port.Write(mhz19Command(mhz19CmdABC, 0x00)); err != nil {
		return fmt.Errorf("mh-z19 abc off: %w", err)
	}
	return nil
}

func (m *MHZ19) Close() error {
	return m.port.Close()
}

func (m *MHZ19) exchange(cmd []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.port.Write(cmd); err != nil {
		return nil, fmt.Errorf("mh-z19 write: %w", err)
	}

	return m.readFrame(cmd[2])
}

// readFrame discards input until the start byte followed by the echoed
// command, then reads the rest of the frame. Line noise or the tail of a
// late reply is skipped instead of shifting every later frame.
func (m *MHZ19) readFrame(cmd byte) ([]byte, error) {
	var (
		one  [1]byte
		prev byte
	)
	for skipped := 0; ; skipped++ {
		if skipped > mhz19MaxSkip {
			return nil, fmt.Errorf("%w: no frame header in %d bytes", errBadFrame, skipped)
		}
		if _, err := io.ReadFull(m.port, one[:]); err != nil {
			return nil, fmt.Errorf("mh-z19 read: %w", err)
		}
		if prev == mhz19Start && one[0] == cmd {
			break
		}
		prev = one[0]
	}

	resp := make([]byte, mhz19FrameLen)
	resp[0], resp[1] = mhz19Start, cmd
	if _, err := io.ReadFull(m.port, resp[2:]); err != nil {
		return nil, fmt.Errorf("mh-z19 read: %w", err)
	}
	if want := mhz19Checksum(resp); resp[8] != want {
		return nil, fmt.Errorf("%w: checksum 0x%02X, want 0x%02X", errBadFrame, resp[8], want)
	}
	return resp, nil
}

func mhz19Command(cmd, arg byte) []byte {
	frame := []byte{mhz19Start, mhz19Sensor, cmd, arg, 0, 0, 0, 0, 0}
	frame[8] = mhz19Checksum(frame)
	return frame
}

// mhz19Checksum is the two's complement of the sum of bytes 1..7.
func mhz19Checksum(frame []byte) byte {
	var sum byte
	for _, b := range frame[1:8] {
		sum += b
	}
	return 0xFF - sum + 1
}
