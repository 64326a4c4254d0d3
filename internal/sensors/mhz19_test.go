// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// fakePort records writes and replays a canned response.
type fakePort struct {
	written  bytes.Buffer
	response *bytes.Reader
	writeErr error
	closed   bool
}

func newFakePort(resp []byte) *fakePort {
	return &fakePort{response: bytes.NewReader(resp)}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.response.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func response(cmd, high, low byte) []byte {
	frame := []byte{0xFF, cmd, high, low, 0x47, 0x00, 0x00, 0x00, 0x00}
	frame[8] = mhz19Checksum(frame)
	return frame
}

func TestMHZ19CommandFrames(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"read co2", mhz19Command(mhz19CmdReadCO2, 0), []byte{0xFF, 0x01, 0x86, 0, 0, 0, 0, 0, 0x79}},
		{"abc off", mhz19Command(mhz19CmdABC, 0), []byte{0xFF, 0x01, 0x79, 0, 0, 0, 0, 0, 0x86}},
		{"abc on", mhz19Command(mhz19CmdABC, 0xA0), []byte{0xFF, 0x01, 0x79, 0xA0, 0, 0, 0, 0, 0xE6}},
	}

	for _, tt := range tests {
		if !bytes.Equal(tt.got, tt.want) {
			t.Errorf("%s: frame % X, want % X", tt.name, tt.got, tt.want)
		}
	}
}

func TestMHZ19ReadCO2(t *testing.T) {
	port := newFakePort(response(0x86, 0x01, 0x9A)) // 410 ppm
	m := NewMHZ19(port)

	ppm, err := m.ReadCO2()
	if err != nil {
		t.Fatalf("ReadCO2: %v", err)
	}
	if ppm != 410 {
		t.Errorf("ppm = %d, want 410", ppm)
	}
	if !bytes.Equal(port.written.Bytes(), mhz19Command(mhz19CmdReadCO2, 0)) {
		t.Errorf("sent % X", port.written.Bytes())
	}
}

func TestMHZ19ReadCO2BadFrames(t *testing.T) {
	badChecksum := response(0x86, 0x01, 0x9A)
	badChecksum[8]++

	badStart := response(0x86, 0x01, 0x9A)
	badStart[0] = 0x00

	wrongCmd := response(0x79, 0x01, 0x9A)

	tests := []struct {
		name string
		resp []byte
		want error
	}{
		{"checksum", badChecksum, errBadFrame},
		{"no start byte", badStart, io.EOF},
		{"other command echo", wrongCmd, io.EOF},
		{"garbage only", make([]byte, 4*mhz19FrameLen+2), errBadFrame},
		{"short read", []byte{0xFF, 0x86, 0x01}, io.ErrUnexpectedEOF},
		{"silence", nil, io.EOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMHZ19(newFakePort(tt.resp))
			_, err := m.ReadCO2()
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMHZ19ReadCO2Resyncs(t *testing.T) {
	frame := response(0x86, 0x01, 0x9A) // 410 ppm

	tests := []struct {
		name   string
		prefix []byte
	}{
		{"noise byte", []byte{0x00}},
		{"stray start byte", []byte{0xFF}},
		{"tail of late reply", frame[5:]},
		{"partial header", []byte{0xFF, 0x01, 0x86}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := append([]byte{}, tt.prefix...)
			for i := 0; i < 5; i++ {
				stream = append(stream, frame...)
			}
			m := NewMHZ19(newFakePort(stream))

			for i := 0; i < 5; i++ {
				ppm, err := m.ReadCO2()
				if err != nil {
					t.Fatalf("read %d: %v", i, err)
				}
				if ppm != 410 {
					t.Fatalf("read %d: ppm = %d, want 410", i, ppm)
				}
			}
		})
	}
}

func TestMHZ19DisableABC(t *testing.T) {
	port := newFakePort(nil)
	m := NewMHZ19(port)

	if err := m.DisableABC(); err != nil {
		t.Fatalf("DisableABC: %v", err)
	}
	if !bytes.Equal(port.written.Bytes(), []byte{0xFF, 0x01, 0x79, 0, 0, 0, 0, 0, 0x86}) {
		t.Errorf("sent % X", port.written.Bytes())
	}

	port.writeErr = errors.New("EIO")
	if err := m.DisableABC(); err == nil {
		t.Error("expected write error")
	}
}

func TestMHZ19Close(t *testing.T) {
	port := newFakePort(nil)
	if err := NewMHZ19(port).Close(); err != nil {
		t.Fatal(err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("bus error")

	readErr := error(&SensorReadError{Sensor: SensorPressure, Err: cause})
	if !errors.Is(readErr, cause) {
		t.Error("SensorReadError does not unwrap")
	}
	if got := readErr.Error(); got != "read pressure: bus error" {
		t.Errorf("Error() = %q", got)
	}

	initErr := error(&InitializationError{Subsystem: SubsystemBMP, Err: cause})
	if !errors.Is(initErr, cause) {
		t.Error("InitializationError does not unwrap")
	}
	if got := initErr.Error(); got != "initialize bmp: bus error" {
		t.Errorf("Error() = %q", got)
	}
}
