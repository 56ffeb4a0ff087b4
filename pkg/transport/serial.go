package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialConnection implements Connection over a local serial link. The
// probe-agent in this module (probe.Agent) listens only on TCP and does
// not serve the relay protocol over a serial port.
type SerialConnection struct {
	port     serial.Port
	BaudRate int
	Timeout  time.Duration
}

// Open opens the named serial port.
func (s *SerialConnection) Open(portName string) error {
	baud := s.BaudRate
	if baud == 0 {
		baud = 115200
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	s.port = port
	return nil
}

// Close closes the serial port.
func (s *SerialConnection) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// IsOpen reports whether the serial port is open.
func (s *SerialConnection) IsOpen() bool {
	return s.port != nil
}

// Read reads exactly n bytes.
func (s *SerialConnection) Read(n int) ([]byte, error) {
	if s.port == nil {
		return nil, fmt.Errorf("serial port not open")
	}

	buf := make([]byte, n)
	total := 0
	for total < n {
		read, err := s.port.Read(buf[total:])
		if err != nil {
			return nil, fmt.Errorf("serial read error: %w", err)
		}
		if read == 0 {
			return nil, fmt.Errorf("serial read timeout (expected %d bytes, got %d)", n, total)
		}
		total += read
	}
	return buf, nil
}

// Write writes all of data.
func (s *SerialConnection) Write(data []byte) (int, error) {
	if s.port == nil {
		return 0, fmt.Errorf("serial port not open")
	}

	total := 0
	for total < len(data) {
		n, err := s.port.Write(data[total:])
		if err != nil {
			return total, fmt.Errorf("serial write error: %w", err)
		}
		total += n
	}
	return total, nil
}
