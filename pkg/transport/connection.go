// Package transport provides connection abstractions used to reach a
// probe-agent process (pkg/probe.RemoteClient and cmd probe-agent) when the
// USB debug probe is attached to a different host than the one running the
// RSP server.
package transport

import (
	"fmt"
	"strings"
)

// Connection defines the interface for reaching a probe-agent.
// Implementations include a TCP socket and a serial link.
type Connection interface {
	// Open establishes the connection.
	Open(addr string) error

	// Close terminates the connection.
	Close() error

	// IsOpen returns true if the connection is currently open.
	IsOpen() bool

	// Read reads exactly n bytes from the connection.
	Read(n int) ([]byte, error)

	// Write writes all of data to the connection.
	Write(data []byte) (int, error)
}

// NewConnection picks a TCP connection if addr looks like host:port, and a
// serial connection otherwise (e.g. "COM3", "/dev/ttyACM0").
func NewConnection(addr string) Connection {
	if strings.Contains(addr, ":") {
		return &TCPConnection{}
	}
	return &SerialConnection{}
}

// ValidateAddr performs basic validation on a connection address.
func ValidateAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("connection address cannot be empty")
	}
	return nil
}
