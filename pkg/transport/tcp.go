package transport

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// TCPConnection implements Connection over a TCP socket to a probe-agent.
type TCPConnection struct {
	conn   net.Conn
	isOpen bool
}

// Open dials host:port.
func (t *TCPConnection) Open(addr string) error {
	parts := strings.Split(addr, ":")
	if len(parts) < 2 {
		return fmt.Errorf("invalid TCP address format (expected host:port): %s", addr)
	}

	host := parts[0]
	port := parts[1]
	joined := net.JoinHostPort(host, port)

	conn, err := net.DialTimeout("tcp", joined, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", joined, err)
	}

	t.conn = conn
	t.isOpen = true
	return nil
}

// Close closes the TCP connection.
func (t *TCPConnection) Close() error {
	if t.conn == nil {
		return nil
	}
	t.isOpen = false
	return t.conn.Close()
}

// IsOpen reports whether the connection is currently open.
func (t *TCPConnection) IsOpen() bool {
	return t.isOpen
}

// Read reads exactly n bytes.
func (t *TCPConnection) Read(n int) ([]byte, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("TCP connection not open")
	}

	buf := make([]byte, n)
	total := 0
	for total < n {
		read, err := t.conn.Read(buf[total:])
		if err != nil {
			return nil, fmt.Errorf("TCP read error: %w", err)
		}
		if read == 0 {
			return nil, fmt.Errorf("TCP connection closed")
		}
		total += read
	}
	return buf, nil
}

// Write writes all of data.
func (t *TCPConnection) Write(data []byte) (int, error) {
	if t.conn == nil {
		return 0, fmt.Errorf("TCP connection not open")
	}

	total := 0
	for total < len(data) {
		n, err := t.conn.Write(data[total:])
		if err != nil {
			return total, fmt.Errorf("TCP write error: %w", err)
		}
		total += n
	}
	return total, nil
}
