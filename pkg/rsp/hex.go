package rsp

import (
	"encoding/hex"
	"fmt"
)

// BytesToHex renders data as lower-case hex digit pairs, byte order
// unchanged — used for memory dumps ('m'/'M').
func BytesToHex(data []byte) string {
	return hex.EncodeToString(data)
}

// HexToBytes parses a hex digit string back into bytes. An odd-length
// string is an error.
func HexToBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string %q", s)
	}
	return hex.DecodeString(s)
}

// WordToWireHex renders a 32-bit register value as the 8 hex digits GDB
// expects on the wire. Cortex-M is little-endian, so target byte order is
// LSB-first; the reference implementation this core is modeled on computes
// this via an htonl/ntohl round trip rather than a direct little-endian
// encode, but the two are equivalent bit-for-bit for this wire format —
// see spec §9's "wire endianness quirk" note. Example: 0x12345678 -> "78563412".
func WordToWireHex(v uint32) string {
	b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return hex.EncodeToString(b)
}

// WireHexToWord parses 8 hex digits in wire byte order back into a 32-bit
// value — the inverse of WordToWireHex.
func WireHexToWord(s string) (uint32, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("register hex must be 8 digits, got %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// Byte8ToWireHex renders an 8-bit register (CONTROL/FAULTMASK/BASEPRI/PRIMASK)
// as 2 hex digits.
func Byte8ToWireHex(v uint8) string {
	return hex.EncodeToString([]byte{v})
}
