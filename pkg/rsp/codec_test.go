package rsp

import (
	"net"
	"testing"
)

func TestChecksum(t *testing.T) {
	cases := []struct {
		payload string
		want    byte
	}{
		{"", 0},
		{"OK", 'O' + 'K'},
		{"qSupported", 0x37},
	}
	for _, c := range cases {
		if got := Checksum([]byte(c.payload)); got != c.want {
			t.Errorf("Checksum(%q) = %#x, want %#x", c.payload, got, c.want)
		}
	}
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	data := []byte{'$', '#', '}', '*', 'a', 0x00, 0xff}
	escaped := Escape(data)
	for _, b := range escaped {
		if b == '$' || b == '#' {
			t.Fatalf("escaped output still contains raw %q", b)
		}
	}
	got := Unescape(escaped)
	if string(got) != string(data) {
		t.Fatalf("round trip = %v, want %v", got, data)
	}
}

func TestEscapeXorsWith0x20(t *testing.T) {
	got := Escape([]byte{'$'})
	want := []byte{'}', '$' ^ 0x20}
	if string(got) != string(want) {
		t.Fatalf("Escape($) = %v, want %v", got, want)
	}
}

func TestFrame(t *testing.T) {
	framed := Frame([]byte("OK"))
	want := "$OK#" + string(hexDigit(Checksum([]byte("OK"))>>4)) + string(hexDigit(Checksum([]byte("OK"))&0xf))
	if string(framed) != want {
		t.Fatalf("Frame(OK) = %q, want %q", framed, want)
	}
}

func TestWordToWireHexExample(t *testing.T) {
	got := WordToWireHex(0x12345678)
	if got != "78563412" {
		t.Fatalf("WordToWireHex(0x12345678) = %q, want %q", got, "78563412")
	}
}

func TestWireHexRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 0xdeadbeef, 0xffffffff} {
		s := WordToWireHex(v)
		got, err := WireHexToWord(s)
		if err != nil {
			t.Fatalf("WireHexToWord(%q): %v", s, err)
		}
		if got != v {
			t.Fatalf("round trip %#x -> %q -> %#x", v, s, got)
		}
	}
}

func TestBytesToHexRoundTrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0xab, 0xff}
	s := BytesToHex(data)
	got, err := HexToBytes(s)
	if err != nil {
		t.Fatalf("HexToBytes: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("round trip = %v, want %v", got, data)
	}
}

func TestHexToBytesOddLength(t *testing.T) {
	if _, err := HexToBytes("abc"); err == nil {
		t.Fatalf("expected error for odd-length hex string")
	}
}

func TestCodecWriteReadPacket(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverCodec := NewCodec(server)
	clientCodec := NewCodec(client)

	errCh := make(chan error, 1)
	go func() {
		errCh <- serverCodec.WritePacket([]byte("OK"))
	}()

	got, err := clientCodec.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if string(got) != "OK" {
		t.Fatalf("ReadPacket = %q, want %q", got, "OK")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
}

func TestCodecReadPacketRejectsBadChecksum(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientCodec := NewCodec(client)

	go func() {
		server.Write([]byte("$OK#00"))
		buf := make([]byte, 1)
		server.Read(buf) // drain the NAK so the client's Write doesn't block
	}()

	if _, err := clientCodec.ReadPacket(); err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
}

func TestCodecReadPacketDetectsBreak(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientCodec := NewCodec(client)

	go func() {
		server.Write([]byte{BreakByte})
	}()

	if _, err := clientCodec.ReadPacket(); err != ErrBreak {
		t.Fatalf("ReadPacket err = %v, want ErrBreak", err)
	}
}

func TestCodecNoAcksSkipsHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverCodec := NewCodec(server)
	serverCodec.Acks = false
	clientCodec := NewCodec(client)
	clientCodec.Acks = false

	errCh := make(chan error, 1)
	go func() {
		errCh <- serverCodec.WritePacket([]byte("OK"))
	}()

	got, err := clientCodec.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if string(got) != "OK" {
		t.Fatalf("ReadPacket = %q, want %q", got, "OK")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
}
