package session

import (
	"testing"

	"github.com/stlinkgdb/stlinkgdb/pkg/armdbg"
	"github.com/stlinkgdb/stlinkgdb/pkg/config"
	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

func newTestSession(t *testing.T) (*Session, *probe.Mock) {
	t.Helper()
	m := probe.NewMock()
	m.DebugRegs[armdbg.FPCTRL] = 6 << 4 // six code comparators, FPB rev1
	cfg := &config.Config{ConnectMode: "normal", Semihosting: true}
	s := New(m, cfg)
	if err := s.ct.Init(); err != nil {
		t.Fatalf("ct.Init: %v", err)
	}
	if err := s.bm.Init(s.ct.Present); err != nil {
		t.Fatalf("bm.Init: %v", err)
	}
	if err := s.wm.Init(); err != nil {
		t.Fatalf("wm.Init: %v", err)
	}
	s.attached = true
	return s, m
}

func TestDispatchHaltReasonQuery(t *testing.T) {
	s, _ := newTestSession(t)
	reply, term := s.dispatch([]byte("?"))
	if term {
		t.Fatalf("terminate = true for '?'")
	}
	if string(reply) != "S05" {
		t.Fatalf("reply = %q, want S05", reply)
	}
}

func TestDispatchReadWriteAllRegs(t *testing.T) {
	s, m := newTestSession(t)
	for i := 0; i < 16; i++ {
		m.Regs.R[i] = uint32(i) * 0x01010101
	}
	reply, _ := s.dispatch([]byte("g"))
	if len(reply) != 16*8 {
		t.Fatalf("g reply length = %d, want %d", len(reply), 16*8)
	}

	writeReply, _ := s.dispatch(append([]byte("G"), reply...))
	if string(writeReply) != "OK" {
		t.Fatalf("G reply = %q, want OK", writeReply)
	}
	readBack, _ := s.dispatch([]byte("g"))
	if string(readBack) != string(reply) {
		t.Fatalf("round trip mismatch: %q != %q", readBack, reply)
	}
}

func TestDispatchReadRegisterExample(t *testing.T) {
	s, m := newTestSession(t)
	m.Regs.R[0] = 0x12345678

	reply, _ := s.dispatch([]byte("p0"))
	if string(reply) != "78563412" {
		t.Fatalf("p0 reply = %q, want 78563412", reply)
	}
}

func TestDispatchWriteRegister(t *testing.T) {
	s, m := newTestSession(t)
	reply, _ := s.dispatch([]byte("P1=78563412"))
	if string(reply) != "OK" {
		t.Fatalf("P1 reply = %q, want OK", reply)
	}
	if m.Regs.R[1] != 0x12345678 {
		t.Fatalf("r1 = %#x, want 0x12345678", m.Regs.R[1])
	}
}

func TestDispatchByteRegister(t *testing.T) {
	s, _ := newTestSession(t)
	reply, _ := s.dispatch([]byte("P1c=07"))
	if string(reply) != "OK" {
		t.Fatalf("P1c reply = %q, want OK", reply)
	}
	readReply, _ := s.dispatch([]byte("p1c"))
	if string(readReply) != "07" {
		t.Fatalf("p1c reply = %q, want 07", readReply)
	}
}

func TestDispatchMemoryReadWrite(t *testing.T) {
	s, _ := newTestSession(t)
	writeReply, _ := s.dispatch([]byte("M20000000,4:deadbeef"))
	if string(writeReply) != "OK" {
		t.Fatalf("M reply = %q, want OK", writeReply)
	}
	readReply, _ := s.dispatch([]byte("m20000000,4"))
	if string(readReply) != "deadbeef" {
		t.Fatalf("m reply = %q, want deadbeef", readReply)
	}
}

func TestDispatchMemoryReadCapsAtMaxReadLen(t *testing.T) {
	s, _ := newTestSession(t)
	reply, _ := s.dispatch([]byte("m20000000,ffff"))
	if len(reply) != maxReadLen*2 {
		t.Fatalf("read length = %d bytes of hex, want %d", len(reply), maxReadLen*2)
	}
}

func TestDispatchSetRemoveHardwareBreakpoint(t *testing.T) {
	s, m := newTestSession(t)
	setReply := s.setBreakWatch("1,8000100,2")
	if string(setReply) != "OK" {
		t.Fatalf("Z1 reply = %q, want OK", setReply)
	}
	if m.DebugRegs[0xE0002008] != 0x48000101 {
		t.Fatalf("FP_COMP0 = %#x, want 0x48000101", m.DebugRegs[0xE0002008])
	}

	clearReply := s.clearBreakWatch("1,8000100,2")
	if string(clearReply) != "OK" {
		t.Fatalf("z1 reply = %q, want OK", clearReply)
	}
	if m.DebugRegs[0xE0002008] != 0 {
		t.Fatalf("FP_COMP0 = %#x after remove, want 0", m.DebugRegs[0xE0002008])
	}
}

func TestDispatchSetWatchpoint(t *testing.T) {
	s, _ := newTestSession(t)
	reply := s.setBreakWatch("2,20000000,4")
	if string(reply) != "OK" {
		t.Fatalf("Z2 reply = %q, want OK", reply)
	}
}

func TestDispatchUnknownPacketIsEmpty(t *testing.T) {
	s, _ := newTestSession(t)
	reply, term := s.dispatch([]byte("XnonsenseHere"))
	if term {
		t.Fatalf("terminate = true for unknown packet")
	}
	if string(reply) != "" {
		t.Fatalf("reply = %q, want empty", reply)
	}
}

func TestDispatchQSupported(t *testing.T) {
	s, _ := newTestSession(t)
	reply, _ := s.dispatch([]byte("qSupported:multiprocess+"))
	want := "PacketSize=3fff;qXfer:memory-map:read+;qXfer:features:read+"
	if string(reply) != want {
		t.Fatalf("qSupported reply = %q, want %q", reply, want)
	}
}

func TestDispatchQXferFeatures(t *testing.T) {
	s, _ := newTestSession(t)
	reply, _ := s.dispatch([]byte("qXfer:features:read:target.xml:0,fff"))
	if len(reply) == 0 || (reply[0] != 'l' && reply[0] != 'm') {
		t.Fatalf("qXfer:features reply doesn't start with l/m: %q", reply)
	}
}

func TestDispatchQRcmdHaltResume(t *testing.T) {
	s, _ := newTestSession(t)
	haltHex := hexOf("halt")
	reply, _ := s.dispatch([]byte("qRcmd," + haltHex))
	if string(reply) != "OK" {
		t.Fatalf("qRcmd,halt reply = %q, want OK", reply)
	}
	reply, _ = s.dispatch([]byte("qRcmd," + hexOf("resume")))
	if string(reply) != "OK" {
		t.Fatalf("qRcmd,resume reply = %q, want OK", reply)
	}
}

func hexOf(s string) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(s)*2)
	for i := 0; i < len(s); i++ {
		out[i*2] = digits[s[i]>>4]
		out[i*2+1] = digits[s[i]&0xf]
	}
	return string(out)
}

func TestDispatchExtendedMode(t *testing.T) {
	s, _ := newTestSession(t)
	reply, _ := s.dispatch([]byte("!"))
	if string(reply) != "OK" {
		t.Fatalf("! reply = %q, want OK", reply)
	}
	if !s.extended {
		t.Fatalf("extended = false after '!'")
	}
}

func TestDispatchVFlashTransaction(t *testing.T) {
	s, m := newTestSession(t)
	eraseReply := s.dispatch2("vFlashErase:08000000,400")
	if string(eraseReply) != "OK" {
		t.Fatalf("vFlashErase reply = %q, want OK", eraseReply)
	}
	writeReply := s.dispatch2("vFlashWrite:08000000:" + string([]byte{0xde, 0xad, 0xbe, 0xef}))
	if string(writeReply) != "OK" {
		t.Fatalf("vFlashWrite reply = %q, want OK", writeReply)
	}
	doneReply := s.dispatch2("vFlashDone")
	if string(doneReply) != "OK" {
		t.Fatalf("vFlashDone reply = %q, want OK", doneReply)
	}
	got, st := m.ReadMem32(0x08000000, 4)
	if st != probe.StatusOK {
		t.Fatalf("ReadMem32: status %d", st)
	}
	if got[0] != 0xde || got[1] != 0xad || got[2] != 0xbe || got[3] != 0xef {
		t.Fatalf("flash contents = %x, want deadbeef", got)
	}
}

// dispatch2 is a small test-only wrapper over dispatch that takes a string
// payload, for readability in the vFlash tests above.
func (s *Session) dispatch2(payload string) []byte {
	reply, _ := s.dispatch([]byte(payload))
	return reply
}

func TestDispatchRestartReinitsManagers(t *testing.T) {
	s, m := newTestSession(t)
	s.setBreakWatch("1,8000100,2")
	if m.DebugRegs[0xE0002008] == 0 {
		t.Fatalf("expected breakpoint comparator set before restart")
	}
	reply, _ := s.dispatch([]byte("R"))
	if string(reply) != "OK" {
		t.Fatalf("R reply = %q, want OK", reply)
	}
	if m.DebugRegs[0xE0002008] != 0 {
		t.Fatalf("FP_COMP0 = %#x after restart, want cleared", m.DebugRegs[0xE0002008])
	}
}
