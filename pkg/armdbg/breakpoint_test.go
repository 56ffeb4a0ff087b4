package armdbg

import (
	"testing"

	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

func newRev1Mock(nFP int) *probe.Mock {
	m := probe.NewMock()
	m.DebugRegs[FPCTRL] = uint32(nFP&0xF) << 4 // bit 31:28 REV field left 0 -> rev1
	return m
}

func newRev2Mock(nFP int) *probe.Mock {
	m := probe.NewMock()
	m.DebugRegs[FPCTRL] = uint32(nFP&0xF)<<4 | 1<<28
	return m
}

func TestBreakpointManagerInitRev1(t *testing.T) {
	m := newRev1Mock(6)
	bm := NewBreakpointManager(m)
	if err := bm.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if bm.Rev() != 1 {
		t.Fatalf("Rev() = %d, want 1", bm.Rev())
	}
	if bm.NFP() != 6 {
		t.Fatalf("NFP() = %d, want 6", bm.NFP())
	}
	if m.DebugRegs[FPCTRL] != 0x03 {
		t.Fatalf("FP_CTRL = %#x, want 0x03", m.DebugRegs[FPCTRL])
	}
}

func TestBreakpointManagerInitUnlocksCM7(t *testing.T) {
	m := newRev1Mock(6)
	bm := NewBreakpointManager(m)
	if err := bm.Init(true); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if m.DebugRegs[FPLAR] != FPLARKey {
		t.Fatalf("FP_LAR = %#x, want unlock key", m.DebugRegs[FPLAR])
	}
}

func TestBreakpointInsertRemoveRoundTrip(t *testing.T) {
	m := newRev1Mock(6)
	bm := NewBreakpointManager(m)
	if err := bm.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	addr := uint32(0x08000100)
	slot, err := bm.Insert(addr)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := m.DebugRegs[fpCompAddr(slot)]; got != 0x48000101 {
		t.Fatalf("FP_COMP[%d] = %#x, want 0x48000101", slot, got)
	}
	if !bm.Contains(addr) {
		t.Fatalf("Contains(%#x) = false after insert", addr)
	}

	if err := bm.Remove(addr); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := m.DebugRegs[fpCompAddr(slot)]; got != 0 {
		t.Fatalf("FP_COMP[%d] = %#x after remove, want 0", slot, got)
	}
	if bm.Contains(addr) {
		t.Fatalf("Contains(%#x) = true after remove", addr)
	}
}

func TestBreakpointRev1HalfWordSharing(t *testing.T) {
	m := newRev1Mock(6)
	bm := NewBreakpointManager(m)
	if err := bm.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	low := uint32(0x08000100)
	high := low ^ 2

	slotLow, err := bm.Insert(low)
	if err != nil {
		t.Fatalf("Insert(low): %v", err)
	}
	slotHigh, err := bm.Insert(high)
	if err != nil {
		t.Fatalf("Insert(high): %v", err)
	}
	if slotLow != slotHigh {
		t.Fatalf("expected shared slot, got %d and %d", slotLow, slotHigh)
	}

	if err := bm.Remove(low); err != nil {
		t.Fatalf("Remove(low): %v", err)
	}
	if !bm.Contains(high) {
		t.Fatalf("Contains(high) = false after removing only low")
	}
	if bm.Contains(low) {
		t.Fatalf("Contains(low) = true after removing low")
	}
	if got := m.DebugRegs[fpCompAddr(slotLow)]; got == 0 {
		t.Fatalf("comparator cleared even though high half still active")
	}
}

func TestBreakpointRev2Literal(t *testing.T) {
	m := newRev2Mock(6)
	bm := NewBreakpointManager(m)
	if err := bm.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	addr := uint32(0x08000103)
	if _, err := bm.Insert(addr); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !bm.Contains(addr) {
		t.Fatalf("Contains(%#x) = false", addr)
	}
}

func TestBreakpointInsertOddAddressFails(t *testing.T) {
	m := newRev1Mock(6)
	bm := NewBreakpointManager(m)
	if err := bm.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := bm.Insert(0x08000101); err == nil {
		t.Fatalf("expected error for odd address")
	}
}

func TestBreakpointNoFreeSlot(t *testing.T) {
	m := newRev1Mock(1)
	bm := NewBreakpointManager(m)
	if err := bm.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := bm.Insert(0x08000000); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := bm.Insert(0x08001000); err == nil {
		t.Fatalf("expected error when comparators exhausted")
	}
}
