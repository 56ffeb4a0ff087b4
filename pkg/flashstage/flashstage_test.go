package flashstage

import (
	"bytes"
	"testing"

	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

func TestEraseWriteDoneRoundTrip(t *testing.T) {
	m := probe.NewMock()
	e := New(m)

	addr := uint32(0x08000000)
	if err := e.Erase(addr, 1024); err != nil {
		t.Fatalf("Erase: %v", err)
	}

	payload := bytes.Repeat([]byte{0xAB}, 256)
	if err := e.Write(addr+16, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := e.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if e.Pending() {
		t.Fatalf("Pending() = true after Done")
	}

	got, st := m.ReadMem32(addr+16, 256)
	if st != probe.StatusOK {
		t.Fatalf("ReadMem32: status %d", st)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("flash contents = %x, want %x", got, payload)
	}

	before, st := m.ReadMem32(addr, 16)
	if st != probe.StatusOK {
		t.Fatalf("ReadMem32 prefix: status %d", st)
	}
	for _, b := range before {
		if b != m.Erased {
			t.Fatalf("prefix byte = %#x, want erased pattern %#x", b, m.Erased)
		}
	}
}

func TestEraseZeroLengthIsNoop(t *testing.T) {
	m := probe.NewMock()
	e := New(m)
	if err := e.Erase(0x08000000, 0); err != nil {
		t.Fatalf("Erase(length=0): %v", err)
	}
	if e.Pending() {
		t.Fatalf("Pending() = true after a zero-length erase")
	}
}

func TestEraseMisalignedAddrFails(t *testing.T) {
	m := probe.NewMock()
	e := New(m)
	if err := e.Erase(0x08000010, 1024); err == nil {
		t.Fatalf("expected error erasing an address not aligned to the page size")
	}
}

func TestEraseMisalignedLengthFails(t *testing.T) {
	m := probe.NewMock()
	e := New(m)
	if err := e.Erase(0x08000000, 1500); err == nil {
		t.Fatalf("expected error erasing a length not a multiple of the page size")
	}
}

func TestEraseOutsideFlashFails(t *testing.T) {
	m := probe.NewMock()
	e := New(m)
	if err := e.Erase(0x20000000, 1024); err == nil {
		t.Fatalf("expected error erasing a RAM address")
	}
}

func TestWriteWithoutMatchingEraseFails(t *testing.T) {
	m := probe.NewMock()
	e := New(m)
	if err := e.Write(0x08000000, []byte{0x01, 0x02}); err == nil {
		t.Fatalf("expected error writing without a staged erase")
	}
}

func TestDoneErasesEveryPageInBlock(t *testing.T) {
	m := probe.NewMock()
	e := New(m)

	addr := uint32(0x08000000)
	if err := e.Erase(addr, 3*1024); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if err := e.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if len(m.LastEraseAddrs) != 3 {
		t.Fatalf("erased %d pages, want 3", len(m.LastEraseAddrs))
	}
	for i, want := range []uint32{addr, addr + 1024, addr + 2048} {
		if m.LastEraseAddrs[i] != want {
			t.Fatalf("erase[%d] = %#x, want %#x", i, m.LastEraseAddrs[i], want)
		}
	}
}

func TestAbortDiscardsStagedBlocks(t *testing.T) {
	m := probe.NewMock()
	e := New(m)
	if err := e.Erase(0x08000000, 1024); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	e.Abort()
	if e.Pending() {
		t.Fatalf("Pending() = true after Abort")
	}
	if len(m.LastEraseAddrs) != 0 {
		t.Fatalf("Abort must not touch the target, but pages were erased")
	}
}

func TestWriteSpanningTwoBlocksCopiesOverlapOnly(t *testing.T) {
	m := probe.NewMock()
	e := New(m)

	if err := e.Erase(0x08000000, 1024); err != nil {
		t.Fatalf("Erase block1: %v", err)
	}
	if err := e.Erase(0x08000400, 1024); err != nil {
		t.Fatalf("Erase block2: %v", err)
	}

	payload := bytes.Repeat([]byte{0x5A}, 32)
	if err := e.Write(0x08000400-16, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := e.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}

	tail, st := m.ReadMem32(0x08000400-16, 16)
	if st != probe.StatusOK {
		t.Fatalf("ReadMem32 tail of block1: status %d", st)
	}
	if !bytes.Equal(tail, payload[:16]) {
		t.Fatalf("block1 tail = %x, want %x", tail, payload[:16])
	}
	head, st := m.ReadMem32(0x08000400, 16)
	if st != probe.StatusOK {
		t.Fatalf("ReadMem32 head of block2: status %d", st)
	}
	if !bytes.Equal(head, payload[16:]) {
		t.Fatalf("block2 head = %x, want %x", head, payload[16:])
	}
}
