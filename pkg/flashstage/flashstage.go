// Package flashstage implements the Flash Staging Engine (C6): GDB's
// vFlashErase/vFlashWrite/vFlashDone sequence is staged into owned byte
// buffers and committed as a single erase-then-program transaction only on
// vFlashDone. See spec §4.6.
package flashstage

import (
	"fmt"

	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

// block is one erased region staged for programming, in the order
// vFlashErase requested it (spec §9 prefers an ordered sequence of owned
// buffers over a linked list).
type block struct {
	addr uint32
	data []byte
}

// Engine accumulates staged erase/write ranges for a single flash
// transaction and commits them on Done.
type Engine struct {
	p      probe.Facade
	blocks []block
}

// New returns an Engine bound to p.
func New(p probe.Facade) *Engine {
	return &Engine{p: p}
}

// Erase stages [addr, addr+length) as a block pre-filled with the target's
// erased pattern, validating the range falls within flash.
func (e *Engine) Erase(addr, length uint32) error {
	if length == 0 {
		return nil // vFlashErase with length 0 is a no-op that succeeds
	}
	flashBase, flashSize := e.flashBounds()
	if addr < flashBase || addr+length > flashBase+flashSize {
		return fmt.Errorf("flashstage: erase range %#x+%#x outside flash", addr, length)
	}
	if pgsz := e.p.FlashPageSize(addr); pgsz == 0 || addr%pgsz != 0 || length%pgsz != 0 {
		return fmt.Errorf("flashstage: erase range %#x+%#x not page-aligned (page size %#x)", addr, length, pgsz)
	}
	data := make([]byte, length)
	pattern := e.p.ErasedPattern()
	for i := range data {
		data[i] = pattern
	}
	e.blocks = append(e.blocks, block{addr: addr, data: data})
	return nil
}

func (e *Engine) flashBounds() (base, size uint32) {
	return 0x08000000, e.p.FlashSize()
}

// Write copies data (already un-escaped by rsp.Codec.ReadPacket) into
// every staged block it intersects. It is an error if no staged block
// intersects the range at all; a write that only partially overlaps a
// block is copied to the overlapping prefix/suffix and the rest is
// silently dropped, per GDB's own tolerance for vFlashWrite spanning
// block boundaries.
func (e *Engine) Write(addr uint32, data []byte) error {
	length := uint32(len(data))
	if length == 0 {
		return nil
	}

	wrote := false
	for i := range e.blocks {
		b := &e.blocks[i]
		blockEnd := b.addr + uint32(len(b.data))
		writeEnd := addr + length
		if addr >= blockEnd || writeEnd <= b.addr {
			continue
		}
		start := addr
		if start < b.addr {
			start = b.addr
		}
		end := writeEnd
		if end > blockEnd {
			end = blockEnd
		}
		copy(b.data[start-b.addr:end-b.addr], data[start-addr:end-addr])
		wrote = true
	}
	if !wrote {
		return fmt.Errorf("flashstage: write at %#x+%#x matches no staged erase block", addr, length)
	}
	return nil
}

// Done commits every staged block: halts the target (it does not
// reconnect the probe), then for each block in staging order erases every page it covers and programs it
// through the flash loader, and finally issues a soft reset+halt. Staged
// blocks are freed whether or not the commit succeeds.
func (e *Engine) Done() error {
	defer func() { e.blocks = nil }()

	if st := e.p.Halt(); st != probe.StatusOK {
		return fmt.Errorf("flashstage: halt before programming failed: status %d", st)
	}

	for _, b := range e.blocks {
		if err := e.commitBlock(b); err != nil {
			return err
		}
	}

	if st := e.p.Reset(probe.ResetSoftHalt); st != probe.StatusOK {
		return fmt.Errorf("flashstage: post-program reset failed: status %d", st)
	}
	return nil
}

func (e *Engine) commitBlock(b block) error {
	end := b.addr + uint32(len(b.data))
	for addr := b.addr; addr < end; {
		pgsz := e.p.FlashPageSize(addr)
		if pgsz == 0 {
			return fmt.Errorf("flashstage: zero page size at %#x", addr)
		}
		if st := e.p.ErasePage(addr); st != probe.StatusOK {
			return fmt.Errorf("flashstage: erase page %#x failed: status %d", addr, st)
		}
		addr += pgsz
	}

	if st := e.p.FlashLoaderStart(); st != probe.StatusOK {
		return fmt.Errorf("flashstage: flash loader start failed: status %d", st)
	}
	writeErr := e.p.FlashLoaderWrite(b.addr, b.data)
	if st := e.p.FlashLoaderStop(); st != probe.StatusOK {
		return fmt.Errorf("flashstage: flash loader stop failed: status %d", st)
	}
	if writeErr != probe.StatusOK {
		return fmt.Errorf("flashstage: program block at %#x failed: status %d", b.addr, writeErr)
	}
	return nil
}

// Abort discards every staged block without touching the target, for a
// client disconnect mid-transaction.
func (e *Engine) Abort() {
	e.blocks = nil
}

// Pending reports whether any block is staged.
func (e *Engine) Pending() bool {
	return len(e.blocks) > 0
}
