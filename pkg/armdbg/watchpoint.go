package armdbg

import (
	"fmt"

	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

// Fun is the DWT_FUNCTION match kind for a watchpoint slot.
type Fun uint8

const (
	Disabled Fun = 0
	ReadFn   Fun = 5
	WriteFn  Fun = 6
	AccessFn Fun = 7
)

const maxDWTSlots = 4

type wpSlot struct {
	addr uint32
	mask uint8
	fun  Fun
}

// WatchpointManager allocates and frees DWT comparator slots, per spec
// §4.4.
type WatchpointManager struct {
	p     probe.Facade
	slots [maxDWTSlots]wpSlot
}

// NewWatchpointManager constructs a manager bound to p.
func NewWatchpointManager(p probe.Facade) *WatchpointManager {
	return &WatchpointManager{p: p}
}

// Init sets DEMCR.TRCENA, clears every DWT function register, and marks
// all slots Disabled.
func (m *WatchpointManager) Init() error {
	demcr, st := m.p.ReadDebug32(DEMCR)
	if st != probe.StatusOK {
		return fmt.Errorf("armdbg: failed to read DEMCR: status %d", st)
	}
	if st := m.p.WriteDebug32(DEMCR, demcr|TRCENA); st != probe.StatusOK {
		return fmt.Errorf("armdbg: failed to set DEMCR.TRCENA: status %d", st)
	}
	for i := 0; i < maxDWTSlots; i++ {
		m.slots[i] = wpSlot{}
		if st := m.p.WriteDebug32(dwtFuncAddr(i), 0); st != probe.StatusOK {
			return fmt.Errorf("armdbg: failed to clear DWT_FUNCTION%d: status %d", i, st)
		}
	}
	return nil
}

// log2Ceil returns the smallest m such that 1<<m >= n (spec §4.4's mask
// computation), with n==0 treated as n==1.
func log2Ceil(n uint32) int {
	if n <= 1 {
		return 0
	}
	m := 0
	for uint32(1)<<uint(m) < n {
		m++
	}
	return m
}

// Add allocates the first Disabled slot for a watchpoint matching fun over
// [addr, addr+length). Fails if the computed mask is >= 16 (spec §4.4).
func (m *WatchpointManager) Add(fun Fun, addr uint32, length uint32) (int, error) {
	mask := log2Ceil(length)
	if mask >= 16 {
		return -1, fmt.Errorf("armdbg: watchpoint length %d too large (mask %d)", length, mask)
	}

	for i := 0; i < maxDWTSlots; i++ {
		if m.slots[i].fun == Disabled {
			if st := m.p.WriteDebug32(dwtCompAddr(i), addr); st != probe.StatusOK {
				return -1, fmt.Errorf("armdbg: failed to write DWT_COMP%d: status %d", i, st)
			}
			if st := m.p.WriteDebug32(dwtMaskAddr(i), uint32(mask)); st != probe.StatusOK {
				return -1, fmt.Errorf("armdbg: failed to write DWT_MASK%d: status %d", i, st)
			}
			if st := m.p.WriteDebug32(dwtFuncAddr(i), uint32(fun)); st != probe.StatusOK {
				return -1, fmt.Errorf("armdbg: failed to write DWT_FUNCTION%d: status %d", i, st)
			}
			// Read back once to clear the matched-condition bit the
			// hardware sets on a function-register write.
			if _, st := m.p.ReadDebug32(dwtFuncAddr(i)); st != probe.StatusOK {
				return -1, fmt.Errorf("armdbg: failed to read back DWT_FUNCTION%d: status %d", i, st)
			}
			m.slots[i] = wpSlot{addr: addr, mask: uint8(mask), fun: fun}
			return i, nil
		}
	}
	return -1, fmt.Errorf("armdbg: no free DWT comparator for %#x", addr)
}

// Remove disables the enabled slot whose address equals addr.
func (m *WatchpointManager) Remove(addr uint32) error {
	for i := 0; i < maxDWTSlots; i++ {
		if m.slots[i].fun != Disabled && m.slots[i].addr == addr {
			m.slots[i] = wpSlot{}
			if st := m.p.WriteDebug32(dwtFuncAddr(i), 0); st != probe.StatusOK {
				return fmt.Errorf("armdbg: failed to clear DWT_FUNCTION%d: status %d", i, st)
			}
			return nil
		}
	}
	return nil
}

// Contains reports whether addr has an enabled watchpoint.
func (m *WatchpointManager) Contains(addr uint32) bool {
	for i := 0; i < maxDWTSlots; i++ {
		if m.slots[i].fun != Disabled && m.slots[i].addr == addr {
			return true
		}
	}
	return false
}
