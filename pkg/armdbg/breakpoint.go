package armdbg

import (
	"fmt"

	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

// Type bits for a breakpoint slot (spec §3).
const (
	TypeLow   = 1 << 0 // FPB rev1, low half-word
	TypeHigh  = 1 << 1 // FPB rev1, high half-word
	TypeRemap = 1 << 2 // FPB rev2, literal remap
)

const maxFPSlots = 15

type bpSlot struct {
	encodedAddr uint32
	typeBits    uint8
}

// BreakpointManager allocates and frees FPB hardware comparator slots,
// encoding addresses for FPB rev1 (half-word select) or rev2 (literal),
// per spec §4.3.
type BreakpointManager struct {
	p     probe.Facade
	rev   int // 1 or 2
	nFP   int
	slots [maxFPSlots]bpSlot
}

// NewBreakpointManager constructs a manager bound to p. Call Init once the
// session has connected to the target.
func NewBreakpointManager(p probe.Facade) *BreakpointManager {
	return &BreakpointManager{p: p}
}

// Init reads FP_CTRL to learn the comparator count and revision, unlocks
// FP_LAR on CM7 parts, clears every comparator, and enables the FPB.
func (m *BreakpointManager) Init(isCM7 bool) error {
	if isCM7 {
		if st := m.p.WriteDebug32(FPLAR, FPLARKey); st != probe.StatusOK {
			return fmt.Errorf("armdbg: failed to unlock FP_LAR: status %d", st)
		}
	}

	ctrl, st := m.p.ReadDebug32(FPCTRL)
	if st != probe.StatusOK {
		return fmt.Errorf("armdbg: failed to read FP_CTRL: status %d", st)
	}
	m.nFP = int((ctrl >> 4) & 0xF)
	if m.nFP > maxFPSlots {
		m.nFP = maxFPSlots
	}
	if (ctrl>>28)&1 == 0 {
		m.rev = 1
	} else {
		m.rev = 2
	}

	for i := range m.slots {
		m.slots[i] = bpSlot{}
	}
	for i := 0; i < m.nFP; i++ {
		if st := m.p.WriteDebug32(fpCompAddr(i), 0); st != probe.StatusOK {
			return fmt.Errorf("armdbg: failed to clear FP_COMP%d: status %d", i, st)
		}
	}

	if st := m.p.WriteDebug32(FPCTRL, 0x03); st != probe.StatusOK {
		return fmt.Errorf("armdbg: failed to enable FPB: status %d", st)
	}
	return nil
}

// Rev returns the detected FPB revision (1 or 2).
func (m *BreakpointManager) Rev() int { return m.rev }

// NFP returns the number of code comparators.
func (m *BreakpointManager) NFP() int { return m.nFP }

func (m *BreakpointManager) encode(addr uint32) (encoded uint32, typeBit uint8) {
	if m.rev == 2 {
		return addr, TypeRemap
	}
	encoded = addr & 0x1FFFFFFC
	if addr&2 == 0 {
		return encoded, TypeLow
	}
	return encoded, TypeHigh
}

func (m *BreakpointManager) writeComparator(i int) error {
	s := m.slots[i]
	var val uint32
	if s.typeBits != 0 {
		val = (uint32(s.typeBits&0x3) << 30) | s.encodedAddr | 1
	}
	if st := m.p.WriteDebug32(fpCompAddr(i), val); st != probe.StatusOK {
		return fmt.Errorf("armdbg: failed to write FP_COMP%d: status %d", i, st)
	}
	return nil
}

// Insert allocates (or shares, for rev1 half-word pairs) a comparator slot
// for addr. Fails if addr is odd or no free slot remains.
func (m *BreakpointManager) Insert(addr uint32) (int, error) {
	if addr&1 != 0 {
		return -1, fmt.Errorf("armdbg: breakpoint address %#x is odd", addr)
	}
	encoded, typeBit := m.encode(addr)

	for i := 0; i < m.nFP; i++ {
		if m.slots[i].typeBits != 0 && m.slots[i].encodedAddr == encoded {
			m.slots[i].typeBits |= typeBit
			if err := m.writeComparator(i); err != nil {
				return -1, err
			}
			return i, nil
		}
	}
	for i := 0; i < m.nFP; i++ {
		if m.slots[i].typeBits == 0 {
			m.slots[i] = bpSlot{encodedAddr: encoded, typeBits: typeBit}
			if err := m.writeComparator(i); err != nil {
				return -1, err
			}
			return i, nil
		}
	}
	return -1, fmt.Errorf("armdbg: no free FPB comparator for %#x", addr)
}

// Remove clears the type bit addr occupies; if the slot's remaining type
// bits are zero, the comparator register is written zero.
func (m *BreakpointManager) Remove(addr uint32) error {
	if addr&1 != 0 {
		return fmt.Errorf("armdbg: breakpoint address %#x is odd", addr)
	}
	encoded, typeBit := m.encode(addr)

	for i := 0; i < m.nFP; i++ {
		if m.slots[i].typeBits&typeBit != 0 && m.slots[i].encodedAddr == encoded {
			m.slots[i].typeBits &^= typeBit
			return m.writeComparator(i)
		}
	}
	return nil
}

// Contains reports whether any slot's encoded address matches addr.
func (m *BreakpointManager) Contains(addr uint32) bool {
	encoded, _ := m.encode(addr)
	for i := 0; i < m.nFP; i++ {
		if m.slots[i].typeBits != 0 && m.slots[i].encodedAddr == encoded {
			return true
		}
	}
	return false
}
