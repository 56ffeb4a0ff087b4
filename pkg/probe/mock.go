package probe

import "fmt"

// Mock is an in-memory stand-in for a real probe, modeling just enough of
// an ARM Cortex-M part (registers, RAM, flash, and the debug-register file)
// to exercise every other package's tests without hardware.
type Mock struct {
	Regs Regs

	RAMBase uint32
	RAM     []byte

	FlashBase    uint32
	Flash        []byte
	PageSizeFunc func(addr uint32) uint32
	Erased       byte

	// DebugRegs models the ARMv7-M/v7E-M debug-register address space
	// (FP_CTRL, FP_COMPn, DWT_COMPn/MASKn/FUNCTIONn, DEMCR, CTR, CLIDR,
	// CCSIDRn, CCR, FP_LAR, ...).
	DebugRegs map[uint32]uint32

	halted    bool
	connected bool
	closed    bool

	ChipIDVal  uint32
	CoreIDVal  uint32
	SRAMSizeV  uint32
	SysBaseV   uint32
	SysSizeV   uint32

	// LastEraseAddrs records every address passed to ErasePage, in order,
	// so flash-staging tests can assert commit ordering.
	LastEraseAddrs []uint32
	loaderActive   bool
}

// NewMock returns a Mock with a 64KB RAM window at 0x20000000 and a 128KB
// flash at 0x08000000 using a 1KB page size, pre-filled with the erased
// pattern 0xFF — typical small Cortex-M geometry.
func NewMock() *Mock {
	m := &Mock{
		RAMBase:   0x20000000,
		RAM:       make([]byte, 64*1024),
		FlashBase: 0x08000000,
		Flash:     make([]byte, 128*1024),
		Erased:    0xFF,
		DebugRegs: make(map[uint32]uint32),
		SRAMSizeV: 64 * 1024,
		SysBaseV:  0x1FFF0000,
		SysSizeV:  0x8000,
		ChipIDVal: 0x10006444,
		CoreIDVal: 0x2BA01477,
	}
	m.PageSizeFunc = func(addr uint32) uint32 { return 1024 }
	for i := range m.Flash {
		m.Flash[i] = m.Erased
	}
	return m
}

func (m *Mock) Connect(mode ConnectMode) Status {
	m.connected = true
	return StatusOK
}

func (m *Mock) Close() Status {
	m.closed = true
	m.connected = false
	return StatusOK
}

func (m *Mock) ReadDebug32(addr uint32) (uint32, Status) {
	return m.DebugRegs[addr], StatusOK
}

func (m *Mock) WriteDebug32(addr uint32, v uint32) Status {
	m.DebugRegs[addr] = v
	return StatusOK
}

func (m *Mock) inRAM(addr, length uint32) bool {
	return addr >= m.RAMBase && addr+length <= m.RAMBase+uint32(len(m.RAM))
}

func (m *Mock) inFlash(addr, length uint32) bool {
	return addr >= m.FlashBase && addr+length <= m.FlashBase+uint32(len(m.Flash))
}

func (m *Mock) ReadMem32(addr uint32, length uint32) ([]byte, Status) {
	switch {
	case m.inRAM(addr, length):
		off := addr - m.RAMBase
		out := make([]byte, length)
		copy(out, m.RAM[off:off+length])
		return out, StatusOK
	case m.inFlash(addr, length):
		off := addr - m.FlashBase
		out := make([]byte, length)
		copy(out, m.Flash[off:off+length])
		return out, StatusOK
	default:
		return nil, Status(-1)
	}
}

func (m *Mock) writeBytes(addr uint32, buf []byte) Status {
	length := uint32(len(buf))
	switch {
	case m.inRAM(addr, length):
		off := addr - m.RAMBase
		copy(m.RAM[off:], buf)
		return StatusOK
	case m.inFlash(addr, length):
		off := addr - m.FlashBase
		copy(m.Flash[off:], buf)
		return StatusOK
	default:
		return Status(-1)
	}
}

func (m *Mock) WriteMem32(addr uint32, buf []byte) Status { return m.writeBytes(addr, buf) }
func (m *Mock) WriteMem8(addr uint32, buf []byte) Status  { return m.writeBytes(addr, buf) }

func (m *Mock) ReadAllRegs() (Regs, Status) { return m.Regs, StatusOK }

func (m *Mock) ReadReg(id int) (uint32, Status) {
	if id >= 0 && id <= 15 {
		return m.Regs.R[id], StatusOK
	}
	switch id {
	case 0x19:
		return m.Regs.XPSR, StatusOK
	case 0x1A:
		return m.Regs.MSP, StatusOK
	case 0x1B:
		return m.Regs.PSP, StatusOK
	case 0x1C:
		return uint32(m.Regs.Control), StatusOK
	case 0x1D:
		return uint32(m.Regs.FaultMask), StatusOK
	case 0x1E:
		return uint32(m.Regs.BasePri), StatusOK
	case 0x1F:
		return uint32(m.Regs.PriMask), StatusOK
	case 0x40:
		return m.Regs.FPSCR, StatusOK
	default:
		if id >= 0x20 && id <= 0x3F {
			return m.Regs.FP[id-0x20], StatusOK
		}
		return 0, Status(-1)
	}
}

func (m *Mock) WriteReg(id int, v uint32) Status {
	if id >= 0 && id <= 15 {
		m.Regs.R[id] = v
		return StatusOK
	}
	switch id {
	case 0x19:
		m.Regs.XPSR = v
	case 0x1A:
		m.Regs.MSP = v
	case 0x1B:
		m.Regs.PSP = v
	case 0x1C:
		m.Regs.Control = uint8(v)
	case 0x1D:
		m.Regs.FaultMask = uint8(v)
	case 0x1E:
		m.Regs.BasePri = uint8(v)
	case 0x1F:
		m.Regs.PriMask = uint8(v)
	case 0x40:
		m.Regs.FPSCR = v
	default:
		if id >= 0x20 && id <= 0x3F {
			m.Regs.FP[id-0x20] = v
			return StatusOK
		}
		return Status(-1)
	}
	return StatusOK
}

// ReadUnsupportedReg/WriteUnsupportedReg model registers GDB may ask about
// that this target doesn't implement (e.g. a profile-specific MSPLIM).
func (m *Mock) ReadUnsupportedReg(id int) (uint32, Status)    { return 0, Status(-1) }
func (m *Mock) WriteUnsupportedReg(id int, v uint32) Status   { return Status(-1) }

func (m *Mock) Halt() Status { m.halted = true; return StatusOK }
func (m *Mock) Step() Status {
	m.Regs.R[15] += 2
	m.halted = true
	return StatusOK
}
func (m *Mock) Run() Status { m.halted = false; return StatusOK }

func (m *Mock) TargetHalted() (bool, Status) { return m.halted, StatusOK }

func (m *Mock) Reset(mode ResetMode) Status {
	if mode == ResetSoftHalt {
		m.halted = true
	}
	return StatusOK
}

func (m *Mock) ErasePage(addr uint32) Status {
	if !m.inFlash(addr, 1) {
		return Status(-1)
	}
	pgsz := m.PageSizeFunc(addr)
	off := addr - m.FlashBase
	end := off + pgsz
	if end > uint32(len(m.Flash)) {
		end = uint32(len(m.Flash))
	}
	for i := off; i < end; i++ {
		m.Flash[i] = m.Erased
	}
	m.LastEraseAddrs = append(m.LastEraseAddrs, addr)
	return StatusOK
}

func (m *Mock) FlashLoaderStart() Status {
	m.loaderActive = true
	return StatusOK
}

func (m *Mock) FlashLoaderWrite(addr uint32, data []byte) Status {
	if !m.loaderActive {
		return Status(-1)
	}
	return m.writeBytes(addr, data)
}

func (m *Mock) FlashLoaderStop() Status {
	m.loaderActive = false
	return StatusOK
}

func (m *Mock) ExitDebugMode() Status { return StatusOK }

func (m *Mock) ChipID() uint32 { return m.ChipIDVal }
func (m *Mock) CoreID() uint32 { return m.CoreIDVal }
func (m *Mock) FlashSize() uint32 { return uint32(len(m.Flash)) }
func (m *Mock) FlashPageSize(addr uint32) uint32 { return m.PageSizeFunc(addr) }
func (m *Mock) SRAMSize() uint32 { return m.SRAMSizeV }
func (m *Mock) SysBase() uint32 { return m.SysBaseV }
func (m *Mock) SysSize() uint32 { return m.SysSizeV }
func (m *Mock) ErasedPattern() byte { return m.Erased }

var _ Facade = (*Mock)(nil)

func (m *Mock) String() string {
	return fmt.Sprintf("Mock(chip=%#x flash=%dKB sram=%dKB)", m.ChipIDVal, len(m.Flash)/1024, m.SRAMSizeV/1024)
}
