// Package armdbg implements the ARMv7-M hardware breakpoint (FPB),
// watchpoint (DWT), and CM7 cache-coherence logic the session engine needs
// around every resume. See spec §4.3-§4.5.
package armdbg

// ARMv7-M debug-register addresses used by the Breakpoint and Watchpoint
// managers and the Cache Coherence Tracker.
const (
	FPCTRL  = 0xE0002000
	FPCOMP0 = 0xE0002008 // FP_COMP0..FP_COMP14, stride 4

	FPLAR    = 0xE0002FB0 // CM7 lock-access register
	FPLARKey = 0xC5ACCE55

	DWTCTRL     = 0xE0001000
	DWTCOMP0    = 0xE0001020
	DWTMASK0    = 0xE0001024
	DWTFUNCTION0 = 0xE0001028
	dwtStride   = 0x10

	DEMCR   = 0xE000EDFC
	TRCENA  = 1 << 24

	CTR   = 0xE000ED7C
	CLIDR = 0xE000ED78
	CCSIDR0 = 0xE000ED80 // selected via CSSELR
	CSSELR  = 0xE000ED84
	CCR     = 0xE000ED14

	CCRDCBit = 1 << 16
	CCRICBit = 1 << 17

	ICIALLU = 0xE000EF50
	DCCSW   = 0xE000EF6C
)

// Register index map GDB uses in 'p'/'P' packets (spec §4.8).
const (
	RegPC        = 15
	RegXPSR      = 0x19
	RegMSP       = 0x1A
	RegPSP       = 0x1B
	RegControl   = 0x1C
	RegFaultMask = 0x1D
	RegBasePri   = 0x1E
	RegPriMask   = 0x1F
	RegFP0       = 0x20 // S0..S31 occupy 0x20..0x3F
	RegFPSCR     = 0x40
)

func fpCompAddr(slot int) uint32  { return FPCOMP0 + uint32(slot)*4 }
func dwtCompAddr(slot int) uint32 { return DWTCOMP0 + uint32(slot)*dwtStride }
func dwtMaskAddr(slot int) uint32 { return DWTMASK0 + uint32(slot)*dwtStride }
func dwtFuncAddr(slot int) uint32 { return DWTFUNCTION0 + uint32(slot)*dwtStride }
