// Package chipdb maps an ST-Link-reported chip_id to the Cortex-M part's
// memory geometry and renders the qXfer:memory-map:read XML GDB uses to
// learn flash/RAM layout without a user-supplied linker script. See spec
// §6's "Chip database".
package chipdb

import "fmt"

// Geometry is the per-part constants needed to answer GDB's memory-map
// query and to drive the Flash Staging Engine.
type Geometry struct {
	Name string

	FlashBase uint32
	FlashSize uint32
	PageSize  uint32

	SRAMBase uint32
	SRAMSize uint32

	SysBase uint32
	SysSize uint32
}

// table is keyed by the DBGMCU_IDCODE-derived chip_id ST-Link probes report.
// Sizes here are representative STM32 Cortex-M parts; a real deployment
// would grow this table per supported family.
var table = map[uint32]Geometry{
	0x10006444: {
		Name:      "STM32F03x",
		FlashBase: 0x08000000, FlashSize: 16 * 1024, PageSize: 1024,
		SRAMBase: 0x20000000, SRAMSize: 4 * 1024,
		SysBase: 0x1FFFEC00, SysSize: 3 * 1024,
	},
	0x10016448: {
		Name:      "STM32F303",
		FlashBase: 0x08000000, FlashSize: 256 * 1024, PageSize: 2048,
		SRAMBase: 0x20000000, SRAMSize: 40 * 1024,
		SysBase: 0x1FFFD800, SysSize: 8 * 1024,
	},
	0x10006451: {
		Name:      "STM32F4xx",
		FlashBase: 0x08000000, FlashSize: 1024 * 1024, PageSize: 128 * 1024,
		SRAMBase: 0x20000000, SRAMSize: 192 * 1024,
		SysBase: 0x1FFF0000, SysSize: 30 * 1024,
	},
	0x10016463: {
		Name:      "STM32F746",
		FlashBase: 0x08000000, FlashSize: 1024 * 1024, PageSize: 128 * 1024,
		SRAMBase: 0x20000000, SRAMSize: 320 * 1024,
		SysBase: 0x1FF00000, SysSize: 30 * 1024,
	},
	0x10036483: {
		Name:      "STM32H743",
		FlashBase: 0x08000000, FlashSize: 2 * 1024 * 1024, PageSize: 128 * 1024,
		SRAMBase: 0x20000000, SRAMSize: 128 * 1024,
		SysBase: 0x1FF00000, SysSize: 32 * 1024,
	},
}

// Lookup returns the Geometry for chipID and whether it is known.
func Lookup(chipID uint32) (Geometry, bool) {
	g, ok := table[chipID]
	return g, ok
}

// memoryMapTemplate is adapted from the single flash+ram memory-map XML a
// bridging GDB stub serves; this one adds the system memory (bootloader
// ROM) region STM32 parts expose, for seven integer substitutions in all.
const memoryMapTemplate = `<?xml version="1.0"?>
<!DOCTYPE memory-map PUBLIC "+//IDN gnu.org//DTD GDB Memory Map V1.0//EN" "http://sourceware.org/gdb/gdb-memory-map.dtd">
<memory-map>
<memory type="flash" start="0x%x" length="0x%x">
<property name="blocksize">0x%x</property>
</memory>
<memory type="ram" start="0x%x" length="0x%x"/>
<memory type="rom" start="0x%x" length="0x%x"/>
</memory-map>
`

// MemoryMapXML renders the memory-map XML for g.
func MemoryMapXML(g Geometry) string {
	return fmt.Sprintf(memoryMapTemplate,
		g.FlashBase, g.FlashSize, g.PageSize,
		g.SRAMBase, g.SRAMSize,
		g.SysBase, g.SysSize)
}

// PageSizeAt returns g's page size at addr. Parts with uniform pages (the
// only kind this table currently models) ignore addr.
func (g Geometry) PageSizeAt(addr uint32) uint32 {
	return g.PageSize
}
