package armdbg

import (
	"fmt"

	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

// Level describes one cache level's set/way geometry, derived from
// CLIDR/CCSIDR at connect time (spec §4.5).
type Level struct {
	NSets, NWays, Log2NWays, Width, LineSize uint32
}

// CacheTracker implements the Cache Coherence Tracker (C5): on CM7 parts it
// records host-initiated memory writes and, before every resume, cleans
// D-cache by set/way and invalidates I-cache.
type CacheTracker struct {
	p        probe.Facade
	Present  bool
	louu     int
	dLevels  []Level
	Modified bool
}

// NewCacheTracker constructs a tracker bound to p.
func NewCacheTracker(p probe.Facade) *CacheTracker {
	return &CacheTracker{p: p}
}

// Init detects CM7 cache presence via CTR[31:29]==0b100 and, if present,
// walks CLIDR/CCSIDR up to LoUU to precompute each D-cache level's
// geometry.
func (c *CacheTracker) Init() error {
	ctr, st := c.p.ReadDebug32(CTR)
	if st != probe.StatusOK {
		return fmt.Errorf("armdbg: failed to read CTR: status %d", st)
	}
	c.Present = (ctr>>29)&0x7 == 0b100
	c.Modified = false
	if !c.Present {
		return nil
	}

	clidr, st := c.p.ReadDebug32(CLIDR)
	if st != probe.StatusOK {
		return fmt.Errorf("armdbg: failed to read CLIDR: status %d", st)
	}
	c.louu = int((clidr >> 27) & 0x7)

	c.dLevels = make([]Level, c.louu)
	for level := 0; level < c.louu; level++ {
		if st := c.p.WriteDebug32(CSSELR, uint32(level)<<1); st != probe.StatusOK {
			return fmt.Errorf("armdbg: failed to select cache level %d: status %d", level, st)
		}
		ccsidr, st := c.p.ReadDebug32(CCSIDR0)
		if st != probe.StatusOK {
			return fmt.Errorf("armdbg: failed to read CCSIDR for level %d: status %d", level, st)
		}
		lineSize := uint32(1) << ((ccsidr & 0x7) + 4)
		nways := ((ccsidr >> 3) & 0x3FF) + 1
		nsets := ((ccsidr >> 13) & 0x7FFF) + 1
		log2nways := uint32(log2Ceil(nways))
		width := 4 + uint32(log2Ceil(lineSize)) + uint32(log2Ceil(nsets))
		c.dLevels[level] = Level{NSets: nsets, NWays: nways, Log2NWays: log2nways, Width: width, LineSize: lineSize}
	}
	return nil
}

// MarkModified records a host-initiated memory write (spec §4.5: "on any
// host-initiated memory write, record cache_modified = true"). On a part
// without a cache (Present false) it does nothing.
func (c *CacheTracker) MarkModified() {
	if c.Present {
		c.Modified = true
	}
}

// Sync must run before any transition from host-visible memory mutation to
// target execution (spec §5's ordering invariant). It cleans D-cache by
// set/way from LoUU-1 down to 0 if CCR.DC is set, invalidates I-cache if
// CCR.IC is set, then clears Modified.
func (c *CacheTracker) Sync() error {
	if !c.Present || !c.Modified {
		c.Modified = false
		return nil
	}

	ccr, st := c.p.ReadDebug32(CCR)
	if st != probe.StatusOK {
		return fmt.Errorf("armdbg: failed to read CCR: status %d", st)
	}

	if ccr&CCRDCBit != 0 {
		for level := c.louu - 1; level >= 0; level-- {
			lvl := c.dLevels[level]
			limit := uint32(1) << lvl.Width
			for addr := uint32(level) << 1; addr < limit; addr += lvl.LineSize {
				for w := uint32(0); w < lvl.NWays; w++ {
					val := addr | (w << (32 - lvl.Log2NWays))
					if st := c.p.WriteDebug32(DCCSW, val); st != probe.StatusOK {
						return fmt.Errorf("armdbg: DCCSW write failed: status %d", st)
					}
				}
			}
		}
	}

	if ccr&CCRICBit != 0 {
		if st := c.p.WriteDebug32(ICIALLU, 0); st != probe.StatusOK {
			return fmt.Errorf("armdbg: ICIALLU write failed: status %d", st)
		}
	}

	c.Modified = false
	return nil
}
