package armdbg

import (
	"testing"

	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

func newCM7Mock() *probe.Mock {
	m := probe.NewMock()
	m.DebugRegs[CTR] = 0b100 << 29
	m.DebugRegs[CLIDR] = 1 << 27 // LoUU = 1, single D-cache level
	// lineSize=32 (field=1), nways=4 (field=3), nsets=128 (field=127)
	m.DebugRegs[CCSIDR0] = 1 | (3 << 3) | (127 << 13)
	return m
}

func TestCacheTrackerDetectsCM7(t *testing.T) {
	m := newCM7Mock()
	ct := NewCacheTracker(m)
	if err := ct.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !ct.Present {
		t.Fatalf("Present = false, want true for CM7 CTR value")
	}
	if len(ct.dLevels) != 1 {
		t.Fatalf("len(dLevels) = %d, want 1", len(ct.dLevels))
	}
	lvl := ct.dLevels[0]
	if lvl.LineSize != 32 {
		t.Fatalf("LineSize = %d, want 32", lvl.LineSize)
	}
	if lvl.NWays != 4 {
		t.Fatalf("NWays = %d, want 4", lvl.NWays)
	}
	if lvl.NSets != 128 {
		t.Fatalf("NSets = %d, want 128", lvl.NSets)
	}
}

func TestCacheTrackerAbsentOnCM3(t *testing.T) {
	m := probe.NewMock()
	m.DebugRegs[CTR] = 0b001 << 29
	ct := NewCacheTracker(m)
	if err := ct.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if ct.Present {
		t.Fatalf("Present = true, want false for non-CM7 CTR value")
	}
}

func TestCacheTrackerMarkModifiedNoopWhenAbsent(t *testing.T) {
	m := probe.NewMock()
	m.DebugRegs[CTR] = 0b001 << 29
	ct := NewCacheTracker(m)
	if err := ct.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ct.MarkModified()
	if ct.Modified {
		t.Fatalf("Modified = true on a part without CM7 cache")
	}
}

func TestCacheTrackerSyncCleansAndInvalidates(t *testing.T) {
	m := newCM7Mock()
	ct := NewCacheTracker(m)
	if err := ct.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	m.DebugRegs[CCR] = CCRDCBit | CCRICBit

	ct.MarkModified()
	if !ct.Modified {
		t.Fatalf("Modified = false after MarkModified on CM7 part")
	}

	if err := ct.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if ct.Modified {
		t.Fatalf("Modified = true after Sync, want cleared")
	}
	if _, ok := m.DebugRegs[DCCSW]; !ok {
		t.Fatalf("DCCSW was never written during Sync")
	}
	if _, ok := m.DebugRegs[ICIALLU]; !ok {
		t.Fatalf("ICIALLU was never written during Sync")
	}
}

func TestCacheTrackerSyncNoopWhenNotModified(t *testing.T) {
	m := newCM7Mock()
	ct := NewCacheTracker(m)
	if err := ct.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	m.DebugRegs[CCR] = CCRDCBit | CCRICBit

	if err := ct.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, ok := m.DebugRegs[DCCSW]; ok {
		t.Fatalf("DCCSW written even though cache was never marked modified")
	}
}

func TestCacheTrackerSyncRespectsCCRBits(t *testing.T) {
	m := newCM7Mock()
	ct := NewCacheTracker(m)
	if err := ct.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	m.DebugRegs[CCR] = 0 // neither DC nor IC enabled

	ct.MarkModified()
	if err := ct.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, ok := m.DebugRegs[DCCSW]; ok {
		t.Fatalf("DCCSW written despite CCR.DC clear")
	}
	if _, ok := m.DebugRegs[ICIALLU]; ok {
		t.Fatalf("ICIALLU written despite CCR.IC clear")
	}
}
