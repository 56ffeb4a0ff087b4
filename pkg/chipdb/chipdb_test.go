package chipdb

import (
	"fmt"
	"strings"
	"testing"
)

func TestLookupKnownChip(t *testing.T) {
	g, ok := Lookup(0x10006451)
	if !ok {
		t.Fatalf("Lookup(0x10006451) not found")
	}
	if g.Name != "STM32F4xx" {
		t.Fatalf("Name = %q, want STM32F4xx", g.Name)
	}
	if g.FlashSize != 1024*1024 {
		t.Fatalf("FlashSize = %d, want %d", g.FlashSize, 1024*1024)
	}
}

func TestLookupUnknownChip(t *testing.T) {
	if _, ok := Lookup(0xDEADBEEF); ok {
		t.Fatalf("Lookup(0xDEADBEEF) unexpectedly found")
	}
}

func TestMemoryMapXMLSubstitutesGeometry(t *testing.T) {
	g, ok := Lookup(0x10016463)
	if !ok {
		t.Fatalf("Lookup failed")
	}
	xml := MemoryMapXML(g)

	wantFlash := fmt.Sprintf(`start="0x%x" length="0x%x"`, g.FlashBase, g.FlashSize)
	if !strings.Contains(xml, wantFlash) {
		t.Fatalf("memory-map XML missing flash region %q:\n%s", wantFlash, xml)
	}
	wantBlock := fmt.Sprintf(`blocksize">0x%x<`, g.PageSize)
	if !strings.Contains(xml, wantBlock) {
		t.Fatalf("memory-map XML missing blocksize %q:\n%s", wantBlock, xml)
	}
	wantRAM := fmt.Sprintf(`start="0x%x" length="0x%x"/>`, g.SRAMBase, g.SRAMSize)
	if !strings.Contains(xml, wantRAM) {
		t.Fatalf("memory-map XML missing ram region %q:\n%s", wantRAM, xml)
	}
	if !strings.Contains(xml, `<memory-map>`) || !strings.Contains(xml, `</memory-map>`) {
		t.Fatalf("memory-map XML malformed:\n%s", xml)
	}
}

func TestPageSizeAtIsUniform(t *testing.T) {
	g, _ := Lookup(0x10006451)
	if g.PageSizeAt(g.FlashBase) != g.PageSize {
		t.Fatalf("PageSizeAt(base) = %d, want %d", g.PageSizeAt(g.FlashBase), g.PageSize)
	}
	if g.PageSizeAt(g.FlashBase+g.FlashSize-4) != g.PageSize {
		t.Fatalf("PageSizeAt(end) differs from uniform PageSize")
	}
}
