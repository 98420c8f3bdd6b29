package dtb

import (
	"bytes"
	"testing"
)

func TestScanMagic_None(t *testing.T) {
	offsets := ScanMagic([]byte("there is nothing interesting in here"))
	if len(offsets) != 0 {
		t.Fatalf("Expected no offsets, got %d", len(offsets))
	}
}

func TestScanMagic_Empty(t *testing.T) {
	offsets := ScanMagic(nil)
	if len(offsets) != 0 {
		t.Fatalf("Expected no offsets on empty buffer, got %d", len(offsets))
	}
}

func TestScanMagic_Single(t *testing.T) {
	data := append([]byte{}, Magic...)
	data = append(data, 1, 2, 3)
	offsets := ScanMagic(data)
	if len(offsets) != 1 {
		t.Fatalf("Expected 1 offset, got %d", len(offsets))
	}
	if offsets[0] != 0 {
		t.Fatalf("Expected offset 0, got %d", offsets[0])
	}
}

func TestScanMagic_ManyWithPrefix(t *testing.T) {
	data := []byte("junk before the first blob")
	first := len(data)
	data = append(data, Magic...)
	data = append(data, []byte("payload A")...)
	second := len(data)
	data = append(data, Magic...)
	data = append(data, []byte("payload B")...)
	offsets := ScanMagic(data)
	if len(offsets) != 2 {
		t.Fatalf("Expected 2 offsets, got %d", len(offsets))
	}
	if offsets[0] != first || offsets[1] != second {
		t.Fatalf("Expected offsets %d,%d, got %v", first, second, offsets)
	}
}

func TestScanMagic_Adjacent(t *testing.T) {
	// Back to back markers must both be found, even though the second one
	// starts right where the first one's header ends
	data := append([]byte{}, Magic...)
	data = append(data, Magic...)
	offsets := ScanMagic(data)
	if len(offsets) != 2 {
		t.Fatalf("Expected 2 offsets, got %d", len(offsets))
	}
	if offsets[0] != 0 || offsets[1] != len(Magic) {
		t.Fatalf("Expected offsets 0,%d, got %v", len(Magic), offsets)
	}
}

func TestSplitRegions_Empty(t *testing.T) {
	regions := SplitRegions(nil, 100)
	if len(regions) != 0 {
		t.Fatalf("Expected no regions, got %d", len(regions))
	}
}

func TestSplitRegions_Single(t *testing.T) {
	regions := SplitRegions([]int{10}, 50)
	if len(regions) != 1 {
		t.Fatalf("Expected 1 region, got %d", len(regions))
	}
	if regions[0].Start != 10 || regions[0].End != 50 {
		t.Fatalf("Expected region [10,50), got [%d,%d)", regions[0].Start, regions[0].End)
	}
}

func TestSplitRegions_Partition(t *testing.T) {
	data := []byte("skip this!")
	for i := 0; i < 5; i++ {
		data = append(data, Magic...)
		data = append(data, bytes.Repeat([]byte{byte(i)}, i*3)...)
	}
	offsets := ScanMagic(data)
	regions := SplitRegions(offsets, len(data))
	if len(regions) != len(offsets) {
		t.Fatalf("Expected %d regions, got %d", len(offsets), len(regions))
	}
	// Regions must be contiguous and rebuild everything from the first marker
	rebuilt := make([]byte, 0, len(data))
	for i, r := range regions {
		if i > 0 && r.Start != regions[i-1].End {
			t.Fatalf("Region %d not contiguous: starts at %d, previous ends at %d",
				i, r.Start, regions[i-1].End)
		}
		rebuilt = append(rebuilt, r.Bytes(data)...)
	}
	if !bytes.Equal(rebuilt, data[offsets[0]:]) {
		t.Fatalf("Concatenated regions don't reproduce buffer from first marker")
	}
}

func TestSplitRegions_AdjacentOffsets(t *testing.T) {
	// Offsets one byte apart are passed through as a 1-byte region
	regions := SplitRegions([]int{4, 5, 20}, 30)
	if regions[0].Len() != 1 {
		t.Fatalf("Expected 1-byte region, got %d", regions[0].Len())
	}
	if regions[1].Len() != 15 || regions[2].Len() != 10 {
		t.Fatalf("Unexpected region lengths: %d, %d", regions[1].Len(), regions[2].Len())
	}
}
