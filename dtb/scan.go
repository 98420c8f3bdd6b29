package dtb

import (
	"bytes"
)

// Magic is the 4-byte header of a flattened device tree blob (big endian
// 0xd00dfeed). Every occurrence marks the start of an embedded blob.
var Magic = []byte{0xD0, 0x0D, 0xFE, 0xED}

// Find every offset where the magic occurs. The search restarts one byte
// after each match rather than past it, so pathological data can produce
// offsets closer together than the marker length. Downstream splitting and
// naming depend on this exact sequence, don't "optimize" it.
func ScanMagic(data []byte) []int {
	offsets := make([]int, 0)
	pos := 0
	for {
		next := bytes.Index(data[pos:], Magic)
		if next < 0 {
			break
		}
		offsets = append(offsets, pos+next)
		pos += next + 1
	}
	return offsets
}

// A half-open byte range [Start, End) into the source buffer, one embedded
// blob. End is the next blob's start, or the buffer length for the last one.
type Region struct {
	Start int
	End   int
}

func (r Region) Len() int {
	return r.End - r.Start
}

// The region's bytes within the buffer it was scanned from
func (r Region) Bytes(data []byte) []byte {
	return data[r.Start:r.End]
}

// Turn the ascending offset sequence into contiguous regions covering
// everything from the first offset to the end of the buffer. Bytes before
// the first offset are not part of any region. Adjacent offsets produce
// tiny regions; those are passed through, not filtered.
func SplitRegions(offsets []int, length int) []Region {
	regions := make([]Region, len(offsets))
	for i, start := range offsets {
		end := length
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		regions[i] = Region{Start: start, End: end}
	}
	return regions
}
