package fonts

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	os2Version      = 4
	os2SizeV4       = 96
	fsSelectRegular = 0x0040

	defaultWeightClass = 400
	defaultWidthClass  = 5
	fallbackAvgWidth   = 500
)

// EnsureOS2 synthesizes an OS/2 table when the font lacks one. The metrics
// are derived from tables every usable font carries: average advance from
// hmtx, vertical metrics from hhea, geometry ratios from head.unitsPerEm, and
// character coverage from the union of all cmap subtables. Fonts that already
// carry OS/2 are left untouched.
func EnsureOS2(f *Font, vendor string) error {
	if f.HasTable("OS/2") {
		return nil
	}

	upm, err := unitsPerEm(f)
	if err != nil {
		return err
	}
	ascent, descent, lineGap, err := hheaMetrics(f)
	if err != nil {
		return err
	}
	avg := averageAdvanceWidth(f)
	first, last := charIndexRange(f)

	os2 := make([]byte, os2SizeV4)
	w := os2Writer{buf: os2}
	w.u16(os2Version)
	w.i16(avg)
	w.u16(defaultWeightClass)
	w.u16(defaultWidthClass)
	w.u16(0) // fsType: installable
	w.i16(scale(upm, 0.65))
	w.i16(scale(upm, 0.60))
	w.i16(0)
	w.i16(scale(upm, 0.075))
	w.i16(scale(upm, 0.65))
	w.i16(scale(upm, 0.60))
	w.i16(0)
	w.i16(scale(upm, 0.35))
	w.i16(maxI16(1, scale(upm, 0.05)))
	w.i16(scale(upm, 0.3))
	w.i16(0)          // sFamilyClass
	w.skip(10)        // panose: unclassified
	w.skip(16)        // ulUnicodeRange1..4
	w.vendor(vendor)  // achVendID
	w.u16(fsSelectRegular)
	w.u16(first)
	w.u16(last)
	w.i16(ascent)
	w.i16(descent)
	w.i16(lineGap)
	w.u16(uint16(maxI16(ascent, 0)))
	w.u16(uint16(maxI16(-descent, 0)))
	w.skip(8) // ulCodePageRange1..2
	w.i16(scale(upm, 0.5))
	w.i16(scale(upm, 0.7))
	w.u16(0)  // usDefaultChar
	w.u16(32) // usBreakChar: space
	w.u16(1)  // usMaxContext

	f.SetTable("OS/2", os2)
	return nil
}

type os2Writer struct {
	buf []byte
	pos int
}

func (w *os2Writer) u16(v uint16) {
	binary.BigEndian.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
}

func (w *os2Writer) i16(v int16) { w.u16(uint16(v)) }

func (w *os2Writer) skip(n int) { w.pos += n }

func (w *os2Writer) vendor(v string) {
	tag := []byte("    ")
	copy(tag, v)
	copy(w.buf[w.pos:], tag[:4])
	w.pos += 4
}

func scale(upm uint16, ratio float64) int16 {
	return int16(float64(upm) * ratio)
}

func maxI16(a, b int16) int16 {
	if a > b {
		return a
	}
	return b
}

func unitsPerEm(f *Font) (uint16, error) {
	head := f.Table("head")
	if len(head) < 20 {
		return 0, fmt.Errorf("os2: head table missing or truncated")
	}
	return binary.BigEndian.Uint16(head[18:20]), nil
}

func hheaMetrics(f *Font) (ascent, descent, lineGap int16, err error) {
	hhea := f.Table("hhea")
	if len(hhea) < 36 {
		return 0, 0, 0, fmt.Errorf("os2: hhea table missing or truncated")
	}
	ascent = int16(binary.BigEndian.Uint16(hhea[4:6]))
	descent = int16(binary.BigEndian.Uint16(hhea[6:8]))
	lineGap = int16(binary.BigEndian.Uint16(hhea[8:10]))
	return ascent, descent, lineGap, nil
}

// averageAdvanceWidth is the rounded mean advance over all glyphs. Glyphs
// past hhea.numberOfHMetrics repeat the last explicit advance.
func averageAdvanceWidth(f *Font) int16 {
	hhea := f.Table("hhea")
	hmtx := f.Table("hmtx")
	maxp := f.Table("maxp")
	if len(hhea) < 36 || hmtx == nil || len(maxp) < 6 {
		return fallbackAvgWidth
	}
	numH := int(binary.BigEndian.Uint16(hhea[34:36]))
	numGlyphs := int(binary.BigEndian.Uint16(maxp[4:6]))
	if numH == 0 || numGlyphs == 0 || len(hmtx) < numH*4 {
		return fallbackAvgWidth
	}
	var sum uint64
	var lastAdv uint16
	for i := 0; i < numH; i++ {
		lastAdv = binary.BigEndian.Uint16(hmtx[i*4 : i*4+2])
		sum += uint64(lastAdv)
	}
	if numGlyphs > numH {
		sum += uint64(lastAdv) * uint64(numGlyphs-numH)
	}
	return int16(math.Round(float64(sum) / float64(numGlyphs)))
}

// charIndexRange returns the min and max codepoint mapped by any cmap
// subtable, clamped to the uint16 fields of OS/2. A font with no usable cmap
// reports (0, 0).
func charIndexRange(f *Font) (first, last uint16) {
	lo, hi := uint32(math.MaxUint32), uint32(0)
	found := false
	visit := func(cp uint32) {
		found = true
		if cp < lo {
			lo = cp
		}
		if cp > hi {
			hi = cp
		}
	}
	walkCmapCodepoints(f.Table("cmap"), visit)
	if !found {
		return 0, 0
	}
	if lo > math.MaxUint16 {
		lo = math.MaxUint16
	}
	if hi > math.MaxUint16 {
		hi = math.MaxUint16
	}
	return uint16(lo), uint16(hi)
}

// walkCmapCodepoints visits every codepoint mapped to a nonzero glyph across
// all subtables of the supported formats (0, 4, 6, 12).
func walkCmapCodepoints(cmap []byte, visit func(uint32)) {
	if len(cmap) < 4 {
		return
	}
	numTables := int(binary.BigEndian.Uint16(cmap[2:4]))
	for i := 0; i < numTables; i++ {
		rec := 4 + i*8
		if rec+8 > len(cmap) {
			return
		}
		off := binary.BigEndian.Uint32(cmap[rec+4 : rec+8])
		if off > uint32(len(cmap))-2 {
			continue
		}
		sub := cmap[off:]
		switch binary.BigEndian.Uint16(sub[0:2]) {
		case 0:
			walkFormat0(sub, visit)
		case 4:
			walkFormat4(sub, visit)
		case 6:
			walkFormat6(sub, visit)
		case 12:
			walkFormat12(sub, visit)
		}
	}
}

func walkFormat0(sub []byte, visit func(uint32)) {
	if len(sub) < 262 {
		return
	}
	for cp := 0; cp < 256; cp++ {
		if sub[6+cp] != 0 {
			visit(uint32(cp))
		}
	}
}

func walkFormat4(sub []byte, visit func(uint32)) {
	if len(sub) < 16 {
		return
	}
	segCount := int(binary.BigEndian.Uint16(sub[6:8])) / 2
	endBase := 14
	startBase := endBase + segCount*2 + 2 // skip reservedPad
	if len(sub) < startBase+segCount*2 {
		return
	}
	for s := 0; s < segCount; s++ {
		start := binary.BigEndian.Uint16(sub[startBase+s*2:])
		end := binary.BigEndian.Uint16(sub[endBase+s*2:])
		if start == 0xFFFF && end == 0xFFFF {
			continue // required sentinel segment
		}
		for cp := uint32(start); cp <= uint32(end); cp++ {
			visit(cp)
		}
	}
}

func walkFormat6(sub []byte, visit func(uint32)) {
	if len(sub) < 10 {
		return
	}
	first := binary.BigEndian.Uint16(sub[6:8])
	count := int(binary.BigEndian.Uint16(sub[8:10]))
	if len(sub) < 10+count*2 {
		return
	}
	for i := 0; i < count; i++ {
		if binary.BigEndian.Uint16(sub[10+i*2:]) != 0 {
			visit(uint32(first) + uint32(i))
		}
	}
}

func walkFormat12(sub []byte, visit func(uint32)) {
	if len(sub) < 16 {
		return
	}
	numGroups := int(binary.BigEndian.Uint32(sub[12:16]))
	if len(sub) < 16+numGroups*12 {
		return
	}
	for g := 0; g < numGroups; g++ {
		base := 16 + g*12
		start := binary.BigEndian.Uint32(sub[base:])
		end := binary.BigEndian.Uint32(sub[base+4:])
		for cp := start; cp <= end && cp-start < 1<<20; cp++ {
			visit(cp)
		}
	}
}
