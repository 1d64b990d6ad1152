// Package fonts repairs font metadata and re-encodes fonts for web delivery.
// It carries its own minimal sfnt container codec: the repair path only needs
// table-level access (read the directory, add one table, rewrite with valid
// checksums), not glyph-level interpretation.
package fonts

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

const (
	sfntVersionTrueType = 0x00010000
	sfntVersionCFF      = 0x4F54544F // 'OTTO'
	sfntVersionApple    = 0x74727565 // 'true'

	headMagic          = 0x5F0F3CF5
	checksumAdjustBase = 0xB1B0AFBA
)

// Table is one entry of the sfnt table directory with its raw data.
type Table struct {
	Tag  string
	Data []byte
}

// Font is a parsed sfnt container. Tables keep the physical order of the
// source file; Bytes re-emits them in that order with recomputed offsets and
// checksums.
type Font struct {
	ScalerType uint32
	Tables     []Table
}

// Parse reads an sfnt container (TTF or CFF-flavored OTF).
func Parse(data []byte) (*Font, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("sfnt: file too short (%d bytes)", len(data))
	}
	scaler := binary.BigEndian.Uint32(data[0:4])
	switch scaler {
	case sfntVersionTrueType, sfntVersionCFF, sfntVersionApple:
	default:
		return nil, fmt.Errorf("sfnt: unrecognized scaler type 0x%08X", scaler)
	}
	numTables := int(binary.BigEndian.Uint16(data[4:6]))
	dirEnd := 12 + numTables*16
	if len(data) < dirEnd {
		return nil, fmt.Errorf("sfnt: truncated table directory (%d tables)", numTables)
	}

	f := &Font{ScalerType: scaler, Tables: make([]Table, 0, numTables)}
	type entry struct {
		tag            string
		offset, length uint32
	}
	entries := make([]entry, 0, numTables)
	for i := 0; i < numTables; i++ {
		rec := data[12+i*16 : 12+(i+1)*16]
		entries = append(entries, entry{
			tag:    string(rec[0:4]),
			offset: binary.BigEndian.Uint32(rec[8:12]),
			length: binary.BigEndian.Uint32(rec[12:16]),
		})
	}
	for _, e := range entries {
		end := uint64(e.offset) + uint64(e.length)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("sfnt: table %q extends past end of file", e.tag)
		}
		td := make([]byte, e.length)
		copy(td, data[e.offset:end])
		f.Tables = append(f.Tables, Table{Tag: e.tag, Data: td})
	}
	return f, nil
}

// Table returns the data of the named table, or nil when absent.
func (f *Font) Table(tag string) []byte {
	for _, t := range f.Tables {
		if t.Tag == tag {
			return t.Data
		}
	}
	return nil
}

// HasTable reports whether the named table is present.
func (f *Font) HasTable(tag string) bool {
	return f.Table(tag) != nil
}

// SetTable replaces the named table or appends it when absent.
func (f *Font) SetTable(tag string, data []byte) {
	for i := range f.Tables {
		if f.Tables[i].Tag == tag {
			f.Tables[i].Data = data
			return
		}
	}
	f.Tables = append(f.Tables, Table{Tag: tag, Data: data})
}

// Bytes serializes the container. Table data is 4-byte aligned, directory
// checksums are recomputed, and head.checkSumAdjustment is refreshed so the
// whole file sums to the sfnt constant.
func (f *Font) Bytes() []byte {
	numTables := len(f.Tables)

	// Zero the adjustment before any checksum is taken.
	if head := f.Table("head"); len(head) >= 12 {
		binary.BigEndian.PutUint32(head[8:12], 0)
	}

	dirEnd := 12 + numTables*16
	total := dirEnd
	offsets := make([]int, numTables)
	for i, t := range f.Tables {
		offsets[i] = total
		total += pad4(len(t.Data))
	}

	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[0:4], f.ScalerType)
	binary.BigEndian.PutUint16(out[4:6], uint16(numTables))
	sr, es, rs := binarySearchParams(numTables)
	binary.BigEndian.PutUint16(out[6:8], sr)
	binary.BigEndian.PutUint16(out[8:10], es)
	binary.BigEndian.PutUint16(out[10:12], rs)

	headOffset := -1
	for i, t := range f.Tables {
		copy(out[offsets[i]:], t.Data)
		rec := out[12+i*16 : 12+(i+1)*16]
		copy(rec[0:4], t.Tag)
		binary.BigEndian.PutUint32(rec[4:8], tableChecksum(out[offsets[i]:offsets[i]+pad4(len(t.Data))]))
		binary.BigEndian.PutUint32(rec[8:12], uint32(offsets[i]))
		binary.BigEndian.PutUint32(rec[12:16], uint32(len(t.Data)))
		if t.Tag == "head" {
			headOffset = offsets[i]
		}
	}

	if headOffset >= 0 && len(f.Table("head")) >= 12 {
		fileSum := tableChecksum(out)
		adjust := checksumAdjustBase - fileSum
		binary.BigEndian.PutUint32(out[headOffset+8:headOffset+12], adjust)
		// Keep the in-memory copy consistent with what was written.
		binary.BigEndian.PutUint32(f.Table("head")[8:12], adjust)
	}
	return out
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

// tableChecksum sums the data as big-endian uint32s; a trailing partial word
// is zero-padded.
func tableChecksum(data []byte) uint32 {
	var sum uint32
	i := 0
	for ; i+4 <= len(data); i += 4 {
		sum += binary.BigEndian.Uint32(data[i : i+4])
	}
	if i < len(data) {
		var last [4]byte
		copy(last[:], data[i:])
		sum += binary.BigEndian.Uint32(last[:])
	}
	return sum
}

func binarySearchParams(numTables int) (searchRange, entrySelector, rangeShift uint16) {
	if numTables == 0 {
		return 0, 0, 0
	}
	es := bits.Len(uint(numTables)) - 1
	sr := (1 << es) * 16
	return uint16(sr), uint16(es), uint16(numTables*16 - sr)
}
