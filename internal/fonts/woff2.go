package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/andybalholm/brotli"
)

const (
	woff2Signature  = 0x774F4632 // 'wOF2'
	woff2HeaderSize = 48

	// Transform version 3 on glyf/loca means the table is stored
	// untransformed; 0 is the null transform for every other table.
	xformUntransformed = 3
)

// knownTags is the WOFF2 known-table list; a table's index here encodes as a
// 6-bit flag instead of an explicit 4-byte tag.
var knownTags = [63]string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

func knownTagIndex(tag string) int {
	for i, t := range knownTags {
		if t == tag {
			return i
		}
	}
	return -1
}

// ExportWOFF2 re-encodes the font as a WOFF2 container: null table
// transforms throughout, with the concatenated table data brotli-compressed
// into a single stream.
func ExportWOFF2(f *Font) ([]byte, error) {
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("woff2: font has no tables")
	}

	var dir bytes.Buffer
	var raw bytes.Buffer
	totalSfntSize := 12 + 16*len(f.Tables)
	for _, t := range f.Tables {
		xform := byte(0)
		if t.Tag == "glyf" || t.Tag == "loca" {
			xform = xformUntransformed
		}
		if idx := knownTagIndex(t.Tag); idx >= 0 {
			dir.WriteByte(byte(idx) | xform<<6)
		} else {
			dir.WriteByte(63 | xform<<6)
			dir.WriteString(t.Tag)
		}
		writeUIntBase128(&dir, uint32(len(t.Data)))
		raw.Write(t.Data)
		totalSfntSize += pad4(len(t.Data))
	}

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	if _, err := bw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("woff2: compress table stream: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("woff2: compress table stream: %w", err)
	}

	totalLength := woff2HeaderSize + dir.Len() + pad4(compressed.Len())
	out := make([]byte, 0, totalLength)
	header := make([]byte, woff2HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], woff2Signature)
	binary.BigEndian.PutUint32(header[4:8], f.ScalerType)
	binary.BigEndian.PutUint32(header[8:12], uint32(totalLength))
	binary.BigEndian.PutUint16(header[12:14], uint16(len(f.Tables)))
	binary.BigEndian.PutUint32(header[16:20], uint32(totalSfntSize))
	binary.BigEndian.PutUint32(header[20:24], uint32(compressed.Len()))
	binary.BigEndian.PutUint16(header[24:26], 1) // majorVersion
	// minorVersion and the metadata/private block fields stay zero.

	out = append(out, header...)
	out = append(out, dir.Bytes()...)
	out = append(out, compressed.Bytes()...)
	for len(out) < totalLength {
		out = append(out, 0)
	}
	return out, nil
}

// writeUIntBase128 emits the WOFF2 variable-length encoding: 7-bit groups,
// most significant first, continuation bit on all but the last byte.
func writeUIntBase128(b *bytes.Buffer, v uint32) {
	var tmp [5]byte
	n := 0
	for {
		tmp[n] = byte(v & 0x7F)
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	for i := n - 1; i >= 0; i-- {
		c := tmp[i]
		if i > 0 {
			c |= 0x80
		}
		b.WriteByte(c)
	}
}
