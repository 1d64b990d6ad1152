package fonts

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"
)

// buildTestFont assembles a tiny but structurally valid TrueType font:
// 3 glyphs, 2 explicit horizontal metrics (500 and 600), a format-4 cmap
// covering A..Z, unitsPerEm 1000, ascent 800, descent -200.
func buildTestFont(withOS2 bool) *Font {
	head := make([]byte, 54)
	binary.BigEndian.PutUint32(head[12:16], headMagic)
	binary.BigEndian.PutUint16(head[18:20], 1000)

	hhea := make([]byte, 36)
	binary.BigEndian.PutUint16(hhea[4:6], 800)
	descent := int16(-200)
	binary.BigEndian.PutUint16(hhea[6:8], uint16(descent))
	binary.BigEndian.PutUint16(hhea[8:10], 0)
	binary.BigEndian.PutUint16(hhea[34:36], 2)

	maxp := make([]byte, 6)
	binary.BigEndian.PutUint32(maxp[0:4], 0x00005000)
	binary.BigEndian.PutUint16(maxp[4:6], 3)

	hmtx := make([]byte, 8)
	binary.BigEndian.PutUint16(hmtx[0:2], 500)
	binary.BigEndian.PutUint16(hmtx[4:6], 600)

	cmap := buildFormat4Cmap(0x41, 0x5A)

	f := &Font{ScalerType: sfntVersionTrueType}
	f.SetTable("head", head)
	f.SetTable("hhea", hhea)
	f.SetTable("maxp", maxp)
	f.SetTable("hmtx", hmtx)
	f.SetTable("cmap", cmap)
	if withOS2 {
		f.SetTable("OS/2", bytes.Repeat([]byte{0xAB}, os2SizeV4))
	}
	return f
}

func buildFormat4Cmap(first, last uint16) []byte {
	sub := make([]byte, 32)
	binary.BigEndian.PutUint16(sub[0:2], 4)  // format
	binary.BigEndian.PutUint16(sub[2:4], 32) // length
	binary.BigEndian.PutUint16(sub[6:8], 4)  // segCountX2 (2 segments)
	binary.BigEndian.PutUint16(sub[14:16], last)
	binary.BigEndian.PutUint16(sub[16:18], 0xFFFF)
	binary.BigEndian.PutUint16(sub[20:22], first)
	binary.BigEndian.PutUint16(sub[22:24], 0xFFFF)

	cmap := make([]byte, 12, 12+len(sub))
	binary.BigEndian.PutUint16(cmap[2:4], 1)   // one encoding record
	binary.BigEndian.PutUint16(cmap[4:6], 3)   // platform: Windows
	binary.BigEndian.PutUint16(cmap[6:8], 1)   // encoding: Unicode BMP
	binary.BigEndian.PutUint32(cmap[8:12], 12) // subtable offset
	return append(cmap, sub...)
}

func TestParseRoundTrip(t *testing.T) {
	src := buildTestFont(false)
	data := src.Bytes()

	got, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, src.ScalerType, got.ScalerType)
	require.Len(t, got.Tables, len(src.Tables))
	for _, want := range src.Tables {
		require.Equal(t, want.Data, got.Table(want.Tag), "table %s", want.Tag)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("definitely not a font"))
	require.Error(t, err)

	_, err = Parse([]byte{0x00})
	require.Error(t, err)
}

func TestBytesChecksumAdjustment(t *testing.T) {
	data := buildTestFont(false).Bytes()
	// With head.checkSumAdjustment in place the whole file sums to the
	// sfnt constant.
	require.Equal(t, uint32(checksumAdjustBase), tableChecksum(data))
}

func TestEnsureOS2_Synthesized(t *testing.T) {
	f := buildTestFont(false)
	require.NoError(t, EnsureOS2(f, "TXWB"))

	os2 := f.Table("OS/2")
	require.Len(t, os2, os2SizeV4)

	u16 := func(off int) uint16 { return binary.BigEndian.Uint16(os2[off:]) }
	i16 := func(off int) int16 { return int16(u16(off)) }

	require.Equal(t, uint16(4), u16(0), "version")
	// Mean advance over 3 glyphs: (500+600+600)/3 rounded.
	require.Equal(t, int16(567), i16(2), "xAvgCharWidth")
	require.Equal(t, uint16(400), u16(4), "usWeightClass")
	require.Equal(t, uint16(5), u16(6), "usWidthClass")
	require.Equal(t, int16(650), i16(10), "ySubscriptXSize")
	require.Equal(t, int16(600), i16(12), "ySubscriptYSize")
	require.Equal(t, int16(75), i16(16), "ySubscriptYOffset")
	require.Equal(t, int16(350), i16(24), "ySuperscriptYOffset")
	require.Equal(t, int16(50), i16(26), "yStrikeoutSize")
	require.Equal(t, int16(300), i16(28), "yStrikeoutPosition")
	require.Equal(t, "TXWB", string(os2[58:62]), "achVendID")
	require.Equal(t, uint16(0x0040), u16(62), "fsSelection")
	require.Equal(t, uint16(0x41), u16(64), "usFirstCharIndex")
	require.Equal(t, uint16(0x5A), u16(66), "usLastCharIndex")
	require.Equal(t, int16(800), i16(68), "sTypoAscender")
	require.Equal(t, int16(-200), i16(70), "sTypoDescender")
	require.Equal(t, uint16(800), u16(74), "usWinAscent")
	require.Equal(t, uint16(200), u16(76), "usWinDescent")
	require.Equal(t, int16(500), i16(86), "sxHeight")
	require.Equal(t, int16(700), i16(88), "sCapHeight")
	require.Equal(t, uint16(32), u16(92), "usBreakChar")
	require.Equal(t, uint16(1), u16(94), "usMaxContext")
}

func TestEnsureOS2_ExistingKept(t *testing.T) {
	f := buildTestFont(true)
	before := append([]byte(nil), f.Table("OS/2")...)
	require.NoError(t, EnsureOS2(f, "TXWB"))
	require.Equal(t, before, f.Table("OS/2"))
}

func TestEnsureOS2_NoCmapCoverage(t *testing.T) {
	f := buildTestFont(false)
	f.SetTable("cmap", []byte{0, 0, 0, 0})
	require.NoError(t, EnsureOS2(f, "TXWB"))

	os2 := f.Table("OS/2")
	require.Equal(t, uint16(0), binary.BigEndian.Uint16(os2[64:]), "usFirstCharIndex")
	require.Equal(t, uint16(0), binary.BigEndian.Uint16(os2[66:]), "usLastCharIndex")
}

func TestEnsureOS2_ShortVendorPadded(t *testing.T) {
	f := buildTestFont(false)
	require.NoError(t, EnsureOS2(f, "AB"))
	require.Equal(t, "AB  ", string(f.Table("OS/2")[58:62]))
}

func TestExportWOFF2(t *testing.T) {
	f := buildTestFont(false)
	out, err := ExportWOFF2(f)
	require.NoError(t, err)

	require.Equal(t, uint32(woff2Signature), binary.BigEndian.Uint32(out[0:4]))
	require.Equal(t, f.ScalerType, binary.BigEndian.Uint32(out[4:8]))
	require.Equal(t, uint32(len(out)), binary.BigEndian.Uint32(out[8:12]))
	require.Equal(t, uint16(len(f.Tables)), binary.BigEndian.Uint16(out[12:14]))

	// The compressed stream sits at the tail; decompressing it must yield
	// the concatenated table data.
	compLen := binary.BigEndian.Uint32(out[20:24])
	start := uint32(len(out)) - uint32(pad4(int(compLen)))
	decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(out[start : start+compLen])))
	require.NoError(t, err)

	var want bytes.Buffer
	for _, tbl := range f.Tables {
		want.Write(tbl.Data)
	}
	require.Equal(t, want.Bytes(), decompressed)
}

func TestUIntBase128(t *testing.T) {
	enc := func(v uint32) []byte {
		var b bytes.Buffer
		writeUIntBase128(&b, v)
		return b.Bytes()
	}
	require.Equal(t, []byte{0x00}, enc(0))
	require.Equal(t, []byte{0x7F}, enc(127))
	require.Equal(t, []byte{0x81, 0x00}, enc(128))
	require.Equal(t, []byte{0x81, 0x80, 0x00}, enc(16384))
}

func TestConverterBatch(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "good.ttf"), buildTestFont(false).Bytes(), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.ttf"), []byte("not a font at all"), 0644))

	mapping := map[string]string{
		"good.ttf":    "Good.woff2",
		"broken.ttf":  "Broken.woff2",
		"missing.ttf": "Missing.woff2",
	}
	c := NewConverter(in, out, mapping, "TXWB", slog.Default())
	results := c.ConvertAll()
	require.Len(t, results, 3)

	// Sorted source order: broken, good, missing.
	require.True(t, results[0].IsErr(), "unparseable font yields an error result")
	require.True(t, results[1].IsOk())
	require.Equal(t, "repair", results[1].Unwrap().Backend)
	require.True(t, results[2].IsOk(), "absent source is a skip, not a failure")
	require.True(t, results[2].Unwrap().Skipped)

	data, err := os.ReadFile(filepath.Join(out, "Good.woff2"))
	require.NoError(t, err)
	require.Equal(t, uint32(woff2Signature), binary.BigEndian.Uint32(data[0:4]))

	_, err = os.Stat(filepath.Join(out, "Broken.woff2"))
	require.True(t, os.IsNotExist(err))
}

func TestRepairThenRawFallback(t *testing.T) {
	// A font with no hhea cannot be repaired but still re-exports raw.
	f := buildTestFont(false)
	var kept []Table
	for _, tbl := range f.Tables {
		if tbl.Tag != "hhea" {
			kept = append(kept, tbl)
		}
	}
	f.Tables = kept
	data := f.Bytes()

	_, err := RepairExporter{}.Export(data, "TXWB")
	require.Error(t, err)

	out, err := RawExporter{}.Export(data, "TXWB")
	require.NoError(t, err)
	require.Equal(t, uint32(woff2Signature), binary.BigEndian.Uint32(out[0:4]))
}
