package pdffont

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// tables required by the subsetter
var requiredTables = [...]string{"head", "hhea", "maxp", "hmtx", "loca", "glyf"}

// tables copied as is in the subset
var copiedTables = [...]string{"cvt ", "fpgm", "prep", "OS/2"}

// emptyCmap is a (3, 1) format 4 cmap with only the final segment:
// glyphs are selected by CID in PDF, but some readers expect a cmap.
var emptyCmap = []byte{
	0, 0, 0, 1, // version, numTables
	0, 3, 0, 1, 0, 0, 0, 12, // platform, encoding, offset
	0, 4, 0, 24, 0, 0, // format, length, language
	0, 2, 0, 2, 0, 0, 0, 0, // segCountX2, searchRange, entrySelector, rangeShift
	0xFF, 0xFF, 0, 0, // endCode, reservedPad
	0xFF, 0xFF, 0, 1, 0, 0, // startCode, idDelta, idRangeOffset
}

// readTables splits a TrueType font into its tables.
func readTables(data []byte) (map[string][]byte, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("invalid font header")
	}
	numTables := int(binary.BigEndian.Uint16(data[4:6]))
	tables := make(map[string][]byte, numTables)
	offset := 12
	for i := 0; i < numTables; i++ {
		if offset+16 > len(data) {
			return nil, fmt.Errorf("table directory truncated")
		}
		tag := string(data[offset : offset+4])
		start := binary.BigEndian.Uint32(data[offset+8 : offset+12])
		length := binary.BigEndian.Uint32(data[offset+12 : offset+16])
		if uint64(start)+uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("table %s out of bounds", tag)
		}
		tables[tag] = data[start : start+length]
		offset += 16
	}
	return tables, nil
}

// glyphTable gives access to the glyph descriptions of a font.
type glyphTable struct {
	glyf    []byte
	offsets []uint32 // numGlyphs + 1 entries
}

func newGlyphTable(tables map[string][]byte) (glyphTable, error) {
	head, maxp, loca := tables["head"], tables["maxp"], tables["loca"]
	if len(head) < 54 || len(maxp) < 6 {
		return glyphTable{}, fmt.Errorf("invalid head or maxp table")
	}
	longFormat := binary.BigEndian.Uint16(head[50:52]) != 0
	numGlyphs := int(binary.BigEndian.Uint16(maxp[4:6]))
	out := glyphTable{glyf: tables["glyf"], offsets: make([]uint32, numGlyphs+1)}
	for i := range out.offsets {
		if longFormat {
			if 4*i+4 > len(loca) {
				return glyphTable{}, fmt.Errorf("loca table truncated")
			}
			out.offsets[i] = binary.BigEndian.Uint32(loca[4*i:])
		} else {
			if 2*i+2 > len(loca) {
				return glyphTable{}, fmt.Errorf("loca table truncated")
			}
			out.offsets[i] = uint32(binary.BigEndian.Uint16(loca[2*i:])) * 2
		}
	}
	return out, nil
}

// glyph returns the description of `gid`, empty for glyphs
// without outline or out of range.
func (gt glyphTable) glyph(gid uint16) []byte {
	if int(gid)+1 >= len(gt.offsets) {
		return nil
	}
	start, end := gt.offsets[gid], gt.offsets[gid+1]
	if start >= end || end > uint32(len(gt.glyf)) {
		return nil
	}
	return gt.glyf[start:end]
}

// composite glyph flags
const (
	argsAreWords    = 0x0001
	haveScale       = 0x0008
	moreComponents  = 0x0020
	haveXYScale     = 0x0040
	haveTwoByTwo    = 0x0080
	componentHeader = 4 // flags and glyph index
)

// components returns the positions of the glyph indices
// referenced by a composite glyph.
func components(glyph []byte) []int {
	if len(glyph) < 10 || int16(binary.BigEndian.Uint16(glyph)) >= 0 {
		return nil // simple glyph
	}
	var out []int
	offset := 10
	for offset+componentHeader <= len(glyph) {
		flags := binary.BigEndian.Uint16(glyph[offset:])
		out = append(out, offset+2)
		offset += componentHeader
		if flags&argsAreWords != 0 {
			offset += 4
		} else {
			offset += 2
		}
		switch {
		case flags&haveScale != 0:
			offset += 2
		case flags&haveXYScale != 0:
			offset += 4
		case flags&haveTwoByTwo != 0:
			offset += 8
		}
		if flags&moreComponents == 0 {
			break
		}
	}
	return out
}

// subsetTrueType builds a font program containing the glyphs `glyphs`
// renumbered by their index in the slice, so that glyphs[0] (notdef)
// becomes 0. The components of composite glyphs are appended to the
// list, which is returned.
func subsetTrueType(data []byte, glyphs []uint16) ([]byte, []uint16, error) {
	tables, err := readTables(data)
	if err != nil {
		return nil, nil, err
	}
	for _, tag := range requiredTables {
		if _, ok := tables[tag]; !ok {
			return nil, nil, fmt.Errorf("missing table %s: %w", tag, ErrNotSubsettable)
		}
	}
	gt, err := newGlyphTable(tables)
	if err != nil {
		return nil, nil, err
	}

	// closure over the composite glyphs
	order := append([]uint16(nil), glyphs...)
	newIDs := make(map[uint16]uint16, len(order))
	for i, gid := range order {
		newIDs[gid] = uint16(i)
	}
	for i := 0; i < len(order); i++ {
		glyph := gt.glyph(order[i])
		for _, pos := range components(glyph) {
			comp := binary.BigEndian.Uint16(glyph[pos:])
			if _, ok := newIDs[comp]; !ok {
				newIDs[comp] = uint16(len(order))
				order = append(order, comp)
			}
		}
	}

	// glyf and loca, in the long format
	var glyf, loca bytes.Buffer
	for _, gid := range order {
		binary.Write(&loca, binary.BigEndian, uint32(glyf.Len()))
		glyph := gt.glyph(gid)
		if poss := components(glyph); len(poss) != 0 {
			glyph = append([]byte(nil), glyph...)
			for _, pos := range poss {
				old := binary.BigEndian.Uint16(glyph[pos:])
				binary.BigEndian.PutUint16(glyph[pos:], newIDs[old])
			}
		}
		glyf.Write(glyph)
		for glyf.Len()%4 != 0 {
			glyf.WriteByte(0)
		}
	}
	binary.Write(&loca, binary.BigEndian, uint32(glyf.Len()))

	hmtx, err := subsetHmtx(tables, order, len(gt.offsets)-1)
	if err != nil {
		return nil, nil, err
	}

	head := append([]byte(nil), tables["head"]...)
	binary.BigEndian.PutUint32(head[8:], 0)  // checkSumAdjustment, see writeFont
	binary.BigEndian.PutUint16(head[50:], 1) // indexToLocFormat
	maxp := append([]byte(nil), tables["maxp"]...)
	binary.BigEndian.PutUint16(maxp[4:], uint16(len(order)))
	hhea := append([]byte(nil), tables["hhea"]...)
	binary.BigEndian.PutUint16(hhea[34:], uint16(len(order)))

	out := map[string][]byte{
		"glyf": glyf.Bytes(),
		"loca": loca.Bytes(),
		"hmtx": hmtx,
		"head": head,
		"maxp": maxp,
		"hhea": hhea,
		"cmap": emptyCmap,
	}
	if post, ok := tables["post"]; ok && len(post) >= 32 {
		// glyph names are dropped with the renumbering
		post = append([]byte(nil), post[:32]...)
		binary.BigEndian.PutUint32(post, 0x00030000)
		out["post"] = post
	}
	for _, tag := range copiedTables {
		if table, ok := tables[tag]; ok {
			out[tag] = table
		}
	}
	return writeFont(out), order, nil
}

// subsetHmtx writes explicit metrics for every glyph of `order`.
func subsetHmtx(tables map[string][]byte, order []uint16, numGlyphs int) ([]byte, error) {
	hhea, hmtx := tables["hhea"], tables["hmtx"]
	if len(hhea) < 36 {
		return nil, fmt.Errorf("invalid hhea table")
	}
	numMetrics := int(binary.BigEndian.Uint16(hhea[34:36]))
	if numMetrics == 0 || 4*numMetrics > len(hmtx) {
		return nil, fmt.Errorf("invalid hmtx table")
	}
	out := make([]byte, 4*len(order))
	for i, gid := range order {
		var adv, lsb uint16
		switch {
		case int(gid) < numMetrics:
			adv = binary.BigEndian.Uint16(hmtx[4*int(gid):])
			lsb = binary.BigEndian.Uint16(hmtx[4*int(gid)+2:])
		case int(gid) < numGlyphs:
			adv = binary.BigEndian.Uint16(hmtx[4*(numMetrics-1):])
			if pos := 4*numMetrics + 2*(int(gid)-numMetrics); pos+2 <= len(hmtx) {
				lsb = binary.BigEndian.Uint16(hmtx[pos:])
			}
		}
		binary.BigEndian.PutUint16(out[4*i:], adv)
		binary.BigEndian.PutUint16(out[4*i+2:], lsb)
	}
	return out, nil
}

// writeFont assembles the tables, sorted by tag, and sets
// the checksums.
func writeFont(tables map[string][]byte) []byte {
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	numTables := len(tags)
	entrySelector := 0
	for 1<<(entrySelector+1) <= numTables {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 16

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0x00010000))
	binary.Write(&buf, binary.BigEndian, [4]uint16{
		uint16(numTables), uint16(searchRange), uint16(entrySelector), uint16(numTables*16 - searchRange),
	})
	offset := 12 + 16*numTables
	headOffset := -1
	for _, tag := range tags {
		data := tables[tag]
		if tag == "head" {
			headOffset = offset
		}
		buf.WriteString(tag)
		binary.Write(&buf, binary.BigEndian, [3]uint32{checksum(data), uint32(offset), uint32(len(data))})
		offset += (len(data) + 3) &^ 3
	}
	for _, tag := range tags {
		buf.Write(tables[tag])
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
	}
	out := buf.Bytes()
	if headOffset >= 0 {
		binary.BigEndian.PutUint32(out[headOffset+8:], 0xB1B0AFBA-checksum(out))
	}
	return out
}

func checksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		var word [4]byte
		copy(word[:], data[i:])
		sum += binary.BigEndian.Uint32(word[:])
	}
	return sum
}
