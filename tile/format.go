package tile

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Tile file layout, little-endian and packed:
//
//	[ header: num_assets u32, num_items u32, magic u32 ]
//	[ name table: num_assets * NameLen bytes, NUL padded ]
//	[ item table: num_items * { x i16, y i16, asset u16 } ]
const (
	Magic      = 0x55da7113
	NameLen    = 32
	HeaderSize = 12
	ItemSize   = 6

	maxNames = math.MaxUint16 + 1
)

// Header is the fixed size header at the start of a tile file.
type Header struct {
	NumAssets uint32
	NumItems  uint32
	Magic     uint32
}

// ItemEntry is one placement as stored in the item table.
type ItemEntry struct {
	X     int16
	Y     int16
	Asset uint16
}

// File is the decoded, not yet resolved, content of a tile file.
type File struct {
	Header Header
	Names  []string
	Items  []ItemEntry
}

// Name returns the asset name referenced by the given item. It reports false
// when the index is outside the name table.
func (f *File) Name(item ItemEntry) (string, bool) {
	if int(item.Asset) >= len(f.Names) {
		return "", false
	}
	return f.Names[item.Asset], true
}

// Parse validates and decodes a tile file. It never reads outside data and
// rejects item entries whose asset index is outside the name table.
func Parse(data []byte) (*File, error) {
	size := uint64(len(data))

	if size < HeaderSize {
		return nil, errors.New("tile file is shorter than its header").
			WithType(ErrTypeCorruptFile).
			WithTag("size", size)
	}

	hdr := Header{
		NumAssets: binary.LittleEndian.Uint32(data[0:]),
		NumItems:  binary.LittleEndian.Uint32(data[4:]),
		Magic:     binary.LittleEndian.Uint32(data[8:]),
	}
	if hdr.Magic != Magic {
		return nil, errors.New("bad tile magic").
			WithType(ErrTypeBadMagic).
			WithTag("magic", hdr.Magic)
	}

	namesEnd := HeaderSize + uint64(hdr.NumAssets)*NameLen
	if namesEnd > size {
		return nil, errors.New("tile name table is truncated").
			WithType(ErrTypeCorruptFile).
			WithTag("num_assets", hdr.NumAssets).
			WithTag("size", size)
	}

	itemsEnd := namesEnd + uint64(hdr.NumItems)*ItemSize
	if itemsEnd > size {
		return nil, errors.New("tile item table is truncated").
			WithType(ErrTypeCorruptFile).
			WithTag("num_items", hdr.NumItems).
			WithTag("size", size)
	}

	f := &File{
		Header: hdr,
		Names:  make([]string, hdr.NumAssets),
		Items:  make([]ItemEntry, hdr.NumItems),
	}

	for i := range f.Names {
		off := HeaderSize + i*NameLen
		f.Names[i] = readName(data[off : off+NameLen])
	}

	for i := range f.Items {
		off := int(namesEnd) + i*ItemSize
		item := ItemEntry{
			X:     int16(binary.LittleEndian.Uint16(data[off:])),
			Y:     int16(binary.LittleEndian.Uint16(data[off+2:])),
			Asset: binary.LittleEndian.Uint16(data[off+4:]),
		}

		if uint32(item.Asset) >= hdr.NumAssets {
			return nil, errors.New("tile item references an asset outside the name table").
				WithType(ErrTypeCorruptFile).
				WithTag("item", i).
				WithTag("asset_index", item.Asset).
				WithTag("num_assets", hdr.NumAssets)
		}
		f.Items[i] = item
	}

	return f, nil
}

// Encode writes f in the tile file layout. The header is derived from the
// names and items.
func Encode(f *File) ([]byte, error) {
	if len(f.Names) > maxNames {
		return nil, errors.New("too many tile asset names").
			WithType(ErrTypeEncode).
			WithTag("num_assets", len(f.Names))
	}
	if uint64(len(f.Items)) > math.MaxUint32 {
		return nil, errors.New("too many tile items").
			WithType(ErrTypeEncode).
			WithTag("num_items", len(f.Items))
	}

	namesEnd := HeaderSize + len(f.Names)*NameLen
	buf := make([]byte, namesEnd+len(f.Items)*ItemSize)

	binary.LittleEndian.PutUint32(buf[0:], uint32(len(f.Names)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(f.Items)))
	binary.LittleEndian.PutUint32(buf[8:], Magic)

	for i, name := range f.Names {
		if name == "" || len(name) > NameLen || bytes.IndexByte([]byte(name), 0) >= 0 {
			return nil, errors.New("invalid tile asset name").
				WithType(ErrTypeEncode).
				WithTag("index", i).
				WithTag("name", name)
		}
		copy(buf[HeaderSize+i*NameLen:], name)
	}

	for i, item := range f.Items {
		if int(item.Asset) >= len(f.Names) {
			return nil, errors.New("tile item references an unknown asset").
				WithType(ErrTypeEncode).
				WithTag("item", i).
				WithTag("asset_index", item.Asset)
		}

		off := namesEnd + i*ItemSize
		binary.LittleEndian.PutUint16(buf[off:], uint16(item.X))
		binary.LittleEndian.PutUint16(buf[off+2:], uint16(item.Y))
		binary.LittleEndian.PutUint16(buf[off+4:], item.Asset)
	}

	return buf, nil
}

// Placement places a named asset at a ground position.
type Placement struct {
	Asset string `yaml:"asset" json:"asset"`
	X     int16  `yaml:"x"     json:"x"`
	Y     int16  `yaml:"y"     json:"y"`
}

// NewFile builds a File from placements. Names are deduplicated in order of
// first appearance.
func NewFile(placements []Placement) *File {
	f := &File{
		Items: make([]ItemEntry, 0, len(placements)),
	}
	indexes := make(map[string]uint16)

	for _, p := range placements {
		idx, ok := indexes[p.Asset]
		if !ok {
			idx = uint16(len(f.Names))
			indexes[p.Asset] = idx
			f.Names = append(f.Names, p.Asset)
		}

		f.Items = append(f.Items, ItemEntry{
			X:     p.X,
			Y:     p.Y,
			Asset: idx,
		})
	}

	f.Header = Header{
		NumAssets: uint32(len(f.Names)),
		NumItems:  uint32(len(f.Items)),
		Magic:     Magic,
	}
	return f
}

// readName returns the NUL terminated string of a name entry. An entry with
// no NUL uses every byte.
func readName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
