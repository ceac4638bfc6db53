package tile

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	placements := []Placement{
		{Asset: "hut", X: 1, Y: 2},
		{Asset: "tower", X: -3, Y: 4},
		{Asset: "hut", X: 5, Y: -6},
	}

	t.Run("well formed file", func(t *testing.T) {
		data := encodePlacements(t, placements...)
		require.Len(t, data, HeaderSize+2*NameLen+3*ItemSize)

		f, err := Parse(data)
		require.NoError(t, err)
		require.Equal(t, Header{NumAssets: 2, NumItems: 3, Magic: Magic}, f.Header)
		require.Equal(t, []string{"hut", "tower"}, f.Names)
		require.Len(t, f.Items, 3)

		for i, item := range f.Items {
			require.Equal(t, placements[i].X, item.X)
			require.Equal(t, placements[i].Y, item.Y)
			name, ok := f.Name(item)
			require.True(t, ok)
			require.Equal(t, placements[i].Asset, name)
		}
	})

	t.Run("header fields are little endian with magic last", func(t *testing.T) {
		data := encodePlacements(t, placements...)
		require.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:]))
		require.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[4:]))
		require.Equal(t, uint32(Magic), binary.LittleEndian.Uint32(data[8:]))
	})

	t.Run("truncation is always a corrupt file", func(t *testing.T) {
		data := encodePlacements(t, placements...)

		for n := 0; n < len(data); n++ {
			f, err := Parse(data[:n])
			require.Error(t, err, "size %d", n)
			require.Nil(t, f)
			require.Equal(t, ErrTypeCorruptFile, errors.Type(err), "size %d", n)
		}
	})

	t.Run("trailing bytes are ignored", func(t *testing.T) {
		data := append(encodePlacements(t, placements...), 0xde, 0xad)

		f, err := Parse(data)
		require.NoError(t, err)
		require.Len(t, f.Items, 3)
	})

	t.Run("bad magic", func(t *testing.T) {
		data := encodePlacements(t, placements...)
		binary.LittleEndian.PutUint32(data[8:], 0xdeadbeef)

		_, err := Parse(data)
		require.Error(t, err)
		require.Equal(t, ErrTypeBadMagic, errors.Type(err))
	})

	t.Run("bad magic is checked before the tables", func(t *testing.T) {
		data := make([]byte, HeaderSize)
		binary.LittleEndian.PutUint32(data[0:], 1000)

		_, err := Parse(data)
		require.Error(t, err)
		require.Equal(t, ErrTypeBadMagic, errors.Type(err))
	})

	t.Run("asset index outside the name table", func(t *testing.T) {
		data := encodePlacements(t, placements...)
		setAssetIndex(data, 2, 1, 2)

		_, err := Parse(data)
		require.Error(t, err)
		require.Equal(t, ErrTypeCorruptFile, errors.Type(err))
	})

	t.Run("asset index outside the name table is caught before resolution", func(t *testing.T) {
		data := encodePlacements(t, placements...)
		setAssetIndex(data, 2, 2, 0xffff)

		assets := originAssets()
		_, err := Open("bad-index.pst", data, assets)
		require.Error(t, err)
		require.Equal(t, ErrTypeCorruptFile, errors.Type(err))
		require.Empty(t, assets.resolved)
	})

	t.Run("huge counts do not wrap around", func(t *testing.T) {
		data := make([]byte, HeaderSize+NameLen)
		binary.LittleEndian.PutUint32(data[0:], 0xffffffff)
		binary.LittleEndian.PutUint32(data[4:], 0xffffffff)
		binary.LittleEndian.PutUint32(data[8:], Magic)

		_, err := Parse(data)
		require.Error(t, err)
		require.Equal(t, ErrTypeCorruptFile, errors.Type(err))

		binary.LittleEndian.PutUint32(data[0:], 1)
		_, err = Parse(data)
		require.Error(t, err)
		require.Equal(t, ErrTypeCorruptFile, errors.Type(err))
	})

	t.Run("name filling the whole entry", func(t *testing.T) {
		name := strings.Repeat("n", NameLen)
		data := encodePlacements(t, Placement{Asset: name})

		f, err := Parse(data)
		require.NoError(t, err)
		require.Equal(t, name, f.Names[0])
	})

	t.Run("name table without items", func(t *testing.T) {
		f := &File{Names: []string{"hut"}}
		data, err := Encode(f)
		require.NoError(t, err)

		parsed, err := Parse(data)
		require.NoError(t, err)
		require.Equal(t, []string{"hut"}, parsed.Names)
		require.Empty(t, parsed.Items)
	})
}

func TestEncode(t *testing.T) {
	t.Run("name too long", func(t *testing.T) {
		_, err := Encode(NewFile([]Placement{{Asset: strings.Repeat("n", NameLen+1)}}))
		require.Error(t, err)
		require.Equal(t, ErrTypeEncode, errors.Type(err))
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := Encode(NewFile([]Placement{{Asset: ""}}))
		require.Error(t, err)
		require.Equal(t, ErrTypeEncode, errors.Type(err))
	})

	t.Run("name with a nul byte", func(t *testing.T) {
		_, err := Encode(NewFile([]Placement{{Asset: "h\x00t"}}))
		require.Error(t, err)
		require.Equal(t, ErrTypeEncode, errors.Type(err))
	})

	t.Run("unknown asset index", func(t *testing.T) {
		_, err := Encode(&File{
			Names: []string{"hut"},
			Items: []ItemEntry{{Asset: 1}},
		})
		require.Error(t, err)
		require.Equal(t, ErrTypeEncode, errors.Type(err))
	})
}

func TestNewFile(t *testing.T) {
	f := NewFile([]Placement{
		{Asset: "tower", X: 1},
		{Asset: "hut", X: 2},
		{Asset: "tower", X: 3},
	})

	require.Equal(t, []string{"tower", "hut"}, f.Names)
	require.Equal(t, []ItemEntry{
		{X: 1, Asset: 0},
		{X: 2, Asset: 1},
		{X: 3, Asset: 0},
	}, f.Items)
	require.Equal(t, Header{NumAssets: 2, NumItems: 3, Magic: Magic}, f.Header)
}

func TestFileName(t *testing.T) {
	f := &File{
		Names: []string{"hut"},
		Items: []ItemEntry{{Asset: 0}, {Asset: 1}},
	}

	name, ok := f.Name(f.Items[0])
	require.True(t, ok)
	require.Equal(t, "hut", name)

	name, ok = f.Name(f.Items[1])
	require.False(t, ok)
	require.Empty(t, name)

	_, ok = (&File{}).Name(ItemEntry{})
	require.False(t, ok)
}
