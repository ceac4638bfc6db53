package tile

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/lyndon/punani-strike/asset"
	"github.com/lyndon/punani-strike/vec"
	"github.com/stretchr/testify/require"
)

// originAsset reports a hit at its local origin for every query.
type originAsset struct {
	name string
}

func (a *originAsset) Name() string {
	return a.name
}

func (a *originAsset) CollideLine(start, end vec.Vector3f) (vec.Vector3f, bool) {
	return vec.Vector3f{}, true
}

func (a *originAsset) CollideSphere(center vec.Vector3f, radius float32) (vec.Vector3f, bool) {
	return vec.Vector3f{}, true
}

// missAsset never reports a hit.
type missAsset struct {
	name string
}

func (a *missAsset) Name() string {
	return a.name
}

func (a *missAsset) CollideLine(start, end vec.Vector3f) (vec.Vector3f, bool) {
	return vec.Vector3f{}, false
}

func (a *missAsset) CollideSphere(center vec.Vector3f, radius float32) (vec.Vector3f, bool) {
	return vec.Vector3f{}, false
}

// fakeAssets is an asset registry that records every resolve and release.
type fakeAssets struct {
	mutex    sync.Mutex
	newAsset func(name string) asset.Asset
	failOn   map[string]bool
	resolved []string
	released []string
}

func newFakeAssets(newAsset func(name string) asset.Asset) *fakeAssets {
	return &fakeAssets{
		newAsset: newAsset,
		failOn:   make(map[string]bool),
	}
}

func (f *fakeAssets) Resolve(name string) (asset.Asset, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.failOn[name] {
		return nil, errors.New("asset not found").
			WithType(asset.ErrTypeNotFound).
			WithTag("asset", name)
	}

	f.resolved = append(f.resolved, name)
	return f.newAsset(name), nil
}

func (f *fakeAssets) Release(a asset.Asset) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.released = append(f.released, a.Name())
}

func (f *fakeAssets) held() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return len(f.resolved) - len(f.released)
}

func originAssets() *fakeAssets {
	return newFakeAssets(func(name string) asset.Asset {
		return &originAsset{name: name}
	})
}

func encodePlacements(t *testing.T, placements ...Placement) []byte {
	data, err := Encode(NewFile(placements))
	require.NoError(t, err)
	return data
}

func testLibrary(t *testing.T) *asset.Library {
	c, err := asset.ParseCatalog([]byte(`
assets:
  - name: hut
    min: [-1, 0, -1]
    max: [1, 2, 1]
  - name: tower
    min: [-0.5, 0, -0.5]
    max: [0.5, 10, 0.5]
`))
	require.NoError(t, err)
	return asset.NewLibrary(c)
}

func TestOpen(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		placements := []Placement{
			{Asset: "hut", X: -100, Y: 42},
			{Asset: "tower", X: 7, Y: 0},
			{Asset: "hut", X: 32767, Y: -32768},
		}
		data := encodePlacements(t, placements...)
		assets := originAssets()

		tile, err := Open("data/tile/1.pst", data, assets)
		require.NoError(t, err)
		require.NotEmpty(t, tile.ID)
		require.Equal(t, "data/tile/1.pst", tile.Path)
		require.Equal(t, len(placements), tile.Len())

		for i, item := range tile.Items() {
			require.Equal(t, placements[i].X, item.X)
			require.Equal(t, placements[i].Y, item.Y)
			require.Equal(t, placements[i].Asset, item.Asset.Name())
		}
		require.Equal(t, []string{"hut", "tower", "hut"}, assets.resolved)
		require.Equal(t, 3, assets.held())

		tile.close()
		require.Zero(t, assets.held())
	})

	t.Run("empty tile", func(t *testing.T) {
		data := encodePlacements(t)

		tile, err := Open("empty.pst", data, originAssets())
		require.NoError(t, err)
		require.Zero(t, tile.Len())
	})

	t.Run("asset resolution failure rolls back earlier items", func(t *testing.T) {
		data := encodePlacements(t,
			Placement{Asset: "a", X: 0},
			Placement{Asset: "b", X: 1},
			Placement{Asset: "c", X: 2},
			Placement{Asset: "d", X: 3},
		)

		assets := originAssets()
		assets.failOn["c"] = true

		tile, err := Open("rollback.pst", data, assets)
		require.Error(t, err)
		require.Nil(t, tile)
		require.Equal(t, ErrTypeAssetResolutionFailed, errors.Type(err))
		require.Equal(t, []string{"a", "b"}, assets.resolved)
		require.Equal(t, []string{"a", "b"}, assets.released)
		require.Zero(t, assets.held())
	})

	t.Run("asset resolution failure on the first item holds nothing", func(t *testing.T) {
		data := encodePlacements(t, Placement{Asset: "a"}, Placement{Asset: "b"})

		assets := originAssets()
		assets.failOn["a"] = true

		_, err := Open("rollback.pst", data, assets)
		require.Error(t, err)
		require.Equal(t, ErrTypeAssetResolutionFailed, errors.Type(err))
		require.Empty(t, assets.resolved)
		require.Empty(t, assets.released)
	})

	t.Run("decode failure resolves nothing", func(t *testing.T) {
		assets := originAssets()

		_, err := Open("short.pst", []byte{1, 2, 3}, assets)
		require.Error(t, err)
		require.Equal(t, ErrTypeCorruptFile, errors.Type(err))
		require.Empty(t, assets.resolved)
	})

	t.Run("missing asset registry", func(t *testing.T) {
		_, err := Open("a.pst", encodePlacements(t), nil)
		require.Error(t, err)
		require.Equal(t, ErrTypeMissingAssetRegistry, errors.Type(err))
	})

	t.Run("path is copied", func(t *testing.T) {
		path := []byte("tile.pst")

		tile, err := Open(string(path), encodePlacements(t), originAssets())
		require.NoError(t, err)

		path[0] = 'x'
		require.Equal(t, "tile.pst", tile.Path)
	})
}

func TestTileCollideLine(t *testing.T) {
	newTile := func(t *testing.T, placements ...Placement) *Tile {
		tile, err := Open("line.pst", encodePlacements(t, placements...), originAssets())
		require.NoError(t, err)
		return tile
	}

	t.Run("nearest hit wins over table order", func(t *testing.T) {
		tile := newTile(t,
			Placement{Asset: "a", X: 0, Y: 0},
			Placement{Asset: "b", X: 5, Y: 0},
			Placement{Asset: "c", X: 10, Y: 0},
		)

		hit, ok := tile.CollideLine(vec.New(6, 0, 0), vec.New(-20, 0, 0))
		require.True(t, ok)
		require.Equal(t, vec.New(5, 0, 0), hit)

		hit, ok = tile.CollideLine(vec.New(12, 0, 0), vec.New(-20, 0, 0))
		require.True(t, ok)
		require.Equal(t, vec.New(10, 0, 0), hit)

		hit, ok = tile.CollideLine(vec.New(-3, 0, 0), vec.New(20, 0, 0))
		require.True(t, ok)
		require.Equal(t, vec.New(0, 0, 0), hit)
	})

	t.Run("item y is the world z axis", func(t *testing.T) {
		tile := newTile(t, Placement{Asset: "a", X: 3, Y: -4})

		hit, ok := tile.CollideLine(vec.New(0, 1, 0), vec.New(0, -1, 0))
		require.True(t, ok)
		require.Equal(t, vec.New(3, 0, -4), hit)
	})

	t.Run("ties keep the earlier item", func(t *testing.T) {
		tile := newTile(t,
			Placement{Asset: "a", X: -5},
			Placement{Asset: "b", X: 5},
		)

		hit, ok := tile.CollideLine(vec.New(0, 0, 0), vec.New(0, 0, 1))
		require.True(t, ok)
		require.Equal(t, vec.New(-5, 0, 0), hit)

		tile = newTile(t,
			Placement{Asset: "b", X: 5},
			Placement{Asset: "a", X: -5},
		)

		hit, ok = tile.CollideLine(vec.New(0, 0, 0), vec.New(0, 0, 1))
		require.True(t, ok)
		require.Equal(t, vec.New(5, 0, 0), hit)
	})

	t.Run("query is translated into the item frame", func(t *testing.T) {
		var gotStart, gotEnd vec.Vector3f
		assets := newFakeAssets(func(name string) asset.Asset {
			return &recordingAsset{
				name: name,
				onLine: func(start, end vec.Vector3f) {
					gotStart, gotEnd = start, end
				},
			}
		})

		tile, err := Open("frame.pst", encodePlacements(t, Placement{Asset: "a", X: 10, Y: 20}), assets)
		require.NoError(t, err)

		_, ok := tile.CollideLine(vec.New(11, 5, 22), vec.New(12, -5, 23))
		require.False(t, ok)
		require.Equal(t, vec.New(1, 5, 2), gotStart)
		require.Equal(t, vec.New(2, -5, 3), gotEnd)
	})

	t.Run("boxes", func(t *testing.T) {
		lib := testLibrary(t)
		tile, err := Open("boxes.pst", encodePlacements(t,
			Placement{Asset: "hut", X: 0, Y: 0},
			Placement{Asset: "hut", X: 10, Y: 0},
		), lib)
		require.NoError(t, err)

		hit, ok := tile.CollideLine(vec.New(-5, 1, 0), vec.New(15, 1, 0))
		require.True(t, ok)
		require.True(t, hit.EqualWithEpsilon(vec.New(-1, 1, 0), 0.0001))

		hit, ok = tile.CollideLine(vec.New(15, 1, 0), vec.New(-5, 1, 0))
		require.True(t, ok)
		require.True(t, hit.EqualWithEpsilon(vec.New(11, 1, 0), 0.0001))

		_, ok = tile.CollideLine(vec.New(-5, 1, 5), vec.New(15, 1, 5))
		require.False(t, ok)

		tile.close()
		require.Zero(t, lib.Loaded())
	})
}

func TestTileCollideSphere(t *testing.T) {
	t.Run("hit is returned in tile space", func(t *testing.T) {
		lib := testLibrary(t)
		tile, err := Open("sphere.pst", encodePlacements(t, Placement{Asset: "hut", X: 5, Y: 3}), lib)
		require.NoError(t, err)

		hit, ok := tile.CollideSphere(vec.New(5, 4, 3), 3)
		require.True(t, ok)
		require.Equal(t, vec.New(5, 2, 3), hit)

		_, ok = tile.CollideSphere(vec.New(0, 4, 3), 1)
		require.False(t, ok)
	})

	t.Run("nearest hit to the center wins", func(t *testing.T) {
		tile, err := Open("sphere.pst", encodePlacements(t,
			Placement{Asset: "a", X: 0, Y: 0},
			Placement{Asset: "b", X: 5, Y: 0},
			Placement{Asset: "c", X: 10, Y: 0},
		), originAssets())
		require.NoError(t, err)

		hit, ok := tile.CollideSphere(vec.New(9, 0, 0), 100)
		require.True(t, ok)
		require.Equal(t, vec.New(10, 0, 0), hit)
	})
}

func TestTileNoHit(t *testing.T) {
	assets := newFakeAssets(func(name string) asset.Asset {
		return &missAsset{name: name}
	})

	tile, err := Open("miss.pst", encodePlacements(t,
		Placement{Asset: "a", X: 0},
		Placement{Asset: "b", X: 5},
	), assets)
	require.NoError(t, err)

	_, ok := tile.CollideLine(vec.New(-10, 0, 0), vec.New(10, 0, 0))
	require.False(t, ok)

	_, ok = tile.CollideSphere(vec.New(0, 0, 0), 50)
	require.False(t, ok)

	empty, err := Open("empty.pst", encodePlacements(t), assets)
	require.NoError(t, err)

	_, ok = empty.CollideLine(vec.New(-10, 0, 0), vec.New(10, 0, 0))
	require.False(t, ok)
}

// recordingAsset never hits and reports the local query it was given.
type recordingAsset struct {
	name   string
	onLine func(start, end vec.Vector3f)
}

func (a *recordingAsset) Name() string {
	return a.name
}

func (a *recordingAsset) CollideLine(start, end vec.Vector3f) (vec.Vector3f, bool) {
	a.onLine(start, end)
	return vec.Vector3f{}, false
}

func (a *recordingAsset) CollideSphere(center vec.Vector3f, radius float32) (vec.Vector3f, bool) {
	return vec.Vector3f{}, false
}

func setAssetIndex(data []byte, numAssets, item int, index uint16) {
	off := HeaderSize + numAssets*NameLen + item*ItemSize + 4
	binary.LittleEndian.PutUint16(data[off:], index)
}
