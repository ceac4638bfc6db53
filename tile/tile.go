// Package tile loads tile files, which place named assets on the ground
// plane, keeps them in a reference-counted registry, and answers collision
// queries against every asset a tile places.
package tile

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/lyndon/punani-strike/asset"
	"github.com/lyndon/punani-strike/vec"
)

const (
	ErrTypeIOFailure             = "tile-io-failure"
	ErrTypeBadMagic              = "tile-bad-magic"
	ErrTypeCorruptFile           = "tile-corrupt-file"
	ErrTypeAssetResolutionFailed = "tile-asset-resolution-failed"
	ErrTypeAllocationFailure     = "tile-allocation-failure"
	ErrTypeEncode                = "tile-encode-failure"
	ErrTypeMissingAssetRegistry  = "tile-missing-asset-registry"
)

// PlacedItem is an asset placed at a ground position. X maps to the world X
// axis and Y to the world Z axis.
type PlacedItem struct {
	X     int16
	Y     int16
	Asset asset.Asset
}

// Offset returns the item position in tile space.
func (i PlacedItem) Offset() vec.Vector3f {
	return vec.Horizontal(float32(i.X), float32(i.Y))
}

// Tile is the resolved form of a tile file. Its items never change after
// construction.
type Tile struct {
	// A unique id for this tile instance.
	ID string

	// The path the tile was loaded from.
	Path string

	items  []PlacedItem
	assets asset.Registry

	// Guarded by the owning registry.
	refs int
}

// Open decodes data and resolves every item asset through assets. Either all
// item assets are resolved, or none is held when Open returns.
func Open(path string, data []byte, assets asset.Registry) (*Tile, error) {
	if assets == nil {
		return nil, errors.New("no asset registry to resolve tile assets").
			WithType(ErrTypeMissingAssetRegistry).
			WithTag("path", path)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, err
	}

	items := make([]PlacedItem, 0, len(f.Items))
	committed := false
	defer func() {
		if committed {
			return
		}
		for _, item := range items {
			assets.Release(item.Asset)
		}
	}()

	for i, entry := range f.Items {
		name, ok := f.Name(entry)
		if !ok {
			return nil, errors.New("tile item references an asset outside the name table").
				WithType(ErrTypeCorruptFile).
				WithTag("path", path).
				WithTag("item", i).
				WithTag("asset_index", entry.Asset)
		}

		a, err := assets.Resolve(name)
		if err != nil {
			return nil, errors.New("resolving tile asset failed").
				WithType(ErrTypeAssetResolutionFailed).
				WithTag("path", path).
				WithTag("item", i).
				WithTag("asset", name).
				Wrap(err)
		}

		items = append(items, PlacedItem{
			X:     entry.X,
			Y:     entry.Y,
			Asset: a,
		})
	}

	committed = true
	return &Tile{
		ID:     uuid.NewString(),
		Path:   strings.Clone(path),
		items:  items,
		assets: assets,
	}, nil
}

// Len returns the number of placed items.
func (t *Tile) Len() int {
	return len(t.items)
}

// Items returns a copy of the placed items in table order.
func (t *Tile) Items() []PlacedItem {
	items := make([]PlacedItem, len(t.items))
	copy(items, t.items)
	return items
}

// close releases the asset reference held by every item. Items are left in
// place so that handles still being queried keep seeing the same tile.
func (t *Tile) close() {
	for _, item := range t.items {
		t.assets.Release(item.Asset)
	}
}
