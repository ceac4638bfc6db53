package tile

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/lyndon/punani-strike/asset"
	"github.com/lyndon/punani-strike/blob"
)

// Registry keeps loaded tiles and shares them between everyone acquiring the
// same path. A tile is unloaded when its last handle is released.
type Registry struct {
	// The loader used to read tile files. Defaults to a FileLoader.
	Loader blob.Loader

	// The registry tile item assets are resolved with.
	Assets asset.Registry

	initOnce sync.Once
	mutex    sync.Mutex
	tiles    []*Tile
}

// Handle is one counted reference on a tile. Releasing a handle more than once
// has no effect.
type Handle struct {
	*Tile

	released atomic.Bool
}

func (r *Registry) init() {
	if r.Loader == nil {
		r.Loader = &blob.FileLoader{}
	}
}

// Acquire returns a handle on the tile loaded from path, loading the file if
// no tile with that exact path is loaded.
func (r *Registry) Acquire(path string) (*Handle, error) {
	r.initOnce.Do(r.init)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if t := r.find(path); t != nil {
		t.refs++
		instrumentCacheHit()
		return &Handle{Tile: t}, nil
	}

	start := time.Now()
	t, err := r.open(path)
	instrumentLoadLatency(start)
	if err != nil {
		instrumentLoadError(err)
		logs.WithTag("path", path).Warn(err)
		return nil, err
	}

	t.refs = 1
	r.tiles = append(r.tiles, t)

	instrumentIncreaseTileGauge()
	instrumentCountLoad()
	logs.WithTag("path", path).
		WithTag("tile_id", t.ID).
		WithTag("items", t.Len()).
		Info("tile loaded")

	return &Handle{Tile: t}, nil
}

// Release gives back the reference held by h. Nil handles and handles that
// were already released are ignored.
func (r *Registry) Release(h *Handle) {
	if h == nil || h.Tile == nil {
		return
	}
	if !h.released.CompareAndSwap(false, true) {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	t := h.Tile
	if t.refs == 0 {
		return
	}

	t.refs--
	if t.refs > 0 {
		return
	}

	r.remove(t)
	t.close()

	instrumentDecreaseTileGauge()
	logs.WithTag("path", t.Path).
		WithTag("tile_id", t.ID).
		Info("tile unloaded")
}

// Lookup returns the loaded tile for path without taking a reference.
func (r *Registry) Lookup(path string) (*Tile, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t := r.find(path)
	return t, t != nil
}

// Refs returns the number of references held on the tile loaded from path.
func (r *Registry) Refs(path string) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if t := r.find(path); t != nil {
		return t.refs
	}
	return 0
}

// Len returns the number of loaded tiles.
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.tiles)
}

// Paths returns the paths of the loaded tiles in load order.
func (r *Registry) Paths() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	paths := make([]string, len(r.tiles))
	for i, t := range r.tiles {
		paths[i] = t.Path
	}
	return paths
}

// Close unloads every tile regardless of outstanding handles. Handles released
// afterwards are ignored.
func (r *Registry) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, t := range r.tiles {
		t.refs = 0
		t.close()
		instrumentDecreaseTileGauge()
	}
	r.tiles = nil
}

func (r *Registry) open(path string) (*Tile, error) {
	data, err := r.Loader.Load(path)
	if err != nil {
		errType := ErrTypeIOFailure
		if errors.IsType(err, blob.ErrTypeTooLarge) {
			errType = ErrTypeAllocationFailure
		}

		return nil, errors.New("loading tile file failed").
			WithType(errType).
			WithTag("path", path).
			Wrap(err)
	}
	defer r.Loader.Release(data)

	return Open(path, data, r.Assets)
}

func (r *Registry) find(path string) *Tile {
	for _, t := range r.tiles {
		if t.Path == path {
			return t
		}
	}
	return nil
}

func (r *Registry) remove(t *Tile) {
	for i, v := range r.tiles {
		if v == t {
			r.tiles = append(r.tiles[:i], r.tiles[i+1:]...)
			return
		}
	}
}
