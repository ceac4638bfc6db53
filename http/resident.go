package http

import (
	"sync"

	"github.com/lyndon/punani-strike/tile"
)

// ResidentTiles keeps every tile queried over HTTP loaded until Close. Each
// request still takes its own handle, but only the first one on a path reads
// and decodes the file.
type ResidentTiles struct {
	// The registry tiles are acquired from.
	Tiles Tiles

	mutex  sync.Mutex
	pinned map[string]*tile.Handle
}

func (r *ResidentTiles) Acquire(path string) (*tile.Handle, error) {
	if err := r.pin(path); err != nil {
		return nil, err
	}
	return r.Tiles.Acquire(path)
}

func (r *ResidentTiles) Release(h *tile.Handle) {
	r.Tiles.Release(h)
}

// Len returns the number of pinned tiles.
func (r *ResidentTiles) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.pinned)
}

// Close releases the pinned tiles.
func (r *ResidentTiles) Close() {
	r.mutex.Lock()
	pinned := r.pinned
	r.pinned = nil
	r.mutex.Unlock()

	for _, h := range pinned {
		r.Tiles.Release(h)
	}
}

func (r *ResidentTiles) pin(path string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.pinned[path]; ok {
		return nil
	}

	h, err := r.Tiles.Acquire(path)
	if err != nil {
		return err
	}

	if r.pinned == nil {
		r.pinned = make(map[string]*tile.Handle)
	}
	r.pinned[path] = h
	return nil
}
