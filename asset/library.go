package asset

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Library is a Registry backed by a catalog of box assets. Assets are built on
// first resolution and dropped once their last reference is released.
type Library struct {
	mutex   sync.Mutex
	defs    map[string]BoxDef
	entries map[string]*libraryEntry
}

type libraryEntry struct {
	asset *Box
	refs  int
}

func NewLibrary(c *Catalog) *Library {
	defs := make(map[string]BoxDef, len(c.Assets))
	for _, a := range c.Assets {
		defs[a.Name] = a
	}

	return &Library{
		defs:    defs,
		entries: make(map[string]*libraryEntry),
	}
}

func (l *Library) Resolve(name string) (Asset, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if e, ok := l.entries[name]; ok {
		e.refs++
		return e.asset, nil
	}

	def, ok := l.defs[name]
	if !ok {
		err := errors.New("asset not found").
			WithType(ErrTypeNotFound).
			WithTag("asset", name)
		instrumentResolveError(err)
		return nil, err
	}

	e := &libraryEntry{
		asset: def.box(),
		refs:  1,
	}
	l.entries[name] = e
	instrumentIncreaseAssetGauge()

	logs.WithTag("asset", name).Debug("asset loaded")
	return e.asset, nil
}

func (l *Library) Release(a Asset) {
	if a == nil {
		return
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	e, ok := l.entries[a.Name()]
	if !ok || Asset(e.asset) != a {
		return
	}

	e.refs--
	if e.refs > 0 {
		return
	}

	delete(l.entries, a.Name())
	instrumentDecreaseAssetGauge()

	logs.WithTag("asset", a.Name()).Debug("asset unloaded")
}

// Refs returns the number of references held on the named asset.
func (l *Library) Refs(name string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if e, ok := l.entries[name]; ok {
		return e.refs
	}
	return 0
}

// Loaded returns the number of assets currently referenced.
func (l *Library) Loaded() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return len(l.entries)
}
