// Package query holds the collision queries clients send over HTTP and
// websocket, and the results returned for them.
package query

import (
	"math"
	"path/filepath"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/lyndon/punani-strike/tile"
	"github.com/lyndon/punani-strike/vec"
)

const (
	ErrTypeInvalid = "query-invalid"
)

// Line asks for the point of a tile nearest to Start that the segment from
// Start to End touches.
type Line struct {
	Tile  string       `json:"tile"`
	Start vec.Vector3f `json:"start"`
	End   vec.Vector3f `json:"end"`
}

func (q Line) Validate() error {
	if err := validateTilePath(q.Tile); err != nil {
		return err
	}
	if !finite(q.Start) || !finite(q.End) {
		return errors.New("line points must be finite").
			WithType(ErrTypeInvalid).
			WithTag("tile", q.Tile)
	}
	return nil
}

func (q Line) Run(t *tile.Tile) Result {
	hit, ok := t.CollideLine(q.Start, q.End)
	return newResult(q.Tile, hit, ok)
}

// Sphere asks for the point of a tile nearest to Center that a sphere of the
// given radius touches.
type Sphere struct {
	Tile   string       `json:"tile"`
	Center vec.Vector3f `json:"center"`
	Radius float32      `json:"radius"`
}

func (q Sphere) Validate() error {
	if err := validateTilePath(q.Tile); err != nil {
		return err
	}
	if !finite(q.Center) || !finite(vec.Vector3f{X: q.Radius}) {
		return errors.New("sphere values must be finite").
			WithType(ErrTypeInvalid).
			WithTag("tile", q.Tile)
	}
	if q.Radius < 0 {
		return errors.New("sphere radius is negative").
			WithType(ErrTypeInvalid).
			WithTag("tile", q.Tile).
			WithTag("radius", q.Radius)
	}
	return nil
}

func (q Sphere) Run(t *tile.Tile) Result {
	hit, ok := t.CollideSphere(q.Center, q.Radius)
	return newResult(q.Tile, hit, ok)
}

// Result is the outcome of a query. Point is set only when Hit is true.
type Result struct {
	Tile  string        `json:"tile"`
	Hit   bool          `json:"hit"`
	Point *vec.Vector3f `json:"point,omitempty"`
}

func newResult(path string, hit vec.Vector3f, ok bool) Result {
	res := Result{
		Tile: path,
		Hit:  ok,
	}
	if ok {
		res.Point = &hit
	}
	return res
}

// Error is the error body returned to clients.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(err error) Error {
	return Error{
		Type:    errors.Type(err),
		Message: err.Error(),
	}
}

// validateTilePath accepts only relative paths that stay below the tile root.
func validateTilePath(path string) error {
	if path == "" {
		return errors.New("missing tile path").
			WithType(ErrTypeInvalid)
	}
	if !filepath.IsLocal(path) {
		return errors.New("tile path must be local").
			WithType(ErrTypeInvalid).
			WithTag("tile", path)
	}
	return nil
}

func finite(v vec.Vector3f) bool {
	for _, f := range [...]float32{v.X, v.Y, v.Z} {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
