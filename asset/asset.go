// Package asset describes the collision capability tiles place on the ground
// plane, and provides a reference-counted library of simple box assets.
package asset

import (
	"github.com/lyndon/punani-strike/vec"
)

const (
	ErrTypeNotFound       = "asset-not-found"
	ErrTypeInvalidCatalog = "asset-invalid-catalog"
)

// Asset is an opaque placed resource able to answer collision queries in its
// own local frame.
type Asset interface {
	// Returns the name the asset was resolved with.
	Name() string

	// Tests the line segment from start to end against the asset. The returned
	// point is the first hit along the segment.
	CollideLine(start, end vec.Vector3f) (vec.Vector3f, bool)

	// Tests the sphere against the asset. The returned point is the point of
	// the asset closest to the sphere center.
	CollideSphere(center vec.Vector3f, radius float32) (vec.Vector3f, bool)
}

// Registry hands out counted asset references by name.
type Registry interface {
	// Resolves an asset by name. Every successful call takes one reference
	// that must be given back with Release.
	Resolve(name string) (Asset, error)

	// Gives back one reference previously taken with Resolve.
	Release(Asset)
}
