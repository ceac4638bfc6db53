package tile

import (
	"github.com/lyndon/punani-strike/vec"
)

// CollideLine tests the segment from start to end against every placed item
// and returns the hit closest to start.
func (t *Tile) CollideLine(start, end vec.Vector3f) (vec.Vector3f, bool) {
	hit, ok := t.nearestHit(start, func(item PlacedItem, offset vec.Vector3f) (vec.Vector3f, bool) {
		return item.Asset.CollideLine(vec.Sub(start, offset), vec.Sub(end, offset))
	})

	instrumentCollision(lineQuery, ok)
	return hit, ok
}

// CollideSphere tests the sphere against every placed item and returns the hit
// closest to center.
func (t *Tile) CollideSphere(center vec.Vector3f, radius float32) (vec.Vector3f, bool) {
	hit, ok := t.nearestHit(center, func(item PlacedItem, offset vec.Vector3f) (vec.Vector3f, bool) {
		return item.Asset.CollideSphere(vec.Sub(center, offset), radius)
	})

	instrumentCollision(sphereQuery, ok)
	return hit, ok
}

// nearestHit runs test for every item with the item offset, moves local hits
// back to tile space and keeps the one closest to origin. Every item is
// tested. On equal distances the earlier item wins.
func (t *Tile) nearestHit(origin vec.Vector3f, test func(PlacedItem, vec.Vector3f) (vec.Vector3f, bool)) (vec.Vector3f, bool) {
	var (
		result   vec.Vector3f
		distance float64
		found    bool
	)

	for _, item := range t.items {
		offset := item.Offset()

		hit, ok := test(item, offset)
		if !ok {
			continue
		}
		hit = vec.Add(hit, offset)

		d := vec.Distance(origin, hit)
		if !found || d < distance {
			result = hit
			distance = d
			found = true
		}
	}

	return result, found
}
