package asset

import (
	"math"

	"github.com/lyndon/punani-strike/vec"
)

// Box is an axis-aligned box collision proxy.
type Box struct {
	name string
	Min  vec.Vector3f
	Max  vec.Vector3f
}

func NewBox(name string, min, max vec.Vector3f) *Box {
	return &Box{
		name: name,
		Min:  min,
		Max:  max,
	}
}

func (b *Box) Name() string {
	return b.name
}

// CollideLine runs a slab test restricted to the segment. A segment starting
// inside the box hits at its start.
func (b *Box) CollideLine(start, end vec.Vector3f) (vec.Vector3f, bool) {
	dir := vec.Sub(end, start)
	s := components(start)
	d := components(dir)
	lo := components(b.Min)
	hi := components(b.Max)

	tMin := float32(0)
	tMax := float32(1)
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if s[i] < lo[i] || s[i] > hi[i] {
				return vec.Vector3f{}, false
			}
			continue
		}

		t0 := (lo[i] - s[i]) / d[i]
		t1 := (hi[i] - s[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}

		tMin = float32(math.Max(float64(tMin), float64(t0)))
		tMax = float32(math.Min(float64(tMax), float64(t1)))
		if tMin > tMax {
			return vec.Vector3f{}, false
		}
	}

	return vec.Add(start, vec.Mul(dir, tMin)), true
}

func (b *Box) CollideSphere(center vec.Vector3f, radius float32) (vec.Vector3f, bool) {
	closest := vec.Vector3f{
		X: vec.Clamp(center.X, b.Min.X, b.Max.X),
		Y: vec.Clamp(center.Y, b.Min.Y, b.Max.Y),
		Z: vec.Clamp(center.Z, b.Min.Z, b.Max.Z),
	}

	if vec.Distance(closest, center) > float64(radius) {
		return vec.Vector3f{}, false
	}
	return closest, true
}

func components(v vec.Vector3f) [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}
