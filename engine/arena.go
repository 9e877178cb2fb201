package engine

import "github.com/go-gl/mathgl/mgl64"

const (
	// LargePadHeight separates small pads (z ≈ 70) from large pads (z ≈ 73).
	LargePadHeight = 72.0

	SmallPadBoost = 0.12
	LargePadBoost = 1.0
)

// DefaultBoostLocations lists the 34 standard-arena pads in catalog order.
// The list is point-symmetric: pad i mirrors pad len-1-i, which is what lets
// reversed occupancy serve as the inverted occupancy.
var DefaultBoostLocations = []mgl64.Vec3{
	{0, -4240, 70},
	{-1792, -4184, 70},
	{1792, -4184, 70},
	{-3072, -4096, 73},
	{3072, -4096, 73},
	{-940, -3308, 70},
	{940, -3308, 70},
	{0, -2816, 70},
	{-3584, -2484, 70},
	{3584, -2484, 70},
	{-1788, -2300, 70},
	{1788, -2300, 70},
	{-2048, -1036, 70},
	{0, -1024, 70},
	{2048, -1036, 70},
	{-3584, 0, 73},
	{-1024, 0, 70},
	{1024, 0, 70},
	{3584, 0, 73},
	{-2048, 1036, 70},
	{0, 1024, 70},
	{2048, 1036, 70},
	{-1788, 2300, 70},
	{1788, 2300, 70},
	{-3584, 2484, 70},
	{3584, 2484, 70},
	{0, 2816, 70},
	{-940, 3308, 70},
	{940, 3308, 70},
	{-3072, 4096, 73},
	{3072, 4096, 73},
	{-1792, 4184, 70},
	{1792, 4184, 70},
	{0, 4240, 70},
}

// BoostPadCatalog is the immutable, ordered list of pad locations for an arena.
type BoostPadCatalog struct {
	locations []mgl64.Vec3
}

// NewBoostPadCatalog copies locs into a catalog.
func NewBoostPadCatalog(locs []mgl64.Vec3) BoostPadCatalog {
	c := BoostPadCatalog{locations: make([]mgl64.Vec3, len(locs))}
	copy(c.locations, locs)
	return c
}

// DefaultBoostPadCatalog returns the standard-arena catalog.
func DefaultBoostPadCatalog() BoostPadCatalog {
	return NewBoostPadCatalog(DefaultBoostLocations)
}

// Len returns the number of pads.
func (c BoostPadCatalog) Len() int { return len(c.locations) }

// Location returns the location of pad i.
func (c BoostPadCatalog) Location(i int) mgl64.Vec3 { return c.locations[i] }

// IsLarge reports whether pad i is a large (full refill) pad.
func (c BoostPadCatalog) IsLarge(i int) bool { return c.locations[i][2] >= LargePadHeight }

// PickupAmount returns the boost granted by pad i on pickup.
func (c BoostPadCatalog) PickupAmount(i int) float64 {
	if c.IsLarge(i) {
		return LargePadBoost
	}
	return SmallPadBoost
}

// MirrorSymmetric reports whether pad i and pad Len-1-i are mirror images,
// i.e. reversed occupancy is a valid inverted occupancy for this catalog.
func (c BoostPadCatalog) MirrorSymmetric() bool {
	n := len(c.locations)
	for i := 0; i < n; i++ {
		if !InvertVec(c.locations[i]).ApproxEqual(c.locations[n-1-i]) {
			return false
		}
	}
	return true
}
