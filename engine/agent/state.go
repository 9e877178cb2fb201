// Package agent implements the observation encoder that turns engine
// snapshots into query, entity and mask tensors for an attention policy.
package agent

import (
	"fmt"

	engine "github.com/CaptainGlac1er/rocket-learn/engine"
)

// ObsBuilder encodes snapshots for one episode. Configuration is fixed at
// construction; the timer slices are reset-scoped and belong to a single
// episode, so builders must not be shared across concurrently running episodes.
//
// Encode reads only configuration and may be called concurrently for
// different observers of the same step. Reset must not overlap Encode.
type ObsBuilder struct {
	maxPlayers int
	pads       engine.BoostPadCatalog
	padBoost   []float32 // pickup amount per pad, precomputed from the catalog

	// Time since last demolition per player and since last pickup per pad.
	// Allocated by Reset; not folded into the tensors yet.
	demoTimers  []float32
	boostTimers []float32
}

// NewObsBuilder creates a builder for rosters of up to maxPlayers cars.
func NewObsBuilder(maxPlayers int, pads engine.BoostPadCatalog) (*ObsBuilder, error) {
	if maxPlayers < 1 {
		return nil, fmt.Errorf("%w: maxPlayers must be positive, got %d", ErrInvalidConfig, maxPlayers)
	}
	if pads.Len() == 0 {
		return nil, fmt.Errorf("%w: empty boost pad catalog", ErrInvalidConfig)
	}
	// Inverted observers read reversed occupancy against canonical locations.
	if !pads.MirrorSymmetric() {
		return nil, fmt.Errorf("%w: boost pad catalog is not point-symmetric", ErrInvalidConfig)
	}
	b := &ObsBuilder{
		maxPlayers: maxPlayers,
		pads:       pads,
		padBoost:   make([]float32, pads.Len()),
	}
	for i := range b.padBoost {
		b.padBoost[i] = float32(pads.PickupAmount(i))
	}
	return b, nil
}

// MaxPlayers returns the configured roster bound.
func (b *ObsBuilder) MaxPlayers() int { return b.maxPlayers }

// NumPads returns the catalog size.
func (b *ObsBuilder) NumPads() int { return b.pads.Len() }

// NumRows returns the fixed entity-matrix row count: ball, player block, pad block.
func (b *ObsBuilder) NumRows() int { return 1 + b.maxPlayers + b.pads.Len() }

// padBase is the first row of the pad block. It does not depend on roster size.
func (b *ObsBuilder) padBase() int { return 1 + b.maxPlayers }

// Reset prepares the builder for a new episode starting at initial.
func (b *ObsBuilder) Reset(initial *engine.GameState) {
	b.demoTimers = resize(b.demoTimers, len(initial.Players))
	b.boostTimers = resize(b.boostTimers, len(initial.BoostPads))
}

// DemoTimers returns the per-player demolition timers of the current episode.
func (b *ObsBuilder) DemoTimers() []float32 { return b.demoTimers }

// BoostTimers returns the per-pad pickup timers of the current episode.
func (b *ObsBuilder) BoostTimers() []float32 { return b.boostTimers }

// resize returns a zeroed slice of length n, reusing buf when it is large enough.
func resize(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}
