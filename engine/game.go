// Package engine models point-in-time snapshots of a two-team car-soccer
// simulation: cars, the ball and boost pad occupancy, each carried in both the
// canonical and the inverted (opposing team) frame.
package engine

import "fmt"

const (
	// MaxTeamSize is the largest supported team; rosters never exceed 2*MaxTeamSize.
	MaxTeamSize = 3
	MaxPlayers  = 2 * MaxTeamSize
)

// GameState is an immutable snapshot of every entity at one tick.
// Callers must not mutate a GameState after handing it to an encoder.
type GameState struct {
	Players           []PlayerData
	Ball              PhysicsObject
	InvertedBall      PhysicsObject
	BoostPads         []bool // true = available
	InvertedBoostPads []bool
}

// NewGameState builds a snapshot from canonical-frame data, deriving the
// inverted ball and reversing pad occupancy. players are used as-is, so their
// InvertedCarData must already be filled (see NewPlayerData).
func NewGameState(players []PlayerData, ball PhysicsObject, pads []bool) GameState {
	inv := make([]bool, len(pads))
	for i, v := range pads {
		inv[len(pads)-1-i] = v
	}
	return GameState{
		Players:           players,
		Ball:              ball,
		InvertedBall:      ball.Inverted(),
		BoostPads:         pads,
		InvertedBoostPads: inv,
	}
}

// BallPhysics returns the ball in the requested frame.
func (g *GameState) BallPhysics(inverted bool) *PhysicsObject {
	if inverted {
		return &g.InvertedBall
	}
	return &g.Ball
}

// Pads returns pad occupancy in the requested frame.
func (g *GameState) Pads(inverted bool) []bool {
	if inverted {
		return g.InvertedBoostPads
	}
	return g.BoostPads
}

// PlayerIndex returns the index of the player with carID, or -1.
func (g *GameState) PlayerIndex(carID int32) int {
	for i := range g.Players {
		if g.Players[i].CarID == carID {
			return i
		}
	}
	return -1
}

// CountTeam returns the number of players on team t.
func (g *GameState) CountTeam(t Team) int {
	n := 0
	for i := range g.Players {
		if g.Players[i].Team == t {
			n++
		}
	}
	return n
}

// Validate checks that the snapshot can be encoded against a catalog of
// numPads pads. All failures wrap ErrMalformedSnapshot.
func (g *GameState) Validate(numPads int) error {
	if len(g.Players) == 0 {
		return fmt.Errorf("%w: no players", ErrMalformedSnapshot)
	}
	seen := make(map[int32]struct{}, len(g.Players))
	for i := range g.Players {
		p := &g.Players[i]
		if !p.Team.Valid() {
			return fmt.Errorf("%w: player %d has unknown team %d", ErrMalformedSnapshot, p.CarID, p.Team)
		}
		if _, dup := seen[p.CarID]; dup {
			return fmt.Errorf("%w: duplicate car id %d", ErrMalformedSnapshot, p.CarID)
		}
		seen[p.CarID] = struct{}{}
	}
	if len(g.BoostPads) != numPads {
		return fmt.Errorf("%w: %d pad flags for a catalog of %d", ErrMalformedSnapshot, len(g.BoostPads), numPads)
	}
	if len(g.InvertedBoostPads) != numPads {
		return fmt.Errorf("%w: %d inverted pad flags for a catalog of %d", ErrMalformedSnapshot, len(g.InvertedBoostPads), numPads)
	}
	return nil
}
