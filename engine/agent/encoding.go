package agent

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	engine "github.com/CaptainGlac1er/rocket-learn/engine"
)

// Observation is one observer's encoded view of a snapshot.
// Query is logically a 1×QueryDim row; QueryBatch exposes that shape.
// Entities and Mask always have NumRows rows. Mask[i] is true when row i is
// padding the model must ignore.
type Observation struct {
	Query    [QueryDim]float32
	Entities [][EntityDim]float32
	Mask     []bool
}

// QueryBatch returns the query with its leading batch dimension.
func (o *Observation) QueryBatch() [][QueryDim]float32 {
	return [][QueryDim]float32{o.Query}
}

// Shape returns the row counts of the query and the entity matrix.
func (o *Observation) Shape() (queryRows, entityRows int) {
	return 1, len(o.Entities)
}

// reset zeroes o and sizes it for rows entity rows, reusing its buffers.
func (o *Observation) reset(rows int) {
	o.Query = [QueryDim]float32{}
	if cap(o.Entities) < rows {
		o.Entities = make([][EntityDim]float32, rows)
	} else {
		o.Entities = o.Entities[:rows]
		clear(o.Entities)
	}
	if cap(o.Mask) < rows {
		o.Mask = make([]bool, rows)
	} else {
		o.Mask = o.Mask[:rows]
		clear(o.Mask)
	}
}

// BuildObs is the allocating form of Encode.
func (b *ObsBuilder) BuildObs(observer *engine.PlayerData, state *engine.GameState, prevAction []float32) (Observation, error) {
	var out Observation
	err := b.Encode(observer, state, prevAction, &out)
	return out, err
}

// Encode writes observer's view of state into out, reusing out's buffers.
// On error out is left in an unspecified state and must not be consumed.
func (b *ObsBuilder) Encode(observer *engine.PlayerData, state *engine.GameState, prevAction []float32, out *Observation) error {
	if err := state.Validate(b.pads.Len()); err != nil {
		return err
	}
	if n := len(state.Players); n > b.maxPlayers {
		return fmt.Errorf("%w: %d players, configured for %d", ErrRosterOverflow, n, b.maxPlayers)
	}
	if len(prevAction) != ActionDim {
		return fmt.Errorf("%w: got %d, want %d", ErrActionSize, len(prevAction), ActionDim)
	}
	self := state.PlayerIndex(observer.CarID)
	if self < 0 {
		return fmt.Errorf("%w: car %d", ErrUnknownObserver, observer.CarID)
	}

	me := &state.Players[self]
	invert := me.Team.Inverted()
	out.reset(b.NumRows())

	// Query: the observer itself.
	q := out.Query[:]
	q[OffKind+int(KindMain)] = 1
	writePlayer(q, me, invert)
	copy(q[OffAction:], prevAction)

	// Row 0: ball.
	ball := state.BallPhysics(invert)
	row := out.Entities[0][:]
	row[OffKind+int(KindBall)] = 1
	writeVec(row, OffPos, ball.Position)
	writeVec(row, OffVel, ball.LinearVelocity)
	writeVec(row, OffAngVel, ball.AngularVelocity)

	// Rows 1..: other players in snapshot order.
	n := 1
	for i := range state.Players {
		if i == self {
			continue
		}
		other := &state.Players[i]
		row := out.Entities[n][:]
		if other.Team == me.Team {
			row[OffKind+int(KindTeammate)] = 1
		} else {
			row[OffKind+int(KindOpponent)] = 1
		}
		writePlayer(row, other, invert)
		n++
	}

	// Trailing pad block at a fixed offset.
	base := b.padBase()
	occupancy := state.Pads(invert)
	for i := 0; i < b.pads.Len(); i++ {
		row := out.Entities[base+i][:]
		row[OffKind+int(KindBoost)] = 1
		writeVec(row, OffPos, b.pads.Location(i))
		row[OffBoost] = b.padBoost[i]
		row[OffStatus] = boolFloat(occupancy[i])
	}

	// Observer-relative position and velocity on every populated row.
	for r := range out.Entities {
		if r >= n && r < base {
			continue
		}
		row := &out.Entities[r]
		for j := 0; j < 3; j++ {
			row[OffPos+j] -= q[OffPos+j]
			row[OffVel+j] -= q[OffVel+j]
		}
	}

	return PaddingMask(b.maxPlayers, len(state.Players), b.pads.Len(), out.Mask)
}

// PaddingMask marks the trailing maxPlayers-numPlayers rows of the player
// block in out, which must have 1+maxPlayers+numPads entries. The ball row and
// the pad block are never marked; a full roster marks nothing.
func PaddingMask(maxPlayers, numPlayers, numPads int, out []bool) error {
	if numPlayers > maxPlayers {
		return fmt.Errorf("%w: %d players, configured for %d", ErrRosterOverflow, numPlayers, maxPlayers)
	}
	if want := 1 + maxPlayers + numPads; len(out) != want {
		return fmt.Errorf("%w: mask has %d rows, want %d", ErrInvalidConfig, len(out), want)
	}
	clear(out)
	end := 1 + maxPlayers
	for r := end - (maxPlayers - numPlayers); r < end; r++ {
		out[r] = true
	}
	return nil
}

// writePlayer fills the kinematic and status fields shared by the query and
// player rows.
func writePlayer(dst []float32, p *engine.PlayerData, invert bool) {
	car := p.Physics(invert)
	writeVec(dst, OffPos, car.Position)
	writeVec(dst, OffVel, car.LinearVelocity)
	writeVec(dst, OffForward, car.Forward)
	writeVec(dst, OffUp, car.Up)
	writeVec(dst, OffAngVel, car.AngularVelocity)
	dst[OffBoost] = float32(p.BoostAmount)
	dst[OffStatus] = boolFloat(p.IsDemoed)
	dst[OffOnGround] = boolFloat(p.OnGround)
	dst[OffHasFlip] = boolFloat(p.HasFlip)
}

func writeVec(dst []float32, off int, v mgl64.Vec3) {
	dst[off] = float32(v[0])
	dst[off+1] = float32(v[1])
	dst[off+2] = float32(v[2])
}

func boolFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
