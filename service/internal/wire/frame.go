// internal/wire/frame.go — JSON frames streamed by simulator workers.
package wire

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	engine "github.com/CaptainGlac1er/rocket-learn/engine"
)

// FrameType distinguishes the messages exchanged on the feed.
type FrameType string

const (
	FrameReset        FrameType = "reset"        // client: first snapshot of an episode
	FrameStep         FrameType = "step"         // client: next snapshot plus each car's last action
	FrameClose        FrameType = "close"        // client: episode finished
	FrameObservations FrameType = "observations" // server: encoded observations for a step
	FrameError        FrameType = "error"        // server: the last client frame was rejected
)

// Vec is a JSON 3-vector.
type Vec [3]float64

func (v Vec) vec3() mgl64.Vec3 { return mgl64.Vec3(v) }

// Quat is a JSON quaternion in w, x, y, z order.
type Quat [4]float64

// Physics is the wire form of a rigid body. Orientation is given either as a
// quaternion or as explicit forward/up vectors; the quaternion wins when set.
type Physics struct {
	Position        Vec   `json:"position"`
	LinearVelocity  Vec   `json:"linearVelocity"`
	AngularVelocity Vec   `json:"angularVelocity"`
	Quaternion      *Quat `json:"quaternion,omitempty"`
	Forward         Vec   `json:"forward"`
	Up              Vec   `json:"up"`
}

// Player is the wire form of one car.
type Player struct {
	CarID    int32   `json:"carId"`
	Team     uint8   `json:"team"`
	Car      Physics `json:"car"`
	Boost    float64 `json:"boost"` // 0..100 as reported by the game
	Demoed   bool    `json:"demoed"`
	OnGround bool    `json:"onGround"`
	HasFlip  bool    `json:"hasFlip"`
}

// State is the wire form of a snapshot, always in the canonical (blue) frame.
type State struct {
	Players   []Player `json:"players"`
	Ball      Physics  `json:"ball"`
	BoostPads []bool   `json:"boostPads"`
}

// ClientFrame is any frame sent by a simulator worker. EpisodeID is optional;
// when set on step and close frames it must name the running episode.
type ClientFrame struct {
	Type      FrameType `json:"type"`
	EpisodeID string    `json:"episodeId,omitempty"`
	State     *State    `json:"state,omitempty"`
	Actions   Actions   `json:"actions,omitempty"`
}

// Actions maps car id to the previous control vector.
type Actions map[int32][]float32

// ObservationPayload is one observer's tensors on the wire.
type ObservationPayload struct {
	CarID    int32       `json:"carId" msgpack:"car_id"`
	Query    [][]float32 `json:"query" msgpack:"query"`
	Entities [][]float32 `json:"entities" msgpack:"entities"`
	Mask     []bool      `json:"mask" msgpack:"mask"`
}

// ServerFrame is any frame sent back to the worker.
type ServerFrame struct {
	Type         FrameType            `json:"type"`
	EpisodeID    string               `json:"episodeId,omitempty"`
	Step         int                  `json:"step"`
	Observations []ObservationPayload `json:"observations,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// ErrMissingState is returned for reset/step frames without a snapshot.
var ErrMissingState = errors.New("frame carries no state")

func (p Physics) toEngine() engine.PhysicsObject {
	if p.Quaternion != nil {
		q := mgl64.Quat{W: p.Quaternion[0], V: mgl64.Vec3{p.Quaternion[1], p.Quaternion[2], p.Quaternion[3]}}
		return engine.NewPhysicsObjectFromQuat(p.Position.vec3(), p.LinearVelocity.vec3(), p.AngularVelocity.vec3(), q)
	}
	return engine.PhysicsObject{
		Position:        p.Position.vec3(),
		LinearVelocity:  p.LinearVelocity.vec3(),
		AngularVelocity: p.AngularVelocity.vec3(),
		Forward:         p.Forward.vec3(),
		Up:              p.Up.vec3(),
	}
}

// ToEngine converts a wire snapshot into an engine.GameState, deriving every
// inverted variant. Boost is rescaled from the game's 0..100 to 0..1.
func (s *State) ToEngine() (engine.GameState, error) {
	if s == nil {
		return engine.GameState{}, ErrMissingState
	}
	players := make([]engine.PlayerData, len(s.Players))
	for i, wp := range s.Players {
		team := engine.Team(wp.Team)
		if !team.Valid() {
			return engine.GameState{}, fmt.Errorf("%w: car %d has team %d", engine.ErrMalformedSnapshot, wp.CarID, wp.Team)
		}
		if wp.Boost < 0 || wp.Boost > 100 {
			return engine.GameState{}, fmt.Errorf("%w: car %d boost %v out of range", engine.ErrMalformedSnapshot, wp.CarID, wp.Boost)
		}
		p := engine.NewPlayerData(wp.CarID, team, wp.Car.toEngine())
		p.BoostAmount = wp.Boost / 100
		p.IsDemoed = wp.Demoed
		p.OnGround = wp.OnGround
		p.HasFlip = wp.HasFlip
		players[i] = p
	}
	pads := make([]bool, len(s.BoostPads))
	copy(pads, s.BoostPads)
	return engine.NewGameState(players, s.Ball.toEngine(), pads), nil
}
