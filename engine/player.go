package engine

// Team identifies one side of the match.
type Team uint8

const (
	TeamBlue   Team = iota // 0: canonical frame
	TeamOrange             // 1: mirrored frame
)

// Valid reports whether t is one of the two known teams.
func (t Team) Valid() bool { return t == TeamBlue || t == TeamOrange }

// Inverted reports whether observers on this team see the world through the
// inverted variants of every entity.
func (t Team) Inverted() bool { return t == TeamOrange }

func (t Team) String() string {
	switch t {
	case TeamBlue:
		return "blue"
	case TeamOrange:
		return "orange"
	default:
		return "unknown"
	}
}

// PlayerData holds one car's state for a single snapshot.
// InvertedCarData carries the same physics as CarData in the opposing team's frame.
type PlayerData struct {
	CarID           int32
	Team            Team
	CarData         PhysicsObject
	InvertedCarData PhysicsObject
	BoostAmount     float64 // 0..1
	IsDemoed        bool
	OnGround        bool
	HasFlip         bool
}

// NewPlayerData fills InvertedCarData from car.
func NewPlayerData(carID int32, team Team, car PhysicsObject) PlayerData {
	return PlayerData{
		CarID:           carID,
		Team:            team,
		CarData:         car,
		InvertedCarData: car.Inverted(),
	}
}

// Physics returns the car state in the requested frame.
func (p *PlayerData) Physics(inverted bool) *PhysicsObject {
	if inverted {
		return &p.InvertedCarData
	}
	return &p.CarData
}
