package agent

// EntityKind is the one-hot discriminant carried by every populated row.
type EntityKind uint8

const (
	KindMain     EntityKind = iota // 0: the observer, query vector only
	KindTeammate                   // 1
	KindOpponent                   // 2
	KindBall                       // 3
	KindBoost                      // 4
	NumKinds
)

func (k EntityKind) String() string {
	switch k {
	case KindMain:
		return "main"
	case KindTeammate:
		return "teammate"
	case KindOpponent:
		return "opponent"
	case KindBall:
		return "ball"
	case KindBoost:
		return "boost"
	default:
		return "unknown"
	}
}

// Feature layout shared by the query vector and entity rows.
//
//	[0-4]   entity kind one-hot (main, teammate, opponent, ball, boost)
//	[5-7]   position
//	[8-10]  linear velocity
//	[11-13] forward
//	[14-16] up
//	[17-19] angular velocity
//	[20]    boost amount (pads: amount granted on pickup)
//	[21]    demolished (pads: available)
//	[22]    on ground
//	[23]    has flip
//	[24-31] previous action (query only)
const (
	OffKind     = 0
	OffPos      = 5
	OffVel      = 8
	OffForward  = 11
	OffUp       = 14
	OffAngVel   = 17
	OffBoost    = 20
	OffStatus   = 21
	OffOnGround = 22
	OffHasFlip  = 23
	OffAction   = 24

	// ActionDim is the size of the previous-action vector:
	// throttle, steer, yaw, pitch, roll, jump, boost, handbrake.
	ActionDim = 8

	EntityDim = OffAction             // 24
	QueryDim  = OffAction + ActionDim // 32
)
