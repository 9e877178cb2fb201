package engine

import "github.com/go-gl/mathgl/mgl64"

// invertMask flips a vector into the opposing team's frame: a 180° rotation
// about the vertical axis, so x and y change sign and z is untouched.
var invertMask = mgl64.Vec3{-1, -1, 1}

// InvertVec returns v expressed in the opposing team's frame.
func InvertVec(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0] * invertMask[0], v[1] * invertMask[1], v[2] * invertMask[2]}
}

// PhysicsObject is the rigid-body state of a car or the ball.
// Forward and Up are unit vectors; the ball leaves them zero.
type PhysicsObject struct {
	Position        mgl64.Vec3
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Forward         mgl64.Vec3
	Up              mgl64.Vec3
}

// NewPhysicsObjectFromQuat builds a PhysicsObject whose orientation vectors are
// derived from q. Forward is the body x axis and Up the body z axis.
func NewPhysicsObjectFromQuat(pos, linVel, angVel mgl64.Vec3, q mgl64.Quat) PhysicsObject {
	q = q.Normalize()
	return PhysicsObject{
		Position:        pos,
		LinearVelocity:  linVel,
		AngularVelocity: angVel,
		Forward:         q.Rotate(mgl64.Vec3{1, 0, 0}),
		Up:              q.Rotate(mgl64.Vec3{0, 0, 1}),
	}
}

// Inverted returns the same physical state in the opposing team's frame.
func (p PhysicsObject) Inverted() PhysicsObject {
	return PhysicsObject{
		Position:        InvertVec(p.Position),
		LinearVelocity:  InvertVec(p.LinearVelocity),
		AngularVelocity: InvertVec(p.AngularVelocity),
		Forward:         InvertVec(p.Forward),
		Up:              InvertVec(p.Up),
	}
}
