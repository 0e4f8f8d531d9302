package world

// Friction and restitution between robots, ball and field come from
// empirical measurements of the real system:
//
//	ball vs. robot: restitution about 0.60, friction 0.18
//	ball vs. floor: restitution sqrt(h'/h) = 0.56, sliding friction 0.35
//	robot vs. floor: both as low as possible
const (
	BallRadius = 0.0215
	BallMass   = 0.046

	ballRobotRestitution = 0.60
	ballRobotFriction    = 0.18

	ballFloorRestitution = 0.56

	// planar deceleration of a rolling/sliding ball, m/s²
	ballSlideDecel = 3.9
	ballRollDecel  = 0.35
	// fraction of the kick speed where sliding turns into rolling
	ballSwitchRatio = 0.69

	robotFloorFriction = 0.22

	// chip bounces damp the planar speed on the first hop only
	chipDampingXYFirstHop = 0.715

	// a ball this far outside the world is considered lost to physics
	ballPositionLimit = 20.0
)
