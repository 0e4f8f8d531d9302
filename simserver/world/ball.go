package world

import (
	"math"

	"github.com/bytearena/box2d"
	"github.com/simarena/simarena/common/fieldtransform"
	"github.com/simarena/simarena/common/rng"
	"github.com/simarena/simarena/common/utils/vector"
	"github.com/simarena/simarena/physics"
	"github.com/simarena/simarena/protocol"
)

// Ball is the single game ball. The planar engine integrates x/y; the height
// axis is integrated here, including floor bounces and chip damping.
//
// Position, Speed and AddDetection work in engine units
// (meters * physics.SimulatorScale); Kick, Move, RestoreState and
// WriteBallState take or fill meters and convert themselves.
type Ball struct {
	rng   *rng.Rng
	world *physics.World
	body  *box2d.B2Body

	z, vz          float64
	pendingGravity float64

	// planar speed at the last kick, used for the slide/roll switch
	kickSpeed float64

	// fraction of the ball hidden from the cameras, reset every substep and
	// raised by a covering dribbler
	cover float64

	firstHopPending bool
	invalid         bool

	errFn func(*protocol.SimulatorError)
}

func NewBall(r *rng.Rng, w *physics.World, errFn func(*protocol.SimulatorError)) *Ball {
	bodydef := box2d.MakeB2BodyDef()
	bodydef.Position.Set(0, 0)
	bodydef.Type = box2d.B2BodyType.B2_dynamicBody
	bodydef.AllowSleep = false
	bodydef.Bullet = true

	body := w.CreateBody(&bodydef)

	shape := box2d.MakeB2CircleShape()
	shape.SetRadius(BallRadius * physics.SimulatorScale)

	fixturedef := box2d.MakeB2FixtureDef()
	fixturedef.Shape = &shape
	scaledRadius := BallRadius * physics.SimulatorScale
	fixturedef.Density = BallMass / (math.Pi * scaledRadius * scaledRadius)
	fixturedef.Friction = ballRobotFriction
	fixturedef.Restitution = ballRobotRestitution
	body.CreateFixtureFromDef(&fixturedef)

	ball := &Ball{
		rng:   r,
		world: w,
		body:  body,
		z:     BallRadius * physics.SimulatorScale,
		errFn: errFn,
	}
	w.RegisterVertical(ball)
	return ball
}

func (b *Ball) Destroy() {
	b.world.UnregisterVertical(b)
	b.world.DestroyBody(b.body)
}

// Begin runs at the start of every substep, before forces are applied.
func (b *Ball) Begin() {
	b.cover = 0

	pos := b.body.GetPosition()
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) ||
		math.Abs(pos.X) > ballPositionLimit*physics.SimulatorScale ||
		math.Abs(pos.Y) > ballPositionLimit*physics.SimulatorScale {
		if !b.invalid && b.errFn != nil {
			b.errFn(&protocol.SimulatorError{
				Code:    "BALL_INVALID",
				Message: "ball left the physical world and will be re-created",
			})
		}
		b.invalid = true
	}
}

func (b *Ball) IsInvalid() bool {
	return b.invalid
}

func (b *Ball) ApplyGravity(g float64) {
	b.pendingGravity = g
}

func (b *Ball) StepVertical(dt float64) {
	floor := BallRadius * physics.SimulatorScale
	airborne := b.z > floor+1e-6 || b.vz > 0

	if airborne {
		b.vz += b.pendingGravity * dt
		b.z += b.vz * dt
		if b.z <= floor {
			b.z = floor
			b.vz = -b.vz * ballFloorRestitution
			if b.firstHopPending {
				v := b.body.GetLinearVelocity()
				b.body.SetLinearVelocity(box2d.MakeB2Vec2(v.X*chipDampingXYFirstHop, v.Y*chipDampingXYFirstHop))
				b.firstHopPending = false
			}
			if b.vz < 0.05*physics.SimulatorScale {
				b.vz = 0
			}
		}
	} else {
		// grounded: slide until the speed drops below the switch fraction of
		// the kick speed, then roll
		v := b.body.GetLinearVelocity()
		speed := math.Hypot(v.X, v.Y)
		if speed > 0 {
			decel := ballRollDecel
			if speed > b.kickSpeed*ballSwitchRatio {
				decel = ballSlideDecel
			}
			newSpeed := speed - decel*physics.SimulatorScale*dt
			if newSpeed < 0 {
				newSpeed = 0
			}
			scale := newSpeed / speed
			b.body.SetLinearVelocity(box2d.MakeB2Vec2(v.X*scale, v.Y*scale))
		}
	}
	b.pendingGravity = 0
}

// Position returns the ball center in engine units.
func (b *Ball) Position() vector.Vector3 {
	pos := b.body.GetPosition()
	return vector.MakeVector3(pos.X, pos.Y, b.z)
}

func (b *Ball) Speed() vector.Vector3 {
	v := b.body.GetLinearVelocity()
	return vector.MakeVector3(v.X, v.Y, b.vz)
}

// SetCover raises the hidden fraction of the ball for this substep.
func (b *Ball) SetCover(cover float64) {
	if cover > b.cover {
		b.cover = cover
	}
}

// Kick sets the ball speed from a kicker impulse. dir is the planar shot
// direction, speed the total speed in m/s, chipAngle the launch angle in
// radians (0 for a flat kick).
func (b *Ball) Kick(dir vector.Vector2, speed float64, chipAngle float64) {
	planar := dir.Normalize().MultScalar(speed * math.Cos(chipAngle) * physics.SimulatorScale)
	b.body.SetLinearVelocity(box2d.MakeB2Vec2(planar.GetX(), planar.GetY()))
	b.vz = speed * math.Sin(chipAngle) * physics.SimulatorScale
	b.kickSpeed = planar.Mag()
	b.firstHopPending = b.vz > 0
}

// Move teleports the ball; nil x, y, vx and vy keep their current value,
// a nil z puts the ball on the floor and a nil vz zeroes the vertical speed.
// Coordinates are meters.
func (b *Ball) Move(m *protocol.TeleportBall) {
	pos := b.body.GetPosition()
	if m.X != nil {
		pos.X = *m.X * physics.SimulatorScale
	}
	if m.Y != nil {
		pos.Y = *m.Y * physics.SimulatorScale
	}
	b.body.SetTransform(pos, 0)

	if m.Z != nil {
		b.z = math.Max(*m.Z, BallRadius) * physics.SimulatorScale
	} else {
		b.z = BallRadius * physics.SimulatorScale
	}

	v := b.body.GetLinearVelocity()
	if m.VX != nil {
		v.X = *m.VX * physics.SimulatorScale
	}
	if m.VY != nil {
		v.Y = *m.VY * physics.SimulatorScale
	}
	b.body.SetLinearVelocity(v)
	if m.VZ != nil {
		b.vz = *m.VZ * physics.SimulatorScale
	} else {
		b.vz = 0
	}
	b.body.SetAngularVelocity(0)

	b.kickSpeed = math.Hypot(v.X, v.Y)
	b.invalid = false
}

// RestoreState overwrites the full physical state, in meters.
func (b *Ball) RestoreState(s *protocol.PhysicalBallState) {
	b.body.SetTransform(box2d.MakeB2Vec2(s.PX*physics.SimulatorScale, s.PY*physics.SimulatorScale), 0)
	b.body.SetLinearVelocity(box2d.MakeB2Vec2(s.VX*physics.SimulatorScale, s.VY*physics.SimulatorScale))
	b.z = math.Max(s.PZ, BallRadius) * physics.SimulatorScale
	b.vz = s.VZ * physics.SimulatorScale
	b.invalid = false
}

// WriteBallState fills the ground-truth state in meters.
func (b *Ball) WriteBallState(s *protocol.PhysicalBallState) {
	pos := b.Position().DivScalar(physics.SimulatorScale)
	speed := b.Speed().DivScalar(physics.SimulatorScale)
	s.PX, s.PY, s.PZ = pos.Get()
	s.VX, s.VY, s.VZ = speed.Get()
}

// Update projects the real ball into the given camera. It fills det and
// reports whether the ball is visible; an invisible ball leaves det
// unwritten and the caller strips it.
func (b *Ball) Update(det *protocol.DetectionBall, stddev float64, stddevArea float64,
	cameraPos vector.Vector3, enableInvisible bool, visibilityThreshold float64,
	positionOffset vector.Vector3, transform *fieldtransform.FieldTransform) bool {

	return b.AddDetection(det, b.Position(), stddev, stddevArea, cameraPos,
		enableInvisible, visibilityThreshold, positionOffset, transform)
}

// AddDetection writes a ball detection for an arbitrary world position in
// engine units. Returns false when the detection is refused.
func (b *Ball) AddDetection(det *protocol.DetectionBall, pos vector.Vector3,
	stddev float64, stddevArea float64, cameraPos vector.Vector3,
	enableInvisible bool, visibilityThreshold float64,
	positionOffset vector.Vector3, transform *fieldtransform.FieldTransform) bool {

	px, py, pz := pos.DivScalar(physics.SimulatorScale).Get()
	if math.IsNaN(px) || math.IsNaN(py) {
		return false
	}

	visibility := 1 - b.cover
	if enableInvisible && visibility < visibilityThreshold {
		return false
	}

	// a ball above the floor projects away from the camera onto the ground
	// plane
	camX, camY, camZ := cameraPos.Get()
	if pz > 0 && camZ > pz {
		factor := camZ / (camZ - pz)
		px = camX + (px-camX)*factor
		py = camY + (py-camY)*factor
	}

	px += positionOffset.GetX() + b.rng.NormalFloat(stddev)
	py += positionOffset.GetY() + b.rng.NormalFloat(stddev)

	area := 16.0 + b.rng.NormalFloat(stddevArea)
	if area < 0 {
		area = 0
	}

	x, y := protocol.ToVision(transform, vector.MakeVector2(px, py))
	det.Confidence = visibility
	det.Area = area
	det.X = x
	det.Y = y
	det.PixelX = (x - camX*1000) * 0.05
	det.PixelY = (y - camY*1000) * 0.05
	return true
}
