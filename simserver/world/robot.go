package world

import (
	"math"

	"github.com/bytearena/box2d"
	"github.com/simarena/simarena/common/fieldtransform"
	"github.com/simarena/simarena/common/rng"
	"github.com/simarena/simarena/common/utils/number"
	"github.com/simarena/simarena/common/utils/vector"
	"github.com/simarena/simarena/physics"
	"github.com/simarena/simarena/protocol"
)

// Robot is one simulated team robot: a planar rigid body plus the dribbler
// and kicker models. Velocity commands are applied as bounded accelerations
// at every substep until replaced.
type Robot struct {
	rng   *rng.Rng
	specs protocol.RobotSpecs
	world *physics.World
	body  *box2d.B2Body

	command    *protocol.RobotCommand
	chargedKick bool

	perfectDribble bool
	dribbling      bool
	holdingBall    bool

	flipped      bool
	lastSendTime int64

	errFn func(*protocol.SimulatorError)
}

func NewRobot(r *rng.Rng, specs protocol.RobotSpecs, w *physics.World,
	pos vector.Vector2, dir float64, errFn func(*protocol.SimulatorError)) *Robot {

	bodydef := box2d.MakeB2BodyDef()
	bodydef.Position.Set(pos.GetX()*physics.SimulatorScale, pos.GetY()*physics.SimulatorScale)
	bodydef.Angle = dir
	bodydef.Type = box2d.B2BodyType.B2_dynamicBody
	bodydef.AllowSleep = false

	body := w.CreateBody(&bodydef)

	shape := box2d.MakeB2CircleShape()
	scaledRadius := specs.Radius * physics.SimulatorScale
	shape.SetRadius(scaledRadius)

	fixturedef := box2d.MakeB2FixtureDef()
	fixturedef.Shape = &shape
	fixturedef.Density = specs.Mass / (math.Pi * scaledRadius * scaledRadius)
	fixturedef.Friction = robotFloorFriction
	fixturedef.Restitution = ballRobotRestitution
	body.CreateFixtureFromDef(&fixturedef)

	return &Robot{
		rng:   r,
		specs: specs,
		world: w,
		body:  body,
		errFn: errFn,
	}
}

func (r *Robot) Destroy() {
	r.world.DestroyBody(r.body)
}

func (r *Robot) Specs() protocol.RobotSpecs {
	return r.specs
}

// Position returns the robot center in engine units, z = 0.
func (r *Robot) Position() vector.Vector3 {
	pos := r.body.GetPosition()
	return vector.MakeVector3(pos.X, pos.Y, 0)
}

func (r *Robot) Dir() float64 {
	return r.body.GetAngle()
}

func (r *Robot) IsFlipped() bool {
	return r.flipped
}

// SetFlipped marks the robot as upside-down; the next tick boundary replaces
// it with a fresh instance on the border line.
func (r *Robot) SetFlipped(flipped bool) {
	r.flipped = flipped
}

func (r *Robot) GetLastSendTime() int64 {
	return r.lastSendTime
}

func (r *Robot) SetDribbleMode(perfect bool) {
	if r.perfectDribble != perfect {
		r.StopDribbling()
	}
	r.perfectDribble = perfect
}

func (r *Robot) StopDribbling() {
	r.dribbling = false
	r.holdingBall = false
}

// SetCommand records the pending radio command and fabricates the robot's
// synchronous response. The caller stamps time and team.
func (r *Robot) SetCommand(command protocol.RobotCommand, ball *Ball, charge bool) protocol.RadioResponse {
	cmd := command
	r.command = &cmd
	r.chargedKick = charge

	return protocol.RadioResponse{
		ID:           r.specs.ID,
		Generation:   r.specs.Generation,
		BallDetected: r.ballInDribbler(ball),
		CapCharged:   charge,
	}
}

// Begin applies the pending command for one substep: velocity control,
// dribbling and a one-shot kick.
func (r *Robot) Begin(ball *Ball, timeStep float64) {
	if r.flipped {
		return
	}

	var targetLocal vector.Vector2
	var targetAngular float64
	if r.command != nil && r.command.MoveCommand != nil {
		move := r.command.MoveCommand
		targetLocal = vector.MakeVector2(move.Forward, move.Left).Limit(r.specs.VelocityMax)
		targetAngular = number.Clamp(move.Angular, -r.specs.AngularMax, r.specs.AngularMax)
	}

	target := targetLocal.Rotate(r.Dir()).MultScalar(physics.SimulatorScale)
	current := r.body.GetLinearVelocity()
	delta := target.Sub(vector.MakeVector2(current.X, current.Y))
	maxDelta := r.specs.AccelerationMax * physics.SimulatorScale * timeStep
	delta = delta.Limit(maxDelta)
	r.body.SetLinearVelocity(box2d.MakeB2Vec2(current.X+delta.GetX(), current.Y+delta.GetY()))

	angularDelta := number.Clamp(targetAngular-r.body.GetAngularVelocity(),
		-r.specs.AccelerationMax*timeStep*4, r.specs.AccelerationMax*timeStep*4)
	r.body.SetAngularVelocity(r.body.GetAngularVelocity() + angularDelta)

	if r.command != nil && r.command.DribblerSpeed != nil && *r.command.DribblerSpeed > 0 {
		r.dribbling = true
	} else if r.command != nil {
		r.StopDribbling()
	}

	inDribbler := r.ballInDribbler(ball)
	if r.dribbling && inDribbler {
		r.holdingBall = true
		ball.SetCover(0.9)
		if r.perfectDribble {
			// rigid hold: the ball moves with the dribbler center
			center := r.dribblerCenter()
			ballPos := ball.Position().Plane()
			v := r.body.GetLinearVelocity()
			pull := center.Sub(ballPos).MultScalar(1 / timeStep)
			held := vector.MakeVector2(v.X, v.Y).Add(pull.Limit(0.5 * physics.SimulatorScale))
			ball.body.SetLinearVelocity(box2d.MakeB2Vec2(held.GetX(), held.GetY()))
		} else {
			// frictional contact: accelerate the ball toward the dribbler
			center := r.dribblerCenter()
			force := center.Sub(ball.Position().Plane()).SetMag(0.02 * physics.SimulatorScale)
			ball.body.ApplyForceToCenter(box2d.MakeB2Vec2(force.GetX(), force.GetY()), true)
		}
	} else if r.holdingBall {
		r.holdingBall = false
	}

	if r.command != nil && r.command.KickSpeed != nil && *r.command.KickSpeed > 0 &&
		r.chargedKick && inDribbler {

		speed := *r.command.KickSpeed
		angle := 0.0
		if r.command.KickAngle != nil && *r.command.KickAngle > 0 {
			angle = number.DegreeToRadian(*r.command.KickAngle)
			speed = math.Min(speed, r.specs.ShootChipMax)
		} else {
			speed = math.Min(speed, r.specs.ShootLinearMax)
		}
		dir := vector.MakeVector2(math.Cos(r.Dir()), math.Sin(r.Dir()))
		ball.Kick(dir, speed, angle)

		r.StopDribbling()
		r.command.KickSpeed = nil
	}
}

func (r *Robot) dribblerCenter() vector.Vector2 {
	offset := vector.MakeVector2(r.specs.Radius*physics.SimulatorScale, 0).Rotate(r.Dir())
	return r.Position().Plane().Add(offset)
}

// DribblerCorner returns a corner of the dribbler bar in engine units.
func (r *Robot) DribblerCorner(right bool) vector.Vector3 {
	lateral := r.specs.DribblerWidth / 2
	if right {
		lateral = -lateral
	}
	offset := vector.MakeVector2(r.specs.Radius, lateral).
		MultScalar(physics.SimulatorScale).Rotate(r.Dir())
	return r.Position().Plane().Add(offset).WithZ(BallRadius * physics.SimulatorScale)
}

func (r *Robot) ballInDribbler(ball *Ball) bool {
	if ball == nil {
		return false
	}
	center := r.dribblerCenter()
	reach := (BallRadius + 0.05) * physics.SimulatorScale
	return ball.Position().Plane().Dist(center) <= reach
}

// Move teleports the robot; nil fields keep their current value.
// Coordinates are meters.
func (r *Robot) Move(m *protocol.TeleportRobot) {
	pos := r.body.GetPosition()
	if m.X != nil {
		pos.X = *m.X * physics.SimulatorScale
	}
	if m.Y != nil {
		pos.Y = *m.Y * physics.SimulatorScale
	}
	angle := r.body.GetAngle()
	if m.Orientation != nil {
		angle = *m.Orientation
	}
	r.body.SetTransform(pos, angle)

	v := r.body.GetLinearVelocity()
	if m.VX != nil {
		v.X = *m.VX * physics.SimulatorScale
	}
	if m.VY != nil {
		v.Y = *m.VY * physics.SimulatorScale
	}
	r.body.SetLinearVelocity(v)
	if m.VAngular != nil {
		r.body.SetAngularVelocity(*m.VAngular)
	}
}

// RestoreState overwrites the full physical state, in meters.
func (r *Robot) RestoreState(s protocol.PhysicalRobotState) {
	r.body.SetTransform(box2d.MakeB2Vec2(s.PX*physics.SimulatorScale, s.PY*physics.SimulatorScale), s.Angle)
	r.body.SetLinearVelocity(box2d.MakeB2Vec2(s.VX*physics.SimulatorScale, s.VY*physics.SimulatorScale))
	r.body.SetAngularVelocity(s.Omega)
	r.flipped = false
}

// WriteState fills the ground-truth state in meters.
func (r *Robot) WriteState(s *protocol.PhysicalRobotState) {
	pos := r.body.GetPosition()
	v := r.body.GetLinearVelocity()
	s.ID = r.specs.ID
	s.PX = pos.X / physics.SimulatorScale
	s.PY = pos.Y / physics.SimulatorScale
	s.Angle = r.body.GetAngle()
	s.VX = v.X / physics.SimulatorScale
	s.VY = v.Y / physics.SimulatorScale
	s.Omega = r.body.GetAngularVelocity()
}

// Update writes a noisy detection of this robot and records the send time.
func (r *Robot) Update(det *protocol.DetectionRobot, stddevP float64, stddevPhi float64,
	time int64, positionOffset vector.Vector3, transform *fieldtransform.FieldTransform) {

	pos := r.Position().DivScalar(physics.SimulatorScale)
	px := pos.GetX() + positionOffset.GetX() + r.rng.NormalFloat(stddevP)
	py := pos.GetY() + positionOffset.GetY() + r.rng.NormalFloat(stddevP)
	phi := r.Dir() + r.rng.NormalFloat(stddevPhi)

	x, y := protocol.ToVision(transform, vector.MakeVector2(px, py))
	det.Confidence = 1.0
	det.RobotID = r.specs.ID
	det.X = x
	det.Y = y
	det.Orientation = transform.ApplyAngle(phi)
	det.PixelX = x * 0.05
	det.PixelY = y * 0.05
	det.Height = r.specs.Height * 1000

	r.lastSendTime = time
}
