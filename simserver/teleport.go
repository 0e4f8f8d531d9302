package simserver

import (
	"fmt"

	"github.com/dhconnelly/rtreego"

	"github.com/simarena/simarena/common/utils/vector"
	"github.com/simarena/simarena/physics"
	"github.com/simarena/simarena/protocol"
	"github.com/simarena/simarena/simserver/world"
)

// robots closer than this to a safely teleported ball are stopped in place
const stopRobotsRadius = 1.5

// pushing a robot away from the ball gives up after this many radial steps
const freePositionMaxSteps = 100

func flipFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	neg := -*f
	return &neg
}

func (s *Simulator) moveBall(ball *protocol.TeleportBall) {
	// a regular teleport takes the ball away from any dribbler
	if ball.ByForce == nil || !*ball.ByForce {
		for _, team := range []map[uint32]*robotEntry{s.data.robotsBlue, s.data.robotsYellow} {
			for _, id := range sortedIDs(team) {
				team[id].robot.StopDribbling()
			}
		}
	}

	b := *ball
	if s.data.flip {
		b.X = flipFloat(b.X)
		b.Y = flipFloat(b.Y)
		b.VX = flipFloat(b.VX)
		b.VY = flipFloat(b.VY)
	}

	if b.TeleportSafely != nil && *b.TeleportSafely {
		if b.X == nil || b.Y == nil {
			s.aggregator.Aggregate(&protocol.SimulatorError{
				Code:    "TELEPORT_SAFELY_PARTIAL",
				Message: "teleporting the ball safely with partial coordinates is not possible",
			}, ErrorSourceConfig)
			return
		}
		s.safelyTeleportBall(*b.X, *b.Y)
	}

	s.data.ball.Move(&b)
}

func (s *Simulator) moveRobot(robot *protocol.TeleportRobot) {
	if robot.ID.Team == nil || robot.ID.ID == nil {
		return
	}
	isBlue := *robot.ID.Team == protocol.TeamBlue
	id := *robot.ID.ID

	list := s.data.robotsYellow
	specs := s.data.specsYellow
	source := ErrorSourceYellow
	if isBlue {
		list = s.data.robotsBlue
		specs = s.data.specsBlue
		source = ErrorSourceBlue
	}
	_, isPresent := list[id]

	if robot.Present != nil {
		switch {
		case *robot.Present && !isPresent:
			// add the requested robot
			if _, ok := specs[id]; !ok {
				s.aggregator.Aggregate(&protocol.SimulatorError{
					Code:    "CREATE_UNSPEC_ROBOT",
					Message: fmt.Sprintf("trying to create robot %d, but no spec for this robot was found", id),
				}, ErrorSourceConfig)
			} else if robot.X == nil || robot.Y == nil {
				s.aggregator.Aggregate(&protocol.SimulatorError{
					Code:    "CREATE_NOPOS_ROBOT",
					Message: fmt.Sprintf("trying to create robot %d without giving a position", id),
				}, ErrorSourceConfig)
			} else {
				s.createRobot(list, *robot.X, *robot.Y, id, specs, source)
				// presence changed: queued detections still show the old
				// world and would confuse the tracking
				s.resetVisionPackets()
			}
		case !*robot.Present && isPresent:
			// remove the robot
			entry := list[id]
			entry.robot.StopDribbling()
			entry.robot.Destroy()
			delete(list, id)
			s.resetVisionPackets()
			return
		case !*robot.Present && !isPresent:
			return
		}
		// fall through: a robot that is and stays on the field is just used
	} else if !isPresent {
		return
	}

	// recheck in case the presence handling above changed the map
	entry, ok := list[id]
	if !ok {
		return
	}

	r := *robot
	if s.data.flip {
		r.X = flipFloat(r.X)
		r.Y = flipFloat(r.Y)
		r.VX = flipFloat(r.VX)
		r.VY = flipFloat(r.VY)
	}

	if r.ByForce == nil || !*r.ByForce {
		entry.robot.StopDribbling()
	}
	entry.robot.Move(&r)
}

// robotFootprint indexes one robot's bounding square for spatial queries.
type robotFootprint struct {
	robot *world.Robot
	rect  *rtreego.Rect
}

func (f *robotFootprint) Bounds() *rtreego.Rect {
	return f.rect
}

// robotIndex builds an r-tree over all robot footprints, in meters.
func (s *Simulator) robotIndex() (*rtreego.Rtree, []*robotFootprint) {
	tree := rtreego.NewTree(2, 4, 16)
	footprints := make([]*robotFootprint, 0)

	for _, team := range []map[uint32]*robotEntry{s.data.robotsBlue, s.data.robotsYellow} {
		for _, id := range sortedIDs(team) {
			robot := team[id].robot
			pos := robot.Position().DivScalar(physics.SimulatorScale)
			radius := robot.Specs().Radius
			rect, err := rtreego.NewRect(
				rtreego.Point{pos.GetX() - radius, pos.GetY() - radius},
				[]float64{2 * radius, 2 * radius},
			)
			if err != nil {
				continue
			}
			footprint := &robotFootprint{robot: robot, rect: rect}
			tree.Insert(footprint)
			footprints = append(footprints, footprint)
		}
	}
	return tree, footprints
}

func overlapCheck(p0 vector.Vector2, r0 float64, p1 vector.Vector2, r1 float64) bool {
	return p0.Dist(p1) <= r0+r1
}

// safelyTeleportBall clears the target position before the ball arrives:
// overlapping robots are pushed to a free position, robots close enough to
// run the ball over are stopped in place. Coordinates in meters.
func (s *Simulator) safelyTeleportBall(x float64, y float64) {
	newBallPos := vector.MakeVector2(x, y)
	tree, _ := s.robotIndex()

	queryRadius := stopRobotsRadius + 0.5
	rect, err := rtreego.NewRect(
		rtreego.Point{x - queryRadius, y - queryRadius},
		[]float64{2 * queryRadius, 2 * queryRadius},
	)
	if err != nil {
		return
	}

	for _, spatial := range tree.SearchIntersect(rect) {
		footprint := spatial.(*robotFootprint)
		robot := footprint.robot
		robotPos := robot.Position().Plane().DivScalar(physics.SimulatorScale)
		radius := robot.Specs().Radius

		if overlapCheck(newBallPos, world.BallRadius, robotPos, radius) {
			s.teleportRobotToFreePosition(robot, tree)
		} else if overlapCheck(newBallPos, stopRobotsRadius, robotPos, radius) {
			// remove the speed but keep the robot where it is
			zero := 0.0
			robot.Move(&protocol.TeleportRobot{VX: &zero, VY: &zero})
		}
	}
}

// teleportRobotToFreePosition pushes the robot radially away from the ball
// until it overlaps no other robot, then commands it there with zero
// velocity. Gives up with TELEPORT_STUCK on a crowded field.
func (s *Simulator) teleportRobotToFreePosition(robot *world.Robot, tree *rtreego.Rtree) {
	robotPos := robot.Position().Plane().DivScalar(physics.SimulatorScale)
	ballPos := s.data.ball.Position().Plane().DivScalar(physics.SimulatorScale)
	direction := robotPos.Sub(ballPos).Normalize()
	radius := robot.Specs().Radius
	distance := 2 * (world.BallRadius + radius)

	for step := 0; step < freePositionMaxSteps; step++ {
		robotPos = robotPos.Add(direction.MultScalar(2 * distance))

		rect, err := rtreego.NewRect(
			rtreego.Point{robotPos.GetX() - 2*radius, robotPos.GetY() - 2*radius},
			[]float64{4 * radius, 4 * radius},
		)
		if err != nil {
			return
		}

		valid := true
		for _, spatial := range tree.SearchIntersect(rect) {
			other := spatial.(*robotFootprint).robot
			if other == robot {
				continue
			}
			otherPos := other.Position().Plane().DivScalar(physics.SimulatorScale)
			if overlapCheck(robotPos, radius, otherPos, other.Specs().Radius) {
				valid = false
				break
			}
		}

		if valid {
			x, y := robotPos.Get()
			zero := 0.0
			robot.Move(&protocol.TeleportRobot{X: &x, Y: &y, VX: &zero, VY: &zero})
			return
		}
	}

	s.aggregator.Aggregate(&protocol.SimulatorError{
		Code:    "TELEPORT_STUCK",
		Message: fmt.Sprintf("no free position found for robot %d", robot.Specs().ID),
	}, ErrorSourceConfig)
}
