package simserver

import (
	"math"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/simarena/simarena/common/utils/vector"
	"github.com/simarena/simarena/physics"
	"github.com/simarena/simarena/protocol"
)

// visionPacket is one assembled vision frame: a serialized wrapper per
// camera plus the serialized ground truth. In partial mode emitTime is the
// scheduled delivery time; in free-running mode a single-shot timer replaces
// it.
type visionPacket struct {
	trace    uuid.UUID
	frames   [][]byte
	realData []byte
	emitTime int64
}

// checkCameraID reports whether p is visible in the given camera: its
// manhattan distance must come within 2*overlap of the nearest camera.
// Rectangular camera regions fall out of this when the cameras are
// distributed normally; a point at a seam appears in both neighbors.
func checkCameraID(cameraID int, p vector.Vector3, cameraPositions []vector.Vector3, overlap float64) bool {
	minDistance := math.MaxFloat64
	ownDistance := 0.0
	for i, cam := range cameraPositions {
		distance := cam.Plane().ManhattanDist(p.Plane())
		minDistance = math.Min(minDistance, distance)
		if i == cameraID {
			ownDistance = distance
		}
	}
	return ownDistance <= minDistance+2*overlap
}

func (s *Simulator) initializeDetection(detection *protocol.DetectionFrame, cameraID int) {
	detection.FrameNumber = s.lastFrameNumber[cameraID]
	s.lastFrameNumber[cameraID]++
	detection.CameraID = cameraID
	detection.TCapture = float64(s.time+s.visionDelay-s.visionProcessingTime) * 1e-9
	detection.TSent = float64(s.time+s.visionDelay) * 1e-9
	detection.Balls = []protocol.DetectionBall{}
	detection.RobotsBlue = []protocol.DetectionRobot{}
	detection.RobotsYellow = []protocol.DetectionRobot{}
}

// positionOffsetForCamera is the radial position bias of objects seen by a
// camera away from the field center.
func positionOffsetForCamera(offsetStrength float64, cameraPos vector.Vector3) vector.Vector3 {
	cam2d := cameraPos.Plane()
	if offsetStrength < 1e-9 {
		// do not produce an offset that tiny
		return vector.MakeNullVector3()
	}
	if cam2d.Mag() < offsetStrength {
		// do not normalize a 0 vector
		return cam2d.WithZ(0)
	}
	return cam2d.Normalize().MultScalar(offsetStrength).WithZ(0)
}

func (s *Simulator) createVisionPacket() visionPacket {
	numCameras := len(s.data.reportedCameraSetup)

	simState := protocol.SimulatorState{Time: s.time}

	detections := make([]protocol.DetectionFrame, numCameras)
	for i := 0; i < numCameras; i++ {
		s.initializeDetection(&detections[i], i)
	}

	simState.Ball = &protocol.PhysicalBallState{}
	s.data.ball.WriteBallState(simState.Ball)

	ballPosition := s.data.ball.Position().DivScalar(physics.SimulatorScale)
	if s.time-s.lastBallSendTime >= s.minBallDetectionTime {
		s.lastBallSendTime = s.time

		for cameraID := 0; cameraID < numCameras; cameraID++ {
			// at least one id is always valid
			if !checkCameraID(cameraID, ballPosition, s.data.cameraPositions, s.data.cameraOverlap) {
				continue
			}

			if s.data.missingBallDetections > 0 &&
				s.data.rng.UniformFloat(0, 1) <= s.data.missingBallDetections {
				continue
			}

			positionOffset := positionOffsetForCamera(s.data.objectPositionOffset, s.data.cameraPositions[cameraID])
			detections[cameraID].Balls = append(detections[cameraID].Balls, protocol.DetectionBall{})
			ballDet := &detections[cameraID].Balls[len(detections[cameraID].Balls)-1]
			visible := s.data.ball.Update(ballDet, s.data.stddevBall, s.data.stddevBallArea,
				s.data.cameraPositions[cameraID], s.data.enableInvisibleBall,
				s.data.ballVisibilityThreshold, positionOffset, s.transform)
			if !visible {
				detections[cameraID].Balls = detections[cameraID].Balls[:0]
			}
		}
	}

	// robot detections, blue team first, robots in id order
	for _, teamIsBlue := range []bool{true, false} {
		team := s.data.robotsYellow
		if teamIsBlue {
			team = s.data.robotsBlue
		}

		for _, id := range sortedIDs(team) {
			robot := team[id].robot

			state := protocol.PhysicalRobotState{}
			robot.WriteState(&state)
			if teamIsBlue {
				simState.BlueRobots = append(simState.BlueRobots, state)
			} else {
				simState.YellowRobots = append(simState.YellowRobots, state)
			}

			if s.time-robot.GetLastSendTime() < s.minRobotDetectionTime {
				continue
			}
			timeDiff := float64(s.time-robot.GetLastSendTime()) * 1e-9
			robotPos := robot.Position().DivScalar(physics.SimulatorScale)

			for cameraID := 0; cameraID < numCameras; cameraID++ {
				if !checkCameraID(cameraID, robotPos, s.data.cameraPositions, s.data.cameraOverlap) {
					continue
				}

				if s.data.missingRobotDetections > 0 &&
					s.data.rng.UniformFloat(0, 1) <= s.data.missingRobotDetections {
					continue
				}

				positionOffset := positionOffsetForCamera(s.data.objectPositionOffset, s.data.cameraPositions[cameraID])
				det := protocol.DetectionRobot{}
				robot.Update(&det, s.data.stddevRobot, s.data.stddevRobotPhi, s.time, positionOffset, s.transform)
				if teamIsBlue {
					detections[cameraID].RobotsBlue = append(detections[cameraID].RobotsBlue, det)
				} else {
					detections[cameraID].RobotsYellow = append(detections[cameraID].RobotsYellow, det)
				}

				// once in a while, add a ball mis-detection at a corner of the
				// dribbler; in real games the red light beam of the ball
				// detection barrier causes this
				detectionProb := timeDiff * s.data.ballDetectionsAtDribbler
				if s.data.ballDetectionsAtDribbler > 0 && s.data.rng.UniformFloat(0, 1) < detectionProb {
					// always on the right side of the dribbler for now
					detections[cameraID].Balls = append(detections[cameraID].Balls, protocol.DetectionBall{})
					falseBall := &detections[cameraID].Balls[len(detections[cameraID].Balls)-1]
					if !s.data.ball.AddDetection(falseBall, robot.DribblerCorner(true),
						s.data.stddevRobot, 0, s.data.cameraPositions[cameraID],
						false, 0, positionOffset, s.transform) {
						detections[cameraID].Balls = detections[cameraID].Balls[:len(detections[cameraID].Balls)-1]
					}
				}
			}
		}
	}

	packets := make([]protocol.WrapperPacket, 0, numCameras)

	// a wrapper packet is added for every detection, even empty ones: other
	// teams may rely on the regular cadence
	for i := range detections {
		frame := &detections[i]

		// multiple reported balls are shuffled: tracking may have systematic
		// errors depending on the ball order
		if len(frame.Balls) > 1 {
			s.data.rng.Shuffle(len(frame.Balls), func(a, b int) {
				frame.Balls[a], frame.Balls[b] = frame.Balls[b], frame.Balls[a]
			})
		}

		packets = append(packets, protocol.WrapperPacket{Detection: frame})
	}

	if len(packets) == 0 {
		packets = append(packets, protocol.WrapperPacket{})
	}
	packets[0].Geometry = s.buildGeometry()

	data := make([][]byte, 0, len(packets))
	for i := range packets {
		encoded, err := protocol.Marshal(&packets[i])
		if err != nil {
			encoded = []byte{}
		}
		data = append(data, encoded)
	}

	realData, err := protocol.Marshal(&simState)
	if err != nil {
		realData = []byte{}
	}

	return visionPacket{trace: uuid.NewV4(), frames: data, realData: realData}
}

func (s *Simulator) buildGeometry() *protocol.GeometryData {
	geometry := &protocol.GeometryData{
		Field: protocol.ConvertToVisionGeometry(s.data.geometry),
	}

	// the reported calibrations are perturbed along a fixed direction so the
	// error is stable within a run
	errDirection := vector.MakeVector3(0.3, 0.7, 0.05).Normalize().MultScalar(s.data.cameraPositionError)
	errX, errY := protocol.ToVision(s.transform, errDirection.Plane())
	errZ := errDirection.GetZ() * 1000

	for _, calibration := range s.data.reportedCameraSetup {
		calib := calibration
		calib.DerivedCameraWorldTx += errX
		calib.DerivedCameraWorldTy += errY
		calib.DerivedCameraWorldTz += errZ
		geometry.Calib = append(geometry.Calib, calib)
	}

	geometry.Models = &protocol.BallModels{
		StraightTwoPhase: protocol.StraightTwoPhase{
			AccSlide: -3.9,
			AccRoll:  -0.35,
			KSwitch:  0.69,
		},
		ChipFixedLoss: protocol.ChipFixedLoss{
			DampingZ:           0.566,
			DampingXYFirstHop:  0.715,
			DampingXYOtherHops: 1,
		},
	}
	return geometry
}

// sendVisionPacket emits the head of the vision queue: one gotPacket per
// camera wrapper, then the ground-truth companion.
func (s *Simulator) sendVisionPacket() {
	packet := s.visionPackets[0]
	s.visionPackets = s.visionPackets[1:]

	for _, data := range packet.frames {
		// assume instant receiving; a real transmission would jitter a bit
		s.events.emitGotPacket(data, s.timer.CurrentTime(), "simulator")
	}
	s.events.emitRealData(packet.realData)

	if !s.isPartial && len(s.visionTimers) > 0 {
		timer := s.visionTimers[0]
		s.visionTimers = s.visionTimers[1:]
		timer.Stop()
	}
}

// armVisionTimer schedules the emission of one queued packet after the
// scaled vision delay.
func (s *Simulator) armVisionTimer(timeout time.Duration) {
	generation := s.visionGen
	t := time.AfterFunc(timeout, func() {
		s.post(func() {
			if generation != s.visionGen || len(s.visionPackets) == 0 {
				return
			}
			s.sendVisionPacket()
		})
	})
	s.visionTimers = append(s.visionTimers, t)
}

// resetVisionPackets drops all queued vision packets and cancels their
// timers.
func (s *Simulator) resetVisionPackets() {
	s.visionGen++
	for _, t := range s.visionTimers {
		t.Stop()
	}
	s.visionTimers = nil
	s.visionPackets = nil
}
