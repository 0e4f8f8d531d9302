package simserver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simarena/simarena/common/utils/vector"
	"github.com/simarena/simarena/protocol"
)

func TestCheckCameraIDPartition(t *testing.T) {
	cameras := []vector.Vector3{
		vector.MakeVector3(-3, 0, 4),
		vector.MakeVector3(3, 0, 4),
	}

	// a point clearly on the left belongs to camera 0 only
	left := vector.MakeVector3(-1, 0, 0)
	require.True(t, checkCameraID(0, left, cameras, 0))
	require.False(t, checkCameraID(1, left, cameras, 0))

	// the seam point ties and is visible in both
	center := vector.MakeVector3(0, 0, 0)
	require.True(t, checkCameraID(0, center, cameras, 0))
	require.True(t, checkCameraID(1, center, cameras, 0))
}

func TestCheckCameraIDAtLeastOneCamera(t *testing.T) {
	cameras := []vector.Vector3{
		vector.MakeVector3(-3, -2, 4),
		vector.MakeVector3(-3, 2, 4),
		vector.MakeVector3(3, -2, 4),
		vector.MakeVector3(3, 2, 4),
	}

	points := []vector.Vector3{
		vector.MakeVector3(0, 0, 0),
		vector.MakeVector3(-4.2, 1.7, 0),
		vector.MakeVector3(3.9, -5.8, 0),
		vector.MakeVector3(0.01, -0.01, 0),
	}
	for _, p := range points {
		visible := 0
		for id := range cameras {
			if checkCameraID(id, p, cameras, 0) {
				visible++
			}
		}
		require.GreaterOrEqual(t, visible, 1, "point %v must be seen by at least one camera", p)
	}
}

func TestCheckCameraIDOverlapBand(t *testing.T) {
	cameras := []vector.Vector3{
		vector.MakeVector3(-3, 0, 4),
		vector.MakeVector3(3, 0, 4),
	}

	// 0.25 m inside camera 0's half: 0.5 m closer to camera 0, within the
	// 2*0.3 m overlap band
	p := vector.MakeVector3(-0.25, 0, 0)
	require.True(t, checkCameraID(0, p, cameras, 0.3))
	require.True(t, checkCameraID(1, p, cameras, 0.3))

	// far beyond the band only the owning camera sees it
	q := vector.MakeVector3(-1.5, 0, 0)
	require.True(t, checkCameraID(0, q, cameras, 0.3))
	require.False(t, checkCameraID(1, q, cameras, 0.3))
}

func TestVisionFrameCadence(t *testing.T) {
	sim, tm := makeSim(t, [2]float64{0, 0})

	var emitted [][]byte
	sim.Events().GotPacket = func(data []byte, receiveTime int64, source string) {
		emitted = append(emitted, data)
	}

	// the first tick always assembles a frame: more than a frame interval
	// passed since the simulator was built
	advance(sim, tm, 10_000_000)
	require.Len(t, sim.visionPackets, 1)

	// 10 ms is below the 12.5 ms frame interval: the pending packet flushes
	// but no new frame is assembled
	advance(sim, tm, 10_000_000)
	require.Empty(t, sim.visionPackets)
	require.Len(t, emitted, 1)

	// frame numbers increase per camera
	advance(sim, tm, 15_000_000)
	advance(sim, tm, 15_000_000)
	require.Len(t, emitted, 2)

	var first, second protocol.WrapperPacket
	require.NoError(t, protocol.Unmarshal(emitted[0], &first))
	require.NoError(t, protocol.Unmarshal(emitted[1], &second))
	require.Equal(t, first.Detection.FrameNumber+1, second.Detection.FrameNumber)
}

func TestWrapperPerCameraEvenWhenEmpty(t *testing.T) {
	sim, tm := makeSim(t, [2]float64{-2.25, 0}, [2]float64{2.25, 0})

	// drop every detection
	loss := 1.0
	sim.HandleCommand(&protocol.Command{Simulator: &protocol.CommandSimulator{
		RealismConfig: &protocol.RealismConfig{
			MissingBallDetections:  &loss,
			MissingRobotDetections: &loss,
		},
	}})
	sim.HandleCommand(&protocol.Command{SetTeamBlue: specsFor(0)})

	advance(sim, tm, 20_000_000)
	require.Len(t, sim.visionPackets, 1)
	require.Len(t, sim.visionPackets[0].frames, 2)

	var wrapper protocol.WrapperPacket
	require.NoError(t, protocol.Unmarshal(sim.visionPackets[0].frames[0], &wrapper))
	require.NotNil(t, wrapper.Detection)
	require.Empty(t, wrapper.Detection.Balls)
	require.Empty(t, wrapper.Detection.RobotsBlue)
	// geometry rides on the first camera's wrapper only
	require.NotNil(t, wrapper.Geometry)

	var second protocol.WrapperPacket
	require.NoError(t, protocol.Unmarshal(sim.visionPackets[0].frames[1], &second))
	require.Nil(t, second.Geometry)
}

func TestDribblerFalseBallDetection(t *testing.T) {
	sim, tm := makeSim(t, [2]float64{0, 0})
	sim.SeedPRNG(0)

	rate := 1.0
	sim.HandleCommand(&protocol.Command{Simulator: &protocol.CommandSimulator{
		RealismConfig: &protocol.RealismConfig{DribblerBallDetections: &rate},
	}})
	sim.HandleCommand(&protocol.Command{SetTeamBlue: specsFor(4)})

	// the robot has never been reported: the first frame integrates the full
	// interval since simulation start, so the mis-detection is certain
	advance(sim, tm, 20_000_000)
	require.Len(t, sim.visionPackets, 1)

	var wrapper protocol.WrapperPacket
	require.NoError(t, protocol.Unmarshal(sim.visionPackets[0].frames[0], &wrapper))
	require.Len(t, wrapper.Detection.RobotsBlue, 1)
	// the real ball plus the mis-detection at the dribbler corner
	require.Len(t, wrapper.Detection.Balls, 2)
}

func TestGeometryCarriesCalibrationError(t *testing.T) {
	sim, tm := makeSim(t, [2]float64{-2.25, 0})

	positionError := 0.5
	sim.HandleCommand(&protocol.Command{Simulator: &protocol.CommandSimulator{
		RealismConfig: &protocol.RealismConfig{CameraPositionError: &positionError},
	}})

	advance(sim, tm, 20_000_000)

	var wrapper protocol.WrapperPacket
	require.NoError(t, protocol.Unmarshal(sim.visionPackets[0].frames[0], &wrapper))
	require.Len(t, wrapper.Geometry.Calib, 1)

	calib := wrapper.Geometry.Calib[0]
	// the reported camera moved away from the true position along the fixed
	// error direction
	require.NotEqual(t, -2250.0, calib.DerivedCameraWorldTx)
	require.Greater(t, calib.DerivedCameraWorldTx, -2250.0)
	require.Greater(t, calib.DerivedCameraWorldTy, 0.0)

	models := wrapper.Geometry.Models
	require.NotNil(t, models)
	require.Equal(t, -0.35, models.StraightTwoPhase.AccRoll)
	require.Equal(t, -3.9, models.StraightTwoPhase.AccSlide)
	require.Equal(t, 0.69, models.StraightTwoPhase.KSwitch)
	require.Equal(t, 0.566, models.ChipFixedLoss.DampingZ)
	require.Equal(t, 0.715, models.ChipFixedLoss.DampingXYFirstHop)
	require.Equal(t, 1.0, models.ChipFixedLoss.DampingXYOtherHops)
}

func TestTeamChangeClearsVisionQueue(t *testing.T) {
	sim, tm := makeSim(t, [2]float64{0, 0})

	advance(sim, tm, 20_000_000)
	require.Len(t, sim.visionPackets, 1)

	sim.HandleCommand(&protocol.Command{SetTeamBlue: specsFor(0, 1)})
	require.Empty(t, sim.visionPackets)
	require.Empty(t, sim.visionTimers)
}

func TestResetVisionPacketsEmptiesQueueAndTimers(t *testing.T) {
	sim, tm := makeSim(t, [2]float64{0, 0})
	advance(sim, tm, 20_000_000)

	generation := sim.visionGen
	sim.armVisionTimer(1_000_000_000)
	require.Len(t, sim.visionTimers, 1)

	sim.resetVisionPackets()
	require.Empty(t, sim.visionPackets)
	require.Empty(t, sim.visionTimers)
	require.Greater(t, sim.visionGen, generation)
}

func TestMinBallDetectionTimeThrottles(t *testing.T) {
	sim, tm := makeSim(t, [2]float64{0, 0})

	interval := 1.0 // seconds
	sim.HandleCommand(&protocol.Command{Simulator: &protocol.CommandSimulator{
		VisionWorstCase: &protocol.VisionWorstCase{MinBallDetectionTime: &interval},
	}})

	advance(sim, tm, 20_000_000)
	require.Len(t, sim.visionPackets, 1)

	var wrapper protocol.WrapperPacket
	require.NoError(t, protocol.Unmarshal(sim.visionPackets[0].frames[0], &wrapper))
	// the first frame after one simulated second carries the ball
	require.Len(t, wrapper.Detection.Balls, 1)

	// the earlier packet flushes on this pump; the new frame arrives before
	// the minimum interval elapsed again
	advance(sim, tm, 20_000_000)
	require.Len(t, sim.visionPackets, 1)
	require.NoError(t, protocol.Unmarshal(sim.visionPackets[0].frames[0], &wrapper))
	require.Empty(t, wrapper.Detection.Balls)
}

func TestBallShufflePreservesMultiset(t *testing.T) {
	sim, tm := makeSim(t, [2]float64{0, 0})
	sim.SeedPRNG(9)

	rate := 1.0
	sim.HandleCommand(&protocol.Command{Simulator: &protocol.CommandSimulator{
		RealismConfig: &protocol.RealismConfig{DribblerBallDetections: &rate},
	}})
	sim.HandleCommand(&protocol.Command{SetTeamBlue: specsFor(0), SetTeamYellow: specsFor(0)})

	advance(sim, tm, 20_000_000)

	var wrapper protocol.WrapperPacket
	require.NoError(t, protocol.Unmarshal(sim.visionPackets[0].frames[0], &wrapper))
	// the real ball plus one mis-detection per robot
	require.Len(t, wrapper.Detection.Balls, 3)
	for _, ball := range wrapper.Detection.Balls {
		require.NotZero(t, ball.Area)
	}
}
