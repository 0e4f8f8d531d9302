// Package simserver runs the simulation tick loop: a rigid-body world with
// one ball and two robot teams, fed by delayed radio commands and producing
// delayed per-camera detection frames plus synchronous radio responses.
//
// The simulator is single-threaded. In free-running mode an internal loop
// goroutine owns all state and external calls are marshalled onto its task
// queue; in partial (manual-trigger) mode the host pumps Process itself and
// calls arrive on the host's goroutine.
package simserver

import (
	"fmt"
	"os"
	"sort"
	"time"

	notify "github.com/bitly/go-notify"
	"github.com/ttacon/chalk"

	"github.com/simarena/simarena/common/fieldtransform"
	"github.com/simarena/simarena/common/rng"
	"github.com/simarena/simarena/common/timer"
	"github.com/simarena/simarena/common/utils"
	"github.com/simarena/simarena/common/utils/vector"
	"github.com/simarena/simarena/physics"
	"github.com/simarena/simarena/protocol"
	"github.com/simarena/simarena/simserver/world"
)

const (
	// one vision frame every 12.5 ms of simulated time (80 Hz ceiling,
	// effectively 66.67 Hz at the 5 ms trigger)
	visionFrameInterval = 12_500_000

	defaultVisionDelay          = 35_000_000
	defaultVisionProcessingTime = 5_000_000

	// free-running trigger period at scaling 1
	triggerPeriodMs = 5

	// StopTickingTopic is posted when the free-running loop exits.
	StopTickingTopic = "sim:stopticking"
)

type robotEntry struct {
	robot      *world.Robot
	generation uint32
}

type simulatorData struct {
	rng   *rng.Rng
	world *physics.World

	geometry            protocol.Geometry
	reportedCameraSetup []protocol.CameraCalibration
	cameraPositions     []vector.Vector3

	field *world.Field
	ball  *world.Ball

	robotsBlue   map[uint32]*robotEntry
	robotsYellow map[uint32]*robotEntry
	specsBlue    map[uint32]protocol.RobotSpecs
	specsYellow  map[uint32]protocol.RobotSpecs

	flip bool

	stddevBall               float64
	stddevBallArea           float64
	stddevRobot              float64
	stddevRobotPhi           float64
	ballDetectionsAtDribbler float64 // per robot per second
	enableInvisibleBall      bool
	ballVisibilityThreshold  float64
	cameraOverlap            float64
	cameraPositionError      float64
	objectPositionOffset     float64
	robotCommandPacketLoss   float64
	robotReplyPacketLoss     float64
	missingBallDetections    float64
	dribblePerfect           bool
	missingRobotDetections   float64
	commandDelay             int64
}

type Simulator struct {
	isPartial bool
	timer     *timer.Timer
	events    Events

	time               int64
	lastSentStatusTime int64
	timeScaling        float64
	enabled            bool
	charge             bool

	visionDelay          int64
	visionProcessingTime int64

	minBallDetectionTime  int64
	minRobotDetectionTime int64
	lastBallSendTime      int64
	lastFrameNumber       []uint32

	aggregator *ErrorAggregator
	transform  *fieldtransform.FieldTransform

	data          *simulatorData
	radioCommands *CommandQueue

	visionPackets []visionPacket
	visionTimers  []*time.Timer
	visionGen     uint64

	running     bool
	tasks       chan func()
	stopticking chan struct{}
	trigger     *time.Ticker
	triggerC    <-chan time.Time
}

// NewSimulator builds a world from the setup. With useManualTrigger the
// host pumps Process itself and vision delivery rides on the next pump;
// otherwise Start runs an internal trigger loop.
func NewSimulator(tm *timer.Timer, setup protocol.SimulatorSetup, useManualTrigger bool) *Simulator {
	s := &Simulator{
		isPartial:            useManualTrigger,
		timer:                tm,
		timeScaling:          1.0,
		visionDelay:          defaultVisionDelay,
		visionProcessingTime: defaultVisionProcessingTime,
		aggregator:           NewErrorAggregator(),
		transform:            fieldtransform.NewFieldTransform(),
		radioCommands:        NewCommandQueue(),
		tasks:                make(chan func(), 64),
		stopticking:          make(chan struct{}),
	}

	data := &simulatorData{
		rng:          rng.NewRng(0),
		geometry:     setup.Geometry,
		robotsBlue:   make(map[uint32]*robotEntry),
		robotsYellow: make(map[uint32]*robotEntry),
		specsBlue:    make(map[uint32]protocol.RobotSpecs),
		specsYellow:  make(map[uint32]protocol.RobotSpecs),

		enableInvisibleBall:     true,
		ballVisibilityThreshold: 0.4,
		cameraOverlap:           0.3,
	}
	data.world = physics.NewWorld(s.handleSimulatorTick)
	data.field = world.NewField(data.world, data.geometry)
	data.ball = world.NewBall(data.rng, data.world, s.configErrFn())

	for _, camera := range setup.CameraSetup {
		data.reportedCameraSetup = append(data.reportedCameraSetup, camera)
		data.cameraPositions = append(data.cameraPositions, vector.MakeVector3(
			camera.DerivedCameraWorldTx/1000,
			camera.DerivedCameraWorldTy/1000,
			camera.DerivedCameraWorldTz/1000,
		))
	}
	s.lastFrameNumber = make([]uint32, len(setup.CameraSetup))

	s.data = data

	// no robots after initialisation

	tm.OnScalingChanged(func(scaling float64) {
		s.post(func() { s.setScaling(scaling) })
	})

	return s
}

func (s *Simulator) Events() *Events {
	return &s.events
}

// post marshals a call onto the tick goroutine when the loop is running and
// executes inline otherwise.
func (s *Simulator) post(fn func()) {
	if s.running {
		s.tasks <- fn
	} else {
		fn()
	}
}

// Start begins free-running operation. The loop goroutine owns all
// simulator state from here on.
func (s *Simulator) Start() {
	if s.isPartial || s.running {
		return
	}
	s.running = true
	go s.loop()
}

func (s *Simulator) Stop() {
	close(s.stopticking)
}

func (s *Simulator) loop() {
	for {
		select {
		case <-s.stopticking:
			fmt.Print(chalk.Yellow)
			fmt.Println("simulator: received stop ticking signal", chalk.Reset)
			notify.Post(StopTickingTopic, nil)
			return
		case fn := <-s.tasks:
			fn()
		case <-s.triggerC:
			s.Process()
		}
	}
}

// HandleCommand applies a control command. Safe to call from any goroutine;
// the work lands on the tick thread.
func (s *Simulator) HandleCommand(command *protocol.Command) {
	s.post(func() { s.handleCommand(command) })
}

// HandleRadioCommands queues one radio frame for delayed delivery.
func (s *Simulator) HandleRadioCommands(control *protocol.RobotControl, isBlue bool, processingStart int64) {
	s.post(func() { s.radioCommands.Enqueue(control, processingStart, isBlue) })
}

// SeedPRNG reseeds the deterministic random source.
func (s *Simulator) SeedPRNG(seed uint32) {
	s.post(func() { s.data.rng.Seed(seed) })
}

// SetFlipped mirrors x and y on all teleport inputs and outputs.
func (s *Simulator) SetFlipped(flipped bool) {
	s.post(func() { s.data.flip = flipped })
}

// SetScaling adjusts the trigger to the new time scaling and discards
// pending vision packets whose timings went stale.
func (s *Simulator) SetScaling(scaling float64) {
	s.post(func() { s.setScaling(scaling) })
}

// Process runs one simulation tick: flush due vision (partial mode),
// deliver due radio commands, emit responses and errors, step physics to
// the current time, assemble and schedule a vision frame, emit timing.
func (s *Simulator) Process() {
	utils.Assert(s.time != 0, "simulator processed before being enabled")
	startTime := timer.SystemTime()

	currentTime := s.timer.CurrentTime()

	// first: send vision packets in partial mode. The >= comparison is kept
	// from the reference pipeline even though it reads inverted relative to
	// "deliver when due".
	if s.isPartial {
		for len(s.visionPackets) > 0 && s.visionPackets[0].emitTime >= currentTime {
			s.sendVisionPacket()
		}
	}

	// apply only radio commands that were already received by the robots
	responses := []protocol.RadioResponse{}
	for s.radioCommands.Len() > 0 {
		head, _ := s.radioCommands.Head()
		if head.ReceiveTime+s.data.commandDelay >= s.time {
			break
		}
		commands := s.radioCommands.Dequeue()
		for _, command := range commands.Control.RobotCommands {
			if s.data.robotCommandPacketLoss > 0 &&
				s.data.rng.UniformFloat(0, 1) <= s.data.robotCommandPacketLoss {
				continue
			}
			responses = s.fabricateResponse(responses, command, commands.IsBlue)
		}
	}

	// radio responses are sent when a robot gets its command, thus send them
	// immediately
	s.events.emitRadioResponses(responses)
	s.sendSimErrorsInternal(ErrorSourceBlue)
	s.sendSimErrorsInternal(ErrorSourceYellow)
	s.sendSimErrorsInternal(ErrorSourceConfig)

	// simulate to current strategy time
	timeDelta := float64(currentTime-s.time) * 1e-9
	s.data.world.StepSimulation(timeDelta, 10, physics.SubTimestep)
	s.time = currentTime

	if s.lastSentStatusTime+visionFrameInterval <= s.time {
		packet := s.createVisionPacket()

		if s.isPartial {
			packet.emitTime = s.time + s.visionDelay
			s.visionPackets = append(s.visionPackets, packet)
		} else {
			s.visionPackets = append(s.visionPackets, packet)
			timeout := time.Duration(float64(s.visionDelay) / s.timeScaling)
			s.armVisionTimer(timeout)
		}

		s.lastSentStatusTime = s.time
	}

	status := &protocol.Status{}
	status.Timing.Simulator = float64(timer.SystemTime()-startTime) * 1e-9
	s.events.emitStatus(status)
}

func (s *Simulator) fabricateResponse(responses []protocol.RadioResponse,
	command protocol.RobotCommand, isBlue bool) []protocol.RadioResponse {

	team := s.data.robotsYellow
	if isBlue {
		team = s.data.robotsBlue
	}
	entry, ok := team[command.ID]
	if !ok {
		return responses
	}

	response := entry.robot.SetCommand(command, s.data.ball, s.charge)
	response.Time = s.time
	response.IsBlue = isBlue

	if s.data.robotReplyPacketLoss == 0 ||
		s.data.rng.UniformFloat(0, 1) > s.data.robotReplyPacketLoss {
		responses = append(responses, response)
	}
	return responses
}

func (s *Simulator) sendSimErrorsInternal(source ErrorSource) {
	errors := s.aggregator.GetAggregates(source)
	if len(errors) == 0 {
		return
	}
	s.events.emitSimErrors(errors, source)
}

// handleSimulatorTick runs inside every physics substep, before
// integration. All mutations of robot existence happen here, between
// engine steps.
func (s *Simulator) handleSimulatorTick(timeStep float64) {
	s.data.world.ClearForces()

	s.resetFlipped(s.data.robotsBlue, 1.0, ErrorSourceBlue)
	s.resetFlipped(s.data.robotsYellow, -1.0, ErrorSourceYellow)

	if s.data.ball.IsInvalid() {
		s.data.ball.Destroy()
		s.data.ball = world.NewBall(s.data.rng, s.data.world, s.configErrFn())
	}

	// apply commands and forces to ball and robots
	s.data.ball.Begin()
	for _, id := range sortedIDs(s.data.robotsBlue) {
		s.data.robotsBlue[id].robot.Begin(s.data.ball, timeStep)
	}
	for _, id := range sortedIDs(s.data.robotsYellow) {
		s.data.robotsYellow[id].robot.Begin(s.data.ball, timeStep)
	}

	// gravity applies to all active objects, thus after applying commands
	s.data.world.ApplyGravity()
}

// resetFlipped replaces any upside-down robot with a fresh instance on the
// reserved border line.
func (s *Simulator) resetFlipped(robots map[uint32]*robotEntry, side float64, source ErrorSource) {
	x := s.data.geometry.FieldWidth/2 - 0.2
	y := s.data.geometry.FieldHeight/2 - 0.2

	for _, id := range sortedIDs(robots) {
		entry := robots[id]
		if entry.robot.IsFlipped() {
			specs := entry.robot.Specs()
			entry.robot.Destroy()
			replacement := world.NewRobot(s.data.rng, specs, s.data.world,
				vector.MakeVector2(x, side*y), 0, s.teamErrFn(source))
			replacement.SetDribbleMode(s.data.dribblePerfect)
			robots[id] = &robotEntry{robot: replacement, generation: specs.Generation}
		}
		y -= 0.3
	}
}

func (s *Simulator) handleCommand(command *protocol.Command) {
	teamOrPerfectDribbleChanged := false

	if command.Simulator != nil {
		sim := command.Simulator
		if sim.Enable != nil {
			s.enabled = *sim.Enable
			s.time = s.timer.CurrentTime()
			// update the trigger when the simulator status is changed
			s.setScaling(s.timeScaling)
		}

		if sim.RealismConfig != nil {
			if s.applyRealism(sim.RealismConfig) {
				teamOrPerfectDribbleChanged = true
			}
		}

		if sim.SSLControl != nil {
			control := sim.SSLControl
			if control.TeleportBall != nil {
				s.moveBall(control.TeleportBall)
			}
			for i := range control.TeleportRobot {
				s.moveRobot(&control.TeleportRobot[i])
			}
		}

		if sim.VisionWorstCase != nil {
			if sim.VisionWorstCase.MinBallDetectionTime != nil {
				s.minBallDetectionTime = int64(*sim.VisionWorstCase.MinBallDetectionTime * 1e9)
			}
			if sim.VisionWorstCase.MinRobotDetectionTime != nil {
				s.minRobotDetectionTime = int64(*sim.VisionWorstCase.MinRobotDetectionTime * 1e9)
			}
		}

		if sim.SetSimulatorState != nil {
			state := sim.SetSimulatorState
			if state.Ball != nil {
				s.data.ball.RestoreState(state.Ball)
			}
			restoreRobots(s.data.robotsYellow, state.YellowRobots)
			restoreRobots(s.data.robotsBlue, state.BlueRobots)
		}
	}

	if command.Transceiver != nil && command.Transceiver.Charge != nil {
		s.charge = *command.Transceiver.Charge
	}

	if command.SetTeamBlue != nil {
		teamOrPerfectDribbleChanged = true
		s.setTeam(s.data.robotsBlue, 1.0, command.SetTeamBlue, s.data.specsBlue, ErrorSourceBlue)
	}

	if command.SetTeamYellow != nil {
		teamOrPerfectDribbleChanged = true
		s.setTeam(s.data.robotsYellow, -1.0, command.SetTeamYellow, s.data.specsYellow, ErrorSourceYellow)
	}

	if teamOrPerfectDribbleChanged {
		for _, team := range []map[uint32]*robotEntry{s.data.robotsBlue, s.data.robotsYellow} {
			for _, id := range sortedIDs(team) {
				team[id].robot.SetDribbleMode(s.data.dribblePerfect)
			}
		}
	}
}

// applyRealism copies set fields into the live config and reports whether
// the dribble mode changed.
func (s *Simulator) applyRealism(realism *protocol.RealismConfig) bool {
	dribbleChanged := false
	data := s.data

	if realism.StddevBallP != nil {
		data.stddevBall = *realism.StddevBallP
	}
	if realism.StddevRobotP != nil {
		data.stddevRobot = *realism.StddevRobotP
	}
	if realism.StddevRobotPhi != nil {
		data.stddevRobotPhi = *realism.StddevRobotPhi
	}
	if realism.StddevBallArea != nil {
		data.stddevBallArea = *realism.StddevBallArea
	}
	if realism.DribblerBallDetections != nil {
		data.ballDetectionsAtDribbler = *realism.DribblerBallDetections
	}
	if realism.EnableInvisibleBall != nil {
		data.enableInvisibleBall = *realism.EnableInvisibleBall
	}
	if realism.BallVisibilityThreshold != nil {
		data.ballVisibilityThreshold = *realism.BallVisibilityThreshold
	}
	if realism.CameraOverlap != nil {
		data.cameraOverlap = *realism.CameraOverlap
	}
	if realism.CameraPositionError != nil {
		data.cameraPositionError = *realism.CameraPositionError
	}
	if realism.ObjectPositionOffset != nil {
		data.objectPositionOffset = *realism.ObjectPositionOffset
	}
	if realism.RobotCommandLoss != nil {
		data.robotCommandPacketLoss = *realism.RobotCommandLoss
	}
	if realism.RobotResponseLoss != nil {
		data.robotReplyPacketLoss = *realism.RobotResponseLoss
	}
	if realism.MissingBallDetections != nil {
		data.missingBallDetections = *realism.MissingBallDetections
	}
	if realism.MissingRobotDetections != nil {
		data.missingRobotDetections = *realism.MissingRobotDetections
	}
	if realism.VisionDelay != nil {
		s.visionDelay = max64(0, *realism.VisionDelay)
	}
	if realism.VisionProcessingTime != nil {
		s.visionProcessingTime = max64(0, *realism.VisionProcessingTime)
	}
	if realism.SimulateDribbling != nil {
		data.dribblePerfect = !*realism.SimulateDribbling
		dribbleChanged = true
	}
	if realism.CommandDelay != nil {
		data.commandDelay = *realism.CommandDelay
	}
	return dribbleChanged
}

func restoreRobots(team map[uint32]*robotEntry, states []protocol.PhysicalRobotState) {
	for _, state := range states {
		if entry, ok := team[state.ID]; ok {
			entry.robot.RestoreState(state)
		}
	}
}

func (s *Simulator) setTeam(robots map[uint32]*robotEntry, side float64,
	team *protocol.TeamSpec, specs map[uint32]protocol.RobotSpecs, source ErrorSource) {

	// remove old team
	for _, id := range sortedIDs(robots) {
		robots[id].robot.Destroy()
		delete(robots, id)
	}

	// changing a team also triggers a tracking reset downstream, so the old
	// robots disappear immediately; delayed vision packets would resurrect
	// them for up to a simulated second, thus drop the outdated packets
	s.resetVisionPackets()

	// align robots on a line
	x := s.data.geometry.FieldWidth/2 - 0.2
	y := s.data.geometry.FieldHeight/2 - 0.2

	for _, robotSpecs := range team.Robots {
		id := robotSpecs.ID

		// (color, robot id) must be unique
		if _, exists := robots[id]; exists {
			fmt.Fprintln(os.Stderr, "Error: Two ids for the same color, aborting!")
			s.aggregator.Aggregate(&protocol.SimulatorError{
				Code:    "DUPLICATE_ROBOT_ID",
				Message: fmt.Sprintf("duplicate robot id %d in team definition", id),
			}, source)
			continue
		}
		specs[id] = robotSpecs

		s.createRobot(robots, x, side*y, id, specs, source)
		y -= 0.3
	}
}

func (s *Simulator) createRobot(robots map[uint32]*robotEntry, x float64, y float64,
	id uint32, specs map[uint32]protocol.RobotSpecs, source ErrorSource) {

	robot := world.NewRobot(s.data.rng, specs[id], s.data.world,
		vector.MakeVector2(x, y), 0, s.teamErrFn(source))
	robot.SetDribbleMode(s.data.dribblePerfect)
	robots[id] = &robotEntry{robot: robot, generation: specs[id].Generation}
}

func (s *Simulator) setScaling(scaling float64) {
	if scaling <= 0 || !s.enabled {
		s.stopTrigger()
		// clear pending vision packets
		s.resetVisionPackets()
	} else {
		// scale the default trigger period of 5 milliseconds
		t := triggerPeriodMs / scaling
		if t < 1 {
			t = 1
		}
		s.startTrigger(time.Duration(t * float64(time.Millisecond)))

		// vision packet timings are wrong after a scaling change; with a
		// larger scaling the new single-shot timers would also fire before
		// the old ones
		s.resetVisionPackets()
	}
	// needed if scaling is set before the simulator was enabled
	s.timeScaling = scaling
}

func (s *Simulator) startTrigger(period time.Duration) {
	s.stopTrigger()
	if s.isPartial {
		return
	}
	s.trigger = time.NewTicker(period)
	s.triggerC = s.trigger.C
}

func (s *Simulator) stopTrigger() {
	if s.trigger != nil {
		s.trigger.Stop()
		s.trigger = nil
		s.triggerC = nil
	}
}

func (s *Simulator) configErrFn() func(*protocol.SimulatorError) {
	return func(err *protocol.SimulatorError) {
		s.aggregator.Aggregate(err, ErrorSourceConfig)
	}
}

func (s *Simulator) teamErrFn(source ErrorSource) func(*protocol.SimulatorError) {
	return func(err *protocol.SimulatorError) {
		s.aggregator.Aggregate(err, source)
	}
}

func sortedIDs(robots map[uint32]*robotEntry) []uint32 {
	ids := make([]uint32, 0, len(robots))
	for id := range robots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func max64(a int64, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
