package world

import (
	"math"
	"testing"

	"github.com/simarena/simarena/common/fieldtransform"
	"github.com/simarena/simarena/common/rng"
	"github.com/simarena/simarena/common/utils/vector"
	"github.com/simarena/simarena/physics"
	"github.com/simarena/simarena/protocol"
)

func makeBallWorld(t *testing.T) (*physics.World, *Ball) {
	t.Helper()
	w := physics.NewWorld(nil)
	ball := NewBall(rng.NewRng(0), w, nil)
	return w, ball
}

func stepWorld(w *physics.World, ball *Ball, seconds float64) {
	steps := int(seconds / physics.SubTimestep)
	for i := 0; i < steps; i++ {
		ball.Begin()
		ball.ApplyGravity(w.GravityZ())
		w.StepSimulation(physics.SubTimestep, 1, physics.SubTimestep)
	}
}

func TestBallStartsOnFloor(t *testing.T) {
	_, ball := makeBallWorld(t)
	pos := ball.Position()
	if math.Abs(pos.GetZ()-BallRadius*physics.SimulatorScale) > 1e-9 {
		t.Fatalf("ball must rest at its radius, z=%v", pos.GetZ())
	}
	if ball.IsInvalid() {
		t.Fatal("fresh ball must be valid")
	}
}

func TestBallMoveAppliesPositionAndVelocity(t *testing.T) {
	_, ball := makeBallWorld(t)
	x, y := 1.0, 2.0
	vx, vy := 3.0, 4.0
	ball.Move(&protocol.TeleportBall{X: &x, Y: &y, VX: &vx, VY: &vy})

	state := protocol.PhysicalBallState{}
	ball.WriteBallState(&state)
	if math.Abs(state.PX-1) > 1e-9 || math.Abs(state.PY-2) > 1e-9 {
		t.Fatalf("teleport position wrong: (%v, %v)", state.PX, state.PY)
	}
	if math.Abs(state.VX-3) > 1e-9 || math.Abs(state.VY-4) > 1e-9 {
		t.Fatalf("teleport velocity wrong: (%v, %v)", state.VX, state.VY)
	}
}

func TestBallMovePartialKeepsOtherAxis(t *testing.T) {
	_, ball := makeBallWorld(t)
	x, y := 1.0, 2.0
	ball.Move(&protocol.TeleportBall{X: &x, Y: &y})

	nx := -0.5
	ball.Move(&protocol.TeleportBall{X: &nx})

	state := protocol.PhysicalBallState{}
	ball.WriteBallState(&state)
	if math.Abs(state.PX+0.5) > 1e-9 || math.Abs(state.PY-2) > 1e-9 {
		t.Fatalf("partial teleport must keep y: (%v, %v)", state.PX, state.PY)
	}
}

func TestChipKickFliesAndBounces(t *testing.T) {
	w, ball := makeBallWorld(t)
	ball.Kick(vector.MakeVector2(1, 0), 3.0, math.Pi/4)

	stepWorld(w, ball, 0.1)
	if ball.Position().GetZ() <= BallRadius*physics.SimulatorScale {
		t.Fatal("chipped ball must be airborne after 100ms")
	}

	// long enough for the full flight and bounces to decay
	stepWorld(w, ball, 3.0)
	if math.Abs(ball.Position().GetZ()-BallRadius*physics.SimulatorScale) > 0.01 {
		t.Fatalf("ball must settle on the floor, z=%v", ball.Position().GetZ())
	}

	state := protocol.PhysicalBallState{}
	ball.WriteBallState(&state)
	if state.PX <= 0 {
		t.Fatal("chipped ball must have travelled forward")
	}
}

func TestRollingBallDecelerates(t *testing.T) {
	w, ball := makeBallWorld(t)
	ball.Kick(vector.MakeVector2(1, 0), 2.0, 0)

	first := ball.Speed().Plane().Mag()
	stepWorld(w, ball, 1.0)
	second := ball.Speed().Plane().Mag()

	if second >= first {
		t.Fatalf("ground friction must slow the ball: %v -> %v", first, second)
	}
}

func TestBallInvalidAfterLeavingWorld(t *testing.T) {
	w, ball := makeBallWorld(t)
	var reported *protocol.SimulatorError
	ball.errFn = func(e *protocol.SimulatorError) { reported = e }

	far := 1000.0
	ball.Move(&protocol.TeleportBall{X: &far, Y: &far})
	stepWorld(w, ball, physics.SubTimestep)

	if !ball.IsInvalid() {
		t.Fatal("ball far outside the world must be invalid")
	}
	if reported == nil || reported.Code != "BALL_INVALID" {
		t.Fatalf("expected BALL_INVALID report, got %+v", reported)
	}

	// teleporting back restores validity
	zero := 0.0
	ball.Move(&protocol.TeleportBall{X: &zero, Y: &zero})
	if ball.IsInvalid() {
		t.Fatal("teleport must restore validity")
	}
}

func TestBallDetectionNoiseIsDeterministic(t *testing.T) {
	transform := fieldtransform.NewFieldTransform()
	cam := vector.MakeVector3(0, 0, 4)

	var results [2]protocol.DetectionBall
	for run := 0; run < 2; run++ {
		w := physics.NewWorld(nil)
		ball := NewBall(rng.NewRng(5), w, nil)
		x, y := 0.5, 0.25
		ball.Move(&protocol.TeleportBall{X: &x, Y: &y})

		det := protocol.DetectionBall{}
		if !ball.Update(&det, 0.003, 2.0, cam, false, 0, vector.MakeNullVector3(), transform) {
			t.Fatal("ball must be visible")
		}
		results[run] = det
	}

	if results[0] != results[1] {
		t.Fatalf("same seed must give identical detections: %+v vs %+v", results[0], results[1])
	}
}

func TestCoveredBallInvisible(t *testing.T) {
	_, ball := makeBallWorld(t)
	transform := fieldtransform.NewFieldTransform()
	cam := vector.MakeVector3(0, 0, 4)

	ball.SetCover(0.9)
	det := protocol.DetectionBall{}
	if ball.Update(&det, 0, 0, cam, true, 0.4, vector.MakeNullVector3(), transform) {
		t.Fatal("a covered ball must be invisible with the occlusion model enabled")
	}
	if !ball.Update(&det, 0, 0, cam, false, 0.4, vector.MakeNullVector3(), transform) {
		t.Fatal("the occlusion model disabled must keep the ball visible")
	}
	if det.Confidence >= 1 {
		t.Fatalf("cover must reduce confidence, got %v", det.Confidence)
	}

	ball.Begin()
	if !ball.Update(&det, 0, 0, cam, true, 0.4, vector.MakeNullVector3(), transform) {
		t.Fatal("cover must reset at the substep boundary")
	}
}
