package physics

import (
	"math"
	"testing"
)

func TestStepSimulationSubstepCount(t *testing.T) {
	calls := 0
	var w *World
	w = NewWorld(func(timeStep float64) {
		calls++
		if timeStep != SubTimestep {
			t.Fatalf("callback got step %v, want %v", timeStep, SubTimestep)
		}
	})

	steps := w.StepSimulation(0.020, 10, SubTimestep)
	if steps != 4 {
		t.Fatalf("20ms at 5ms substeps should run 4 steps, ran %d", steps)
	}
	if calls != 4 {
		t.Fatalf("callback should run once per substep, ran %d", calls)
	}
}

func TestStepSimulationBoundedByMaxSubSteps(t *testing.T) {
	w := NewWorld(nil)
	steps := w.StepSimulation(1.0, 10, SubTimestep)
	if steps != 10 {
		t.Fatalf("a 1s jump must clamp to 10 substeps, ran %d", steps)
	}
	// excess time beyond one substep is dropped, not wound up
	steps = w.StepSimulation(0, 10, SubTimestep)
	if steps > 1 {
		t.Fatalf("leftover after a clamped step must be at most one substep, ran %d", steps)
	}
}

func TestStepSimulationCarriesRemainder(t *testing.T) {
	w := NewWorld(nil)
	if steps := w.StepSimulation(0.003, 10, SubTimestep); steps != 0 {
		t.Fatalf("3ms is below one 5ms substep, ran %d", steps)
	}
	if steps := w.StepSimulation(0.003, 10, SubTimestep); steps != 1 {
		t.Fatalf("accumulated 6ms should run exactly one substep, ran %d", steps)
	}
}

type fallingBody struct {
	z, vz   float64
	gravity float64
}

func (b *fallingBody) ApplyGravity(g float64) { b.gravity = g }
func (b *fallingBody) StepVertical(dt float64) {
	b.vz += b.gravity * dt
	b.z += b.vz * dt
	b.gravity = 0
}

func TestVerticalBodyFallsUnderGravity(t *testing.T) {
	var w *World
	body := &fallingBody{z: 1.0 * SimulatorScale}
	w = NewWorld(func(timeStep float64) {
		w.ClearForces()
		w.ApplyGravity()
	})
	w.RegisterVertical(body)

	w.StepSimulation(0.5, 200, SubTimestep)

	// closed form: z = z0 - g t² / 2, allow integrator slack
	expected := 1.0*SimulatorScale - Gravity*SimulatorScale*0.5*0.5/2
	if math.Abs(body.z-expected) > 0.5 {
		t.Fatalf("fall distance off: got z=%v, want about %v", body.z, expected)
	}

	w.UnregisterVertical(body)
	before := body.z
	w.StepSimulation(0.1, 200, SubTimestep)
	if body.z != before {
		t.Fatal("unregistered body must not be stepped")
	}
}
