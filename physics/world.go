// Package physics wraps the planar rigid-body engine behind the substepped
// stepping contract the simulator drives: a fixed substep size, a bounded
// number of substeps per call, a per-substep callback, and explicit force
// clearing and gravity application between substeps.
//
// Lengths crossing the engine boundary are scaled by SimulatorScale; the
// engine never sees raw meters.
package physics

import (
	"github.com/bytearena/box2d"
)

const (
	// SimulatorScale converts meters to engine units.
	SimulatorScale = 10.0

	// SubTimestep is the fixed integration step in seconds.
	SubTimestep = 1.0 / 200.0

	// Gravity in m/s².
	Gravity = 9.81

	velocityIterations = 8 // higher improves stability; default 8 in testbed
	positionIterations = 3 // higher improves overlap resolution; default 3 in testbed
)

// TickCallback runs before every substep with the substep size in seconds.
type TickCallback func(timeStep float64)

// VerticalBody integrates its own height axis; the planar engine only sees
// its ground shadow.
type VerticalBody interface {
	ApplyGravity(g float64)
	StepVertical(dt float64)
}

type World struct {
	b2       box2d.B2World
	gravityZ float64
	callback TickCallback
	vertical []VerticalBody

	accumulator float64
}

func NewWorld(callback TickCallback) *World {
	// zero planar gravity: the world is seen from the top
	b2 := box2d.MakeB2World(box2d.MakeB2Vec2(0, 0))
	return &World{
		b2:       b2,
		gravityZ: -Gravity * SimulatorScale,
		callback: callback,
	}
}

func (w *World) B2() *box2d.B2World {
	return &w.b2
}

func (w *World) GravityZ() float64 {
	return w.gravityZ
}

func (w *World) CreateBody(def *box2d.B2BodyDef) *box2d.B2Body {
	return w.b2.CreateBody(def)
}

func (w *World) DestroyBody(body *box2d.B2Body) {
	w.b2.DestroyBody(body)
}

func (w *World) RegisterVertical(body VerticalBody) {
	w.vertical = append(w.vertical, body)
}

func (w *World) UnregisterVertical(body VerticalBody) {
	for i, b := range w.vertical {
		if b == body {
			w.vertical = append(w.vertical[:i], w.vertical[i+1:]...)
			return
		}
	}
}

func (w *World) ClearForces() {
	w.b2.ClearForces()
}

// ApplyGravity arms gravity on all vertical bodies for the next substep.
func (w *World) ApplyGravity() {
	for _, b := range w.vertical {
		b.ApplyGravity(w.gravityZ)
	}
}

// StepSimulation advances the world by dt seconds in fixed substeps of
// fixedStep, running at most maxSubSteps. Leftover time below one substep is
// carried to the next call; anything beyond maxSubSteps substeps is dropped
// so a stalled host cannot wind up the integrator.
func (w *World) StepSimulation(dt float64, maxSubSteps int, fixedStep float64) int {
	w.accumulator += dt

	// the tolerance keeps float rounding from losing a substep: 0.020 minus
	// three 0.005 steps leaves slightly less than 0.005
	steps := 0
	for w.accumulator >= fixedStep*(1-1e-9) && steps < maxSubSteps {
		if w.callback != nil {
			w.callback(fixedStep)
		}
		w.b2.Step(fixedStep, velocityIterations, positionIterations)
		for _, b := range w.vertical {
			b.StepVertical(fixedStep)
		}
		w.accumulator -= fixedStep
		steps++
	}

	if w.accumulator > fixedStep {
		w.accumulator = fixedStep
	}
	return steps
}
