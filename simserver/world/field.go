package world

import (
	"github.com/bytearena/box2d"
	"github.com/simarena/simarena/physics"
	"github.com/simarena/simarena/protocol"
)

// Field is the static collision geometry: the outer boundary wall and the
// two goal boxes.
type Field struct {
	world  *physics.World
	bodies []*box2d.B2Body
}

func NewField(w *physics.World, geometry protocol.Geometry) *Field {
	f := &Field{world: w}

	halfW := (geometry.FieldWidth/2 + geometry.BoundaryWidth) * physics.SimulatorScale
	halfH := (geometry.FieldHeight/2 + geometry.BoundaryWidth) * physics.SimulatorScale

	f.bodies = append(f.bodies, makeWallLoop(w, []box2d.B2Vec2{
		{X: -halfW, Y: -halfH},
		{X: halfW, Y: -halfH},
		{X: halfW, Y: halfH},
		{X: -halfW, Y: halfH},
	}))

	// goal boxes behind each goal line
	for _, side := range []float64{1, -1} {
		goalY := side * geometry.FieldHeight / 2 * physics.SimulatorScale
		backY := side * (geometry.FieldHeight/2 + geometry.GoalDepth) * physics.SimulatorScale
		halfGoal := geometry.GoalWidth / 2 * physics.SimulatorScale

		f.bodies = append(f.bodies, makeWallChain(w, []box2d.B2Vec2{
			{X: -halfGoal, Y: goalY},
			{X: -halfGoal, Y: backY},
			{X: halfGoal, Y: backY},
			{X: halfGoal, Y: goalY},
		}))
	}

	return f
}

func makeWallLoop(w *physics.World, vertices []box2d.B2Vec2) *box2d.B2Body {
	bodydef := box2d.MakeB2BodyDef()
	bodydef.Type = box2d.B2BodyType.B2_staticBody
	body := w.CreateBody(&bodydef)

	shape := box2d.MakeB2ChainShape()
	shape.CreateLoop(vertices, len(vertices))
	body.CreateFixture(&shape, 0.0)
	return body
}

func makeWallChain(w *physics.World, vertices []box2d.B2Vec2) *box2d.B2Body {
	bodydef := box2d.MakeB2BodyDef()
	bodydef.Type = box2d.B2BodyType.B2_staticBody
	body := w.CreateBody(&bodydef)

	shape := box2d.MakeB2ChainShape()
	shape.CreateChain(vertices, len(vertices))
	body.CreateFixture(&shape, 0.0)
	return body
}

func (f *Field) Destroy() {
	for _, body := range f.bodies {
		f.world.DestroyBody(body)
	}
	f.bodies = nil
}
