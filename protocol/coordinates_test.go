package protocol

import (
	"math"
	"testing"

	"github.com/simarena/simarena/common/fieldtransform"
	"github.com/simarena/simarena/common/utils/vector"
)

func TestToVisionScalesToMillimeters(t *testing.T) {
	transform := fieldtransform.NewFieldTransform()
	x, y := ToVision(transform, vector.MakeVector2(1.5, -0.25))
	if x != 1500 || y != -250 {
		t.Fatalf("expected (1500, -250), got (%v, %v)", x, y)
	}
}

func TestVisionRoundTripWithFlip(t *testing.T) {
	transform := fieldtransform.NewFieldTransform()
	transform.SetFlip(true)

	pos := vector.MakeVector2(-2.0, 3.5)
	x, y := ToVision(transform, pos)
	back := FromVision(transform, x, y)

	if math.Abs(back.GetX()-pos.GetX()) > 1e-9 || math.Abs(back.GetY()-pos.GetY()) > 1e-9 {
		t.Fatalf("round trip failed: got (%v, %v)", back.GetX(), back.GetY())
	}
}

func TestConvertToVisionGeometry(t *testing.T) {
	field := ConvertToVisionGeometry(Geometry{
		FieldWidth:    9,
		FieldHeight:   12,
		GoalWidth:     1.2,
		GoalDepth:     0.18,
		BoundaryWidth: 0.3,
	})
	if field.FieldLength != 12000 || field.FieldWidth != 9000 {
		t.Fatalf("field size wrong: %+v", field)
	}
	if field.GoalWidth != 1200 || field.GoalDepth != 180 || field.BoundaryWidth != 300 {
		t.Fatalf("goal/boundary wrong: %+v", field)
	}
}

func TestMarshalFailureNeverPanics(t *testing.T) {
	data, err := Marshal(map[string]interface{}{"bad": make(chan int)})
	if err == nil {
		t.Fatal("expected an encode error for an unsupported type")
	}
	if len(data) != 0 {
		t.Fatal("failed encode must not yield bytes")
	}
}
