package protocol

import (
	"github.com/simarena/simarena/common/fieldtransform"
	"github.com/simarena/simarena/common/utils/vector"
)

// Vision units are millimeters; internal units are meters. The field
// transform is applied on the way out and inverted on the way in, so hosts
// replaying logs from a translated or rotated field see consistent frames.

func ToVision(t *fieldtransform.FieldTransform, pos vector.Vector2) (float64, float64) {
	x, y := t.ApplyPosition(pos.GetX(), pos.GetY())
	return x * 1000, y * 1000
}

func FromVision(t *fieldtransform.FieldTransform, x float64, y float64) vector.Vector2 {
	ix, iy := t.ApplyInversePosition(x/1000, y/1000)
	return vector.MakeVector2(ix, iy)
}
