// Package fieldtransform applies scaling, rotation and translation to planar
// field coordinates, with an optional global axis flip for playing on the
// opposite half.
package fieldtransform

import "math"

type FieldTransform struct {
	flipFactor   float64
	hasTransform bool
	// row-major 2x2 matrix followed by translation: [a b; c d], (tx, ty)
	transform [6]float64
}

// NewFieldTransform constructs an identity transform.
func NewFieldTransform() *FieldTransform {
	return &FieldTransform{
		flipFactor: 1,
		transform:  [6]float64{1, 0, 0, 1, 0, 0},
	}
}

// SetFlip mirrors both axes in addition to the transform.
func (t *FieldTransform) SetFlip(flip bool) {
	if flip {
		t.flipFactor = -1
	} else {
		t.flipFactor = 1
	}
}

func (t *FieldTransform) SetTransform(values [6]float64) {
	t.transform = values
	t.hasTransform = true
}

func (t *FieldTransform) ResetTransform() {
	t.transform = [6]float64{1, 0, 0, 1, 0, 0}
	t.hasTransform = false
}

func (t *FieldTransform) ApplyPosX(x float64, y float64) float64 {
	fx, fy := t.flipFactor*x, t.flipFactor*y
	if !t.hasTransform {
		return fx
	}
	return t.transform[0]*fx + t.transform[1]*fy + t.transform[4]
}

func (t *FieldTransform) ApplyPosY(x float64, y float64) float64 {
	fx, fy := t.flipFactor*x, t.flipFactor*y
	if !t.hasTransform {
		return fy
	}
	return t.transform[2]*fx + t.transform[3]*fy + t.transform[5]
}

func (t *FieldTransform) ApplyPosition(x float64, y float64) (float64, float64) {
	return t.ApplyPosX(x, y), t.ApplyPosY(x, y)
}

// Speeds transform without the translation part.
func (t *FieldTransform) ApplySpeedX(x float64, y float64) float64 {
	fx, fy := t.flipFactor*x, t.flipFactor*y
	if !t.hasTransform {
		return fx
	}
	return t.transform[0]*fx + t.transform[1]*fy
}

func (t *FieldTransform) ApplySpeedY(x float64, y float64) float64 {
	fx, fy := t.flipFactor*x, t.flipFactor*y
	if !t.hasTransform {
		return fy
	}
	return t.transform[2]*fx + t.transform[3]*fy
}

func (t *FieldTransform) ApplyAngle(angle float64) float64 {
	if t.flipFactor < 0 {
		angle += math.Pi
	}
	if !t.hasTransform {
		return angle
	}
	rotation := math.Atan2(t.transform[2], t.transform[0])
	return angle + rotation
}

// ApplyInverseX undoes the transform and flip on the x axis.
func (t *FieldTransform) ApplyInverseX(x float64, y float64) float64 {
	ix, _ := t.applyInverse(x, y)
	return ix
}

// ApplyInverseY undoes the transform and flip on the y axis.
func (t *FieldTransform) ApplyInverseY(x float64, y float64) float64 {
	_, iy := t.applyInverse(x, y)
	return iy
}

func (t *FieldTransform) ApplyInversePosition(x float64, y float64) (float64, float64) {
	return t.applyInverse(x, y)
}

func (t *FieldTransform) applyInverse(x float64, y float64) (float64, float64) {
	ix, iy := x, y
	if t.hasTransform {
		a, b, c, d := t.transform[0], t.transform[1], t.transform[2], t.transform[3]
		det := a*d - b*c
		px := x - t.transform[4]
		py := y - t.transform[5]
		ix = (d*px - b*py) / det
		iy = (a*py - c*px) / det
	}
	return t.flipFactor * ix, t.flipFactor * iy
}
