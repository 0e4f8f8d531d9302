package vector

import (
	"math"
	"strconv"

	"github.com/simarena/simarena/common/utils/number"
)

type Vector2 struct {
	x float64
	y float64
}

func MakeVector2(x float64, y float64) Vector2 {
	return Vector2{x, y}
}

// Returns a null vector2
func MakeNullVector2() Vector2 {
	return MakeVector2(0, 0)
}

func (v Vector2) Get() (float64, float64) {
	return v.x, v.y
}

func (v Vector2) GetX() float64 {
	return v.x
}

func (v Vector2) GetY() float64 {
	return v.y
}

var floatformat = byte('f')

func (v Vector2) MarshalJSON() ([]byte, error) {
	b := []byte{'['}
	b = strconv.AppendFloat(b, v.x, floatformat, 4, 64)
	b = append(b, byte(','))
	b = strconv.AppendFloat(b, v.y, floatformat, 4, 64)
	return append(b, byte(']')), nil
}

func (a Vector2) Add(b Vector2) Vector2 {
	a.x += b.x
	a.y += b.y
	return a
}

func (a Vector2) Sub(b Vector2) Vector2 {
	a.x -= b.x
	a.y -= b.y
	return a
}

func (a Vector2) MultScalar(f float64) Vector2 {
	a.x *= f
	a.y *= f
	return a
}

func (a Vector2) DivScalar(f float64) Vector2 {
	a.x /= f
	a.y /= f
	return a
}

func (a Vector2) Mag() float64 {
	return math.Sqrt(a.MagSq())
}

func (a Vector2) MagSq() float64 {
	return a.x*a.x + a.y*a.y
}

func (a Vector2) Dist(b Vector2) float64 {
	return b.Sub(a).Mag()
}

// ManhattanDist is the L1 distance; rectangular partitions fall out of it.
func (a Vector2) ManhattanDist(b Vector2) float64 {
	return math.Abs(a.x-b.x) + math.Abs(a.y-b.y)
}

func (a Vector2) Normalize() Vector2 {
	mag := a.Mag()
	if number.IsZero(mag) {
		return a
	}
	return a.DivScalar(mag)
}

func (a Vector2) SetMag(mag float64) Vector2 {
	return a.Normalize().MultScalar(mag)
}

func (a Vector2) Limit(max float64) Vector2 {
	if a.MagSq() > max*max {
		return a.SetMag(max)
	}
	return a
}

func (a Vector2) Angle() float64 {
	return math.Atan2(a.y, a.x)
}

func (a Vector2) Rotate(radians float64) Vector2 {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return MakeVector2(
		a.x*cos-a.y*sin,
		a.x*sin+a.y*cos,
	)
}

func (a Vector2) Dot(b Vector2) float64 {
	return a.x*b.x + a.y*b.y
}

func (a Vector2) IsNull() bool {
	return number.IsZero(a.x) && number.IsZero(a.y)
}
