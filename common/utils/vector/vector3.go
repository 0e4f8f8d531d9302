package vector

import (
	"math"
	"strconv"

	"github.com/simarena/simarena/common/utils/number"
)

type Vector3 struct {
	x float64
	y float64
	z float64
}

func MakeVector3(x float64, y float64, z float64) Vector3 {
	return Vector3{x, y, z}
}

// Returns a null Vector3
func MakeNullVector3() Vector3 {
	return MakeVector3(0, 0, 0)
}

func (v Vector3) Get() (float64, float64, float64) {
	return v.x, v.y, v.z
}

func (v Vector3) GetX() float64 {
	return v.x
}

func (v Vector3) GetY() float64 {
	return v.y
}

func (v Vector3) GetZ() float64 {
	return v.z
}

func (v Vector3) SetZ(z float64) Vector3 {
	v.z = z
	return v
}

func (v Vector3) MarshalJSON() ([]byte, error) {
	b := []byte{'['}
	b = strconv.AppendFloat(b, v.x, floatformat, 4, 64)
	b = append(b, byte(','))
	b = strconv.AppendFloat(b, v.y, floatformat, 4, 64)
	b = append(b, byte(','))
	b = strconv.AppendFloat(b, v.z, floatformat, 4, 64)
	return append(b, byte(']')), nil
}

func (a Vector3) Add(b Vector3) Vector3 {
	a.x += b.x
	a.y += b.y
	a.z += b.z
	return a
}

func (a Vector3) Sub(b Vector3) Vector3 {
	a.x -= b.x
	a.y -= b.y
	a.z -= b.z
	return a
}

func (a Vector3) MultScalar(f float64) Vector3 {
	a.x *= f
	a.y *= f
	a.z *= f
	return a
}

func (a Vector3) DivScalar(f float64) Vector3 {
	a.x /= f
	a.y /= f
	a.z /= f
	return a
}

func (a Vector3) Mag() float64 {
	return math.Sqrt(a.x*a.x + a.y*a.y + a.z*a.z)
}

func (a Vector3) Dist(b Vector3) float64 {
	return b.Sub(a).Mag()
}

func (a Vector3) Normalize() Vector3 {
	mag := a.Mag()
	if number.IsZero(mag) {
		return a
	}
	return a.DivScalar(mag)
}

// Plane drops the z component.
func (a Vector3) Plane() Vector2 {
	return MakeVector2(a.x, a.y)
}

func (a Vector2) WithZ(z float64) Vector3 {
	return MakeVector3(a.x, a.y, z)
}
