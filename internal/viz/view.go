package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/gravsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// offscreen bounds the projected coordinates handed back as ints.
const offscreen = 1 << 20

// View maps world meters onto canvas sub-pixels: y points up in the world
// and down on screen, Center lands in the middle of the canvas.
type View struct {
	Center         r2.Vec
	MetersPerPixel float64
	width, height  int
}

// NewView returns a view centred on the origin.
func NewView(width, height int, metersPerPixel float64) *View {
	if metersPerPixel <= 0 {
		metersPerPixel = 1
	}
	return &View{MetersPerPixel: metersPerPixel, width: width, height: height}
}

// FitView centres on the center of mass and scales so every finite body
// lies inside the canvas.
func FitView(width, height int, bodies []dynamo.Body) *View {
	com := CenterOfMass(bodies)
	extent := 0.0
	for _, b := range bodies {
		if b.IsValid() {
			extent = math.Max(extent, r2.Norm(r2.Sub(b.Pos, com)))
		}
	}

	v := NewView(width, height, 1)
	v.Center = com
	if extent > 0 {
		v.MetersPerPixel = 2.2 * extent / float64(min(width, height))
	}
	return v
}

// CenterOfMass of the finite bodies, or the origin when there are none.
func CenterOfMass(bodies []dynamo.Body) r2.Vec {
	var sum r2.Vec
	mass := 0.0
	for _, b := range bodies {
		if !b.IsValid() {
			continue
		}
		sum = r2.Add(sum, r2.Scale(b.Mass, b.Pos))
		mass += b.Mass
	}
	if mass == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/mass, sum)
}

// Resize sets the canvas size in sub-pixels.
func (v *View) Resize(width, height int) {
	v.width, v.height = width, height
}

// Zoom scales the view by factor; values above one zoom in.
func (v *View) Zoom(factor float64) {
	if factor > 0 {
		v.MetersPerPixel /= factor
	}
}

// Matrix is the homogeneous world to screen transform.
func (v *View) Matrix() mgl64.Mat3 {
	s := 1 / v.MetersPerPixel
	return mgl64.Translate2D(float64(v.width)/2, float64(v.height)/2).
		Mul3(mgl64.Scale2D(s, -s)).
		Mul3(mgl64.Translate2D(-v.Center.X, -v.Center.Y))
}

// Project returns the sub-pixel for p. ok is false for non-finite points
// and points too far off screen to represent.
func (v *View) Project(p r2.Vec) (x, y int, ok bool) {
	q := v.Matrix().Mul3x1(mgl64.Vec3{p.X, p.Y, 1})
	if math.IsNaN(q[0]) || math.IsNaN(q[1]) || math.Abs(q[0]) > offscreen || math.Abs(q[1]) > offscreen {
		return 0, 0, false
	}
	return int(math.Floor(q[0])), int(math.Floor(q[1])), true
}

// Unproject maps a sub-pixel back to world coordinates.
func (v *View) Unproject(x, y int) r2.Vec {
	q := v.Matrix().Inv().Mul3x1(mgl64.Vec3{float64(x), float64(y), 1})
	return r2.Vec{X: q[0], Y: q[1]}
}

// DiscRadius is radius in sub-pixels, at least one and at most the
// canvas diagonal.
func (v *View) DiscRadius(radius float64) int {
	limit := float64(v.width + v.height)
	return max(1, int(math.Min(radius/v.MetersPerPixel, limit)))
}
