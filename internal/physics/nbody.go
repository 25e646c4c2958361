package physics

import (
	"math"

	"github.com/san-kum/gravsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// G is the gravitational constant in N·m²/kg².
const G = 6.67384e-11

// Option configures an Engine.
type Option func(*Engine)

// WithMinSeparation clamps the pair distance used in the force law to at
// least d meters. Coincident bodies then exert no force on each other
// instead of producing NaN. Zero disables the clamp.
func WithMinSeparation(d float64) Option {
	return func(e *Engine) {
		if d > 0 {
			e.minSep = d
		}
	}
}

// Engine advances a fixed set of bodies one timestep at a time.
type Engine struct {
	bodies []dynamo.Body
	dt     float64
	t      float64
	ticks  uint64
	minSep float64

	// visit is called once per evaluated pair; nil outside tests.
	visit func(i, j int)
}

// NewEngine validates bodies and dt and returns an engine at t = 0.
// The engine works on its own copy of bodies.
func NewEngine(bodies []dynamo.Body, dt float64, opts ...Option) (*Engine, error) {
	if math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, dynamo.ErrNonFinite
	}
	if dt <= 0 {
		return nil, dynamo.ErrNonPositiveStep
	}
	if err := dynamo.ValidateBodies(bodies); err != nil {
		return nil, err
	}
	e := &Engine{
		bodies: dynamo.CloneBodies(bodies),
		dt:     dt,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Advance performs one integration step. Pairs are visited in (i, j), i < j
// order and every velocity update is applied before any position moves.
//
// Two bodies at the same position make the force law divide by zero; unless
// a minimum separation is set, the resulting NaN propagates into both bodies.
func (e *Engine) Advance() {
	n := len(e.bodies)
	dt := e.dt

	for i := 0; i < n-1; i++ {
		bi := &e.bodies[i]
		for j := i + 1; j < n; j++ {
			bj := &e.bodies[j]
			if e.visit != nil {
				e.visit(i, j)
			}

			dx := bj.Pos.X - bi.Pos.X
			dy := bj.Pos.Y - bi.Pos.Y
			r := math.Sqrt(dx*dx + dy*dy)
			if r < e.minSep {
				r = e.minSep
			}

			f := G * bi.Mass * bj.Mass / (r * r)
			fx := f * dx / r
			fy := f * dy / r

			bi.Vel.X += fx / bi.Mass * dt
			bi.Vel.Y += fy / bi.Mass * dt
			bj.Vel.X += -fx / bj.Mass * dt
			bj.Vel.Y += -fy / bj.Mass * dt
		}
	}

	for i := range e.bodies {
		b := &e.bodies[i]
		b.Pos.X += b.Vel.X * dt
		b.Pos.Y += b.Vel.Y * dt
	}

	e.t += dt
	e.ticks++
}

// Bodies returns a copy of the current body sequence.
func (e *Engine) Bodies() []dynamo.Body { return dynamo.CloneBodies(e.bodies) }

// Time returns the accumulated simulated time in seconds.
func (e *Engine) Time() float64 { return e.t }

// Step returns the simulated seconds advanced per tick.
func (e *Engine) Step() float64 { return e.dt }

// Ticks returns the number of completed Advance calls.
func (e *Engine) Ticks() uint64 { return e.ticks }

// Len returns the number of bodies.
func (e *Engine) Len() int { return len(e.bodies) }

// Energy returns total kinetic plus gravitational potential energy in joules.
func Energy(bodies []dynamo.Body) float64 {
	ke := 0.0
	pe := 0.0

	for i := range bodies {
		bi := bodies[i]
		ke += 0.5 * bi.Mass * (bi.Vel.X*bi.Vel.X + bi.Vel.Y*bi.Vel.Y)

		for j := i + 1; j < len(bodies); j++ {
			bj := bodies[j]
			rx := bj.Pos.X - bi.Pos.X
			ry := bj.Pos.Y - bi.Pos.Y
			pe -= G * bi.Mass * bj.Mass / math.Sqrt(rx*rx+ry*ry)
		}
	}

	return ke + pe
}

// Momentum returns the total linear momentum in kg·m/s.
func Momentum(bodies []dynamo.Body) r2.Vec {
	var p r2.Vec
	for _, b := range bodies {
		p = r2.Add(p, r2.Scale(b.Mass, b.Vel))
	}
	return p
}

// AngularMomentum returns the total angular momentum about the origin.
func AngularMomentum(bodies []dynamo.Body) float64 {
	L := 0.0
	for _, b := range bodies {
		L += b.Mass * r2.Cross(b.Pos, b.Vel)
	}
	return L
}
