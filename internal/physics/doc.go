// Package physics implements the fixed-timestep N-body gravity engine.
//
// [Engine] owns an ordered set of [dynamo.Body] values and advances them
// with a symplectic-Euler scheme: pairwise Newtonian forces are summed into
// velocities first, then every position moves with its new velocity.
//
// The conservation helpers [Energy], [Momentum] and [AngularMomentum]
// operate on any body slice, typically a published snapshot:
//
//	e, _ := physics.NewEngine(bodies, 60)
//	p0 := physics.Momentum(e.Bodies())
//	e.Advance()
//	p1 := physics.Momentum(e.Bodies())
//
// Engine instances are NOT safe for concurrent use. The scheduler in
// package sim is their single owner.
package physics
