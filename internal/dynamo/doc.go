// Package dynamo provides the core data model shared by the gravity simulator.
//
// The package defines the value types that flow between the simulation
// engine, the update scheduler and every consumer:
//
//   - [Body]: a point mass with position, velocity and cosmetic attributes
//   - [Snapshot]: an immutable copy of the body sequence after one tick
//   - [ConfigError], [SimulationError]: error wrappers carrying context
//
// # Example
//
//	bodies := []dynamo.Body{
//	    {Name: "a", Mass: 1e10, Pos: r2.Vec{Y: -3}},
//	    {Name: "b", Mass: 1e10, Pos: r2.Vec{Y: 3}},
//	}
//	if err := dynamo.ValidateBodies(bodies); err != nil {
//	    return err
//	}
//
// # Ownership
//
// Body contains no pointers or slices, so copying a []Body yields an
// independent deep copy. Snapshots handed to consumers never alias the
// engine's working set.
package dynamo
