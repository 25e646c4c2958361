// Package viz is the terminal viewer for a running simulation.
//
// [Model] is a Bubble Tea model that consumes the snapshots a scheduler
// publishes through a channel and draws the bodies and their trails on a
// Braille [Canvas]. [View] holds the world to screen transform.
//
// # Key Bindings
//
//	S/Space - Stop or start the simulation
//	R       - Restart from the initial bodies
//	+/-     - Zoom
//	F       - Fit the view to the bodies
//	C       - Follow the next body
//	T       - Cycle color themes
//	?       - Show help overlay
package viz
