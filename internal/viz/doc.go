// Package viz provides the terminal view of a running episode.
//
// [Model] is a Bubble Tea program that steps a policy in the environment
// and draws top (x-y) and side (x-z) projections of the arm, obstacle and
// goal on braille [Canvas] grids, next to a stats panel.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	N     - Single step (pauses)
//	R     - Reset to a new episode
//	Q     - Quit
package viz
