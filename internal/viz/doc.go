// Package viz draws trajectories in the terminal.
//
// [Canvas] is a Braille pixel canvas: every character cell holds a 2x4 grid of
// dots, so a W×H canvas has 2W×4H addressable pixels. [PathPlot] maps a
// trajectory's (x, y) positions onto a canvas in screen orientation, with y
// growing downward.
package viz
