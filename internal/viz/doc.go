// Package viz renders queuing runs for the terminal.
//
//   - [RenderMetrics], [RenderMatrix], [RenderDistribution]: lipgloss reports
//   - [PlotTrajectory], [PlotResponse]: asciigraph charts
//   - [PlotPortrait]: braille trace of two state probabilities
//   - [LiveRenderer]: observer that redraws the distribution during a run
//   - [ReplayModel], [App]: Bubble Tea replay and interactive preset browser
//
// # Key Bindings
//
//	Space - Play/Pause replay
//	[ ]   - Step one frame back/forward
//	+ -   - Change playback speed
//	T     - Cycle color themes
//	?     - Show help line
package viz
