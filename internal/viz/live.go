package viz

import (
	"fmt"
	"io"
	"time"

	"github.com/san-kum/queuesim/internal/dynamo"
)

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer is a simulation observer that redraws the occupancy
// distribution on every frame while the integration runs.
type LiveRenderer struct {
	w         io.Writer
	title     string
	frameRate int
	lastFrame time.Time
	frames    int
	ansi      bool
}

// NewLiveRenderer draws at most frameRate frames per second; a non-positive
// rate draws every step. ANSI cursor control is only emitted when ansi is set.
func NewLiveRenderer(w io.Writer, title string, frameRate int, ansi bool) *LiveRenderer {
	return &LiveRenderer{w: w, title: title, frameRate: frameRate, ansi: ansi}
}

func (r *LiveRenderer) OnStep(p dynamo.State, t float64) {
	if r.frameRate > 0 {
		if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
			return
		}
		r.lastFrame = time.Now()
	}
	r.frames++

	if r.ansi {
		fmt.Fprint(r.w, clearScreen+hideCursor)
	}
	fmt.Fprintf(r.w, "%s  %s %s\n\n", titleStyle().Render(r.title), labelStyle().Render("t ="), valueStyle().Render(fmt.Sprintf("%.4f", t)))
	fmt.Fprint(r.w, RenderDistribution(p, barWidth, 0.5))
}

// Frames reports how many frames were drawn.
func (r *LiveRenderer) Frames() int { return r.frames }

// Close restores the cursor.
func (r *LiveRenderer) Close() {
	if r.ansi {
		fmt.Fprint(r.w, showCursor)
	}
}
