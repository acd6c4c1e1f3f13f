package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hazyhaar/recon/recon"
)

// ProgressBar renders recon progress events as one redrawn line per stage.
type ProgressBar struct {
	w     io.Writer
	width int

	mu    sync.Mutex
	stage recon.Stage
	open  bool
}

// NewProgressBar writes to w (usually os.Stderr) with a bar of width cells.
func NewProgressBar(w io.Writer, width int) *ProgressBar {
	if width <= 0 {
		width = 30
	}
	return &ProgressBar{w: w, width: width}
}

// Advance implements recon.Progress.
func (p *ProgressBar) Advance(stage recon.Stage, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open && stage != p.stage {
		fmt.Fprintln(p.w)
	}
	p.stage, p.open = stage, true

	filled := 0
	if total > 0 {
		filled = min(p.width, done*p.width/total)
	}
	fmt.Fprintf(p.w, "\r%-10s [%s%s] %d/%d",
		stage, strings.Repeat("#", filled), strings.Repeat(".", p.width-filled), done, total)
	if done >= total {
		fmt.Fprintln(p.w)
		p.open = false
	}
}

// Done terminates a line left open by an interrupted stage.
func (p *ProgressBar) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}
