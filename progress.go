package parbatch

import (
	"fmt"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"io"
	"os"
	"sync"
)

var progressCountStyle = lipgloss.NewStyle().Faint(true)

//ConsoleProgress render run progress as an in-place terminal bar. All methods
//are safe for concurrent use and rendering errors are dropped, progress output
//can never affect the run outcome.
type ConsoleProgress struct {
	mu        sync.Mutex
	out       io.Writer
	bar       progress.Model
	total     int
	completed int
}

//NewConsoleProgress new instance writing to out, nil means stdout
func NewConsoleProgress(out io.Writer) *ConsoleProgress {
	if out == nil {
		out = os.Stdout
	}
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return &ConsoleProgress{out: out, bar: bar}
}

//OnStart implement ProgressReporter
func (p *ConsoleProgress) OnStart(totalChunks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = totalChunks
	p.completed = 0
	p.render()
}

//OnChunkDone implement ProgressReporter
func (p *ConsoleProgress) OnChunkDone(rng IndexRange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	p.render()
}

//OnFinish implement ProgressReporter
func (p *ConsoleProgress) OnFinish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render()
	fmt.Fprintln(p.out)
}

//PercentComplete fraction of chunks finished so far
func (p *ConsoleProgress) PercentComplete() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total == 0 {
		return 0
	}
	return float64(p.completed) / float64(p.total)
}

func (p *ConsoleProgress) render() {
	pct := 0.0
	if p.total > 0 {
		pct = float64(p.completed) / float64(p.total)
	}
	counts := progressCountStyle.Render(fmt.Sprintf(" %d/%d chunks", p.completed, p.total))
	fmt.Fprintf(p.out, "\r%s%s", p.bar.ViewAs(pct), counts)
}
