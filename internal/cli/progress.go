package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"

	"transcript-tool/internal/services"
)

// progressView draws a single updating progress line for a transcription.
type progressView struct {
	mu      sync.Mutex
	bar     progress.Model
	out     io.Writer
	last    services.ProgressUpdate
	drawn   bool
	lineLen int
}

func newProgressView(out io.Writer) *progressView {
	return &progressView{
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
		out: out,
	}
}

// Sink matches services.ProgressSink.
func (v *progressView) Sink(u services.ProgressUpdate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = u
	line := v.render(u)
	pad := ""
	if n := len(line); n < v.lineLen {
		pad = strings.Repeat(" ", v.lineLen-n)
	}
	v.lineLen = len(line)
	fmt.Fprint(v.out, "\r"+line+pad)
	v.drawn = true
}

func (v *progressView) render(u services.ProgressUpdate) string {
	return fmt.Sprintf("  %s  %s", v.bar.ViewAs(u.Fraction), infoStyle.Render(u.Message))
}

// Finish ends the progress line.
func (v *progressView) Finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.drawn {
		fmt.Fprintln(v.out)
	}
}

func (v *progressView) Last() services.ProgressUpdate {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}
