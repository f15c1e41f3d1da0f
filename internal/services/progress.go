package services

import (
	"log"
	"sync"
	"time"
)

// progressCloseGrace bounds how long Close waits for the sink to drain.
const progressCloseGrace = 500 * time.Millisecond

// ProgressUpdate is one step of a transcription's progress.
type ProgressUpdate struct {
	Fraction float64 `json:"fraction"`
	Stage    string  `json:"stage"`
	Message  string  `json:"message"`
}

// ProgressSink receives progress updates. It runs on its own goroutine and
// may be slow or panic without affecting the transcription.
type ProgressSink func(ProgressUpdate)

// progressReporter clamps updates to a non-decreasing sequence in [0,1] and
// hands them to the sink without blocking. When the buffer is full the
// oldest pending update is dropped.
type progressReporter struct {
	mu     sync.Mutex
	last   float64
	closed bool
	ch     chan ProgressUpdate
	done   chan struct{}
}

func newProgressReporter(sink ProgressSink, buffer int) *progressReporter {
	p := &progressReporter{done: make(chan struct{})}
	if sink == nil {
		close(p.done)
		return p
	}
	if buffer <= 0 {
		buffer = 1
	}
	p.ch = make(chan ProgressUpdate, buffer)
	go func() {
		defer close(p.done)
		for u := range p.ch {
			deliver(sink, u)
		}
	}()
	return p
}

func deliver(sink ProgressSink, u ProgressUpdate) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("progress sink panicked: %v", r)
		}
	}()
	sink(u)
}

func (p *progressReporter) Report(fraction float64, stage, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction < p.last {
		fraction = p.last
	}
	p.last = fraction

	if p.ch == nil {
		return
	}
	u := ProgressUpdate{Fraction: fraction, Stage: stage, Message: message}
	for {
		select {
		case p.ch <- u:
			return
		default:
		}
		select {
		case <-p.ch:
		default:
		}
	}
}

// Last returns the highest fraction reported so far.
func (p *progressReporter) Last() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Close stops accepting updates and gives the sink a short grace period to
// see whatever is still buffered. A stuck sink is abandoned, not waited on.
func (p *progressReporter) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		if p.ch != nil {
			close(p.ch)
		}
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(progressCloseGrace):
		log.Printf("progress sink still busy after %s, not waiting", progressCloseGrace)
	}
}
