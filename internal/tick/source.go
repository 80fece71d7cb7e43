// Package tick provides the coarse periodic signal that drives the timer.
// Sources are best effort: ticks may arrive late, be coalesced, or stop
// entirely while the host is suspended. Consumers must derive elapsed time
// from timestamps, never from the number of ticks received.
package tick

import "time"

// Source delivers ticks until Stop is called.
type Source interface {
	C() <-chan time.Time
	Stop()
}

// Ticker is a Source backed by time.Ticker.
type Ticker struct {
	ticker *time.Ticker
}

// NewTicker returns a Ticker firing roughly every interval. Non-positive
// intervals default to one second.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{ticker: time.NewTicker(interval)}
}

func (t *Ticker) C() <-chan time.Time { return t.ticker.C }

func (t *Ticker) Stop() { t.ticker.Stop() }

// Manual is a Source driven by explicit Fire calls.
type Manual struct {
	ch chan time.Time
}

// NewManual returns a Manual source with a buffer of size buffer.
func NewManual(buffer int) *Manual {
	if buffer <= 0 {
		buffer = 1
	}
	return &Manual{ch: make(chan time.Time, buffer)}
}

// Fire queues a tick carrying at. It blocks when the buffer is full.
func (m *Manual) Fire(at time.Time) {
	m.ch <- at
}

func (m *Manual) C() <-chan time.Time { return m.ch }

func (m *Manual) Stop() {}
