// Package scheduler runs the daemon's periodic maintenance: reaping playback
// surfaces that hosts abandoned without closing.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/playscope/playkit/internal/metrics"
)

// Reaper closes idle playback surfaces and reports how many were closed
type Reaper interface {
	CloseIdle(maxIdle time.Duration) int
}

// Janitor periodically sweeps abandoned players. Hosts usually close their
// sessions on unmount, but a crashed embedder leaves its surface behind.
type Janitor struct {
	reaper   Reaper
	interval time.Duration
	maxIdle  time.Duration
	log      zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a janitor sweeping every interval
func NewJanitor(reaper Reaper, interval, maxIdle time.Duration, log zerolog.Logger) *Janitor {
	return &Janitor{
		reaper:   reaper,
		interval: interval,
		maxIdle:  maxIdle,
		log:      log.With().Str("component", "janitor").Logger(),
	}
}

// Start begins the sweep loop
func (j *Janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.loop(ctx)
	j.log.Info().
		Dur("interval", j.interval).
		Dur("max_idle", j.maxIdle).
		Msg("Janitor started")
}

// Stop halts the sweep loop and waits for it to exit
func (j *Janitor) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
	j.log.Info().Msg("Janitor stopped")
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one reap pass
func (j *Janitor) Sweep() {
	reaped := j.reaper.CloseIdle(j.maxIdle)
	if reaped > 0 {
		metrics.IdleSessionsReapedTotal.Add(float64(reaped))
		j.log.Info().Int("reaped", reaped).Msg("Closed idle playback sessions")
	}
}
