package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/playscope/playkit/internal/logging"
)

type stubReaper struct {
	reaped  atomic.Int32
	perCall int
}

func (r *stubReaper) CloseIdle(maxIdle time.Duration) int {
	r.reaped.Add(int32(r.perCall))
	return r.perCall
}

func TestSweepReapsIdleSessions(t *testing.T) {
	r := &stubReaper{perCall: 2}
	j := NewJanitor(r, time.Minute, 5*time.Minute, logging.NewTestLogger())

	j.Sweep()
	j.Sweep()

	assert.Equal(t, int32(4), r.reaped.Load())
}

func TestStartStopLoop(t *testing.T) {
	r := &stubReaper{perCall: 1}
	j := NewJanitor(r, 5*time.Millisecond, time.Minute, logging.NewTestLogger())

	j.Start()

	assert.Eventually(t, func() bool {
		return r.reaped.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	j.Stop()
	after := r.reaped.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, r.reaped.Load(), "no sweeps after stop")
}

func TestStopWithoutStart(t *testing.T) {
	j := NewJanitor(&stubReaper{}, time.Minute, time.Minute, logging.NewTestLogger())
	j.Stop()
}
