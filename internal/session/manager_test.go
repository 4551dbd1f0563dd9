package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playscope/playkit/internal/engine"
	"github.com/playscope/playkit/internal/engine/sim"
	"github.com/playscope/playkit/internal/loader"
	"github.com/playscope/playkit/internal/logging"
)

func newTestManager(t *testing.T) (*Manager, *sim.HLSLib) {
	t.Helper()

	hls := &sim.HLSLib{Manifest: testManifest(), AutoParse: true}
	registry := loader.NewRegistry()
	registry.RegisterHandle(loader.LibraryHLS, engine.HLSLib(hls))

	m := NewManager(ManagerDeps{
		Registry: registry,
		Log:      logging.NewTestLogger(),
	})
	t.Cleanup(m.CloseAll)

	return m, hls
}

func TestManagerCreateAndGet(t *testing.T) {
	m, _ := newTestManager(t)

	p, handle, err := m.Create(context.Background(), "viewer", Config{}, hlsSource())
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(p.ID)
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = m.Get("nope")
	assert.Error(t, err)
}

func TestManagerCreateFailureLeavesNothing(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.Create(context.Background(), "viewer", Config{}, nil)
	require.Error(t, err)
	assert.Zero(t, m.Count())
}

func TestManagerClose(t *testing.T) {
	m, hls := newTestManager(t)

	p, _, err := m.Create(context.Background(), "viewer", Config{}, hlsSource())
	require.NoError(t, err)

	require.NoError(t, m.Close(p.ID))
	assert.Zero(t, m.Count())
	assert.True(t, hls.Last().Destroyed())
	assert.Error(t, m.Close(p.ID))
}

func TestManagerCloseIdle(t *testing.T) {
	m, _ := newTestManager(t)

	stale, _, err := m.Create(context.Background(), "viewer", Config{}, hlsSource())
	require.NoError(t, err)
	fresh, _, err := m.Create(context.Background(), "viewer", Config{}, hlsSource())
	require.NoError(t, err)

	stale.mu.Lock()
	stale.lastUsed = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	assert.Equal(t, 1, m.CloseIdle(10*time.Minute))
	assert.Equal(t, 1, m.Count())

	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = m.Get(stale.ID)
	assert.Error(t, err)
}
