package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playscope/playkit/internal/engine"
	"github.com/playscope/playkit/internal/engine/sim"
	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/pkg/models"
)

func dashTestSource() models.Source {
	return models.Source{URL: "https://cdn.example.com/manifest.mpd", Kind: models.SourceKindDASH}
}

func TestDASHAdapterDisablesAutoSwitch(t *testing.T) {
	lib := &sim.DASHLib{Manifest: simManifest()}
	a := engine.NewDASHAdapter(lib, nil)
	defer a.Destroy()

	require.NoError(t, a.Attach(media.NewSimElement(), engine.Events{}))
	require.NoError(t, a.Load(context.Background(), dashTestSource()))

	assert.False(t, lib.Last().AutoSwitch())
}

func TestDASHAdapterLadderArrivesAtFirstFrame(t *testing.T) {
	lib := &sim.DASHLib{Manifest: simManifest()}
	a := engine.NewDASHAdapter(lib, nil)
	defer a.Destroy()

	var gotLevels []engine.QualityLevel
	require.NoError(t, a.Attach(media.NewSimElement(), engine.Events{
		OnQualityLevels: func(levels []engine.QualityLevel) { gotLevels = levels },
	}))
	require.NoError(t, a.Load(context.Background(), dashTestSource()))

	assert.Empty(t, a.Levels(), "no bitrate info before the first decoded frame")
	assert.Empty(t, gotLevels)

	lib.Last().FireFirstFrame()

	assert.Len(t, gotLevels, 3)
	assert.Equal(t, gotLevels, a.Levels())
}

func TestDASHAdapterQueuesSelectionUntilFirstFrame(t *testing.T) {
	lib := &sim.DASHLib{Manifest: simManifest()}
	a := engine.NewDASHAdapter(lib, nil)
	defer a.Destroy()

	require.NoError(t, a.Attach(media.NewSimElement(), engine.Events{}))
	require.NoError(t, a.Load(context.Background(), dashTestSource()))
	inst := lib.Last()

	require.NoError(t, a.SetQualityLevel(1))
	assert.Equal(t, -1, inst.Quality(), "selection waits for bitrate info")

	inst.FireFirstFrame()
	assert.Equal(t, 1, inst.Quality(), "queued selection applied at first frame")

	require.NoError(t, a.SetQualityLevel(2))
	assert.Equal(t, 2, inst.Quality(), "later selections apply immediately")
}

func TestDASHAdapterLoadReturnsWithSynchronousFirstFrame(t *testing.T) {
	lib := &sim.DASHLib{Manifest: simManifest(), AutoFirstFrame: true}
	a := engine.NewDASHAdapter(lib, nil)
	defer a.Destroy()

	var discovered []engine.QualityLevel
	require.NoError(t, a.Attach(media.NewSimElement(), engine.Events{
		OnQualityLevels: func(levels []engine.QualityLevel) {
			discovered = levels
			// the handler re-enters the adapter while Load is still running
			assert.Len(t, a.Levels(), 3)
		},
	}))

	done := make(chan error, 1)
	go func() { done <- a.Load(context.Background(), dashTestSource()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return when the first frame fired synchronously")
	}
	assert.Len(t, discovered, 3)
}

func TestDASHAdapterRestartReattachesSource(t *testing.T) {
	lib := &sim.DASHLib{Manifest: simManifest(), AutoFirstFrame: true}
	a := engine.NewDASHAdapter(lib, nil)
	defer a.Destroy()

	require.NoError(t, a.Attach(media.NewSimElement(), engine.Events{}))
	require.NoError(t, a.Load(context.Background(), dashTestSource()))
	inst := lib.Last()

	done := make(chan error, 1)
	go func() { done <- a.Restart() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Restart did not return when the first frame fired synchronously")
	}
	assert.Equal(t, 2, inst.AttachCount())
}

func TestDASHAdapterRewritesManifestRequest(t *testing.T) {
	lib := &sim.DASHLib{Manifest: simManifest()}
	a := engine.NewDASHAdapter(lib, func(requestURL string, src models.Source) string {
		return requestURL + "?token=xyz"
	})
	defer a.Destroy()

	require.NoError(t, a.Attach(media.NewSimElement(), engine.Events{}))
	require.NoError(t, a.Load(context.Background(), dashTestSource()))

	assert.Contains(t, lib.Last().RequestLog[0], "?token=xyz")
}

func TestDASHAdapterUnsupportedOperations(t *testing.T) {
	lib := &sim.DASHLib{Manifest: simManifest()}
	a := engine.NewDASHAdapter(lib, nil)
	defer a.Destroy()

	require.NoError(t, a.Attach(media.NewSimElement(), engine.Events{}))
	require.NoError(t, a.Load(context.Background(), dashTestSource()))

	assert.ErrorIs(t, a.SetAudioTrack(0), engine.ErrUnsupported)
	assert.ErrorIs(t, a.RecoverMedia(), engine.ErrUnsupported)
	assert.False(t, a.Capabilities().AudioTracks)
}

func TestDASHAdapterDestroyResetsInstance(t *testing.T) {
	lib := &sim.DASHLib{Manifest: simManifest()}
	a := engine.NewDASHAdapter(lib, nil)

	require.NoError(t, a.Attach(media.NewSimElement(), engine.Events{}))
	require.NoError(t, a.Load(context.Background(), dashTestSource()))
	inst := lib.Last()

	a.Destroy()
	assert.Equal(t, 1, inst.ResetCount())
	assert.ErrorIs(t, a.Load(context.Background(), dashTestSource()), engine.ErrDestroyed)
}
