package prefs

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playscope/playkit/pkg/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	store, err := NewStore(mr.Host(), port, "", 0, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestSaveAndLoad(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	prefs := models.Preferences{
		CurrentAudio:    "fr",
		CurrentQuality:  "720p",
		CurrentSubtitle: "en",
		SubtitleEnabled: true,
	}
	require.NoError(t, store.Save(ctx, "viewer", prefs))

	got, err := store.Load(ctx, "viewer")
	require.NoError(t, err)
	assert.Equal(t, prefs, got)
}

func TestLoadMissingProfile(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, models.Preferences{}, got)
}

func TestLoadCorruptBlob(t *testing.T) {
	store, mr := newTestStore(t)

	require.NoError(t, mr.Set("playkit:prefs:viewer", "{not json"))

	got, err := store.Load(context.Background(), "viewer")
	require.NoError(t, err, "a corrupt blob must read as empty, not fail")
	assert.Equal(t, models.Preferences{}, got)
}

func TestProfilesAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", models.Preferences{CurrentQuality: "1080p"}))
	require.NoError(t, store.Save(ctx, "bob", models.Preferences{CurrentQuality: "480p"}))

	got, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1080p", got.CurrentQuality)
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "viewer", models.Preferences{CurrentQuality: "720p"}))
	require.NoError(t, store.Clear(ctx, "viewer"))

	got, err := store.Load(ctx, "viewer")
	require.NoError(t, err)
	assert.Equal(t, models.Preferences{}, got)
}

func TestSaveAppliesTTL(t *testing.T) {
	store, mr := newTestStore(t)

	require.NoError(t, store.Save(context.Background(), "viewer", models.Preferences{CurrentQuality: "720p"}))

	mr.FastForward(2 * time.Hour)

	got, err := store.Load(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Equal(t, models.Preferences{}, got, "expired blob reads as empty")
}
