// Package state holds the unified, derived view of available and selected
// quality, audio, and subtitle options for one playback session. The store
// is single-writer (the session controller) and multi-reader (presentation).
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/playscope/playkit/pkg/models"
)

// Persister saves the preference blob restored on the next session
type Persister interface {
	Save(ctx context.Context, profile string, prefs models.Preferences) error
}

// Store keeps track state consistent with discovery events and selections.
// Every non-empty Current* value references an id in its list; a persisted
// selection that no longer appears after discovery is discarded, not kept
// stale.
type Store struct {
	mu sync.RWMutex

	st       models.TrackState
	restored models.Preferences

	profile   string
	persister Persister
	log       zerolog.Logger

	persistKick chan struct{}
	persistDone chan struct{}
	closed      bool
}

// NewStore creates a store for one playback profile. persister may be nil
// when selections should not outlive the process.
func NewStore(profile string, persister Persister, log zerolog.Logger) *Store {
	s := &Store{
		profile:   profile,
		persister: persister,
		log:       log.With().Str("component", "state").Logger(),
		st:        models.TrackState{SubtitleEnabled: true},
	}
	if persister != nil {
		s.persistKick = make(chan struct{}, 1)
		s.persistDone = make(chan struct{})
		go s.persistLoop()
	}
	return s
}

// Snapshot returns a copy of the current track state
func (s *Store) Snapshot() models.TrackState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.st
	st.Qualities = append([]string(nil), s.st.Qualities...)
	st.Audios = append([]models.AudioTrack(nil), s.st.Audios...)
	st.Subtitles = append([]models.SubtitleTrack(nil), s.st.Subtitles...)
	return st
}

// ResetSession seeds the store for a newly opened session: host-supplied
// subtitles, label-derived qualities, and the persisted restore candidates.
// Restored ids only survive if they appear in the seeded lists; later
// discovery events re-filter them against fresh lists.
func (s *Store) ResetSession(subtitles []models.SubtitleTrack, qualities []string, restored models.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restored = restored
	s.st = models.TrackState{
		Qualities:       qualities,
		Subtitles:       subtitles,
		SubtitleEnabled: !restoredDisablesSubtitle(restored),
	}

	if len(qualities) > 0 {
		s.st.CurrentQuality = qualities[0]
		if restored.CurrentQuality != "" && lo.Contains(qualities, restored.CurrentQuality) {
			s.st.CurrentQuality = restored.CurrentQuality
		}
	}
	if len(subtitles) > 0 {
		s.st.CurrentSubtitle = subtitles[0].ID
		if restored.CurrentSubtitle != "" && hasSubtitle(subtitles, restored.CurrentSubtitle) {
			s.st.CurrentSubtitle = restored.CurrentSubtitle
		}
	}
}

// ApplyQualities publishes a freshly discovered quality list. The current
// selection is kept when still present; otherwise the restored preference,
// the caller preference hook, and the first entry are consulted in that
// order. Replaying the same discovery produces an identical state.
func (s *Store) ApplyQualities(labels []string, prefer models.PreferQualityFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.Qualities = labels

	if len(labels) == 0 {
		s.st.CurrentQuality = ""
		return
	}

	switch {
	case s.st.CurrentQuality != "" && lo.Contains(labels, s.st.CurrentQuality):
		// keep
	case s.restored.CurrentQuality != "" && lo.Contains(labels, s.restored.CurrentQuality):
		s.st.CurrentQuality = s.restored.CurrentQuality
	default:
		s.st.CurrentQuality = ""
		if prefer != nil {
			if picked := prefer(append([]string(nil), labels...)); lo.Contains(labels, picked) {
				s.st.CurrentQuality = picked
			}
		}
		if s.st.CurrentQuality == "" {
			s.st.CurrentQuality = labels[0]
		}
	}
}

// ApplyAudioTracks publishes a freshly discovered audio list. engineDefault
// is the index the engine currently plays, used when nothing else selects.
func (s *Store) ApplyAudioTracks(tracks []models.AudioTrack, engineDefault int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.Audios = tracks

	if len(tracks) == 0 {
		s.st.CurrentAudio = ""
		return
	}

	switch {
	case s.st.CurrentAudio != "" && hasAudio(tracks, s.st.CurrentAudio):
		// keep
	case s.restored.CurrentAudio != "" && hasAudio(tracks, s.restored.CurrentAudio):
		s.st.CurrentAudio = s.restored.CurrentAudio
	default:
		idx := 0
		if engineDefault >= 0 && engineDefault < len(tracks) {
			idx = engineDefault
		}
		s.st.CurrentAudio = tracks[idx].ID
	}
}

// ApplySubtitleTracks publishes a freshly discovered subtitle list. Host
// subtitles already present are kept ahead of in-manifest ones.
func (s *Store) ApplySubtitleTracks(tracks []models.SubtitleTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.Subtitles = tracks

	if len(tracks) == 0 {
		s.st.CurrentSubtitle = ""
		return
	}

	switch {
	case s.st.CurrentSubtitle != "" && hasSubtitle(tracks, s.st.CurrentSubtitle):
		// keep
	case s.restored.CurrentSubtitle != "" && hasSubtitle(tracks, s.restored.CurrentSubtitle):
		s.st.CurrentSubtitle = s.restored.CurrentSubtitle
	default:
		s.st.CurrentSubtitle = tracks[0].ID
	}
}

// SelectQuality records a user quality selection
func (s *Store) SelectQuality(id string) error {
	s.mu.Lock()
	if !lo.Contains(s.st.Qualities, id) {
		s.mu.Unlock()
		return fmt.Errorf("state: unknown quality %q", id)
	}
	s.st.CurrentQuality = id
	s.mu.Unlock()

	s.persist()
	return nil
}

// SelectAudio records a user audio selection
func (s *Store) SelectAudio(id string) error {
	s.mu.Lock()
	if !hasAudio(s.st.Audios, id) {
		s.mu.Unlock()
		return fmt.Errorf("state: unknown audio track %q", id)
	}
	s.st.CurrentAudio = id
	s.mu.Unlock()

	s.persist()
	return nil
}

// SelectSubtitle records a user subtitle selection; an empty id disables
// subtitles without forgetting the previous selection
func (s *Store) SelectSubtitle(id string) error {
	s.mu.Lock()
	if id == "" {
		s.st.SubtitleEnabled = false
		s.mu.Unlock()
		s.persist()
		return nil
	}
	if !hasSubtitle(s.st.Subtitles, id) {
		s.mu.Unlock()
		return fmt.Errorf("state: unknown subtitle track %q", id)
	}
	s.st.CurrentSubtitle = id
	s.st.SubtitleEnabled = true
	s.mu.Unlock()

	s.persist()
	return nil
}

// AudioIndex resolves an audio id to its list index
func (s *Store) AudioIndex(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, t := range s.st.Audios {
		if t.ID == id {
			return i, true
		}
	}
	return 0, false
}

// SetError surfaces a fatal playback error to readers
func (s *Store) SetError(e *models.PlaybackError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e != nil && e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	s.st.Error = e
}

// ClearError removes a previously surfaced error
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Error = nil
}

// persist marks the preference blob dirty. The save itself runs on the
// persist loop so a slow backend never stalls a selection.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.persistKick <- struct{}{}:
	default:
	}
}

// persistLoop saves the latest selection snapshot after every change. The
// kick channel holds one token, so a burst of selections coalesces into a
// single save of the final state.
func (s *Store) persistLoop() {
	for range s.persistKick {
		s.savePrefs()
	}
	close(s.persistDone)
}

func (s *Store) savePrefs() {
	s.mu.RLock()
	prefs := models.Preferences{
		CurrentAudio:    s.st.CurrentAudio,
		CurrentQuality:  s.st.CurrentQuality,
		CurrentSubtitle: s.st.CurrentSubtitle,
		SubtitleEnabled: s.st.SubtitleEnabled,
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.persister.Save(ctx, s.profile, prefs); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist preferences")
	}
}

// Close flushes any pending preference save and stops the persist loop.
// The store stays readable afterwards; further selections no longer persist.
func (s *Store) Close() {
	if s.persister == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.persistKick)
	<-s.persistDone
}

func restoredDisablesSubtitle(p models.Preferences) bool {
	// a zero-value blob means "no stored preference", which keeps the
	// default of enabled subtitles
	if p == (models.Preferences{}) {
		return false
	}
	return !p.SubtitleEnabled
}

func hasAudio(tracks []models.AudioTrack, id string) bool {
	for _, t := range tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func hasSubtitle(tracks []models.SubtitleTrack, id string) bool {
	for _, t := range tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}
