package upload

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically removes chunk directories of uploads that never
// completed.
type Sweeper struct {
	store     *ChunkStore
	tracker   Tracker
	retention time.Duration
	interval  time.Duration
	ticker    *time.Ticker
	done      chan bool
	now       func() time.Time
}

func NewSweeper(store *ChunkStore, tracker Tracker, retention, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:     store,
		tracker:   tracker,
		retention: retention,
		interval:  interval,
		done:      make(chan bool),
		now:       time.Now,
	}
}

// Start runs the sweeper in the background. A zero retention disables it.
func (s *Sweeper) Start() {
	if s.retention <= 0 {
		log.Info().Msg("Chunk sweeper disabled")
		return
	}

	log.Info().
		Dur("retention", s.retention).
		Dur("interval", s.interval).
		Msg("Chunk sweeper started")

	s.ticker = time.NewTicker(s.interval)
	go s.loop()
}

func (s *Sweeper) loop() {
	for {
		select {
		case <-s.ticker.C:
			s.runSweep()
		case <-s.done:
			s.ticker.Stop()
			return
		}
	}
}

func (s *Sweeper) runSweep() {
	removed, err := s.Sweep(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep stale chunks")
		return
	}
	log.Info().Int("removed", removed).Msg("Chunk sweep completed")
}

// Sweep removes every chunk directory not modified within the retention
// period and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	matches, err := doublestar.Glob(os.DirFS(s.store.Root()), "*/"+chunkDirName)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, match := range matches {
		dir := filepath.Join(s.store.Root(), filepath.FromSlash(match))
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}

		uploadID := filepath.Base(filepath.Dir(dir))
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove stale chunks")
			continue
		}
		if err := s.tracker.Forget(ctx, uploadID); err != nil {
			log.Warn().Err(err).Str("uploadId", uploadID).Msg("Failed to forget upload progress")
		}
		removed++
	}

	return removed, nil
}

func (s *Sweeper) Stop() {
	log.Info().Msg("Stopping chunk sweeper")
	if s.ticker != nil {
		s.done <- true
	}
}
