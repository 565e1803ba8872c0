package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/drive"
	"github.com/amaumene/pondtv/internal/engine"
	"github.com/amaumene/pondtv/internal/metrics"
	"github.com/amaumene/pondtv/internal/models"
)

// outcome is the result of playing one item, deciding how the queue moves
type outcome int

const (
	outcomeAdvance outcome = iota
	outcomeSkip
	outcomePrevious
	outcomeDriveLost
	outcomeQuit
	outcomeCancelled
)

const positionPollInterval = time.Second

// playItem drives one entry through Loading -> Playing/Paused ->
// Completing (or Interrupted) and reports how to move on.
func (s *Session) playItem(ctx context.Context, item *models.MediaEntry) outcome {
	s.setState(StateLoading)

	absPath := s.absPath(item.Filepath)
	if _, err := os.Stat(absPath); err != nil {
		merr := &MissingMediaError{Path: item.Filepath}
		s.logger.WithError(merr).Warn("Skipping item with missing file")
		return outcomeSkip
	}

	if err := s.ensureEngine(); err != nil {
		s.logger.WithError(&EngineFailure{Err: err}).Error("Cannot start media engine")
		metrics.EngineFailures.Inc()
		return outcomeSkip
	}

	if err := s.launch(ctx, item, item.ResumeOffset()); err != nil {
		if ctx.Err() != nil {
			return outcomeCancelled
		}
		s.logger.WithError(&EngineFailure{Err: err}).WithField("item", item.DisplayName()).
			Error("Engine did not become ready, advancing")
		metrics.EngineFailures.Inc()
		return outcomeSkip
	}

	s.logger.WithFields(logrus.Fields{
		"item":   item.DisplayName(),
		"resume": item.ResumeOffset().String(),
	}).Info("Playing")
	s.setState(StatePlaying)
	metrics.ItemsPlayed.Inc()

	title := item.DisplayName()
	s.eng.ShowTitle(title, time.Duration(s.driveCfg.TitleDisplayDuration)*time.Second)

	return s.watch(ctx, item)
}

// ensureEngine acquires the media engine lazily (and again after a crash)
func (s *Session) ensureEngine() error {
	if s.eng != nil {
		return nil
	}
	eng, err := s.newEngine()
	if err != nil {
		return err
	}
	s.eng = eng
	return nil
}

// launch hands the file to the engine and waits for readiness within the
// configured window, retrying once before giving up.
func (s *Session) launch(ctx context.Context, item *models.MediaEntry, start time.Duration) error {
	absPath := s.absPath(item.Filepath)
	subs := make([]string, 0, len(item.SubtitlePaths))
	for _, sub := range item.SubtitlePaths {
		subs = append(subs, s.absPath(sub))
	}

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		readyCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineReadyTimeout())
		defer cancel()

		if err := s.eng.Play(readyCtx, absPath, start, subs); err != nil {
			return err
		}
		return s.waitReady(readyCtx)
	}

	return backoff.Retry(op, backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 1))
}

// waitReady consumes engine events until Ready arrives or the window closes
func (s *Session) waitReady(ctx context.Context) error {
	for {
		select {
		case ev, ok := <-s.eng.Events():
			if !ok {
				return fmt.Errorf("engine event stream closed")
			}
			switch ev.Type {
			case engine.EventReady:
				return nil
			case engine.EventCrashed:
				return fmt.Errorf("engine crashed during load: %s", ev.Detail)
			}
		case <-ctx.Done():
			return fmt.Errorf("engine not ready in time: %w", ctx.Err())
		}
	}
}

// watch is the per-item event loop: user actions, engine events, drive
// transitions and the position poll all converge here.
func (s *Session) watch(ctx context.Context, item *models.MediaEntry) outcome {
	ticker := time.NewTicker(positionPollInterval)
	defer ticker.Stop()

	var (
		lastPos      time.Duration
		duration     time.Duration
		thresholdMet bool
		restarted    bool
	)
	if d, err := s.eng.Duration(); err == nil {
		duration = d
	}

	for {
		select {
		case <-ctx.Done():
			s.saveResume(item, lastPos)
			s.eng.Stop()
			return outcomeCancelled

		case <-ticker.C:
			pos, err := s.eng.Position()
			if err != nil {
				continue
			}
			lastPos = pos
			if duration == 0 {
				if d, derr := s.eng.Duration(); derr == nil {
					duration = d
				}
			}
			if duration > 0 && pos.Seconds()/duration.Seconds() >= s.driveCfg.SeenThreshold() {
				thresholdMet = true
				if s.driveCfg.AutoMarkSeen {
					s.eng.Stop()
					return s.complete(item, "seen threshold reached")
				}
			}

		case ev, ok := <-s.eng.Events():
			if !ok {
				ev = engine.Event{Type: engine.EventCrashed, Detail: "event stream closed"}
			}
			switch ev.Type {
			case engine.EventEndOfStream:
				return s.complete(item, "end of stream")
			case engine.EventCrashed:
				metrics.EngineFailures.Inc()
				s.logger.WithError(&EngineFailure{Err: fmt.Errorf("%s", ev.Detail)}).
					Warn("Media engine crashed")
				s.saveResume(item, lastPos)
				s.closeEngine()
				if restarted {
					return outcomeSkip
				}
				restarted = true
				if err := s.ensureEngine(); err != nil {
					return outcomeSkip
				}
				if err := s.launch(ctx, item, lastPos); err != nil {
					return outcomeSkip
				}
				s.setState(StatePlaying)
			}

		case state := <-s.driveStates:
			if state.Presence == drive.Absent {
				s.setState(StateInterrupted)
				s.saveResume(item, lastPos)
				s.eng.Stop()
				return outcomeDriveLost
			}

		case action := <-s.actions:
			if out, handled := s.handleAction(ctx, action, item, lastPos, thresholdMet); handled {
				return out
			}
		}
	}
}

// handleAction processes one user action during Playing/Paused. The second
// return value is false when playback simply continues.
func (s *Session) handleAction(ctx context.Context, action models.Action, item *models.MediaEntry, pos time.Duration, thresholdMet bool) (outcome, bool) {
	s.logger.WithField("action", action).Debug("Handling action")

	switch action {
	case models.ActionPlayPause:
		s.togglePause()

	case models.ActionNext:
		s.eng.Stop()
		if thresholdMet && s.driveCfg.AutoMarkSeen {
			return s.complete(item, "skipped past threshold"), true
		}
		if s.driveCfg.MarkSkippedSeen {
			return s.complete(item, "skipped, mark_skipped_seen enabled"), true
		}
		s.saveResume(item, pos)
		return outcomeAdvance, true

	case models.ActionPrevious:
		s.eng.Stop()
		s.saveResume(item, pos)
		return outcomePrevious, true

	case models.ActionRestart:
		// Replay from the top; no status change.
		s.saveResume(item, 0)
		if err := s.launch(ctx, item, 0); err != nil {
			s.logger.WithError(err).Warn("Failed to restart item")
			return outcomeSkip, true
		}
		s.setState(StatePlaying)

	case models.ActionMarkSeen:
		s.eng.Stop()
		return s.complete(item, "marked seen by user"), true

	case models.ActionVolumeUp:
		s.eng.AdjustVolume(s.driveCfg.VolumeStep)
	case models.ActionVolumeDown:
		s.eng.AdjustVolume(-s.driveCfg.VolumeStep)
	case models.ActionToggleMute:
		s.eng.ToggleMute()

	case models.ActionToggleGuide:
		s.mu.Lock()
		s.guideVisible = !s.guideVisible
		s.mu.Unlock()

	case models.ActionQuit:
		s.saveResume(item, pos)
		s.eng.Stop()
		return outcomeQuit, true
	}

	return outcomeAdvance, false
}

func (s *Session) togglePause() {
	s.mu.Lock()
	paused := s.state == StatePaused
	s.mu.Unlock()

	if paused {
		if err := s.eng.Resume(); err == nil {
			s.setState(StatePlaying)
		}
		return
	}
	if err := s.eng.Pause(); err == nil {
		s.setState(StatePaused)
		// A paused item keeps its offset on disk so a crash resumes here.
		if pos, err := s.eng.Position(); err == nil {
			s.saveResume(s.currentEntry(), pos)
		}
	}
}

func (s *Session) currentEntry() *models.MediaEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// complete marks the item Seen, clears its resume offset, stamps
// last_watched and persists, then returns to Idle.
func (s *Session) complete(item *models.MediaEntry, reason string) outcome {
	s.setState(StateCompleting)
	s.logger.WithFields(logrus.Fields{
		"item":   item.DisplayName(),
		"reason": reason,
	}).Info("Marking item Seen")

	s.mu.Lock()
	item.MarkSeen(time.Now())
	s.mu.Unlock()

	s.persist()
	s.setState(StateIdle)
	return outcomeAdvance
}

// saveResume stores the current offset for a not-yet-seen item and persists
func (s *Session) saveResume(item *models.MediaEntry, pos time.Duration) {
	if item == nil || item.Status == models.StatusSeen {
		return
	}
	s.mu.Lock()
	item.RecordResume(pos, time.Now())
	s.mu.Unlock()
	s.persist()
}

func (s *Session) absPath(rel string) string {
	return filepath.Join(s.mediaRoot, filepath.FromSlash(rel))
}
