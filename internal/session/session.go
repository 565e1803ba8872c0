package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/config"
	"github.com/amaumene/pondtv/internal/drive"
	"github.com/amaumene/pondtv/internal/engine"
	"github.com/amaumene/pondtv/internal/models"
	"github.com/amaumene/pondtv/internal/playlist"
	"github.com/amaumene/pondtv/internal/store"
)

// State represents the playback state machine's current state
type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StatePlaying     State = "playing"
	StatePaused      State = "paused"
	StateCompleting  State = "completing"
	StateInterrupted State = "interrupted"
)

var (
	// ErrNoContent signals an empty eligible pool (everything watched)
	ErrNoContent = errors.New("no unseen content available")
	// ErrDriveRemoved signals an interruption the caller must recover from
	// by waiting for the drive and rescanning before a new run
	ErrDriveRemoved = errors.New("media drive removed")
	// ErrQuit signals an explicit user shutdown request
	ErrQuit = errors.New("quit requested")
)

// MissingMediaError reports a catalog entry whose file is gone; the item
// is skipped, never fatal.
type MissingMediaError struct {
	Path string
}

func (e *MissingMediaError) Error() string {
	return fmt.Sprintf("media file missing: %s", e.Path)
}

// EngineFailure reports a media engine crash or non-response
type EngineFailure struct {
	Err error
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("media engine failure: %v", e.Err)
}

func (e *EngineFailure) Unwrap() error {
	return e.Err
}

// EngineFactory creates a media engine instance. The session acquires one
// lazily and again after a crash.
type EngineFactory func() (engine.Engine, error)

// Session drives items through the playback state machine, persisting
// every catalog mutation through the durable store. It is the single
// writer of the catalog while running.
type Session struct {
	store       *store.Store
	catalog     *models.Catalog
	selector    *playlist.Selector
	newEngine   EngineFactory
	driveStates <-chan drive.State
	cfg         *config.Config
	driveCfg    *config.DriveConfig
	mediaRoot   string
	logger      *logrus.Logger

	actions chan models.Action
	eng     engine.Engine

	mu           sync.Mutex
	state        State
	current      *models.MediaEntry
	queue        []*models.MediaEntry
	index        int
	guideVisible bool
}

// New creates a playback session over a loaded catalog
func New(
	st *store.Store,
	catalog *models.Catalog,
	selector *playlist.Selector,
	newEngine EngineFactory,
	driveStates <-chan drive.State,
	cfg *config.Config,
	driveCfg *config.DriveConfig,
	mediaRoot string,
	logger *logrus.Logger,
) *Session {
	return &Session{
		store:       st,
		catalog:     catalog,
		selector:    selector,
		newEngine:   newEngine,
		driveStates: driveStates,
		cfg:         cfg,
		driveCfg:    driveCfg,
		mediaRoot:   mediaRoot,
		logger:      logger,
		actions:     make(chan models.Action, 16),
		state:       StateIdle,
	}
}

// Dispatch delivers a user action to the session without blocking
func (s *Session) Dispatch(action models.Action) {
	select {
	case s.actions <- action:
	default:
		s.logger.WithField("action", action).Warn("Dropping action, queue full")
	}
}

// Run plays items until the pool is exhausted, the drive is removed, quit
// is requested, or the context is cancelled. A full queue pass where
// nothing could actually play (every file missing or failing to load) also
// ends the run, so the caller can idle and rescan instead of spinning.
func (s *Session) Run(ctx context.Context) error {
	defer s.closeEngine()

	progressed := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, refreshed := s.nextItem()
		if item == nil {
			s.setState(StateIdle)
			return ErrNoContent
		}
		if refreshed {
			if !progressed {
				s.setState(StateIdle)
				return ErrNoContent
			}
			progressed = false
		}

		switch out := s.playItem(ctx, item); out {
		case outcomeAdvance:
			progressed = true
			s.advance()
		case outcomeSkip:
			s.advance()
		case outcomePrevious:
			progressed = true
			s.retreat()
		case outcomeDriveLost:
			return ErrDriveRemoved
		case outcomeQuit:
			return ErrQuit
		case outcomeCancelled:
			return ctx.Err()
		}
	}
}

// nextItem returns the current queue item, re-deriving the sequence from
// the selector when it is exhausted; refreshed reports that a re-derivation
// happened. Entries that turned Seen while queued are skipped.
func (s *Session) nextItem() (entry *models.MediaEntry, refreshed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.index >= len(s.queue) {
			s.queue = s.selector.Select(s.catalog)
			s.index = 0
			refreshed = true
			if len(s.queue) == 0 {
				s.current = nil
				return nil, refreshed
			}
		}
		if s.queue[s.index].Status == models.StatusSeen {
			s.index++
			continue
		}
		s.current = s.queue[s.index]
		return s.current, refreshed
	}
}

func (s *Session) advance() {
	s.mu.Lock()
	s.index++
	s.mu.Unlock()
}

func (s *Session) retreat() {
	s.mu.Lock()
	if s.index > 0 {
		s.index--
	}
	s.mu.Unlock()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state != state {
		s.logger.WithFields(logrus.Fields{
			"from": s.state,
			"to":   state,
		}).Debug("Session state transition")
		s.state = state
	}
	s.mu.Unlock()
}

// Snapshot is a read-only view of the session for the control API
type Snapshot struct {
	State        State        `json:"state"`
	Current      *ItemView    `json:"current,omitempty"`
	Queue        []ItemView   `json:"queue"`
	QueueIndex   int          `json:"queue_index"`
	GuideVisible bool         `json:"guide_visible"`
	Catalog      models.Stats `json:"catalog"`
}

// ItemView is the API-facing projection of a media entry
type ItemView struct {
	DisplayName string           `json:"display_name"`
	Filepath    string           `json:"filepath"`
	Kind        models.MediaType `json:"kind"`
	Status      models.Status    `json:"status"`
}

// Snapshot returns the current session view
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:        s.state,
		QueueIndex:   s.index,
		GuideVisible: s.guideVisible,
		Catalog:      s.catalog.Stats(),
		Queue:        make([]ItemView, 0, len(s.queue)),
	}
	for _, entry := range s.queue {
		snap.Queue = append(snap.Queue, itemView(entry))
	}
	if s.current != nil {
		view := itemView(s.current)
		snap.Current = &view
	}
	return snap
}

func itemView(e *models.MediaEntry) ItemView {
	return ItemView{
		DisplayName: e.DisplayName(),
		Filepath:    e.Filepath,
		Kind:        e.Kind,
		Status:      e.Status,
	}
}

// persist funnels a catalog mutation through the store's atomic save.
// Save normalizes the document in place, so it must run under s.mu to
// serialize with Snapshot and nextItem reading the same entries.
// Failures are surfaced loudly: losing progress silently is the one thing
// this system must never do.
func (s *Session) persist() {
	s.mu.Lock()
	err := s.store.Save(s.catalog)
	s.mu.Unlock()
	if err != nil {
		s.logger.WithError(err).Error("FAILED TO PERSIST CATALOG, user progress may be lost")
	}
}

func (s *Session) closeEngine() {
	if s.eng != nil {
		s.eng.Close()
		s.eng = nil
	}
}
