package session

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/pondtv/internal/config"
	"github.com/amaumene/pondtv/internal/drive"
	"github.com/amaumene/pondtv/internal/engine"
	"github.com/amaumene/pondtv/internal/models"
	"github.com/amaumene/pondtv/internal/playlist"
	"github.com/amaumene/pondtv/internal/store"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeEngine scripts engine behavior per Play call: onPlay returns the
// events to emit after readiness is reported.
type fakeEngine struct {
	mu        sync.Mutex
	events    chan engine.Event
	position  time.Duration
	duration  time.Duration
	onPlay    []engine.Event
	silent    bool            // accept Play but never report readiness
	playCalls []time.Duration // start offsets, in call order
	stops     int
	closed    bool
}

func newFakeEngine(position, duration time.Duration, onPlay ...engine.Event) *fakeEngine {
	return &fakeEngine{
		events:   make(chan engine.Event, 16),
		position: position,
		duration: duration,
		onPlay:   onPlay,
	}
}

func (f *fakeEngine) Play(ctx context.Context, path string, start time.Duration, subtitles []string) error {
	f.mu.Lock()
	f.playCalls = append(f.playCalls, start)
	silent := f.silent
	f.mu.Unlock()

	if silent {
		return nil
	}
	f.events <- engine.Event{Type: engine.EventReady}
	for _, ev := range f.onPlay {
		f.events <- ev
	}
	return nil
}

func (f *fakeEngine) Pause() error  { return nil }
func (f *fakeEngine) Resume() error { return nil }

func (f *fakeEngine) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeEngine) Position() (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *fakeEngine) Duration() (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration, nil
}

func (f *fakeEngine) AdjustVolume(delta int) error                  { return nil }
func (f *fakeEngine) ToggleMute() error                             { return nil }
func (f *fakeEngine) ShowTitle(title string, d time.Duration) error { return nil }
func (f *fakeEngine) Events() <-chan engine.Event                   { return f.events }

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) starts() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.playCalls...)
}

// fixture wires a session over a temp media root with one movie file.
type fixture struct {
	sess        *Session
	st          *store.Store
	catalog     *models.Catalog
	driveStates chan drive.State
	mediaRoot   string
}

func newFixture(t *testing.T, catalog *models.Catalog, driveCfg *config.DriveConfig, factory EngineFactory) *fixture {
	t.Helper()

	mediaRoot := t.TempDir()
	for _, entry := range catalog.Entries() {
		if entry.Filepath == "" {
			continue
		}
		path := filepath.Join(mediaRoot, filepath.FromSlash(entry.Filepath))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	catalog.Normalize()

	cfg := &config.Config{DrivePollSeconds: 5, EngineReadyTimeoutSeconds: 2}
	st := store.New(filepath.Join(mediaRoot, "media_library.yml"))
	driveStates := make(chan drive.State, 4)
	selector := playlist.New(7, testLogger())

	sess := New(st, catalog, selector, factory, driveStates, cfg, driveCfg, mediaRoot, testLogger())
	return &fixture{
		sess:        sess,
		st:          st,
		catalog:     catalog,
		driveStates: driveStates,
		mediaRoot:   mediaRoot,
	}
}

func singleMovie(path string) *models.Catalog {
	return &models.Catalog{
		Movies: []*models.MediaEntry{
			{Filepath: path, Title: "Test Movie", Status: models.StatusUnseen},
		},
	}
}

func TestRun_EndOfStreamMarksSeenAndPersists(t *testing.T) {
	eng := newFakeEngine(0, time.Hour, engine.Event{Type: engine.EventEndOfStream})
	fx := newFixture(t, singleMovie("Movies/Test Movie.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoContent)

	movie := fx.catalog.Movies[0]
	assert.Equal(t, models.StatusSeen, movie.Status)
	assert.Nil(t, movie.ResumePosition)
	assert.NotNil(t, movie.LastWatched)

	// The mutation must be on disk, not just in memory.
	persisted, err := fx.st.Load()
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeen, persisted.Movies[0].Status)
}

func TestRun_ThresholdAutoMarksSeen(t *testing.T) {
	// 96% through a 100s file with a 95% threshold.
	eng := newFakeEngine(96*time.Second, 100*time.Second)
	fx := newFixture(t, singleMovie("Movies/Almost Done.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Equal(t, models.StatusSeen, fx.catalog.Movies[0].Status)
}

func TestRun_MarkSeenAction(t *testing.T) {
	eng := newFakeEngine(10*time.Second, time.Hour)
	fx := newFixture(t, singleMovie("Movies/Boring.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	fx.sess.Dispatch(models.ActionMarkSeen)

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Equal(t, models.StatusSeen, fx.catalog.Movies[0].Status)
}

func TestRun_QuitStopsPlayback(t *testing.T) {
	eng := newFakeEngine(10*time.Second, time.Hour)
	fx := newFixture(t, singleMovie("Movies/Night Cap.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	fx.sess.Dispatch(models.ActionQuit)

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrQuit)
	assert.Equal(t, models.StatusUnseen, fx.catalog.Movies[0].Status)
	assert.True(t, eng.closed)
}

func TestRun_NextLeavesUnseenByDefault(t *testing.T) {
	eng := newFakeEngine(10*time.Second, time.Hour)
	fx := newFixture(t, singleMovie("Movies/Skipped.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	// The skipped item re-enters the pool, so quit on its replay.
	fx.sess.Dispatch(models.ActionNext)
	fx.sess.Dispatch(models.ActionQuit)

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrQuit)
	assert.Equal(t, models.StatusUnseen, fx.catalog.Movies[0].Status)
	assert.Len(t, eng.starts(), 2)
}

func TestRun_NextMarksSeenWhenConfigured(t *testing.T) {
	eng := newFakeEngine(10*time.Second, time.Hour)
	driveCfg := config.DefaultDriveConfig()
	driveCfg.MarkSkippedSeen = true
	fx := newFixture(t, singleMovie("Movies/Skipped.mkv"), driveCfg,
		func() (engine.Engine, error) { return eng, nil })

	fx.sess.Dispatch(models.ActionNext)

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Equal(t, models.StatusSeen, fx.catalog.Movies[0].Status)
}

func TestRun_DriveRemovalSavesResume(t *testing.T) {
	eng := newFakeEngine(5*time.Minute, time.Hour)
	fx := newFixture(t, singleMovie("Movies/Interrupted.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	go func() {
		// Let at least one position poll record the offset first.
		time.Sleep(1500 * time.Millisecond)
		fx.driveStates <- drive.State{Presence: drive.Absent}
	}()

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrDriveRemoved)

	movie := fx.catalog.Movies[0]
	assert.Equal(t, models.StatusUnseen, movie.Status)
	require.NotNil(t, movie.ResumePosition)
	assert.Equal(t, 300, *movie.ResumePosition)

	persisted, err := fx.st.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted.Movies[0].ResumePosition)
	assert.Equal(t, 300, *persisted.Movies[0].ResumePosition)
}

func TestRun_CrashRestartsOnceWithStoredOffset(t *testing.T) {
	var engines []*fakeEngine
	factory := func() (engine.Engine, error) {
		var eng *fakeEngine
		if len(engines) == 0 {
			// First engine crashes right after becoming ready.
			eng = newFakeEngine(0, time.Hour, engine.Event{Type: engine.EventCrashed, Detail: "boom"})
		} else {
			eng = newFakeEngine(0, time.Hour, engine.Event{Type: engine.EventEndOfStream})
		}
		engines = append(engines, eng)
		return eng, nil
	}

	fx := newFixture(t, singleMovie("Movies/Crashy.mkv"), config.DefaultDriveConfig(), factory)

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoContent)

	require.Len(t, engines, 2)
	assert.True(t, engines[0].closed)
	assert.Equal(t, models.StatusSeen, fx.catalog.Movies[0].Status)
}

func TestRun_RepeatedCrashesDoNotLoop(t *testing.T) {
	var engines []*fakeEngine
	factory := func() (engine.Engine, error) {
		eng := newFakeEngine(0, time.Hour, engine.Event{Type: engine.EventCrashed, Detail: "boom"})
		engines = append(engines, eng)
		return eng, nil
	}

	fx := newFixture(t, singleMovie("Movies/Crashy.mkv"), config.DefaultDriveConfig(), factory)

	// Crash, one restart, crash again: the item is given up on and, with
	// nothing else playable, the run ends instead of crash-looping.
	done := make(chan error, 1)
	go func() { done <- fx.sess.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNoContent)
	case <-time.After(3 * time.Second):
		t.Fatal("session kept crash-looping")
	}
	assert.Len(t, engines, 2)
	assert.Equal(t, models.StatusUnseen, fx.catalog.Movies[0].Status)
}

func TestRun_EngineReadyTimeoutSkipsItem(t *testing.T) {
	// The engine accepts the file but never reports readiness, so the
	// session must give up within the configured window instead of
	// blocking on the event stream forever.
	eng := newFakeEngine(0, time.Hour)
	eng.silent = true
	fx := newFixture(t, singleMovie("Movies/Stuck.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	done := make(chan error, 1)
	go func() { done <- fx.sess.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNoContent)
	case <-time.After(10 * time.Second):
		t.Fatal("session blocked on an engine that never became ready")
	}

	// One retry of the load, then the item is given up on, still Unseen.
	assert.Len(t, eng.starts(), 2)
	assert.Equal(t, models.StatusUnseen, fx.catalog.Movies[0].Status)
}

func TestRun_MissingFilesEndTheRunInsteadOfSpinning(t *testing.T) {
	// The referenced file is never created on disk.
	catalog := singleMovie("Movies/Ghost.mkv")

	eng := newFakeEngine(0, time.Hour)
	mediaRoot := t.TempDir()
	cfg := &config.Config{DrivePollSeconds: 5, EngineReadyTimeoutSeconds: 2}
	st := store.New(filepath.Join(mediaRoot, "media_library.yml"))
	sess := New(st, catalog, playlist.New(7, testLogger()),
		func() (engine.Engine, error) { return eng, nil },
		make(chan drive.State), cfg, config.DefaultDriveConfig(), mediaRoot, testLogger())

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNoContent)
	case <-time.After(2 * time.Second):
		t.Fatal("session spun on missing files instead of returning")
	}
	assert.Empty(t, eng.starts())
}

func TestRun_ResumesFromStoredOffset(t *testing.T) {
	catalog := singleMovie("Movies/Halfway.mkv")
	resume := 600
	catalog.Movies[0].ResumePosition = &resume

	eng := newFakeEngine(0, time.Hour, engine.Event{Type: engine.EventEndOfStream})
	fx := newFixture(t, catalog, config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	err := fx.sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoContent)

	starts := eng.starts()
	require.Len(t, starts, 1)
	assert.Equal(t, 10*time.Minute, starts[0])
}

func TestRun_ContextCancellation(t *testing.T) {
	eng := newFakeEngine(10*time.Second, time.Hour)
	fx := newFixture(t, singleMovie("Movies/Endless.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	err := fx.sess.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot_ReflectsQueueAndState(t *testing.T) {
	eng := newFakeEngine(10*time.Second, time.Hour)
	fx := newFixture(t, singleMovie("Movies/Viewable.mkv"), config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	snap := fx.sess.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Queue)
	assert.Equal(t, 1, snap.Catalog.Unseen)

	fx.sess.Dispatch(models.ActionQuit)
	require.ErrorIs(t, fx.sess.Run(context.Background()), ErrQuit)

	snap = fx.sess.Snapshot()
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "Viewable.mkv", filepath.Base(snap.Queue[0].Filepath))
}

func TestSnapshot_SafeDuringPlayback(t *testing.T) {
	// Status polls arrive from the HTTP goroutine while the session is
	// completing items and persisting the catalog; both paths touch the
	// same entries, so this run under the race detector guards the
	// locking around Save.
	eng := newFakeEngine(0, time.Hour, engine.Event{Type: engine.EventEndOfStream})
	catalog := &models.Catalog{
		Movies: []*models.MediaEntry{
			{Filepath: "Movies/First.mkv", Title: "First", Status: models.StatusUnseen},
			{Filepath: "Movies/Second.mkv", Title: "Second", Status: models.StatusUnseen},
			{Filepath: "Movies/Third.mkv", Title: "Third", Status: models.StatusUnseen},
		},
	}
	fx := newFixture(t, catalog, config.DefaultDriveConfig(),
		func() (engine.Engine, error) { return eng, nil })

	done := make(chan error, 1)
	go func() { done <- fx.sess.Run(context.Background()) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			assert.ErrorIs(t, err, ErrNoContent)
			snap := fx.sess.Snapshot()
			assert.Equal(t, 3, snap.Catalog.Seen)
			return
		case <-deadline:
			t.Fatal("session did not finish the catalog")
		default:
			_ = fx.sess.Snapshot()
		}
	}
}
