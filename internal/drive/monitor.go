package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/config"
)

// markerDir identifies the media drive among mounted volumes
const markerDir = "Movies"

// defaultSearchRoots are the mount points checked during discovery
var defaultSearchRoots = []string{"/media", "/run/media", "/mnt", "/Volumes"}

// Presence is the two-state drive signal
type Presence string

const (
	Present Presence = "present"
	Absent  Presence = "absent"
)

// State is one presence transition for the media drive
type State struct {
	Presence Presence
	Path     string
}

// Monitor detects the media drive by its marker directory and polls for
// presence changes on a fixed schedule. Transitions are delivered on the
// States channel; polling never blocks the playback path.
type Monitor struct {
	fixedRoot   string
	searchRoots []string
	cron        *cron.Cron
	states      chan State
	logger      *logrus.Logger

	mu      sync.Mutex
	path    string
	present bool
}

// New creates a drive monitor. A non-empty MediaRoot pins the root and
// disables discovery.
func New(cfg *config.Config, logger *logrus.Logger) *Monitor {
	return &Monitor{
		fixedRoot:   cfg.MediaRoot,
		searchRoots: defaultSearchRoots,
		cron:        cron.New(),
		states:      make(chan State, 8),
		logger:      logger,
	}
}

// Start begins periodic presence polling
func (m *Monitor) Start(interval string) error {
	m.poll()

	_, err := m.cron.AddFunc("@every "+interval, m.poll)
	if err != nil {
		return fmt.Errorf("failed to schedule drive poll: %w", err)
	}
	m.cron.Start()
	m.logger.WithField("interval", interval).Info("Drive monitor started")
	return nil
}

// Stop halts polling
func (m *Monitor) Stop() {
	m.cron.Stop()
}

// States delivers Present/Absent transitions. The channel is buffered and
// the monitor never blocks on it.
func (m *Monitor) States() <-chan State {
	return m.states
}

// Current returns the media root path and whether the drive is present
func (m *Monitor) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path, m.present
}

// WaitForDrive blocks until the drive is present, returning its root path
func (m *Monitor) WaitForDrive(ctx context.Context) (string, error) {
	if path, ok := m.Current(); ok {
		return path, nil
	}
	for {
		select {
		case state := <-m.states:
			if state.Presence == Present {
				return state.Path, nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (m *Monitor) poll() {
	path := m.find()

	m.mu.Lock()
	wasPresent, oldPath := m.present, m.path
	m.present = path != ""
	m.path = path
	nowPresent := m.present
	m.mu.Unlock()

	switch {
	case nowPresent && !wasPresent:
		m.logger.WithField("path", path).Info("Media drive present")
		m.emit(State{Presence: Present, Path: path})
	case !nowPresent && wasPresent:
		m.logger.WithField("path", oldPath).Warn("Media drive removed")
		m.emit(State{Presence: Absent, Path: oldPath})
	}
}

func (m *Monitor) emit(state State) {
	select {
	case m.states <- state:
	default:
		m.logger.Warn("Dropping drive state event, channel full")
	}
}

// find locates the media root: the pinned path if configured, otherwise
// the first mounted volume (scanned two levels deep under the search
// roots) containing the marker directory.
func (m *Monitor) find() string {
	if m.fixedRoot != "" {
		if hasMarker(m.fixedRoot) {
			return m.fixedRoot
		}
		return ""
	}

	for _, root := range m.searchRoots {
		if hasMarker(root) {
			return root
		}
		for _, child := range subdirs(root) {
			if hasMarker(child) {
				return child
			}
			// /run/media/<user>/<label> nests one level deeper.
			for _, grandchild := range subdirs(child) {
				if hasMarker(grandchild) {
					return grandchild
				}
			}
		}
	}
	return ""
}

func hasMarker(root string) bool {
	info, err := os.Stat(filepath.Join(root, markerDir))
	return err == nil && info.IsDir()
}

func subdirs(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(root, entry.Name()))
		}
	}
	return dirs
}
