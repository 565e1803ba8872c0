package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/metrics"
	"github.com/amaumene/pondtv/internal/models"
	"github.com/amaumene/pondtv/internal/store"
)

const (
	moviesDir = "Movies"
	seriesDir = "TV_Shows"
)

// ScanError reports an unreadable media tree. The prior catalog is left
// untouched when a scan fails this way.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("failed to scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Scanner builds an up-to-date catalog from the media tree while
// preserving viewing state from the previous catalog.
type Scanner struct {
	root        string
	store       *store.Store
	minFileSize int64 // bytes; videos below this are treated as samples
	logger      *logrus.Logger
}

// New creates a scanner rooted at the media drive path. Video files smaller
// than minFileSizeMB are skipped as samples; zero disables the floor.
func New(root string, st *store.Store, minFileSizeMB int, logger *logrus.Logger) *Scanner {
	return &Scanner{
		root:        root,
		store:       st,
		minFileSize: int64(minFileSizeMB) * 1024 * 1024,
		logger:      logger,
	}
}

// Scan enumerates the media tree, merges the result with the previous
// catalog and persists it (plus a backup snapshot). Nothing is persisted
// when any part of the tree is unreadable.
func (s *Scanner) Scan() (*models.Catalog, error) {
	start := time.Now()
	s.logger.WithField("root", s.root).Info("Starting media scan")

	fresh := models.NewCatalog()

	movies, err := s.scanMovies()
	if err != nil {
		return nil, err
	}
	fresh.Movies = movies

	series, err := s.scanSeries()
	if err != nil {
		return nil, err
	}
	fresh.Series = series

	prior := s.loadPrior()
	merged := s.merge(prior, fresh)

	if dropped := merged.Normalize(); dropped > 0 {
		s.logger.WithField("dropped", dropped).Warn("Dropped entries with duplicate keys during scan")
	}

	if err := s.store.Save(merged); err != nil {
		return nil, fmt.Errorf("failed to persist catalog: %w", err)
	}
	if err := s.store.Backup(merged); err != nil {
		s.logger.WithError(err).Warn("Failed to write backup snapshot")
	}

	stats := merged.Stats()
	s.logger.WithFields(logrus.Fields{
		"movies":      stats.Movies,
		"series":      stats.Series,
		"episodes":    stats.Episodes,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Media scan complete")

	metrics.ScansTotal.Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	metrics.CatalogEntries.Set(float64(stats.Movies + stats.Episodes))

	return merged, nil
}

// loadPrior returns the merge source: the current catalog, falling back to
// the backup snapshot when the canonical file is corrupt, and to an empty
// catalog when both are unreadable.
func (s *Scanner) loadPrior() *models.Catalog {
	prior, err := s.store.Load()
	if err == nil {
		return prior
	}
	s.logger.WithError(err).Warn("Catalog unreadable, trying backup snapshot")

	prior, err = s.store.LoadBackup()
	if err == nil {
		return prior
	}
	s.logger.WithError(err).Warn("Backup unreadable, rebuilding with all entries Unseen")

	return models.NewCatalog()
}

// merge copies viewing state forward from the prior catalog for every
// filepath that survived the rescan. Entries whose file vanished are
// pruned by omission.
func (s *Scanner) merge(prior, fresh *models.Catalog) *models.Catalog {
	previous := make(map[string]*models.MediaEntry)
	for _, entry := range prior.Entries() {
		previous[entry.Filepath] = entry
	}

	for _, entry := range fresh.Entries() {
		old, ok := previous[entry.Filepath]
		if !ok {
			continue
		}
		entry.Status = old.Status
		entry.ResumePosition = old.ResumePosition
		entry.LastWatched = old.LastWatched
	}

	return fresh
}

func (s *Scanner) scanMovies() ([]*models.MediaEntry, error) {
	root := filepath.Join(s.root, moviesDir)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return []*models.MediaEntry{}, nil
	}

	var movies []*models.MediaEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		if d.IsDir() || !isVideoFile(d.Name()) || isJunkFile(d.Name()) {
			return nil
		}
		if s.belowSizeFloor(path, d) {
			return nil
		}

		title, year := parseMovieName(d.Name())
		movies = append(movies, &models.MediaEntry{
			Kind:          models.MediaTypeMovie,
			Filepath:      s.relPath(path),
			Title:         title,
			Year:          year,
			Status:        models.StatusUnseen,
			SubtitlePaths: s.findSubtitles(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(movies, func(i, j int) bool { return movies[i].Filepath < movies[j].Filepath })
	return movies, nil
}

func (s *Scanner) scanSeries() ([]*models.SeriesGroup, error) {
	root := filepath.Join(s.root, seriesDir)
	dirs, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return []*models.SeriesGroup{}, nil
	}
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}

	var groups []*models.SeriesGroup
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		group, err := s.scanOneSeries(filepath.Join(root, dir.Name()), dir.Name())
		if err != nil {
			return nil, err
		}
		if len(group.Episodes) > 0 {
			groups = append(groups, group)
		}
	}
	if groups == nil {
		groups = []*models.SeriesGroup{}
	}
	return groups, nil
}

func (s *Scanner) scanOneSeries(seriesPath, folderName string) (*models.SeriesGroup, error) {
	group := &models.SeriesGroup{SeriesName: cleanName(folderName)}

	var unparsed []*models.MediaEntry
	err := filepath.WalkDir(seriesPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		if d.IsDir() || !isVideoFile(d.Name()) || isJunkFile(d.Name()) {
			return nil
		}
		if s.belowSizeFloor(path, d) {
			return nil
		}

		season, episode, ok := parseEpisodeNumbers(d.Name(), filepath.Base(filepath.Dir(path)))
		entry := &models.MediaEntry{
			Kind:          models.MediaTypeEpisode,
			SeriesName:    group.SeriesName,
			Filepath:      s.relPath(path),
			SeasonNumber:  season,
			EpisodeNumber: episode,
			Status:        models.StatusUnseen,
			SubtitlePaths: s.findSubtitles(path),
		}
		if !ok {
			// Kept as a best-effort entry; numbering is assigned below.
			s.logger.WithFields(logrus.Fields{
				"series": group.SeriesName,
				"file":   entry.Filepath,
			}).Warn("Could not parse episode number, keeping with best-effort numbering")
			unparsed = append(unparsed, entry)
			return nil
		}
		group.Episodes = append(group.Episodes, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	assignFallbackEpisodes(group, unparsed)
	return group, nil
}

// assignFallbackEpisodes slots files with no parseable episode number in
// after the highest recognized episode of their season, in filepath order
// so numbering is stable across rescans.
func assignFallbackEpisodes(group *models.SeriesGroup, unparsed []*models.MediaEntry) {
	if len(unparsed) == 0 {
		return
	}

	maxEpisode := make(map[int]int)
	for _, ep := range group.Episodes {
		if ep.EpisodeNumber > maxEpisode[ep.SeasonNumber] {
			maxEpisode[ep.SeasonNumber] = ep.EpisodeNumber
		}
	}

	sort.Slice(unparsed, func(i, j int) bool { return unparsed[i].Filepath < unparsed[j].Filepath })
	for _, ep := range unparsed {
		maxEpisode[ep.SeasonNumber]++
		ep.EpisodeNumber = maxEpisode[ep.SeasonNumber]
		group.Episodes = append(group.Episodes, ep)
	}
}

// belowSizeFloor reports whether a video file is smaller than the sample
// floor. A file whose size cannot be read is skipped too.
func (s *Scanner) belowSizeFloor(path string, d fs.DirEntry) bool {
	if s.minFileSize <= 0 {
		return false
	}
	info, err := d.Info()
	if err != nil || info.Size() < s.minFileSize {
		s.logger.WithFields(logrus.Fields{
			"file":  s.relPath(path),
			"floor": s.minFileSize,
		}).Debug("Ignoring undersized video, likely a sample")
		return true
	}
	return false
}

// findSubtitles collects sibling files sharing the video's base name with
// a recognized subtitle extension, in sorted order.
func (s *Scanner) findSubtitles(videoPath string) []string {
	dir := filepath.Dir(videoPath)
	base := baseName(filepath.Base(videoPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var subs []string
	for _, entry := range entries {
		if entry.IsDir() || !isSubtitleFile(entry.Name()) {
			continue
		}
		if baseName(entry.Name()) == base {
			subs = append(subs, s.relPath(filepath.Join(dir, entry.Name())))
		}
	}
	sort.Strings(subs)
	return subs
}

// relPath converts an absolute path into the catalog's slash-separated
// root-relative form
func (s *Scanner) relPath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
