package models

import (
	"fmt"
	"time"
)

// MediaEntry represents a single media file in the catalog.
// Kind tags the variant: movies carry Title/Year, episodes carry
// SeriesName/SeasonNumber/EpisodeNumber. Kind and SeriesName are derived
// from the entry's position in the catalog document, not persisted per entry.
type MediaEntry struct {
	Kind       MediaType `yaml:"-"`
	SeriesName string    `yaml:"-"`

	Filepath string `yaml:"filepath"`
	Title    string `yaml:"title,omitempty"`
	Year     *int   `yaml:"year,omitempty"`

	SeasonNumber  int `yaml:"season_number,omitempty"`
	EpisodeNumber int `yaml:"episode_number,omitempty"`

	Status         Status     `yaml:"status"`
	ResumePosition *int       `yaml:"resume_position,omitempty"` // seconds
	LastWatched    *time.Time `yaml:"last_watched,omitempty"`
	SubtitlePaths  []string   `yaml:"subtitle_paths,omitempty"`
}

// SeriesGroup represents one series and its episodes, ordered by
// (season_number, episode_number).
type SeriesGroup struct {
	SeriesName string        `yaml:"series_name"`
	Episodes   []*MediaEntry `yaml:"episodes"`
}

// DisplayName returns the user-facing name for the entry
func (e *MediaEntry) DisplayName() string {
	switch e.Kind {
	case MediaTypeEpisode:
		return fmt.Sprintf("%s - S%02dE%02d", e.SeriesName, e.SeasonNumber, e.EpisodeNumber)
	default:
		if e.Year != nil {
			return fmt.Sprintf("%s (%d)", e.Title, *e.Year)
		}
		return e.Title
	}
}

// ResumeOffset returns the stored resume position as a duration, zero if absent
func (e *MediaEntry) ResumeOffset() time.Duration {
	if e.ResumePosition == nil {
		return 0
	}
	return time.Duration(*e.ResumePosition) * time.Second
}

// MarkSeen transitions the entry to Seen, clearing any resume position
func (e *MediaEntry) MarkSeen(now time.Time) {
	e.Status = StatusSeen
	e.ResumePosition = nil
	e.LastWatched = &now
}

// RecordResume stores a resume offset for a not-yet-seen entry.
// Offsets at or below zero clear the stored position instead.
func (e *MediaEntry) RecordResume(offset time.Duration, now time.Time) {
	secs := int(offset / time.Second)
	if secs <= 0 {
		e.ResumePosition = nil
	} else {
		e.ResumePosition = &secs
	}
	e.Status = StatusUnseen
	e.LastWatched = &now
}
