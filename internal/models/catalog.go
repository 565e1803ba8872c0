package models

import "sort"

// Catalog is the root persisted document: all known movies and series
// together with their viewing state.
type Catalog struct {
	Movies []*MediaEntry  `yaml:"movies"`
	Series []*SeriesGroup `yaml:"series"`
}

// NewCatalog returns an empty, well-formed catalog
func NewCatalog() *Catalog {
	return &Catalog{
		Movies: []*MediaEntry{},
		Series: []*SeriesGroup{},
	}
}

// Stats summarizes the catalog for status reporting
type Stats struct {
	Movies   int `json:"movies"`
	Series   int `json:"series"`
	Episodes int `json:"episodes"`
	Seen     int `json:"seen"`
	Unseen   int `json:"unseen"`
}

// Empty reports whether the catalog holds no entries at all
func (c *Catalog) Empty() bool {
	return len(c.Movies) == 0 && len(c.Series) == 0
}

// Entries returns every entry in the catalog, movies first,
// then episodes in series order
func (c *Catalog) Entries() []*MediaEntry {
	entries := make([]*MediaEntry, 0, len(c.Movies))
	entries = append(entries, c.Movies...)
	for _, group := range c.Series {
		entries = append(entries, group.Episodes...)
	}
	return entries
}

// FindByPath looks up an entry by its catalog-unique filepath
func (c *Catalog) FindByPath(filepath string) *MediaEntry {
	for _, entry := range c.Entries() {
		if entry.Filepath == filepath {
			return entry
		}
	}
	return nil
}

// Stats counts entries by kind and status
func (c *Catalog) Stats() Stats {
	s := Stats{Movies: len(c.Movies), Series: len(c.Series)}
	for _, entry := range c.Entries() {
		if entry.Kind == MediaTypeEpisode {
			s.Episodes++
		}
		if entry.Status == StatusSeen {
			s.Seen++
		} else {
			s.Unseen++
		}
	}
	return s
}

// Normalize enforces the catalog invariants in place:
// derived fields (Kind, SeriesName) are set, episodes are sorted by
// (season, episode), entries with a duplicate filepath or duplicate
// (season, episode) key are dropped after the first occurrence, and
// Seen entries have their resume position cleared. It returns the
// number of dropped entries so callers can log the anomaly.
func (c *Catalog) Normalize() (dropped int) {
	seenPaths := make(map[string]struct{})

	movies := c.Movies[:0]
	for _, movie := range c.Movies {
		movie.Kind = MediaTypeMovie
		movie.SeriesName = ""
		movie.SeasonNumber = 0
		movie.EpisodeNumber = 0
		if _, dup := seenPaths[movie.Filepath]; dup {
			dropped++
			continue
		}
		seenPaths[movie.Filepath] = struct{}{}
		normalizeStatus(movie)
		movies = append(movies, movie)
	}
	c.Movies = movies

	groups := c.Series[:0]
	for _, group := range c.Series {
		sort.SliceStable(group.Episodes, func(i, j int) bool {
			a, b := group.Episodes[i], group.Episodes[j]
			if a.SeasonNumber != b.SeasonNumber {
				return a.SeasonNumber < b.SeasonNumber
			}
			return a.EpisodeNumber < b.EpisodeNumber
		})

		seenKeys := make(map[[2]int]struct{})
		episodes := group.Episodes[:0]
		for _, ep := range group.Episodes {
			ep.Kind = MediaTypeEpisode
			ep.SeriesName = group.SeriesName
			if _, dup := seenPaths[ep.Filepath]; dup {
				dropped++
				continue
			}
			key := [2]int{ep.SeasonNumber, ep.EpisodeNumber}
			if _, dup := seenKeys[key]; dup {
				dropped++
				continue
			}
			seenPaths[ep.Filepath] = struct{}{}
			seenKeys[key] = struct{}{}
			normalizeStatus(ep)
			episodes = append(episodes, ep)
		}
		group.Episodes = episodes
		if len(group.Episodes) > 0 {
			groups = append(groups, group)
		}
	}
	c.Series = groups

	sort.SliceStable(c.Series, func(i, j int) bool {
		return c.Series[i].SeriesName < c.Series[j].SeriesName
	})

	return dropped
}

// normalizeStatus keeps the Seen/resume invariant: an entry either has a
// resume offset or is fully seen, never both
func normalizeStatus(e *MediaEntry) {
	if e.Status != StatusSeen {
		e.Status = StatusUnseen
	}
	if e.Status == StatusSeen {
		e.ResumePosition = nil
	}
}
