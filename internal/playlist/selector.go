package playlist

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/models"
)

// Selector computes the play order over a catalog. It is a pure function
// of the catalog handed to Select: no memory of prior selections is kept.
type Selector struct {
	rng    *rand.Rand
	logger *logrus.Logger
}

// New creates a selector. A zero seed randomizes the shuffle; any other
// seed makes the order deterministic for the same catalog.
func New(seed int64, logger *logrus.Logger) *Selector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// Select returns the eligible pool in shuffled play order: every unseen
// movie plus, for each series, the single lowest-numbered unseen episode.
// Episodes beyond that point stay ineligible until it is marked Seen.
// An exhausted catalog yields an empty sequence.
func (s *Selector) Select(catalog *models.Catalog) []*models.MediaEntry {
	var pool []*models.MediaEntry

	for _, movie := range catalog.Movies {
		if movie.Status == models.StatusUnseen {
			pool = append(pool, movie)
		}
	}

	for _, group := range catalog.Series {
		// Episodes are kept sorted by (season, episode), so the first
		// unseen one is the series' only candidate.
		for _, episode := range group.Episodes {
			if episode.Status == models.StatusUnseen {
				pool = append(pool, episode)
				break
			}
		}
	}

	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	s.logger.WithField("eligible", len(pool)).Debug("Playlist selected")
	return pool
}
