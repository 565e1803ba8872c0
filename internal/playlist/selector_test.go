package playlist

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/pondtv/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func episode(path string, season, ep int, status models.Status) *models.MediaEntry {
	return &models.MediaEntry{
		Kind:          models.MediaTypeEpisode,
		Filepath:      path,
		SeasonNumber:  season,
		EpisodeNumber: ep,
		Status:        status,
	}
}

func TestSelect_OnlyFirstUnseenEpisodePerSeries(t *testing.T) {
	catalog := &models.Catalog{
		Series: []*models.SeriesGroup{
			{
				SeriesName: "Severance",
				Episodes: []*models.MediaEntry{
					episode("s1e1.mkv", 1, 1, models.StatusSeen),
					episode("s1e2.mkv", 1, 2, models.StatusUnseen),
					episode("s1e3.mkv", 1, 3, models.StatusUnseen),
				},
			},
		},
	}

	pool := New(1, testLogger()).Select(catalog)
	require.Len(t, pool, 1)
	assert.Equal(t, "s1e2.mkv", pool[0].Filepath)

	// Once the gate episode is seen, the next one becomes eligible.
	catalog.Series[0].Episodes[1].Status = models.StatusSeen
	pool = New(1, testLogger()).Select(catalog)
	require.Len(t, pool, 1)
	assert.Equal(t, "s1e3.mkv", pool[0].Filepath)
}

func TestSelect_UnseenMoviesAllEligible(t *testing.T) {
	catalog := &models.Catalog{
		Movies: []*models.MediaEntry{
			{Filepath: "a.mkv", Status: models.StatusUnseen},
			{Filepath: "b.mkv", Status: models.StatusSeen},
			{Filepath: "c.mkv", Status: models.StatusUnseen},
		},
	}

	pool := New(1, testLogger()).Select(catalog)
	require.Len(t, pool, 2)

	paths := map[string]bool{}
	for _, e := range pool {
		paths[e.Filepath] = true
	}
	assert.True(t, paths["a.mkv"])
	assert.True(t, paths["c.mkv"])
	assert.False(t, paths["b.mkv"])
}

func TestSelect_ExhaustedCatalogYieldsEmptyPool(t *testing.T) {
	catalog := &models.Catalog{
		Movies: []*models.MediaEntry{
			{Filepath: "a.mkv", Status: models.StatusSeen},
		},
		Series: []*models.SeriesGroup{
			{
				SeriesName: "Done",
				Episodes:   []*models.MediaEntry{episode("e.mkv", 1, 1, models.StatusSeen)},
			},
		},
	}

	pool := New(1, testLogger()).Select(catalog)
	assert.Empty(t, pool)
}

func TestSelect_SeededShuffleIsDeterministic(t *testing.T) {
	catalog := &models.Catalog{
		Movies: []*models.MediaEntry{
			{Filepath: "a.mkv", Status: models.StatusUnseen},
			{Filepath: "b.mkv", Status: models.StatusUnseen},
			{Filepath: "c.mkv", Status: models.StatusUnseen},
			{Filepath: "d.mkv", Status: models.StatusUnseen},
			{Filepath: "e.mkv", Status: models.StatusUnseen},
		},
	}

	first := New(42, testLogger()).Select(catalog)
	second := New(42, testLogger()).Select(catalog)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Filepath, second[i].Filepath)
	}
}
