package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMovieName(t *testing.T) {
	title, year := parseMovieName("Inception (2010).mkv")
	require.NotNil(t, year)
	assert.Equal(t, "Inception", title)
	assert.Equal(t, 2010, *year)

	title, year = parseMovieName("The Thing (1982) 1080p BluRay.mkv")
	require.NotNil(t, year)
	assert.Equal(t, "The Thing", title)
	assert.Equal(t, 1982, *year)

	title, year = parseMovieName("Home Video.mp4")
	assert.Nil(t, year)
	assert.Equal(t, "Home Video", title)
}

func TestParseEpisodeNumbers(t *testing.T) {
	season, episode, ok := parseEpisodeNumbers("Severance S01E09.mkv", "Season 1")
	assert.True(t, ok)
	assert.Equal(t, 1, season)
	assert.Equal(t, 9, episode)

	season, episode, ok = parseEpisodeNumbers("the.wire.s03e11.720p.mkv", "Season 3")
	assert.True(t, ok)
	assert.Equal(t, 3, season)
	assert.Equal(t, 11, episode)

	// Episode token with the season taken from the folder.
	season, episode, ok = parseEpisodeNumbers("ep4.mkv", "Season 2")
	assert.True(t, ok)
	assert.Equal(t, 2, season)
	assert.Equal(t, 4, episode)

	// Nothing parseable; season still best-effort from the folder.
	season, _, ok = parseEpisodeNumbers("Behind The Lens.mkv", "Season 2")
	assert.False(t, ok)
	assert.Equal(t, 2, season)
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Breaking Bad", cleanName("Breaking.Bad"))
	assert.Equal(t, "The Wire", cleanName("The Wire (2002)"))
	assert.Equal(t, "Planet Earth", cleanName("planet_earth [1080p BluRay]"))
}

func TestIsJunkFile(t *testing.T) {
	assert.True(t, isJunkFile("Dune (2021)-sample.mkv"))
	assert.True(t, isJunkFile("movie.trailer.mkv"))
	assert.False(t, isJunkFile("Dune (2021).mkv"))
	assert.False(t, isJunkFile("Sampler Platter (2019).mkv"))
}

func TestIsVideoAndSubtitleFiles(t *testing.T) {
	assert.True(t, isVideoFile("a.MKV"))
	assert.True(t, isVideoFile("a.mp4"))
	assert.False(t, isVideoFile("a.nfo"))

	assert.True(t, isSubtitleFile("a.srt"))
	assert.True(t, isSubtitleFile("a.VTT"))
	assert.False(t, isSubtitleFile("a.txt"))
}
