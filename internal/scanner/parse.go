package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	videoExtensions = map[string]bool{
		".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".m4v": true,
	}
	subtitleExtensions = []string{".srt", ".sub", ".ass", ".ssa", ".vtt"}

	movieNameRegex     = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)`)
	seasonEpisodeRegex = regexp.MustCompile(`(?i)\bs(\d{1,2})\s*e(\d{1,3})\b`)
	seasonFolderRegex  = regexp.MustCompile(`(?i)(?:s|season)[\s_.]?(\d{1,2})`)
	episodeTokenRegex  = regexp.MustCompile(`(?i)[._\s-](?:e|ep|episode)(\d{1,3})[._\s-]`)
	junkTokenRegex     = regexp.MustCompile(`(?i)[._\s-](sample|trailer|extra)[._\s-]`)
	releaseTagRegex    = regexp.MustCompile(`(?i)\[.*?\]|\(.*?\)|\b(1080p|2160p|720p|bluray|webrip|web-dl|h264|x264|x265|hevc|aac)\b`)

	titleCaser = cases.Title(language.English)
)

// isVideoFile reports whether the file name has a recognized video extension
func isVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// isJunkFile filters samples, trailers and extras out of the scan
func isJunkFile(name string) bool {
	return junkTokenRegex.MatchString(" " + name + " ")
}

// isSubtitleFile reports whether the file name has a recognized subtitle extension
func isSubtitleFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range subtitleExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// baseName strips the extension from a file name
func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// parseMovieName extracts title and year from a "Title (Year)" file name.
// Names that don't match keep the raw base name as title with no year.
func parseMovieName(filename string) (title string, year *int) {
	base := baseName(filename)
	if m := movieNameRegex.FindStringSubmatch(base); m != nil {
		y, _ := strconv.Atoi(m[2])
		return strings.TrimSpace(m[1]), &y
	}
	return base, nil
}

// parseEpisodeNumbers extracts (season, episode) from an SxxExx token in the
// file name, falling back to a season-folder number with an E/Ep/Episode
// token. ok is false when no episode number could be determined; season is
// still best-effort in that case.
func parseEpisodeNumbers(filename, seasonFolder string) (season, episode int, ok bool) {
	if m := seasonEpisodeRegex.FindStringSubmatch(filename); m != nil {
		season, _ = strconv.Atoi(m[1])
		episode, _ = strconv.Atoi(m[2])
		return season, episode, true
	}

	season = 1
	if m := seasonFolderRegex.FindStringSubmatch(seasonFolder); m != nil {
		season, _ = strconv.Atoi(m[1])
	}

	if m := episodeTokenRegex.FindStringSubmatch(" " + filename + " "); m != nil {
		episode, _ = strconv.Atoi(m[1])
		return season, episode, true
	}

	return season, 0, false
}

// cleanName turns a raw file or folder name into a display name: release
// tags and the year are stripped, separators become spaces, words are
// title-cased.
func cleanName(name string) string {
	name = releaseTagRegex.ReplaceAllString(name, " ")
	name = strings.NewReplacer(".", " ", "_", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return titleCaser.String(strings.ToLower(name))
}
