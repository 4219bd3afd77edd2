package shared

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	maxFilenameLength = 200
	unknownArtist     = "Unknown Artist"
	unknownTitle      = "Unknown Title"
	defaultExtension  = "mp3"
)

var (
	reservedChars   = regexp.MustCompile(`[<>:"/\\|?*]`)
	controlChars    = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	audioExtensions = map[string]bool{
		"mp3": true, "flac": true, "wav": true, "aac": true, "m4a": true, "ogg": true, "wma": true,
	}
)

// SanitizeFilename replaces characters that are illegal on common filesystems and tidies the result.
func SanitizeFilename(name string) string {
	if name == "" {
		return "unknown"
	}

	name = reservedChars.ReplaceAllString(name, "_")
	name = controlChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = whitespaceRuns.ReplaceAllString(name, " ")
	name = strings.Trim(strings.TrimSpace(name), "_")

	if name == "" {
		return "unknown"
	}
	return name
}

// MusicFilename builds "Artist - Title.ext", sanitized and capped at 200 characters with the extension preserved.
func MusicFilename(artist, title, ext string) string {
	if strings.TrimSpace(artist) == "" {
		artist = unknownArtist
	}
	if strings.TrimSpace(title) == "" {
		title = unknownTitle
	}

	name := SanitizeFilename(artist) + " - " + SanitizeFilename(title)

	suffix := ""
	if ext = strings.TrimPrefix(strings.ToLower(ext), "."); ext != "" {
		suffix = "." + ext
	}

	if runes := []rune(name + suffix); len(runes) > maxFilenameLength {
		keep := maxFilenameLength - len([]rune(suffix))
		name = string([]rune(name)[:keep])
	}

	return name + suffix
}

// ExtensionFromURL returns the audio extension of the URL's path, or "mp3" when it is missing or unrecognized.
func ExtensionFromURL(raw string) string {
	if raw == "" {
		return defaultExtension
	}

	u, err := url.Parse(raw)
	if err != nil {
		return defaultExtension
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if audioExtensions[ext] {
		return ext
	}
	return defaultExtension
}

// NormalizeExtension lowercases ext and checks it against the known audio formats.
func NormalizeExtension(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	return ext, audioExtensions[ext]
}
