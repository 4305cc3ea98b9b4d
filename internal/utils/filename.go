package utils

// Package utils provides helpers shared across the downloader: destination
// file names derived from URLs, output directory handling and type sniffing.

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/h2non/filetype"
)

// DefaultFileName is used when a URL has no usable final path segment.
const DefaultFileName = "download.bin"

// SniffLen is how many leading bytes SniffType needs to recognise most formats.
const SniffLen = 262

// FileNameFromURL returns the sanitized final path segment of rawurl.
// Query strings and fragments are ignored.
func FileNameFromURL(rawurl string) string {
	var candidate string
	if parsed, err := url.Parse(rawurl); err == nil {
		candidate = path.Base(parsed.Path)
	} else {
		// Fall back to naive splitting for URLs net/url rejects.
		trimmed := rawurl
		if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
			trimmed = trimmed[:i]
		}
		candidate = trimmed[strings.LastIndex(trimmed, "/")+1:]
		if decoded, err := url.PathUnescape(candidate); err == nil {
			candidate = decoded
		}
	}

	filename := sanitizeFilename(candidate)
	if filename == "" || filename == "." || filename == ".." || filename == "_" {
		return DefaultFileName
	}
	return filename
}

// SniffType inspects the first bytes of a file and returns the detected
// extension and MIME type, or empty strings when the format is unknown.
func SniffType(header []byte) (ext, mime string) {
	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown {
		return "", ""
	}
	return kind.Extension, kind.MIME.Value
}

// TypeMismatch reports whether a sniffed extension contradicts the
// requested file-type label. Unknown sniffs never mismatch.
func TypeMismatch(label, detected string) bool {
	if label == "" || detected == "" {
		return false
	}
	label = strings.ToLower(strings.TrimPrefix(label, "."))
	detected = strings.ToLower(detected)
	if label == detected {
		return false
	}
	switch label {
	case "jpeg":
		return detected != "jpg"
	case "jpg":
		return detected != "jpg"
	case "tif", "tiff":
		return detected != "tif"
	case "htm", "html", "txt", "csv", "json", "xml":
		// Text formats have no magic number.
		return false
	}
	return true
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// sanitizeFilename removes characters that are unsafe or invalid across platforms.
func sanitizeFilename(name string) string {
	// Replace backslashes with forward slashes first so filepath.Base treats them as separators
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." {
		return name
	}
	if name == "/" {
		return "_"
	}
	name = strings.TrimSpace(name)

	// Remove ANSI escape codes
	name = ansiRegex.ReplaceAllString(name, "")

	// Remove control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	replacer := strings.NewReplacer(
		"/", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
