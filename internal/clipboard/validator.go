package clipboard

import (
	"errors"
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
)

const (
	// MaxURLLength is the maximum allowed URL length to prevent processing extremely long strings
	maxURLLength = 2048
)

var (
	// ErrClipboardRead indicates an error reading from the clipboard
	ErrClipboardRead = errors.New("failed to read from clipboard")
	// ErrNoURLs indicates the clipboard content holds no valid URL
	ErrNoURLs = errors.New("clipboard does not contain any valid URL")
)

// readAll is swapped in tests; headless CI has no clipboard.
var readAll = clipboard.ReadAll

type Validator struct {
	allowedSchemes map[string]bool
}

func NewValidator() *Validator {
	// Restrict to HTTP/S to avoid unsafe schemes from clipboard.
	return &Validator{
		allowedSchemes: map[string]bool{"http": true, "https": true},
	}
}

// ExtractURL validates and extracts a URL from a single line of text.
// Returns empty string if the text is not a valid HTTP/HTTPS URL
func (v *Validator) ExtractURL(text string) string {
	text = strings.TrimSpace(text)

	// Quick reject: empty, too long, or contains newlines
	if text == "" || len(text) > maxURLLength || strings.ContainsAny(text, "\n\r") {
		return ""
	}

	parsed, err := url.Parse(text)
	if err != nil {
		return ""
	}

	// Validate scheme, host presence, and host is not empty/whitespace
	if !v.allowedSchemes[parsed.Scheme] || parsed.Host == "" || strings.TrimSpace(parsed.Host) == "" {
		return ""
	}

	return parsed.String()
}

// ExtractURLs returns every valid URL in text, one candidate per line or
// whitespace-separated field, in order of appearance.
func (v *Validator) ExtractURLs(text string) []string {
	var urls []string
	for _, field := range strings.Fields(text) {
		if u := v.ExtractURL(field); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// ReadURLs reads the clipboard and returns the valid URLs it contains.
func ReadURLs() ([]string, error) {
	text, err := readAll()
	if err != nil {
		return nil, ErrClipboardRead
	}

	urls := NewValidator().ExtractURLs(text)
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}
