// Package facematch holds label and face-geometry helpers shared by the CLI, the web handlers
// and the embedding client.
package facematch

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLabelLength is the longest label, in bytes, that can be enrolled.
const MaxLabelLength = 256

var (
	// ErrLabelEmpty is returned for labels that are blank after trimming.
	ErrLabelEmpty = errors.New("label is empty")
	// ErrLabelInvalid is returned for labels that are not valid UTF-8 or contain control characters.
	ErrLabelInvalid = errors.New("label contains invalid characters")
)

// NormalizeLabel trims surrounding whitespace and converts s to Unicode NFC so that the same
// name typed on different systems is stored identically. Case and diacritics are preserved.
func NormalizeLabel(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrLabelInvalid
	}
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return "", ErrLabelEmpty
	}
	if len(s) > MaxLabelLength {
		return "", fmt.Errorf("label is %d bytes, limit is %d", len(s), MaxLabelLength)
	}
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return "", ErrLabelInvalid
	}
	return s, nil
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName folds a name for comparison (lowercase, no diacritics, spaces for dashes
// and underscores).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// LabelFromFilename derives a label from an image file name such as "jan_novak-02.jpg".
// The extension and a trailing sample number are dropped and separators become spaces.
func LabelFromFilename(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	fields := strings.Fields(name)
	for len(fields) > 1 && isDigits(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
