// Package tenant derives the provider-facing names of a workspace from its human label.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// MaxNameLength is the longest resource name accepted by both hosting providers.
const MaxNameLength = 48

// ErrEmptySlug is returned when a tenant name contains no usable characters.
var ErrEmptySlug = errors.New("tenant name has no alphanumeric characters")

// Slugify lowercases name and collapses every run of non-alphanumeric characters into one hyphen.
func Slugify(name string) (string, error) {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}

// ValidateSlug checks an already normalized slug.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("invalid slug %q: must match %s", slug, slugPattern.String())
	}
	return nil
}

// ShortID returns the first 8 hexadecimal characters of a UUID (without dashes).
func ShortID(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	if len(hex) < 8 {
		return hex
	}
	return hex[:8]
}

// ResourceName returns `<env>-<slug>-<shortID>`, truncating the slug so the result
// fits MaxNameLength. The same inputs always produce the same name, which is what
// lets a re-run find a project it created before.
func ResourceName(env, slug, shortID string) string {
	env = strings.Trim(strings.ToLower(env), "-")
	fixed := len(shortID) + 1
	if env != "" {
		fixed += len(env) + 1
	}
	if room := MaxNameLength - fixed; len(slug) > room {
		slug = strings.TrimRight(slug[:max(room, 1)], "-")
	}
	if env == "" {
		return slug + "-" + shortID
	}
	return env + "-" + slug + "-" + shortID
}

// ToSnake converts a kebab-case slug into snake_case.
func ToSnake(slug string) string {
	return strings.ReplaceAll(strings.ToLower(slug), "-", "_")
}
