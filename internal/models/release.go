package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
)

// ReleaseDateLayout is the DD.MM.YYYY layout the portal uses for release dates.
const ReleaseDateLayout = "02.01.2006"

// MaxReleaseOffset is the furthest back the listing page reaches.
const MaxReleaseOffset = 6

var releaseDatePattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)

// Release is one published edition, keyed by its date
type Release struct {
	Date  time.Time // Parsed calendar date, zero when Label failed validation
	Label string    // Date as displayed by the portal, e.g. "25.03.2024"
}

// ParseReleaseDate validates a DD.MM.YYYY string and returns the matching release.
func ParseReleaseDate(value string) (Release, error) {
	if !releaseDatePattern.MatchString(value) {
		return Release{}, apperrors.NewInvalidDateError(value)
	}
	date, err := time.Parse(ReleaseDateLayout, value)
	if err != nil {
		return Release{}, apperrors.NewInvalidDateError(value)
	}
	return Release{Date: date, Label: value}, nil
}

// IsValidReleaseDate reports whether value is a well-formed, existing DD.MM.YYYY date.
func IsValidReleaseDate(value string) bool {
	_, err := ParseReleaseDate(value)
	return err == nil
}

// Valid reports whether the release carries a parsed date.
func (r Release) Valid() bool {
	return !r.Date.IsZero()
}

// Filename returns the deterministic local file name for the given format,
// e.g. die_zeit_2024-03-25.epub.
func (r Release) Filename(format Format) string {
	stamp := r.Date.Format("2006-01-02")
	if !r.Valid() {
		stamp = strings.NewReplacer(".", "-", "/", "-", " ", "_").Replace(r.Label)
	}
	return fmt.Sprintf("die_zeit_%s.%s", stamp, format.Extension())
}

// String returns the portal label of the release
func (r Release) String() string {
	return r.Label
}

// ReleaseTarget selects a release either by absolute date or by offset from the newest one
type ReleaseTarget struct {
	Date   string // DD.MM.YYYY; takes precedence when set
	Offset int    // Releases back from the newest, 0..MaxReleaseOffset
}

// IsAbsolute reports whether the target names an explicit date.
func (t ReleaseTarget) IsAbsolute() bool {
	return t.Date != ""
}
