package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/models"
)

// ReleaseDateSelector matches the release date element of each issue on the listing page
const ReleaseDateSelector = "p.epaper-info-release-date"

// ReleaseListParser implements the Parser interface for the issue listing page
type ReleaseListParser struct {
	selector string
}

// NewReleaseListParser creates a new release list parser instance
func NewReleaseListParser() *ReleaseListParser {
	return &ReleaseListParser{selector: ReleaseDateSelector}
}

// ParseHtml returns every release listed on the page in display order, newest first.
// Entries whose text is not a valid DD.MM.YYYY date are kept with a zero Date so
// that offsets into the list still line up with what the portal shows.
func (p *ReleaseListParser) ParseHtml(body io.Reader) ([]models.Release, error) {
	logger := config.GetLogger()
	logger.Debug().Msg("Starting HTML parsing for release listing")

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse HTML document")
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var releases []models.Release
	doc.Find(p.selector).Each(func(i int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Text())
		release, err := models.ParseReleaseDate(label)
		if err != nil {
			logger.Warn().
				Int("index", i).
				Str("label", label).
				Msg("Release date on listing page does not match DD.MM.YYYY, the page layout may have changed")
			release = models.Release{Label: label}
		}
		releases = append(releases, release)
	})

	logger.Debug().Int("total_releases", len(releases)).Msg("Completed HTML parsing for release listing")
	return releases, nil
}
