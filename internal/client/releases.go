package client

import (
	"context"
	"fmt"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/models"
	"github.com/Belphemur/ZeitDownloader/internal/parser"
)

// ListReleases fetches the listing page and returns its releases, newest first
func (c *client) ListReleases(ctx context.Context) ([]models.Release, error) {
	logger := config.GetLogger()
	logger.Debug().Str("url", c.listingURL.String()).Msg("Fetching release listing")

	listing, err := c.fetchAuthenticatedPage(ctx, c.listingURL.String())
	if err != nil {
		return nil, err
	}

	reader, err := listing.reader()
	if err != nil {
		return nil, fmt.Errorf("failed to create UTF-8 reader: %w", err)
	}
	releases, err := c.releaseParser.ParseHtml(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse release listing: %w", err)
	}

	logger.Info().Int("count", len(releases)).Msg("Release listing loaded")
	return releases, nil
}

// LocateRelease resolves target to a release. An absolute date is only
// validated; an offset is looked up on the listing page.
func (c *client) LocateRelease(ctx context.Context, target models.ReleaseTarget) (models.Release, error) {
	logger := config.GetLogger()

	if target.IsAbsolute() {
		return models.ParseReleaseDate(target.Date)
	}
	if target.Offset < 0 || target.Offset > models.MaxReleaseOffset {
		return models.Release{}, fmt.Errorf("release offset %d out of range 0..%d", target.Offset, models.MaxReleaseOffset)
	}

	releases, err := c.ListReleases(ctx)
	if err != nil {
		return models.Release{}, err
	}
	if target.Offset >= len(releases) {
		logger.Error().Int("offset", target.Offset).Int("available", len(releases)).Msg("Listing has fewer releases than requested")
		return models.Release{}, apperrors.NewNoReleaseAtOffsetError(target.Offset)
	}

	release := releases[target.Offset]
	if release.Label == "" {
		return models.Release{}, apperrors.NewNoReleaseAtOffsetError(target.Offset)
	}
	logger.Info().Int("offset", target.Offset).Str("release", release.Label).Msg("Located release")
	return release, nil
}

// OpenRelease fetches the page of release and prepares it for link lookups
func (c *client) OpenRelease(ctx context.Context, release models.Release) (*parser.ReleasePage, error) {
	logger := config.GetLogger()

	pageURL := c.listingURL.JoinPath(release.Label)
	logger.Debug().Str("release", release.Label).Str("url", pageURL.String()).Msg("Opening release page")

	releasePage, err := c.fetchAuthenticatedPage(ctx, pageURL.String())
	if err != nil {
		return nil, err
	}

	// Dates without an edition are sent back to the overview
	if sameLocation(releasePage.url, c.listingURL) {
		logger.Error().Str("release", release.Label).Msg("Portal redirected to the listing, no edition on this date")
		return nil, apperrors.NewNoReleaseError(release.Label)
	}

	reader, err := releasePage.reader()
	if err != nil {
		return nil, fmt.Errorf("failed to create UTF-8 reader: %w", err)
	}
	return parser.NewReleasePage(reader, release, c.portalURL, c.linkLookup)
}

// fetchAuthenticatedPage is fetchPage for pages behind the login. Being sent
// to the login form means the session is not (or no longer) valid.
func (c *client) fetchAuthenticatedPage(ctx context.Context, pageURL string) (*page, error) {
	result, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if sameLocation(result.url, c.loginURL) {
		logger := config.GetLogger()
		logger.Error().Str("url", pageURL).Msg("Portal redirected to the login form")
		return nil, apperrors.NewAuthenticationError(c.sessionCookie)
	}
	return result, nil
}
