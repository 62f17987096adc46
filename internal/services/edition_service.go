package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/client"
	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/metrics"
	"github.com/Belphemur/ZeitDownloader/internal/models"
)

// RunOptions selects what a run downloads and where
type RunOptions struct {
	Email     string
	Password  string
	Target    models.ReleaseTarget
	Formats   []models.Format
	OutputDir string
	Reload    bool
}

// EditionService runs the pipeline: login, locate the release, resolve a
// link per format and fetch each file.
type EditionService struct {
	client  client.Client
	fetcher *Fetcher
}

// NewEditionService creates the service around an unauthenticated session
func NewEditionService(c client.Client, fetcher *Fetcher) *EditionService {
	if fetcher == nil {
		fetcher = NewFetcher(c, nil)
	}
	return &EditionService{client: c, fetcher: fetcher}
}

// Validate checks opts without touching the network
func (s *EditionService) Validate(opts RunOptions) error {
	if opts.Target.IsAbsolute() {
		if _, err := models.ParseReleaseDate(opts.Target.Date); err != nil {
			return err
		}
	} else if opts.Target.Offset < 0 || opts.Target.Offset > models.MaxReleaseOffset {
		return fmt.Errorf("release offset %d out of range 0..%d", opts.Target.Offset, models.MaxReleaseOffset)
	}
	for _, format := range opts.Formats {
		if format == models.FormatUnknown {
			return errors.New("unknown format requested")
		}
	}
	return nil
}

// Run downloads the requested formats of the target release. Fatal errors
// (authentication, invalid date, missing release) abort the run and are
// returned; per-format problems are recorded in the report only.
func (s *EditionService) Run(ctx context.Context, opts RunOptions) (*models.RunReport, error) {
	logger := config.GetLogger()
	report := &models.RunReport{Started: time.Now()}
	defer func() { report.Finished = time.Now() }()

	if err := s.Validate(opts); err != nil {
		return report, err
	}

	if err := s.client.Login(ctx, opts.Email, opts.Password); err != nil {
		return report, fmt.Errorf("authenticate: %w", err)
	}

	release, err := s.client.LocateRelease(ctx, opts.Target)
	if err != nil {
		return report, fmt.Errorf("locate release: %w", err)
	}
	report.Release = release

	page, err := s.client.OpenRelease(ctx, release)
	if err != nil {
		return report, fmt.Errorf("open release %s: %w", release.Label, err)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return report, fmt.Errorf("create output directory: %w", err)
	}

	logger.Info().
		Str("release", release.Label).
		Int("formats", len(opts.Formats)).
		Str("output_dir", outputDir).
		Msg("Fetching editions")

	seen := make(map[models.Format]bool, len(opts.Formats))
	for _, format := range opts.Formats {
		if seen[format] {
			continue
		}
		seen[format] = true

		if err := ctx.Err(); err != nil {
			return report, err
		}

		path := filepath.Join(outputDir, release.Filename(format))
		var result models.FormatResult

		link, err := page.ResolveLink(format)
		if err != nil {
			logger.Warn().Err(err).Str("format", format.String()).Str("release", release.Label).Msg("No download link for format")
			result = models.FormatResult{Format: format, Outcome: models.OutcomeNotFound, Path: path, Err: err}
		} else {
			result = s.fetcher.Fetch(ctx, FetchRequest{URL: link, Format: format, Path: path, Force: opts.Reload})
		}

		recordResult(result)
		report.Results = append(report.Results, result)
	}

	logger.Info().
		Str("release", release.Label).
		Int("failed", len(report.Failed())).
		Int("total", len(report.Results)).
		Msg("Run finished")
	return report, nil
}

// ListReleases logs in and returns the releases currently on the listing page
func (s *EditionService) ListReleases(ctx context.Context, email, password string) ([]models.Release, error) {
	if err := s.client.Login(ctx, email, password); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	releases, err := s.client.ListReleases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	if len(releases) == 0 {
		return nil, apperrors.NewNoReleaseAtOffsetError(0)
	}
	return releases, nil
}

func recordResult(result models.FormatResult) {
	metrics.EditionDownloadsTotal.WithLabelValues(result.Format.String(), result.Outcome.String()).Inc()
	if result.Outcome == models.OutcomeDownloaded {
		metrics.EditionBytesTotal.WithLabelValues(result.Format.String()).Add(float64(result.Bytes))
	}
}
