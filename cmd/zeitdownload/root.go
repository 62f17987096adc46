package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/cache"
	"github.com/Belphemur/ZeitDownloader/internal/client"
	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/metrics"
	"github.com/Belphemur/ZeitDownloader/internal/models"
	"github.com/Belphemur/ZeitDownloader/internal/services"
	"github.com/Belphemur/ZeitDownloader/internal/telemetry"
)

type rootOptions struct {
	configFile string
	pdf        bool
	epub       bool
	mobi       bool
	reload     bool
	list       bool
	date       string
	numRelease int
}

func (o *rootOptions) formats() []models.Format {
	var formats []models.Format
	if o.pdf {
		formats = append(formats, models.FormatPDF)
	}
	if o.epub {
		formats = append(formats, models.FormatEPUB)
	}
	if o.mobi {
		formats = append(formats, models.FormatMOBI)
	}
	return formats
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "zeitdownload",
		Short: "Download the DIE ZEIT e-paper",
		Long: `Log in to the DIE ZEIT e-paper portal and download the newest release,
or an earlier one, as PDF, EPUB and/or MOBI into the output directory.

Existing EPUB and MOBI files are only replaced when the portal has a newer
version; existing PDF files are kept unless --reload is given.`,
		Example: `  zeitdownload --email reader@example.com --password secret --epub
  zeitdownload --epub --mobi --num-release 1 --output-dir ~/Zeitungen
  zeitdownload --pdf --date 25.03.2024 --reload`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return newUsageError("unexpected arguments: %v", args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := rootCmd.Flags()
	flags.String("email", "", "Account email (or APP_EMAIL / config email)")
	flags.String("password", "", "Account password (or APP_PASSWORD / config password)")
	flags.BoolVar(&opts.pdf, "pdf", false, "Download the full-page PDF")
	flags.BoolVar(&opts.epub, "epub", false, "Download the EPUB")
	flags.BoolVar(&opts.mobi, "mobi", false, "Download the MOBI")
	flags.BoolVar(&opts.reload, "reload", false, "Download files again even if they already exist")
	flags.StringVar(&opts.date, "date", "", "Release date as DD.MM.YYYY")
	flags.IntVar(&opts.numRelease, "num-release", 0, "Release to fetch, counted back from the newest (0-"+strconv.Itoa(models.MaxReleaseOffset)+")")
	flags.BoolVar(&opts.list, "list", false, "Print the releases currently available and exit")
	flags.String("output-dir", "", "Directory the files are written to (default: current directory)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.StringVarP(&opts.configFile, "config", "c", "", "Configuration file path")

	return rootCmd
}

func validateFlags(cmd *cobra.Command, opts *rootOptions) error {
	if cmd.Flags().Changed("date") && cmd.Flags().Changed("num-release") {
		return newUsageError("--date and --num-release are mutually exclusive")
	}
	if opts.numRelease < 0 || opts.numRelease > models.MaxReleaseOffset {
		return newUsageError("--num-release must be between 0 and %d, got %d", models.MaxReleaseOffset, opts.numRelease)
	}
	return nil
}

func run(cmd *cobra.Command, opts *rootOptions) error {
	if err := validateFlags(cmd, opts); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	formats := opts.formats()
	if len(formats) == 0 && !opts.list {
		fmt.Fprintln(out, "Nothing to do: select at least one of --pdf, --epub, --mobi.")
		return nil
	}

	cfg, err := config.LoadConfig(opts.configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	config.Setup(cfg)

	runID := uuid.NewString()
	config.WithRunID(runID)
	logger := config.GetLogger()

	if cfg.Email == "" || cfg.Password == "" {
		return newUsageError("--email and --password are required")
	}

	reporter, err := telemetry.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, runID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialise Sentry, error reporting disabled")
	}
	defer reporter.Flush()

	store, err := cache.FromConfig(cfg)
	if err != nil {
		logger.Warn().Err(err).Str("provider", cfg.Cache.Provider).Msg("Checksum cache unavailable, hashing without it")
	} else {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to save checksum cache")
			}
		}()
	}

	session, err := client.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer session.Close()

	var checksummer *services.Checksummer
	if store != nil {
		checksummer = services.NewChecksummer(store)
	}
	service := services.NewEditionService(session, services.NewFetcher(session, checksummer))
	ctx := cmd.Context()

	if opts.list {
		return listReleases(ctx, out, service, cfg, reporter)
	}

	report, err := service.Run(ctx, services.RunOptions{
		Email:     cfg.Email,
		Password:  cfg.Password,
		Target:    models.ReleaseTarget{Date: opts.date, Offset: opts.numRelease},
		Formats:   formats,
		OutputDir: cfg.OutputDir,
		Reload:    opts.reload,
	})
	exportMetrics(cfg, err == nil && len(report.Failed()) == 0)
	if err != nil {
		if apperrors.IsFatal(err) {
			reporter.CaptureFatal(err, map[string]string{"exit_code": strconv.Itoa(apperrors.ExitCode(err))})
		}
		return err
	}

	printReport(out, report)
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d formats failed for release %s", len(failed), len(report.Results), report.Release.Label)
	}
	return nil
}

func listReleases(ctx context.Context, out io.Writer, service *services.EditionService, cfg *config.Config, reporter *telemetry.Reporter) error {
	releases, err := service.ListReleases(ctx, cfg.Email, cfg.Password)
	if err != nil {
		if apperrors.IsFatal(err) {
			reporter.CaptureFatal(err, map[string]string{"exit_code": strconv.Itoa(apperrors.ExitCode(err))})
		}
		return err
	}
	for i, release := range releases {
		if i > models.MaxReleaseOffset {
			break
		}
		fmt.Fprintf(out, "%d\t%s\n", i, release.Label)
	}
	return nil
}

func printReport(out io.Writer, report *models.RunReport) {
	fmt.Fprintf(out, "Release %s (%s)\n", report.Release.Label, report.Finished.Sub(report.Started).Round(time.Millisecond))
	skipped := false
	for _, result := range report.Results {
		line := fmt.Sprintf("  %-5s %-16s %s", result.Format, result.Outcome, result.Path)
		if result.Err != nil {
			line += ": " + result.Err.Error()
		}
		fmt.Fprintln(out, line)
		skipped = skipped || result.Outcome == models.OutcomeSkippedExisting
	}
	if skipped {
		fmt.Fprintln(out, "Existing files were kept, use --reload to download them again.")
	}
}

func exportMetrics(cfg *config.Config, success bool) {
	metrics.LastRunTimestamp.SetToCurrentTime()
	if success {
		metrics.LastRunSuccess.Set(1)
	} else {
		metrics.LastRunSuccess.Set(0)
	}
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger := config.GetLogger()
		logger.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics textfile")
	}
}
