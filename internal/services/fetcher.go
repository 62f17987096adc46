package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/models"
)

// EditionDownloader issues edition file requests. client.Client satisfies it.
type EditionDownloader interface {
	DownloadEdition(ctx context.Context, link, etag string) (*models.EditionDownload, error)
}

// FetchRequest describes one edition file to bring up to date
type FetchRequest struct {
	URL    string
	Format models.Format
	Path   string // Target file
	Force  bool   // Download even when the file exists (--reload)
}

// Fetcher downloads edition files, skipping those already present and unchanged
type Fetcher struct {
	downloader  EditionDownloader
	checksummer *Checksummer
}

// NewFetcher creates a fetcher. A nil checksummer hashes without memoization.
func NewFetcher(downloader EditionDownloader, checksummer *Checksummer) *Fetcher {
	if checksummer == nil {
		checksummer = NewChecksummer(nil)
	}
	return &Fetcher{downloader: downloader, checksummer: checksummer}
}

// Fetch brings req.Path up to date with req.URL. Errors are reported in the
// returned result, never as a panic or a partially written target.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) models.FormatResult {
	logger := config.GetLogger()
	result := models.FormatResult{Format: req.Format, Path: req.Path, URL: req.URL}

	fail := func(err error) models.FormatResult {
		logger.Error().Err(err).Str("format", req.Format.String()).Str("path", req.Path).Msg("Failed to fetch edition")
		result.Outcome = models.OutcomeFailed
		result.Err = err
		return result
	}

	exists, err := regularFileExists(req.Path)
	if err != nil {
		return fail(err)
	}

	var etag string
	if exists && !req.Force {
		if !req.Format.SupportsConditionalRequest() {
			logger.Info().
				Str("format", req.Format.String()).
				Str("path", req.Path).
				Msg("File already exists, skipping download (use --reload to fetch it again)")
			result.Outcome = models.OutcomeSkippedExisting
			return result
		}

		checksum, err := f.checksummer.Checksum(ctx, req.Path)
		if err != nil {
			return fail(fmt.Errorf("checksum existing file: %w", err))
		}
		etag = `"` + checksum + `"`
		logger.Debug().Str("path", req.Path).Str("etag", etag).Msg("Existing file found, sending conditional request")
	}

	download, err := f.downloader.DownloadEdition(ctx, req.URL, etag)
	if err != nil {
		return fail(err)
	}
	if download.NotModified {
		logger.Info().Str("format", req.Format.String()).Str("path", req.Path).Msg("Edition unchanged on server")
		result.Outcome = models.OutcomeUnchanged
		return result
	}
	defer download.Body.Close()

	written, checksum, err := writeFileAtomic(req.Path, download.Body)
	if err != nil {
		return fail(err)
	}
	f.checksummer.Remember(ctx, req.Path, checksum)

	logger.Info().
		Str("format", req.Format.String()).
		Str("path", req.Path).
		Str("size", humanize.Bytes(uint64(written))).
		Str("content_type", download.ContentType).
		Msg("Edition downloaded")

	result.Outcome = models.OutcomeDownloaded
	result.Bytes = written
	return result
}

// regularFileExists reports whether path is an existing regular file.
// Anything else at path (a directory, a broken mount) is an error.
func regularFileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("%s exists and is not a regular file", path)
	}
	return true, nil
}

// writeFileAtomic streams r into a temporary file next to path and renames it
// over path once complete. It returns the bytes written and their MD5 checksum.
func writeFileAtomic(path string, r io.Reader) (int64, string, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, "", fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	hash := md5.New()
	written, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if err != nil {
		return 0, "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, "", fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return 0, "", fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, "", fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	committed = true

	return written, hex.EncodeToString(hash.Sum(nil)), nil
}
