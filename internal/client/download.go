package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/models"
)

// DownloadEdition requests an edition file. When etag is set it is sent as
// If-None-Match and a 304 answer comes back as NotModified without a body.
func (c *client) DownloadEdition(ctx context.Context, link, etag string) (*models.EditionDownload, error) {
	logger := config.GetLogger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	logger.Debug().Str("url", link).Bool("conditional", etag != "").Msg("Requesting edition")
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusNotModified:
		resp.Body.Close()
		return &models.EditionDownload{NotModified: true}, nil
	case http.StatusOK:
		return &models.EditionDownload{
			Body:          resp.Body,
			ContentLength: resp.ContentLength,
			ContentType:   resp.Header.Get("Content-Type"),
		}, nil
	default:
		resp.Body.Close()
		logger.Error().Str("url", link).Int("status", resp.StatusCode).Msg("Unexpected status downloading edition")
		return nil, apperrors.NewUnexpectedStatusError(link, resp.StatusCode)
	}
}
