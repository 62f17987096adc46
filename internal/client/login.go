package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/parser"
)

// Login fetches the login form for its CSRF token, posts the credentials and
// checks that the portal handed out the identity cookie.
func (c *client) Login(ctx context.Context, email, password string) error {
	logger := config.GetLogger()
	logger.Info().Str("url", c.loginURL.String()).Msg("Logging in")
	logger.Debug().Str("email", email).Msg("Using account")

	token, err := c.csrfToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to load login form: %w", err)
	}

	form := url.Values{
		"entry_service": {"sonstige"},
		"product_id":    {"sonstige"},
		"return_url":    {c.returnURL},
		"email":         {email},
		"pass":          {password},
		"permanent":     {"on"},
	}
	if token != "" {
		form.Set(parser.CSRFFieldName, token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return apperrors.NewUnexpectedStatusError(c.loginURL.String(), resp.StatusCode)
	}

	if c.cookieValue(c.loginURL, c.sessionCookie) == "" {
		logger.Error().Int("status", resp.StatusCode).Msg("Login did not yield a session cookie")
		return apperrors.NewAuthenticationError(c.sessionCookie)
	}

	logger.Info().Msg("Login successful")
	return nil
}

// csrfToken returns the token from the login form, falling back to the csrf cookie
func (c *client) csrfToken(ctx context.Context) (string, error) {
	logger := config.GetLogger()

	loginPage, err := c.fetchPage(ctx, c.loginURL.String())
	if err != nil {
		return "", err
	}
	reader, err := loginPage.reader()
	if err != nil {
		return "", fmt.Errorf("failed to create UTF-8 reader: %w", err)
	}
	token, err := c.csrfParser.ParseHtml(reader)
	if err != nil {
		return "", err
	}
	if token == "" {
		token = c.cookieValue(c.loginURL, parser.CSRFFieldName)
	}
	if token == "" {
		logger.Warn().Msg("No CSRF token found on login page, posting without it")
	}
	return token, nil
}
