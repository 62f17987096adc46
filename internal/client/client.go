package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/models"
	"github.com/Belphemur/ZeitDownloader/internal/parser"
)

// Client is the authenticated session against the e-paper portal.
// One Client is created per run and used serially by every stage.
type Client interface {
	// Login authenticates the session. It fails with *apperrors.ErrAuthentication
	// when the portal does not hand out the identity cookie.
	Login(ctx context.Context, email, password string) error

	// ListReleases returns the releases on the listing page, newest first.
	ListReleases(ctx context.Context) ([]models.Release, error)

	// LocateRelease resolves a target to a release. Absolute dates are validated
	// without touching the network.
	LocateRelease(ctx context.Context, target models.ReleaseTarget) (models.Release, error)

	// OpenRelease fetches and parses the page of release. It fails with
	// *apperrors.ErrNoRelease when the portal redirects back to the listing.
	OpenRelease(ctx context.Context, release models.Release) (*parser.ReleasePage, error)

	// DownloadEdition requests an edition file. A non-empty etag is sent as
	// If-None-Match. The caller must close the returned body.
	DownloadEdition(ctx context.Context, link, etag string) (*models.EditionDownload, error)

	// Close releases idle connections held by the session.
	Close() error
}

// client implements the Client interface
type client struct {
	httpClient     *http.Client
	downloadClient *http.Client
	jar            http.CookieJar
	loginURL       *url.URL
	portalURL      *url.URL
	listingURL     *url.URL
	returnURL      string
	sessionCookie  string
	releaseParser  parser.Parser[models.Release]
	csrfParser     parser.SingleResultParser[string]
	linkLookup     parser.LinkLookup
}

// page is a fetched HTML document along with the URL it was finally served from
type page struct {
	body        []byte
	url         *url.URL
	contentType string
}

// NewClient creates a new session from cfg, with proxy configuration if provided
func NewClient(cfg *config.Config) (Client, error) {
	logger := config.GetLogger()

	loginURL, err := parseAbsoluteURL("login_url", cfg.LoginURL)
	if err != nil {
		return nil, err
	}
	portalURL, err := parseAbsoluteURL("portal_url", cfg.PortalURL)
	if err != nil {
		return nil, err
	}
	// Relative download links resolve against the portal origin
	portalOrigin := &url.URL{Scheme: portalURL.Scheme, Host: portalURL.Host}
	listingURL := portalOrigin.JoinPath(cfg.ListingPath)

	lookup, err := parser.NewLinkLookup(cfg.LinkLookup, cfg.LinkSelectors)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := parseTimeout("client_timeout", cfg.ClientTimeout, 30*time.Second)
	downloadTimeout := parseTimeout("download_timeout", cfg.DownloadTimeout, 10*time.Minute)

	// Clone DefaultTransport to preserve its settings (timeouts, connection pooling, HTTP/2, etc.)
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyConnectionString != "" {
		proxyURL, err := url.Parse(cfg.ProxyConnectionString)
		if err != nil {
			logger.Warn().Err(err).Str("proxy", cfg.ProxyConnectionString).Msg("Invalid proxy URL, continuing without proxy")
		} else {
			baseTransport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	headers := http.Header{}
	headers.Set("Origin", loginURL.Scheme+"://"+loginURL.Host)
	headers.Set("User-Agent", userAgent)
	transport := newSessionTransport(baseTransport, headers)

	sessionCookie := cfg.SessionCookie
	if sessionCookie == "" {
		sessionCookie = "zeit_sso_201501"
	}

	return &client{
		httpClient:     &http.Client{Timeout: timeout, Transport: transport, Jar: jar},
		downloadClient: &http.Client{Timeout: downloadTimeout, Transport: transport, Jar: jar},
		jar:            jar,
		loginURL:       loginURL,
		portalURL:      portalOrigin,
		listingURL:     listingURL,
		returnURL:      cfg.ReturnURL,
		sessionCookie:  sessionCookie,
		releaseParser:  parser.NewReleaseListParser(),
		csrfParser:     parser.NewCSRFTokenParser(),
		linkLookup:     lookup,
	}, nil
}

// Close releases idle connections held by the session
func (c *client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// fetchPage GETs an HTML page and returns its body together with the final URL after redirects
func (c *client) fetchPage(ctx context.Context, pageURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUnexpectedStatusError(pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &page{body: body, url: resp.Request.URL, contentType: resp.Header.Get("Content-Type")}, nil
}

// reader returns the page body decoded to UTF-8
func (p *page) reader() (io.Reader, error) {
	return parser.NewUTF8Reader(bytes.NewReader(p.body), p.contentType)
}

// cookieValue returns the value of the named cookie the jar would send to u
func (c *client) cookieValue(u *url.URL, name string) string {
	for _, cookie := range c.jar.Cookies(u) {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}

// sameLocation reports whether two URLs point at the same host and path, ignoring a trailing slash
func sameLocation(a, b *url.URL) bool {
	return strings.EqualFold(a.Host, b.Host) &&
		strings.TrimRight(a.Path, "/") == strings.TrimRight(b.Path, "/")
}

func parseAbsoluteURL(key, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s %q: must be an absolute URL", key, raw)
	}
	return u, nil
}

func parseTimeout(key, raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		logger := config.GetLogger()
		logger.Warn().Err(err).Str(key, raw).Dur("default", fallback).Msg("Invalid timeout duration, using default")
		return fallback
	}
	return parsed
}
