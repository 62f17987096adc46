package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/models"
	"github.com/Belphemur/ZeitDownloader/internal/testutil"
)

func newTestClient(t *testing.T, portal *testutil.Portal) Client {
	t.Helper()
	c, err := NewClient(portal.Config())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func loggedInClient(t *testing.T, portal *testutil.Portal) Client {
	t.Helper()
	c := newTestClient(t, portal)
	if err := c.Login(context.Background(), portal.Email, portal.Password); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return c
}

func TestNewClient_InvalidURLs(t *testing.T) {
	portal := testutil.NewPortal(t)

	tests := []struct {
		name   string
		mutate func(loginURL, portalURL *string)
	}{
		{"relative login url", func(l, _ *string) { *l = "/anmelden" }},
		{"relative portal url", func(_, p *string) { *p = "epaper.zeit.de" }},
		{"unparsable login url", func(l, _ *string) { *l = "http://[::1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := portal.Config()
			tt.mutate(&cfg.LoginURL, &cfg.PortalURL)
			if _, err := NewClient(cfg); err == nil {
				t.Error("Expected NewClient to fail")
			}
		})
	}
}

func TestNewClient_UnknownLinkLookup(t *testing.T) {
	portal := testutil.NewPortal(t)
	cfg := portal.Config()
	cfg.LinkLookup = "xpath"

	if _, err := NewClient(cfg); err == nil {
		t.Error("Expected NewClient to reject an unknown link lookup")
	}
}

func TestClient_Login(t *testing.T) {
	portal := testutil.NewPortal(t)
	c := newTestClient(t, portal)

	if err := c.Login(context.Background(), portal.Email, portal.Password); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if got := portal.CountRequests(testutil.PortalLoginPath); got != 2 {
		t.Errorf("Expected 2 requests to the login form (GET and POST), got %d: %v", got, portal.Requests())
	}
	requests := portal.Requests()
	if requests[0] != "GET "+testutil.PortalLoginPath || requests[1] != "POST "+testutil.PortalLoginPath {
		t.Errorf("Unexpected request sequence: %v", requests)
	}
}

func TestClient_Login_Failures(t *testing.T) {
	tests := []struct {
		name     string
		password string
		session  bool
	}{
		{"wrong password", "wrong", true},
		{"portal withholds cookie", "secret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal := testutil.NewPortal(t)
			portal.SetSession = tt.session
			c := newTestClient(t, portal)

			err := c.Login(context.Background(), portal.Email, tt.password)
			if err == nil {
				t.Fatal("Expected Login to fail")
			}
			var authErr *apperrors.ErrAuthentication
			if !errors.As(err, &authErr) {
				t.Fatalf("Expected ErrAuthentication, got %T: %v", err, err)
			}
			if strings.Contains(err.Error(), portal.Email) {
				t.Errorf("Expected the account email to stay out of the error, got %q", err.Error())
			}
			if authErr.Cookie != "zeit_sso_201501" {
				t.Errorf("Expected cookie name in error, got %q", authErr.Cookie)
			}
			if apperrors.ExitCode(err) != apperrors.ExitAuthentication {
				t.Errorf("Expected exit code %d, got %d", apperrors.ExitAuthentication, apperrors.ExitCode(err))
			}
		})
	}
}

func TestClient_Login_CSRFCookieFallback(t *testing.T) {
	var posted string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: "from-cookie", Path: "/"})
			_, _ = w.Write([]byte(testutil.GenerateLoginPageHTML("")))
			return
		}
		_ = r.ParseForm()
		posted = r.PostForm.Get("csrf_token")
		if r.PostForm.Get("entry_service") != "sonstige" || r.PostForm.Get("permanent") != "on" {
			t.Errorf("Unexpected login form: %v", r.PostForm)
		}
		http.SetCookie(w, &http.Cookie{Name: "zeit_sso_201501", Value: "ok", Path: "/"})
	}))
	defer server.Close()

	portal := testutil.NewPortal(t)
	cfg := portal.Config()
	cfg.LoginURL = server.URL + "/anmelden"

	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer c.Close()

	if err := c.Login(context.Background(), "reader@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if posted != "from-cookie" {
		t.Errorf("Expected CSRF token from cookie to be posted, got %q", posted)
	}
}

func TestClient_Login_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(testutil.GenerateLoginPageHTML("t")))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	portal := testutil.NewPortal(t)
	cfg := portal.Config()
	cfg.LoginURL = server.URL + "/anmelden"
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer c.Close()

	err = c.Login(context.Background(), "reader@example.com", "secret")
	if !errors.Is(err, &apperrors.ErrUnexpectedStatus{}) {
		t.Fatalf("Expected ErrUnexpectedStatus, got %v", err)
	}
	if apperrors.IsFatal(err) {
		t.Error("A portal outage should not be reported as an authentication failure")
	}
}

func TestClient_ListReleases(t *testing.T) {
	portal := testutil.NewPortal(t)
	portal.Releases = []string{"01.04.2024", "25.03.2024", "18.03.2024"}
	c := loggedInClient(t, portal)

	releases, err := c.ListReleases(context.Background())
	if err != nil {
		t.Fatalf("ListReleases failed: %v", err)
	}
	if len(releases) != len(portal.Releases) {
		t.Fatalf("Expected %d releases, got %d", len(portal.Releases), len(releases))
	}
	for i, release := range releases {
		if release.Label != portal.Releases[i] {
			t.Errorf("Release %d: expected %q, got %q", i, portal.Releases[i], release.Label)
		}
		if !release.Valid() {
			t.Errorf("Release %d: expected a parsed date", i)
		}
	}
}

func TestClient_ListReleases_Unauthenticated(t *testing.T) {
	portal := testutil.NewPortal(t)
	portal.Releases = []string{"01.04.2024"}
	c := newTestClient(t, portal)

	_, err := c.ListReleases(context.Background())
	if !errors.Is(err, &apperrors.ErrAuthentication{}) {
		t.Fatalf("Expected ErrAuthentication after redirect to login, got %v", err)
	}
}

func TestClient_LocateRelease(t *testing.T) {
	tests := []struct {
		name          string
		target        models.ReleaseTarget
		expectedLabel string
		expectedErr   error
		listingCalls  int
	}{
		{"newest", models.ReleaseTarget{Offset: 0}, "01.04.2024", nil, 1},
		{"one back", models.ReleaseTarget{Offset: 1}, "25.03.2024", nil, 1},
		{"beyond listing", models.ReleaseTarget{Offset: 4}, "", &apperrors.ErrNoRelease{}, 1},
		{"absolute date", models.ReleaseTarget{Date: "11.03.2024"}, "11.03.2024", nil, 0},
		{"invalid absolute date", models.ReleaseTarget{Date: "99.99.9999"}, "", &apperrors.ErrInvalidDate{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal := testutil.NewPortal(t)
			portal.Releases = []string{"01.04.2024", "25.03.2024"}
			c := loggedInClient(t, portal)

			release, err := c.LocateRelease(context.Background(), tt.target)
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("Expected %T, got %v", tt.expectedErr, err)
				}
			} else if err != nil {
				t.Fatalf("LocateRelease failed: %v", err)
			}
			if release.Label != tt.expectedLabel {
				t.Errorf("Expected release %q, got %q", tt.expectedLabel, release.Label)
			}
			if got := portal.CountRequests(testutil.PortalListingPath); got != tt.listingCalls {
				t.Errorf("Expected %d listing requests, got %d", tt.listingCalls, got)
			}
		})
	}
}

func TestClient_LocateRelease_FullListing(t *testing.T) {
	listing := []string{
		"01.04.2024", "25.03.2024", "18.03.2024", "11.03.2024",
		"04.03.2024", "26.02.2024", "19.02.2024",
	}
	portal := testutil.NewPortal(t)
	portal.Releases = listing
	c := loggedInClient(t, portal)

	for offset := 0; offset <= models.MaxReleaseOffset; offset++ {
		release, err := c.LocateRelease(context.Background(), models.ReleaseTarget{Offset: offset})
		if err != nil {
			t.Fatalf("LocateRelease(%d) failed: %v", offset, err)
		}
		if release.Label != listing[offset] {
			t.Errorf("Offset %d: expected %q, got %q", offset, listing[offset], release.Label)
		}
		if release.Filename(models.FormatEPUB) != "die_zeit_"+release.Date.Format("2006-01-02")+".epub" {
			t.Errorf("Offset %d: unexpected filename %q", offset, release.Filename(models.FormatEPUB))
		}
	}
}

func TestClient_LocateRelease_OffsetOutOfRange(t *testing.T) {
	portal := testutil.NewPortal(t)
	c := newTestClient(t, portal)

	for _, offset := range []int{-1, models.MaxReleaseOffset + 1} {
		_, err := c.LocateRelease(context.Background(), models.ReleaseTarget{Offset: offset})
		if err == nil {
			t.Errorf("Expected offset %d to be rejected", offset)
		}
	}
	if len(portal.Requests()) != 0 {
		t.Errorf("Expected no requests, got %v", portal.Requests())
	}
}

func TestClient_OpenRelease(t *testing.T) {
	portal := testutil.NewPortal(t)
	portal.Pages["25.03.2024"] = []testutil.ReleaseLinkOptions{
		{Label: models.FormatPDF.Label(), Href: "https://cdn.example.com/diezeit.pdf"},
		{Label: models.FormatEPUB.Label(), Href: "/abo/diezeit/epub123"},
	}
	c := loggedInClient(t, portal)

	release, _ := models.ParseReleaseDate("25.03.2024")
	page, err := c.OpenRelease(context.Background(), release)
	if err != nil {
		t.Fatalf("OpenRelease failed: %v", err)
	}
	if page.Release.Label != "25.03.2024" {
		t.Errorf("Expected page for 25.03.2024, got %q", page.Release.Label)
	}

	tests := []struct {
		format   models.Format
		expected string
	}{
		{models.FormatPDF, "https://cdn.example.com/diezeit.pdf"},
		{models.FormatEPUB, portal.URL() + "/abo/diezeit/epub123"},
	}
	for _, tt := range tests {
		link, err := page.ResolveLink(tt.format)
		if err != nil {
			t.Errorf("ResolveLink(%s) failed: %v", tt.format, err)
			continue
		}
		if link != tt.expected {
			t.Errorf("ResolveLink(%s) = %q, want %q", tt.format, link, tt.expected)
		}
	}

	if _, err := page.ResolveLink(models.FormatMOBI); !errors.Is(err, &apperrors.ErrLinkNotFound{}) {
		t.Errorf("Expected ErrLinkNotFound for mobi, got %v", err)
	}
}

func TestClient_OpenRelease_NoEdition(t *testing.T) {
	portal := testutil.NewPortal(t)
	portal.Releases = []string{"01.04.2024"}
	c := loggedInClient(t, portal)

	release, _ := models.ParseReleaseDate("02.04.2024")
	_, err := c.OpenRelease(context.Background(), release)

	var noRelease *apperrors.ErrNoRelease
	if !errors.As(err, &noRelease) {
		t.Fatalf("Expected ErrNoRelease, got %v", err)
	}
	if noRelease.Date != "02.04.2024" {
		t.Errorf("Expected date 02.04.2024 in error, got %q", noRelease.Date)
	}
}

func TestClient_DownloadEdition(t *testing.T) {
	content := []byte("PK\x03\x04 epub payload")
	portal := testutil.NewPortal(t)
	portal.Editions["/files/epub123"] = testutil.Edition{Content: content, ContentType: "application/epub+zip"}
	portal.Editions["/files/broken"] = testutil.Edition{Status: http.StatusInternalServerError}
	c := loggedInClient(t, portal)
	ctx := context.Background()

	t.Run("full download", func(t *testing.T) {
		download, err := c.DownloadEdition(ctx, portal.URL()+"/files/epub123", "")
		if err != nil {
			t.Fatalf("DownloadEdition failed: %v", err)
		}
		defer download.Body.Close()

		if download.NotModified {
			t.Error("Expected a full response")
		}
		if download.ContentType != "application/epub+zip" {
			t.Errorf("Expected content type application/epub+zip, got %q", download.ContentType)
		}
		body, err := io.ReadAll(download.Body)
		if err != nil {
			t.Fatalf("Failed to read body: %v", err)
		}
		if string(body) != string(content) {
			t.Errorf("Expected body %q, got %q", content, body)
		}
	})

	t.Run("matching checksum", func(t *testing.T) {
		download, err := c.DownloadEdition(ctx, portal.URL()+"/files/epub123", testutil.ETag(content))
		if err != nil {
			t.Fatalf("DownloadEdition failed: %v", err)
		}
		if !download.NotModified {
			t.Error("Expected NotModified for a matching checksum")
		}
		if download.Body != nil {
			t.Error("Expected no body for a 304 response")
		}
	})

	t.Run("stale checksum", func(t *testing.T) {
		download, err := c.DownloadEdition(ctx, portal.URL()+"/files/epub123", `"0000"`)
		if err != nil {
			t.Fatalf("DownloadEdition failed: %v", err)
		}
		defer download.Body.Close()
		if download.NotModified {
			t.Error("Expected a full response for a stale checksum")
		}
	})

	t.Run("server error", func(t *testing.T) {
		_, err := c.DownloadEdition(ctx, portal.URL()+"/files/broken", "")
		var statusErr *apperrors.ErrUnexpectedStatus
		if !errors.As(err, &statusErr) {
			t.Fatalf("Expected ErrUnexpectedStatus, got %v", err)
		}
		if statusErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", statusErr.StatusCode)
		}
	})
}

func TestClient_DownloadEdition_ContextCanceled(t *testing.T) {
	portal := testutil.NewPortal(t)
	portal.Editions["/files/epub123"] = testutil.Edition{Content: []byte("x")}
	c := loggedInClient(t, portal)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.DownloadEdition(ctx, portal.URL()+"/files/epub123", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
