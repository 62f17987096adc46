package testutil

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Belphemur/ZeitDownloader/internal/config"
)

const (
	PortalLoginPath   = "/anmelden"
	PortalListingPath = "/abo/diezeit"
	portalCookieName  = "zeit_sso_201501"
)

// Edition is a downloadable file served by the fake portal
type Edition struct {
	Content           []byte
	ContentType       string
	Status            int  // Forces a status code when non-zero
	IgnoreConditional bool // Always answer 200, like the portal does for the PDF
}

// Portal is an httptest server imitating the e-paper portal: login form,
// listing page, release pages and edition downloads.
// Configure the exported fields before issuing requests.
type Portal struct {
	Server *httptest.Server

	Email       string
	Password    string
	CSRFToken   string
	SetSession  bool // When false, logins never set the session cookie
	Releases    []string
	Pages       map[string][]ReleaseLinkOptions // release label -> download buttons
	Editions    map[string]Edition              // request path -> file
	ListingBody string                          // Overrides the generated listing page when set

	mu       sync.Mutex
	requests []string
}

// NewPortal starts a fake portal that is closed when the test ends
func NewPortal(t *testing.T) *Portal {
	t.Helper()
	p := &Portal{
		Email:      "reader@example.com",
		Password:   "secret",
		CSRFToken:  "csrf-123",
		SetSession: true,
		Pages:      make(map[string][]ReleaseLinkOptions),
		Editions:   make(map[string]Edition),
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serveHTTP))
	t.Cleanup(p.Server.Close)
	return p
}

// URL returns the base URL of the portal
func (p *Portal) URL() string {
	return p.Server.URL
}

// Config returns a client configuration pointing at the portal
func (p *Portal) Config() *config.Config {
	cfg := &config.Config{
		Email:           p.Email,
		Password:        p.Password,
		LoginURL:        p.Server.URL + PortalLoginPath,
		PortalURL:       p.Server.URL,
		ListingPath:     PortalListingPath,
		ReturnURL:       p.Server.URL + "/index",
		SessionCookie:   portalCookieName,
		ClientTimeout:   "10s",
		DownloadTimeout: "10s",
		UserAgent:       "zeit-test",
		LinkLookup:      "label",
	}
	cfg.Cache.Provider = "memory"
	cfg.Cache.Size = 16
	cfg.Cache.TTL = "1h"
	return cfg
}

// Requests returns every request seen so far as "METHOD /path"
func (p *Portal) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// CountRequests returns how many requests hit path, any method
func (p *Portal) CountRequests(path string) int {
	count := 0
	for _, r := range p.Requests() {
		if strings.HasSuffix(r, " "+path) {
			count++
		}
	}
	return count
}

// ETag returns the entity tag the portal accepts for content
func ETag(content []byte) string {
	return fmt.Sprintf(`"%s"`, MD5Hex(content))
}

// MD5Hex returns the hex-encoded MD5 digest of content
func MD5Hex(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

func (p *Portal) serveHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r.Method+" "+r.URL.Path)
	p.mu.Unlock()

	if _, ok := p.Editions[r.URL.Path]; ok {
		p.serveEdition(w, r)
		return
	}

	switch {
	case r.URL.Path == PortalLoginPath:
		p.serveLogin(w, r)
	case r.URL.Path == PortalListingPath:
		if !p.authenticated(r) {
			http.Redirect(w, r, PortalLoginPath, http.StatusFound)
			return
		}
		body := p.ListingBody
		if body == "" {
			body = GenerateListingHTML(p.Releases)
		}
		writeHTML(w, body)
	case strings.HasPrefix(r.URL.Path, PortalListingPath+"/"):
		if !p.authenticated(r) {
			http.Redirect(w, r, PortalLoginPath, http.StatusFound)
			return
		}
		label := strings.TrimPrefix(r.URL.Path, PortalListingPath+"/")
		links, ok := p.Pages[label]
		if !ok {
			// The portal sends unknown dates back to the overview
			http.Redirect(w, r, PortalListingPath, http.StatusFound)
			return
		}
		writeHTML(w, GenerateReleasePageHTML(label, links))
	default:
		p.serveEdition(w, r)
	}
}

func (p *Portal) serveLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: p.CSRFToken, Path: "/"})
		writeHTML(w, GenerateLoginPageHTML(p.CSRFToken))
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	valid := r.PostForm.Get("email") == p.Email &&
		r.PostForm.Get("pass") == p.Password &&
		r.PostForm.Get("csrf_token") == p.CSRFToken &&
		r.Header.Get("Origin") != ""
	if valid && p.SetSession {
		http.SetCookie(w, &http.Cookie{Name: portalCookieName, Value: "session-" + p.Email, Path: "/"})
	}
	writeHTML(w, "<html><body>Willkommen</body></html>")
}

func (p *Portal) serveEdition(w http.ResponseWriter, r *http.Request) {
	edition, ok := p.Editions[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !p.authenticated(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if edition.Status != 0 {
		w.WriteHeader(edition.Status)
		return
	}

	etag := ETag(edition.Content)
	if !edition.IgnoreConditional && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	contentType := edition.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(edition.Content)
}

func (p *Portal) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(portalCookieName)
	return err == nil && cookie.Value != ""
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
