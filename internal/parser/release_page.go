package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Belphemur/ZeitDownloader/internal/models"
)

// ReleasePage is the parsed page of one release, ready for link lookups
type ReleasePage struct {
	Release models.Release
	baseURL *url.URL
	doc     *goquery.Document
	lookup  LinkLookup
}

// NewReleasePage parses body as the page of release. Relative links are
// resolved against baseURL, the portal origin.
func NewReleasePage(body io.Reader, release models.Release, baseURL *url.URL, lookup LinkLookup) (*ReleasePage, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if lookup == nil {
		lookup = NewLabelLinkLookup()
	}
	return &ReleasePage{
		Release: release,
		baseURL: baseURL,
		doc:     doc,
		lookup:  lookup,
	}, nil
}

// ResolveLink returns the absolute download URL for format.
// Links that do not start with https are taken as relative to the portal origin.
func (p *ReleasePage) ResolveLink(format models.Format) (string, error) {
	href, err := p.lookup.FindLink(p.doc, format)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(href, "https") {
		return href, nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid %s link %q: %w", format, href, err)
	}
	return p.baseURL.ResolveReference(ref).String(), nil
}
