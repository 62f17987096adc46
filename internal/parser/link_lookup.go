package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/config"
	"github.com/Belphemur/ZeitDownloader/internal/models"
)

const (
	LookupLabel    = "label"
	LookupSelector = "selector"
)

// LabelLinkLookup finds the anchor whose visible text contains the format's button label.
type LabelLinkLookup struct{}

// NewLabelLinkLookup creates a lookup matching on the portal's localized button labels
func NewLabelLinkLookup() *LabelLinkLookup {
	return &LabelLinkLookup{}
}

// FindLink returns the href of the first anchor labelled for format.
// Text is compared after NFC normalization, German upper-casing and
// whitespace collapsing, so "Epub für\n e-Reader laden" still matches.
func (l *LabelLinkLookup) FindLink(doc *goquery.Document, format models.Format) (string, error) {
	logger := config.GetLogger()
	label := format.Label()
	if label == "" {
		return "", apperrors.NewLinkNotFoundError(format.String(), "")
	}
	want := normalizeLabel(label)

	var href string
	doc.Find("a").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if !strings.Contains(normalizeLabel(a.Text()), want) {
			return true
		}
		value, exists := a.Attr("href")
		if !exists || strings.TrimSpace(value) == "" {
			logger.Debug().Int("anchor", i).Str("format", format.String()).Msg("Labelled anchor has no href, continuing")
			return true
		}
		href = strings.TrimSpace(value)
		return false
	})

	if href == "" {
		return "", apperrors.NewLinkNotFoundError(format.String(), label)
	}
	return href, nil
}

func normalizeLabel(s string) string {
	upper := cases.Upper(language.German).String(norm.NFC.String(s))
	return strings.Join(strings.Fields(upper), " ")
}

// SelectorLinkLookup finds the download link with a CSS selector per format.
type SelectorLinkLookup struct {
	selectors map[models.Format]string
}

// NewSelectorLinkLookup creates a lookup from format name to CSS selector, e.g. {"epub": "a.epub"}
func NewSelectorLinkLookup(selectors map[string]string) (*SelectorLinkLookup, error) {
	parsed := make(map[models.Format]string, len(selectors))
	for name, selector := range selectors {
		format := models.ParseFormat(name)
		if format == models.FormatUnknown {
			return nil, fmt.Errorf("unknown format %q in link selectors", name)
		}
		parsed[format] = selector
	}
	return &SelectorLinkLookup{selectors: parsed}, nil
}

// FindLink returns the href of the first element matching the format's selector.
func (l *SelectorLinkLookup) FindLink(doc *goquery.Document, format models.Format) (string, error) {
	selector, ok := l.selectors[format]
	if !ok || selector == "" {
		return "", apperrors.NewLinkNotFoundError(format.String(), "")
	}

	var href string
	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		value, exists := s.Attr("href")
		href = strings.TrimSpace(value)
		return !exists || href == ""
	})

	if href == "" {
		return "", apperrors.NewLinkNotFoundError(format.String(), "")
	}
	return href, nil
}

// NewLinkLookup builds the lookup named by kind ("label" or "selector").
func NewLinkLookup(kind string, selectors map[string]string) (LinkLookup, error) {
	switch strings.ToLower(kind) {
	case "", LookupLabel:
		return NewLabelLinkLookup(), nil
	case LookupSelector:
		return NewSelectorLinkLookup(selectors)
	default:
		return nil, fmt.Errorf("unknown link lookup %q (expected %q or %q)", kind, LookupLabel, LookupSelector)
	}
}
