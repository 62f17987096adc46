package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Belphemur/ZeitDownloader/internal/config"
)

// CSRFFieldName is the name of the login form's CSRF token field and cookie
const CSRFFieldName = "csrf_token"

// CSRFTokenParser implements the SingleResultParser interface for the login form
type CSRFTokenParser struct{}

// NewCSRFTokenParser creates a new CSRF token parser instance
func NewCSRFTokenParser() SingleResultParser[string] {
	return &CSRFTokenParser{}
}

// ParseHtml returns the value of the login form's hidden CSRF field, or an
// empty string when the page has none.
func (p *CSRFTokenParser) ParseHtml(body io.Reader) (string, error) {
	logger := config.GetLogger()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse HTML document")
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var token string
	doc.Find(`input[name="` + CSRFFieldName + `"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		value, _ := s.Attr("value")
		token = strings.TrimSpace(value)
		return token == ""
	})

	if token == "" {
		logger.Debug().Msg("No CSRF token field found in login form")
	}
	return token, nil
}
