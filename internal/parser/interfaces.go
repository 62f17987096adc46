package parser

import (
	"io"

	"github.com/PuerkitoBio/goquery"

	"github.com/Belphemur/ZeitDownloader/internal/models"
)

// Parser defines a generic interface for parsing HTML content into a list
type Parser[T any] interface {
	ParseHtml(body io.Reader) ([]T, error)
}

// SingleResultParser defines a generic interface for parsing HTML content into one value
type SingleResultParser[T any] interface {
	ParseHtml(body io.Reader) (T, error)
}

// LinkLookup finds the download link of a format on a parsed release page.
// Implementations return the raw href as found in the markup, or an
// *apperrors.ErrLinkNotFound when nothing matches.
type LinkLookup interface {
	FindLink(doc *goquery.Document, format models.Format) (string, error)
}
