package parser

import (
	"io"

	"golang.org/x/net/html/charset"
)

// NewUTF8Reader wraps an io.Reader with character encoding detection and conversion to UTF-8.
// The portal serves German markup; labels such as "EPUB FÜR E-READER LADEN" only match
// once the page is decoded, whatever encoding it was sent in.
//
// contentType is the response Content-Type header and may be empty. The charset is
// taken from its charset parameter, then from <meta> tags, byte order marks and
// finally heuristics.
func NewUTF8Reader(body io.Reader, contentType string) (io.Reader, error) {
	return charset.NewReader(body, contentType)
}
