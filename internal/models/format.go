package models

import "strings"

// Format represents one distributable file type of a release
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatEPUB
	FormatMOBI
)

// AllFormats lists the formats in the order they are processed
var AllFormats = []Format{FormatPDF, FormatEPUB, FormatMOBI}

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatEPUB:
		return "epub"
	case FormatMOBI:
		return "mobi"
	default:
		return "unknown"
	}
}

// Extension returns the file extension used for output files, without the dot
func (f Format) Extension() string {
	return f.String()
}

// Label returns the button text the portal shows for the format's download link
func (f Format) Label() string {
	switch f {
	case FormatPDF:
		return "GESAMT-PDF LADEN"
	case FormatEPUB:
		return "EPUB FÜR E-READER LADEN"
	case FormatMOBI:
		return "MOBI FÜR KINDLE LADEN"
	default:
		return ""
	}
}

// SupportsConditionalRequest reports whether the portal answers If-None-Match
// reliably for this format. The full-page PDF is always re-sent.
func (f Format) SupportsConditionalRequest() bool {
	return f == FormatEPUB || f == FormatMOBI
}

// ParseFormat converts a format string to Format enum
func ParseFormat(formatStr string) Format {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(formatStr), ".")) {
	case "pdf":
		return FormatPDF
	case "epub":
		return FormatEPUB
	case "mobi":
		return FormatMOBI
	default:
		return FormatUnknown
	}
}

// MarshalText implements encoding.TextMarshaler
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Format) UnmarshalText(data []byte) error {
	*f = ParseFormat(string(data))
	return nil
}
