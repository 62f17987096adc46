package models

import (
	"io"
	"time"
)

// Outcome tags the result of processing one format
type Outcome int

const (
	OutcomeDownloaded      Outcome = iota // file written from a 200 response
	OutcomeUnchanged                      // server answered 304 to the checksum
	OutcomeSkippedExisting                // file present and not re-requested
	OutcomeNotFound                       // no download link on the release page
	OutcomeFailed                         // HTTP or local I/O error
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeSkippedExisting:
		return "skipped_existing"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsFailure reports whether the outcome should make the run exit non-zero
func (o Outcome) IsFailure() bool {
	return o == OutcomeNotFound || o == OutcomeFailed
}

// EditionDownload is the response to an edition file request.
// Body is nil when NotModified is set; callers must close it otherwise.
type EditionDownload struct {
	Body          io.ReadCloser
	NotModified   bool
	ContentLength int64
	ContentType   string
}

// FormatResult is the outcome of fetching a single format of a release
type FormatResult struct {
	Format  Format
	Outcome Outcome
	Path    string // Local file path, set once the target name is known
	URL     string // Resolved download link, empty when not found
	Bytes   int64  // Bytes written for OutcomeDownloaded
	Err     error  // Cause for OutcomeNotFound and OutcomeFailed
}

// RunReport summarizes a full run
type RunReport struct {
	Release  Release
	Results  []FormatResult
	Started  time.Time
	Finished time.Time
}

// Failed returns the results whose outcome counts as a failure
func (r *RunReport) Failed() []FormatResult {
	var failed []FormatResult
	for _, res := range r.Results {
		if res.Outcome.IsFailure() {
			failed = append(failed, res)
		}
	}
	return failed
}
