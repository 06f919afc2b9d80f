// Package scraper fetches raw tender records from external procurement
// portals. Implementations own their timeout and retry policy; callers
// consume records and errors opaquely.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tenderintel/tender-intel/models"
)

// RawTenderRecord is the scraper output for a single notice. It is ephemeral:
// owned by the scraper call and consumed once by the ingestion pipeline.
type RawTenderRecord struct {
	Title          string     `validate:"required,max=500"`
	ReferenceID    string     `validate:"required,max=255"`
	Description    *string    `validate:"omitempty"`
	AgencyName     *string    `validate:"omitempty,max=255"`
	AgencyLocation *string    `validate:"omitempty,max=255"`
	PublishedDate  *time.Time `validate:"omitempty"`
	DeadlineDate   *time.Time `validate:"omitempty"`
	SourceURL      *string    `validate:"omitempty,max=1000"`
	Attachments    []string   `validate:"omitempty,dive,max=1000"`
	DocumentText   *string    `validate:"omitempty"`
}

// ErrorKind classifies scrape failures. Transient kinds are retried by the
// scraper itself; the exhausted error surfaces to the orchestrator.
type ErrorKind string

const (
	ErrorKindNetwork   ErrorKind = "network"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindAuth      ErrorKind = "auth"
	ErrorKindParse     ErrorKind = "parse"
	ErrorKindCancelled ErrorKind = "cancelled"
)

// Transient reports whether a failure of this kind is worth retrying
func (k ErrorKind) Transient() bool {
	return k == ErrorKindNetwork || k == ErrorKindTimeout
}

// ScrapeError is a classified source-level failure
type ScrapeError struct {
	Kind ErrorKind
	Err  error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape failed (%s): %v", e.Kind, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError wraps err with a failure classification
func NewScrapeError(kind ErrorKind, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, Err: err}
}

// KindOf extracts the classification from an error chain, defaulting to
// network for unclassified failures.
func KindOf(err error) ErrorKind {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindCancelled
	}
	return ErrorKindNetwork
}

// Scraper pulls raw tender records from one source
type Scraper interface {
	FetchRecords(ctx context.Context, source *models.Source) ([]RawTenderRecord, error)
}

// Options configures scraper construction
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	MaxAttempts int
}

// ForSource returns the scraper implementation for the source's type. Portal
// and PDF sources fall back to the HTML scraper until dedicated
// implementations exist, mirroring the default the sources were created with.
func ForSource(source *models.Source, opts Options) Scraper {
	switch source.ScraperType {
	case models.ScraperTypeHTML, models.ScraperTypePDF, models.ScraperTypePortal:
		return NewHTMLScraper(opts)
	default:
		return NewHTMLScraper(opts)
	}
}
