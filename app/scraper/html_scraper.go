package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tenderintel/tender-intel/models"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// HTMLScraper scrapes tender listings from HTML pages using the source's
// selector configuration.
type HTMLScraper struct {
	client      *http.Client
	userAgent   string
	maxAttempts int
}

// NewHTMLScraper creates an HTML scraper with its own HTTP client. The client
// is owned by the scraper and not shared across sources.
func NewHTMLScraper(opts Options) *HTMLScraper {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTMLScraper{
		client:      &http.Client{Timeout: timeout},
		userAgent:   ua,
		maxAttempts: attempts,
	}
}

// FetchRecords downloads the source's listing pages and extracts raw tender
// records. Transient HTTP failures are retried with exponential backoff;
// exhausted retries surface as a classified ScrapeError.
func (s *HTMLScraper) FetchRecords(ctx context.Context, source *models.Source) ([]RawTenderRecord, error) {
	sel := source.Selectors
	if sel.ListItem == "" {
		return nil, NewScrapeError(ErrorKindParse, fmt.Errorf("source %d has no list_item selector", source.ID))
	}

	maxPages := sel.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var records []RawTenderRecord
	for page := 1; page <= maxPages; page++ {
		doc, err := s.fetchDocument(ctx, pageURL(source.URL, page))
		if err != nil {
			if page > 1 {
				// Later pages are best-effort; keep what we already have.
				break
			}
			return nil, err
		}

		pageRecords := s.extractRecords(doc, source)
		if len(pageRecords) == 0 {
			break
		}
		records = append(records, pageRecords...)
	}

	return records, nil
}

// fetchDocument retrieves and parses one page with bounded retries
func (s *HTMLScraper) fetchDocument(ctx context.Context, u string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return nil, NewScrapeError(ErrorKindCancelled, err)
			}
		}

		doc, err := s.fetchOnce(ctx, u)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if !KindOf(err).Transient() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *HTMLScraper) fetchOnce(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, NewScrapeError(ErrorKindParse, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewScrapeError(ErrorKindCancelled, ctx.Err())
		}
		return nil, NewScrapeError(ErrorKindNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewScrapeError(ErrorKindAuth, fmt.Errorf("status %d from %s", resp.StatusCode, u))
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, NewScrapeError(ErrorKindTimeout, fmt.Errorf("status %d from %s", resp.StatusCode, u))
	case resp.StatusCode != http.StatusOK:
		return nil, NewScrapeError(ErrorKindParse, fmt.Errorf("status %d from %s", resp.StatusCode, u))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, NewScrapeError(ErrorKindParse, err)
	}
	return doc, nil
}

// extractRecords maps listing items to raw records via the selector config
func (s *HTMLScraper) extractRecords(doc *goquery.Document, source *models.Source) []RawTenderRecord {
	sel := source.Selectors
	var records []RawTenderRecord

	doc.Find(sel.ListItem).Each(func(_ int, item *goquery.Selection) {
		title := CleanText(item.Find(sel.Title).First().Text())
		if title == "" {
			return
		}

		rec := RawTenderRecord{Title: title}

		if sel.ReferenceID != "" {
			rec.ReferenceID = CleanText(item.Find(sel.ReferenceID).First().Text())
		}
		if rec.ReferenceID == "" {
			rec.ReferenceID = ExtractReferenceID(title)
		}

		if sel.Description != "" {
			if desc := CleanText(item.Find(sel.Description).First().Text()); desc != "" {
				rec.Description = &desc
			}
		}
		if sel.Agency != "" {
			if agency := CleanText(item.Find(sel.Agency).First().Text()); agency != "" {
				rec.AgencyName = &agency
			}
		}
		if sel.Location != "" {
			if loc := CleanText(item.Find(sel.Location).First().Text()); loc != "" {
				rec.AgencyLocation = &loc
			}
		}
		if sel.Published != "" {
			rec.PublishedDate = ParseDate(item.Find(sel.Published).First().Text())
		}
		if sel.Deadline != "" {
			rec.DeadlineDate = ParseDate(item.Find(sel.Deadline).First().Text())
		}
		if sel.Link != "" {
			if href, ok := item.Find(sel.Link).First().Attr("href"); ok {
				abs := resolveURL(source.URL, href)
				rec.SourceURL = &abs
			}
		}
		if sel.Attachment != "" {
			item.Find(sel.Attachment).Each(func(_ int, a *goquery.Selection) {
				if href, ok := a.Attr("href"); ok {
					rec.Attachments = append(rec.Attachments, resolveURL(source.URL, href))
				}
			})
		}

		records = append(records, rec)
	})

	return records
}

// sleepBackoff waits 2^n seconds, bounded by the context
func sleepBackoff(ctx context.Context, n int) error {
	d := time.Duration(1<<uint(n)) * time.Second
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", base, sep, page)
}

func resolveURL(base, href string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}
