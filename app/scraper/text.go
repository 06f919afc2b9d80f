package scraper

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Reference patterns checked in order; the first hit wins
	referencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`[A-Z]{2,}-\d{4,}`),
		regexp.MustCompile(`RFP[-\s]?\d+`),
		regexp.MustCompile(`IFB[-\s]?\d+`),
		regexp.MustCompile(`\d{6,}`),
	}

	dateLayouts = []string{
		"2006-01-02",
		"01/02/2006",
		"02.01.2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		time.RFC3339,
	}
)

// CleanText collapses runs of whitespace and trims the result
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ExtractReferenceID pulls a reference identifier out of free text. When no
// recognized pattern is present it falls back to a stable md5-prefix of the
// text so the same notice always maps to the same reference.
func ExtractReferenceID(text string) string {
	for _, p := range referencePatterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:12]
}

// ParseDate normalizes a scraped date string across common layouts. Returns
// nil when the value does not parse.
func ParseDate(value string) *time.Time {
	value = CleanText(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
