package businessflow

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tenderintel/tender-intel/app/scraper"
	"github.com/tenderintel/tender-intel/models"
)

// Fields on the change watch-list. Only these are reported by
// DetectFieldChanges; title, description, and deadline drive notifications.
const (
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldDeadlineDate   = "deadline_date"
	FieldAgencyName     = "agency_name"
	FieldAgencyLocation = "agency_location"
	FieldStatus         = "status"
)

// FieldChange holds the before/after values of one watched field
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ChangeDetector fingerprints tender content and classifies incoming records
// as unchanged or materially changed.
type ChangeDetector struct{}

func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// ComputeHash fingerprints a tender's content as the SHA-256 of the raw
// title+description concatenation. The concatenation is deliberately not
// normalized: stored hashes from earlier versions of the system depend on
// the raw form, so whitespace drift in source HTML can surface as a change.
func (d *ChangeDetector) ComputeHash(title, description string) string {
	sum := sha256.Sum256([]byte(title + description))
	return hex.EncodeToString(sum[:])
}

// HasChanged reports whether the incoming record's content hash differs from
// the tender's stored hash. Missing incoming fields fall back to the stored
// values so a partial record does not register as a change.
func (d *ChangeDetector) HasChanged(tender *models.Tender, rec scraper.RawTenderRecord) bool {
	title := rec.Title
	if title == "" {
		title = tender.Title
	}
	description := tender.DescriptionText()
	if rec.Description != nil {
		description = *rec.Description
	}
	return d.ComputeHash(title, description) != tender.ContentHash
}

// DetectFieldChanges compares the incoming record against the stored tender
// over the fixed watch-list. A field is reported only when the incoming value
// is present and differs from the stored one.
func (d *ChangeDetector) DetectFieldChanges(tender *models.Tender, rec scraper.RawTenderRecord) map[string]FieldChange {
	changes := make(map[string]FieldChange)

	if rec.Title != "" && rec.Title != tender.Title {
		changes[FieldTitle] = FieldChange{Old: tender.Title, New: rec.Title}
	}
	if rec.Description != nil && *rec.Description != tender.DescriptionText() {
		changes[FieldDescription] = FieldChange{Old: tender.DescriptionText(), New: *rec.Description}
	}
	if rec.DeadlineDate != nil {
		old := ""
		if tender.DeadlineDate != nil {
			old = tender.DeadlineDate.Format("2006-01-02")
		}
		incoming := rec.DeadlineDate.Format("2006-01-02")
		if incoming != old {
			changes[FieldDeadlineDate] = FieldChange{Old: old, New: incoming}
		}
	}
	if rec.AgencyName != nil && !equalPtr(rec.AgencyName, tender.AgencyName) {
		changes[FieldAgencyName] = FieldChange{Old: deref(tender.AgencyName), New: *rec.AgencyName}
	}
	if rec.AgencyLocation != nil && !equalPtr(rec.AgencyLocation, tender.AgencyLocation) {
		changes[FieldAgencyLocation] = FieldChange{Old: deref(tender.AgencyLocation), New: *rec.AgencyLocation}
	}

	return changes
}

// ShouldNotify separates "changed" from "notify-worthy changed": only
// deadline, status, and title changes warrant a notification.
func (d *ChangeDetector) ShouldNotify(changes map[string]FieldChange) bool {
	for _, field := range []string{FieldDeadlineDate, FieldStatus, FieldTitle} {
		if _, ok := changes[field]; ok {
			return true
		}
	}
	return false
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
