package businessflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tenderintel/tender-intel/app/scraper"
	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/utils"
)

func TestComputeHashIsStableAndSensitive(t *testing.T) {
	d := NewChangeDetector()

	h1 := d.ComputeHash("Road works", "Resurfacing of Main St")
	h2 := d.ComputeHash("Road works", "Resurfacing of Main St")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	assert.NotEqual(t, h1, d.ComputeHash("Road works", "Resurfacing of Elm St"))
	// The raw concatenation is hashed, so whitespace differences count.
	assert.NotEqual(t, h1, d.ComputeHash("Road works ", "Resurfacing of Main St"))
}

func TestHasChanged(t *testing.T) {
	d := NewChangeDetector()
	tender := &models.Tender{
		Title:       "Road works",
		Description: utils.ToPtr("Resurfacing of Main St"),
	}
	tender.ContentHash = d.ComputeHash(tender.Title, tender.DescriptionText())

	assert.False(t, d.HasChanged(tender, scraper.RawTenderRecord{
		Title:       "Road works",
		Description: utils.ToPtr("Resurfacing of Main St"),
	}))
	assert.True(t, d.HasChanged(tender, scraper.RawTenderRecord{
		Title:       "Road works phase II",
		Description: utils.ToPtr("Resurfacing of Main St"),
	}))

	// A record missing the description falls back to the stored value
	// instead of registering a change.
	assert.False(t, d.HasChanged(tender, scraper.RawTenderRecord{Title: "Road works"}))
}

func TestDetectFieldChanges(t *testing.T) {
	d := NewChangeDetector()
	oldDeadline := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	newDeadline := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	tender := &models.Tender{
		Title:        "Road works",
		Description:  utils.ToPtr("Resurfacing of Main St"),
		AgencyName:   utils.ToPtr("City of Springfield"),
		DeadlineDate: &oldDeadline,
	}

	changes := d.DetectFieldChanges(tender, scraper.RawTenderRecord{
		Title:        "Road works phase II",
		Description:  utils.ToPtr("Resurfacing of Main St"),
		AgencyName:   utils.ToPtr("Springfield Public Works"),
		DeadlineDate: &newDeadline,
	})

	assert.Len(t, changes, 3)
	assert.Equal(t, FieldChange{Old: "Road works", New: "Road works phase II"}, changes[FieldTitle])
	assert.Equal(t, FieldChange{Old: "2026-09-15", New: "2026-09-30"}, changes[FieldDeadlineDate])
	assert.Equal(t, FieldChange{Old: "City of Springfield", New: "Springfield Public Works"}, changes[FieldAgencyName])
	assert.NotContains(t, changes, FieldDescription)
}

func TestDetectFieldChangesIgnoresAbsentFields(t *testing.T) {
	d := NewChangeDetector()
	tender := &models.Tender{
		Title:      "Road works",
		AgencyName: utils.ToPtr("City of Springfield"),
	}

	changes := d.DetectFieldChanges(tender, scraper.RawTenderRecord{Title: "Road works"})
	assert.Empty(t, changes)
}

func TestShouldNotify(t *testing.T) {
	d := NewChangeDetector()

	assert.True(t, d.ShouldNotify(map[string]FieldChange{FieldDeadlineDate: {}}))
	assert.True(t, d.ShouldNotify(map[string]FieldChange{FieldTitle: {}}))
	assert.False(t, d.ShouldNotify(map[string]FieldChange{FieldAgencyName: {}}))
	assert.False(t, d.ShouldNotify(map[string]FieldChange{FieldAgencyLocation: {}, FieldDescription: {}}))
	assert.False(t, d.ShouldNotify(nil))
}
