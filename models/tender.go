package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

// TenderStatus represents the lifecycle status of a tender
type TenderStatus string

const (
	TenderStatusNew     TenderStatus = "new"
	TenderStatusViewed  TenderStatus = "viewed"
	TenderStatusSaved   TenderStatus = "saved"
	TenderStatusExpired TenderStatus = "expired"
)

// String returns the string representation of the status
func (s TenderStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s TenderStatus) Valid() bool {
	switch s {
	case TenderStatusNew, TenderStatusViewed, TenderStatusSaved, TenderStatusExpired:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TenderStatus
func (s *TenderStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = TenderStatus(v)
	case []byte:
		*s = TenderStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TenderStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for TenderStatus
func (s TenderStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid TenderStatus: %s", s)
	}
	return string(s), nil
}

// Tender represents a persisted procurement notice. A tender is keyed by
// (reference_id, source_id); that pair is unique among non-deleted rows.
type Tender struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_tenders_uuid" json:"uuid"`

	Title       string  `gorm:"size:500;not null;index:idx_tenders_title" json:"title"`
	ReferenceID string  `gorm:"size:255;not null;index:idx_tenders_reference_id" json:"reference_id"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	AgencyName     *string `gorm:"size:255;index:idx_tenders_agency_name" json:"agency_name,omitempty"`
	AgencyLocation *string `gorm:"size:255" json:"agency_location,omitempty"`

	PublishedDate *time.Time `gorm:"type:date;index:idx_tenders_published_date" json:"published_date,omitempty"`
	DeadlineDate  *time.Time `gorm:"type:date;index:idx_tenders_deadline_date" json:"deadline_date,omitempty"`

	SourceID  uint    `gorm:"not null;index:idx_tenders_source_id" json:"source_id"`
	SourceURL *string `gorm:"size:1000" json:"source_url,omitempty"`

	Status TenderStatus `gorm:"size:50;not null;default:'new';index:idx_tenders_status" json:"status"`

	Attachments  pq.StringArray `gorm:"type:text[]" json:"attachments,omitempty"`
	DocumentText *string        `gorm:"type:text" json:"document_text,omitempty"`

	// Change detection
	ContentHash string `gorm:"size:64;index:idx_tenders_content_hash" json:"content_hash"`
	Version     int    `gorm:"not null;default:1" json:"version"`

	// Keyword matching
	IsMatched         bool          `gorm:"not null;default:false;index:idx_tenders_is_matched" json:"is_matched"`
	MatchedKeywordIDs pq.Int64Array `gorm:"type:bigint[]" json:"matched_keyword_ids,omitempty"`
	KeywordMatchCount int           `gorm:"not null;default:0" json:"keyword_match_count"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_tenders_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	IsDeleted bool       `gorm:"not null;default:false" json:"is_deleted"`

	// Relations
	Source         *Source              `gorm:"foreignKey:SourceID;references:ID" json:"source,omitempty"`
	KeywordMatches []TenderKeywordMatch `gorm:"foreignKey:TenderID;constraint:OnDelete:CASCADE" json:"keyword_matches,omitempty"`
	Notifications  []Notification       `gorm:"foreignKey:TenderID" json:"notifications,omitempty"`
}

// TableName returns the table name for the model
func (Tender) TableName() string {
	return "tenders"
}

// BeforeCreate is called before creating a new record
func (t *Tender) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TenderStatusNew
	}
	if t.Version == 0 {
		t.Version = 1
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (t *Tender) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	t.UpdatedAt = &now
	return nil
}

// DaysUntilDeadline returns the number of days until the deadline, or nil if
// no deadline is set.
func (t *Tender) DaysUntilDeadline() *int {
	if t.DeadlineDate == nil {
		return nil
	}
	days := int(t.DeadlineDate.Sub(utils.UTCNow().Truncate(24*time.Hour)).Hours() / 24)
	return &days
}

// IsExpired reports whether the tender's deadline has passed
func (t *Tender) IsExpired() bool {
	if t.DeadlineDate == nil {
		return false
	}
	return t.DeadlineDate.Before(utils.UTCNow().Truncate(24 * time.Hour))
}

// DescriptionText returns the description or an empty string
func (t *Tender) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// TenderFilter represents filter criteria for tenders
type TenderFilter struct {
	ID             *uint         `json:"id,omitempty"`
	UUID           *uuid.UUID    `json:"uuid,omitempty"`
	ReferenceID    *string       `json:"reference_id,omitempty"`
	SourceID       *uint         `json:"source_id,omitempty"`
	Status         *TenderStatus `json:"status,omitempty"`
	IsMatched      *bool         `json:"is_matched,omitempty"`
	IsDeleted      *bool         `json:"is_deleted,omitempty"`
	DeadlineAfter  *time.Time    `json:"deadline_after,omitempty"`
	DeadlineBefore *time.Time    `json:"deadline_before,omitempty"`
	CreatedAfter   *time.Time    `json:"created_after,omitempty"`
	CreatedBefore  *time.Time    `json:"created_before,omitempty"`
	MaxMatchCount  *int          `json:"max_match_count,omitempty"`
}
