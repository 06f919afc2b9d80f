package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

// SourceStatus represents the operational status of a source
type SourceStatus string

const (
	SourceStatusActive   SourceStatus = "active"
	SourceStatusWarning  SourceStatus = "warning"
	SourceStatusError    SourceStatus = "error"
	SourceStatusDisabled SourceStatus = "disabled"
)

// String returns the string representation of the status
func (s SourceStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SourceStatus) Valid() bool {
	switch s {
	case SourceStatusActive, SourceStatusWarning, SourceStatusError, SourceStatusDisabled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SourceStatus
func (s *SourceStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = SourceStatus(v)
	case []byte:
		*s = SourceStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SourceStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for SourceStatus
func (s SourceStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SourceStatus: %s", s)
	}
	return string(s), nil
}

// LoginType indicates whether a source requires authentication before scraping
type LoginType string

const (
	LoginTypePublic   LoginType = "public"
	LoginTypeRequired LoginType = "required"
)

// ScraperType selects the scraper implementation used for a source
type ScraperType string

const (
	ScraperTypeHTML   ScraperType = "html"
	ScraperTypePDF    ScraperType = "pdf"
	ScraperTypePortal ScraperType = "portal"
)

// SelectorConfig holds the CSS selectors and parsing rules for a source
type SelectorConfig struct {
	ListItem    string `json:"list_item,omitempty"`
	Title       string `json:"title,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	Agency      string `json:"agency,omitempty"`
	Location    string `json:"location,omitempty"`
	Published   string `json:"published,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	Link        string `json:"link,omitempty"`
	Attachment  string `json:"attachment,omitempty"`
	MaxPages    int    `json:"max_pages,omitempty"`
}

// Value implements the driver.Valuer interface for SelectorConfig
func (c SelectorConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for SelectorConfig
func (c *SelectorConfig) Scan(value any) error {
	if value == nil {
		*c = SelectorConfig{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SelectorConfig", value)
	}
	return json.Unmarshal(bytes, c)
}

// Source represents an external procurement portal that tenders are fetched from
type Source struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null;index:idx_sources_name" json:"name"`
	URL         string `gorm:"size:1000;not null" json:"url"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	LoginType         LoginType `gorm:"size:20;not null;default:'public'" json:"login_type"`
	LoginURL          *string   `gorm:"size:1000" json:"login_url,omitempty"`
	Username          *string   `gorm:"size:255" json:"username,omitempty"`
	EncryptedPassword *string   `gorm:"type:text" json:"-"`

	ScraperType ScraperType    `gorm:"size:50;not null;default:'html'" json:"scraper_type"`
	Selectors   SelectorConfig `gorm:"type:jsonb" json:"selectors"`

	IsActive bool         `gorm:"not null;default:true;index:idx_sources_is_active" json:"is_active"`
	Status   SourceStatus `gorm:"size:20;not null;default:'active';index:idx_sources_status" json:"status"`

	TotalTenders  int        `gorm:"not null;default:0" json:"total_tenders"`
	LastFetchAt   *time.Time `json:"last_fetch_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Health    *SourceHealth `gorm:"foreignKey:SourceID" json:"health,omitempty"`
	Tenders   []Tender      `gorm:"foreignKey:SourceID" json:"tenders,omitempty"`
	FetchRuns []FetchRun    `gorm:"foreignKey:SourceID" json:"fetch_runs,omitempty"`
}

// TableName returns the table name for the model
func (Source) TableName() string {
	return "sources"
}

// BeforeCreate is called before creating a new record
func (s *Source) BeforeCreate(tx *gorm.DB) error {
	if s.LoginType == "" {
		s.LoginType = LoginTypePublic
	}
	if s.ScraperType == "" {
		s.ScraperType = ScraperTypeHTML
	}
	if s.Status == "" {
		s.Status = SourceStatusActive
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (s *Source) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	s.UpdatedAt = &now
	return nil
}

// SourceFilter represents filter criteria for sources
type SourceFilter struct {
	ID          *uint        `json:"id,omitempty"`
	Name        *string      `json:"name,omitempty"`
	IsActive    *bool        `json:"is_active,omitempty"`
	ScraperType *ScraperType `json:"scraper_type,omitempty"`
}

// SourceHealth tracks the consecutive-failure count and derived status of a
// source. One row exists per source for the source's lifetime.
type SourceHealth struct {
	ID                  uint         `gorm:"primaryKey" json:"id"`
	SourceID            uint         `gorm:"not null;uniqueIndex:uk_source_health_source_id" json:"source_id"`
	ConsecutiveFailures int          `gorm:"not null;default:0" json:"consecutive_failures"`
	Status              SourceStatus `gorm:"size:20;not null;default:'active'" json:"status"`
	LastSuccessAt       *time.Time   `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time   `json:"last_failure_at,omitempty"`
	LastError           *string      `gorm:"type:text" json:"last_error,omitempty"`
	UpdatedAt           *time.Time   `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (SourceHealth) TableName() string {
	return "source_health"
}

// BeforeCreate is called before creating a new record
func (h *SourceHealth) BeforeCreate(tx *gorm.DB) error {
	if h.Status == "" {
		h.Status = SourceStatusActive
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (h *SourceHealth) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	h.UpdatedAt = &now
	return nil
}

// SourceHealthFilter represents filter criteria for source health rows
type SourceHealthFilter struct {
	ID       *uint         `json:"id,omitempty"`
	SourceID *uint         `json:"source_id,omitempty"`
	Status   *SourceStatus `json:"status,omitempty"`
}
