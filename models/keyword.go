package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

// KeywordPriority represents the priority level of a keyword
type KeywordPriority string

const (
	KeywordPriorityHigh   KeywordPriority = "high"
	KeywordPriorityMedium KeywordPriority = "medium"
	KeywordPriorityLow    KeywordPriority = "low"
)

// String returns the string representation of the priority
func (p KeywordPriority) String() string {
	return string(p)
}

// Valid checks if the priority is valid
func (p KeywordPriority) Valid() bool {
	switch p {
	case KeywordPriorityHigh, KeywordPriorityMedium, KeywordPriorityLow:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for KeywordPriority
func (p *KeywordPriority) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*p = KeywordPriority(v)
	case []byte:
		*p = KeywordPriority(string(v))
	default:
		return fmt.Errorf("cannot scan %T into KeywordPriority", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for KeywordPriority
func (p KeywordPriority) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid KeywordPriority: %s", p)
	}
	return string(p), nil
}

// Weight returns the base score contribution of the priority
func (p KeywordPriority) Weight() int {
	switch p {
	case KeywordPriorityHigh:
		return 1000
	case KeywordPriorityMedium:
		return 500
	case KeywordPriorityLow:
		return 100
	default:
		return 0
	}
}

// KeywordCategory groups keywords by domain
type KeywordCategory string

const (
	KeywordCategoryIT            KeywordCategory = "Information Technology"
	KeywordCategoryConstruction  KeywordCategory = "Construction"
	KeywordCategoryHealthcare    KeywordCategory = "Healthcare"
	KeywordCategoryEnvironmental KeywordCategory = "Environmental"
	KeywordCategoryServices      KeywordCategory = "Services"
	KeywordCategoryOther         KeywordCategory = "Other"
)

// Keyword represents a curated keyword that tenders are matched against
type Keyword struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Keyword  string          `gorm:"size:255;not null;index:idx_keywords_keyword" json:"keyword"`
	Category KeywordCategory `gorm:"size:50;not null;default:'Other';index:idx_keywords_category" json:"category"`
	Priority KeywordPriority `gorm:"size:20;not null;default:'medium';index:idx_keywords_priority" json:"priority"`

	// Matching behavior
	IsCaseSensitive bool `gorm:"not null;default:false" json:"is_case_sensitive"`
	MatchWholeWord  bool `gorm:"not null;default:false" json:"match_whole_word"`

	// Notification settings
	EnableAlerts bool `gorm:"not null;default:true" json:"enable_alerts"`

	// Statistics
	MatchCount    int        `gorm:"not null;default:0" json:"match_count"`
	LastMatchDate *time.Time `json:"last_match_date,omitempty"`

	IsActive  bool       `gorm:"not null;default:true;index:idx_keywords_is_active" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	TenderMatches []TenderKeywordMatch `gorm:"foreignKey:KeywordID;constraint:OnDelete:CASCADE" json:"tender_matches,omitempty"`
}

// TableName returns the table name for the model
func (Keyword) TableName() string {
	return "keywords"
}

// BeforeCreate is called before creating a new record
func (k *Keyword) BeforeCreate(tx *gorm.DB) error {
	if k.Category == "" {
		k.Category = KeywordCategoryOther
	}
	if k.Priority == "" {
		k.Priority = KeywordPriorityMedium
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (k *Keyword) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	k.UpdatedAt = &now
	return nil
}

// Score computes the keyword's ranking score: the priority weight plus ten
// points per recorded match. Higher scores sort first.
func (k *Keyword) Score() int {
	return k.Priority.Weight() + 10*k.MatchCount
}

// KeywordFilter represents filter criteria for keywords
type KeywordFilter struct {
	ID       *uint            `json:"id,omitempty"`
	Keyword  *string          `json:"keyword,omitempty"`
	Category *KeywordCategory `json:"category,omitempty"`
	Priority *KeywordPriority `json:"priority,omitempty"`
	IsActive *bool            `json:"is_active,omitempty"`
}

// MatchLocation identifies where in a tender's text a keyword matched
type MatchLocation string

const (
	MatchLocationTitle       MatchLocation = "title"
	MatchLocationDescription MatchLocation = "description"
	MatchLocationDocument    MatchLocation = "document"
)

// TenderKeywordMatch records that a keyword matched a tender at a specific
// text location. At most one row exists per (tender_id, keyword_id) pair.
type TenderKeywordMatch struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	TenderID      uint          `gorm:"not null;index:idx_tkm_tender_id;uniqueIndex:uk_tkm_tender_keyword" json:"tender_id"`
	KeywordID     uint          `gorm:"not null;index:idx_tkm_keyword_id;uniqueIndex:uk_tkm_tender_keyword" json:"keyword_id"`
	MatchLocation MatchLocation `gorm:"size:50;not null" json:"match_location"`
	CreatedAt     time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Tender  *Tender  `gorm:"foreignKey:TenderID;references:ID" json:"tender,omitempty"`
	Keyword *Keyword `gorm:"foreignKey:KeywordID;references:ID" json:"keyword,omitempty"`
}

// TableName returns the table name for the model
func (TenderKeywordMatch) TableName() string {
	return "tender_keyword_matches"
}

// BeforeCreate is called before creating a new record
func (m *TenderKeywordMatch) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

// TenderKeywordMatchFilter represents filter criteria for keyword matches
type TenderKeywordMatchFilter struct {
	ID        *uint `json:"id,omitempty"`
	TenderID  *uint `json:"tender_id,omitempty"`
	KeywordID *uint `json:"keyword_id,omitempty"`
}
