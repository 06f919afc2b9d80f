package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

// FetchRunStatus represents the state of a fetch run. RUNNING is the only
// non-terminal state.
type FetchRunStatus string

const (
	FetchRunStatusRunning FetchRunStatus = "running"
	FetchRunStatusSuccess FetchRunStatus = "success"
	FetchRunStatusFailed  FetchRunStatus = "failed"
)

// String returns the string representation of the status
func (s FetchRunStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s FetchRunStatus) Valid() bool {
	switch s {
	case FetchRunStatusRunning, FetchRunStatusSuccess, FetchRunStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is terminal
func (s FetchRunStatus) IsTerminal() bool {
	return s == FetchRunStatusSuccess || s == FetchRunStatusFailed
}

// Scan implements the sql.Scanner interface for FetchRunStatus
func (s *FetchRunStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = FetchRunStatus(v)
	case []byte:
		*s = FetchRunStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into FetchRunStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for FetchRunStatus
func (s FetchRunStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid FetchRunStatus: %s", s)
	}
	return string(s), nil
}

// FetchRun records one orchestrator invocation for one source
type FetchRun struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_fetch_runs_uuid" json:"uuid"`
	SourceID   uint      `gorm:"not null;index:idx_fetch_runs_source_id" json:"source_id"`
	SourceName string    `gorm:"size:255;index:idx_fetch_runs_source_name" json:"source_name"`

	Status FetchRunStatus `gorm:"size:20;not null;default:'running';index:idx_fetch_runs_status" json:"status"`

	// Statistics
	TendersFound   int `gorm:"not null;default:0" json:"tenders_found"`
	TendersNew     int `gorm:"not null;default:0" json:"tenders_new"`
	TendersUpdated int `gorm:"not null;default:0" json:"tenders_updated"`
	TendersFailed  int `gorm:"not null;default:0" json:"tenders_failed"`

	// Error details (set when status is failed)
	ErrorKind    *string `gorm:"size:100" json:"error_kind,omitempty"`
	ErrorMessage *string `gorm:"type:text" json:"error_message,omitempty"`

	StartedAt       time.Time  `gorm:"not null;index:idx_fetch_runs_started_at" json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Source *Source `gorm:"foreignKey:SourceID;references:ID" json:"source,omitempty"`
}

// TableName returns the table name for the model
func (FetchRun) TableName() string {
	return "fetch_runs"
}

// BeforeCreate is called before creating a new record
func (r *FetchRun) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = FetchRunStatusRunning
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = utils.UTCNow()
	}
	return nil
}

// Finalize moves the run into a terminal state and stamps completion timing
func (r *FetchRun) Finalize(status FetchRunStatus) {
	r.Status = status
	now := utils.UTCNow()
	r.CompletedAt = &now
	secs := int(now.Sub(r.StartedAt).Seconds())
	r.DurationSeconds = &secs
}

// FetchRunFilter represents filter criteria for fetch runs
type FetchRunFilter struct {
	ID            *uint           `json:"id,omitempty"`
	SourceID      *uint           `json:"source_id,omitempty"`
	Status        *FetchRunStatus `json:"status,omitempty"`
	StartedAfter  *time.Time      `json:"started_after,omitempty"`
	StartedBefore *time.Time      `json:"started_before,omitempty"`
}
