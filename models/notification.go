package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

// NotificationType represents the kind of event a notification reports
type NotificationType string

const (
	NotificationTypeNewTender           NotificationType = "new_tender"
	NotificationTypeKeywordMatch        NotificationType = "keyword_match"
	NotificationTypeDeadlineApproaching NotificationType = "deadline_approaching"
	NotificationTypeSystemError         NotificationType = "system_error"
)

// String returns the string representation of the type
func (t NotificationType) String() string {
	return string(t)
}

// Valid checks if the type is valid
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeNewTender, NotificationTypeKeywordMatch,
		NotificationTypeDeadlineApproaching, NotificationTypeSystemError:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for NotificationType
func (t *NotificationType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*t = NotificationType(v)
	case []byte:
		*t = NotificationType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into NotificationType", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for NotificationType
func (t NotificationType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid NotificationType: %s", t)
	}
	return string(t), nil
}

// NotificationChannel selects the delivery channel(s) for a notification
type NotificationChannel string

const (
	NotificationChannelEmail   NotificationChannel = "email"
	NotificationChannelDesktop NotificationChannel = "desktop"
	NotificationChannelBoth    NotificationChannel = "both"
)

// Valid checks if the channel is valid
func (c NotificationChannel) Valid() bool {
	switch c {
	case NotificationChannelEmail, NotificationChannelDesktop, NotificationChannelBoth:
		return true
	default:
		return false
	}
}

// IncludesEmail reports whether the email channel is selected
func (c NotificationChannel) IncludesEmail() bool {
	return c == NotificationChannelEmail || c == NotificationChannelBoth
}

// IncludesDesktop reports whether the desktop channel is selected
func (c NotificationChannel) IncludesDesktop() bool {
	return c == NotificationChannelDesktop || c == NotificationChannelBoth
}

// Notification represents one delivery record for a (user, tender, type)
// triple. Never more than one row exists per triple.
type Notification struct {
	ID       uint  `gorm:"primaryKey" json:"id"`
	UserID   uint  `gorm:"not null;index:idx_notifications_user_id;uniqueIndex:uk_notifications_user_tender_type" json:"user_id"`
	TenderID *uint `gorm:"index:idx_notifications_tender_id;uniqueIndex:uk_notifications_user_tender_type" json:"tender_id,omitempty"`

	Type    NotificationType    `gorm:"size:50;not null;index:idx_notifications_type;uniqueIndex:uk_notifications_user_tender_type" json:"type"`
	Channel NotificationChannel `gorm:"size:20;not null;default:'both'" json:"channel"`

	Title   string `gorm:"size:255;not null" json:"title"`
	Message string `gorm:"type:text;not null" json:"message"`

	IsRead bool `gorm:"not null;default:false;index:idx_notifications_is_read" json:"is_read"`
	IsSent bool `gorm:"not null;default:false" json:"is_sent"`

	// Per-channel delivery outcome
	EmailSent   bool       `gorm:"not null;default:false" json:"email_sent"`
	DesktopSent bool       `gorm:"not null;default:false" json:"desktop_sent"`
	SentAt      *time.Time `json:"sent_at,omitempty"`

	ErrorMessage *string `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount   int     `gorm:"not null;default:0" json:"retry_count"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_notifications_created_at" json:"created_at"`

	// Relations
	User   *User   `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Tender *Tender `gorm:"foreignKey:TenderID;references:ID" json:"tender,omitempty"`
}

// TableName returns the table name for the model
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate is called before creating a new record
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.Channel == "" {
		n.Channel = NotificationChannelBoth
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = utils.UTCNow()
	}
	return nil
}

// MarkDelivered records the OR of per-channel outcomes. sent_at is set the
// first time delivery succeeds and never overwritten.
func (n *Notification) MarkDelivered() {
	wasSent := n.IsSent
	n.IsSent = n.EmailSent || n.DesktopSent
	if n.IsSent && !wasSent && n.SentAt == nil {
		n.SentAt = utils.UTCNowPtr()
	}
}

// NotificationFilter represents filter criteria for notifications
type NotificationFilter struct {
	ID       *uint             `json:"id,omitempty"`
	UserID   *uint             `json:"user_id,omitempty"`
	TenderID *uint             `json:"tender_id,omitempty"`
	Type     *NotificationType `json:"type,omitempty"`
	IsSent   *bool             `json:"is_sent,omitempty"`
	IsRead   *bool             `json:"is_read,omitempty"`
}
