// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/tenderintel/tender-intel/models"
)

// contextKey is the key type for transaction propagation through context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// SourceRepository defines operations for sources
type SourceRepository interface {
	Repository[models.Source, models.SourceFilter]
	Update(ctx context.Context, source *models.Source) error
	ListActive(ctx context.Context) ([]*models.Source, error)
	RecordFetch(ctx context.Context, sourceID uint, fetchedAt time.Time, newTenders int, success bool) error
}

// SourceHealthRepository defines operations for source health rows
type SourceHealthRepository interface {
	Repository[models.SourceHealth, models.SourceHealthFilter]
	BySourceID(ctx context.Context, sourceID uint) (*models.SourceHealth, error)
	Update(ctx context.Context, health *models.SourceHealth) error
}

// TenderRepository defines operations for tenders
type TenderRepository interface {
	Repository[models.Tender, models.TenderFilter]
	Update(ctx context.Context, tender *models.Tender) error
	ByReferenceAndSource(ctx context.Context, referenceID string, sourceID uint) (*models.Tender, error)
	ListDeadlineBetween(ctx context.Context, from, to time.Time) ([]*models.Tender, error)
	ListUnmatched(ctx context.Context, limit int) ([]*models.Tender, error)
	MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// KeywordRepository defines operations for keywords
type KeywordRepository interface {
	Repository[models.Keyword, models.KeywordFilter]
	Update(ctx context.Context, keyword *models.Keyword) error
	ListActive(ctx context.Context) ([]*models.Keyword, error)
	IncrementMatchStats(ctx context.Context, keywordID uint, matchedAt time.Time) error
}

// TenderKeywordMatchRepository defines operations for tender-keyword matches
type TenderKeywordMatchRepository interface {
	Repository[models.TenderKeywordMatch, models.TenderKeywordMatchFilter]
	ByTender(ctx context.Context, tenderID uint) ([]*models.TenderKeywordMatch, error)
	ExistsForPair(ctx context.Context, tenderID, keywordID uint) (bool, error)
	DeleteByTender(ctx context.Context, tenderID uint) error
}

// FetchRunRepository defines operations for fetch runs
type FetchRunRepository interface {
	Repository[models.FetchRun, models.FetchRunFilter]
	Update(ctx context.Context, run *models.FetchRun) error
	ListBySource(ctx context.Context, sourceID uint, limit, offset int) ([]*models.FetchRun, error)
	DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationRepository defines operations for notifications
type NotificationRepository interface {
	Repository[models.Notification, models.NotificationFilter]
	Update(ctx context.Context, notification *models.Notification) error
	ByUserTenderType(ctx context.Context, userID, tenderID uint, notifType models.NotificationType) (*models.Notification, error)
	ExistsForTenderType(ctx context.Context, tenderID uint, notifType models.NotificationType) (bool, error)
	ExistsSentForTenderType(ctx context.Context, tenderID uint, notifType models.NotificationType) (bool, error)
	IncrementRetry(ctx context.Context, notificationID uint) error
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ListActive(ctx context.Context) ([]*models.User, error)
}
