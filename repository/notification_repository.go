package repository

import (
	"context"
	"fmt"

	"github.com/tenderintel/tender-intel/models"
	"gorm.io/gorm"
)

// NotificationRepositoryImpl implements NotificationRepository
type NotificationRepositoryImpl struct {
	*BaseRepository[models.Notification, models.NotificationFilter]
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{BaseRepository: NewBaseRepository[models.Notification, models.NotificationFilter](db)}
}

func (r *NotificationRepositoryImpl) applyFilter(db *gorm.DB, f models.NotificationFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.TenderID != nil {
		db = db.Where("tender_id = ?", *f.TenderID)
	}
	if f.Type != nil {
		db = db.Where("type = ?", *f.Type)
	}
	if f.IsSent != nil {
		db = db.Where("is_sent = ?", *f.IsSent)
	}
	if f.IsRead != nil {
		db = db.Where("is_read = ?", *f.IsRead)
	}
	return db
}

func (r *NotificationRepositoryImpl) ByFilter(ctx context.Context, filter models.NotificationFilter, orderBy string, limit, offset int) ([]*models.Notification, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Notification{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *NotificationRepositoryImpl) Count(ctx context.Context, filter models.NotificationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Notification{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *NotificationRepositoryImpl) Exists(ctx context.Context, filter models.NotificationFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *NotificationRepositoryImpl) Update(ctx context.Context, notification *models.Notification) error {
	return r.update(ctx, notification)
}

func (r *NotificationRepositoryImpl) ByUserTenderType(ctx context.Context, userID, tenderID uint, notifType models.NotificationType) (*models.Notification, error) {
	rows, err := r.ByFilter(ctx, models.NotificationFilter{
		UserID:   &userID,
		TenderID: &tenderID,
		Type:     &notifType,
	}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return rows[0], nil
}

func (r *NotificationRepositoryImpl) ExistsForTenderType(ctx context.Context, tenderID uint, notifType models.NotificationType) (bool, error) {
	return r.Exists(ctx, models.NotificationFilter{TenderID: &tenderID, Type: &notifType})
}

func (r *NotificationRepositoryImpl) ExistsSentForTenderType(ctx context.Context, tenderID uint, notifType models.NotificationType) (bool, error) {
	sent := true
	return r.Exists(ctx, models.NotificationFilter{TenderID: &tenderID, Type: &notifType, IsSent: &sent})
}

// IncrementRetry bumps retry_count atomically for the external retry job
func (r *NotificationRepositoryImpl) IncrementRetry(ctx context.Context, notificationID uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment retry count for notification %d: %w", notificationID, err)
	}
	return nil
}
