package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

// TenderRepositoryImpl implements TenderRepository
type TenderRepositoryImpl struct {
	*BaseRepository[models.Tender, models.TenderFilter]
}

func NewTenderRepository(db *gorm.DB) TenderRepository {
	return &TenderRepositoryImpl{BaseRepository: NewBaseRepository[models.Tender, models.TenderFilter](db)}
}

func (r *TenderRepositoryImpl) applyFilter(db *gorm.DB, f models.TenderFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.ReferenceID != nil {
		db = db.Where("reference_id = ?", *f.ReferenceID)
	}
	if f.SourceID != nil {
		db = db.Where("source_id = ?", *f.SourceID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.IsMatched != nil {
		db = db.Where("is_matched = ?", *f.IsMatched)
	}
	if f.IsDeleted != nil {
		db = db.Where("is_deleted = ?", *f.IsDeleted)
	}
	if f.DeadlineAfter != nil {
		db = db.Where("deadline_date >= ?", *f.DeadlineAfter)
	}
	if f.DeadlineBefore != nil {
		db = db.Where("deadline_date <= ?", *f.DeadlineBefore)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.MaxMatchCount != nil {
		db = db.Where("keyword_match_count <= ?", *f.MaxMatchCount)
	}
	return db
}

func (r *TenderRepositoryImpl) ByFilter(ctx context.Context, filter models.TenderFilter, orderBy string, limit, offset int) ([]*models.Tender, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Tender{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Tender
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TenderRepositoryImpl) Count(ctx context.Context, filter models.TenderFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Tender{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TenderRepositoryImpl) Exists(ctx context.Context, filter models.TenderFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *TenderRepositoryImpl) Update(ctx context.Context, tender *models.Tender) error {
	return r.update(ctx, tender)
}

// ByReferenceAndSource resolves a tender by its natural key. Soft-deleted
// rows are excluded so a re-added tender creates a fresh row.
func (r *TenderRepositoryImpl) ByReferenceAndSource(ctx context.Context, referenceID string, sourceID uint) (*models.Tender, error) {
	db := r.getDB(ctx)
	var row models.Tender
	err := db.Where("reference_id = ? AND source_id = ? AND is_deleted = false", referenceID, sourceID).
		Order("id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find tender by reference %s source %d: %w", referenceID, sourceID, err)
	}
	return &row, nil
}

// ListDeadlineBetween returns non-deleted, non-expired tenders whose deadline
// falls inside [from, to].
func (r *TenderRepositoryImpl) ListDeadlineBetween(ctx context.Context, from, to time.Time) ([]*models.Tender, error) {
	db := r.getDB(ctx)
	var rows []*models.Tender
	err := db.Model(&models.Tender{}).
		Where("deadline_date >= ? AND deadline_date <= ?", from, to).
		Where("status <> ?", models.TenderStatusExpired).
		Where("is_deleted = false").
		Order("deadline_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUnmatched returns the most recent tenders that have no keyword matches
// yet, for the periodic rematch sweep.
func (r *TenderRepositoryImpl) ListUnmatched(ctx context.Context, limit int) ([]*models.Tender, error) {
	db := r.getDB(ctx)
	var rows []*models.Tender
	query := db.Model(&models.Tender{}).
		Where("keyword_match_count = 0 AND is_deleted = false").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkExpiredBefore flips all tenders with a deadline before cutoff to the
// expired status and returns the number of rows changed.
func (r *TenderRepositoryImpl) MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
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

	res := db.Model(&models.Tender{}).
		Where("deadline_date < ?", cutoff).
		Where("status <> ?", models.TenderStatusExpired).
		Where("is_deleted = false").
		Updates(map[string]any{"status": models.TenderStatusExpired, "updated_at": utils.UTCNow()})
	if res.Error != nil {
		err = res.Error
		return 0, fmt.Errorf("failed to mark expired tenders: %w", res.Error)
	}
	return res.RowsAffected, nil
}
