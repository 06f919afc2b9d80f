package repository

import (
	"context"
	"fmt"

	"github.com/tenderintel/tender-intel/models"
	"gorm.io/gorm"
)

// TenderKeywordMatchRepositoryImpl implements TenderKeywordMatchRepository
type TenderKeywordMatchRepositoryImpl struct {
	*BaseRepository[models.TenderKeywordMatch, models.TenderKeywordMatchFilter]
}

func NewTenderKeywordMatchRepository(db *gorm.DB) TenderKeywordMatchRepository {
	return &TenderKeywordMatchRepositoryImpl{BaseRepository: NewBaseRepository[models.TenderKeywordMatch, models.TenderKeywordMatchFilter](db)}
}

func (r *TenderKeywordMatchRepositoryImpl) applyFilter(db *gorm.DB, f models.TenderKeywordMatchFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.TenderID != nil {
		db = db.Where("tender_id = ?", *f.TenderID)
	}
	if f.KeywordID != nil {
		db = db.Where("keyword_id = ?", *f.KeywordID)
	}
	return db
}

func (r *TenderKeywordMatchRepositoryImpl) ByFilter(ctx context.Context, filter models.TenderKeywordMatchFilter, orderBy string, limit, offset int) ([]*models.TenderKeywordMatch, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TenderKeywordMatch{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.TenderKeywordMatch
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TenderKeywordMatchRepositoryImpl) Count(ctx context.Context, filter models.TenderKeywordMatchFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TenderKeywordMatch{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TenderKeywordMatchRepositoryImpl) Exists(ctx context.Context, filter models.TenderKeywordMatchFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *TenderKeywordMatchRepositoryImpl) ByTender(ctx context.Context, tenderID uint) ([]*models.TenderKeywordMatch, error) {
	return r.ByFilter(ctx, models.TenderKeywordMatchFilter{TenderID: &tenderID}, "id ASC", 0, 0)
}

func (r *TenderKeywordMatchRepositoryImpl) ExistsForPair(ctx context.Context, tenderID, keywordID uint) (bool, error) {
	return r.Exists(ctx, models.TenderKeywordMatchFilter{TenderID: &tenderID, KeywordID: &keywordID})
}

// DeleteByTender removes all match rows for a tender. Used when a tender is
// soft-deleted so its match set does not outlive it.
func (r *TenderKeywordMatchRepositoryImpl) DeleteByTender(ctx context.Context, tenderID uint) error {
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

	err = db.Where("tender_id = ?", tenderID).Delete(&models.TenderKeywordMatch{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete matches for tender %d: %w", tenderID, err)
	}
	return nil
}
