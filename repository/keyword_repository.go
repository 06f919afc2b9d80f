package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tenderintel/tender-intel/models"
	"gorm.io/gorm"
)

// KeywordRepositoryImpl implements KeywordRepository
type KeywordRepositoryImpl struct {
	*BaseRepository[models.Keyword, models.KeywordFilter]
}

func NewKeywordRepository(db *gorm.DB) KeywordRepository {
	return &KeywordRepositoryImpl{BaseRepository: NewBaseRepository[models.Keyword, models.KeywordFilter](db)}
}

func (r *KeywordRepositoryImpl) applyFilter(db *gorm.DB, f models.KeywordFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Keyword != nil {
		db = db.Where("keyword = ?", *f.Keyword)
	}
	if f.Category != nil {
		db = db.Where("category = ?", *f.Category)
	}
	if f.Priority != nil {
		db = db.Where("priority = ?", *f.Priority)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *KeywordRepositoryImpl) ByFilter(ctx context.Context, filter models.KeywordFilter, orderBy string, limit, offset int) ([]*models.Keyword, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Keyword{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Keyword
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *KeywordRepositoryImpl) Count(ctx context.Context, filter models.KeywordFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Keyword{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *KeywordRepositoryImpl) Exists(ctx context.Context, filter models.KeywordFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *KeywordRepositoryImpl) Update(ctx context.Context, keyword *models.Keyword) error {
	return r.update(ctx, keyword)
}

func (r *KeywordRepositoryImpl) ListActive(ctx context.Context) ([]*models.Keyword, error) {
	active := true
	return r.ByFilter(ctx, models.KeywordFilter{IsActive: &active}, "id ASC", 0, 0)
}

// IncrementMatchStats bumps match_count atomically and stamps the latest
// match time for one keyword.
func (r *KeywordRepositoryImpl) IncrementMatchStats(ctx context.Context, keywordID uint, matchedAt time.Time) error {
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

	err = db.Model(&models.Keyword{}).
		Where("id = ?", keywordID).
		Updates(map[string]any{
			"match_count":     gorm.Expr("match_count + 1"),
			"last_match_date": matchedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to increment match stats for keyword %d: %w", keywordID, err)
	}
	return nil
}
