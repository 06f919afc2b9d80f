package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tenderintel/tender-intel/models"
	"gorm.io/gorm"
)

// SourceRepositoryImpl implements SourceRepository
type SourceRepositoryImpl struct {
	*BaseRepository[models.Source, models.SourceFilter]
}

func NewSourceRepository(db *gorm.DB) SourceRepository {
	return &SourceRepositoryImpl{BaseRepository: NewBaseRepository[models.Source, models.SourceFilter](db)}
}

func (r *SourceRepositoryImpl) applyFilter(db *gorm.DB, f models.SourceFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.ScraperType != nil {
		db = db.Where("scraper_type = ?", *f.ScraperType)
	}
	return db
}

func (r *SourceRepositoryImpl) ByFilter(ctx context.Context, filter models.SourceFilter, orderBy string, limit, offset int) ([]*models.Source, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Source{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Source
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SourceRepositoryImpl) Count(ctx context.Context, filter models.SourceFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Source{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SourceRepositoryImpl) Exists(ctx context.Context, filter models.SourceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *SourceRepositoryImpl) Update(ctx context.Context, source *models.Source) error {
	return r.update(ctx, source)
}

func (r *SourceRepositoryImpl) ListActive(ctx context.Context) ([]*models.Source, error) {
	active := true
	return r.ByFilter(ctx, models.SourceFilter{IsActive: &active}, "id ASC", 0, 0)
}

// RecordFetch updates the source's fetch statistics after a run
func (r *SourceRepositoryImpl) RecordFetch(ctx context.Context, sourceID uint, fetchedAt time.Time, newTenders int, success bool) error {
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

	updates := map[string]any{
		"last_fetch_at": fetchedAt,
		"total_tenders": gorm.Expr("total_tenders + ?", newTenders),
	}
	if success {
		updates["last_success_at"] = fetchedAt
	}

	err = db.Model(&models.Source{}).Where("id = ?", sourceID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to record fetch for source %d: %w", sourceID, err)
	}
	return nil
}
