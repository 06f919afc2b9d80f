package repository

import (
	"context"

	"github.com/tenderintel/tender-intel/models"
	"gorm.io/gorm"
)

// SourceHealthRepositoryImpl implements SourceHealthRepository
type SourceHealthRepositoryImpl struct {
	*BaseRepository[models.SourceHealth, models.SourceHealthFilter]
}

func NewSourceHealthRepository(db *gorm.DB) SourceHealthRepository {
	return &SourceHealthRepositoryImpl{BaseRepository: NewBaseRepository[models.SourceHealth, models.SourceHealthFilter](db)}
}

func (r *SourceHealthRepositoryImpl) applyFilter(db *gorm.DB, f models.SourceHealthFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.SourceID != nil {
		db = db.Where("source_id = ?", *f.SourceID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

func (r *SourceHealthRepositoryImpl) ByFilter(ctx context.Context, filter models.SourceHealthFilter, orderBy string, limit, offset int) ([]*models.SourceHealth, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SourceHealth{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SourceHealth
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SourceHealthRepositoryImpl) Count(ctx context.Context, filter models.SourceHealthFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SourceHealth{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SourceHealthRepositoryImpl) Exists(ctx context.Context, filter models.SourceHealthFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *SourceHealthRepositoryImpl) BySourceID(ctx context.Context, sourceID uint) (*models.SourceHealth, error) {
	rows, err := r.ByFilter(ctx, models.SourceHealthFilter{SourceID: &sourceID}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return rows[0], nil
}

func (r *SourceHealthRepositoryImpl) Update(ctx context.Context, health *models.SourceHealth) error {
	return r.update(ctx, health)
}
