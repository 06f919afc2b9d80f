package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tenderintel/tender-intel/models"
	"gorm.io/gorm"
)

// FetchRunRepositoryImpl implements FetchRunRepository
type FetchRunRepositoryImpl struct {
	*BaseRepository[models.FetchRun, models.FetchRunFilter]
}

func NewFetchRunRepository(db *gorm.DB) FetchRunRepository {
	return &FetchRunRepositoryImpl{BaseRepository: NewBaseRepository[models.FetchRun, models.FetchRunFilter](db)}
}

func (r *FetchRunRepositoryImpl) applyFilter(db *gorm.DB, f models.FetchRunFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.SourceID != nil {
		db = db.Where("source_id = ?", *f.SourceID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.StartedAfter != nil {
		db = db.Where("started_at >= ?", *f.StartedAfter)
	}
	if f.StartedBefore != nil {
		db = db.Where("started_at < ?", *f.StartedBefore)
	}
	return db
}

func (r *FetchRunRepositoryImpl) ByFilter(ctx context.Context, filter models.FetchRunFilter, orderBy string, limit, offset int) ([]*models.FetchRun, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.FetchRun{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.FetchRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *FetchRunRepositoryImpl) Count(ctx context.Context, filter models.FetchRunFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.FetchRun{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FetchRunRepositoryImpl) Exists(ctx context.Context, filter models.FetchRunFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *FetchRunRepositoryImpl) Update(ctx context.Context, run *models.FetchRun) error {
	return r.update(ctx, run)
}

func (r *FetchRunRepositoryImpl) ListBySource(ctx context.Context, sourceID uint, limit, offset int) ([]*models.FetchRun, error) {
	return r.ByFilter(ctx, models.FetchRunFilter{SourceID: &sourceID}, "started_at DESC", limit, offset)
}

// DeleteStartedBefore removes fetch runs older than the cutoff and returns
// the number of rows deleted.
func (r *FetchRunRepositoryImpl) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
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

	res := db.Where("started_at < ?", cutoff).Delete(&models.FetchRun{})
	if res.Error != nil {
		err = res.Error
		return 0, fmt.Errorf("failed to delete old fetch runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
