package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/repository"
	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

const defaultFailureThreshold = 3

// SourceHealthTracker maintains per-source health state from fetch outcomes.
// A source degrades to WARNING on its first consecutive failure and to ERROR
// once consecutive failures reach the threshold; any success resets it.
type SourceHealthTracker struct {
	healthRepo repository.SourceHealthRepository
	sourceRepo repository.SourceRepository
	threshold  int
	logger     *log.Logger
}

func NewSourceHealthTracker(
	healthRepo repository.SourceHealthRepository,
	sourceRepo repository.SourceRepository,
	threshold int,
	logger *log.Logger,
) *SourceHealthTracker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SourceHealthTracker{
		healthRepo: healthRepo,
		sourceRepo: sourceRepo,
		threshold:  threshold,
		logger:     logger,
	}
}

// EnsureForSource returns the health row for the source, creating a fresh
// ACTIVE row when none exists yet.
func (t *SourceHealthTracker) EnsureForSource(ctx context.Context, sourceID uint) (*models.SourceHealth, error) {
	health, err := t.healthRepo.BySourceID(ctx, sourceID)
	if err == nil {
		return health, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("loading health for source %d: %w", sourceID, err)
	}

	health = &models.SourceHealth{
		SourceID: sourceID,
		Status:   models.SourceStatusActive,
	}
	if err := t.healthRepo.Save(ctx, health); err != nil {
		return nil, fmt.Errorf("creating health row for source %d: %w", sourceID, err)
	}
	return health, nil
}

// RecordSuccess resets consecutive failures and restores ACTIVE status.
func (t *SourceHealthTracker) RecordSuccess(ctx context.Context, source *models.Source) error {
	health, err := t.EnsureForSource(ctx, source.ID)
	if err != nil {
		return err
	}

	now := utils.UTCNow()
	health.ConsecutiveFailures = 0
	health.Status = models.SourceStatusActive
	health.LastSuccessAt = &now
	health.LastError = nil
	if err := t.healthRepo.Update(ctx, health); err != nil {
		return fmt.Errorf("recording success for source %d: %w", source.ID, err)
	}
	return t.syncSourceStatus(ctx, source, health.Status)
}

// RecordFailure increments the consecutive failure count and degrades the
// source status accordingly.
func (t *SourceHealthTracker) RecordFailure(ctx context.Context, source *models.Source, cause error) error {
	health, err := t.EnsureForSource(ctx, source.ID)
	if err != nil {
		return err
	}

	now := utils.UTCNow()
	health.ConsecutiveFailures++
	health.LastFailureAt = &now
	if cause != nil {
		health.LastError = utils.ToPtr(utils.Truncate(cause.Error(), 500))
	}
	if health.ConsecutiveFailures >= t.threshold {
		health.Status = models.SourceStatusError
	} else {
		health.Status = models.SourceStatusWarning
	}
	if err := t.healthRepo.Update(ctx, health); err != nil {
		return fmt.Errorf("recording failure for source %d: %w", source.ID, err)
	}

	if health.Status == models.SourceStatusError {
		t.logger.Printf("health: source %q entered ERROR after %d consecutive failures", source.Name, health.ConsecutiveFailures)
	}
	return t.syncSourceStatus(ctx, source, health.Status)
}

// syncSourceStatus mirrors the health status onto the source row so that
// listings can filter without joining. A manually disabled source stays
// disabled regardless of fetch outcomes.
func (t *SourceHealthTracker) syncSourceStatus(ctx context.Context, source *models.Source, status models.SourceStatus) error {
	if source.Status == models.SourceStatusDisabled || source.Status == status {
		return nil
	}
	source.Status = status
	if err := t.sourceRepo.Update(ctx, source); err != nil {
		return fmt.Errorf("syncing status for source %d: %w", source.ID, err)
	}
	return nil
}
