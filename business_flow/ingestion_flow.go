package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/tenderintel/tender-intel/app/metrics"
	"github.com/tenderintel/tender-intel/app/scraper"
	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/repository"
	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

const defaultMaxConcurrentFetches = 3

// ScraperFactory resolves the scraper implementation for a source.
type ScraperFactory func(source *models.Source) scraper.Scraper

// FetchOutcome summarizes one orchestrator invocation for one source.
type FetchOutcome struct {
	SourceID   uint
	SourceName string
	Skipped    bool
	SkipReason string
	Run        *models.FetchRun
	Err        error
}

// AggregateOutcome summarizes a run across all active sources.
type AggregateOutcome struct {
	Outcomes       []*FetchOutcome
	Succeeded      int
	Failed         int
	Skipped        int
	TendersNew     int
	TendersUpdated int
}

// IngestionOrchestrator drives the fetch pipeline for a source: scrape,
// validate, detect changes, match keywords, dispatch notifications, and
// record the run. One failing record never aborts the rest of the batch, and
// one failing source never aborts the others.
type IngestionOrchestrator struct {
	sourceRepo   repository.SourceRepository
	tenderRepo   repository.TenderRepository
	fetchRunRepo repository.FetchRunRepository
	health       *SourceHealthTracker
	detector     *ChangeDetector
	matcher      *KeywordMatcher
	dispatcher   *NotificationDispatcher
	scraperFor   ScraperFactory
	validate     *validator.Validate

	maxConcurrent int
	sourceLocks   sync.Map
	logger        *log.Logger
}

func NewIngestionOrchestrator(
	sourceRepo repository.SourceRepository,
	tenderRepo repository.TenderRepository,
	fetchRunRepo repository.FetchRunRepository,
	health *SourceHealthTracker,
	detector *ChangeDetector,
	matcher *KeywordMatcher,
	dispatcher *NotificationDispatcher,
	scraperFor ScraperFactory,
	maxConcurrent int,
	logger *log.Logger,
) *IngestionOrchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentFetches
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestionOrchestrator{
		sourceRepo:    sourceRepo,
		tenderRepo:    tenderRepo,
		fetchRunRepo:  fetchRunRepo,
		health:        health,
		detector:      detector,
		matcher:       matcher,
		dispatcher:    dispatcher,
		scraperFor:    scraperFor,
		validate:      validator.New(),
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// RunForSource executes one fetch for the source. Concurrent calls for the
// same source serialize on a per-source lock so a source never has two
// RUNNING fetch runs. A missing or inactive source yields a skipped outcome
// with the cause in Err, not an error return.
func (o *IngestionOrchestrator) RunForSource(ctx context.Context, sourceID uint) (*FetchOutcome, error) {
	lock := o.lockFor(sourceID)
	lock.Lock()
	defer lock.Unlock()

	source, err := o.sourceRepo.ByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			o.logger.Printf("ingestion: skipping unknown source %d", sourceID)
			return &FetchOutcome{SourceID: sourceID, Skipped: true, SkipReason: "not found", Err: ErrSourceNotFound}, nil
		}
		return nil, fmt.Errorf("loading source %d: %w", sourceID, err)
	}
	if !source.IsActive || source.Status == models.SourceStatusDisabled {
		o.logger.Printf("ingestion: skipping inactive source %q", source.Name)
		return &FetchOutcome{SourceID: source.ID, SourceName: source.Name, Skipped: true, SkipReason: "inactive", Err: ErrSourceInactive}, nil
	}

	run := &models.FetchRun{
		SourceID:   source.ID,
		SourceName: source.Name,
		Status:     models.FetchRunStatusRunning,
		StartedAt:  utils.UTCNow(),
	}
	if err := o.fetchRunRepo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("creating fetch run for source %d: %w", source.ID, err)
	}
	outcome := &FetchOutcome{SourceID: source.ID, SourceName: source.Name, Run: run}

	records, err := o.scraperFor(source).FetchRecords(ctx, source)
	if err != nil {
		o.failRun(ctx, source, run, err)
		outcome.Err = err
		return outcome, err
	}

	run.TendersFound = len(records)
	for _, rec := range records {
		if ctx.Err() != nil {
			err := fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err())
			o.failRun(ctx, source, run, scraper.NewScrapeError(scraper.ErrorKindCancelled, err))
			outcome.Err = err
			return outcome, err
		}

		created, updated, err := o.processRecord(ctx, source, rec)
		if err != nil {
			run.TendersFailed++
			metrics.RecordsFailed.WithLabelValues(source.Name).Inc()
			o.logger.Printf("ingestion: source %q: %v", source.Name, &RecordProcessingError{ReferenceID: rec.ReferenceID, Err: err})
			continue
		}
		if created {
			run.TendersNew++
		}
		if updated {
			run.TendersUpdated++
		}
	}

	run.Finalize(models.FetchRunStatusSuccess)
	if err := o.fetchRunRepo.Update(ctx, run); err != nil {
		o.logger.Printf("ingestion: finalizing run %s: %v", run.UUID, err)
	}
	if err := o.health.RecordSuccess(ctx, source); err != nil {
		o.logger.Printf("ingestion: recording success for source %q: %v", source.Name, err)
	}
	if err := o.sourceRepo.RecordFetch(ctx, source.ID, utils.UTCNow(), run.TendersNew, true); err != nil {
		o.logger.Printf("ingestion: recording fetch stats for source %q: %v", source.Name, err)
	}

	metrics.FetchRunsTotal.WithLabelValues(source.Name, run.Status.String()).Inc()
	if run.DurationSeconds != nil {
		metrics.FetchDuration.WithLabelValues(source.Name).Observe(float64(*run.DurationSeconds))
	}
	o.logger.Printf("ingestion: source %q done: found=%d new=%d updated=%d failed=%d",
		source.Name, run.TendersFound, run.TendersNew, run.TendersUpdated, run.TendersFailed)
	return outcome, nil
}

// RunForAllActiveSources fetches every active source with bounded
// concurrency. Source failures are isolated; the aggregate reports them
// without an error return.
func (o *IngestionOrchestrator) RunForAllActiveSources(ctx context.Context) (*AggregateOutcome, error) {
	sources, err := o.sourceRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active sources: %w", err)
	}

	sem := make(chan struct{}, o.maxConcurrent)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	agg := &AggregateOutcome{}

	for _, source := range sources {
		wg.Add(1)
		go func(id uint, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome, err := o.RunForSource(ctx, id)
			if outcome == nil {
				outcome = &FetchOutcome{SourceID: id, SourceName: name, Err: err}
			}

			mu.Lock()
			defer mu.Unlock()
			agg.Outcomes = append(agg.Outcomes, outcome)
			switch {
			case outcome.Skipped:
				agg.Skipped++
			case outcome.Err != nil:
				agg.Failed++
			default:
				agg.Succeeded++
				if outcome.Run != nil {
					agg.TendersNew += outcome.Run.TendersNew
					agg.TendersUpdated += outcome.Run.TendersUpdated
				}
			}
		}(source.ID, source.Name)
	}
	wg.Wait()

	o.logger.Printf("ingestion: all sources done: ok=%d failed=%d skipped=%d new=%d updated=%d",
		agg.Succeeded, agg.Failed, agg.Skipped, agg.TendersNew, agg.TendersUpdated)
	return agg, nil
}

// processRecord runs the full pipeline for one raw record and reports
// whether it created or updated a tender.
func (o *IngestionOrchestrator) processRecord(ctx context.Context, source *models.Source, rec scraper.RawTenderRecord) (created, updated bool, err error) {
	if err := o.validate.Struct(rec); err != nil {
		return false, false, fmt.Errorf("invalid record: %w", err)
	}

	existing, err := o.tenderRepo.ByReferenceAndSource(ctx, rec.ReferenceID, source.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, false, fmt.Errorf("resolving tender: %w", err)
		}
		return true, false, o.createTender(ctx, source, rec)
	}
	changed, err := o.updateTender(ctx, source, existing, rec)
	return false, changed, err
}

func (o *IngestionOrchestrator) createTender(ctx context.Context, source *models.Source, rec scraper.RawTenderRecord) error {
	tender := &models.Tender{
		Title:          rec.Title,
		ReferenceID:    rec.ReferenceID,
		Description:    rec.Description,
		AgencyName:     rec.AgencyName,
		AgencyLocation: rec.AgencyLocation,
		PublishedDate:  rec.PublishedDate,
		DeadlineDate:   rec.DeadlineDate,
		SourceID:       source.ID,
		SourceURL:      rec.SourceURL,
		Attachments:    pq.StringArray(rec.Attachments),
		DocumentText:   rec.DocumentText,
		Status:         models.TenderStatusNew,
		Version:        1,
	}
	tender.ContentHash = o.detector.ComputeHash(tender.Title, tender.DescriptionText())

	if err := o.tenderRepo.Save(ctx, tender); err != nil {
		return fmt.Errorf("creating tender: %w", err)
	}
	metrics.TendersIngested.WithLabelValues(source.Name).Inc()

	count, matched, err := o.matcher.MatchAndPersist(ctx, tender)
	if err != nil {
		o.logger.Printf("ingestion: matching tender %d: %v", tender.ID, err)
		return nil
	}
	metrics.KeywordMatches.Add(float64(count))
	if count > 0 {
		if err := o.dispatcher.DispatchKeywordMatch(ctx, tender, matched); err != nil {
			o.logger.Printf("ingestion: notifying match on tender %d: %v", tender.ID, err)
		}
		o.maybeAlertDeadline(ctx, tender)
	}
	return nil
}

// updateTender applies a changed record to an existing tender. Unchanged
// content is a no-op; a content change bumps the version and re-runs
// matching.
func (o *IngestionOrchestrator) updateTender(ctx context.Context, source *models.Source, tender *models.Tender, rec scraper.RawTenderRecord) (bool, error) {
	if !o.detector.HasChanged(tender, rec) {
		return false, nil
	}
	changes := o.detector.DetectFieldChanges(tender, rec)

	tender.Title = rec.Title
	if rec.Description != nil {
		tender.Description = rec.Description
	}
	if rec.AgencyName != nil {
		tender.AgencyName = rec.AgencyName
	}
	if rec.AgencyLocation != nil {
		tender.AgencyLocation = rec.AgencyLocation
	}
	if rec.PublishedDate != nil {
		tender.PublishedDate = rec.PublishedDate
	}
	if rec.DeadlineDate != nil {
		tender.DeadlineDate = rec.DeadlineDate
	}
	if rec.SourceURL != nil {
		tender.SourceURL = rec.SourceURL
	}
	if len(rec.Attachments) > 0 {
		tender.Attachments = pq.StringArray(rec.Attachments)
	}
	if rec.DocumentText != nil {
		tender.DocumentText = rec.DocumentText
	}
	tender.ContentHash = o.detector.ComputeHash(tender.Title, tender.DescriptionText())
	tender.Version++

	if err := o.tenderRepo.Update(ctx, tender); err != nil {
		return false, fmt.Errorf("updating tender %d: %w", tender.ID, err)
	}
	metrics.TendersUpdated.WithLabelValues(source.Name).Inc()

	count, matched, err := o.matcher.MatchAndPersist(ctx, tender)
	if err != nil {
		o.logger.Printf("ingestion: rematching tender %d: %v", tender.ID, err)
		return true, nil
	}
	metrics.KeywordMatches.Add(float64(count))
	if count > 0 && o.detector.ShouldNotify(changes) {
		if err := o.dispatcher.DispatchKeywordMatch(ctx, tender, matched); err != nil {
			o.logger.Printf("ingestion: notifying update on tender %d: %v", tender.ID, err)
		}
	}
	if count > 0 {
		o.maybeAlertDeadline(ctx, tender)
	}
	return true, nil
}

// maybeAlertDeadline fires a deadline alert at ingestion time when the
// deadline is already inside the alert window, so a late-discovered tender
// does not wait for the next sweep.
func (o *IngestionOrchestrator) maybeAlertDeadline(ctx context.Context, tender *models.Tender) {
	days := tender.DaysUntilDeadline()
	if days == nil || *days < 0 || *days > o.dispatcher.cfg.DeadlineAlertDays {
		return
	}
	sent, err := o.dispatcher.notifRepo.ExistsSentForTenderType(ctx, tender.ID, models.NotificationTypeDeadlineApproaching)
	if err != nil || sent {
		return
	}
	if err := o.dispatcher.DispatchDeadlineApproaching(ctx, tender); err != nil {
		o.logger.Printf("ingestion: deadline alert for tender %d: %v", tender.ID, err)
	}
}

// failRun finalizes the run as FAILED with the failure classification and
// degrades source health.
func (o *IngestionOrchestrator) failRun(ctx context.Context, source *models.Source, run *models.FetchRun, cause error) {
	kind := string(scraper.KindOf(cause))
	run.ErrorKind = &kind
	run.ErrorMessage = utils.ToPtr(utils.Truncate(cause.Error(), 2000))
	run.Finalize(models.FetchRunStatusFailed)
	if err := o.fetchRunRepo.Update(ctx, run); err != nil {
		o.logger.Printf("ingestion: finalizing failed run %s: %v", run.UUID, err)
	}
	if err := o.health.RecordFailure(ctx, source, cause); err != nil {
		o.logger.Printf("ingestion: recording failure for source %q: %v", source.Name, err)
	}
	if err := o.sourceRepo.RecordFetch(ctx, source.ID, utils.UTCNow(), 0, false); err != nil {
		o.logger.Printf("ingestion: recording fetch stats for source %q: %v", source.Name, err)
	}
	metrics.FetchRunsTotal.WithLabelValues(source.Name, run.Status.String()).Inc()
	o.logger.Printf("ingestion: source %q failed (%s): %v", source.Name, kind, cause)
}

func (o *IngestionOrchestrator) lockFor(sourceID uint) *sync.Mutex {
	v, _ := o.sourceLocks.LoadOrStore(sourceID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
