// Package scheduler wires up the cron jobs that drive the ingestion pipeline:
// periodic fetches, deadline sweeps, and retention cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/tenderintel/tender-intel/business_flow"
	"github.com/tenderintel/tender-intel/repository"
	"github.com/tenderintel/tender-intel/utils"
)

const (
	rematchBatchSize      = 100
	fetchRunRetentionDays = 90
)

// JobSpecs holds the cron expression for each recurring job. Empty specs
// disable the job.
type JobSpecs struct {
	FetchAllSources string
	DeadlineCheck   string
	RematchSweep    string
	ExpireTenders   string
	CleanupRuns     string
}

// DefaultJobSpecs returns the standard schedule.
func DefaultJobSpecs() JobSpecs {
	return JobSpecs{
		FetchAllSources: "@every 1h",
		DeadlineCheck:   "0 8 * * *",
		RematchSweep:    "@every 6h",
		ExpireTenders:   "30 0 * * *",
		CleanupRuns:     "0 1 * * 0",
	}
}

// PipelineScheduler runs the recurring pipeline jobs on a cron schedule.
type PipelineScheduler struct {
	cron         *cron.Cron
	orchestrator *businessflow.IngestionOrchestrator
	dispatcher   *businessflow.NotificationDispatcher
	matcher      *businessflow.KeywordMatcher
	tenderRepo   repository.TenderRepository
	fetchRunRepo repository.FetchRunRepository
	specs        JobSpecs
	logger       *log.Logger
}

func NewPipelineScheduler(
	orchestrator *businessflow.IngestionOrchestrator,
	dispatcher *businessflow.NotificationDispatcher,
	matcher *businessflow.KeywordMatcher,
	tenderRepo repository.TenderRepository,
	fetchRunRepo repository.FetchRunRepository,
	specs JobSpecs,
	logger *log.Logger,
) *PipelineScheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &PipelineScheduler{
		cron:         cron.New(cron.WithLogger(cron.DefaultLogger)),
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		matcher:      matcher,
		tenderRepo:   tenderRepo,
		fetchRunRepo: fetchRunRepo,
		specs:        specs,
		logger:       logger,
	}
}

// Start registers the jobs and starts the scheduler. A fetch cycle also runs
// immediately so a fresh deployment does not wait for the first tick.
func (s *PipelineScheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"fetch-all-sources", s.specs.FetchAllSources, func() { s.runFetchAll(ctx) }},
		{"deadline-check", s.specs.DeadlineCheck, func() { s.runDeadlineCheck(ctx) }},
		{"rematch-sweep", s.specs.RematchSweep, func() { s.runRematchSweep(ctx) }},
		{"expire-tenders", s.specs.ExpireTenders, func() { s.runExpireTenders(ctx) }},
		{"cleanup-fetch-runs", s.specs.CleanupRuns, func() { s.runCleanupRuns(ctx) }},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("registering job %s (%q): %w", job.name, job.spec, err)
		}
		s.logger.Printf("scheduler: registered %s (%s)", job.name, job.spec)
	}

	s.cron.Start()
	if s.specs.FetchAllSources != "" {
		go s.runFetchAll(ctx)
	}
	return nil
}

// Stop halts the scheduler. Jobs already running finish on their own.
func (s *PipelineScheduler) Stop() {
	s.cron.Stop()
	s.logger.Printf("scheduler: stopped")
}

func (s *PipelineScheduler) runFetchAll(ctx context.Context) {
	agg, err := s.orchestrator.RunForAllActiveSources(ctx)
	if err != nil {
		s.logger.Printf("scheduler: fetch cycle failed: %v", err)
		return
	}
	s.logger.Printf("scheduler: fetch cycle done: ok=%d failed=%d skipped=%d", agg.Succeeded, agg.Failed, agg.Skipped)
}

func (s *PipelineScheduler) runDeadlineCheck(ctx context.Context) {
	alerted, err := s.dispatcher.CheckApproachingDeadlines(ctx)
	if err != nil {
		s.logger.Printf("scheduler: deadline check failed: %v", err)
		return
	}
	s.logger.Printf("scheduler: deadline check done: alerted=%d", alerted)
}

// runRematchSweep re-runs matching over unmatched tenders so keywords added
// after ingestion still find older tenders.
func (s *PipelineScheduler) runRematchSweep(ctx context.Context) {
	tenders, err := s.tenderRepo.ListUnmatched(ctx, rematchBatchSize)
	if err != nil {
		s.logger.Printf("scheduler: rematch sweep failed: %v", err)
		return
	}
	matched := 0
	for _, tender := range tenders {
		count, keywords, err := s.matcher.MatchAndPersist(ctx, tender)
		if err != nil {
			s.logger.Printf("scheduler: rematching tender %d: %v", tender.ID, err)
			continue
		}
		if count == 0 {
			continue
		}
		matched++
		if err := s.dispatcher.DispatchKeywordMatch(ctx, tender, keywords); err != nil {
			s.logger.Printf("scheduler: notifying rematch on tender %d: %v", tender.ID, err)
		}
	}
	s.logger.Printf("scheduler: rematch sweep done: checked=%d matched=%d", len(tenders), matched)
}

func (s *PipelineScheduler) runExpireTenders(ctx context.Context) {
	expired, err := s.tenderRepo.MarkExpiredBefore(ctx, utils.UTCToday())
	if err != nil {
		s.logger.Printf("scheduler: expiring tenders failed: %v", err)
		return
	}
	if expired > 0 {
		s.logger.Printf("scheduler: expired %d tenders past deadline", expired)
	}
}

func (s *PipelineScheduler) runCleanupRuns(ctx context.Context) {
	cutoff := utils.UTCNow().AddDate(0, 0, -fetchRunRetentionDays)
	deleted, err := s.fetchRunRepo.DeleteStartedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Printf("scheduler: fetch run cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		s.logger.Printf("scheduler: deleted %d fetch runs older than %d days", deleted, fetchRunRetentionDays)
	}
}
