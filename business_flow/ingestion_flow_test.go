package businessflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenderintel/tender-intel/app/scraper"
	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/utils"
)

type orchestratorFixture struct {
	orchestrator *IngestionOrchestrator
	sourceRepo   *fakeSourceRepo
	tenderRepo   *fakeTenderRepo
	fetchRunRepo *fakeFetchRunRepo
	healthRepo   *fakeHealthRepo
	keywordRepo  *fakeKeywordRepo
	matchRepo    *fakeMatchRepo
	notifRepo    *fakeNotifRepo
	scraper      *fakeScraper
}

func newOrchestratorFixture(keywords []*models.Keyword, sources ...*models.Source) *orchestratorFixture {
	f := &orchestratorFixture{
		sourceRepo:   newFakeSourceRepo(sources...),
		tenderRepo:   newFakeTenderRepo(),
		fetchRunRepo: &fakeFetchRunRepo{},
		healthRepo:   newFakeHealthRepo(),
		keywordRepo:  newFakeKeywordRepo(keywords...),
		matchRepo:    &fakeMatchRepo{},
		notifRepo:    newFakeNotifRepo(),
		scraper:      &fakeScraper{},
	}
	logger := newTestLogger()
	index := NewKeywordIndex(f.keywordRepo, logger, time.Hour)
	matcher := NewKeywordMatcher(index, f.keywordRepo, f.matchRepo, f.tenderRepo, logger)
	health := NewSourceHealthTracker(f.healthRepo, f.sourceRepo, 0, logger)
	dispatcher := NewNotificationDispatcher(
		f.notifRepo,
		&fakeUserRepo{users: []*models.User{{ID: 1, Email: "analyst@example.com", IsActive: true}}},
		f.tenderRepo,
		&fakeEmailDeliverer{},
		&fakeDesktopDeliverer{},
		DispatcherConfig{EnableEmail: true, EnableDesktop: true, DeadlineAlertDays: 7},
		logger,
	)
	f.orchestrator = NewIngestionOrchestrator(
		f.sourceRepo,
		f.tenderRepo,
		f.fetchRunRepo,
		health,
		NewChangeDetector(),
		matcher,
		dispatcher,
		func(*models.Source) scraper.Scraper { return f.scraper },
		2,
		logger,
	)
	return f
}

func activeSource(id uint, name string) *models.Source {
	return &models.Source{ID: id, Name: name, IsActive: true, Status: models.SourceStatusActive}
}

func record(ref, title string) scraper.RawTenderRecord {
	return scraper.RawTenderRecord{ReferenceID: ref, Title: title}
}

func TestRunForSourceCreatesTendersAndNotifies(t *testing.T) {
	f := newOrchestratorFixture(
		[]*models.Keyword{{ID: 1, Keyword: "cloud", Priority: models.KeywordPriorityHigh, IsActive: true}},
		activeSource(1, "city-portal"),
	)
	f.scraper.records = []scraper.RawTenderRecord{
		record("RFP-1001", "Cloud Infrastructure Tender"),
		record("RFP-1002", "Road resurfacing"),
	}

	outcome, err := f.orchestrator.RunForSource(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, outcome.Run)

	assert.Equal(t, models.FetchRunStatusSuccess, outcome.Run.Status)
	assert.Equal(t, 2, outcome.Run.TendersFound)
	assert.Equal(t, 2, outcome.Run.TendersNew)
	assert.Zero(t, outcome.Run.TendersFailed)
	assert.NotNil(t, outcome.Run.CompletedAt)

	assert.Len(t, f.tenderRepo.tenders, 2)
	matched, err := f.tenderRepo.ByReferenceAndSource(context.Background(), "RFP-1001", 1)
	require.NoError(t, err)
	assert.True(t, matched.IsMatched)
	assert.NotEmpty(t, matched.ContentHash)
	assert.Equal(t, 1, matched.Version)

	// Only the matching tender produced a notification.
	require.Len(t, f.notifRepo.rows, 1)
	assert.Equal(t, models.NotificationTypeKeywordMatch, f.notifRepo.rows[0].Type)

	health, err := f.healthRepo.BySourceID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.SourceStatusActive, health.Status)
}

func TestRunForSourceMidBatchFailureIsIsolated(t *testing.T) {
	f := newOrchestratorFixture(nil, activeSource(1, "city-portal"))

	records := make([]scraper.RawTenderRecord, 0, 10)
	for i := 0; i < 10; i++ {
		rec := record(refID(i), "Tender")
		if i == 4 {
			rec.Title = "" // fails validation
		}
		records = append(records, rec)
	}
	f.scraper.records = records

	outcome, err := f.orchestrator.RunForSource(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, models.FetchRunStatusSuccess, outcome.Run.Status)
	assert.Equal(t, 10, outcome.Run.TendersFound)
	assert.Equal(t, 9, outcome.Run.TendersNew)
	assert.Equal(t, 1, outcome.Run.TendersFailed)
	assert.Len(t, f.tenderRepo.tenders, 9)
}

func refID(i int) string {
	return "RFP-" + string(rune('A'+i)) + "100"
}

func TestRunForSourceScrapeFailureDegradesHealth(t *testing.T) {
	f := newOrchestratorFixture(nil, activeSource(1, "city-portal"))
	f.scraper.err = scraper.NewScrapeError(scraper.ErrorKindTimeout, errors.New("context deadline exceeded"))

	outcome, err := f.orchestrator.RunForSource(context.Background(), 1)
	require.Error(t, err)
	require.NotNil(t, outcome.Run)

	assert.Equal(t, models.FetchRunStatusFailed, outcome.Run.Status)
	require.NotNil(t, outcome.Run.ErrorKind)
	assert.Equal(t, "timeout", *outcome.Run.ErrorKind)
	assert.NotNil(t, outcome.Run.ErrorMessage)

	health, err := f.healthRepo.BySourceID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, health.ConsecutiveFailures)
	assert.Equal(t, models.SourceStatusWarning, health.Status)
	assert.Equal(t, []bool{false}, f.sourceRepo.fetchRecords)
}

func TestRunForSourceSkipsMissingAndInactiveSources(t *testing.T) {
	inactive := &models.Source{ID: 2, Name: "old-portal", IsActive: false}
	disabled := &models.Source{ID: 3, Name: "parked-portal", IsActive: true, Status: models.SourceStatusDisabled}
	f := newOrchestratorFixture(nil, inactive, disabled)

	outcome, err := f.orchestrator.RunForSource(context.Background(), 99)
	require.NoError(t, err, "a missing source is a skip, not an error")
	assert.True(t, outcome.Skipped)
	assert.Equal(t, "not found", outcome.SkipReason)
	assert.ErrorIs(t, outcome.Err, ErrSourceNotFound)

	outcome, err = f.orchestrator.RunForSource(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, "inactive", outcome.SkipReason)

	// A manually disabled source is skipped even while is_active is true.
	outcome, err = f.orchestrator.RunForSource(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, "inactive", outcome.SkipReason)

	assert.Empty(t, f.fetchRunRepo.runs, "no fetch run is recorded for a skipped source")
}

// overlapScraper flags any two fetches running at the same time.
type overlapScraper struct {
	inflight int32
	overlaps int32
	calls    int32
}

func (s *overlapScraper) FetchRecords(ctx context.Context, source *models.Source) ([]scraper.RawTenderRecord, error) {
	if atomic.AddInt32(&s.inflight, 1) > 1 {
		atomic.AddInt32(&s.overlaps, 1)
	}
	atomic.AddInt32(&s.calls, 1)
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&s.inflight, -1)
	return nil, nil
}

func TestRunForSourceSerializesConcurrentRuns(t *testing.T) {
	f := newOrchestratorFixture(nil, activeSource(1, "city-portal"))
	sc := &overlapScraper{}
	f.orchestrator.scraperFor = func(*models.Source) scraper.Scraper { return sc }

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orchestrator.RunForSource(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 4, atomic.LoadInt32(&sc.calls))
	assert.Zero(t, atomic.LoadInt32(&sc.overlaps), "fetches for one source must not overlap")
	assert.Len(t, f.fetchRunRepo.runs, 4)
}

func TestRunForSourceCancellation(t *testing.T) {
	f := newOrchestratorFixture(nil, activeSource(1, "city-portal"))
	f.scraper.records = []scraper.RawTenderRecord{record("RFP-1001", "Tender")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := f.orchestrator.RunForSource(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunCancelled)
	assert.Equal(t, models.FetchRunStatusFailed, outcome.Run.Status)
	require.NotNil(t, outcome.Run.ErrorKind)
	assert.Equal(t, "cancelled", *outcome.Run.ErrorKind)
}

func TestRunForSourceUnchangedRecordIsNoOp(t *testing.T) {
	f := newOrchestratorFixture(nil, activeSource(1, "city-portal"))
	f.scraper.records = []scraper.RawTenderRecord{record("RFP-1001", "Road resurfacing")}
	ctx := context.Background()

	_, err := f.orchestrator.RunForSource(ctx, 1)
	require.NoError(t, err)

	outcome, err := f.orchestrator.RunForSource(ctx, 1)
	require.NoError(t, err)

	assert.Zero(t, outcome.Run.TendersNew)
	assert.Zero(t, outcome.Run.TendersUpdated)
	assert.Len(t, f.tenderRepo.tenders, 1)
	assert.Equal(t, 1, f.tenderRepo.tenders[0].Version)
}

func TestRunForSourceChangedRecordBumpsVersion(t *testing.T) {
	f := newOrchestratorFixture(nil, activeSource(1, "city-portal"))
	ctx := context.Background()

	f.scraper.records = []scraper.RawTenderRecord{record("RFP-1001", "Road resurfacing")}
	_, err := f.orchestrator.RunForSource(ctx, 1)
	require.NoError(t, err)

	updated := record("RFP-1001", "Road resurfacing phase II")
	updated.Description = utils.ToPtr("Extended scope")
	f.scraper.records = []scraper.RawTenderRecord{updated}

	outcome, err := f.orchestrator.RunForSource(ctx, 1)
	require.NoError(t, err)

	assert.Zero(t, outcome.Run.TendersNew)
	assert.Equal(t, 1, outcome.Run.TendersUpdated)

	tender := f.tenderRepo.tenders[0]
	assert.Equal(t, 2, tender.Version)
	assert.Equal(t, "Road resurfacing phase II", tender.Title)
	assert.Equal(t, "Extended scope", tender.DescriptionText())
}

func TestRunForAllActiveSourcesIsolatesFailures(t *testing.T) {
	good := activeSource(1, "good-portal")
	bad := activeSource(2, "bad-portal")
	inactive := &models.Source{ID: 3, Name: "off-portal", IsActive: false}
	f := newOrchestratorFixture(nil, good, bad, inactive)

	// The shared fake scraper fails for the bad source only.
	f.orchestrator.scraperFor = func(source *models.Source) scraper.Scraper {
		if source.ID == 2 {
			return &fakeScraper{err: scraper.NewScrapeError(scraper.ErrorKindNetwork, errors.New("dns failure"))}
		}
		return &fakeScraper{records: []scraper.RawTenderRecord{record("RFP-1001", "Tender")}}
	}

	agg, err := f.orchestrator.RunForAllActiveSources(context.Background())
	require.NoError(t, err)

	assert.Len(t, agg.Outcomes, 2, "inactive sources are not listed")
	assert.Equal(t, 1, agg.Succeeded)
	assert.Equal(t, 1, agg.Failed)
	assert.Equal(t, 1, agg.TendersNew)
}

func TestRunForSourceImmediateDeadlineAlert(t *testing.T) {
	f := newOrchestratorFixture(
		[]*models.Keyword{{ID: 1, Keyword: "cloud", IsActive: true}},
		activeSource(1, "city-portal"),
	)
	deadline := utils.UTCToday().AddDate(0, 0, 3)
	rec := record("RFP-1001", "Cloud hosting services")
	rec.DeadlineDate = &deadline
	f.scraper.records = []scraper.RawTenderRecord{rec}

	_, err := f.orchestrator.RunForSource(context.Background(), 1)
	require.NoError(t, err)

	var types []models.NotificationType
	for _, row := range f.notifRepo.rows {
		types = append(types, row.Type)
	}
	assert.Contains(t, types, models.NotificationTypeKeywordMatch)
	assert.Contains(t, types, models.NotificationTypeDeadlineApproaching)
}
