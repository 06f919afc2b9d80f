package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tenderintel/tender-intel/app/scraper"
	"github.com/tenderintel/tender-intel/models"
	"gorm.io/gorm"
)

// stubRepo satisfies the generic repository surface so fakes only implement
// the methods the flows actually call.
type stubRepo[T any, F any] struct{}

func (stubRepo[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	return nil, gorm.ErrRecordNotFound
}

func (stubRepo[T, F]) ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error) {
	return nil, nil
}

func (stubRepo[T, F]) Save(ctx context.Context, entity *T) error { return nil }

func (stubRepo[T, F]) SaveBatch(ctx context.Context, entities []*T) error { return nil }

func (stubRepo[T, F]) Count(ctx context.Context, filter F) (int64, error) { return 0, nil }

func (stubRepo[T, F]) Exists(ctx context.Context, filter F) (bool, error) { return false, nil }

type fakeKeywordRepo struct {
	stubRepo[models.Keyword, models.KeywordFilter]
	mu         sync.Mutex
	keywords   []*models.Keyword
	statBumps  map[uint]int
	listErr    error
	updateErrs map[uint]error
}

func newFakeKeywordRepo(keywords ...*models.Keyword) *fakeKeywordRepo {
	return &fakeKeywordRepo{keywords: keywords, statBumps: map[uint]int{}, updateErrs: map[uint]error{}}
}

func (r *fakeKeywordRepo) ListActive(ctx context.Context) ([]*models.Keyword, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var active []*models.Keyword
	for _, k := range r.keywords {
		if k.IsActive {
			active = append(active, k)
		}
	}
	return active, nil
}

func (r *fakeKeywordRepo) Update(ctx context.Context, keyword *models.Keyword) error {
	return r.updateErrs[keyword.ID]
}

func (r *fakeKeywordRepo) IncrementMatchStats(ctx context.Context, keywordID uint, matchedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statBumps[keywordID]++
	return nil
}

type fakeMatchRepo struct {
	stubRepo[models.TenderKeywordMatch, models.TenderKeywordMatchFilter]
	mu      sync.Mutex
	rows    []*models.TenderKeywordMatch
	saveErr error
}

func (r *fakeMatchRepo) Save(ctx context.Context, row *models.TenderKeywordMatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	row.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, row)
	return nil
}

func (r *fakeMatchRepo) ByTender(ctx context.Context, tenderID uint) ([]*models.TenderKeywordMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TenderKeywordMatch
	for _, row := range r.rows {
		if row.TenderID == tenderID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ExistsForPair(ctx context.Context, tenderID, keywordID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.TenderID == tenderID && row.KeywordID == keywordID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMatchRepo) DeleteByTender(ctx context.Context, tenderID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.TenderKeywordMatch
	for _, row := range r.rows {
		if row.TenderID != tenderID {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

type fakeTenderRepo struct {
	stubRepo[models.Tender, models.TenderFilter]
	mu        sync.Mutex
	tenders   []*models.Tender
	nextID    uint
	saveErr   error
	updateErr error
}

func newFakeTenderRepo(tenders ...*models.Tender) *fakeTenderRepo {
	r := &fakeTenderRepo{tenders: tenders}
	for _, t := range tenders {
		if t.ID > r.nextID {
			r.nextID = t.ID
		}
	}
	return r
}

func (r *fakeTenderRepo) Save(ctx context.Context, tender *models.Tender) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.nextID++
	tender.ID = r.nextID
	r.tenders = append(r.tenders, tender)
	return nil
}

func (r *fakeTenderRepo) Update(ctx context.Context, tender *models.Tender) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return nil
}

func (r *fakeTenderRepo) ByReferenceAndSource(ctx context.Context, referenceID string, sourceID uint) (*models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenders {
		if t.ReferenceID == referenceID && t.SourceID == sourceID && !t.IsDeleted {
			return t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenderRepo) ListDeadlineBetween(ctx context.Context, from, to time.Time) ([]*models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tender
	for _, t := range r.tenders {
		if t.DeadlineDate == nil || t.IsDeleted {
			continue
		}
		if !t.DeadlineDate.Before(from) && !t.DeadlineDate.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTenderRepo) ListUnmatched(ctx context.Context, limit int) ([]*models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tender
	for _, t := range r.tenders {
		if !t.IsMatched && !t.IsDeleted {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTenderRepo) MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tenders {
		if t.DeadlineDate != nil && t.DeadlineDate.Before(cutoff) && t.Status != models.TenderStatusExpired {
			t.Status = models.TenderStatusExpired
			n++
		}
	}
	return n, nil
}

type fakeSourceRepo struct {
	stubRepo[models.Source, models.SourceFilter]
	mu           sync.Mutex
	sources      []*models.Source
	fetchRecords []bool
}

func newFakeSourceRepo(sources ...*models.Source) *fakeSourceRepo {
	return &fakeSourceRepo{sources: sources}
}

func (r *fakeSourceRepo) ByID(ctx context.Context, id uint) (*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSourceRepo) Update(ctx context.Context, source *models.Source) error { return nil }

func (r *fakeSourceRepo) ListActive(ctx context.Context) ([]*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*models.Source
	for _, s := range r.sources {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active, nil
}

func (r *fakeSourceRepo) RecordFetch(ctx context.Context, sourceID uint, fetchedAt time.Time, newTenders int, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchRecords = append(r.fetchRecords, success)
	return nil
}

type fakeHealthRepo struct {
	stubRepo[models.SourceHealth, models.SourceHealthFilter]
	mu   sync.Mutex
	rows map[uint]*models.SourceHealth
}

func newFakeHealthRepo() *fakeHealthRepo {
	return &fakeHealthRepo{rows: map[uint]*models.SourceHealth{}}
}

func (r *fakeHealthRepo) Save(ctx context.Context, health *models.SourceHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	health.ID = uint(len(r.rows) + 1)
	r.rows[health.SourceID] = health
	return nil
}

func (r *fakeHealthRepo) BySourceID(ctx context.Context, sourceID uint) (*models.SourceHealth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.rows[sourceID]; ok {
		return h, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeHealthRepo) Update(ctx context.Context, health *models.SourceHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[health.SourceID] = health
	return nil
}

type fakeFetchRunRepo struct {
	stubRepo[models.FetchRun, models.FetchRunFilter]
	mu   sync.Mutex
	runs []*models.FetchRun
}

func (r *fakeFetchRunRepo) Save(ctx context.Context, run *models.FetchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.ID = uint(len(r.runs) + 1)
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeFetchRunRepo) Update(ctx context.Context, run *models.FetchRun) error { return nil }

func (r *fakeFetchRunRepo) ListBySource(ctx context.Context, sourceID uint, limit, offset int) ([]*models.FetchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FetchRun
	for _, run := range r.runs {
		if run.SourceID == sourceID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *fakeFetchRunRepo) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.FetchRun
	var n int64
	for _, run := range r.runs {
		if run.StartedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, run)
	}
	r.runs = kept
	return n, nil
}

type fakeNotifRepo struct {
	stubRepo[models.Notification, models.NotificationFilter]
	mu      sync.Mutex
	rows    []*models.Notification
	retries map[uint]int
}

func newFakeNotifRepo() *fakeNotifRepo {
	return &fakeNotifRepo{retries: map[uint]int{}}
}

func (r *fakeNotifRepo) Save(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, n)
	return nil
}

func (r *fakeNotifRepo) Update(ctx context.Context, n *models.Notification) error { return nil }

func (r *fakeNotifRepo) ByUserTenderType(ctx context.Context, userID, tenderID uint, notifType models.NotificationType) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == userID && row.TenderID != nil && *row.TenderID == tenderID && row.Type == notifType {
			return row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeNotifRepo) ExistsForTenderType(ctx context.Context, tenderID uint, notifType models.NotificationType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.TenderID != nil && *row.TenderID == tenderID && row.Type == notifType {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotifRepo) ExistsSentForTenderType(ctx context.Context, tenderID uint, notifType models.NotificationType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.TenderID != nil && *row.TenderID == tenderID && row.Type == notifType && row.IsSent {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotifRepo) IncrementRetry(ctx context.Context, notificationID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[notificationID]++
	return nil
}

type fakeUserRepo struct {
	stubRepo[models.User, models.UserFilter]
	users []*models.User
}

func (r *fakeUserRepo) ListActive(ctx context.Context) ([]*models.User, error) {
	var active []*models.User
	for _, u := range r.users {
		if u.IsActive {
			active = append(active, u)
		}
	}
	return active, nil
}

type fakeScraper struct {
	records []scraper.RawTenderRecord
	err     error
}

func (s *fakeScraper) FetchRecords(ctx context.Context, source *models.Source) ([]scraper.RawTenderRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type fakeEmailDeliverer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (d *fakeEmailDeliverer) SendEmail(ctx context.Context, to, subject, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, fmt.Sprintf("%s|%s", to, subject))
	return nil
}

type fakeDesktopDeliverer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (d *fakeDesktopDeliverer) SendDesktop(ctx context.Context, title, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, title)
	return nil
}
