package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenderintel/tender-intel/utils"
)

func TestKeywordScore(t *testing.T) {
	tests := []struct {
		name    string
		keyword Keyword
		want    int
	}{
		{"high priority no matches", Keyword{Priority: KeywordPriorityHigh}, 1000},
		{"medium priority no matches", Keyword{Priority: KeywordPriorityMedium}, 500},
		{"low priority no matches", Keyword{Priority: KeywordPriorityLow}, 100},
		{"matches add ten points each", Keyword{Priority: KeywordPriorityMedium, MatchCount: 7}, 570},
		{"busy low keyword can outscore quiet medium", Keyword{Priority: KeywordPriorityLow, MatchCount: 45}, 550},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.keyword.Score())
		})
	}
}

func TestTenderDeadlineHelpers(t *testing.T) {
	in3 := utils.UTCToday().AddDate(0, 0, 3)
	past := utils.UTCToday().AddDate(0, 0, -1)

	withDeadline := &Tender{DeadlineDate: &in3}
	days := withDeadline.DaysUntilDeadline()
	require.NotNil(t, days)
	assert.Equal(t, 3, *days)
	assert.False(t, withDeadline.IsExpired())

	expired := &Tender{DeadlineDate: &past}
	assert.True(t, expired.IsExpired())

	noDeadline := &Tender{}
	assert.Nil(t, noDeadline.DaysUntilDeadline())
	assert.False(t, noDeadline.IsExpired())
}

func TestTenderDescriptionText(t *testing.T) {
	assert.Equal(t, "", (&Tender{}).DescriptionText())
	assert.Equal(t, "scope", (&Tender{Description: utils.ToPtr("scope")}).DescriptionText())
}

func TestNotificationMarkDelivered(t *testing.T) {
	n := &Notification{}
	n.MarkDelivered()
	assert.False(t, n.IsSent)
	assert.Nil(t, n.SentAt)

	n.DesktopSent = true
	n.MarkDelivered()
	assert.True(t, n.IsSent)
	require.NotNil(t, n.SentAt)
	firstSentAt := *n.SentAt

	// A later successful channel never moves sent_at.
	time.Sleep(5 * time.Millisecond)
	n.EmailSent = true
	n.MarkDelivered()
	assert.True(t, n.IsSent)
	assert.Equal(t, firstSentAt, *n.SentAt)
}

func TestNotificationChannelSelection(t *testing.T) {
	assert.True(t, NotificationChannelBoth.IncludesEmail())
	assert.True(t, NotificationChannelBoth.IncludesDesktop())
	assert.True(t, NotificationChannelEmail.IncludesEmail())
	assert.False(t, NotificationChannelEmail.IncludesDesktop())
	assert.False(t, NotificationChannelDesktop.IncludesEmail())
	assert.True(t, NotificationChannelDesktop.IncludesDesktop())
}

func TestFetchRunFinalize(t *testing.T) {
	run := &FetchRun{StartedAt: utils.UTCNow().Add(-3 * time.Second), Status: FetchRunStatusRunning}
	assert.False(t, run.Status.IsTerminal())

	run.Finalize(FetchRunStatusSuccess)

	assert.Equal(t, FetchRunStatusSuccess, run.Status)
	assert.True(t, run.Status.IsTerminal())
	require.NotNil(t, run.CompletedAt)
	require.NotNil(t, run.DurationSeconds)
	assert.GreaterOrEqual(t, *run.DurationSeconds, 3)
}

func TestSourceBeforeCreateDefaults(t *testing.T) {
	s := Source{Name: "city-portal", URL: "https://tenders.example.gov"}
	require.NoError(t, s.BeforeCreate(nil))

	assert.Equal(t, SourceStatusActive, s.Status)
	assert.Equal(t, LoginTypePublic, s.LoginType)
	assert.Equal(t, ScraperTypeHTML, s.ScraperType)
	assert.False(t, s.CreatedAt.IsZero())

	// Explicit values survive the hook.
	parked := Source{Name: "parked", URL: "https://parked.example.gov", Status: SourceStatusDisabled}
	require.NoError(t, parked.BeforeCreate(nil))
	assert.Equal(t, SourceStatusDisabled, parked.Status)
}

func TestStatusEnumValidation(t *testing.T) {
	assert.True(t, SourceStatusActive.Valid())
	assert.True(t, SourceStatusError.Valid())
	assert.False(t, SourceStatus("bogus").Valid())

	assert.True(t, TenderStatusNew.Valid())
	assert.False(t, TenderStatus("archived").Valid())

	assert.True(t, FetchRunStatusFailed.Valid())
	assert.False(t, FetchRunStatus("").Valid())

	assert.True(t, NotificationTypeKeywordMatch.Valid())
	assert.False(t, NotificationType("telegram").Valid())

	assert.True(t, KeywordPriorityHigh.Valid())
	assert.False(t, KeywordPriority("urgent").Valid())
}

func TestStatusScanAndValue(t *testing.T) {
	var s SourceStatus
	require.NoError(t, s.Scan("warning"))
	assert.Equal(t, SourceStatusWarning, s)

	require.NoError(t, s.Scan([]byte("error")))
	assert.Equal(t, SourceStatusError, s)

	v, err := SourceStatusActive.Value()
	require.NoError(t, err)
	assert.Equal(t, "active", v)

	_, err = SourceStatus("bogus").Value()
	assert.Error(t, err)

	assert.Error(t, s.Scan(42))
}

func TestSelectorConfigRoundTrip(t *testing.T) {
	cfg := SelectorConfig{
		ListItem: "div.tender",
		Title:    ".title",
		Deadline: ".deadline",
		MaxPages: 3,
	}

	v, err := cfg.Value()
	require.NoError(t, err)

	var decoded SelectorConfig
	require.NoError(t, decoded.Scan(v))
	assert.Equal(t, cfg, decoded)

	var fromNil SelectorConfig
	require.NoError(t, fromNil.Scan(nil))
	assert.Equal(t, SelectorConfig{}, fromNil)
}
