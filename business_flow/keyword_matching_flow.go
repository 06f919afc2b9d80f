package businessflow

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/lib/pq"
	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/repository"
	"github.com/tenderintel/tender-intel/utils"
)

// KeywordMatcher finds and persists keyword matches for tenders. It runs on
// every newly created tender and again whenever a tender's content hash
// changes; both paths are idempotent.
type KeywordMatcher struct {
	index       *KeywordIndex
	keywordRepo repository.KeywordRepository
	matchRepo   repository.TenderKeywordMatchRepository
	tenderRepo  repository.TenderRepository
	logger      *log.Logger
}

func NewKeywordMatcher(
	index *KeywordIndex,
	keywordRepo repository.KeywordRepository,
	matchRepo repository.TenderKeywordMatchRepository,
	tenderRepo repository.TenderRepository,
	logger *log.Logger,
) *KeywordMatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &KeywordMatcher{
		index:       index,
		keywordRepo: keywordRepo,
		matchRepo:   matchRepo,
		tenderRepo:  tenderRepo,
		logger:      logger,
	}
}

// MatchAndPersist matches the tender against the active keyword index and
// persists the results. It returns the number of keywords matched in this
// pass and those keywords sorted for downstream consumers.
//
// Persistence is idempotent: an existing (tender, keyword) row is never
// duplicated, and the tender's match statistics always reflect the full
// current match set rather than only new additions.
func (m *KeywordMatcher) MatchAndPersist(ctx context.Context, tender *models.Tender) (int, []*models.Keyword, error) {
	compiled, err := m.index.Snapshot(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("keyword matching for tender %d: %w", tender.ID, err)
	}
	if len(compiled) == 0 {
		return 0, nil, nil
	}

	title := tender.Title
	description := tender.DescriptionText()
	document := ""
	if tender.DocumentText != nil {
		document = *tender.DocumentText
	}

	type hit struct {
		keyword  *models.Keyword
		location models.MatchLocation
	}
	var hits []hit
	for _, ck := range compiled {
		location, ok := ck.MatchLocation(title, description, document)
		if !ok {
			continue
		}
		k := ck.Keyword
		hits = append(hits, hit{keyword: &k, location: location})
	}

	// Existing rows feed both dedup and the full current match set.
	existing, err := m.matchRepo.ByTender(ctx, tender.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("loading existing matches for tender %d: %w", tender.ID, err)
	}
	existingIDs := make(map[uint]bool, len(existing))
	for _, row := range existing {
		existingIDs[row.KeywordID] = true
	}

	now := utils.UTCNow()
	matchedNow := make([]*models.Keyword, 0, len(hits))
	fullSet := make(map[uint]bool, len(existing)+len(hits))
	for id := range existingIDs {
		fullSet[id] = true
	}

	for _, h := range hits {
		matchedNow = append(matchedNow, h.keyword)
		fullSet[h.keyword.ID] = true

		if !existingIDs[h.keyword.ID] {
			row := &models.TenderKeywordMatch{
				TenderID:      tender.ID,
				KeywordID:     h.keyword.ID,
				MatchLocation: h.location,
			}
			if err := m.matchRepo.Save(ctx, row); err != nil {
				return 0, nil, fmt.Errorf("saving match tender=%d keyword=%d: %w", tender.ID, h.keyword.ID, err)
			}
			m.logger.Printf("matcher: keyword %q matched tender %d (%s)", h.keyword.Keyword, tender.ID, h.location)
		}

		// Statistics advance on every match pass, not only on new rows,
		// so last_match_date tracks latest relevance.
		if err := m.keywordRepo.IncrementMatchStats(ctx, h.keyword.ID, now); err != nil {
			m.logger.Printf("matcher: failed to update stats for keyword %d: %v", h.keyword.ID, err)
		} else {
			h.keyword.MatchCount++
			h.keyword.LastMatchDate = &now
		}
	}

	SortKeywordsByPriority(matchedNow)

	tender.MatchedKeywordIDs = fullMatchIDs(matchedNow, existingIDs)
	tender.KeywordMatchCount = len(fullSet)
	tender.IsMatched = len(fullSet) > 0
	if err := m.tenderRepo.Update(ctx, tender); err != nil {
		return 0, nil, fmt.Errorf("updating match stats on tender %d: %w", tender.ID, err)
	}

	return len(matchedNow), matchedNow, nil
}

// fullMatchIDs orders the tender's matched keyword IDs: this pass's keywords
// in ranked order first, then previously matched keywords by ID.
func fullMatchIDs(matchedNow []*models.Keyword, existingIDs map[uint]bool) pq.Int64Array {
	seen := make(map[uint]bool, len(matchedNow)+len(existingIDs))
	ids := make(pq.Int64Array, 0, len(matchedNow)+len(existingIDs))
	for _, k := range matchedNow {
		if !seen[k.ID] {
			seen[k.ID] = true
			ids = append(ids, int64(k.ID))
		}
	}
	var rest []uint
	for id := range existingIDs {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, id := range rest {
		ids = append(ids, int64(id))
	}
	return ids
}

// SortKeywordsByPriority orders keywords high → medium → low, breaking ties
// with the keyword score (priority weight + 10 × match count).
func SortKeywordsByPriority(keywords []*models.Keyword) {
	rank := func(p models.KeywordPriority) int {
		switch p {
		case models.KeywordPriorityHigh:
			return 0
		case models.KeywordPriorityMedium:
			return 1
		case models.KeywordPriorityLow:
			return 2
		default:
			return 3
		}
	}
	sort.SliceStable(keywords, func(i, j int) bool {
		ri, rj := rank(keywords[i].Priority), rank(keywords[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return keywords[i].Score() > keywords[j].Score()
	})
}
