package businessflow

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/repository"
	"github.com/tenderintel/tender-intel/utils"
)

// KeywordInvalidationChannel is the redis pub/sub channel that keyword
// mutations are announced on. Subscribers drop their cached index so the
// next match pass sees fresh definitions.
const KeywordInvalidationChannel = "keywords:invalidate"

const defaultIndexTTL = 5 * time.Minute

// CompiledKeyword is an active keyword with its matcher prepared once at
// load time instead of per match call.
type CompiledKeyword struct {
	Keyword models.Keyword

	// pattern is set for whole-word keywords; substring keywords match
	// without a regex.
	pattern *regexp.Regexp
	// needle is the substring to search for, pre-folded for
	// case-insensitive keywords.
	needle string
}

// compileKeyword prepares the matcher for one keyword definition
func compileKeyword(k models.Keyword) (*CompiledKeyword, error) {
	text := k.Keyword
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("keyword %d has empty text", k.ID)
	}

	ck := &CompiledKeyword{Keyword: k}

	if k.MatchWholeWord {
		expr := `\b` + regexp.QuoteMeta(text) + `\b`
		if !k.IsCaseSensitive {
			expr = `(?i)` + expr
		}
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("keyword %d pattern: %w", k.ID, err)
		}
		ck.pattern = pattern
		return ck, nil
	}

	if k.IsCaseSensitive {
		ck.needle = text
	} else {
		ck.needle = strings.ToLower(text)
	}
	return ck, nil
}

// matches reports whether the keyword occurs in the given text
func (ck *CompiledKeyword) matches(text string) bool {
	if text == "" {
		return false
	}
	if ck.pattern != nil {
		return ck.pattern.MatchString(text)
	}
	if ck.Keyword.IsCaseSensitive {
		return strings.Contains(text, ck.needle)
	}
	return strings.Contains(strings.ToLower(text), ck.needle)
}

// MatchLocation checks title, then description, then document text, and
// returns the first location containing the keyword. A keyword matches at
// most one location per tender.
func (ck *CompiledKeyword) MatchLocation(title, description, document string) (models.MatchLocation, bool) {
	if ck.matches(title) {
		return models.MatchLocationTitle, true
	}
	if ck.matches(description) {
		return models.MatchLocationDescription, true
	}
	if ck.matches(document) {
		return models.MatchLocationDocument, true
	}
	return "", false
}

// KeywordIndex caches compiled matchers for all active keywords. The cache
// refreshes on a TTL or an explicit invalidation signal; stale reads during
// the window are acceptable because matching is idempotent and reconciles on
// the next pass.
type KeywordIndex struct {
	keywordRepo repository.KeywordRepository
	logger      *log.Logger
	ttl         time.Duration

	mu       sync.RWMutex
	compiled []*CompiledKeyword
	loadedAt time.Time
}

func NewKeywordIndex(keywordRepo repository.KeywordRepository, logger *log.Logger, ttl time.Duration) *KeywordIndex {
	if ttl <= 0 {
		ttl = defaultIndexTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &KeywordIndex{
		keywordRepo: keywordRepo,
		logger:      logger,
		ttl:         ttl,
	}
}

// Snapshot returns the current compiled keyword set, refreshing from storage
// when the cache is cold or past its TTL.
func (idx *KeywordIndex) Snapshot(ctx context.Context) ([]*CompiledKeyword, error) {
	idx.mu.RLock()
	if !idx.loadedAt.IsZero() && utils.UTCNow().Sub(idx.loadedAt) < idx.ttl {
		compiled := idx.compiled
		idx.mu.RUnlock()
		return compiled, nil
	}
	idx.mu.RUnlock()

	if err := idx.Refresh(ctx); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.compiled, nil
}

// Refresh reloads active keywords and recompiles their matchers. A keyword
// that fails to compile is skipped with a warning, never a hard failure.
func (idx *KeywordIndex) Refresh(ctx context.Context) error {
	keywords, err := idx.keywordRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active keywords: %w", err)
	}

	compiled := make([]*CompiledKeyword, 0, len(keywords))
	for _, k := range keywords {
		ck, err := compileKeyword(*k)
		if err != nil {
			idx.logger.Printf("keyword index: skipping keyword %d (%q): %v", k.ID, k.Keyword, err)
			continue
		}
		compiled = append(compiled, ck)
	}

	idx.mu.Lock()
	idx.compiled = compiled
	idx.loadedAt = utils.UTCNow()
	idx.mu.Unlock()

	idx.logger.Printf("keyword index: loaded %d active keywords", len(compiled))
	return nil
}

// Invalidate drops the cache so the next Snapshot reloads from storage
func (idx *KeywordIndex) Invalidate() {
	idx.mu.Lock()
	idx.loadedAt = time.Time{}
	idx.mu.Unlock()
}

// StartInvalidationListener subscribes to the keyword invalidation channel
// and drops the cache on every message. It returns a stop function.
func (idx *KeywordIndex) StartInvalidationListener(parent context.Context, client *redis.Client) func() {
	ctx, cancel := context.WithCancel(parent)
	sub := client.Subscribe(ctx, KeywordInvalidationChannel)

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				idx.logger.Printf("keyword index: invalidation signal received (%s)", msg.Payload)
				idx.Invalidate()
			}
		}
	}()

	return cancel
}

// PublishInvalidation announces a keyword mutation to all pipeline processes
func PublishInvalidation(ctx context.Context, client *redis.Client, reason string) error {
	return client.Publish(ctx, KeywordInvalidationChannel, reason).Err()
}
