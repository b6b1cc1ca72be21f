package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
)

type suggestionEntry struct {
	suggestions []reconciliation.MatchSuggestion
	expiresAt   time.Time
}

// InMemorySuggestionCache keeps suggestions in process memory.
// Expired entries are dropped lazily on read.
type InMemorySuggestionCache struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]map[uuid.UUID]suggestionEntry
	ttl      time.Duration
	now      func() time.Time
}

// InMemoryOption configures an InMemorySuggestionCache
type InMemoryOption func(*InMemorySuggestionCache)

// WithClock overrides the time source
func WithClock(now func() time.Time) InMemoryOption {
	return func(c *InMemorySuggestionCache) {
		c.now = now
	}
}

// NewInMemorySuggestionCache creates an in-memory cache; ttl <= 0 never expires
func NewInMemorySuggestionCache(ttl time.Duration, opts ...InMemoryOption) *InMemorySuggestionCache {
	c := &InMemorySuggestionCache{
		accounts: make(map[uuid.UUID]map[uuid.UUID]suggestionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements reconciliation.SuggestionCache
func (c *InMemorySuggestionCache) Get(_ context.Context, accountID, lineID uuid.UUID) ([]reconciliation.MatchSuggestion, bool, error) {
	c.mu.RLock()
	e, ok := c.accounts[accountID][lineID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.accounts[accountID], lineID)
		c.mu.Unlock()
		return nil, false, nil
	}
	return slices.Clone(e.suggestions), true, nil
}

// Set implements reconciliation.SuggestionCache
func (c *InMemorySuggestionCache) Set(_ context.Context, accountID, lineID uuid.UUID, suggestions []reconciliation.MatchSuggestion) error {
	e := suggestionEntry{suggestions: slices.Clone(suggestions)}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	lines, ok := c.accounts[accountID]
	if !ok {
		lines = make(map[uuid.UUID]suggestionEntry)
		c.accounts[accountID] = lines
	}
	lines[lineID] = e
	return nil
}

// InvalidateAccount implements reconciliation.SuggestionCache
func (c *InMemorySuggestionCache) InvalidateAccount(_ context.Context, accountID uuid.UUID) error {
	c.mu.Lock()
	delete(c.accounts, accountID)
	c.mu.Unlock()
	return nil
}

// NopSuggestionCache never stores anything
type NopSuggestionCache struct{}

func (NopSuggestionCache) Get(context.Context, uuid.UUID, uuid.UUID) ([]reconciliation.MatchSuggestion, bool, error) {
	return nil, false, nil
}

func (NopSuggestionCache) Set(context.Context, uuid.UUID, uuid.UUID, []reconciliation.MatchSuggestion) error {
	return nil
}

func (NopSuggestionCache) InvalidateAccount(context.Context, uuid.UUID) error {
	return nil
}

var (
	_ reconciliation.SuggestionCache = (*InMemorySuggestionCache)(nil)
	_ reconciliation.SuggestionCache = NopSuggestionCache{}
)
