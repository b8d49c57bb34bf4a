package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/mediavault/backend/internal/pkg/logger"
)

// expansionStore is the narrow slice of redis the cache needs. Tests swap in
// an in-memory fake.
type expansionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

var errCacheMiss = errors.New("expansion cache miss")

type redisExpansionStore struct {
	rdb *redis.Client
}

func (r *redisExpansionStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errCacheMiss
	}
	return val, err
}

func (r *redisExpansionStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// TermExpander produces synonym lists for a single search term.
type TermExpander interface {
	ExpandTerm(ctx context.Context, term string) ([]string, error)
}

// ExpansionCache caches query-expansion results in redis so repeated searches
// for the same term do not re-bill the language model. Concurrent misses on
// the same term are coalesced into one upstream call.
type ExpansionCache struct {
	store    expansionStore
	expander TermExpander
	ttl      time.Duration
	group    singleflight.Group
	log      *logger.Logger
}

func NewExpansionCache(rdb *redis.Client, expander TermExpander, ttl time.Duration, log *logger.Logger) *ExpansionCache {
	return &ExpansionCache{
		store:    &redisExpansionStore{rdb: rdb},
		expander: expander,
		ttl:      ttl,
		log:      log.With("service", "expansion_cache"),
	}
}

func expansionKey(term string) string {
	return "search:expansion:" + strings.ToLower(strings.TrimSpace(term))
}

// Expand returns the cached synonym list for term, computing and caching it
// on a miss. Expansion failure is not a search failure: the caller gets an
// empty list and searches the literal term.
func (c *ExpansionCache) Expand(ctx context.Context, term string) []string {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	key := expansionKey(term)

	if raw, err := c.store.Get(ctx, key); err == nil {
		var terms []string
		if jsonErr := json.Unmarshal([]byte(raw), &terms); jsonErr == nil {
			return terms
		}
		c.log.Warn("discarding unreadable cache entry", "key", key)
	} else if !errors.Is(err, errCacheMiss) {
		c.log.Warn("expansion cache read failed", "key", key, "err", err)
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		terms, err := c.expander.ExpandTerm(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", term, err)
		}
		if encoded, jsonErr := json.Marshal(terms); jsonErr == nil {
			if setErr := c.store.Set(ctx, key, string(encoded), c.ttl); setErr != nil {
				c.log.Warn("expansion cache write failed", "key", key, "err", setErr)
			}
		}
		return terms, nil
	})
	if err != nil {
		c.log.Warn("query expansion failed, searching literal term", "term", term, "err", err)
		return nil
	}
	return result.([]string)
}
