package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// BoardCache stores the latest dashboard board as JSON.
type BoardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewBoardCache creates a BoardCache. A non-positive ttl uses DefaultBoardTTL.
func NewBoardCache(cache *Cache, ttl time.Duration) *BoardCache {
	if ttl <= 0 {
		ttl = DefaultBoardTTL
	}
	return &BoardCache{cache: cache, ttl: ttl}
}

// SaveBoard overwrites the shared board.
func (b *BoardCache) SaveBoard(ctx context.Context, board *ranking.Board) error {
	if board == nil {
		return ErrCacheNilValue
	}
	if err := b.cache.Set(ctx, b.cache.Key(keyBoard), board, b.ttl); err != nil {
		return fmt.Errorf("save board: %w", err)
	}
	return nil
}

// LoadBoard returns the shared board, or nil when none is cached.
func (b *BoardCache) LoadBoard(ctx context.Context) (*ranking.Board, error) {
	var board ranking.Board
	if err := b.cache.Get(ctx, b.cache.Key(keyBoard), &board); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load board: %w", err)
	}
	return &board, nil
}
