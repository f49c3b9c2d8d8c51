package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/labelforge/labelforge-api/internal/repository"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
)

// CacheService wraps the Redis repository behind a nil-safe facade so callers
// do not have to branch on whether caching is configured.
type CacheService struct {
	repo   *repository.CacheRepository
	logger *zap.Logger
}

// NewCacheService constructs the facade. A nil repository yields a disabled
// cache that treats every read as a miss and every write as a no-op.
func NewCacheService(repo *repository.CacheRepository, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, logger: logger}
}

// Enabled reports whether a backing cache is configured.
func (s *CacheService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Get loads the cached value into dest. The boolean reports a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	if err := s.repo.Get(ctx, key, dest); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Set stores the value under key with the provided TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	return s.repo.Set(ctx, key, value, ttl)
}

// Invalidate removes every cached entry matching the pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	return s.repo.DeleteByPattern(ctx, pattern)
}
