package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/catalog"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/pkg/cache"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"go.uber.org/zap"
)

type catalogUseCase struct {
	repo   catalog.Repository
	cache  *cache.RedisClient
	ttl    time.Duration
	logger logger.ZapLogger
}

// NewCatalogUseCase builds a read-through lookup. A nil cache reads the
// repository every time.
func NewCatalogUseCase(repo catalog.Repository, cache *cache.RedisClient, ttl time.Duration, log logger.ZapLogger) catalog.UseCase {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &catalogUseCase{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: log,
	}
}

func (uc *catalogUseCase) GetService(ctx context.Context, id int64) (*model.CatalogService, error) {
	key := fmt.Sprintf("catalog:service:%d", id)
	var s model.CatalogService
	if uc.fromCache(ctx, key, &s) {
		return &s, nil
	}

	found, err := uc.repo.FindService(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil || !found.IsActive {
		return nil, apperror.NotFound("service", id)
	}
	uc.toCache(ctx, key, found)
	return found, nil
}

func (uc *catalogUseCase) GetPart(ctx context.Context, id int64) (*model.CatalogPart, error) {
	key := fmt.Sprintf("catalog:part:%d", id)
	var p model.CatalogPart
	if uc.fromCache(ctx, key, &p) {
		return &p, nil
	}

	found, err := uc.repo.FindPart(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil || !found.IsActive {
		return nil, apperror.NotFound("part", id)
	}
	uc.toCache(ctx, key, found)
	return found, nil
}

func (uc *catalogUseCase) fromCache(ctx context.Context, key string, dst any) bool {
	if uc.cache == nil {
		return false
	}
	val, err := uc.cache.Client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		uc.logger.Warn("Discarding unreadable catalog cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (uc *catalogUseCase) toCache(ctx context.Context, key string, v any) {
	if uc.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := uc.cache.Client.Set(ctx, key, data, uc.ttl).Err(); err != nil {
		uc.logger.Warn("Failed to cache catalog entry", zap.String("key", key), zap.Error(err))
	}
}
