package common

import (
	"context"
	"time"

	"github.com/jbandu/fleetscraper/internal/db/repositories"
	"github.com/jbandu/fleetscraper/internal/models/entities"
)

const typeSpecTTL = 6 * time.Hour

// TypeSpecCache fronts aircraft-type lookups with the in-process cache. Type
// specs change on the timescale of fleet programs, not scrape runs.
type TypeSpecCache struct {
	cache *CacheService
	repo  *repositories.AircraftTypeRepository
}

func NewTypeSpecCache(cache *CacheService, repo *repositories.AircraftTypeRepository) *TypeSpecCache {
	return &TypeSpecCache{cache: cache, repo: repo}
}

// FindByCode resolves a type code through the cache. Misses (unknown types)
// are not negatively cached so a later seed import is picked up.
func (t *TypeSpecCache) FindByCode(ctx context.Context, code string) (*entities.AircraftType, error) {
	val, err := t.cache.GetOrSet("typespec:"+code, typeSpecTTL, func() (interface{}, error) {
		return t.repo.FindByCode(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	return val.(*entities.AircraftType), nil
}
