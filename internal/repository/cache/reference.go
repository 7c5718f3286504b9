package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/umedi/intake-api/internal/model"
	"github.com/umedi/intake-api/internal/repository"
)

// referenceRepository serves hospital/speciality names from memory. Reference
// rows change rarely; only successful lookups are cached.
type referenceRepository struct {
	next  repository.ReferenceRepository
	cache *cache.Cache
}

// NewReferenceRepository wraps next with a read-through cache. A non-positive
// ttl disables caching and returns next unchanged.
func NewReferenceRepository(next repository.ReferenceRepository, ttl time.Duration) repository.ReferenceRepository {
	if ttl <= 0 {
		return next
	}
	return &referenceRepository{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *referenceRepository) LookupHospitalSpeciality(ctx context.Context, hospitalID int64, specialityCode string) (*model.HospitalSpeciality, error) {
	key := fmt.Sprintf("%d:%s", hospitalID, specialityCode)
	if cached, found := r.cache.Get(key); found {
		names := *cached.(*model.HospitalSpeciality)
		return &names, nil
	}

	names, err := r.next.LookupHospitalSpeciality(ctx, hospitalID, specialityCode)
	if err != nil {
		return nil, err
	}

	stored := *names
	r.cache.Set(key, &stored, cache.DefaultExpiration)
	return names, nil
}
