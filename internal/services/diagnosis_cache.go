package services

import (
	"crypto/sha256"
	"encoding/hex"
	"github.com/maxaizer/jobfeed/internal/entities"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"time"
)

type diagnosisCache struct {
	cache *gocache.Cache
}

func newDiagnosisCache(ttl time.Duration) *diagnosisCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &diagnosisCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *diagnosisCache) get(module, errorTrace string) (*entities.Diagnosis, bool) {
	cached, found := c.cache.Get(createDiagnosisCacheID(module, errorTrace))
	if !found {
		return nil, false
	}
	diagnosis := cached.(entities.Diagnosis)
	return &diagnosis, true
}

func (c *diagnosisCache) put(module, errorTrace string, diagnosis entities.Diagnosis) {
	if err := c.cache.Add(createDiagnosisCacheID(module, errorTrace), diagnosis, gocache.DefaultExpiration); err != nil {
		log.Debugf("diagnosis for %s already cached: %v", module, err)
	}
}

func createDiagnosisCacheID(module, errorTrace string) string {
	traceHash := sha256.Sum256([]byte(errorTrace))
	return module + ":" + hex.EncodeToString(traceHash[:])
}
