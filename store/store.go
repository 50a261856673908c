package store

import (
	"time"

	"github.com/medrecall/medrecall/internal/profile"
	"github.com/medrecall/medrecall/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Caches. Taxonomy entries change only at seed time; context mappings are
	// permanent memoizations, so both are safe to cache in process.
	taxonomyCache *cache.Cache
	mappingCache  *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		taxonomyCache: cache.New(cache.Config{
			DefaultTTL:      time.Hour,
			CleanupInterval: 10 * time.Minute,
			MaxItems:        256,
		}),
		mappingCache: cache.New(cache.Config{
			DefaultTTL:      time.Hour,
			CleanupInterval: 10 * time.Minute,
			MaxItems:        4096,
		}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Profile() *profile.Profile {
	return s.profile
}

func (s *Store) Close() error {
	s.taxonomyCache.Close()
	s.mappingCache.Close()
	return s.driver.Close()
}
