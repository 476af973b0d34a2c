package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/store/cache"
)

// ErrConflict is returned by drivers when a unique constraint rejects a write.
var ErrConflict = errors.New("conflict with an existing record")

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	userCache *cache.Cache
	broker    *broker
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		profile:   profile,
		driver:    driver,
		userCache: cache.New(cache.DefaultConfig()),
		broker:    newBroker(),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.driver.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate")
	}
	return nil
}

func (s *Store) Close() error {
	s.broker.close()
	s.userCache.Close()
	return s.driver.Close()
}
