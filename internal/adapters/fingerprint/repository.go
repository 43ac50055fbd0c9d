package fingerprint

import (
	"context"
	"errors"
	"sync"
)

// VendorRepository resolves an OUI prefix to a vendor name.
type VendorRepository interface {
	LookupVendor(ctx context.Context, prefix Prefix) (string, error)
	Close() error
}

// RepositoryStats describes the registry backing a repository.
type RepositoryStats struct {
	TotalEntries int
	CacheHits    int64
	CacheMisses  int64
	LastUpdated  string
}

// CompositeVendorRepository asks each repository in order until one answers.
type CompositeVendorRepository struct {
	mu    sync.RWMutex
	repos []VendorRepository
}

// NewCompositeVendorRepository chains repos in lookup order.
func NewCompositeVendorRepository(repos ...VendorRepository) *CompositeVendorRepository {
	return &CompositeVendorRepository{repos: repos}
}

// Append adds a repository at the end of the chain.
func (c *CompositeVendorRepository) Append(repo VendorRepository) {
	c.mu.Lock()
	c.repos = append(c.repos, repo)
	c.mu.Unlock()
}

func (c *CompositeVendorRepository) LookupVendor(ctx context.Context, prefix Prefix) (string, error) {
	c.mu.RLock()
	repos := c.repos
	c.mu.RUnlock()

	var lastErr error
	for _, repo := range repos {
		vendor, err := repo.LookupVendor(ctx, prefix)
		if err == nil && vendor != "" && vendor != UnknownVendor {
			return vendor, nil
		}
		if err != nil && !errors.Is(err, ErrVendorNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrVendorNotFound
}

func (c *CompositeVendorRepository) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var errs []error
	for _, repo := range c.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StaticVendorRepository serves lookups from an in-memory table keyed by "XX:XX:XX".
type StaticVendorRepository struct {
	vendors map[string]string
}

func NewStaticVendorRepository(vendors map[string]string) *StaticVendorRepository {
	return &StaticVendorRepository{vendors: vendors}
}

func (s *StaticVendorRepository) LookupVendor(_ context.Context, prefix Prefix) (string, error) {
	if vendor, ok := s.vendors[prefix.String()]; ok {
		return vendor, nil
	}
	return "", ErrVendorNotFound
}

func (s *StaticVendorRepository) Close() error { return nil }
