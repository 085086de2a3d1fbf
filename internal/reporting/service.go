package reporting

import (
	"context"
	"encoding/json"
	"strconv"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTopSellerLimit = 10
	defaultLowStockLevel  = 5
)

// Service serves reports through the cache, collapsing concurrent misses for
// the same key into a single database query.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

// NewService constructs the reporting service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Summary returns the headline figures for the period.
func (s *Service) Summary(ctx context.Context, period Range) (*Summary, error) {
	var out Summary
	err := s.fetch(ctx, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.Summary(ctx, period)
	}, "reporting", "summary", rangeToken(period))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TopSellers returns the best-selling products for the period.
func (s *Service) TopSellers(ctx context.Context, period Range, limit int) ([]TopSeller, error) {
	if limit <= 0 {
		limit = defaultTopSellerLimit
	}
	var out []TopSeller
	err := s.fetch(ctx, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.TopSellers(ctx, period, limit)
	}, "reporting", "top_sellers", rangeToken(period), strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LowStock returns products at or below the threshold. Not cached: the admin
// wants the live counter here.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]LowStockItem, error) {
	if threshold <= 0 {
		threshold = defaultLowStockLevel
	}
	return s.repo.LowStock(ctx, threshold)
}

// DailyRevenue returns the per-day revenue series for the period.
func (s *Service) DailyRevenue(ctx context.Context, period Range) ([]DailyRevenue, error) {
	var out []DailyRevenue
	err := s.fetch(ctx, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.DailyRevenue(ctx, period)
	}, "reporting", "daily_revenue", rangeToken(period))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops every cached report. The order engine calls this after a
// checkout or cancellation commits.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// fetch collapses concurrent requests for the same key; every waiter
// decodes its own copy of the shared payload.
func (s *Service) fetch(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error), keyParts ...string) error {
	key, err := s.cache.BuildKey(ctx, keyParts...)
	if err != nil {
		return err
	}
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

func rangeToken(period Range) string {
	const layout = "2006-01-02"
	from, to := "open", "open"
	if !period.From.IsZero() {
		from = period.From.Format(layout)
	}
	if !period.To.IsZero() {
		to = period.To.Format(layout)
	}
	return from + ".." + to
}
