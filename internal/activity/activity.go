// Package activity provides quote activity counting for leads.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/dealerstack/onroad/internal/domain"
)

// Service counts how many quotes a lead has generated recently. The
// count feeds repeat-enquiry offers.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new activity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// GetQuoteCount returns the number of quotes a lead generated within a
// time window. The cache counter bumped by RecordQuote answers first;
// a cold counter falls back to counting persisted snapshots. This is
// the ActivityGetter signature expected by the offer engine.
func (s *Service) GetQuoteCount(ctx context.Context, tenantID, leadID string, windowSecs int) (int64, error) {
	if tenantID == "" || leadID == "" {
		return 0, fmt.Errorf("tenantID and leadID are required")
	}

	if s.cache != nil {
		count, err := s.cache.GetCounter(ctx, tenantID, "quotes:"+leadID)
		if err == nil && count > 0 {
			return count, nil
		}
	}

	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	return s.countFromRepo(ctx, tenantID, leadID, since)
}

// countFromRepo uses the repository to fetch snapshots and count them.
func (s *Service) countFromRepo(ctx context.Context, tenantID, leadID string, since time.Time) (int64, error) {
	snaps, err := s.repo.GetSnapshotsByLead(ctx, tenantID, leadID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to get snapshots: %w", err)
	}
	return int64(len(snaps)), nil
}

// RecordQuote bumps the fast counter for a lead. The windowed counter
// lives in the cache so repeated quoting is visible without a DB query.
func (s *Service) RecordQuote(ctx context.Context, tenantID, leadID string, window time.Duration) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.IncrementCounter(ctx, tenantID, "quotes:"+leadID, window)
}

// GetActivityGetter returns an ActivityGetter function for the offer engine.
func (s *Service) GetActivityGetter() func(ctx context.Context, tenantID, leadID string, windowSecs int) (int64, error) {
	return s.GetQuoteCount
}
