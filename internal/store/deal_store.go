// Package store owns the in-memory deal list. The cache is a derived,
// best-effort mirror keyed by user id; the last successful network response
// always wins wholesale.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"securedeal-client/internal/cache"
	"securedeal-client/internal/domain"
)

// DealFetcher is the slice of the API client the store needs.
type DealFetcher interface {
	UserDeals(ctx context.Context, userID, secureID string, page, limit int) (*Page, error)
}

// Page mirrors apiclient.DealsPage without importing it, keeping the store
// testable against fakes.
type Page struct {
	Deals      []domain.Deal
	TotalPages int
	Limit      int
}

type Pagination struct {
	Page       int
	Limit      int
	TotalPages int
}

type DealStore struct {
	mu         sync.RWMutex
	deals      []domain.Deal
	pagination Pagination
	loading    bool
	lastErr    string

	store  cache.Store
	logger *zap.Logger
}

func New(store cache.Store, logger *zap.Logger) *DealStore {
	return &DealStore{
		pagination: Pagination{Page: 1, Limit: 50},
		store:      store,
		logger:     logger,
	}
}

// Deals returns a copy of the current list.
func (s *DealStore) Deals() []domain.Deal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Deal, len(s.deals))
	copy(out, s.deals)
	return out
}

func (s *DealStore) Get(dealID string) (*domain.Deal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.deals {
		if s.deals[i].ID == dealID {
			d := s.deals[i]
			return &d, true
		}
	}
	return nil, false
}

func (s *DealStore) Pagination() Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

func (s *DealStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last fetch error surface, empty when the last fetch
// succeeded.
func (s *DealStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// WarmStart paints the last cached list before any network round trip.
// A miss or decode failure leaves the store empty without error surface.
func (s *DealStore) WarmStart(ctx context.Context, userID string) {
	raw, err := s.store.Get(ctx, cache.DealsKey(userID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("deal cache read failed", zap.String("userId", userID), zap.Error(err))
		}
		return
	}
	var deals []domain.Deal
	if err := json.Unmarshal(raw, &deals); err != nil {
		s.logger.Warn("deal cache decode failed", zap.String("userId", userID), zap.Error(err))
		return
	}
	if len(deals) == 0 {
		return
	}
	s.mu.Lock()
	s.deals = deals
	s.mu.Unlock()
}

// Refresh revalidates against the remote list. On success the store state is
// replaced wholesale and the cache overwritten; on failure the error flag is
// set and already-displayed data stays untouched.
func (s *DealStore) Refresh(ctx context.Context, fetch DealFetcher, user *domain.User) error {
	s.mu.Lock()
	s.loading = true
	page, limit := s.pagination.Page, s.pagination.Limit
	s.mu.Unlock()

	result, err := fetch.UserDeals(ctx, user.ID, user.SecureID, page, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		s.lastErr = err.Error()
		return err
	}

	s.deals = result.Deals
	s.pagination.TotalPages = result.TotalPages
	if result.Limit > 0 {
		s.pagination.Limit = result.Limit
	}
	s.lastErr = ""

	s.persistLocked(ctx, user.ID)
	return nil
}

// ApplyTransition replaces the matching deal's status after the remote call
// reported success, then rewrites the cache. The local state machine still
// validates the move so a drifted cache cannot produce an illegal status.
func (s *DealStore) ApplyTransition(ctx context.Context, userID, dealID string, to domain.DealStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.deals {
		if s.deals[i].ID != dealID {
			continue
		}
		if err := s.deals[i].Transition(to); err != nil {
			return err
		}
		s.persistLocked(ctx, userID)
		return nil
	}
	return fmt.Errorf("deal %s not in store", dealID)
}

// Prepend puts a freshly created deal at the head of the list.
func (s *DealStore) Prepend(ctx context.Context, userID string, deal domain.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals = append([]domain.Deal{deal}, s.deals...)
	s.persistLocked(ctx, userID)
}

// Remove drops a deleted deal from the list.
func (s *DealStore) Remove(ctx context.Context, userID, dealID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.deals[:0]
	for _, d := range s.deals {
		if d.ID != dealID {
			kept = append(kept, d)
		}
	}
	s.deals = kept
	s.persistLocked(ctx, userID)
}

// SetPage moves the pagination cursor for the next Refresh.
func (s *DealStore) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page > 0 {
		s.pagination.Page = page
	}
}

func (s *DealStore) persistLocked(ctx context.Context, userID string) {
	raw, err := json.Marshal(s.deals)
	if err != nil {
		s.logger.Warn("deal cache encode failed", zap.Error(err))
		return
	}
	if err := s.store.Put(ctx, cache.DealsKey(userID), raw); err != nil {
		s.logger.Warn("deal cache write failed", zap.String("userId", userID), zap.Error(err))
	}
}
