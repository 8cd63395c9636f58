package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/smartrestaurant/gateway/internal/models"
)

// LRUSessionRepository keeps sessions in a bounded, expiring in-process cache.
// Entries leave the cache after maxAge or at their own ExpiresAt, whichever is first.
type LRUSessionRepository struct {
	cache *expirable.LRU[string, models.Session]
	now   func() time.Time
}

// NewLRUSessionRepository creates an in-memory session repository
func NewLRUSessionRepository(maxEntries int, maxAge time.Duration) *LRUSessionRepository {
	return &LRUSessionRepository{
		cache: expirable.NewLRU[string, models.Session](maxEntries, nil, maxAge),
		now:   time.Now,
	}
}

// Create stores a copy of the session keyed by its token hash
func (r *LRUSessionRepository) Create(_ context.Context, session *models.Session) error {
	if session == nil || session.TokenHash == "" {
		return fmt.Errorf("create session: token hash is required")
	}
	r.cache.Add(session.TokenHash, session.Clone())
	return nil
}

// GetByTokenHash retrieves a session by its token hash
func (r *LRUSessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	session, ok := r.cache.Get(tokenHash)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Expired(r.now()) {
		r.cache.Remove(tokenHash)
		return nil, ErrSessionNotFound
	}
	out := session.Clone()
	return &out, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *LRUSessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.cache.Remove(tokenHash)
	return nil
}

// Len returns the number of cached sessions, expired entries included until evicted.
func (r *LRUSessionRepository) Len() int {
	return r.cache.Len()
}
