package repository

import (
	"context"
	"errors"

	"github.com/smartrestaurant/gateway/internal/models"
)

// ErrSessionNotFound is returned when no live session exists for a token hash.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository exposes persistence operations for login sessions.
// Sessions are written once at login and only read afterwards.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Delete(ctx context.Context, tokenHash string) error
}
