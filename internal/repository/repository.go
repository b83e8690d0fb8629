// Package repository defines the persistence ports of the shop.
package repository

import (
	"context"

	"github.com/utafrali/tgshop/internal/catalog"
	"github.com/utafrali/tgshop/internal/domain"
)

// SessionRepository persists one cart session per chat user.
type SessionRepository interface {
	// Get returns the user's session, or an apperrors NotFound error.
	Get(ctx context.Context, userID string) (*domain.Session, error)

	// SaveIfVersion stores s only if the stored version still equals
	// expected (0 when no session exists yet). On success s.Version is
	// advanced. A mismatch returns an apperrors Conflict error.
	SaveIfVersion(ctx context.Context, s *domain.Session, expected int) error
}

// CatalogSource loads the reference tables at startup.
type CatalogSource interface {
	Load(ctx context.Context) (*catalog.Catalog, error)
}
