package repository

import (
	"context"
	"time"

	"gifting-service/internal/domain/model"
)

// -----------------------------
// Gifts
// -----------------------------

type GiftRepository interface {
	// Create inserts a new row and assigns g.ID. A duplicate public id yields
	// domain.ErrAlreadyExists.
	Create(ctx context.Context, g *model.Gift) error
	FindByPublicID(ctx context.Context, publicID string) (*model.Gift, error)
	// MarkClaimed atomically sets the claim flag only if it is still false.
	// It returns domain.ErrNotFound or domain.ErrAlreadyClaimed when no row
	// was updated.
	MarkClaimed(ctx context.Context, publicID string, now time.Time) (*model.Gift, error)
}
