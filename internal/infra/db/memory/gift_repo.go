package memory

import (
	"context"
	"sync"
	"time"

	"gifting-service/internal/domain"
	"gifting-service/internal/domain/model"
	"gifting-service/internal/domain/ports/repository"
)

var _ repository.GiftRepository = (*GiftRepo)(nil)

// GiftRepo keeps gifts in process memory. It is meant for single-instance dev
// runs; all state is lost on restart.
type GiftRepo struct {
	mu    sync.RWMutex
	byPub map[string]*model.Gift
	seq   int64
}

func NewGiftRepo() *GiftRepo {
	return &GiftRepo{byPub: make(map[string]*model.Gift)}
}

func (r *GiftRepo) Create(ctx context.Context, g *model.Gift) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil || g.PublicID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPub[g.PublicID]; ok {
		return domain.ErrAlreadyExists
	}
	r.seq++
	g.ID = r.seq
	r.byPub[g.PublicID] = clone(g)
	return nil
}

func (r *GiftRepo) FindByPublicID(ctx context.Context, publicID string) (*model.Gift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byPub[publicID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(g), nil
}

// MarkClaimed is the conditional unclaimed -> claimed transition.
func (r *GiftRepo) MarkClaimed(ctx context.Context, publicID string, now time.Time) (*model.Gift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byPub[publicID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := g.MarkClaimed(now); err != nil {
		return nil, err
	}
	return clone(g), nil
}

func clone(g *model.Gift) *model.Gift {
	cp := *g
	if g.ClaimedAt != nil {
		t := *g.ClaimedAt
		cp.ClaimedAt = &t
	}
	if g.PaymentIntentID != nil {
		s := *g.PaymentIntentID
		cp.PaymentIntentID = &s
	}
	return &cp
}
