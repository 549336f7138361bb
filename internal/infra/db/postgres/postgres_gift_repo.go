package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"

	"gifting-service/internal/domain"
	"gifting-service/internal/domain/model"
	"gifting-service/internal/domain/ports/repository"
)

var _ repository.GiftRepository = (*PostgresGiftRepo)(nil)

type PostgresGiftRepo struct {
	db querier
}

func NewGiftRepo(db querier) *PostgresGiftRepo {
	return &PostgresGiftRepo{db: db}
}

const giftColumns = `id, public_id, recipient_email, message, amount, is_claimed, created_at, claimed_at, payment_intent_id`

func (r *PostgresGiftRepo) Create(ctx context.Context, g *model.Gift) error {
	const q = `
INSERT INTO gifts (public_id, recipient_email, message, amount, is_claimed, created_at, claimed_at, payment_intent_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id;`
	err := r.db.QueryRow(ctx, q,
		g.PublicID, g.RecipientEmail, g.Message, g.Amount, g.IsClaimed, g.CreatedAt, g.ClaimedAt, g.PaymentIntentID,
	).Scan(&g.ID)
	return translateErr(err)
}

func (r *PostgresGiftRepo) FindByPublicID(ctx context.Context, publicID string) (*model.Gift, error) {
	q := `SELECT ` + giftColumns + ` FROM gifts WHERE public_id=$1;`
	g, err := scanGift(r.db.QueryRow(ctx, q, publicID))
	if err != nil {
		return nil, translateErr(err)
	}
	return g, nil
}

// MarkClaimed flips is_claimed with a conditional update so that only one of
// any number of concurrent callers succeeds.
func (r *PostgresGiftRepo) MarkClaimed(ctx context.Context, publicID string, now time.Time) (*model.Gift, error) {
	q := `
UPDATE gifts SET is_claimed = TRUE, claimed_at = $2
 WHERE public_id = $1 AND is_claimed = FALSE
RETURNING ` + giftColumns + `;`
	g, err := scanGift(r.db.QueryRow(ctx, q, publicID, now.UTC()))
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translateErr(err)
	}

	// no row updated: either missing or already claimed
	var claimed bool
	err = r.db.QueryRow(ctx, `SELECT is_claimed FROM gifts WHERE public_id=$1;`, publicID).Scan(&claimed)
	if err != nil {
		return nil, translateErr(err)
	}
	if claimed {
		return nil, domain.ErrAlreadyClaimed
	}
	return nil, errors.Join(domain.ErrOperationFailed, errors.New("claim update matched no row"))
}

func scanGift(row pgx.Row) (*model.Gift, error) {
	var g model.Gift
	if err := row.Scan(&g.ID, &g.PublicID, &g.RecipientEmail, &g.Message, &g.Amount, &g.IsClaimed, &g.CreatedAt, &g.ClaimedAt, &g.PaymentIntentID); err != nil {
		return nil, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	if g.ClaimedAt != nil {
		t := g.ClaimedAt.UTC()
		g.ClaimedAt = &t
	}
	return &g, nil
}
