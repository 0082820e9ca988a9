package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/jackc/pgx/v5"
)

// ReferralRepository реализует domain.ReferralRepository
type ReferralRepository struct {
	db DBTX
}

// NewReferralRepository создает новый ReferralRepository
func NewReferralRepository(db DBTX) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// CreateReferral сохраняет приглашение
func (r *ReferralRepository) CreateReferral(ctx context.Context, referral *domain.Referral) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO referrals (code, referrer_id, referee_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		referral.Code, referral.ReferrerID, referral.RefereeID,
	).Scan(&referral.ID, &referral.CreatedAt)

	if err != nil {
		if isPgCode(err, codeUniqueViolation) {
			return domain.ErrReferralExists
		}
		return fmt.Errorf("repository: failed to create referral for referee %d: %w", referral.RefereeID, err)
	}

	return nil
}

// FindPendingForReferee получает и блокирует невыплаченное приглашение клиента
func (r *ReferralRepository) FindPendingForReferee(ctx context.Context, refereeID int64) (*domain.Referral, error) {
	referral := &domain.Referral{}

	err := r.db.QueryRow(ctx,
		`SELECT id, code, referrer_id, referee_id, order_id, reward_granted, created_at
		 FROM referrals
		 WHERE referee_id = $1 AND reward_granted = FALSE
		 ORDER BY id
		 LIMIT 1
		 FOR UPDATE`,
		refereeID,
	).Scan(&referral.ID, &referral.Code, &referral.ReferrerID, &referral.RefereeID,
		&referral.OrderID, &referral.RewardGranted, &referral.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReferralNotFound
		}
		return nil, fmt.Errorf("repository: failed to find referral for referee %d: %w", refereeID, err)
	}

	return referral, nil
}

// MarkRewarded отмечает приглашение выплаченным за указанный заказ
func (r *ReferralRepository) MarkRewarded(ctx context.Context, id, orderID int64) error {
	result, err := r.db.Exec(ctx,
		`UPDATE referrals SET reward_granted = TRUE, order_id = $2
		 WHERE id = $1 AND reward_granted = FALSE`,
		id, orderID,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to mark referral %d rewarded: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrReferralAlreadyRewarded
	}

	return nil
}
