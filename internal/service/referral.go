package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// referralCodeLength длина кода приглашения
const referralCodeLength = 8

// ReferralService регистрирует приглашения клиентов
type ReferralService struct {
	store  domain.Store
	logger *zap.Logger
}

// NewReferralService создает новый ReferralService
func NewReferralService(store domain.Store, logger *zap.Logger) *ReferralService {
	return &ReferralService{store: store, logger: logger}
}

// CreateReferral связывает пригласившего клиента с приглашенным.
// У приглашенного клиента может быть только одно приглашение.
func (s *ReferralService) CreateReferral(ctx context.Context, referrerID, refereeID int64) (*domain.Referral, error) {
	if referrerID == refereeID {
		return nil, fmt.Errorf("%w: customer cannot refer themselves", domain.ErrInvalidRequest)
	}

	referral := &domain.Referral{
		Code:       newReferralCode(),
		ReferrerID: referrerID,
		RefereeID:  refereeID,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		for _, id := range []int64{referrerID, refereeID} {
			if _, err := tx.Customers().GetCustomer(ctx, id); err != nil {
				return err
			}
		}
		return tx.Referrals().CreateReferral(ctx, referral)
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("referral service: failed to create referral %d -> %d: %w", referrerID, refereeID, err)
	}

	s.logger.Info("referral created",
		zap.String("code", referral.Code),
		zap.Int64("referrer_id", referrerID),
		zap.Int64("referee_id", refereeID),
	)
	return referral, nil
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:referralCodeLength])
}
