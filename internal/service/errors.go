package service

import (
	"errors"

	"github.com/avc/laundry-loyalty/internal/domain"
)

// domainErrors ошибки, которые возвращаются вызывающему коду без обертки сервиса
var domainErrors = []error{
	domain.ErrInvalidRequest,
	domain.ErrInvalidPieces,
	domain.ErrInvalidDiscount,
	domain.ErrInvalidRuleConfig,
	domain.ErrOrderNotFound,
	domain.ErrLineNotFound,
	domain.ErrCustomerNotFound,
	domain.ErrServiceNotFound,
	domain.ErrServiceNotOffered,
	domain.ErrRuleNotFound,
	domain.ErrRuleExists,
	domain.ErrReferralExists,
	domain.ErrNoLoyaltyAccount,
	domain.ErrInvalidTransition,
	domain.ErrOrderNotEditable,
	domain.ErrOrderFinalized,
	domain.ErrNegativeTotal,
	domain.ErrInsufficientPoints,
	domain.ErrDiscountExceedsOrderTotal,
	domain.ErrPointsAlreadyRedeemed,
	domain.ErrLedgerMismatch,
	domain.ErrReferralNotFound,
	domain.ErrReferralAlreadyRewarded,
	domain.ErrRewardEventProcessed,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
