package payment

import (
	"context"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
)

// shouldCredit decides whether a refund must be resubmitted as a credit.
// The boundary is inclusive: a candidate exactly threshold seconds old is
// rerouted.
func (s *Service) shouldCredit(ctx context.Context, req Request, opts models.CallOptions) bool {
	if opts.DisableAutoCredit {
		return false
	}
	candidate, err := s.txns.FindRefundCandidate(ctx, nil, req.TenantID, req.PaymentID)
	if err != nil {
		s.logger.Warn("error finding refund candidate",
			ports.String("payment_id", req.PaymentID),
			ports.Err(err))
		return false
	}
	if candidate == nil {
		return false
	}
	age := s.Now().Sub(candidate.CreatedAt)
	return age >= opts.AutoCreditThreshold
}
