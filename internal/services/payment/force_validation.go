package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// forceValidation probes whether a zero-amount authorization failure is a
// real decline by re-issuing the authorization with a small non-zero amount,
// then voiding it. The caller-visible transaction id ends up bound to the
// retry's response row; the failed attempt's row is rebound to a synthetic
// transaction id so it cannot be mistaken for a completed transaction.
func (s *Service) forceValidation(ctx context.Context, original *ports.GatewayResponse, req Request, opts models.CallOptions) *ports.GatewayResponse {
	// The retry is a separate attempt and gets its own transaction record;
	// the caller-visible id already names the failed zero-amount record. The
	// zero-amount attempt also consumed the merchant reference code, so the
	// duplicate guard would falsely suppress the retry.
	retry := req
	retry.TransactionID = uuid.NewString()
	retry.ExternalKey = retry.TransactionID
	retry.Amount = opts.ForceValidationAmount
	retry.Options = opts
	retry.Options.BypassDuplicateCheck = true

	newResp, err := s.Authorize(ctx, retry)
	if err != nil {
		// Never mask a result the caller can already act on
		s.logger.Warn("force validation authorize failed",
			ports.String("payment_id", req.PaymentID),
			ports.String("transaction_id", req.TransactionID),
			ports.Err(err))
		return original
	}

	// Void the throwaway authorization right away. The void's transaction id
	// has no caller-visible counterpart, so a fresh one is generated.
	if newResp.Status == models.StatusProcessed && newResp.FirstPaymentReferenceID != "" {
		voidReq := req
		voidReq.TransactionID = uuid.NewString()
		voidReq.ExternalKey = voidReq.TransactionID
		voidReq.Amount = decimal.Zero
		voidReq.Options = opts
		voidReq.Options.BypassDuplicateCheck = true
		voidReq.Options.OrderID = ""
		if _, err := s.Void(ctx, voidReq); err != nil {
			s.logger.Warn("error voiding forced validation",
				ports.String("payment_id", req.PaymentID),
				ports.String("transaction_id", req.TransactionID),
				ports.Err(err))
		}
	}

	// Detach the original failed attempt's row from the caller-visible
	// transaction id, then bind the retry's row to it so the caller observes
	// the retry's outcome under their own id.
	responseID, ok := models.FindProperty(original.Properties, models.PropertyResponseID)
	if !ok || responseID == "" {
		s.logger.Warn("cannot find response row id for failed authorization",
			ports.String("payment_id", req.PaymentID),
			ports.String("transaction_id", req.TransactionID))
		return newResp
	}
	row, err := s.rows.Find(ctx, nil, responseID)
	if err != nil || row == nil {
		s.logger.Warn("cannot find response row for failed authorization",
			ports.String("payment_id", req.PaymentID),
			ports.String("response_id", responseID),
			ports.Err(err))
		return newResp
	}
	if err := s.rows.RebindTransaction(ctx, nil, responseID, uuid.NewString()); err != nil {
		s.logger.Warn("error rebinding response row",
			ports.String("response_id", responseID),
			ports.Err(err))
		return newResp
	}
	if newRowID, ok := models.FindProperty(newResp.Properties, models.PropertyResponseID); ok && newRowID != "" {
		if err := s.rows.RebindTransaction(ctx, nil, newRowID, req.TransactionID); err != nil {
			s.logger.Warn("error binding retry response row",
				ports.String("response_id", newRowID),
				ports.String("transaction_id", req.TransactionID),
				ports.Err(err))
		}
	}

	return newResp
}
