package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paybridge/gateway-reconciler/internal/domain"
	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	"github.com/paybridge/gateway-reconciler/internal/services/reconciliation"
	"github.com/paybridge/gateway-reconciler/pkg/observability"
	"github.com/shopspring/decimal"
)

// processorConfigurationErrorCode is the gateway's "a problem exists with
// your merchant configuration" code, most often the processor rejecting a
// zero-amount authorization for this card type.
const processorConfigurationErrorCode = "234"

// Request identifies one gateway call on behalf of a payment transaction
type Request struct {
	TenantID        string
	AccountID       string
	PaymentID       string
	TransactionID   string
	ExternalKey     string
	PaymentMethodID string
	Amount          decimal.Decimal
	Currency        string
	Email           string
	Properties      []models.Property
	Options         models.CallOptions
}

// Service dispatches gateway calls for payment transactions. Every call
// creates exactly one transaction record and one response row; the duplicate
// guard runs before any traffic is generated, and records whose outcome is
// unknown stay UNDEFINED for the janitor.
type Service struct {
	db       ports.DBPort
	txns     ports.TransactionRepository
	rows     ports.ResponseRowRepository
	gateway  ports.PaymentGateway
	guard    *reconciliation.DuplicateGuard
	janitor  *reconciliation.Janitor
	accounts ports.AccountLookup
	logger   ports.Logger

	// Now is injectable for tests
	Now func() time.Time
}

// NewService creates a new payment dispatch service
func NewService(
	db ports.DBPort,
	txns ports.TransactionRepository,
	rows ports.ResponseRowRepository,
	gateway ports.PaymentGateway,
	guard *reconciliation.DuplicateGuard,
	janitor *reconciliation.Janitor,
	accounts ports.AccountLookup,
	logger ports.Logger,
) *Service {
	return &Service{
		db:       db,
		txns:     txns,
		rows:     rows,
		gateway:  gateway,
		guard:    guard,
		janitor:  janitor,
		accounts: accounts,
		logger:   logger,
		Now:      time.Now,
	}
}

// Authorize authorizes a payment. A zero-amount authorization failing with
// the processor configuration error code triggers the force validation flow
// when enabled.
func (s *Service) Authorize(ctx context.Context, req Request) (*ports.GatewayResponse, error) {
	opts := req.Options.Normalized()
	resp, err := s.dispatch(ctx, models.TypeAuthorize, req, opts, s.gateway.Authorize)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode == processorConfigurationErrorCode && req.Amount.IsZero() && opts.ForceValidation {
		resp = s.forceValidation(ctx, resp, req, opts)
	}
	return resp, nil
}

// Capture captures a previously authorized payment
func (s *Service) Capture(ctx context.Context, req Request) (*ports.GatewayResponse, error) {
	return s.dispatch(ctx, models.TypeCapture, req, req.Options.Normalized(), s.gateway.Capture)
}

// Purchase authorizes and captures in one call
func (s *Service) Purchase(ctx context.Context, req Request) (*ports.GatewayResponse, error) {
	return s.dispatch(ctx, models.TypePurchase, req, req.Options.Normalized(), s.gateway.Purchase)
}

// Void cancels a transaction before settlement
func (s *Service) Void(ctx context.Context, req Request) (*ports.GatewayResponse, error) {
	return s.dispatch(ctx, models.TypeVoid, req, req.Options.Normalized(), s.gateway.Void)
}

// Credit pushes funds back to the instrument without referencing a capture
func (s *Service) Credit(ctx context.Context, req Request) (*ports.GatewayResponse, error) {
	return s.dispatch(ctx, models.TypeCredit, req, req.Options.Normalized(), s.gateway.Credit)
}

// Refund refunds a captured payment. Refunds referencing transactions older
// than the auto-credit threshold are transparently rerouted as credits,
// because many gateways reject refunds outside their settlement window.
func (s *Service) Refund(ctx context.Context, req Request) (*ports.GatewayResponse, error) {
	opts := req.Options.Normalized()
	if s.shouldCredit(ctx, req, opts) {
		s.logger.Info("rerouting refund as credit",
			ports.String("payment_id", req.PaymentID),
			ports.String("transaction_id", req.TransactionID))
		return s.dispatch(ctx, models.TypeCredit, req, opts, s.gateway.Credit)
	}
	return s.dispatch(ctx, models.TypeRefund, req, opts, s.gateway.Refund)
}

// GetPaymentInfo lists a payment's transactions, running the janitor over
// any UNDEFINED ones. When the scan mutated state the payment is re-read so
// callers observe the corrected records.
func (s *Service) GetPaymentInfo(ctx context.Context, tenantID, paymentID string, opts models.CallOptions) ([]*models.TransactionRecord, error) {
	records, err := s.txns.ListByPayment(ctx, nil, tenantID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if !s.janitor.Scan(ctx, tenantID, records, opts) {
		return records, nil
	}
	refreshed, err := s.txns.ListByPayment(ctx, nil, tenantID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("re-read transactions: %w", err)
	}
	return refreshed, nil
}

// dispatch runs the shared call pipeline: persist the attempt, consult the
// duplicate guard, call the gateway, persist the outcome.
func (s *Service) dispatch(
	ctx context.Context,
	txType models.TransactionType,
	req Request,
	opts models.CallOptions,
	call func(ctx context.Context, req *ports.GatewayRequest) (*ports.GatewayResponse, error),
) (*ports.GatewayResponse, error) {
	now := s.Now()
	code := opts.OrderID
	if code == "" {
		code = req.TransactionID
	}

	record := &models.TransactionRecord{
		ID:          req.TransactionID,
		PaymentID:   req.PaymentID,
		TenantID:    req.TenantID,
		ExternalKey: req.ExternalKey,
		Type:        txType,
		Status:      models.StatusUndefined,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CreatedAt:   now,
	}
	row := &models.GatewayResponseRow{
		ID:            uuid.NewString(),
		TransactionID: record.ID,
		PaymentID:     req.PaymentID,
		TenantID:      req.TenantID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	record.Properties = append(record.Properties,
		models.Property{Key: models.PropertyResponseID, Value: row.ID})

	// The attempt is persisted before any gateway traffic so a crash or
	// timeout leaves an UNDEFINED record the janitor can repair.
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.txns.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("create transaction record: %w", err)
		}
		if err := s.rows.Create(ctx, tx, row); err != nil {
			return fmt.Errorf("create response row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "persist attempt", err)
	}

	if s.guard.ShouldSkip(ctx, req.TenantID, code, now, opts) {
		resp := &ports.GatewayResponse{
			Status:  models.StatusProcessed,
			Message: "skipped gateway call",
			Properties: []models.Property{
				{Key: models.PropertyResponseID, Value: row.ID},
			},
		}
		if err := s.recordOutcome(ctx, record.ID, row.ID, resp); err != nil {
			return nil, err
		}
		observability.GatewayCalls.WithLabelValues(string(txType), "skipped").Inc()
		return resp, nil
	}

	gwReq := &ports.GatewayRequest{
		TransactionID:         req.TransactionID,
		PaymentID:             req.PaymentID,
		MerchantReferenceCode: code,
		Amount:                req.Amount,
		Currency:              req.Currency,
		PaymentMethodID:       req.PaymentMethodID,
		Email:                 s.resolveEmail(ctx, req),
		Properties:            req.Properties,
	}

	resp, err := call(ctx, gwReq)
	if err != nil {
		// Outcome unknown: the record stays UNDEFINED for the janitor
		observability.GatewayCalls.WithLabelValues(string(txType), string(models.StatusUndefined)).Inc()
		s.logger.Warn("gateway call outcome unknown",
			ports.String("transaction_type", string(txType)),
			ports.String("transaction_id", req.TransactionID),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "gateway call failed", err)
	}

	out := *resp
	out.Properties = append(append([]models.Property{}, resp.Properties...),
		models.Property{Key: models.PropertyResponseID, Value: row.ID})

	if err := s.recordOutcome(ctx, record.ID, row.ID, &out); err != nil {
		return nil, err
	}

	observability.GatewayCalls.WithLabelValues(string(txType), string(out.Status)).Inc()
	s.logger.Info("gateway call completed",
		ports.String("transaction_type", string(txType)),
		ports.String("transaction_id", req.TransactionID),
		ports.String("status", string(out.Status)))
	return &out, nil
}

func (s *Service) recordOutcome(ctx context.Context, recordID, rowID string, resp *ports.GatewayResponse) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.rows.RecordOutcome(ctx, tx, rowID, resp); err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
		if err := s.txns.MarkStatus(ctx, tx, recordID, resp.Status); err != nil {
			return fmt.Errorf("mark transaction status: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "persist outcome", err)
	}
	return nil
}

// resolveEmail backfills a missing email address from the account lookup
// collaborator. Failures degrade to an empty email rather than blocking the
// call.
func (s *Service) resolveEmail(ctx context.Context, req Request) string {
	if req.Email != "" {
		return req.Email
	}
	if email, ok := models.FindProperty(req.Properties, "email"); ok && email != "" {
		return email
	}
	if req.AccountID == "" || s.accounts == nil {
		return ""
	}
	account, err := s.accounts.AccountByID(ctx, req.AccountID)
	if err != nil {
		s.logger.Warn("account lookup failed",
			ports.String("account_id", req.AccountID),
			ports.Err(err))
		return ""
	}
	return account.Email
}
