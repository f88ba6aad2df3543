package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
)

// ResponseRowRepository implements ports.ResponseRowRepository over the
// gateway_responses table. Mutations that materialize a transaction outcome
// (cancel, update from report) also transition the linked transaction record
// out of UNDEFINED.
type ResponseRowRepository struct {
	db ports.DBPort
}

// NewResponseRowRepository creates a new response row repository
func NewResponseRowRepository(db ports.DBPort) *ResponseRowRepository {
	return &ResponseRowRepository{db: db}
}

func (r *ResponseRowRepository) executor(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

// Create inserts a new response row
func (r *ResponseRowRepository) Create(ctx context.Context, tx ports.DBTX, row *models.GatewayResponseRow) error {
	_, err := r.executor(tx).Exec(ctx, `
		INSERT INTO gateway_responses
			(id, transaction_id, payment_id, tenant_id, success, canceled,
			 reference_id, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		row.ID, row.TransactionID, row.PaymentID, row.TenantID,
		row.Success, row.Canceled, nullText(row.ReferenceID),
		nullText(row.Message), row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create response row: %w", err)
	}
	return nil
}

// Find returns the row by id, or nil when it does not exist
func (r *ResponseRowRepository) Find(ctx context.Context, db ports.DBTX, id string) (*models.GatewayResponseRow, error) {
	var (
		row     models.GatewayResponseRow
		refID   string
		message string
	)
	err := r.executor(db).QueryRow(ctx, `
		SELECT id, transaction_id, payment_id, tenant_id, success, canceled,
		       COALESCE(reference_id, ''), COALESCE(message, ''),
		       created_at, updated_at
		FROM gateway_responses
		WHERE id = $1`,
		id).Scan(&row.ID, &row.TransactionID, &row.PaymentID, &row.TenantID,
		&row.Success, &row.Canceled, &refID, &message,
		&row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find response row: %w", err)
	}
	row.ReferenceID = refID
	row.Message = message
	return &row, nil
}

// RecordOutcome persists the gateway's answer for a completed call
func (r *ResponseRowRepository) RecordOutcome(ctx context.Context, tx ports.DBTX, id string, resp *ports.GatewayResponse) error {
	_, err := r.executor(tx).Exec(ctx, `
		UPDATE gateway_responses
		SET success = $1, reference_id = $2, message = $3, updated_at = now()
		WHERE id = $4`,
		resp.Status == models.StatusProcessed,
		nullText(resp.FirstPaymentReferenceID), nullText(resp.Message), id)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Cancel marks the row as void and cancels its still-UNDEFINED transaction
// record. Terminal.
func (r *ResponseRowRepository) Cancel(ctx context.Context, tx ports.DBTX, id string) error {
	exec := r.executor(tx)
	var transactionID string
	err := exec.QueryRow(ctx, `
		UPDATE gateway_responses
		SET canceled = true, success = false, updated_at = now()
		WHERE id = $1
		RETURNING transaction_id`,
		id).Scan(&transactionID)
	if err != nil {
		return fmt.Errorf("cancel response row: %w", err)
	}
	_, err = exec.Exec(ctx, `
		UPDATE gateway_transactions
		SET status = 'CANCELED'
		WHERE id = $1 AND status = 'UNDEFINED'`,
		transactionID)
	if err != nil {
		return fmt.Errorf("cancel transaction record: %w", err)
	}
	return nil
}

// UpdateFromReport overwrites the row's outcome from the gateway's report
// and materializes the deferred transaction outcome
func (r *ResponseRowRepository) UpdateFromReport(ctx context.Context, tx ports.DBTX, id string, report *models.Report) error {
	exec := r.executor(tx)
	var transactionID string
	err := exec.QueryRow(ctx, `
		UPDATE gateway_responses
		SET success = $1, reference_id = $2,
		    message = 'reconciled from gateway report', updated_at = now()
		WHERE id = $3
		RETURNING transaction_id`,
		report.Success, nullText(report.RequestID), id).Scan(&transactionID)
	if err != nil {
		return fmt.Errorf("update response row from report: %w", err)
	}

	status := models.StatusError
	if report.Success {
		status = models.StatusProcessed
	}
	_, err = exec.Exec(ctx, `
		UPDATE gateway_transactions
		SET status = $1, first_payment_reference_id = $2
		WHERE id = $3 AND status = 'UNDEFINED'`,
		string(status), nullText(report.RequestID), transactionID)
	if err != nil {
		return fmt.Errorf("materialize transaction outcome: %w", err)
	}
	return nil
}

// RebindTransaction detaches the row from its transaction id without
// altering the recorded outcome
func (r *ResponseRowRepository) RebindTransaction(ctx context.Context, tx ports.DBTX, id string, newTransactionID string) error {
	_, err := r.executor(tx).Exec(ctx, `
		UPDATE gateway_responses
		SET transaction_id = $1, updated_at = now()
		WHERE id = $2`,
		newTransactionID, id)
	if err != nil {
		return fmt.Errorf("rebind response row: %w", err)
	}
	return nil
}
