package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
)

// TransactionRepository implements ports.TransactionRepository over the
// gateway_transactions table. Properties are stored as a jsonb array of
// key/value pairs to preserve their order.
type TransactionRepository struct {
	db ports.DBPort
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db ports.DBPort) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) executor(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

// Create inserts a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, record *models.TransactionRecord) error {
	props, err := json.Marshal(record.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	amount, err := decimalToNumeric(record.Amount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO gateway_transactions
			(id, payment_id, tenant_id, external_key, type, status, amount,
			 currency, first_payment_reference_id, properties, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID, record.PaymentID, record.TenantID,
		nullText(record.ExternalKey), string(record.Type), string(record.Status),
		amount, record.Currency, nullText(record.FirstPaymentReferenceID),
		props, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("create transaction record: %w", err)
	}
	return nil
}

// ListByPayment returns all records of a payment in creation order
func (r *TransactionRepository) ListByPayment(ctx context.Context, db ports.DBTX, tenantID, paymentID string) ([]*models.TransactionRecord, error) {
	rows, err := r.executor(db).Query(ctx, `
		SELECT id, payment_id, tenant_id, external_key, type, status, amount,
		       currency, first_payment_reference_id, properties, created_at
		FROM gateway_transactions
		WHERE tenant_id = $1 AND payment_id = $2
		ORDER BY created_at, id`,
		tenantID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var records []*models.TransactionRecord
	for rows.Next() {
		record, err := scanTransactionRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// FindRefundCandidate returns the most recent successful AUTHORIZE, PURCHASE
// or CAPTURE transaction of the payment, or nil when none exists
func (r *TransactionRepository) FindRefundCandidate(ctx context.Context, db ports.DBTX, tenantID, paymentID string) (*models.TransactionRecord, error) {
	row := r.executor(db).QueryRow(ctx, `
		SELECT id, payment_id, tenant_id, external_key, type, status, amount,
		       currency, first_payment_reference_id, properties, created_at
		FROM gateway_transactions
		WHERE tenant_id = $1 AND payment_id = $2
		  AND type IN ('AUTHORIZE', 'PURCHASE', 'CAPTURE')
		  AND status = 'PROCESSED'
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		tenantID, paymentID)

	record, err := scanTransactionRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// MarkStatus moves a record out of UNDEFINED. PROCESSED, ERROR and CANCELED
// are terminal; the guard in the WHERE clause keeps them from reverting.
func (r *TransactionRepository) MarkStatus(ctx context.Context, tx ports.DBTX, recordID string, status models.TransactionStatus) error {
	_, err := r.executor(tx).Exec(ctx, `
		UPDATE gateway_transactions
		SET status = $1
		WHERE id = $2 AND status = 'UNDEFINED'`,
		string(status), recordID)
	if err != nil {
		return fmt.Errorf("mark transaction status: %w", err)
	}
	return nil
}

// ListPaymentsWithUndefined returns payment ids of a tenant still holding
// UNDEFINED records older than the cutoff
func (r *TransactionRepository) ListPaymentsWithUndefined(ctx context.Context, db ports.DBTX, tenantID string, olderThan time.Time, limit int32) ([]string, error) {
	rows, err := r.executor(db).Query(ctx, `
		SELECT DISTINCT payment_id
		FROM gateway_transactions
		WHERE tenant_id = $1 AND status = 'UNDEFINED' AND created_at < $2
		LIMIT $3`,
		tenantID, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments with undefined transactions: %w", err)
	}
	defer rows.Close()

	var paymentIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan payment id: %w", err)
		}
		paymentIDs = append(paymentIDs, id)
	}
	return paymentIDs, rows.Err()
}

func scanTransactionRecord(row pgx.Row) (*models.TransactionRecord, error) {
	var (
		record      models.TransactionRecord
		txType      string
		status      string
		externalKey pgtype.Text
		refID       pgtype.Text
		amount      pgtype.Numeric
		props       []byte
	)
	err := row.Scan(&record.ID, &record.PaymentID, &record.TenantID,
		&externalKey, &txType, &status, &amount, &record.Currency,
		&refID, &props, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	record.Type = models.TransactionType(txType)
	record.Status = models.TransactionStatus(status)
	record.ExternalKey = textOrEmpty(externalKey)
	record.FirstPaymentReferenceID = textOrEmpty(refID)
	if record.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &record.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal properties: %w", err)
		}
	}
	return &record, nil
}
