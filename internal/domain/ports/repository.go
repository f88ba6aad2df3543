package ports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paybridge/gateway-reconciler/internal/domain/models"
)

// DBTX represents a database executor that can be either a pool or transaction
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

// DBPort provides access to the database and transaction management
type DBPort interface {
	GetDB() *pgxpool.Pool

	// WithTransaction executes fn within a write transaction, explicitly
	// passed to the callback
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// TransactionRepository reads and writes the local transaction records of a
// payment. Records and their response rows are created atomically by the
// dispatch layer; the reconciliation core only transitions UNDEFINED ones.
type TransactionRepository interface {
	Create(ctx context.Context, tx DBTX, record *models.TransactionRecord) error

	// ListByPayment returns all records of a payment in creation order
	ListByPayment(ctx context.Context, db DBTX, tenantID, paymentID string) ([]*models.TransactionRecord, error)

	// FindRefundCandidate returns the most recent prior AUTHORIZE, PURCHASE
	// or CAPTURE transaction a refund could reference, or nil when none
	// exists.
	FindRefundCandidate(ctx context.Context, db DBTX, tenantID, paymentID string) (*models.TransactionRecord, error)

	// MarkStatus moves a record out of UNDEFINED. PROCESSED and ERROR are
	// terminal and never revert.
	MarkStatus(ctx context.Context, tx DBTX, recordID string, status models.TransactionStatus) error

	// ListPaymentsWithUndefined returns payment ids of a tenant that still
	// hold UNDEFINED records older than the given cutoff.
	ListPaymentsWithUndefined(ctx context.Context, db DBTX, tenantID string, olderThan time.Time, limit int32) ([]string, error)
}

// ResponseRowRepository owns the persisted gateway response rows. The
// mutations mirror what reconciliation is allowed to do: cancel a row,
// overwrite its outcome from a report, or detach it from a transaction id.
type ResponseRowRepository interface {
	Create(ctx context.Context, tx DBTX, row *models.GatewayResponseRow) error

	// Find returns the row by id, or nil when it does not exist
	Find(ctx context.Context, db DBTX, id string) (*models.GatewayResponseRow, error)

	// RecordOutcome persists the gateway's answer for a completed call
	RecordOutcome(ctx context.Context, tx DBTX, id string, resp *GatewayResponse) error

	// Cancel marks the row as void. Terminal.
	Cancel(ctx context.Context, tx DBTX, id string) error

	// UpdateFromReport overwrites the row's outcome fields from the report
	// and materializes the deferred transaction outcome.
	UpdateFromReport(ctx context.Context, tx DBTX, id string, report *models.Report) error

	// RebindTransaction detaches the row from its transaction id without
	// altering the recorded outcome.
	RebindTransaction(ctx context.Context, tx DBTX, id string, newTransactionID string) error
}
