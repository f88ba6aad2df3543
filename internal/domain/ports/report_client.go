package ports

import (
	"context"
	"time"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
)

// ReportClient is the contract over the gateway's on-demand transaction
// report lookup. An error means the lookup itself failed (transport,
// credentials) and must not be confused with an empty report.
type ReportClient interface {
	// SingleTransactionReport queries the report for one merchant reference
	// code on the given settlement date.
	SingleTransactionReport(ctx context.Context, merchantReferenceCode string, date time.Time) (*models.Report, error)
}

// ReportClientResolver builds a tenant's report client from its reporting
// configuration. A nil client with nil error means reporting is not
// configured for the tenant: duplicate checking and reconciliation become
// no-ops.
type ReportClientResolver interface {
	ReportClientFor(ctx context.Context, tenantID string) (ReportClient, error)

	// DuplicateCheckEnabled reports whether the tenant opted into pre-call
	// duplicate suppression. Janitor lookups ignore this flag.
	DuplicateCheckEnabled(ctx context.Context, tenantID string) bool
}
