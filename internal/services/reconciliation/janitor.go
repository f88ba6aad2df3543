package reconciliation

import (
	"context"
	"time"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	"github.com/paybridge/gateway-reconciler/pkg/observability"
)

// Janitor repairs transaction records stuck in UNDEFINED by asking the
// gateway's report what actually happened. Every failure path degrades to
// "leave the record as-is"; a scan never aborts a payment-info read.
type Janitor struct {
	resolver ports.ReportClientResolver
	rows     ports.ResponseRowRepository
	refCodes ReferenceCodeResolver
	logger   ports.Logger

	// Now is injectable for tests
	Now func() time.Time
}

// NewJanitor creates a janitor using the default reference code resolver
func NewJanitor(resolver ports.ReportClientResolver, rows ports.ResponseRowRepository, logger ports.Logger) *Janitor {
	return &Janitor{
		resolver: resolver,
		rows:     rows,
		refCodes: AuthorizationCodeResolver{},
		logger:   logger,
		Now:      time.Now,
	}
}

// WithReferenceCodeResolver substitutes the merchant reference code
// derivation strategy
func (j *Janitor) WithReferenceCodeResolver(r ReferenceCodeResolver) *Janitor {
	j.refCodes = r
	return j
}

// Scan walks a payment's transaction records in order and repairs the
// UNDEFINED ones: updates them from a matching report, cancels them past the
// cancel threshold when the gateway shows nothing, or leaves them for a
// later pass. Returns true when any record was mutated, in which case the
// caller must re-read the payment.
func (j *Janitor) Scan(ctx context.Context, tenantID string, records []*models.TransactionRecord, opts models.CallOptions) bool {
	if len(records) == 0 {
		return false
	}
	opts = opts.Normalized()

	// The initiating transaction carries the merchant reference code the
	// gateway keys its reports on.
	var initial *models.TransactionRecord
	for _, rec := range records {
		if rec.IsInitiating() {
			initial = rec
		}
	}
	if initial == nil {
		initial = records[len(records)-1]
	}

	// Reference ids already claimed by this payment's other transactions,
	// computed once before the scan. Guards against matching a sibling
	// transaction's report by accident.
	existing := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.FirstPaymentReferenceID != "" {
			existing[rec.FirstPaymentReferenceID] = struct{}{}
		}
	}

	var client ports.ReportClient
	resolved := false
	stale := false

	for _, rec := range records {
		if rec.Status != models.StatusUndefined {
			continue
		}

		responseID, ok := rec.Property(models.PropertyResponseID)
		if !ok || responseID == "" {
			j.logger.Warn("cannot repair transaction, response row id missing",
				ports.String("transaction_id", rec.ID))
			continue
		}

		delay := j.Now().Sub(rec.CreatedAt)
		if delay < 0 {
			delay = 0
		}
		// Give the gateway time to settle its own records
		if delay < opts.JanitorDelayThreshold {
			continue
		}

		if !resolved {
			resolved = true
			c, err := j.resolver.ReportClientFor(ctx, tenantID)
			if err != nil {
				j.logger.Warn("error resolving report client",
					ports.String("tenant_id", tenantID),
					ports.Err(err))
			}
			client = c
		}
		if client == nil {
			// Reporting not configured or unavailable, retry on a later pass
			continue
		}

		lookup := NewReportLookup(client, j.logger)
		res := models.UnavailableReport()
		for _, code := range j.refCodes.Resolve(opts.OrderID, initial) {
			res = lookup.Fuzzy(ctx, code, rec.CreatedAt)
			if res.Found() {
				break
			}
		}
		if res.Unavailable() {
			continue
		}

		shouldCancel := delay >= opts.CancelThreshold
		mismatch := !res.Found() || reportNotMatch(res.Report, rec.FirstPaymentReferenceID, existing)
		if mismatch && !shouldCancel {
			j.logger.Info("transaction not found in gateway report yet",
				ports.String("transaction_id", rec.ID))
			observability.JanitorScans.WithLabelValues("deferred").Inc()
			continue
		}

		row, err := j.rows.Find(ctx, nil, responseID)
		if err != nil {
			j.logger.Warn("error loading response row",
				ports.String("transaction_id", rec.ID),
				ports.String("response_id", responseID),
				ports.Err(err))
			continue
		}
		if row == nil {
			j.logger.Warn("cannot repair transaction, response row not found",
				ports.String("transaction_id", rec.ID),
				ports.String("response_id", responseID))
			continue
		}

		if mismatch {
			// Past the cancel threshold with nothing matching remotely, the
			// attempt is presumed to have never happened.
			if err := j.rows.Cancel(ctx, nil, responseID); err != nil {
				j.logger.Warn("error canceling response row",
					ports.String("transaction_id", rec.ID),
					ports.Err(err))
				continue
			}
			j.logger.Info("canceled unconfirmed transaction",
				ports.String("transaction_id", rec.ID))
			observability.JanitorScans.WithLabelValues("canceled").Inc()
		} else {
			if err := j.rows.UpdateFromReport(ctx, nil, responseID, res.Report); err != nil {
				j.logger.Warn("error updating response row from report",
					ports.String("transaction_id", rec.ID),
					ports.Err(err))
				continue
			}
			j.logger.Info("repaired transaction from gateway report",
				ports.String("transaction_id", rec.ID),
				ports.Bool("success", res.Report.Success))
			observability.JanitorScans.WithLabelValues("repaired").Inc()
		}
		stale = true
	}

	return stale
}

// reportNotMatch returns true when the report cannot belong to this record:
// no request id at all, or a request id already claimed by a sibling
// transaction of the same payment.
func reportNotMatch(report *models.Report, requestID string, existing map[string]struct{}) bool {
	if report.RequestID == "" {
		return true
	}
	if report.RequestID == requestID {
		return false
	}
	_, seen := existing[report.RequestID]
	return seen
}
