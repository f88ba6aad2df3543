package reconciliation

import (
	"context"
	"strings"
	"time"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	"github.com/paybridge/gateway-reconciler/pkg/observability"
	"github.com/paybridge/gateway-reconciler/pkg/timeutil"
)

// ReportLookup wraps a tenant's report client with the date-fuzzing the
// reconciliation flows need. Gateway report batches are keyed to a
// settlement date that can differ by one day from the local attempt
// timestamp, in either direction.
type ReportLookup struct {
	client ports.ReportClient
	logger ports.Logger
}

// NewReportLookup creates a lookup over the given report client
func NewReportLookup(client ports.ReportClient, logger ports.Logger) *ReportLookup {
	return &ReportLookup{client: client, logger: logger}
}

// Single performs one report query. Transport errors are logged at warning
// level and downgraded to "no information".
func (l *ReportLookup) Single(ctx context.Context, merchantReferenceCode string, date time.Time) models.ReportResult {
	report, err := l.client.SingleTransactionReport(ctx, merchantReferenceCode, date)
	if err != nil {
		l.logger.Warn("report lookup failed",
			ports.String("merchant_reference_code", merchantReferenceCode),
			ports.String("target_date", date.Format("2006-01-02")),
			ports.Err(err))
		observability.ReportLookups.WithLabelValues("unavailable").Inc()
		return models.UnavailableReport()
	}
	if report == nil || report.Empty() {
		observability.ReportLookups.WithLabelValues("empty").Inc()
		return models.EmptyReport()
	}
	observability.ReportLookups.WithLabelValues("found").Inc()
	return models.FoundReport(report)
}

// Fuzzy tries the nominal date first, then one day earlier, then one day
// later, returning the first non-empty result or the last attempt's result
// when nothing matched.
func (l *ReportLookup) Fuzzy(ctx context.Context, merchantReferenceCode string, date time.Time) models.ReportResult {
	// Report batches are keyed on UTC calendar days
	date = timeutil.StartOfDay(date)
	res := l.Single(ctx, merchantReferenceCode, date)
	if !res.Found() {
		res = l.Single(ctx, merchantReferenceCode, date.AddDate(0, 0, -1))
	}
	if !res.Found() {
		res = l.Single(ctx, merchantReferenceCode, date.AddDate(0, 0, 1))
	}
	return res
}

// ReferenceCodeResolver produces candidate merchant reference codes for a
// payment, in preference order. The derivation from an authorization string
// is gateway-specific; alternate gateways substitute their own resolver.
type ReferenceCodeResolver interface {
	Resolve(orderID string, initial *models.TransactionRecord) []string
}

// AuthorizationCodeResolver is the default resolver: an explicit order id
// wins, else the code is the authorization string up to the first separator,
// else the initiating transaction's own id and external key are tried in
// turn.
type AuthorizationCodeResolver struct {
	// Separator splits the authorization string; defaults to ";"
	Separator string
}

// Resolve implements ReferenceCodeResolver
func (r AuthorizationCodeResolver) Resolve(orderID string, initial *models.TransactionRecord) []string {
	if orderID != "" {
		return []string{orderID}
	}
	if initial == nil {
		return nil
	}
	sep := r.Separator
	if sep == "" {
		sep = ";"
	}
	if auth, ok := initial.Property(models.PropertyAuthorization); ok && auth != "" {
		return []string{strings.SplitN(auth, sep, 2)[0]}
	}
	candidates := []string{initial.ID}
	if initial.ExternalKey != "" && initial.ExternalKey != initial.ID {
		candidates = append(candidates, initial.ExternalKey)
	}
	return candidates
}
