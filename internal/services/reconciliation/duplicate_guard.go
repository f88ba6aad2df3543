package reconciliation

import (
	"context"
	"time"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	"github.com/paybridge/gateway-reconciler/pkg/observability"
)

// DuplicateGuard suppresses an outbound gateway call when the gateway's
// report already shows a transaction for the same merchant reference code,
// typically because a caller retried after a local timeout. Suppression is
// best effort: any failure along the way lets the call through.
type DuplicateGuard struct {
	resolver ports.ReportClientResolver
	logger   ports.Logger
}

// NewDuplicateGuard creates a new duplicate guard
func NewDuplicateGuard(resolver ports.ReportClientResolver, logger ports.Logger) *DuplicateGuard {
	return &DuplicateGuard{resolver: resolver, logger: logger}
}

// ShouldSkip reports whether the call for the given merchant reference code
// should be short-circuited without generating gateway traffic.
func (g *DuplicateGuard) ShouldSkip(ctx context.Context, tenantID, merchantReferenceCode string, callDate time.Time, opts models.CallOptions) bool {
	if opts.BypassDuplicateCheck || opts.SkipGateway {
		return false
	}
	if !g.resolver.DuplicateCheckEnabled(ctx, tenantID) {
		return false
	}

	client, err := g.resolver.ReportClientFor(ctx, tenantID)
	if err != nil {
		g.logger.Warn("error resolving report client for duplicate check",
			ports.String("tenant_id", tenantID),
			ports.String("merchant_reference_code", merchantReferenceCode),
			ports.Err(err))
		return false
	}
	if client == nil {
		return false
	}

	res := NewReportLookup(client, g.logger).Fuzzy(ctx, merchantReferenceCode, callDate)
	if !res.Found() {
		return false
	}

	g.logger.Info("skipping gateway call for existing transaction",
		ports.String("tenant_id", tenantID),
		ports.String("merchant_reference_code", merchantReferenceCode),
		ports.String("request_id", res.Report.RequestID))
	observability.DuplicateSkips.Inc()
	return true
}
