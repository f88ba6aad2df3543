package ports

import (
	"context"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
)

// TenantConfigStore resolves the per-tenant reporting configuration.
// A nil config with nil error means reporting is not set up for the tenant.
type TenantConfigStore interface {
	ReportingConfigFor(ctx context.Context, tenantID string) (*models.ReportingConfig, error)
}
