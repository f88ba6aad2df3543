package ports

import (
	"context"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
)

// AccountLookup backfills a missing email address for outbound gateway calls
type AccountLookup interface {
	AccountByID(ctx context.Context, accountID string) (*models.Account, error)
}
