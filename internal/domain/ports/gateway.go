package ports

import (
	"context"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/shopspring/decimal"
)

// GatewayRequest carries the parameters of one outbound gateway call
type GatewayRequest struct {
	TransactionID         string
	PaymentID             string
	MerchantReferenceCode string
	Amount                decimal.Decimal
	Currency              string
	PaymentMethodID       string
	Email                 string
	Properties            []models.Property
}

// GatewayResponse is the gateway's answer to one call. Status carries at
// least PROCESSED and ERROR; ErrorCode is the gateway's own code (e.g. "234"
// for a processor configuration problem).
type GatewayResponse struct {
	Status                  models.TransactionStatus
	ErrorCode               string
	Message                 string
	AuthCode                string
	FirstPaymentReferenceID string
	Properties              []models.Property
}

// PaymentGateway is the raw transport contract to the card-processing
// gateway. Timeout and retry policy live behind this port, not in the
// reconciliation core.
type PaymentGateway interface {
	Authorize(ctx context.Context, req *GatewayRequest) (*GatewayResponse, error)
	Capture(ctx context.Context, req *GatewayRequest) (*GatewayResponse, error)
	Purchase(ctx context.Context, req *GatewayRequest) (*GatewayResponse, error)
	Void(ctx context.Context, req *GatewayRequest) (*GatewayResponse, error)
	Credit(ctx context.Context, req *GatewayRequest) (*GatewayResponse, error)
	Refund(ctx context.Context, req *GatewayRequest) (*GatewayResponse, error)
}
