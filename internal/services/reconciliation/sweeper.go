package reconciliation

import (
	"context"
	"time"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
)

// Sweeper periodically runs the janitor over payments that still hold
// UNDEFINED transaction records, so repairs happen even when nobody reads
// the payment.
type Sweeper struct {
	txns    ports.TransactionRepository
	janitor *Janitor
	logger  ports.Logger

	tenants   []string
	interval  time.Duration
	batchSize int32

	// Now is injectable for tests
	Now func() time.Time
}

// NewSweeper creates a sweeper over the given tenants
func NewSweeper(
	txns ports.TransactionRepository,
	janitor *Janitor,
	tenants []string,
	interval time.Duration,
	batchSize int32,
	logger ports.Logger,
) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		txns:      txns,
		janitor:   janitor,
		logger:    logger,
		tenants:   tenants,
		interval:  interval,
		batchSize: batchSize,
		Now:       time.Now,
	}
}

// Run sweeps on the configured interval until the context is canceled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("reconciliation sweeper started",
		ports.Int("tenants", len(s.tenants)),
		ports.String("interval", s.interval.String()))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass over every configured tenant
func (s *Sweeper) SweepOnce(ctx context.Context) {
	for _, tenantID := range s.tenants {
		s.sweepTenant(ctx, tenantID)
	}
}

func (s *Sweeper) sweepTenant(ctx context.Context, tenantID string) {
	cutoff := s.Now().Add(-models.DefaultJanitorDelayThreshold)
	paymentIDs, err := s.txns.ListPaymentsWithUndefined(ctx, nil, tenantID, cutoff, s.batchSize)
	if err != nil {
		s.logger.Warn("error listing payments with undefined transactions",
			ports.String("tenant_id", tenantID),
			ports.Err(err))
		return
	}
	if len(paymentIDs) == 0 {
		return
	}

	s.logger.Info("sweeping payments with undefined transactions",
		ports.String("tenant_id", tenantID),
		ports.Int("payments", len(paymentIDs)))

	repaired := 0
	for _, paymentID := range paymentIDs {
		if ctx.Err() != nil {
			return
		}
		records, err := s.txns.ListByPayment(ctx, nil, tenantID, paymentID)
		if err != nil {
			s.logger.Warn("error listing payment transactions",
				ports.String("tenant_id", tenantID),
				ports.String("payment_id", paymentID),
				ports.Err(err))
			continue
		}
		if s.janitor.Scan(ctx, tenantID, records, models.CallOptions{}) {
			repaired++
		}
	}

	if repaired > 0 {
		s.logger.Info("sweep pass finished",
			ports.String("tenant_id", tenantID),
			ports.Int("payments_mutated", repaired))
	}
}
