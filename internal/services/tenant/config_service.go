package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paybridge/gateway-reconciler/internal/adapters/cybersource"
	adapterports "github.com/paybridge/gateway-reconciler/internal/adapters/ports"
	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	httpclient "github.com/paybridge/gateway-reconciler/pkg/http"
)

// DefaultSecretPathPrefix is where tenant reporting credentials live in the
// secret manager. The tenant id is appended: "{prefix}/{tenant_id}/reporting".
const DefaultSecretPathPrefix = "gateway-reconciler/tenants"

// SecretConfigStore resolves per-tenant reporting configuration from a secret
// manager. Secrets hold a JSON-encoded models.ReportingConfig. A missing
// secret means the tenant has no reporting set up; it is not an error.
type SecretConfigStore struct {
	secrets    adapterports.SecretManagerAdapter
	pathPrefix string
	logger     ports.Logger
}

// NewSecretConfigStore creates a config store backed by a secret manager
func NewSecretConfigStore(secrets adapterports.SecretManagerAdapter, pathPrefix string, logger ports.Logger) *SecretConfigStore {
	if pathPrefix == "" {
		pathPrefix = DefaultSecretPathPrefix
	}
	return &SecretConfigStore{
		secrets:    secrets,
		pathPrefix: pathPrefix,
		logger:     logger,
	}
}

// ReportingConfigFor returns the tenant's reporting configuration, or nil
// when the tenant has none
func (s *SecretConfigStore) ReportingConfigFor(ctx context.Context, tenantID string) (*models.ReportingConfig, error) {
	path := fmt.Sprintf("%s/%s/reporting", s.pathPrefix, tenantID)

	secret, err := s.secrets.GetSecret(ctx, path)
	if err != nil {
		// Secret managers do not distinguish "absent" from "unreachable" in a
		// portable way; treat a not-found answer as unconfigured and anything
		// else as a hard error.
		if isNotFound(err) {
			s.logger.Debug("no reporting configuration for tenant",
				ports.String("tenant_id", tenantID))
			return nil, nil
		}
		return nil, fmt.Errorf("load reporting config for tenant %s: %w", tenantID, err)
	}

	var config models.ReportingConfig
	if err := json.Unmarshal([]byte(secret.Value), &config); err != nil {
		return nil, fmt.Errorf("parse reporting config for tenant %s: %w", tenantID, err)
	}
	if config.MerchantID == "" || config.Username == "" {
		return nil, fmt.Errorf("reporting config for tenant %s is incomplete", tenantID)
	}
	return &config, nil
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "ResourceNotFoundException")
}

// Service implements ports.ReportClientResolver. Report clients are built
// from the tenant's reporting configuration and cached, since credentials
// rarely change and the underlying secret store already applies its own TTL.
type Service struct {
	store      ports.TenantConfigStore
	httpClient adapterports.HTTPClient
	logger     ports.Logger

	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]*clientEntry
}

type clientEntry struct {
	client    ports.ReportClient
	config    *models.ReportingConfig
	expiresAt time.Time
}

// NewService creates a report client resolver over a tenant config store
func NewService(store ports.TenantConfigStore, httpClient adapterports.HTTPClient, logger ports.Logger) *Service {
	if httpClient == nil {
		httpClient = httpclient.NewHTTPClient(httpclient.ReportingClientConfig(), 30*time.Second)
	}
	return &Service{
		store:      store,
		httpClient: httpClient,
		logger:     logger,
		cacheTTL:   5 * time.Minute,
		cache:      make(map[string]*clientEntry),
	}
}

// ReportClientFor returns the tenant's report client, or nil when the tenant
// has no reporting configuration
func (s *Service) ReportClientFor(ctx context.Context, tenantID string) (ports.ReportClient, error) {
	entry, err := s.entryFor(ctx, tenantID)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.client, nil
}

// DuplicateCheckEnabled reports whether the tenant opted into pre-call
// duplicate suppression. Resolution failures disable the check rather than
// blocking the payment path.
func (s *Service) DuplicateCheckEnabled(ctx context.Context, tenantID string) bool {
	entry, err := s.entryFor(ctx, tenantID)
	if err != nil {
		s.logger.Warn("could not resolve tenant reporting config",
			ports.String("tenant_id", tenantID),
			ports.Err(err))
		return false
	}
	if entry == nil {
		return false
	}
	return entry.config.CheckForDuplicates
}

func (s *Service) entryFor(ctx context.Context, tenantID string) (*clientEntry, error) {
	s.mu.RLock()
	entry, ok := s.cache[tenantID]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry, nil
	}

	config, err := s.store.ReportingConfigFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, nil
	}

	clientConfig := cybersource.DefaultReportClientConfig()
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.MerchantID = config.MerchantID
	clientConfig.Username = config.Username
	clientConfig.Password = config.Password

	entry = &clientEntry{
		client:    cybersource.NewReportClient(clientConfig, s.httpClient, s.logger),
		config:    config,
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.mu.Lock()
	s.cache[tenantID] = entry
	s.mu.Unlock()

	s.logger.Debug("report client resolved",
		ports.String("tenant_id", tenantID),
		ports.Bool("check_for_duplicates", config.CheckForDuplicates))
	return entry, nil
}
