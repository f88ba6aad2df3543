package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., reporting credentials JSON)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for retrieving secrets from a secret
// management service. Supported backends: AWS Secrets Manager, HashiCorp
// Vault, local filesystem (development only).
// Implementation is responsible for:
//   - Authentication with the secret manager service
//   - Caching secrets appropriately (with TTL)
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - AWS: "gateway-reconciler/tenants/{tenant_id}/reporting"
	//   - Vault: "secret/data/gateway-reconciler/tenants/{tenant_id}"
	// Returns error if the secret does not exist, permissions are missing,
	// or the service is unavailable.
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
