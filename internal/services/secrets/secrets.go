// Package secrets provides the secret stores backing vault-key credential
// resolution. A store is consulted at most once, at startup; failures are
// fatal and never fall back to another authentication mode.
package secrets

import (
	"context"
	"fmt"

	"github.com/egile-labs/egile-marketing/internal/models"
)

// SecretStore retrieves named secrets from an external store.
type SecretStore interface {
	// GetSecret fetches a secret by name. The caller owns timeout policy via ctx.
	GetSecret(ctx context.Context, name string) (string, error)

	// Close releases any connections held by the store.
	Close() error
}

// NewStore builds the secret store selected by config. The Key Vault provider
// reuses the Azure OpenAI settings (vault URL, managed-identity flag) so the
// vault holding the API key and the identity used to read it stay in one place.
func NewStore(cfg models.SecretsConfig, azureCfg models.AzureOpenAIConfig) (SecretStore, error) {
	switch cfg.Provider {
	case models.SecretProviderKeyVault, "":
		return NewKeyVaultStore(azureCfg.KeyVaultURL, azureCfg.UseManagedIdentity)
	case models.SecretProviderVault:
		return NewVaultStore(cfg.Vault)
	default:
		return nil, models.NewConfigurationError(
			fmt.Sprintf("unknown secrets provider %q", cfg.Provider), nil)
	}
}
