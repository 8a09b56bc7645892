package secrets

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/egile-labs/egile-marketing/internal/models"
)

// KeyVaultStore implements SecretStore on Azure Key Vault.
type KeyVaultStore struct {
	client *azsecrets.Client
}

// NewKeyVaultStore creates a Key Vault client. When useManagedIdentity is set
// the ambient platform identity is used directly; otherwise the default Azure
// credential chain applies (env vars, workload identity, CLI).
func NewKeyVaultStore(vaultURL string, useManagedIdentity bool) (*KeyVaultStore, error) {
	if vaultURL == "" {
		return nil, models.NewConfigurationError("key vault URL is required for the keyvault secrets provider", nil)
	}

	cred, err := NewAzureCredential(useManagedIdentity)
	if err != nil {
		return nil, err
	}

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, models.NewAuthenticationError("vault_key",
			fmt.Sprintf("failed to create key vault client for %s", vaultURL), err)
	}

	return &KeyVaultStore{client: client}, nil
}

// NewAzureCredential picks the credential source matching the configured auth
// preference.
func NewAzureCredential(useManagedIdentity bool) (azcore.TokenCredential, error) {
	if useManagedIdentity {
		cred, err := azidentity.NewManagedIdentityCredential(nil)
		if err != nil {
			return nil, models.NewAuthenticationError("managed_identity",
				"failed to initialize managed identity credential", err)
		}
		fiberlog.Info("Using managed identity for Azure authentication")
		return cred, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, models.NewAuthenticationError("default",
			"failed to initialize default Azure credential chain", err)
	}
	fiberlog.Info("Using default Azure credential chain for authentication")
	return cred, nil
}

// GetSecret fetches the latest version of the named secret.
func (s *KeyVaultStore) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", models.NewAuthenticationError("vault_key",
			fmt.Sprintf("failed to retrieve secret %q from key vault", name), err)
	}
	if resp.Value == nil {
		return "", models.NewAuthenticationError("vault_key",
			fmt.Sprintf("secret %q has no value", name), nil)
	}
	return *resp.Value, nil
}

// Close is a no-op; the underlying client holds no persistent connections.
func (s *KeyVaultStore) Close() error {
	return nil
}
