package secrets

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"github.com/egile-labs/egile-marketing/internal/models"
)

const defaultVaultMount = "secret"

// VaultStore implements SecretStore on HashiCorp Vault's KV v2 engine, for
// deployments outside Azure. Secrets live as keys of a single KV entry: the
// configured path names the entry and GetSecret's name selects the key.
type VaultStore struct {
	client *api.Client
	mount  string
	path   string
}

// NewVaultStore initializes a Vault client from config. VAULT_ADDR and
// VAULT_TOKEN from the process environment apply when config leaves the
// address or token empty, matching the Vault SDK's own defaulting.
func NewVaultStore(cfg models.VaultConfig) (*VaultStore, error) {
	if cfg.Path == "" {
		return nil, models.NewConfigurationError("vault secrets path is required for the vault secrets provider", nil)
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, models.NewAuthenticationError("vault_key", "failed to create vault client", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = defaultVaultMount
	}

	return &VaultStore{client: client, mount: mount, path: cfg.Path}, nil
}

// GetSecret reads the KV v2 entry at the configured path and returns the
// value stored under name.
func (s *VaultStore) GetSecret(ctx context.Context, name string) (string, error) {
	secret, err := s.client.KVv2(s.mount).Get(ctx, s.path)
	if err != nil {
		return "", models.NewAuthenticationError("vault_key",
			fmt.Sprintf("failed to read vault path %s/%s", s.mount, s.path), err)
	}

	val, ok := secret.Data[name].(string)
	if !ok {
		return "", models.NewAuthenticationError("vault_key",
			fmt.Sprintf("secret key %q not found at vault path %s/%s", name, s.mount, s.path), nil)
	}
	return val, nil
}

// Close is a no-op; the vault client uses plain HTTP under the hood.
func (s *VaultStore) Close() error {
	return nil
}
