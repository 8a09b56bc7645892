package config

import (
	"context"
	"os"
	"strconv"
	"strings"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/egile-labs/egile-marketing/internal/models"
	"github.com/egile-labs/egile-marketing/internal/services/secrets"
)

// Environment variable names recognized by the Azure OpenAI overlay.
const (
	EnvEndpoint           = "AZURE_OPENAI_ENDPOINT"
	EnvAPIVersion         = "AZURE_OPENAI_API_VERSION"
	EnvAPIKey             = "AZURE_OPENAI_API_KEY"
	EnvKeyVaultURL        = "AZURE_KEY_VAULT_URL"
	EnvAPIKeySecretName   = "AZURE_OPENAI_API_KEY_SECRET_NAME"
	EnvUseManagedIdentity = "AZURE_USE_MANAGED_IDENTITY"
	EnvDefaultModel       = "AZURE_OPENAI_DEFAULT_MODEL"
	EnvMaxRetries         = "AZURE_OPENAI_MAX_RETRIES"
	EnvTimeoutSeconds     = "AZURE_OPENAI_TIMEOUT"
)

const (
	defaultAPIVersion     = "2024-02-15-preview"
	defaultModel          = "gpt-4"
	defaultMaxRetries     = 3
	defaultTimeoutSeconds = 30
)

// Environment is an explicit snapshot of environment variables. Resolution
// reads only from this mapping, never from the process environment, so tests
// can supply synthetic environments without process-wide side effects.
type Environment map[string]string

// SystemEnvironment snapshots the process environment.
func SystemEnvironment() Environment {
	env := make(Environment)
	for _, kv := range osEnviron() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// osEnviron is swapped in tests.
var osEnviron = os.Environ

func (e Environment) lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

func (e Environment) boolean(key string, fallback bool) bool {
	v, ok := e[key]
	if !ok || v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true")
}

func (e Environment) integer(key string, fallback int) int {
	v, ok := e[key]
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fiberlog.Warnf("Ignoring non-integer value %q for %s", v, key)
		return fallback
	}
	return n
}

// OverlayAzureOpenAI applies the recognized environment variables on top of a
// base config and fills remaining defaults. Environment values win wherever
// both are present.
func OverlayAzureOpenAI(base models.AzureOpenAIConfig, env Environment) models.AzureOpenAIConfig {
	out := base

	if v, ok := env.lookup(EnvEndpoint); ok && v != "" {
		out.Endpoint = v
	}
	if v, ok := env.lookup(EnvAPIVersion); ok && v != "" {
		out.APIVersion = v
	}
	if v, ok := env.lookup(EnvAPIKey); ok && v != "" {
		out.APIKey = v
	}
	if v, ok := env.lookup(EnvKeyVaultURL); ok && v != "" {
		out.KeyVaultURL = v
	}
	if v, ok := env.lookup(EnvAPIKeySecretName); ok && v != "" {
		out.APIKeySecretName = v
	}
	if v, ok := env.lookup(EnvDefaultModel); ok && v != "" {
		out.DefaultModel = v
	}
	out.UseManagedIdentity = env.boolean(EnvUseManagedIdentity, base.UseManagedIdentity)
	out.MaxRetries = env.integer(EnvMaxRetries, base.MaxRetries)
	out.TimeoutSeconds = env.integer(EnvTimeoutSeconds, base.TimeoutSeconds)

	if out.APIVersion == "" {
		out.APIVersion = defaultAPIVersion
	}
	if out.DefaultModel == "" {
		out.DefaultModel = defaultModel
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = defaultMaxRetries
	}
	if out.TimeoutSeconds <= 0 {
		out.TimeoutSeconds = defaultTimeoutSeconds
	}

	return out
}

// ResolveConnection turns an AzureOpenAIConfig into an immutable
// ConnectionDescriptor, resolving exactly one credential:
//
//  1. managed-identity flag set: identity-based auth, no secret-store call;
//  2. secret name plus either a key-vault URL or a wired store: one
//     secret-store fetch;
//  3. direct API key present: the key is carried verbatim;
//  4. otherwise a configuration error, never a partial descriptor.
//
// The function is idempotent and makes at most one network call (the secret
// fetch); retry policy for that call belongs to the caller's ctx.
func ResolveConnection(ctx context.Context, cfg models.AzureOpenAIConfig, store secrets.SecretStore) (*models.ConnectionDescriptor, error) {
	if cfg.Endpoint == "" {
		return nil, models.NewConfigurationError("azure openai endpoint is required", nil)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	cred, err := resolveCredential(ctx, cfg, store)
	if err != nil {
		return nil, err
	}

	fiberlog.Infof("Resolved Azure OpenAI connection: endpoint=%s api_version=%s auth=%s",
		cfg.Endpoint, apiVersion, cred.Kind())

	return &models.ConnectionDescriptor{
		Endpoint:   cfg.Endpoint,
		APIVersion: apiVersion,
		Credential: cred,
	}, nil
}

func resolveCredential(ctx context.Context, cfg models.AzureOpenAIConfig, store secrets.SecretStore) (models.Credential, error) {
	if cfg.UseManagedIdentity {
		return models.NewManagedIdentityCredential(), nil
	}

	// The vault path is taken for the key-vault URL + secret name pair, or for
	// a secret name alone when a store is already wired (the HashiCorp Vault
	// provider carries its own address, so no Azure vault URL is involved).
	if cfg.APIKeySecretName != "" && (cfg.KeyVaultURL != "" || store != nil) {
		if store == nil {
			return models.Credential{}, models.NewConfigurationError(
				"vault-backed credential requested but no secret store is configured", nil)
		}
		key, err := store.GetSecret(ctx, cfg.APIKeySecretName)
		if err != nil {
			return models.Credential{}, err
		}
		if key == "" {
			return models.Credential{}, models.NewAuthenticationError("vault_key",
				"secret store returned an empty API key", nil)
		}
		return models.NewVaultKeyCredential(cfg.APIKeySecretName, key), nil
	}

	if cfg.APIKey != "" {
		return models.NewDirectKeyCredential(cfg.APIKey), nil
	}

	return models.Credential{}, models.NewConfigurationError(
		"no resolvable credential: set the managed-identity flag, a vault URL and secret name, or a direct API key", nil)
}
