package models

// AzureOpenAIConfig holds the raw, unresolved Azure OpenAI settings as read
// from the environment or YAML. It may reference a Key Vault secret instead
// of carrying a key; resolution into a ConnectionDescriptor happens once at
// startup in internal/config.
type AzureOpenAIConfig struct {
	Endpoint           string `yaml:"endpoint" json:"endpoint"`
	APIVersion         string `yaml:"api_version" json:"api_version,omitzero"`
	APIKey             string `yaml:"api_key" json:"-"`
	KeyVaultURL        string `yaml:"key_vault_url" json:"key_vault_url,omitzero"`
	APIKeySecretName   string `yaml:"api_key_secret_name" json:"api_key_secret_name,omitzero"`
	UseManagedIdentity bool   `yaml:"use_managed_identity" json:"use_managed_identity,omitzero"`
	DefaultModel       string `yaml:"default_model" json:"default_model,omitzero"`
	MaxRetries         int    `yaml:"max_retries" json:"max_retries,omitzero"`
	TimeoutSeconds     int    `yaml:"timeout_seconds" json:"timeout_seconds,omitzero"`
}

// CredentialKind identifies how the gateway authenticates to Azure OpenAI.
type CredentialKind string

const (
	// CredentialManagedIdentity delegates auth to the ambient platform identity.
	CredentialManagedIdentity CredentialKind = "managed_identity"
	// CredentialDirectKey uses an API key supplied directly via configuration.
	CredentialDirectKey CredentialKind = "direct_key"
	// CredentialVaultKey uses an API key fetched from a secret store at startup.
	CredentialVaultKey CredentialKind = "vault_key"
)

// Credential is a tagged variant: exactly one authentication mode is active.
// The zero value is invalid; construct through one of the New*Credential
// functions so that contradictory states cannot be represented.
type Credential struct {
	kind       CredentialKind
	apiKey     string
	secretName string
}

// NewManagedIdentityCredential marks the connection for identity-based auth.
// No secret material is carried.
func NewManagedIdentityCredential() Credential {
	return Credential{kind: CredentialManagedIdentity}
}

// NewDirectKeyCredential carries a configuration-supplied API key verbatim.
func NewDirectKeyCredential(apiKey string) Credential {
	return Credential{kind: CredentialDirectKey, apiKey: apiKey}
}

// NewVaultKeyCredential carries a key fetched from a secret store, together
// with the secret name it was resolved from.
func NewVaultKeyCredential(secretName, apiKey string) Credential {
	return Credential{kind: CredentialVaultKey, apiKey: apiKey, secretName: secretName}
}

// Kind reports the active authentication mode.
func (c Credential) Kind() CredentialKind { return c.kind }

// IsZero reports whether the credential was never resolved.
func (c Credential) IsZero() bool { return c.kind == "" }

// APIKey returns the key material for key-based modes. The second return is
// false for identity-based credentials, which carry no secret material.
func (c Credential) APIKey() (string, bool) {
	if c.kind == CredentialDirectKey || c.kind == CredentialVaultKey {
		return c.apiKey, true
	}
	return "", false
}

// SecretName returns the secret-store name a vault key was fetched from.
func (c Credential) SecretName() string { return c.secretName }

// ConnectionDescriptor is the immutable result of credential resolution:
// everything a client needs to talk to Azure OpenAI. It is constructed once
// at process start and safe for any number of concurrent readers.
type ConnectionDescriptor struct {
	Endpoint   string
	APIVersion string
	Credential Credential
}
