package models

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string `json:"port,omitzero" yaml:"port"`
	AllowedOrigins string `json:"allowed_origins,omitzero" yaml:"allowed_origins"`
	Environment    string `json:"environment,omitzero" yaml:"environment"`
	LogLevel       string `json:"log_level,omitzero" yaml:"log_level"`
}

// SecretProviderType selects which secret store backs vault-key resolution.
type SecretProviderType string

const (
	SecretProviderKeyVault SecretProviderType = "keyvault"
	SecretProviderVault    SecretProviderType = "vault"
)

// SecretsConfig configures the secret store used for vault-key credential
// resolution. The Azure Key Vault provider takes its URL from
// AzureOpenAIConfig.KeyVaultURL; the HashiCorp Vault provider is configured
// here.
type SecretsConfig struct {
	Provider SecretProviderType `yaml:"provider" json:"provider,omitzero"`
	Vault    VaultConfig        `yaml:"vault" json:"vault,omitzero"`
}

// VaultConfig holds HashiCorp Vault (KV v2) connection settings.
type VaultConfig struct {
	Address string `yaml:"address" json:"address,omitzero"`
	Token   string `yaml:"token" json:"-"`
	Mount   string `yaml:"mount" json:"mount,omitzero"`
	Path    string `yaml:"path" json:"path,omitzero"`
}

// CacheConfig holds Redis connection settings, used by the circuit breaker
// and health checks. Optional: an empty URL disables both.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" json:"redis_url,omitzero"`
}

// CircuitBreakerConfig tunes the breaker guarding the Azure OpenAI upstream.
type CircuitBreakerConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled,omitzero"`
	FailureThreshold int  `yaml:"failure_threshold" json:"failure_threshold,omitzero"`
	SuccessThreshold int  `yaml:"success_threshold" json:"success_threshold,omitzero"`
	ResetAfterSecs   int  `yaml:"reset_after_seconds" json:"reset_after_seconds,omitzero"`
}

// DatabaseType identifies the relational backend for usage records.
type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgresql"
	MySQL      DatabaseType = "mysql"
	SQLite     DatabaseType = "sqlite"
)

// DatabaseConfig holds relational database connection settings.
type DatabaseConfig struct {
	Type     DatabaseType `yaml:"type" json:"type"`
	DSN      string       `yaml:"dsn,omitempty" json:"dsn,omitzero"`
	Host     string       `yaml:"host,omitempty" json:"host,omitzero"`
	Port     int          `yaml:"port,omitempty" json:"port,omitzero"`
	Username string       `yaml:"username,omitempty" json:"username,omitzero"`
	Password string       `yaml:"password,omitempty" json:"-"`
	Database string       `yaml:"database" json:"database"`
	SSLMode  string       `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitzero"`
	FilePath string       `yaml:"file_path,omitempty" json:"file_path,omitzero"`

	MaxOpenConns    int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitzero"`
	MaxIdleConns    int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitzero"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitzero"`
}

// UsageConfig toggles request usage recording.
type UsageConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled,omitzero"`
	// BufferSize bounds the async recording queue; writes are dropped with a
	// warning when the queue is full rather than blocking the request path.
	BufferSize int `yaml:"buffer_size" json:"buffer_size,omitzero"`
}
