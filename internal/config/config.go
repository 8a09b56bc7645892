package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/egile-labs/egile-marketing/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Server         models.ServerConfig         `yaml:"server"`
	AzureOpenAI    models.AzureOpenAIConfig    `yaml:"azure_openai"`
	Secrets        models.SecretsConfig        `yaml:"secrets"`
	Cache          models.CacheConfig          `yaml:"cache"`
	CircuitBreaker models.CircuitBreakerConfig `yaml:"circuit_breaker"`
	Database       *models.DatabaseConfig      `yaml:"database,omitempty"`
	Usage          models.UsageConfig          `yaml:"usage"`
}

// LoadFromFile loads configuration from a YAML file with environment variable
// substitution, then overlays the Azure OpenAI environment variables on top:
// the environment always wins over YAML for connection settings.
func LoadFromFile(configPath string, env Environment) (*Config, error) {
	cfg, err := parseFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg.AzureOpenAI = OverlayAzureOpenAI(cfg.AzureOpenAI, env)
	return cfg, nil
}

func parseFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFiles loads environment variables from .env files in order of
// precedence. Files are loaded in the order provided (first has highest
// priority); missing files are skipped silently.
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns
// with environment variables
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// UsageEnabled reports whether usage recording is on and has a database to
// write to.
func (c *Config) UsageEnabled() bool {
	return c.Usage.Enabled && c.Database != nil
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.AzureOpenAI.Endpoint == "" {
		missing = append(missing, "azure_openai.endpoint")
	}
	if c.Usage.Enabled && c.Database == nil {
		missing = append(missing, "database (required when usage.enabled)")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
