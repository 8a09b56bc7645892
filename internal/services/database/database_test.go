package database

import (
	"testing"

	"github.com/egile-labs/egile-marketing/internal/models"
)

func TestOpenDialector(t *testing.T) {
	tests := []struct {
		name       string
		config     models.DatabaseConfig
		wantDriver string
		wantErr    bool
	}{
		{
			name: "postgres from fields",
			config: models.DatabaseConfig{
				Type: models.PostgreSQL, Host: "localhost", Port: 5432,
				Username: "gateway", Password: "secret", Database: "usage",
			},
			wantDriver: "postgres",
		},
		{
			name:       "mysql from dsn",
			config:     models.DatabaseConfig{Type: models.MySQL, DSN: "gateway:secret@tcp(localhost:3306)/usage"},
			wantDriver: "mysql",
		},
		{
			name:       "sqlite with file path",
			config:     models.DatabaseConfig{Type: models.SQLite, FilePath: "/tmp/usage.db"},
			wantDriver: "sqlite3",
		},
		{
			name:    "sqlite without file path",
			config:  models.DatabaseConfig{Type: models.SQLite},
			wantErr: true,
		},
		{
			name:    "unsupported type",
			config:  models.DatabaseConfig{Type: "mongodb"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialector, driver, err := openDialector(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openDialector failed: %v", err)
			}
			if driver != tt.wantDriver {
				t.Errorf("driver = %q, want %q", driver, tt.wantDriver)
			}
			if dialector == nil {
				t.Error("dialector is nil")
			}
		})
	}
}

func TestSSLModeDefault(t *testing.T) {
	if got := sslMode(""); got != "disable" {
		t.Errorf("sslMode(\"\") = %q, want disable", got)
	}
	if got := sslMode("require"); got != "require" {
		t.Errorf("sslMode(require) = %q", got)
	}
}
