package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary directory for test files
	tempDir, err := os.MkdirTemp("", "config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// Test cases
	tests := []struct {
		name        string
		configData  string
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "Valid config file",
			configData: `
apiPort: 9090
quota:
  dailyLimit: 10
database:
  type: sqlite
  path: /tmp/test.db
`,
			expectError: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.APIPort != 9090 {
					t.Errorf("Expected apiPort 9090, got %d", cfg.APIPort)
				}
				if cfg.Quota.DailyLimit != 10 {
					t.Errorf("Expected dailyLimit 10, got %d", cfg.Quota.DailyLimit)
				}
				if cfg.Database.Path != "/tmp/test.db" {
					t.Errorf("Expected database path /tmp/test.db, got %s", cfg.Database.Path)
				}
			},
		},
		{
			name:        "Empty config gets defaults",
			configData:  "",
			expectError: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.APIPort != 8081 {
					t.Errorf("Expected default apiPort 8081, got %d", cfg.APIPort)
				}
				if cfg.Quota.DailyLimit != 5 {
					t.Errorf("Expected default dailyLimit 5, got %d", cfg.Quota.DailyLimit)
				}
				if cfg.Downloads.PaceSeconds != 3 {
					t.Errorf("Expected default paceSeconds 3, got %d", cfg.Downloads.PaceSeconds)
				}
				if cfg.Database.Type != "sqlite" {
					t.Errorf("Expected default database type sqlite, got %s", cfg.Database.Type)
				}
			},
		},
		{
			name: "Invalid yaml",
			configData: `
apiPort: [not a port
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create config file
			configPath := filepath.Join(tempDir, "app.yml")
			if err := os.WriteFile(configPath, []byte(tt.configData), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			// Load config
			cfg, err := LoadConfig(configPath)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
