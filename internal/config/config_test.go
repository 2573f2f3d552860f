package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

// newTestFlagSet returns a flag set already marked as parsed so Load
// does not pick up the test binary's own arguments.
func newTestFlagSet(t *testing.T) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	return fs
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key := strings.SplitN(kv, "=", 2)[0]
		if strings.HasPrefix(key, envPrefix+"_") {
			os.Unsetenv(key)
		}
	}
}

func TestSpecificationDefaults(t *testing.T) {
	clearTestEnv(t)

	cfg, err := Load("", newTestFlagSet(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.Provider)
	}
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Errorf("OllamaURL = %q", cfg.OllamaURL)
	}
	if cfg.EmbedModel != "nomic-embed-text:v1.5" {
		t.Errorf("EmbedModel = %q", cfg.EmbedModel)
	}
	if cfg.Dim != 768 {
		t.Errorf("Dim = %d, want 768", cfg.Dim)
	}
	if cfg.ChunkSize != 1200 {
		t.Errorf("ChunkSize = %d, want 1200", cfg.ChunkSize)
	}
	if cfg.MinChunkSize != 250 {
		t.Errorf("MinChunkSize = %d, want 250", cfg.MinChunkSize)
	}
	if cfg.Threshold != 0.3 {
		t.Errorf("Threshold = %v, want 0.3", cfg.Threshold)
	}
	if cfg.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.TopK)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestMissingConfigFile(t *testing.T) {
	clearTestEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), newTestFlagSet(t))
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	clearTestEnv(t)
	t.Setenv(envPrefix+"_DB_URL", "postgres://env-host/db")
	t.Setenv(envPrefix+"_SIMILARITY_THRESHOLD", "0.5")
	t.Setenv(envPrefix+"_TOP_K", "8")
	t.Setenv(envPrefix+"_ALLOWED_USERS", "100,200")

	cfg, err := Load("", newTestFlagSet(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database != "postgres://env-host/db" {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", cfg.Threshold)
	}
	if cfg.TopK != 8 {
		t.Errorf("TopK = %d, want 8", cfg.TopK)
	}
	if len(cfg.AllowedUsers) != 2 || cfg.AllowedUsers[0] != 100 || cfg.AllowedUsers[1] != 200 {
		t.Errorf("AllowedUsers = %v", cfg.AllowedUsers)
	}
}

func TestYAMLFileOverridesDefaults(t *testing.T) {
	clearTestEnv(t)

	path := filepath.Join(t.TempDir(), "docbot.yaml")
	yaml := `
database: postgres://yaml-host/db
chunkSize: 800
minChunkSize: 100
topK: 3
logLevel: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, newTestFlagSet(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database != "postgres://yaml-host/db" {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.ChunkSize != 800 {
		t.Errorf("ChunkSize = %d, want 800", cfg.ChunkSize)
	}
	if cfg.MinChunkSize != 100 {
		t.Errorf("MinChunkSize = %d, want 100", cfg.MinChunkSize)
	}
	if cfg.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.TopK)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Untouched fields keep their defaults.
	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.Provider)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	clearTestEnv(t)

	path := filepath.Join(t.TempDir(), "docbot.yaml")
	if err := os.WriteFile(path, []byte("topK: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envPrefix+"_TOP_K", "9")

	cfg, err := Load(path, newTestFlagSet(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TopK != 9 {
		t.Errorf("TopK = %d, want env value 9", cfg.TopK)
	}
}
