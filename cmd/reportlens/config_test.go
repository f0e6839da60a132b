package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("RL_TEST_ADDR", ":9090")
	path := filepath.Join(t.TempDir(), "reportlens.yaml")
	content := `
dedup:
  group_by_similar_message: false
  similarity_threshold: 0.7
server:
  addr: ${RL_TEST_ADDR}
  read_timeout: 45s
  rate_limit:
    enabled: false
output:
  format: json
  top_groups: 3
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := defaultConfig()
	if err := loadConfig(path, cfg); err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Dedup.SimilarityThreshold != 0.7 {
		t.Errorf("SimilarityThreshold = %v, want 0.7", cfg.Dedup.SimilarityThreshold)
	}
	if cfg.Dedup.GroupBySimilarMessage {
		t.Error("GroupBySimilarMessage = true, want false")
	}
	if !cfg.Dedup.GroupByRuleID {
		t.Error("GroupByRuleID = false, want default true")
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 45s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 2*time.Minute {
		t.Errorf("Server.WriteTimeout = %v, want default 2m", cfg.Server.WriteTimeout)
	}
	if cfg.Server.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = true, want false")
	}
	if cfg.Output.Format != formatJSON || cfg.Output.TopGroups != 3 {
		t.Errorf("Output = %+v, want json with 3 groups", cfg.Output)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("dedup: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := loadConfig(filepath.Join(dir, "missing.yaml"), defaultConfig()); err == nil {
		t.Error("loadConfig(missing) error = nil")
	}
	if err := loadConfig(bad, defaultConfig()); err == nil {
		t.Error("loadConfig(bad yaml) error = nil")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"REPORTLENS_THRESHOLD": "0.5",
		"REPORTLENS_WORKERS":   "4",
		"REPORTLENS_ADDR":      "127.0.0.1:7000",
		"REPORTLENS_LOG_LEVEL": "warn",
		"REPORTLENS_COMPRESS":  "gzip",
	}
	cfg := defaultConfig()
	if err := applyEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}

	if cfg.Dedup.SimilarityThreshold != 0.5 {
		t.Errorf("SimilarityThreshold = %v, want 0.5", cfg.Dedup.SimilarityThreshold)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("Server.Addr = %q, want 127.0.0.1:7000", cfg.Server.Addr)
	}
	if cfg.LogLevel != "warn" || cfg.Output.Compress != "gzip" {
		t.Errorf("LogLevel, Compress = %q, %q; want warn, gzip", cfg.LogLevel, cfg.Output.Compress)
	}

	for _, key := range []string{"REPORTLENS_THRESHOLD", "REPORTLENS_WORKERS"} {
		bad := map[string]string{key: "lots"}
		if err := applyEnv(defaultConfig(), func(k string) string { return bad[k] }); err == nil {
			t.Errorf("applyEnv(%s=lots) error = nil", key)
		}
	}
}

func TestPrecedence(t *testing.T) {
	t.Setenv("REPORTLENS_THRESHOLD", "0.6")
	dir := t.TempDir()
	input := writeFixture(t, dir, "semgrep.json", semgrepReport)
	cfgPath := filepath.Join(dir, "reportlens.yaml")
	if err := os.WriteFile(cfgPath, []byte("dedup:\n  similarity_threshold: 0.3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Env overrides the file, so 0.6 is valid; a flag of 3 then fails validation.
	if code, _, stderr := runCLI(t, "-config", cfgPath, "-input", input); code != exitOK {
		t.Errorf("run() = %d, want %d; stderr: %s", code, exitOK, stderr)
	}
	if code, _, _ := runCLI(t, "-config", cfgPath, "-input", input, "-threshold", "3"); code != exitUsage {
		t.Errorf("run(-threshold 3) = %d, want %d", code, exitUsage)
	}
}

func TestConfig_Validate(t *testing.T) {
	input := writeFixture(t, t.TempDir(), "a.json", "{}")

	tests := []struct {
		name    string
		modify  func(*Config)
		serve   bool
		inputs  []string
		wantErr bool
	}{
		{"defaults analyze", func(*Config) {}, false, []string{input}, false},
		{"defaults serve", func(*Config) {}, true, nil, false},
		{"no inputs", func(*Config) {}, false, nil, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, false, []string{input}, true},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, false, []string{input}, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false, []string{input}, true},
		{"serve ignores output", func(c *Config) { c.Output.Format = "xml" }, true, nil, false},
		{"serve bad addr", func(c *Config) { c.Server.Addr = "" }, true, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			if err := cfg.validate(tt.serve, tt.inputs); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
