package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blockagg.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateLogLevel(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error", "DEBUG", "INFO", "WARN", "ERROR"}
	for _, level := range validLevels {
		if err := ValidateLogLevel(level); err != nil {
			t.Errorf("ValidateLogLevel(%s) returned error: %v", level, err)
		}
	}

	invalidLevels := []string{"", "trace", "fatal", "invalid", "debugging"}
	for _, level := range invalidLevels {
		if err := ValidateLogLevel(level); err == nil {
			t.Errorf("ValidateLogLevel(%s) should return error", level)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	validAddresses := []string{
		"127.0.0.1:53",
		"8.8.8.8:53",
		"192.168.1.1:5353",
	}
	for _, addr := range validAddresses {
		if err := ValidateAddress(addr); err != nil {
			t.Errorf("ValidateAddress(%s) returned error: %v", addr, err)
		}
	}

	invalidAddresses := []string{
		"localhost:53",       // not IP
		"127.0.0.1",          // no port
		"256.256.256.256:53", // invalid IP
		"8.8.8.8:999999",     // invalid port
		":53",                // missing IP
		"127.0.0.1:",         // missing port
	}
	for _, addr := range invalidAddresses {
		if err := ValidateAddress(addr); err == nil {
			t.Errorf("ValidateAddress(%s) should return error", addr)
		}
	}
}

func TestParseResolver(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"8.8.8.8", "8.8.8.8:53"},
		{"8.8.8.8:5353", "8.8.8.8:5353"},
		{"1.1.1.1", "1.1.1.1:53"},
		{"::1", "[::1]:53"},
	}

	for _, tt := range tests {
		if result := ParseResolver(tt.input); result != tt.expected {
			t.Errorf("ParseResolver(%s) = %s, want %s", tt.input, result, tt.expected)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := os.Chdir(wd); err != nil {
			t.Errorf("os.Chdir: %v", err)
		}
	}()
	t.Setenv(configEnvVar, "")

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty when no file exists", cfg.Path)
	}
	if cfg.Fetch.Workers != 5 || cfg.Fetch.Timeout != 30*time.Second || cfg.Fetch.RetryDelay != 2*time.Second {
		t.Errorf("unexpected fetch defaults %+v", cfg.Fetch)
	}
	if cfg.Output.Dir != "rules/outputs" {
		t.Errorf("Output.Dir = %q", cfg.Output.Dir)
	}
	if cfg.Sources.BlackFile != "rules/sources/black.txt" || cfg.Sources.WhiteFile != "rules/sources/white.txt" {
		t.Errorf("unexpected source files %+v", cfg.Sources)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.ParseErrorLimit != 20 {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"

[fetch]
workers = 3
timeout = "10s"
resolver = "9.9.9.9"

[sources]
catalog = ["adguard_dns"]

[sources.lists.Private]
url = "https://lists.example.com/private.txt"
role = "white"
token = "secret"

[output]
dir = "out"
`)

	cfg, err := Load(LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Fetch.Workers != 3 || cfg.Fetch.Timeout != 10*time.Second {
		t.Errorf("file values not applied: %+v %+v", cfg.Logging, cfg.Fetch)
	}
	if cfg.Fetch.Resolver != "9.9.9.9:53" {
		t.Errorf("Resolver = %q", cfg.Fetch.Resolver)
	}
	list, ok := cfg.Sources.Lists["private"]
	if !ok {
		t.Fatalf("expected list private, got %+v", cfg.Sources.Lists)
	}
	if list.URL != "https://lists.example.com/private.txt" || list.Role != "white" || list.Token != "secret" {
		t.Errorf("unexpected list config %+v", list)
	}
	if len(cfg.Sources.Catalog) != 1 || cfg.Sources.Catalog[0] != "adguard_dns" {
		t.Errorf("Catalog = %v", cfg.Sources.Catalog)
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "[output]\ndir = \"from-env\"\n")
	t.Setenv(configEnvVar, path)

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Output.Dir != "from-env" {
		t.Errorf("Output.Dir = %q", cfg.Output.Dir)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "missing.toml")}); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"warn\"\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("output-dir", "", "")
	if err := flags.Parse([]string{"--log-level=error"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{Path: path, Flags: flags})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Level = %q, want flag value", cfg.Logging.Level)
	}
	if cfg.Output.Dir != "rules/outputs" {
		t.Errorf("unset flag must not override default, got %q", cfg.Output.Dir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"log level", "[logging]\nlevel = \"loud\"\n", "invalid log level"},
		{"workers", "[fetch]\nworkers = 0\n", "fetch.workers"},
		{"retries", "[fetch]\nretries = -1\n", "fetch.retries"},
		{"role", "[sources.lists.x]\nurl = \"https://x.example.com\"\nrole = \"grey\"\n", "role"},
		{"catalog", "[sources]\ncatalog = [\"nope\"]\n", "unknown list"},
		{"resolver", "[fetch]\nresolver = \"dns.example.com\"\n", "fetch.resolver"},
		{"allowlist", "[sources]\nallowlist = \"/does/not/exist\"\n", "sources.allowlist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoadOptions{Path: writeConfig(t, tt.content)})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestTOMLRedactsSecrets(t *testing.T) {
	path := writeConfig(t, `
[sources.lists.private]
url = "https://lists.example.com/private.txt"
password = "hunter2"
token = "t0ken-value"
`)
	cfg, err := Load(LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	data, err := cfg.TOML()
	if err != nil {
		t.Fatalf("TOML returned error: %v", err)
	}
	if strings.Contains(string(data), "hunter2") || strings.Contains(string(data), "t0ken-value") {
		t.Errorf("secrets leaked:\n%s", data)
	}

	var decoded map[string]interface{}
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("dump is not valid TOML: %v\n%s", err, data)
	}
	if _, ok := decoded["fetch"]; !ok {
		t.Errorf("dump lacks the fetch table:\n%s", data)
	}
}
