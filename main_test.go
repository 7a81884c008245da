package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/miekg/dns"

	"blockagg/internal/testutil"
	"blockagg/pkg/pipeline"
)

type testConfig struct {
	dir       string
	outputDir string
	logFile   string
	blackFile string
	whiteFile string
	resolver  string
}

func newTestConfig(t *testing.T, blackURLs, whiteURLs []string) *testConfig {
	t.Helper()
	dir := t.TempDir()
	tc := &testConfig{
		dir:       dir,
		outputDir: filepath.Join(dir, "outputs"),
		logFile:   filepath.Join(dir, "blockagg.log"),
		blackFile: filepath.Join(dir, "black.txt"),
		whiteFile: filepath.Join(dir, "white.txt"),
	}
	if err := os.WriteFile(tc.blackFile, []byte(strings.Join(blackURLs, "\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tc.whiteFile, []byte(strings.Join(whiteURLs, "\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	return tc
}

func (tc *testConfig) write(t *testing.T) string {
	t.Helper()
	content := fmt.Sprintf(`[logging]
level = "debug"
file = %q

[sources]
black_file = %q
white_file = %q

[fetch]
retries = 0
retry_delay = "1ms"
resolver = %q

[output]
dir = %q
`, tc.logFile, tc.blackFile, tc.whiteFile, tc.resolver, tc.outputDir)
	path := filepath.Join(tc.dir, "blockagg.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.HasPrefix(out, "blockagg ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestListsCommand(t *testing.T) {
	out, err := execute(t, "lists")
	if err != nil {
		t.Fatalf("lists returned error: %v", err)
	}
	for _, want := range []string{"ID", "adguard_dns", "stevenblack_hosts", "white"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog output lacks %q:\n%s", want, out)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	tc := newTestConfig(t, nil, nil)
	out, err := execute(t, "config", "--config", tc.write(t), "--log-level", "warn")
	if err != nil {
		t.Fatalf("config returned error: %v", err)
	}
	if !strings.Contains(out, tc.outputDir) {
		t.Errorf("effective config lacks the output dir:\n%s", out)
	}
	if !strings.Contains(out, "level = 'warn'") && !strings.Contains(out, `level = "warn"`) {
		t.Errorf("log level flag not applied:\n%s", out)
	}
}

func TestGenerateCommand(t *testing.T) {
	server := testutil.StartListServer(t, map[string]string{
		"/ads.txt":   "||ads.example.com^\n||cdn.example.com^\n0.0.0.0 tracker.example.net # hosts\n",
		"/allow.txt": "@@||cdn.example.com^\n",
	})
	tc := newTestConfig(t, []string{server.URL + "/ads.txt"}, []string{server.URL + "/allow.txt"})

	if _, err := execute(t, "--config", tc.write(t)); err != nil {
		t.Fatalf("generate returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tc.outputDir, "hosts.txt"))
	if err != nil {
		t.Fatalf("hosts.txt not written: %v", err)
	}
	hosts := string(data)
	for _, want := range []string{"0.0.0.0 ads.example.com\n", "0.0.0.0 tracker.example.net\n"} {
		if !strings.Contains(hosts, want) {
			t.Errorf("hosts.txt lacks %q:\n%s", want, hosts)
		}
	}
	if strings.Contains(hosts, "cdn.example.com") {
		t.Errorf("whitelisted domain present in hosts.txt:\n%s", hosts)
	}

	logContent, err := os.ReadFile(tc.logFile)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(logContent), "run finished") {
		t.Errorf("log lacks the run summary:\n%s", logContent)
	}
}

func TestGenerateSubcommandOverridesOutputDir(t *testing.T) {
	server := testutil.StartListServer(t, map[string]string{
		"/ads.txt": "||ads.example.com^\n",
	})
	tc := newTestConfig(t, []string{server.URL + "/ads.txt"}, nil)
	override := filepath.Join(tc.dir, "override")

	if _, err := execute(t, "generate", "--config", tc.write(t), "--output-dir", override); err != nil {
		t.Fatalf("generate returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(override, "ad.txt")); err != nil {
		t.Errorf("ad.txt not written to the override dir: %v", err)
	}
	if _, err := os.Stat(tc.outputDir); !os.IsNotExist(err) {
		t.Errorf("configured output dir must stay untouched, stat err = %v", err)
	}
}

func TestGenerateFailsWithoutSources(t *testing.T) {
	tc := newTestConfig(t, nil, nil)

	_, err := execute(t, "--config", tc.write(t))
	if !errors.Is(err, pipeline.ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
	if _, err := os.Stat(tc.outputDir); !os.IsNotExist(err) {
		t.Errorf("output dir must not be created on fatal errors, stat err = %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	stub := testutil.StartDNSStub(t, testutil.FixedHandler(map[string]testutil.Response{
		testutil.Key("lists.example.com.", dns.TypeA): {
			Answers: []dns.RR{testutil.ARecord("lists.example.com.", "192.0.2.10")},
		},
	}))

	tc := newTestConfig(t, []string{"https://lists.example.com/ads.txt"}, nil)
	tc.resolver = stub.Addr
	path := tc.write(t)

	out, err := execute(t, "check", "--config", path)
	if err != nil {
		t.Fatalf("check returned error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "black_1") || !strings.Contains(out, "ok") {
		t.Errorf("unexpected check output:\n%s", out)
	}

	if err := os.WriteFile(tc.blackFile, []byte("https://gone.example.net/x.txt\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "check", "--config", path)
	if !errors.Is(err, errPreflightFailed) {
		t.Fatalf("expected errPreflightFailed, got %v", err)
	}
	if !strings.Contains(out, "FAIL") {
		t.Errorf("unexpected check output:\n%s", out)
	}
}

func TestSignalContextCancelsOnInterrupt(t *testing.T) {
	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled by SIGINT")
	}
}
