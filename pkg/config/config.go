// Package config loads configuration for the rule list aggregator.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"blockagg/pkg/filtering"
)

const (
	defaultConfigPath = "blockagg.toml"
	configEnvVar      = "BLOCKAGG_CONFIG"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config contains all runtime options of a generation run.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Sources SourcesConfig `mapstructure:"sources"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Path is the configuration file that was read, empty when running on
	// defaults only.
	Path string `mapstructure:"-"`

	settings map[string]interface{}
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level           string `mapstructure:"level"`
	File            string `mapstructure:"file"`
	ParseErrorLimit int    `mapstructure:"parse_error_limit" validate:"gte=0"`
}

// SourcesConfig declares where rule lists come from.
type SourcesConfig struct {
	BlackFile string                          `mapstructure:"black_file"`
	WhiteFile string                          `mapstructure:"white_file"`
	Allowlist string                          `mapstructure:"allowlist"`
	Catalog   []string                        `mapstructure:"catalog"`
	Lists     map[string]filtering.ListConfig `mapstructure:"-" validate:"dive"`
}

// FetchConfig holds download settings.
type FetchConfig struct {
	Workers    int           `mapstructure:"workers" validate:"gte=1,lte=64"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries    int           `mapstructure:"retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	UserAgent  string        `mapstructure:"user_agent" validate:"required"`
	CacheDir   string        `mapstructure:"cache_dir"`
	Resolver   string        `mapstructure:"resolver"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Path overrides the config file location.
	Path string
	// Flags are bound on top of the file values when set.
	Flags *pflag.FlagSet
}

// ValidateLogLevel ensures the user-provided log level matches the supported set.
func ValidateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(level)] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
	}
	return nil
}

// ValidateAddress confirms that an address string has a valid host and UDP port.
func ValidateAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if port == "" {
		return errors.New("invalid port")
	}
	if err != nil {
		return fmt.Errorf("invalid address format %s: %w", addr, err)
	}
	if ip := net.ParseIP(host); ip == nil {
		return fmt.Errorf("invalid IP address: %s", host)
	}
	if _, err := net.LookupPort("udp", port); err != nil {
		return fmt.Errorf("invalid port: %s", port)
	}
	return nil
}

// ParseResolver adds the default DNS port when a resolver is provided without one.
func ParseResolver(resolver string) string {
	if _, _, err := net.SplitHostPort(resolver); err == nil {
		return resolver
	}
	if ip := net.ParseIP(resolver); ip != nil {
		return net.JoinHostPort(resolver, "53")
	}
	return resolver
}

// Load reads the TOML configuration file and produces a Config instance.
func Load(opts LoadOptions) (*Config, error) {
	configPath, explicit := resolvePath(opts.Path)

	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	readPath := ""
	if _, err := os.Stat(configPath); err == nil || explicit {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		readPath = configPath
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Path = readPath

	listConfigs, err := parseListConfigs(v)
	if err != nil {
		return nil, err
	}
	cfg.Sources.Lists = listConfigs
	cfg.settings = v.AllSettings()

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func resolvePath(path string) (string, bool) {
	if path != "" {
		return path, true
	}
	if fromEnv := strings.TrimSpace(os.Getenv(configEnvVar)); fromEnv != "" {
		return fromEnv, true
	}
	return defaultConfigPath, false
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"logging.level": "log-level",
		"output.dir":    "output-dir",
		"fetch.workers": "workers",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "stdout")
	v.SetDefault("logging.parse_error_limit", 20)
	v.SetDefault("sources.black_file", "rules/sources/black.txt")
	v.SetDefault("sources.white_file", "rules/sources/white.txt")
	v.SetDefault("sources.allowlist", "")
	v.SetDefault("sources.catalog", []string{})
	v.SetDefault("fetch.workers", 5)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("fetch.retry_delay", "2s")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; blockagg)")
	v.SetDefault("fetch.cache_dir", "")
	v.SetDefault("fetch.resolver", "")
	v.SetDefault("output.dir", "rules/outputs")
	v.SetDefault("metrics.textfile", "")
}

func validateConfig(cfg *Config) error {
	if err := ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}

	if err := validate.Struct(cfg); err != nil {
		return convertValidatorErrors(err)
	}

	if cfg.Fetch.Resolver != "" {
		parsed := ParseResolver(cfg.Fetch.Resolver)
		if err := ValidateAddress(parsed); err != nil {
			return fmt.Errorf("invalid fetch.resolver %s: %w", cfg.Fetch.Resolver, err)
		}
		cfg.Fetch.Resolver = parsed
	}

	for _, id := range cfg.Sources.Catalog {
		if _, ok := filtering.Catalog[id]; !ok {
			return fmt.Errorf("sources.catalog: unknown list %q", id)
		}
	}

	if allowlist := cfg.Sources.Allowlist; allowlist != "" {
		if _, err := os.Stat(allowlist); err != nil {
			return fmt.Errorf("sources.allowlist not accessible: %w", err)
		}
	}

	return nil
}

func convertValidatorErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	var combined error
	for _, fe := range fieldErrs {
		combined = multierr.Append(combined, fmt.Errorf("%s: failed %q validation (value %v)", configKey(fe.Namespace()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %w", combined)
}

// configKey turns a validator namespace such as Config.Fetch.Workers into
// the matching TOML key path.
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = toSnake(part)
	}
	return strings.Join(parts, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseListConfigs(v *viper.Viper) (map[string]filtering.ListConfig, error) {
	raw := v.GetStringMap("sources.lists")
	if len(raw) == 0 {
		return map[string]filtering.ListConfig{}, nil
	}

	listConfigs := make(map[string]filtering.ListConfig)
	for key, value := range raw {
		subMap, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("sources.lists.%s must be a table", key)
		}
		var cfg filtering.ListConfig
		if err := mapstructure.Decode(subMap, &cfg); err != nil {
			return nil, fmt.Errorf("parse sources.lists.%s: %w", key, err)
		}
		listConfigs[strings.ToLower(key)] = cfg
	}

	return listConfigs, nil
}

// TOML encodes the effective settings with credentials redacted.
func (c *Config) TOML() ([]byte, error) {
	data, err := toml.Marshal(redact(c.settings))
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

var secretKeys = map[string]bool{"password": true, "token": true}

func redact(settings map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for key, value := range settings {
		switch typed := value.(type) {
		case map[string]interface{}:
			out[key] = redact(typed)
		default:
			if secretKeys[key] && fmt.Sprint(value) != "" {
				out[key] = "REDACTED"
				continue
			}
			out[key] = value
		}
	}
	return out
}
