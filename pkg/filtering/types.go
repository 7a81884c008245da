package filtering

import "fmt"

// Role declares how the aggregator interprets a source.
type Role string

const (
	// RoleBlack sources contribute block rules and their own exceptions.
	RoleBlack Role = "black"
	// RoleWhite sources contribute exceptions only.
	RoleWhite Role = "white"
)

// ParseRole converts a configuration value into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleBlack, "":
		return RoleBlack, nil
	case RoleWhite:
		return RoleWhite, nil
	default:
		return "", fmt.Errorf("unknown source role %q (must be black or white)", raw)
	}
}

// Source describes a configured rule list.
type Source struct {
	ID       string
	Location string
	Role     Role
	Enabled  bool
	Auth     AuthConfig
}

// AuthConfig defines optional authentication for a source.
type AuthConfig struct {
	Username string
	Password string
	Token    string
	Header   string
	Scheme   string
}

// ListConfig defines a rule list configuration entry.
type ListConfig struct {
	Enabled  bool   `mapstructure:"enabled" toml:"enabled"`
	Role     string `mapstructure:"role" toml:"role" validate:"omitempty,oneof=black white"`
	URL      string `mapstructure:"url" toml:"url"`
	Username string `mapstructure:"username" toml:"username,omitempty"`
	Password string `mapstructure:"password" toml:"password,omitempty"`
	Token    string `mapstructure:"token" toml:"token,omitempty"`
	Header   string `mapstructure:"header" toml:"header,omitempty"`
	Scheme   string `mapstructure:"scheme" toml:"scheme,omitempty"`
}

// ParseStats summarises list parsing results.
type ParseStats struct {
	TotalLines    int
	Comments      int
	BlackDomains  int
	WhiteDomains  int
	Invalid       int
	PatternCounts map[string]int
}

// SourceResult is the parsed content of one fetched source.
type SourceResult struct {
	Source Source
	Black  *DomainSet
	White  *DomainSet
	Stats  ParseStats
}
