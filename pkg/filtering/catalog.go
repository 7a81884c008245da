// Package filtering turns raw rule lists into canonical black and white
// domain sets.
package filtering

// ListDefinition describes a built-in rule list.
type ListDefinition struct {
	ID          string
	Name        string
	URL         string
	Role        Role
	Description string
}

// Catalog lists the built-in rule lists available for selection.
var Catalog = map[string]ListDefinition{
	"adguard_adservers": {
		ID:          "adguard_adservers",
		Name:        "AdGuard Base - Ad servers",
		URL:         "https://raw.githubusercontent.com/AdguardTeam/AdguardFilters/master/BaseFilter/sections/adservers.txt",
		Role:        RoleBlack,
		Description: "Advertising servers from the AdGuard base filter.",
	},
	"adguard_tracking": {
		ID:          "adguard_tracking",
		Name:        "AdGuard Base - Tracking",
		URL:         "https://raw.githubusercontent.com/AdguardTeam/AdguardFilters/master/BaseFilter/sections/tracking.txt",
		Role:        RoleBlack,
		Description: "Tracking servers from the AdGuard base filter.",
	},
	"adguard_filters": {
		ID:          "adguard_filters",
		Name:        "AdGuard Base - Generic filters",
		URL:         "https://raw.githubusercontent.com/AdguardTeam/AdguardFilters/master/BaseFilter/sections/filters.txt",
		Role:        RoleBlack,
		Description: "Generic network filters from the AdGuard base filter.",
	},
	"adguard_whitelist": {
		ID:          "adguard_whitelist",
		Name:        "AdGuard Base - Allowlist",
		URL:         "https://raw.githubusercontent.com/AdguardTeam/AdguardFilters/master/BaseFilter/sections/whitelist.txt",
		Role:        RoleWhite,
		Description: "Exception rules from the AdGuard base filter.",
	},
	"adguard_dns": {
		ID:          "adguard_dns",
		Name:        "AdGuard DNS Filter",
		URL:         "https://adguardteam.github.io/AdGuardSDNSFilter/Filters/filter.txt",
		Role:        RoleBlack,
		Description: "Ad and tracker blocking list.",
	},
	"stevenblack_hosts": {
		ID:          "stevenblack_hosts",
		Name:        "StevenBlack - Unified hosts",
		URL:         "https://raw.githubusercontent.com/StevenBlack/hosts/master/hosts",
		Role:        RoleBlack,
		Description: "Unified hosts file with ad and malware domains.",
	},
	"blocklistproject_ads": {
		ID:          "blocklistproject_ads",
		Name:        "Block List Project - Ads",
		URL:         "https://blocklistproject.github.io/Lists/ads.txt",
		Role:        RoleBlack,
		Description: "Advertising and tracking hosts.",
	},
	"blocklistproject_tracking": {
		ID:          "blocklistproject_tracking",
		Name:        "Block List Project - Tracking",
		URL:         "https://blocklistproject.github.io/Lists/tracking.txt",
		Role:        RoleBlack,
		Description: "Hosts associated with user tracking.",
	},
	"oisd_basic": {
		ID:          "oisd_basic",
		Name:        "OISD Basic",
		URL:         "https://small.oisd.nl/",
		Role:        RoleBlack,
		Description: "Ad and tracker blocking list in Adblock syntax.",
	},
}
