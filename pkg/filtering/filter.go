package filtering

// FilterStats counts black domains removed by ApplyWhitelist.
type FilterStats struct {
	Exact     int
	Subdomain int
}

// Removed returns the total number of removed domains.
func (s FilterStats) Removed() int {
	return s.Exact + s.Subdomain
}

// ApplyWhitelist returns the black domains that are neither in white nor a
// subdomain of a white entry. Neither input set is modified.
func ApplyWhitelist(black, white *DomainSet) (*DomainSet, FilterStats) {
	var stats FilterStats
	result := black.Clone()
	if white.Len() == 0 {
		return result, stats
	}

	for domain := range result.domains {
		if white.Contains(domain) {
			result.Remove(domain)
			stats.Exact++
		}
	}

	for domain := range result.domains {
		if white.CoversParent(domain) {
			result.Remove(domain)
			stats.Subdomain++
		}
	}

	return result, stats
}
