package filtering

import (
	"slices"
	"strings"
)

// DomainSet stores unique canonical domains.
type DomainSet struct {
	domains map[string]struct{}
}

// NewDomainSet creates an empty DomainSet.
func NewDomainSet(domains ...string) *DomainSet {
	s := &DomainSet{domains: make(map[string]struct{}, len(domains))}
	for _, domain := range domains {
		s.Add(domain)
	}
	return s
}

// Add adds a domain to the set.
func (s *DomainSet) Add(domain string) {
	if domain == "" {
		return
	}
	s.domains[domain] = struct{}{}
}

// Remove deletes a domain from the set.
func (s *DomainSet) Remove(domain string) {
	delete(s.domains, domain)
}

// Contains reports whether the exact domain is present.
func (s *DomainSet) Contains(domain string) bool {
	if s == nil {
		return false
	}
	_, ok := s.domains[domain]
	return ok
}

// Len returns the number of domains in the set.
func (s *DomainSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.domains)
}

// Merge merges another DomainSet into this one.
func (s *DomainSet) Merge(other *DomainSet) {
	if other == nil {
		return
	}
	for domain := range other.domains {
		s.domains[domain] = struct{}{}
	}
}

// Clone returns an independent copy of the set.
func (s *DomainSet) Clone() *DomainSet {
	clone := NewDomainSet()
	clone.Merge(s)
	return clone
}

// Sorted returns the domains in ascending lexicographic order.
func (s *DomainSet) Sorted() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.domains))
	for domain := range s.domains {
		out = append(out, domain)
	}
	slices.Sort(out)
	return out
}

// CoversParent reports whether a strict parent domain of name is in the set,
// i.e. name ends with "." followed by a member.
func (s *DomainSet) CoversParent(name string) bool {
	if s == nil || len(s.domains) == 0 {
		return false
	}
	labels := strings.Split(name, ".")
	return matchesSuffix(labels, s.domains)
}

func matchesSuffix(labels []string, set map[string]struct{}) bool {
	for i := 1; i < len(labels); i++ {
		suffix := strings.Join(labels[i:], ".")
		if _, ok := set[suffix]; ok {
			return true
		}
	}
	return false
}
