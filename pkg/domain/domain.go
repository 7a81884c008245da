// Package domain validates and canonicalises domain names taken from rule lists.
package domain

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/miekg/dns"
)

const (
	minLength      = 3
	maxLength      = 253
	maxLabelLength = 63
)

var (
	charsetPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9\-.]*[a-z0-9])?$`)
	wwwPattern     = regexp.MustCompile(`^www[0-9]*\.`)
)

// excluded holds loopback names and addresses that show up in hosts files
// but must never be emitted as block rules.
var excluded = map[string]struct{}{
	"localhost":             {},
	"local":                 {},
	"localhost.localdomain": {},
	"broadcasthost":         {},
	"ip6-localhost":         {},
	"ip6-loopback":          {},
	"127.0.0.1":             {},
	"0.0.0.0":               {},
	"::1":                   {},
}

// IsValid reports whether s is a syntactically legal domain. The input is
// expected to be lowercase already.
func IsValid(s string) bool {
	if len(s) < minLength || len(s) > maxLength {
		return false
	}
	if _, ok := excluded[s]; ok {
		return false
	}
	if !strings.Contains(s, ".") {
		return false
	}
	if !charsetPattern.MatchString(s) {
		return false
	}
	if strings.Contains(s, "..") || strings.Contains(s, "--") {
		return false
	}

	labels := dns.SplitDomainName(s)
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) < 1 || len(label) > maxLabelLength {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return true
}

// Normalize lowercases raw, drops all whitespace and surrounding dots and
// strips leading www/wwwN labels. Applying it twice gives the same result as
// applying it once.
func Normalize(raw string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, raw)
	name = strings.Trim(name, ".")
	for wwwPattern.MatchString(name) {
		name = strings.Trim(wwwPattern.ReplaceAllString(name, ""), ".")
	}
	return name
}

// Canonical normalizes raw and reports whether the result is a valid domain.
func Canonical(raw string) (string, bool) {
	name := Normalize(raw)
	if !IsValid(name) {
		return "", false
	}
	return name, true
}
