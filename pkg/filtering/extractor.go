package filtering

import (
	"regexp"
	"strings"

	"blockagg/pkg/domain"
)

const exceptionPrefix = "@@"

// Pattern names reported in Rule.Pattern and ParseStats.PatternCounts.
const (
	PatternAnchored = "anchored"
	PatternCaret    = "caret"
	PatternBare     = "bare"
	PatternHosts    = "hosts"
	PatternWildcard = "wildcard"
)

// rulePattern captures a candidate domain in group 1.
type rulePattern struct {
	name string
	re   *regexp.Regexp
}

// rulePatterns is evaluated in order and the first pattern yielding a valid
// domain wins. Anchored Adblock syntax comes first so that such a line is
// never read as a bare literal.
var rulePatterns = []rulePattern{
	{name: PatternAnchored, re: regexp.MustCompile(`^\|\|([^\^\$\*/]+)(?:[\^\$\*/]|$)`)},
	{name: PatternCaret, re: regexp.MustCompile(`(?i)^([a-z0-9.\-]+)\^`)},
	{name: PatternBare, re: regexp.MustCompile(`(?i)^([a-z0-9.\-]+)$`)},
	{name: PatternHosts, re: regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}\s+([^\s#]+)`)},
	{name: PatternWildcard, re: regexp.MustCompile(`(?i)^\*\.([a-z0-9.\-]+)`)},
}

// Rule is a domain extracted from one list line.
type Rule struct {
	Domain    string
	Exception bool
	Pattern   string
}

// Extract pulls a canonical domain out of a single trimmed line. It returns
// false for comments, blank lines and lines no pattern understands.
func Extract(line string) (Rule, bool) {
	if line == "" || isCommentLine(line) {
		return Rule{}, false
	}

	exception := false
	body := line
	if strings.HasPrefix(body, exceptionPrefix) {
		exception = true
		body = strings.TrimPrefix(body, exceptionPrefix)
	}

	for _, p := range rulePatterns {
		match := p.re.FindStringSubmatch(body)
		if match == nil {
			continue
		}
		name, ok := domain.Canonical(match[1])
		if !ok {
			continue
		}
		return Rule{Domain: name, Exception: exception, Pattern: p.name}, true
	}
	return Rule{}, false
}

func isCommentLine(line string) bool {
	return strings.HasPrefix(line, "!") || strings.HasPrefix(line, "#")
}
