package filtering

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const maxLineSize = 1024 * 1024

// ParseOptions configures ParseList.
type ParseOptions struct {
	ListID     string
	Logger     *slog.Logger
	ErrorLimit int
}

// ParseResult holds the domains found in one document.
type ParseResult struct {
	Black *DomainSet
	White *DomainSet
	Stats ParseStats
}

type errorLimiter struct {
	limit int
	count int
}

// ParseList extracts rules from every line of r. Exceptions go to White and
// all other rules to Black; the source role is not consulted here. Lines no
// pattern understands are skipped, so the only error is a read failure.
func ParseList(r io.Reader, opts ParseOptions) (*ParseResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := &ParseResult{
		Black: NewDomainSet(),
		White: NewDomainSet(),
		Stats: ParseStats{PatternCounts: make(map[string]int, len(rulePatterns))},
	}
	stats := &result.Stats
	limiter := errorLimiter{limit: opts.ErrorLimit}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		stats.TotalLines++
		line := strings.TrimSpace(stripBOM(scanner.Text()))
		if line == "" {
			continue
		}
		if isCommentLine(line) {
			stats.Comments++
			continue
		}

		rule, ok := Extract(line)
		if !ok {
			stats.Invalid++
			limiter.log(logger, opts.ListID, lineNum, line)
			continue
		}

		stats.PatternCounts[rule.Pattern]++
		if rule.Exception {
			result.White.Add(rule.Domain)
		} else {
			result.Black.Add(rule.Domain)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan list: %w", err)
	}

	stats.BlackDomains = result.Black.Len()
	stats.WhiteDomains = result.White.Len()
	limiter.summary(logger, opts.ListID, stats.Invalid)
	logger.Info("parsed rule list",
		"list", opts.ListID,
		"black", stats.BlackDomains,
		"white", stats.WhiteDomains,
		"skipped", stats.Invalid,
	)
	return result, nil
}

// Unrecognised lines are routine in Adblock lists, so they are reported at
// debug level only.
func (l *errorLimiter) log(logger *slog.Logger, listID string, lineNum int, line string) {
	if l.limit == 0 {
		return
	}
	if l.limit > 0 && l.count >= l.limit {
		l.count++
		return
	}
	l.count++
	logger.Debug("skipped rule line", "list", listID, "line", lineNum, "entry", line)
}

func (l *errorLimiter) summary(logger *slog.Logger, listID string, invalid int) {
	if l.limit <= 0 {
		return
	}
	if invalid > l.limit {
		logger.Debug("skipped rule lines suppressed", "list", listID, "skipped", invalid, "logged", l.limit)
	}
}

func stripBOM(line string) string {
	return strings.TrimPrefix(line, "\ufeff")
}
