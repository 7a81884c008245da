package output

import (
	"encoding/json"
	"fmt"
	"time"
)

// SummaryFile is the name of the machine-readable run record.
const SummaryFile = "info.json"

// SourceSummary counts sources by outcome.
type SourceSummary struct {
	Black  int `json:"black"`
	White  int `json:"white"`
	Failed int `json:"failed"`
}

// RemovedSummary counts black domains dropped by the whitelist.
type RemovedSummary struct {
	Exact     int `json:"exact"`
	Subdomain int `json:"subdomain"`
}

// RuleSummary counts the domains in the final sets.
type RuleSummary struct {
	Blacklist int `json:"blacklist_domains"`
	Whitelist int `json:"whitelist_domains"`
}

// Summary is the record written to info.json.
type Summary struct {
	Version   string         `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
	Generator string         `json:"generator,omitempty"`
	Rules     RuleSummary    `json:"rules"`
	Sources   SourceSummary  `json:"sources"`
	Removed   RemovedSummary `json:"removed"`
}

// NewSummary builds the summary record for in.
func NewSummary(in Input) Summary {
	return Summary{
		Version:   in.Version(),
		UpdatedAt: in.GeneratedAt,
		Generator: in.Generator,
		Rules: RuleSummary{
			Blacklist: len(in.Black),
			Whitelist: len(in.White),
		},
		Sources: in.Sources,
		Removed: in.Removed,
	}
}

// RenderSummary encodes the summary record as indented JSON.
func RenderSummary(in Input) ([]byte, error) {
	data, err := json.MarshalIndent(NewSummary(in), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return append(data, '\n'), nil
}
