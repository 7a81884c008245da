// Package output renders the final domain sets into rule files.
package output

import (
	"bytes"
	"strconv"
	"time"

	"github.com/valyala/fasttemplate"
)

const timeLayout = "2006-01-02 15:04:05"

// File is one rendered output file.
type File struct {
	Name string
	Data []byte
}

// Input carries everything the formats render.
type Input struct {
	Black       []string
	White       []string
	GeneratedAt time.Time
	Generator   string
	Sources     SourceSummary
	Removed     RemovedSummary
}

// Version is the list version derived from the generation date.
func (in Input) Version() string {
	return in.GeneratedAt.Format("20060102")
}

// Format describes one rule file.
type Format struct {
	Name    string
	File    string
	Title   string
	Comment string
	Header  string
	Preface string
	// BlackLine and WhiteLine format one domain of the respective set; a
	// nil func leaves that set out of the file.
	BlackLine func(domain string) string
	WhiteLine func(domain string) string
}

const adblockHeader = `{{c}} Title: {{title}}
{{c}} Generated: {{generated}}
{{c}} Version: {{version}}
{{c}} Generator: {{generator}}
{{c}} Blocked domains: {{black}}
{{c}} Exception domains: {{white}}
`

const listHeader = `{{c}} Title: {{title}}
{{c}} Generated: {{generated}}
{{c}} Version: {{version}}
{{c}} Generator: {{generator}}
{{c}} Domains: {{count}}
`

// Formats lists every rule file in the order they are written.
var Formats = []Format{
	{
		Name:      "adblock",
		File:      "ad.txt",
		Title:     "Aggregated ad blocking rules",
		Comment:   "!",
		Header:    adblockHeader,
		BlackLine: BlockRule,
		WhiteLine: ExceptionRule,
	},
	{
		Name:      "dns",
		File:      "dns.txt",
		Title:     "DNS blocking list",
		Comment:   "#",
		Header:    listHeader,
		BlackLine: func(domain string) string { return domain },
	},
	{
		Name:      "hosts",
		File:      "hosts.txt",
		Title:     "Hosts file blocking list",
		Comment:   "#",
		Header:    listHeader,
		Preface:   "127.0.0.1 localhost\n::1 localhost\n\n",
		BlackLine: func(domain string) string { return "0.0.0.0 " + domain },
	},
	{
		Name:      "black",
		File:      "black.txt",
		Title:     "Blocked domains",
		Comment:   "!",
		Header:    listHeader,
		BlackLine: BlockRule,
	},
	{
		Name:      "white",
		File:      "white.txt",
		Title:     "Exception domains",
		Comment:   "!",
		Header:    listHeader,
		WhiteLine: ExceptionRule,
	},
}

// BlockRule formats domain as an Adblock block rule.
func BlockRule(domain string) string {
	return "||" + domain + "^"
}

// ExceptionRule formats domain as an Adblock exception rule.
func ExceptionRule(domain string) string {
	return "@@" + BlockRule(domain)
}

// Render produces the body of f for in.
func (f Format) Render(in Input) []byte {
	count := 0
	if f.BlackLine != nil {
		count += len(in.Black)
	}
	if f.WhiteLine != nil {
		count += len(in.White)
	}

	var buf bytes.Buffer
	tmpl := fasttemplate.New(f.Header, "{{", "}}")
	buf.WriteString(tmpl.ExecuteString(map[string]interface{}{
		"c":         f.Comment,
		"title":     f.Title,
		"generated": in.GeneratedAt.Format(timeLayout),
		"version":   in.Version(),
		"generator": in.Generator,
		"black":     strconv.Itoa(len(in.Black)),
		"white":     strconv.Itoa(len(in.White)),
		"count":     strconv.Itoa(count),
	}))
	buf.WriteString("\n")
	buf.WriteString(f.Preface)

	if count == 0 {
		buf.WriteString(f.Comment + " no domains\n")
		return buf.Bytes()
	}

	if f.BlackLine != nil {
		writeLines(&buf, in.Black, f.BlackLine)
	}
	if f.WhiteLine != nil {
		writeLines(&buf, in.White, f.WhiteLine)
	}
	return buf.Bytes()
}

func writeLines(buf *bytes.Buffer, domains []string, line func(string) string) {
	for _, domain := range domains {
		buf.WriteString(line(domain))
		buf.WriteByte('\n')
	}
}

// Render produces every rule file plus the summary record.
func Render(in Input) ([]File, error) {
	files := make([]File, 0, len(Formats)+1)
	for _, f := range Formats {
		files = append(files, File{Name: f.File, Data: f.Render(in)})
	}
	summary, err := RenderSummary(in)
	if err != nil {
		return nil, err
	}
	files = append(files, File{Name: SummaryFile, Data: summary})
	return files, nil
}
