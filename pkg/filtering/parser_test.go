package filtering

import (
	"bytes"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

func TestParseListMixedSyntax(t *testing.T) {
	input := strings.Join([]string{
		"\ufeff! Title: mixed list",
		"# Comment line",
		"||ads.example.com^",
		"@@||cdn.example.com^",
		"0.0.0.0 tracker.example.net # comment",
		"www2.example.org^",
		"*.wild.example.org",
		"bad.example.net",
		"BAD.example.net",
		"example.com##.banner",
		"123abc!!!",
		"",
	}, "\n")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	result, err := ParseList(strings.NewReader(input), ParseOptions{
		ListID:     "test",
		Logger:     logger,
		ErrorLimit: 5,
	})
	if err != nil {
		t.Fatalf("ParseList returned error: %v", err)
	}

	wantBlack := []string{"ads.example.com", "bad.example.net", "example.org", "tracker.example.net", "wild.example.org"}
	if got := result.Black.Sorted(); !slices.Equal(got, wantBlack) {
		t.Errorf("black = %v, want %v", got, wantBlack)
	}
	wantWhite := []string{"cdn.example.com"}
	if got := result.White.Sorted(); !slices.Equal(got, wantWhite) {
		t.Errorf("white = %v, want %v", got, wantWhite)
	}

	stats := result.Stats
	if stats.TotalLines != 11 {
		t.Errorf("TotalLines = %d, want 11", stats.TotalLines)
	}
	if stats.Comments != 2 {
		t.Errorf("Comments = %d, want 2", stats.Comments)
	}
	if stats.Invalid != 2 {
		t.Errorf("Invalid = %d, want 2", stats.Invalid)
	}
	if stats.BlackDomains != 5 || stats.WhiteDomains != 1 {
		t.Errorf("domain counts = %d/%d, want 5/1", stats.BlackDomains, stats.WhiteDomains)
	}
	if stats.PatternCounts[PatternAnchored] != 2 {
		t.Errorf("anchored count = %d, want 2", stats.PatternCounts[PatternAnchored])
	}
	if stats.PatternCounts[PatternBare] != 2 {
		t.Errorf("bare count = %d, want 2", stats.PatternCounts[PatternBare])
	}
}

func TestParseListSkipsLinesAtDebugLevel(t *testing.T) {
	input := strings.Join([]string{
		"good.example.com",
		"http://bad.example.com",
		"foo/bar",
		"bad..example.com",
		"$$$",
	}, "\n")

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err := ParseList(strings.NewReader(input), ParseOptions{
		ListID:     "test",
		Logger:     logger,
		ErrorLimit: 2,
	})
	if err != nil {
		t.Fatalf("ParseList returned error: %v", err)
	}

	logText := logBuf.String()
	if got := strings.Count(logText, "msg=\"skipped rule line\""); got != 2 {
		t.Fatalf("expected 2 skipped line logs, got %d", got)
	}
	if !strings.Contains(logText, "skipped rule lines suppressed") {
		t.Error("expected summary log for suppressed lines")
	}
	if strings.Contains(logText, "level=WARN") || strings.Contains(logText, "level=ERROR") {
		t.Error("skipped lines must not be logged above debug level")
	}
}

func TestParseListReadError(t *testing.T) {
	_, err := ParseList(io.MultiReader(strings.NewReader("a.example.com\n"), failingReader{}), ParseOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err == nil {
		t.Fatal("expected read error to be returned")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
