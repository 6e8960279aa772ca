package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/raspd/raspd/internal/report"
)

func TestReportJournalWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	journal := NewReportJournal(&buf)

	reports := []report.Report{
		{ID: "1", Type: report.TypeBlock, RuleID: "sqli-1", Message: strings.Repeat("a", 400), Timestamp: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)},
		{ID: "2", Type: report.TypeAlert, RuleID: "xss-1", Message: "ProtectOnce has detected an attack"},
	}
	if err := journal.Write(reports); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var parsed report.Report
	if err := json.Unmarshal([]byte(lines[0]), &parsed); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(parsed.Message) != maxMessage {
		t.Fatalf("expected message length %d, got %d", maxMessage, len(parsed.Message))
	}
	if parsed.Type != report.TypeBlock {
		t.Fatalf("expected BLOCK, got %q", parsed.Type)
	}
}

func TestReportJournalNilAndEmpty(t *testing.T) {
	var journal *ReportJournal
	if err := journal.Write([]report.Report{{ID: "x"}}); err != nil {
		t.Fatalf("nil journal should be a no-op: %v", err)
	}

	var buf bytes.Buffer
	if err := NewReportJournal(&buf).Write(nil); err != nil || buf.Len() != 0 {
		t.Fatalf("empty write should produce no output")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("warn", "json", &buf).Named("heartbeat")

	logger.Info("dropped")
	logger.Warn("kept", "reports", 3)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"reports":3`) || !strings.Contains(out, `"logger":"heartbeat"`) {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestReportJournalTruncatesOnRuneBoundary(t *testing.T) {
	var buf bytes.Buffer
	message := strings.Repeat("a", maxMessage-1) + "é" + "tail"
	if err := NewReportJournal(&buf).Write([]report.Report{{ID: "1", Message: message}}); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var parsed report.Report
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if parsed.Message != strings.Repeat("a", maxMessage-1) {
		t.Fatalf("expected cut before the split rune, got %d bytes", len(parsed.Message))
	}
	if strings.ContainsRune(parsed.Message, utf8.RuneError) {
		t.Fatalf("journal must not contain replacement characters")
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "abcdef", n: 3, want: "abc"},
		{in: "aé", n: 2, want: "a"},
		{in: "aé", n: 3, want: "aé"},
		{in: "日本", n: 4, want: "日"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.n); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestLoggerWithSurvivesNamed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("info", "json", &buf).With("agent_id", "a-1").Named("heartbeat")

	logger.Info("tick")

	out := buf.String()
	if !strings.Contains(out, `"agent_id":"a-1"`) || !strings.Contains(out, `"logger":"heartbeat"`) {
		t.Fatalf("expected fields from With to survive Named: %q", out)
	}
}
