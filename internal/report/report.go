package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

type Summary struct {
	Total      int            `json:"total"`
	Alerts     int            `json:"alerts"`
	Blocks     int            `json:"blocks"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	Severities map[string]int `json:"severities"`
	TopRules   []CountItem    `json:"top_rules"`
	TopSources []CountItem    `json:"top_sources"`
	Detectors  []CountItem    `json:"detectors"`
}

type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Reader loads a report journal written one JSON object per line.
type Reader struct {
	Since time.Time
}

func (r *Reader) Read(path string) ([]Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var reports []Report
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rep Report
		if err := json.Unmarshal([]byte(line), &rep); err != nil {
			return nil, err
		}
		if !r.Since.IsZero() && rep.Timestamp.Before(r.Since) {
			continue
		}
		reports = append(reports, rep)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func Summarize(reports []Report) Summary {
	summary := Summary{Severities: map[string]int{}}
	if len(reports) == 0 {
		return summary
	}

	summary.Start = reports[0].Timestamp
	summary.End = reports[0].Timestamp

	ruleCounts := map[string]int{}
	sourceCounts := map[string]int{}
	detectorCounts := map[string]int{}

	for _, rep := range reports {
		summary.Total++
		if rep.Timestamp.Before(summary.Start) {
			summary.Start = rep.Timestamp
		}
		if rep.Timestamp.After(summary.End) {
			summary.End = rep.Timestamp
		}

		switch rep.Type {
		case TypeAlert:
			summary.Alerts++
		case TypeBlock:
			summary.Blocks++
		}

		if rep.Severity != "" {
			summary.Severities[rep.Severity]++
		}
		ruleCounts[rep.RuleID]++
		if rep.SourceIP != "" {
			sourceCounts[rep.SourceIP]++
		}
		detectorCounts[rep.Detector]++
	}

	summary.TopRules = topCounts(ruleCounts, 5)
	summary.TopSources = topCounts(sourceCounts, 5)
	summary.Detectors = topCounts(detectorCounts, len(detectorCounts))

	return summary
}

func topCounts(counts map[string]int, n int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for key, count := range counts {
		items = append(items, CountItem{Key: key, Count: count})
	}
	if len(items) == 0 {
		return nil
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}

var severityOrder = []string{"CRITICAL", "MAJOR", "MINOR"}

func RenderText(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total: %d\n", summary.Total)
	fmt.Fprintf(&b, "Alerts: %d\n", summary.Alerts)
	fmt.Fprintf(&b, "Blocks: %d\n", summary.Blocks)
	for _, sev := range severityOrder {
		fmt.Fprintf(&b, "%s: %d\n", sev, summary.Severities[sev])
	}

	writeCounts(&b, "Top rules", summary.TopRules)
	writeCounts(&b, "Top sources", summary.TopSources)
	writeCounts(&b, "Detectors", summary.Detectors)

	return b.String()
}

func RenderMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# raspd Report\n\n")
	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Total: %d\n", summary.Total)
	fmt.Fprintf(&b, "- Alerts: %d\n", summary.Alerts)
	fmt.Fprintf(&b, "- Blocks: %d\n", summary.Blocks)
	for _, sev := range severityOrder {
		fmt.Fprintf(&b, "- %s: %d\n", sev, summary.Severities[sev])
	}
	b.WriteString("\n")

	writeCountsMarkdown(&b, "Top rules", summary.TopRules)
	writeCountsMarkdown(&b, "Top sources", summary.TopSources)
	writeCountsMarkdown(&b, "Detectors", summary.Detectors)

	return b.String()
}

func RenderJSON(summary Summary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

func writeCounts(b *strings.Builder, title string, items []CountItem) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
}

func writeCountsMarkdown(b *strings.Builder, title string, items []CountItem) {
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString("- none\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
	b.WriteString("\n")
}

func WriteOutput(w io.Writer, path string, content []byte) error {
	if path == "" {
		_, err := io.Copy(w, bytes.NewReader(content))
		return err
	}
	return os.WriteFile(path, content, 0o600)
}
