package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/raspd/raspd/internal/report"
)

const maxMessage = 256

// ReportJournal appends flushed reports to a local JSONL file, one report
// per line, before they are handed to the backend.
type ReportJournal struct {
	mu sync.Mutex
	w  io.Writer
}

func NewReportJournal(w io.Writer) *ReportJournal {
	return &ReportJournal{w: w}
}

func OpenReportJournal(path string) (*ReportJournal, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewReportJournal(file), file.Close, nil
}

func (j *ReportJournal) Write(reports []report.Report) error {
	if j == nil || len(reports) == 0 {
		return nil
	}

	var buf []byte
	for _, rep := range reports {
		rep.Message = truncate(rep.Message, maxMessage)
		data, err := json.Marshal(rep)
		if err != nil {
			return err
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.w.Write(buf)
	return err
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
