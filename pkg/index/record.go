package index

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Status is the lifecycle state of one document
type Status string

const (
	StatusDiscovered  Status = "discovered"
	StatusDownloading Status = "downloading"
	StatusComplete    Status = "complete"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDiscovered, StatusDownloading, StatusComplete, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Record is the durable state of one document. ID doubles as the final
// filename and never changes; SourcePage is fixed by the first discovery.
type Record struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	SourcePage    int        `json:"source_page"`
	Status        Status     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	DiscoveredAt  time.Time  `json:"discovered_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Bytes         int64      `json:"bytes,omitempty"`
	SHA256        string     `json:"sha256,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

func (r Record) validate() error {
	if r.ID == "" {
		return fmt.Errorf("record has empty id")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("record %s has unknown status %q", r.ID, r.Status)
	}
	if r.RetryCount < 0 {
		return fmt.Errorf("record %s has negative retry count", r.ID)
	}
	return nil
}

var digitRun = regexp.MustCompile(`\d+`)

// SortKey is the numeric part of an id (the last run of digits), used to
// process documents in collection order. Ids without digits return -1.
func SortKey(id string) int64 {
	runs := digitRun.FindAllString(id, -1)
	if len(runs) == 0 {
		return -1
	}
	n, err := strconv.ParseInt(runs[len(runs)-1], 10, 64)
	if err != nil {
		return -1
	}
	return n
}
