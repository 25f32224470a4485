// Package diag provides the run-scoped diagnostic journal handed to the UI
// collaborator at the end of a run. Entries are human-readable timestamped
// strings, appended in the order events occurred.
package diag

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sedori-labs/resale-research/pkg/logging"
)

// Journal is an append-only list of timestamped diagnostic entries.
// A single Journal is shared by all engine components within one run.
type Journal struct {
	mu      sync.Mutex
	entries []string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{
		logger: logging.NewLogger("diag"),
		now:    time.Now,
	}
}

// Appendf records a formatted entry with the current timestamp and mirrors
// it to the structured log at warn level (journal entries describe retries
// and degradations, never normal operation).
func (j *Journal) Appendf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	j.mu.Lock()
	entry := fmt.Sprintf("%s %s", j.now().Format("2006-01-02 15:04:05"), msg)
	j.entries = append(j.entries, entry)
	j.mu.Unlock()

	j.logger.Warn().Msg(msg)
}

// Entries returns a copy of all entries in append order.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len returns the number of entries recorded so far.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
