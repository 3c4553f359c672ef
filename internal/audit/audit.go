// Package audit implements the append-only transfer ledger: one
// timestamped line per completed transfer, skip, or deletion.
package audit

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Log appends newline-delimited, timestamped lines to a file. Each call
// reopens the file in append mode, so the log tolerates being rotated or
// truncated out from under a long-running process.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open returns a Log writing to path. The file is not touched here; each
// write creates it if absent.
func Open(path string) *Log {
	return &Log{path: path}
}

// Path returns the file path this Log appends to.
func (l *Log) Path() string {
	return l.path
}

// Line appends one "[YYYY-MM-DD HH:MM:SS] message" line in local time.
func (l *Log) Line(format string, args ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "open audit log %q", l.path)
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	if _, err := fmt.Fprintf(f, "[%s] %s\n", timestamp, msg); err != nil {
		return errors.Wrapf(err, "write audit log %q", l.path)
	}
	return nil
}

// Transferred records a completed file transfer.
func (l *Log) Transferred(source, dest, hash string) error {
	return l.Line("Transferred: %s -> %s (Hash: %s)", source, dest, hash)
}

// Skipped records a file that was skipped in the producer.
func (l *Log) Skipped(source, reason string) error {
	return l.Line("Skipped: %s (%s)", source, reason)
}

// Deleted records a cleanup deletion.
func (l *Log) Deleted(dest string) error {
	return l.Line("Deleted: %s", dest)
}
