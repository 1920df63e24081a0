// Package audit maintains the append-only NDJSON audit trail under
// .hansolo/audit.log. One entry per tool invocation, written under an
// exclusive file lock so concurrent invocations never interleave bytes.
package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/jsonutil"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/lock"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/redact"
)

// Outcome is the recorded result of a tool invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is one line of the audit log.
type Entry struct {
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id,omitempty"`
	Tool      string    `json:"tool"`
	// Input is a bounded human-readable summary of the tool input,
	// never the raw input itself.
	Input   string  `json:"input,omitempty"`
	Outcome Outcome `json:"outcome"`
	// ReportDigest is the sha256 of the canonical check report JSON,
	// empty when the invocation produced no report.
	ReportDigest string `json:"report_digest,omitempty"`
}

// maxInputSummary bounds the input summary stored per entry.
const maxInputSummary = 256

// lockTimeout bounds how long an append waits for the audit lock.
const lockTimeout = 10 * time.Second

// Log appends entries to the repository audit log.
type Log struct {
	path     string
	lockPath string
}

// Open returns the audit log for the repository rooted at repoRoot.
func Open(repoRoot string) *Log {
	return &Log{
		path:     filepath.Join(repoRoot, paths.AuditFile),
		lockPath: filepath.Join(repoRoot, paths.LocksDir, paths.AuditLockName),
	}
}

// Append writes one entry as a single NDJSON line. The entry timestamp
// is set to now when zero; the input summary is redacted, then
// truncated in place.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	e.Input = redact.String(e.Input)
	if len(e.Input) > maxInputSummary {
		e.Input = e.Input[:maxInputSummary]
	}

	line, err := jsonutil.MarshalCompactWithNewline(e)
	if err != nil {
		return errkind.Wrap(errkind.Internal, err, "cannot encode audit entry")
	}

	handle, err := lock.Acquire(ctx, l.lockPath, lock.Exclusive, lockTimeout)
	if err != nil {
		return err
	}
	defer handle.Release()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errkind.Wrap(errkind.Internal, err, "cannot create audit log directory")
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errkind.Wrap(errkind.Internal, err, "cannot open audit log")
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return errkind.Wrap(errkind.Internal, err, "cannot append audit entry")
	}
	return f.Sync()
}

// Tail returns up to n entries from the end of the log, oldest first.
// Lines that fail to parse are skipped; the log is append-only and a
// torn final line must not break readers.
func (l *Log) Tail(ctx context.Context, n int) ([]Entry, error) {
	handle, err := lock.Acquire(ctx, l.lockPath, lock.Shared, lockTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errkind.Wrap(errkind.Internal, err, "cannot open audit log")
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "cannot read audit log")
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// ReportDigest computes the canonical digest recorded for a check
// report: sha256 over its compact JSON encoding.
func ReportDigest(report any) string {
	data, err := json.Marshal(report)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
