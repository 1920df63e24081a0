package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/jsonutil"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/lock"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/validation"
)

// DefaultTTL is how long a session stays fresh after its last mutation.
const DefaultTTL = 7 * 24 * time.Hour

// Store persists sessions as JSON files under .hansolo/sessions/.
// Every mutation happens under the session's exclusive file lock and is
// written atomically via temp file and rename.
type Store struct {
	dir         string
	ttl         time.Duration
	lockTimeout time.Duration
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// TTL is the session freshness window. Zero means DefaultTTL.
	TTL time.Duration
	// LockTimeout bounds session lock acquisition. Zero means lock.DefaultTimeout.
	LockTimeout time.Duration
}

// NewStore returns a store rooted at repoRoot/.hansolo/sessions.
func NewStore(repoRoot string, opts StoreOptions) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = lock.DefaultTimeout
	}
	return &Store{
		dir:         filepath.Join(repoRoot, paths.SessionsDir),
		ttl:         ttl,
		lockTimeout: lockTimeout,
	}
}

// Dir returns the sessions directory.
func (st *Store) Dir() string { return st.dir }

func (st *Store) sessionFile(id string) string {
	return filepath.Join(st.dir, id+".json")
}

func (st *Store) lockFile(id string) string {
	return filepath.Join(st.dir, id+".lock")
}

// stamp bumps UpdatedAt and refreshes the TTL. Every mutation extends
// the session's life; only idle sessions expire.
func (st *Store) stamp(s *Session) {
	now := time.Now().UTC()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(st.ttl)
}

// write persists a session atomically. Callers hold the session lock.
func (st *Store) write(s *Session) error {
	if err := os.MkdirAll(st.dir, 0o750); err != nil {
		return errkind.Wrap(errkind.Internal, err, "cannot create sessions directory")
	}
	data, err := jsonutil.MarshalIndentWithNewline(s, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.Internal, err, "cannot encode session %s", s.ID)
	}
	file := st.sessionFile(s.ID)
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errkind.Wrap(errkind.Internal, err, "cannot write session %s", s.ID)
	}
	if err := os.Rename(tmp, file); err != nil {
		return errkind.Wrap(errkind.Internal, err, "cannot persist session %s", s.ID)
	}
	return nil
}

// read loads a session file without locking.
func (st *Store) read(id string) (*Session, error) {
	if err := validation.ValidateSessionID(id); err != nil {
		return nil, errkind.Wrap(errkind.Unsupported, err, "invalid session id")
	}
	data, err := os.ReadFile(st.sessionFile(id)) //nolint:gosec // id is validated
	if os.IsNotExist(err) {
		return nil, errkind.New(errkind.NotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "cannot read session %s", id)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "cannot decode session %s", id)
	}
	return &s, nil
}

// Get returns a consistent snapshot of a session, taken under its
// shared lock.
func (st *Store) Get(ctx context.Context, id string) (*Session, error) {
	handle, err := lock.Acquire(ctx, st.lockFile(id), lock.Shared, st.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Release()
	return st.read(id)
}

// Create persists a new session. At most one non-terminal session may
// exist per branch; a second create for the same branch fails with
// AlreadyExists.
func (st *Store) Create(ctx context.Context, s *Session) error {
	if existing, err := st.FindByBranch(ctx, s.BranchName); err == nil && existing != nil {
		return errkind.New(errkind.AlreadyExists,
			"branch %s already has an active session (%s, state %s)",
			s.BranchName, existing.ID, existing.State).
			WithSuggestion("swap to that session, or abort it first")
	}

	handle, err := lock.Acquire(ctx, st.lockFile(s.ID), lock.Exclusive, st.lockTimeout)
	if err != nil {
		return err
	}
	defer handle.Release()

	if _, err := os.Stat(st.sessionFile(s.ID)); err == nil {
		return errkind.New(errkind.AlreadyExists, "session %s already exists", s.ID)
	}
	st.stamp(s)
	if err := st.write(s); err != nil {
		return err
	}
	logging.Info(ctx, "session created", "session_id", s.ID, "branch", s.BranchName, "workflow", string(s.WorkflowType))
	return nil
}

// Mutate applies fn to a session under its exclusive lock and persists
// the result atomically. The TTL is refreshed on every successful
// mutation. fn returning an error leaves the stored session untouched.
func (st *Store) Mutate(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	handle, err := lock.Acquire(ctx, st.lockFile(id), lock.Exclusive, st.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	s, err := st.read(id)
	if err != nil {
		return nil, err
	}
	before := s.State
	if err := fn(s); err != nil {
		return nil, err
	}
	st.stamp(s)
	if err := st.write(s); err != nil {
		return nil, err
	}
	if s.State != before {
		logging.Info(ctx, "session transitioned",
			"session_id", s.ID, "branch", s.BranchName,
			"from", string(before), "to", string(s.State))
	}
	return s, nil
}

// Delete removes a session file and its lock file. Missing files are
// not an error; deletion is idempotent.
func (st *Store) Delete(ctx context.Context, id string) error {
	handle, err := lock.Acquire(ctx, st.lockFile(id), lock.Exclusive, st.lockTimeout)
	if err != nil {
		return err
	}
	defer handle.Release()

	if err := validation.ValidateSessionID(id); err != nil {
		return errkind.Wrap(errkind.Unsupported, err, "invalid session id")
	}
	if err := os.Remove(st.sessionFile(id)); err != nil && !os.IsNotExist(err) {
		return errkind.Wrap(errkind.Internal, err, "cannot remove session %s", id)
	}
	handle.Release()
	if err := os.Remove(st.lockFile(id)); err != nil && !os.IsNotExist(err) {
		logging.Warn(ctx, "cannot remove session lock file", "session_id", id, "error", err)
	}
	return nil
}

// List returns all sessions, sorted by creation time then ID. Corrupt
// files are skipped; a bad session must not block listing the rest.
func (st *Store) List(ctx context.Context) ([]*Session, error) {
	entries, err := os.ReadDir(st.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "cannot read sessions directory")
	}

	var sessions []*Session
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		s, err := st.Get(ctx, id)
		if err != nil {
			logging.Warn(ctx, "skipping unreadable session file", "file", name, "error", err)
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

// ListActive returns all non-terminal sessions.
func (st *Store) ListActive(ctx context.Context) ([]*Session, error) {
	all, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	var active []*Session
	for _, s := range all {
		if s.Active() {
			active = append(active, s)
		}
	}
	return active, nil
}

// FindByBranch returns the non-terminal session bound to branch, or a
// NotFound error. Branch uniqueness means there is at most one.
func (st *Store) FindByBranch(ctx context.Context, branch string) (*Session, error) {
	active, err := st.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range active {
		if s.BranchName == branch {
			return s, nil
		}
	}
	return nil, errkind.New(errkind.NotFound, "no active session for branch %s", branch)
}
