package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/audit"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/config"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/forge"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// fakeGit is an in-memory GitClient. It models just enough of a
// repository for the tools: a current branch, a dirty flag, branch
// sets, and scripted rebase outcomes.
type fakeGit struct {
	branch      string
	clean       bool
	local       map[string]bool
	remote      map[string]bool
	aheadBehind map[string]gitx.AheadBehind
	merged      map[string]bool
	conflicts   bool

	rebaseConflicts []string
	rebaseActive    bool
	continueResult  gitx.RebaseResult

	stashErr error
	pushErr  error

	// stashes holds stash messages, newest first, so index i is the
	// entry at stash@{i} and a push renumbers everything below it.
	stashes []string

	pushes   int
	commits  int
	popped   []string
	checkout []string
}

func newFakeGit(branch string) *fakeGit {
	return &fakeGit{
		branch:      branch,
		clean:       true,
		local:       map[string]bool{"main": true, branch: true},
		remote:      map[string]bool{"main": true},
		aheadBehind: map[string]gitx.AheadBehind{},
		merged:      map[string]bool{},
	}
}

func (g *fakeGit) CurrentBranch(context.Context) (string, error) { return g.branch, nil }
func (g *fakeGit) IsClean(context.Context) (bool, error)         { return g.clean, nil }

func (g *fakeGit) BranchExists(_ context.Context, name string, remote bool) (bool, error) {
	if remote {
		return g.remote[name], nil
	}
	return g.local[name], nil
}

func (g *fakeGit) BranchAheadBehind(_ context.Context, branch, base string) (gitx.AheadBehind, error) {
	return g.aheadBehind[branch+".."+base], nil
}

func (g *fakeGit) HasConflictsWith(context.Context, string) (bool, error) { return g.conflicts, nil }
func (g *fakeGit) RemoteRef(branch string) string                        { return "origin/" + branch }

func (g *fakeGit) Status(context.Context) (gitx.Status, error) {
	if g.clean {
		return gitx.Status{}, nil
	}
	return gitx.Status{Unstaged: 1, Modified: []string{"main.go"}}, nil
}

func (g *fakeGit) DiffSummary(context.Context, string) (string, error) { return "1 file changed", nil }

func (g *fakeGit) Checkout(_ context.Context, name string, _ gitx.CheckoutOptions) error {
	g.branch = name
	g.checkout = append(g.checkout, name)
	return nil
}

func (g *fakeGit) CreateBranch(_ context.Context, name, _ string) error {
	g.local[name] = true
	return nil
}

func (g *fakeGit) DeleteBranch(_ context.Context, name string, _ gitx.DeleteBranchOptions) error {
	delete(g.local, name)
	return nil
}

func (g *fakeGit) DeleteRemoteBranch(_ context.Context, name string) error {
	delete(g.remote, name)
	return nil
}

func (g *fakeGit) Commit(_ context.Context, opts gitx.CommitOptions) (string, error) {
	g.commits++
	if opts.StageAll {
		g.clean = true
	}
	return "abc1234", nil
}

func (g *fakeGit) PushCurrent(context.Context, gitx.PushOptions) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	g.pushes++
	g.remote[g.branch] = true
	return nil
}

func (g *fakeGit) PullFF(context.Context, string) error { return nil }
func (g *fakeGit) Fetch(context.Context, string) error  { return nil }

func (g *fakeGit) RebaseOnto(context.Context, string) (gitx.RebaseResult, error) {
	if len(g.rebaseConflicts) > 0 {
		g.rebaseActive = true
		return gitx.RebaseResult{Conflicts: g.rebaseConflicts}, nil
	}
	return gitx.RebaseResult{}, nil
}

func (g *fakeGit) RebaseInProgress(context.Context) bool { return g.rebaseActive }

func (g *fakeGit) ContinueRebase(context.Context) (gitx.RebaseResult, error) {
	g.rebaseActive = false
	return g.continueResult, nil
}

func (g *fakeGit) Stash(_ context.Context, message string) (string, error) {
	if g.stashErr != nil {
		return "", g.stashErr
	}
	g.stashes = append([]string{message}, g.stashes...)
	g.clean = true
	return "stash@{0}", nil
}

func (g *fakeGit) StashPop(_ context.Context, ref string) error {
	g.popped = append(g.popped, ref)
	var idx int
	if _, err := fmt.Sscanf(ref, "stash@{%d}", &idx); err == nil && idx < len(g.stashes) {
		g.stashes = append(g.stashes[:idx], g.stashes[idx+1:]...)
	}
	g.clean = false
	return nil
}

func (g *fakeGit) FindStash(_ context.Context, message string) (string, error) {
	for i, m := range g.stashes {
		if m == message {
			return fmt.Sprintf("stash@{%d}", i), nil
		}
	}
	return "", errkind.New(errkind.NotFound, "no stash entry labelled %q", message)
}

func (g *fakeGit) IsMergedInto(_ context.Context, branch, _ string) (bool, error) {
	return g.merged[branch], nil
}

// fakeForge is an in-memory ForgeClient with scripted responses.
type fakeForge struct {
	login string

	nextPRNumber int
	prs          map[int]forge.PR
	approvalsMet bool
	openErr      error
	waitResult   forge.WaitResult
	mergeSHA     string
	mergeErr     error

	opened  []forge.OpenPRInput
	updated []int
	merged  []int
	deleted []string
}

func newFakeForge() *fakeForge {
	return &fakeForge{
		login:        "alice",
		nextPRNumber: 7,
		prs:          map[int]forge.PR{},
		approvalsMet: true,
		waitResult:   forge.WaitResult{Verdict: forge.WaitAllSucceeded},
		mergeSHA:     "feedf00d",
	}
}

func (f *fakeForge) Whoami(context.Context) (string, error) { return f.login, nil }

func (f *fakeForge) OpenPR(_ context.Context, in forge.OpenPRInput) (forge.OpenPRResult, error) {
	if f.openErr != nil {
		return forge.OpenPRResult{}, f.openErr
	}
	f.opened = append(f.opened, in)
	n := f.nextPRNumber
	f.nextPRNumber++
	pr := forge.PR{
		Number:               n,
		URL:                  "https://github.com/acme/app/pull/7",
		State:                forge.PROpen,
		Base:                 in.Base,
		RequiredApprovalsMet: f.approvalsMet,
	}
	f.prs[n] = pr
	return forge.OpenPRResult{Number: n, URL: pr.URL}, nil
}

func (f *fakeForge) UpdatePR(_ context.Context, number int, _ forge.UpdatePRInput) error {
	f.updated = append(f.updated, number)
	return nil
}

func (f *fakeForge) GetPR(_ context.Context, number int, _ string) (forge.PR, error) {
	pr, ok := f.prs[number]
	if !ok {
		return forge.PR{}, errkind.New(errkind.NotFound, "no PR %d", number)
	}
	return pr, nil
}

func (f *fakeForge) WaitForChecks(context.Context, int, forge.WaitOptions) (forge.WaitResult, error) {
	return f.waitResult, nil
}

func (f *fakeForge) MergePR(_ context.Context, number int, _ forge.MergePRInput) (forge.MergePRResult, error) {
	if f.mergeErr != nil {
		return forge.MergePRResult{}, f.mergeErr
	}
	f.merged = append(f.merged, number)
	pr := f.prs[number]
	pr.State = forge.PRMerged
	f.prs[number] = pr
	return forge.MergePRResult{MergedSHA: f.mergeSHA}, nil
}

func (f *fakeForge) DeleteRemoteBranch(_ context.Context, branch string) error {
	f.deleted = append(f.deleted, branch)
	return nil
}

type fakeAudit struct {
	entries []audit.Entry
}

func (a *fakeAudit) Append(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) last(t *testing.T) audit.Entry {
	t.Helper()
	require.NotEmpty(t, a.entries)
	return a.entries[len(a.entries)-1]
}

type fixture struct {
	rt    *Runtime
	git   *fakeGit
	forge *fakeForge
	audit *fakeAudit
	store *session.Store
}

func newFixture(t *testing.T, branch string) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, paths.SessionsDir), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, paths.LocksDir), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, paths.ConfigFile), []byte("main_branch: main\n"), 0o600))

	git := newFakeGit(branch)
	fg := newFakeForge()
	al := &fakeAudit{}
	cfg := config.Default()
	cfg.SessionLockTimeout = 2 * time.Second
	store := session.NewStore(root, session.StoreOptions{LockTimeout: 2 * time.Second})

	return &fixture{
		rt: &Runtime{
			Git:      git,
			Forge:    fg,
			Sessions: store,
			Audit:    al,
			Config:   cfg,
			RepoRoot: root,
			Actor:    "alice",
		},
		git:   git,
		forge: fg,
		audit: al,
		store: store,
	}
}

// seedSession creates a session and drives it to the given state
// through legal edges.
func (f *fixture) seedSession(t *testing.T, branch string, wt session.WorkflowType, target session.State) *session.Session {
	t.Helper()
	ctx := context.Background()
	s := session.New(branch, wt)
	require.NoError(t, f.store.Create(ctx, s))

	var path []struct {
		to   session.State
		tool string
	}
	if wt == session.WorkflowHotfix {
		path = []struct {
			to   session.State
			tool string
		}{
			{session.StateHotfixReady, "hotfix"},
			{session.StateHotfixCommitted, "commit"},
			{session.StateHotfixPushed, "ship"},
			{session.StateHotfixValidated, "ship"},
		}
	} else {
		path = []struct {
			to   session.State
			tool string
		}{
			{session.StateBranchReady, "launch"},
			{session.StateChangesCommitted, "commit"},
			{session.StatePushed, "ship"},
			{session.StatePRCreated, "ship"},
			{session.StateWaitingApproval, "ship"},
		}
	}

	for _, step := range path {
		if s.State == target {
			break
		}
		var err error
		s, err = f.store.Mutate(ctx, s.ID, func(s *session.Session) error {
			return s.Apply(step.to, step.tool, "alice")
		})
		require.NoError(t, err)
	}
	require.Equal(t, target, s.State, "seed path must reach the requested state")
	return s
}

func (f *fixture) session(t *testing.T, id string) *session.Session {
	t.Helper()
	s, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}
