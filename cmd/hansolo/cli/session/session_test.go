package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("standard", func(t *testing.T) {
		t.Parallel()
		s := New("feature/add-auth", WorkflowStandard)
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, "feature/add-auth", s.BranchName)
		assert.Equal(t, WorkflowStandard, s.WorkflowType)
		assert.Equal(t, StateInit, s.State)
		assert.Equal(t, SchemaVersion, s.SchemaVersion)
		assert.True(t, s.Active())
	})

	t.Run("hotfix", func(t *testing.T) {
		t.Parallel()
		s := New("hotfix/cve-2026-1234", WorkflowHotfix)
		assert.Equal(t, StateHotfixInit, s.State)
	})

	t.Run("unique_ids", func(t *testing.T) {
		t.Parallel()
		a := New("feature/a", WorkflowStandard)
		b := New("feature/b", WorkflowStandard)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StateComplete.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.True(t, StateHotfixComplete.Terminal())

	for _, s := range []State{
		StateInit, StateBranchReady, StateChangesCommitted, StatePushed,
		StatePRCreated, StateWaitingApproval, StateRebasing, StateMerging,
		StateCleanup, StateConflict,
		StateHotfixInit, StateHotfixReady, StateHotfixCommitted,
		StateHotfixPushed, StateHotfixValidated, StateHotfixDeployed,
		StateHotfixCleanup,
	} {
		assert.False(t, s.Terminal(), "state %s must be non-terminal", s)
	}
}

func TestSessionExpired(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	s := New("feature/x", WorkflowStandard)

	assert.False(t, s.Expired(now), "zero ExpiresAt never expires")

	s.ExpiresAt = now.Add(time.Hour)
	assert.False(t, s.Expired(now))

	s.ExpiresAt = now.Add(-time.Hour)
	assert.True(t, s.Expired(now))
}

func TestSessionMeta(t *testing.T) {
	t.Parallel()

	s := &Session{}
	assert.Equal(t, "", s.Meta(MetaStashRef))

	s.SetMeta(MetaStashRef, "stash@{0}")
	assert.Equal(t, "stash@{0}", s.Meta(MetaStashRef))

	s.SetMeta(MetaStashRef, "")
	assert.Equal(t, "", s.Meta(MetaStashRef))
}

func TestSessionJSONRoundTrip(t *testing.T) {
	t.Parallel()

	s := New("feature/round-trip", WorkflowStandard)
	require.NoError(t, s.Apply(StateBranchReady, "launch", "alice"))
	s.SetMeta(MetaIssue, "PROJ-42")
	s.PR = &PRRef{Number: 7, URL: "https://github.com/acme/app/pull/7", Base: "main"}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var got Session
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.BranchName, got.BranchName)
	assert.Equal(t, s.State, got.State)
	assert.Equal(t, s.Metadata, got.Metadata)
	require.NotNil(t, got.PR)
	assert.Equal(t, 7, got.PR.Number)
	require.Len(t, got.StateHistory, 1)
	assert.Equal(t, StateInit, got.StateHistory[0].From)
	assert.Equal(t, StateBranchReady, got.StateHistory[0].To)
	assert.Equal(t, "alice", got.StateHistory[0].Actor)
}

func TestSessionJSONPreservesUnknownFields(t *testing.T) {
	t.Parallel()

	// A file written by a newer schema version carries fields this
	// binary does not know. A read-modify-write cycle must keep them.
	in := []byte(`{
		"schemaVersion": 1,
		"id": "abc-123",
		"branchName": "feature/x",
		"workflowType": "standard",
		"state": "BRANCH_READY",
		"createdAt": "2026-01-02T03:04:05Z",
		"updatedAt": "2026-01-02T03:04:05Z",
		"expiresAt": "2026-01-09T03:04:05Z",
		"reviewers": ["alice", "bob"],
		"deployTarget": {"env": "staging"}
	}`)

	var s Session
	require.NoError(t, json.Unmarshal(in, &s))
	assert.Equal(t, "abc-123", s.ID)
	require.Contains(t, s.Extra, "reviewers")
	require.Contains(t, s.Extra, "deployTarget")

	s.SetMeta(MetaIssue, "INC-1")
	out, err := json.Marshal(&s)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.JSONEq(t, `["alice", "bob"]`, string(raw["reviewers"]))
	assert.JSONEq(t, `{"env": "staging"}`, string(raw["deployTarget"]))
	assert.Contains(t, raw, "metadata")
}

func TestSessionJSONKnownFieldsWinOverExtra(t *testing.T) {
	t.Parallel()

	s := New("feature/x", WorkflowStandard)
	s.Extra = map[string]json.RawMessage{
		"state": json.RawMessage(`"BOGUS"`),
		"novel": json.RawMessage(`true`),
	}

	out, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.JSONEq(t, `"INIT"`, string(raw["state"]))
	assert.JSONEq(t, `true`, string(raw["novel"]))
}
