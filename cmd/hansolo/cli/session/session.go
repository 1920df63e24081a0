// Package session owns the persistent workflow session model: one JSON
// file per session under .hansolo/sessions/, the state machines that
// govern legal mutations, and the locked store that serialises them.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is written into every session file. Readers accept the
// current version and preserve fields they do not understand, so newer
// writers can extend the schema without breaking older binaries.
const SchemaVersion = 1

// WorkflowType selects which state machine governs a session.
type WorkflowType string

const (
	WorkflowStandard WorkflowType = "standard"
	WorkflowHotfix   WorkflowType = "hotfix"
)

// State is a node in a workflow state machine.
type State string

// Standard workflow states.
const (
	StateInit             State = "INIT"
	StateBranchReady      State = "BRANCH_READY"
	StateChangesCommitted State = "CHANGES_COMMITTED"
	StatePushed           State = "PUSHED"
	StatePRCreated        State = "PR_CREATED"
	StateWaitingApproval  State = "WAITING_APPROVAL"
	StateRebasing         State = "REBASING"
	StateMerging          State = "MERGING"
	StateCleanup          State = "CLEANUP"
	StateComplete         State = "COMPLETE"
	StateConflict         State = "CONFLICT"
	StateAborted          State = "ABORTED"
)

// Hotfix workflow states.
const (
	StateHotfixInit      State = "HOTFIX_INIT"
	StateHotfixReady     State = "HOTFIX_READY"
	StateHotfixCommitted State = "HOTFIX_COMMITTED"
	StateHotfixPushed    State = "HOTFIX_PUSHED"
	StateHotfixValidated State = "HOTFIX_VALIDATED"
	StateHotfixDeployed  State = "HOTFIX_DEPLOYED"
	StateHotfixCleanup   State = "HOTFIX_CLEANUP"
	StateHotfixComplete  State = "HOTFIX_COMPLETE"
)

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateAborted, StateHotfixComplete:
		return true
	}
	return false
}

// Transition is one recorded state change. History entries are
// append-only: each entry's From equals the previous entry's To.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	At    time.Time `json:"at"`
	Tool  string    `json:"tool"`
	Actor string    `json:"actor,omitempty"`
}

// PRRef records the pull request attached to a session.
type PRRef struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Base   string `json:"base"`
	Draft  bool   `json:"draft,omitempty"`
}

// Well-known metadata keys.
const (
	MetaStashRef    = "stashRef"
	MetaSeverity    = "severity"
	MetaIssue       = "issue"
	MetaInitialDiff = "initialDiffSummary"
	MetaSkipReview  = "skipReview"
	MetaAutoMerge   = "autoMerge"
	MetaMergedSHA   = "mergedSha"
)

// Session is the central entity: one per active branch, stored as
// .hansolo/sessions/<id>.json.
type Session struct {
	SchemaVersion int          `json:"schemaVersion"`
	ID            string       `json:"id"`
	BranchName    string       `json:"branchName"`
	WorkflowType  WorkflowType `json:"workflowType"`
	State         State        `json:"state"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	ExpiresAt     time.Time    `json:"expiresAt"`
	StateHistory  []Transition `json:"stateHistory,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	PR            *PRRef       `json:"pr,omitempty"`

	// Extra preserves fields written by newer schema versions across a
	// read-modify-write cycle. Never populated by this binary's writes.
	Extra map[string]json.RawMessage `json:"-"`
}

// New returns a fresh session in the machine's initial state with a
// generated ID. TTL stamping happens in the store on create.
func New(branch string, wt WorkflowType) *Session {
	now := time.Now().UTC()
	state := StateInit
	if wt == WorkflowHotfix {
		state = StateHotfixInit
	}
	return &Session{
		SchemaVersion: SchemaVersion,
		ID:            uuid.NewString(),
		BranchName:    branch,
		WorkflowType:  wt,
		State:         state,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata:      map[string]string{},
	}
}

// Active reports whether the session is still in a non-terminal state.
func (s *Session) Active() bool { return !s.State.Terminal() }

// Expired reports whether the session TTL has lapsed at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Meta returns a metadata value, empty when unset.
func (s *Session) Meta(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// SetMeta sets a metadata value, allocating the bag on first use.
func (s *Session) SetMeta(key, value string) {
	if s.Metadata == nil {
		s.Metadata = map[string]string{}
	}
	s.Metadata[key] = value
}

// knownSessionKeys are the JSON keys owned by this schema version.
// Anything else round-trips through Extra untouched.
var knownSessionKeys = []string{
	"schemaVersion", "id", "branchName", "workflowType", "state",
	"createdAt", "updatedAt", "expiresAt", "stateHistory", "metadata", "pr",
}

// UnmarshalJSON decodes the known fields and stashes everything else in
// Extra so a later save does not drop it.
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range knownSessionKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	*s = Session(p)
	return nil
}

// MarshalJSON encodes the known fields and merges preserved unknown
// fields back in. Known fields always win on key collision.
func (s Session) MarshalJSON() ([]byte, error) {
	type plain Session
	data, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range s.Extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}
