package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/jsonutil"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/tools"
)

// toolResultContent folds a ToolResult into an MCP call result. Tool
// failures are ordinary results with success=false, not protocol
// errors; only encoding problems become jsonrpc errors.
func toolResultContent(res *tools.ToolResult) (*mcp.CallToolResult, any, error) {
	data, err := jsonutil.MarshalIndentWithNewline(res, "", "  ")
	if err != nil {
		return nil, nil, &jsonrpc.Error{
			Code:    jsonrpc.CodeInternalError,
			Message: "cannot encode tool result",
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: !res.Success,
	}, nil, nil
}

func cancelledResult() (*mcp.CallToolResult, any, error) {
	return nil, nil, &jsonrpc.Error{
		Code:    jsonrpc.CodeInternalError,
		Message: "request cancelled",
	}
}

// registerWorkflowTools exposes the nine workflow tools. Mutating tools
// carry no ReadOnlyHint; sessions and status do.
func registerWorkflowTools(server *mcp.Server, rt *tools.Runtime) {
	type launchArgs struct {
		BranchName  string `json:"branchName,omitempty" jsonschema:"Branch to create, e.g. feature/add-auth (derived from description when omitted)"`
		Description string `json:"description,omitempty" jsonschema:"Change description used to derive the branch name"`
		StashRef    string `json:"stashRef,omitempty" jsonschema:"Stash reference to pop onto the new branch"`
		PopStash    *bool  `json:"popStash,omitempty" jsonschema:"Pop the given stash after checkout (default true)"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "launch",
		Description: "Start a feature session: create a branch off main, check it out, and persist a session.",
		Annotations: &mcp.ToolAnnotations{IdempotentHint: false, OpenWorldHint: boolPtr(false)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args launchArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.Launch(ctx, tools.LaunchInput{
			BranchName:  args.BranchName,
			Description: args.Description,
			StashRef:    args.StashRef,
			PopStash:    args.PopStash,
		}))
	})

	type commitArgs struct {
		Message    string `json:"message" jsonschema:"Commit message (conventional-commit style recommended)"`
		StagedOnly bool   `json:"stagedOnly,omitempty" jsonschema:"Commit only what is already staged"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "commit",
		Description: "Commit working tree changes onto the session branch.",
		Annotations: &mcp.ToolAnnotations{OpenWorldHint: boolPtr(false)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args commitArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.Commit(ctx, tools.CommitInput{
			Message:    args.Message,
			StagedOnly: args.StagedOnly,
		}))
	})

	type shipArgs struct {
		Push          *bool  `json:"push,omitempty" jsonschema:"Push the branch (default true)"`
		CreatePR      *bool  `json:"createPR,omitempty" jsonschema:"Open or update the pull request (default true)"`
		Merge         *bool  `json:"merge,omitempty" jsonschema:"Squash-merge and clean up (default true)"`
		PRDescription string `json:"prDescription,omitempty" jsonschema:"PR body; required the first time the PR is opened"`
		PRTitle       string `json:"prTitle,omitempty" jsonschema:"PR title override"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name: "ship",
		Description: "Drive the session to a squash-merged PR: rebase onto main, push, open the PR, " +
			"wait for checks, merge, and clean up. Re-invoke to resume from any intermediate state.",
		Annotations: &mcp.ToolAnnotations{IdempotentHint: true, OpenWorldHint: boolPtr(true)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args shipArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.Ship(ctx, tools.ShipInput{
			Push:          args.Push,
			CreatePR:      args.CreatePR,
			Merge:         args.Merge,
			PRDescription: args.PRDescription,
			PRTitle:       args.PRTitle,
		}))
	})

	type swapArgs struct {
		BranchName string `json:"branchName" jsonschema:"Session branch to switch to"`
		Stash      bool   `json:"stash,omitempty" jsonschema:"Stash a dirty working tree before switching"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "swap",
		Description: "Switch the working tree to another session's branch, parking and restoring stashes.",
		Annotations: &mcp.ToolAnnotations{OpenWorldHint: boolPtr(false)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args swapArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.Swap(ctx, tools.SwapInput{
			BranchName: args.BranchName,
			Stash:      args.Stash,
		}))
	})

	type abortArgs struct {
		BranchName   string `json:"branchName,omitempty" jsonschema:"Session branch to abort (default: current branch)"`
		DeleteBranch bool   `json:"deleteBranch,omitempty" jsonschema:"Also delete the branch, local and remote"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "abort",
		Description: "Abort a session. Uncommitted work is stashed, never discarded.",
		Annotations: &mcp.ToolAnnotations{OpenWorldHint: boolPtr(false)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args abortArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.Abort(ctx, tools.AbortInput{
			BranchName:   args.BranchName,
			DeleteBranch: args.DeleteBranch,
		}))
	})

	type hotfixArgs struct {
		Issue      string `json:"issue" jsonschema:"Incident identifier; its slug names the hotfix branch"`
		Severity   string `json:"severity,omitempty" jsonschema:"Incident severity, e.g. critical"`
		SkipReview bool   `json:"skipReview,omitempty" jsonschema:"Bypass human approvals during ship; required checks still gate"`
		AutoMerge  bool   `json:"autoMerge,omitempty" jsonschema:"Merge as soon as checks pass"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "hotfix",
		Description: "Start an emergency hotfix session on the hotfix workflow.",
		Annotations: &mcp.ToolAnnotations{OpenWorldHint: boolPtr(false)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args hotfixArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.Hotfix(ctx, tools.HotfixInput{
			Issue:      args.Issue,
			Severity:   args.Severity,
			SkipReview: args.SkipReview,
			AutoMerge:  args.AutoMerge,
		}))
	})

	type cleanupArgs struct {
		DeleteBranches bool `json:"deleteBranches,omitempty" jsonschema:"Also delete merged branches"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cleanup",
		Description: "Remove finished sessions: merged, branch-gone, or expired. Never touches unmerged work.",
		Annotations: &mcp.ToolAnnotations{IdempotentHint: true, OpenWorldHint: boolPtr(false)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args cleanupArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.Cleanup(ctx, tools.CleanupInput{
			DeleteBranches: args.DeleteBranches,
		}))
	})

	type sessionsArgs struct {
		All     bool `json:"all,omitempty" jsonschema:"Include terminal sessions"`
		Verbose bool `json:"verbose,omitempty" jsonschema:"Include metadata and state history"`
		Cleanup bool `json:"cleanup,omitempty" jsonschema:"Run a maintenance pass first (never deletes branches)"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "sessions",
		Description: "List workflow sessions.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true, OpenWorldHint: boolPtr(false)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args sessionsArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.SessionsList(ctx, tools.SessionsInput{
			All:     args.All,
			Verbose: args.Verbose,
			Cleanup: args.Cleanup,
		}))
	})

	type statusArgs struct {
		BranchName string `json:"branchName,omitempty" jsonschema:"Branch to inspect (default: current branch)"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Show the current branch, its session, working tree counts, and live PR state.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true, OpenWorldHint: boolPtr(true)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args statusArgs) (*mcp.CallToolResult, any, error) {
		if cancelledEarly(ctx) {
			return cancelledResult()
		}
		return toolResultContent(rt.Status(ctx, tools.StatusInput{
			BranchName: args.BranchName,
		}))
	})
}
