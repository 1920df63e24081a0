package cli

import (
	"context"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/tools"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server",
	}
	cmd.AddCommand(newMCPServeCmd())
	return cmd
}

func newMCPServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			server := newMCPServer(rt)
			logging.Info(cmd.Context(), "mcp server starting", "pid", os.Getpid())
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}

// newMCPServer builds the MCP server exposing the workflow tools.
// Tool results go over the wire as the full ToolResult JSON, so agent
// callers see check reports and next steps, not just a success flag.
func newMCPServer(rt *tools.Runtime) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "hansolo",
		Version: Version,
	}, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{
				ListChanged: false,
			},
		},
	})
	registerWorkflowTools(server, rt)
	return server
}

func boolPtr(b bool) *bool { return &b }

func cancelledEarly(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
