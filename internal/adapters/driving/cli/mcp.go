package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/classmate/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server acts as one user: questions are answered from that user's
courses only, and sync_courses refreshes that user's courses.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start a streamable HTTP server instead.

Examples:
  # Stdio mode (default, for desktop assistants)
  classmate mcp serve --user alice

  # HTTP mode (for MCP Inspector, remote access)
  classmate mcp serve --user alice --port 8081

Desktop assistant configuration:
  {
    "mcpServers": {
      "classmate": {
        "command": "/path/to/classmate",
        "args": ["mcp", "serve", "--user", "alice"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().StringP("user", "u", "", "User the server acts as")
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	ports := &mcp.Ports{
		QA:      rt.QA,
		Access:  rt.Access,
		Sync:    rt.Sync,
		Courses: rt.Courses,
	}

	server, err := mcp.NewServer(ports, user)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
