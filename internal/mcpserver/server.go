package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const statusMessage = "Granite Coder is ONLINE and Greedy."

// Solver runs a coding task against a codebase path. *agent.Agent satisfies it.
type Solver interface {
	Run(ctx context.Context, task, path string) (string, error)
}

// Server exposes the agent over MCP.
type Server struct {
	solver Solver
	logger *slog.Logger
	mcp    *server.MCPServer
}

func New(solver Solver, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{solver: solver, logger: logger}
	s.mcp = server.NewMCPServer("granite-coder", version, server.WithToolCapabilities(false))
	s.mcp.AddTools(s.tools()...)
	return s
}

// ServeStdio blocks serving JSON-RPC over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("check_status",
				mcp.WithDescription("Check if the Granite Coder agent is healthy and ready."),
			),
			Handler: s.handleCheckStatus,
		},
		{
			Tool: mcp.NewTool("solve_task",
				mcp.WithDescription("Solve a coding task using the Greedy architecture."),
				mcp.WithString("task", mcp.Required(), mcp.Description("The coding task to solve.")),
				mcp.WithString("path", mcp.Description("The path to the codebase."), mcp.DefaultString(".")),
			),
			Handler: s.handleSolveTask,
		},
	}
}

func (s *Server) handleCheckStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(statusMessage), nil
}

func (s *Server) handleSolveTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := req.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := req.GetString("path", ".")

	s.logger.Info("solve_task", "path", path)
	result, err := s.solver.Run(ctx, task, path)
	if err != nil {
		s.logger.Error("solve_task failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(result), nil
}
