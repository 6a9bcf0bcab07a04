// Package mcpserver exposes Builder.BuildTree as an MCP tool pair:
// build_tree starts a run and returns a job id immediately, and
// build_tree_status polls it, mirroring the teacher's
// internal/mcp.Server (one small struct wrapping a service, tools
// registered in a dedicated method, one handler per tool) adapted for
// a long-running operation a single synchronous call wouldn't fit.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/toctree/internal/config"
	"github.com/a3tai/toctree/internal/toc"
)

// Server wraps the toc.Builder behind MCP's tool protocol.
type Server struct {
	cfg       *config.Config
	builder   *toc.Builder
	mcpServer *server.MCPServer

	mu   sync.Mutex
	jobs map[string]*job
}

// job tracks one in-flight or completed BuildTree run. Fields are
// guarded by mu; the run goroutine writes through the accessor
// methods while build_tree_status reads back at any time, the same
// mutex-guarded-state-plus-accessors shape internal/toc/verify's
// itemState uses for its own per-unit bounded-concurrency bookkeeping.
type job struct {
	mu       sync.Mutex
	done     bool
	result   *toc.Result
	err      error
	progress toc.ProgressEvent
}

func (j *job) setProgress(p toc.ProgressEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = p
}

func (j *job) finish(result *toc.Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.done = true
	j.result = result
	j.err = err
}

func (j *job) snapshot() (done bool, result *toc.Result, err error, progress toc.ProgressEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done, j.result, j.err, j.progress
}

// NewServer builds a Server around cfg and builder.
func NewServer(cfg *config.Config, builder *toc.Builder) (*Server, error) {
	if builder == nil {
		return nil, fmt.Errorf("mcpserver: builder cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		"toctree",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	s := &Server{
		cfg:       cfg,
		builder:   builder,
		mcpServer: mcpServer,
		jobs:      make(map[string]*job),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	buildTreeTool := mcp.NewTool(
		"build_tree",
		mcp.WithDescription("Start extracting a hierarchical table-of-contents tree from a PDF. Returns a job_id to poll with build_tree_status."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
		mcp.WithString("model",
			mcp.Description("LLM model name (default: provider's default)"),
		),
		mcp.WithBoolean("add_node_text",
			mcp.Description("attach each node's source text (default: false)"),
		),
		mcp.WithBoolean("add_node_summary",
			mcp.Description("attach an LLM-generated summary per node (default: false)"),
		),
		mcp.WithBoolean("no_recursive",
			mcp.Description("disable recursive extraction of oversized nodes (default: false)"),
		),
		mcp.WithBoolean("force_verification",
			mcp.Description("bypass size-based verification skip (default: false)"),
		),
	)
	s.mcpServer.AddTool(buildTreeTool, s.handleBuildTree)

	statusTool := mcp.NewTool(
		"build_tree_status",
		mcp.WithDescription("Poll a build_tree job: returns running/done/error plus progress, and the full result once done."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("job_id returned by build_tree"),
		),
	)
	s.mcpServer.AddTool(statusTool, s.handleBuildTreeStatus)
}

func (s *Server) handleBuildTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := config.DefaultOptions()
	if s.cfg != nil {
		opts = s.cfg.Options
	}
	args := request.GetArguments()
	if model, ok := args["model"].(string); ok && model != "" {
		opts.Model = model
	}
	if v, ok := args["add_node_text"].(bool); ok {
		opts.IfAddNodeText = v
	}
	if v, ok := args["add_node_summary"].(bool); ok {
		opts.IfAddNodeSummary = v
	}
	if v, ok := args["no_recursive"].(bool); ok {
		opts.NoRecursive = v
	}
	if v, ok := args["force_verification"].(bool); ok {
		opts.ForceVerification = v
	}

	jobID := uuid.NewString()
	j := &job{}
	s.mu.Lock()
	s.jobs[jobID] = j
	s.mu.Unlock()

	runCtx := context.Background()
	progress := make(chan toc.ProgressEvent, 8)
	go func() {
		for p := range progress {
			j.setProgress(p)
		}
	}()
	go func() {
		defer close(progress)
		result, err := s.builder.BuildTree(runCtx, path, opts, progress)
		j.finish(result, err)
	}()

	return mcp.NewToolResultText(fmt.Sprintf(`{"job_id":"%s"}`, jobID)), nil
}

func (s *Server) handleBuildTreeStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown job_id %q", jobID)), nil
	}

	done, result, runErr, progress := j.snapshot()
	if !done {
		body, _ := json.Marshal(map[string]interface{}{
			"status":   "running",
			"phase":    progress.Phase,
			"message":  progress.Message,
			"fraction": progress.Fraction,
		})
		return mcp.NewToolResultText(string(body)), nil
	}
	if runErr != nil {
		body, _ := json.Marshal(map[string]interface{}{
			"status": "error",
			"error":  runErr.Error(),
		})
		return mcp.NewToolResultText(string(body)), nil
	}

	body, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"status":"done","result":%s}`, body)), nil
}

// Run starts the MCP server over stdio, matching the teacher's
// stdio-mode convention (§6: the core is exposed as a CLI and an MCP
// server, both thin wrappers over Builder.BuildTree).
func (s *Server) Run(ctx context.Context) error {
	log.SetPrefix("[toctree-mcp] ")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("mcpserver: serve stdio: %w", err)
	}
	return nil
}
