// Package mcpserver exposes the Action Pipeline's sandboxed code executor
// as a single MCP tool, letting an external agent client run a snippet
// through the same interpreter allow-list and timeout the chat response
// path uses. Grounded on _examples' modelcontextprotocol/go-sdk usage
// (codeready-toolchain-tarsy's pkg/mcp package) for the AddTool/ToolHandler
// shape, adapted here from an MCP client into a server.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"nexira/internal/actions"
)

const toolName = "run_code"

var inputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"language": {"type": "string", "description": "python, bash, or node"},
		"code": {"type": "string", "description": "source to execute"}
	},
	"required": ["language", "code"]
}`)

type runCodeArgs struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type runCodeResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// New builds the MCP server wrapping actionsEn's sandboxed executor.
func New(actionsEn *actions.Engine) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "nexira-actions",
		Version: "1.0.0",
	}, nil)

	server.AddTool(&mcpsdk.Tool{
		Name:        toolName,
		Description: "Execute a code snippet in Nexira's sandboxed interpreter (the same one the Action Pipeline uses for fenced code blocks) and return its stdout/stderr/exit code.",
		InputSchema: inputSchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args runCodeArgs
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errorResult(fmt.Errorf("parse arguments: %w", err)), nil
		}

		stdout, stderr, exitCode, err := actionsEn.ExecuteCode(ctx, args.Language, args.Code)
		if err != nil {
			return errorResult(err), nil
		}

		payload, err := json.Marshal(runCodeResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode})
		if err != nil {
			return errorResult(err), nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(payload)}},
		}, nil
	})

	return server
}

func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// Run serves the MCP tool over stdio until ctx is canceled, blocking the
// calling goroutine. Intended to run in its own goroutine alongside the
// HTTP API (cmd/nexirad starts it only when MCP is enabled in config).
func Run(ctx context.Context, server *mcpsdk.Server) error {
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
