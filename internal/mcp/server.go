package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jhelwig/seneschal-program-sub001/internal/tool"
	"github.com/jhelwig/seneschal-program-sub001/pkg/version"
)

// Server bridges an LLM client to the tool dispatcher: every entry in
// tool.All() is registered with the go-sdk as an MCP tool whose
// handler forwards straight to dispatcher.Dispatch, so the registry is
// the single source of truth for what an MCP client sees.
type Server struct {
	mcp        *gosdk.Server
	dispatcher *tool.Dispatcher
	logger     *slog.Logger
}

// NewServer builds an MCP server fronting dispatcher. Every tool in
// tool.All() is registered immediately; there is no lazy/deferred
// registration step distinct from the registry's own Priority field,
// which only affects documentation ordering, not what's callable.
func NewServer(dispatcher *tool.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		dispatcher: dispatcher,
		logger:     logger,
	}

	s.mcp = gosdk.NewServer(
		&gosdk.Implementation{
			Name:    "seneschal",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// registerTools adds every tool.All() definition to the MCP server,
// using each Definition's own Schema as the tool's input schema rather
// than inferring one by reflection, since the handler's input type is
// the same generic map[string]any for every tool.
func (s *Server) registerTools() {
	for _, def := range tool.All() {
		def := def
		gosdk.AddTool(s.mcp, &gosdk.Tool{
			Name:        string(def.Name),
			Description: def.Description,
			InputSchema: def.Schema,
		}, s.handlerFor(def.Name))
		s.logger.Debug("registered MCP tool", slog.String("name", string(def.Name)))
	}
	s.logger.Info("MCP tools registered", slog.Int("count", len(tool.All())))
}

// handlerFor builds the go-sdk tool handler for name: decode arguments
// straight into the map the dispatcher already expects, dispatch, and
// translate a Result into the (result, output, error) shape the SDK
// wants. A dispatch failure becomes a Go error so the SDK reports it
// as an MCP tool error; it is never itself an error from Dispatch.
func (s *Server) handlerFor(name tool.Name) func(context.Context, *gosdk.CallToolRequest, map[string]any) (*gosdk.CallToolResult, any, error) {
	return func(ctx context.Context, _ *gosdk.CallToolRequest, input map[string]any) (*gosdk.CallToolResult, any, error) {
		result := s.dispatcher.Dispatch(ctx, tool.Call{
			ID:   generateRequestID(),
			Tool: name,
			Args: input,
		})
		if result.Err != "" {
			return nil, nil, MapError(fmt.Errorf("%s", result.Err))
		}
		return nil, result.Value, nil
	}
}

// Serve runs the MCP server until ctx is canceled or the transport's
// connection closes. Only the stdio transport is implemented: an MCP
// host (the LLM client) launches seneschald itself and keeps its
// stdin/stdout open for the lifetime of the session, exactly as the
// duplex channel's external tool calls assume a single long-lived
// process. There is no network transport here deliberately - routing
// MCP over HTTP belongs to the HTTP layer this system treats as an
// external collaborator.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &gosdk.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
