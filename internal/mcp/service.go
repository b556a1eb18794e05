// Package mcp owns the connections to the configured MCP tool servers.
//
// Each server is connected at most once, on first use, and the connection is
// reused for every listing and call until Close.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/mcpagent/internal/config"
)

const clientName = "mcpagent"

// Transports understood by the service.
const (
	TransportStdio      = "stdio"
	TransportSSE        = "sse"
	TransportStreamable = "http"
)

// ErrUnknownServer is returned for a server name that is not configured or
// is disabled.
var ErrUnknownServer = errors.New("unknown mcp server")

// Dialer creates an unstarted client for a server.
type Dialer func(ctx context.Context, name string, server config.MCPServerConfig) (*client.Client, error)

// Service provides access to MCP server discovery and tool execution.
type Service struct {
	cfg     *config.Config
	log     zerolog.Logger
	dial    Dialer
	version string

	// base outlives individual requests; streaming transports bind their
	// connection to it.
	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[string]*client.Client
}

// Option configures a Service.
type Option func(*Service)

// WithDialer replaces the transport-based client construction.
func WithDialer(d Dialer) Option {
	return func(s *Service) { s.dial = d }
}

// WithVersion sets the client version announced to servers.
func WithVersion(v string) Option {
	return func(s *Service) { s.version = v }
}

// New creates a new MCP service.
func New(cfg *config.Config, log zerolog.Logger, opts ...Option) *Service {
	base, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:     cfg,
		log:     log,
		dial:    dialTransport,
		version: "dev",
		base:    base,
		cancel:  cancel,
		clients: map[string]*client.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsEnabled reports whether the named MCP server is enabled.
func (s *Service) IsEnabled(name string) bool {
	return !slices.Contains(s.cfg.MCPDisable, "*") &&
		!slices.Contains(s.cfg.MCPDisable, name)
}

// EnabledServers iterates enabled MCP servers in stable order.
func (s *Service) EnabledServers() iter.Seq2[string, config.MCPServerConfig] {
	return func(yield func(string, config.MCPServerConfig) bool) {
		names := slices.Collect(maps.Keys(s.cfg.MCPServers))
		slices.Sort(names)
		for _, name := range names {
			if !s.IsEnabled(name) {
				continue
			}
			if !yield(name, s.cfg.MCPServers[name]) {
				return
			}
		}
	}
}

// ServerNames returns the enabled server names in stable order.
func (s *Service) ServerNames() []string {
	var names []string
	for name := range s.EnabledServers() {
		names = append(names, name)
	}
	return names
}

// ListTools lists the tools of one server, connecting first if needed.
func (s *Service) ListTools(ctx context.Context, server string) ([]mcp.Tool, error) {
	cli, err := s.client(ctx, server)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.MCPTimeout)
	defer cancel()

	var tools []mcp.Tool
	req := mcp.ListToolsRequest{}
	for {
		res, err := cli.ListTools(ctx, req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("timeout while listing tools for %q: %w", server, err)
			}
			return nil, fmt.Errorf("list tools for %q: %w", server, err)
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		req.Params.Cursor = res.NextCursor
	}
}

// CallTool executes a tool on a server and returns its text output.
// A result flagged as an error by the server is returned as an error.
func (s *Service) CallTool(ctx context.Context, server, tool string, args map[string]any) (string, error) {
	cli, err := s.client(ctx, server)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.MCPTimeout)
	defer cancel()

	request := mcp.CallToolRequest{}
	request.Params.Name = tool
	request.Params.Arguments = args
	result, err := cli.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("call %s on %q: %w", tool, server, err)
	}

	text := resultText(result)
	if result.IsError {
		return "", errors.New(text)
	}
	return text, nil
}

// Close disconnects every server. It is safe to call more than once.
func (s *Service) Close() error {
	s.mu.Lock()
	clients := s.clients
	s.clients = map[string]*client.Client{}
	s.mu.Unlock()

	var wg errgroup.Group
	for name, cli := range clients {
		wg.Go(func() error {
			if err := cli.Close(); err != nil {
				return fmt.Errorf("close %q: %w", name, err)
			}
			s.log.Debug().Str("server", name).Msg("mcp connection closed")
			return nil
		})
	}
	err := wg.Wait()
	s.cancel()
	return err
}

func (s *Service) client(ctx context.Context, name string) (*client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cli, ok := s.clients[name]; ok {
		return cli, nil
	}
	server, ok := s.cfg.MCPServers[name]
	if !ok || !s.IsEnabled(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, name)
	}
	cli, err := s.connect(ctx, name, server)
	if err != nil {
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	s.clients[name] = cli
	return cli, nil
}

func (s *Service) connect(ctx context.Context, name string, server config.MCPServerConfig) (*client.Client, error) {
	cli, err := s.dial(s.base, name, server)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := cli.Start(s.base); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, s.cfg.MCPTimeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: s.version}
	if _, err := cli.Initialize(initCtx, req); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	s.log.Debug().Str("server", name).Str("transport", TransportOf(server)).Msg("mcp connection established")
	return cli, nil
}

// TransportOf returns the effective transport of a server descriptor.
func TransportOf(server config.MCPServerConfig) string {
	switch strings.ToLower(server.Transport) {
	case "":
		if server.Command != "" {
			return TransportStdio
		}
		return TransportSSE
	case "http", "streamable-http", "streamable_http", "streamablehttp":
		return TransportStreamable
	default:
		return strings.ToLower(server.Transport)
	}
}

func dialTransport(_ context.Context, _ string, server config.MCPServerConfig) (*client.Client, error) {
	switch TransportOf(server) {
	case TransportStdio:
		env := append(os.Environ(), server.Env...)
		return client.NewStdioMCPClient(server.Command, env, server.Args...)
	case TransportSSE:
		return client.NewSSEMCPClient(server.URL)
	case TransportStreamable:
		return client.NewStreamableHttpClient(server.URL)
	default:
		return nil, fmt.Errorf("unsupported MCP server transport: %q, supported transports are: stdio, sse, http", server.Transport)
	}
}

func resultText(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[Non-text content]")
		}
	}
	return sb.String()
}
