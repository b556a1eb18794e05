// Package catalog discovers the tools of the configured MCP servers.
//
// Tools are kept twice: in a flat table keyed by dispatch name, and grouped
// by the server they were discovered on. Both are built once by Discover and
// are read-only afterwards, so a Catalog can be shared by any number of
// conversations.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/dotcommander/mcpagent/internal/config"
	"github.com/dotcommander/mcpagent/internal/errs"
	"github.com/dotcommander/mcpagent/internal/metrics"
)

var (
	// ErrNoServers is returned by Discover when no server is configured.
	ErrNoServers = errors.New("no mcp servers configured")

	// ErrToolCollision is returned by Discover under the reject policy when
	// two servers expose a tool with the same name.
	ErrToolCollision = errors.New("tool name collision")
)

// Source lists and invokes tools on named servers.
type Source interface {
	ListTools(ctx context.Context, server string) ([]mcp.Tool, error)
	CallTool(ctx context.Context, server, tool string, args map[string]any) (string, error)
	Close() error
}

// Descriptor is a discovered tool.
type Descriptor struct {
	// Name is the dispatch key, unique within the catalog.
	Name string
	// RemoteName is the name the owning server knows the tool by. It only
	// differs from Name when the tool was namespaced after a collision.
	RemoteName  string
	Server      string
	Description string
	Schema      Schema
	// Strategy names the schema extraction strategy that matched.
	Strategy string
}

// Options configures discovery.
type Options struct {
	Collisions string
	Log        zerolog.Logger
	Metrics    *metrics.Metrics
}

// Catalog is the process-wide tool table.
type Catalog struct {
	src      Source
	servers  []string
	tools    []Descriptor
	index    map[string]int
	byServer map[string][]Descriptor
	failures map[string]error
}

// Discover lists the tools of every server, one server at a time. A server
// that fails to list contributes no tools; only a missing server list, a
// rejected collision or a cancelled ctx fail discovery.
func Discover(ctx context.Context, src Source, servers []string, opts Options) (*Catalog, error) {
	if len(servers) == 0 {
		return nil, errs.Error{Err: ErrNoServers, Reason: "No MCP servers configured."}
	}
	policy := opts.Collisions
	if policy == "" {
		policy = config.CollisionNamespace
	}

	c := &Catalog{
		src:      src,
		index:    map[string]int{},
		byServer: map[string][]Descriptor{},
		failures: map[string]error{},
	}
	for _, server := range servers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("discovery interrupted: %w", err)
		}
		c.servers = append(c.servers, server)

		start := time.Now()
		tools, err := src.ListTools(ctx, server)
		opts.Metrics.Discovered(server, len(tools), err)
		if err != nil {
			opts.Log.Warn().Err(err).Str("server", server).Msg("tool discovery failed")
			c.byServer[server] = nil
			c.failures[server] = err
			continue
		}

		descs := make([]Descriptor, 0, len(tools))
		for _, tool := range tools {
			desc, err := c.register(describe(server, tool), policy, opts.Log)
			if err != nil {
				return nil, err
			}
			descs = append(descs, desc)
		}
		c.byServer[server] = descs
		opts.Log.Info().
			Str("server", server).
			Int("tools", len(descs)).
			Dur("took", time.Since(start)).
			Msg("tools discovered")
	}
	return c, nil
}

func describe(server string, tool mcp.Tool) Descriptor {
	schema, strategy := ExtractSchema(tool)
	return Descriptor{
		Name:        tool.Name,
		RemoteName:  tool.Name,
		Server:      server,
		Description: tool.Description,
		Schema:      schema,
		Strategy:    strategy,
	}
}

// register adds desc to the flat table according to the collision policy
// and returns the descriptor as registered.
func (c *Catalog) register(desc Descriptor, policy string, log zerolog.Logger) (Descriptor, error) {
	i, taken := c.index[desc.Name]
	if !taken {
		c.index[desc.Name] = len(c.tools)
		c.tools = append(c.tools, desc)
		return desc, nil
	}

	owner := c.tools[i].Server
	switch policy {
	case config.CollisionReject:
		return desc, fmt.Errorf("%w: %q is exposed by %q and %q", ErrToolCollision, desc.Name, owner, desc.Server)
	case config.CollisionShadow:
		log.Warn().Str("tool", desc.Name).Str("server", desc.Server).Str("shadowed", owner).Msg("tool shadows an earlier one")
		c.tools[i] = desc
		return desc, nil
	default:
		namespaced := desc.Server + "_" + desc.RemoteName
		if _, clash := c.index[namespaced]; clash {
			return desc, fmt.Errorf("%w: %q is exposed by %q and %q is taken", ErrToolCollision, desc.Name, owner, namespaced)
		}
		log.Warn().Str("tool", desc.Name).Str("server", desc.Server).Str("as", namespaced).Msg("tool renamed after a collision")
		desc.Name = namespaced
		c.index[namespaced] = len(c.tools)
		c.tools = append(c.tools, desc)
		return desc, nil
	}
}

// Empty returns a catalog with no servers and no tools.
func Empty() *Catalog {
	return &Catalog{
		index:    map[string]int{},
		byServer: map[string][]Descriptor{},
		failures: map[string]error{},
	}
}

// Lookup finds a tool by exact dispatch name.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	i, ok := c.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return c.tools[i], true
}

// Tools returns the flat tool list in discovery order.
func (c *Catalog) Tools() []Descriptor {
	return append([]Descriptor(nil), c.tools...)
}

// Servers returns the server names in discovery order, failed ones included.
func (c *Catalog) Servers() []string {
	return append([]string(nil), c.servers...)
}

// ByServer returns the tools discovered on one server.
func (c *Catalog) ByServer(server string) []Descriptor {
	return append([]Descriptor(nil), c.byServer[server]...)
}

// Failure returns the discovery error of a server, if any.
func (c *Catalog) Failure(server string) error {
	return c.failures[server]
}

// Call invokes the tool on its owning server.
func (c *Catalog) Call(ctx context.Context, desc Descriptor, args map[string]any) (string, error) {
	if c.src == nil {
		return "", fmt.Errorf("no server connection for %q", desc.Server)
	}
	return c.src.CallTool(ctx, desc.Server, desc.RemoteName, args)
}

// Close tears down the server connections.
func (c *Catalog) Close() error {
	if c.src == nil {
		return nil
	}
	return c.src.Close()
}
