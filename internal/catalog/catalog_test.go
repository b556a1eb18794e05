package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/mcpagent/internal/config"
)

type fakeSource struct {
	tools  map[string][]mcp.Tool
	fail   map[string]error
	calls  []string
	closed bool
}

func (f *fakeSource) ListTools(_ context.Context, server string) ([]mcp.Tool, error) {
	if err := f.fail[server]; err != nil {
		return nil, err
	}
	return f.tools[server], nil
}

func (f *fakeSource) CallTool(_ context.Context, server, tool string, _ map[string]any) (string, error) {
	f.calls = append(f.calls, server+"/"+tool)
	return "ok from " + server, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func quoteTool() mcp.Tool {
	return mcp.NewTool("get_quote", mcp.WithString("symbol", mcp.Required()))
}

func TestDiscoverFinanceScenario(t *testing.T) {
	src := &fakeSource{tools: map[string][]mcp.Tool{
		"finance-data-server": {quoteTool()},
	}}
	cat, err := Discover(context.Background(), src, []string{"finance-data-server"}, Options{Log: zerolog.Nop()})
	require.NoError(t, err)

	bts, err := json.Marshal(cat.Report())
	require.NoError(t, err)
	require.JSONEq(t, `{
		"servers": {
			"finance-data-server": {
				"name": "finance-data-server",
				"tool_count": 1,
				"tools": [{
					"name": "get_quote",
					"description": "",
					"parameters": {"symbol": {"type": "string"}},
					"required": ["symbol"]
				}]
			}
		},
		"total_tools": 1,
		"server_count": 1
	}`, string(bts))

	desc, ok := cat.Lookup("get_quote")
	require.True(t, ok)
	require.Equal(t, "finance-data-server", desc.Server)
	require.Equal(t, "declared-input-schema", desc.Strategy)

	_, ok = cat.Lookup("GET_QUOTE")
	require.False(t, ok, "lookup is case-sensitive")
}

func TestDiscoverUnreachableServer(t *testing.T) {
	src := &fakeSource{
		tools: map[string][]mcp.Tool{
			"finance": {quoteTool(), mcp.NewTool("get_news")},
			"weather": {mcp.NewTool("forecast")},
		},
		fail: map[string]error{"down": errors.New("connection refused")},
	}
	cat, err := Discover(context.Background(), src, []string{"finance", "down", "weather"}, Options{Log: zerolog.Nop()})
	require.NoError(t, err)

	rep := cat.Report()
	require.Equal(t, 3, rep.TotalTools)
	require.Equal(t, 3, rep.ServerCount)
	require.Equal(t, 0, rep.Servers["down"].ToolCount)
	require.Empty(t, rep.Servers["down"].Tools)
	require.Equal(t, "connection refused", rep.Servers["down"].Error)
	require.Equal(t, []string{"finance", "down", "weather"}, cat.Servers())
	require.EqualError(t, cat.Failure("down"), "connection refused")

	tools, servers := cat.Summary()
	require.Equal(t, 3, tools)
	require.Equal(t, 3, servers)
}

func TestDiscoverNoServers(t *testing.T) {
	_, err := Discover(context.Background(), &fakeSource{}, nil, Options{Log: zerolog.Nop()})
	require.ErrorIs(t, err, ErrNoServers)
}

func TestDiscoverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Discover(ctx, &fakeSource{}, []string{"a"}, Options{Log: zerolog.Nop()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCollisions(t *testing.T) {
	src := func() *fakeSource {
		return &fakeSource{tools: map[string][]mcp.Tool{
			"alpha": {mcp.NewTool("search", mcp.WithDescription("alpha search"))},
			"beta":  {mcp.NewTool("search", mcp.WithDescription("beta search"))},
		}}
	}
	servers := []string{"alpha", "beta"}

	t.Run("namespace", func(t *testing.T) {
		s := src()
		cat, err := Discover(context.Background(), s, servers, Options{Collisions: config.CollisionNamespace, Log: zerolog.Nop()})
		require.NoError(t, err)
		require.Len(t, cat.Tools(), 2)

		first, ok := cat.Lookup("search")
		require.True(t, ok)
		require.Equal(t, "alpha", first.Server)

		second, ok := cat.Lookup("beta_search")
		require.True(t, ok)
		require.Equal(t, "beta", second.Server)
		require.Equal(t, "search", second.RemoteName)

		_, err = cat.Call(context.Background(), second, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"beta/search"}, s.calls)
		require.Equal(t, "beta_search", cat.ByServer("beta")[0].Name)
	})

	t.Run("default is namespace", func(t *testing.T) {
		cat, err := Discover(context.Background(), src(), servers, Options{Log: zerolog.Nop()})
		require.NoError(t, err)
		_, ok := cat.Lookup("beta_search")
		require.True(t, ok)
	})

	t.Run("reject", func(t *testing.T) {
		_, err := Discover(context.Background(), src(), servers, Options{Collisions: config.CollisionReject, Log: zerolog.Nop()})
		require.ErrorIs(t, err, ErrToolCollision)
		require.Contains(t, err.Error(), `"search"`)
	})

	t.Run("shadow", func(t *testing.T) {
		cat, err := Discover(context.Background(), src(), servers, Options{Collisions: config.CollisionShadow, Log: zerolog.Nop()})
		require.NoError(t, err)
		require.Len(t, cat.Tools(), 1)
		desc, ok := cat.Lookup("search")
		require.True(t, ok)
		require.Equal(t, "beta", desc.Server)
		require.Equal(t, "beta search", desc.Description)

		rep := cat.Report()
		require.Equal(t, 1, rep.Servers["alpha"].ToolCount)
		require.Equal(t, 1, rep.Servers["beta"].ToolCount)
	})
}

func TestEmptyCatalog(t *testing.T) {
	cat := Empty()
	require.Empty(t, cat.Tools())
	rep := cat.Report()
	require.Equal(t, 0, rep.TotalTools)
	require.Equal(t, 0, rep.ServerCount)
	require.NotNil(t, rep.Servers)
	_, err := cat.Call(context.Background(), Descriptor{Server: "x"}, nil)
	require.Error(t, err)
	require.NoError(t, cat.Close())
}

func TestCloseTearsDownSource(t *testing.T) {
	src := &fakeSource{}
	cat, err := Discover(context.Background(), src, []string{"a"}, Options{Log: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, cat.Close())
	require.True(t, src.closed)
}
