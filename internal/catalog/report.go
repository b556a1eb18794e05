package catalog

import "slices"

// ToolInfo describes one tool in a Report.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Required    []string       `json:"required"`
}

// ServerInfo groups the tools of one server in a Report.
type ServerInfo struct {
	Name      string     `json:"name"`
	Tools     []ToolInfo `json:"tools"`
	ToolCount int        `json:"tool_count"`
	Error     string     `json:"error,omitempty"`
}

// Report is the introspection view of a catalog.
type Report struct {
	Servers     map[string]ServerInfo `json:"servers"`
	TotalTools  int                   `json:"total_tools"`
	ServerCount int                   `json:"server_count"`
}

// Report builds the introspection view from the per-server grouping. It
// never contacts a server.
func (c *Catalog) Report() Report {
	rep := Report{Servers: make(map[string]ServerInfo, len(c.servers))}
	for _, server := range c.servers {
		descs := c.byServer[server]
		info := ServerInfo{Name: server, Tools: make([]ToolInfo, 0, len(descs)), ToolCount: len(descs)}
		for _, d := range descs {
			params := d.Schema.Properties
			if params == nil {
				params = map[string]any{}
			}
			required := slices.Clone(d.Schema.Required)
			if required == nil {
				required = []string{}
			}
			info.Tools = append(info.Tools, ToolInfo{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
				Required:    required,
			})
		}
		if err := c.failures[server]; err != nil {
			info.Error = err.Error()
		}
		rep.Servers[server] = info
		rep.TotalTools += info.ToolCount
	}
	rep.ServerCount = len(c.servers)
	return rep
}

// Summary returns the tool and server counts of Report without building it.
func (c *Catalog) Summary() (tools, servers int) {
	for _, server := range c.servers {
		tools += len(c.byServer[server])
	}
	return tools, len(c.servers)
}
