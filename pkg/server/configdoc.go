package server

import (
	"github.com/mcpify/mcpify/pkg/tool"
)

// ToolSummary is the serializable slice of a descriptor: no handler
// references ever leave the process.
type ToolSummary struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema tool.InputSchema `json:"inputSchema"`
}

// Capabilities advertises what this server's protocol surface offers.
type Capabilities struct {
	Tools    bool `json:"tools"`
	Sampling bool `json:"sampling"`
	Logging  bool `json:"logging"`
}

// Endpoints describes how to reach the protocol surface.
type Endpoints struct {
	Tools   string `json:"tools"`
	Execute string `json:"execute"`
	SSE     string `json:"sse"`
	JSONRPC string `json:"jsonrpc"`
}

// ConfigDocument is a declarative description of the running server,
// derived purely from the tool registry and the bound address.
type ConfigDocument struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Description  string        `json:"description"`
	Tools        []ToolSummary `json:"tools"`
	Capabilities Capabilities  `json:"capabilities"`
	Endpoints    Endpoints     `json:"endpoints"`
}

// NewConfigDocument builds the configuration document for a registry
// served at baseURL.
func NewConfigDocument(name, version, description string, registry *tool.Registry, baseURL string) ConfigDocument {
	descriptors := registry.List()
	tools := make([]ToolSummary, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, ToolSummary{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}

	return ConfigDocument{
		Name:        name,
		Version:     version,
		Description: description,
		Tools:       tools,
		Capabilities: Capabilities{
			Tools:    true,
			Sampling: false,
			Logging:  true,
		},
		Endpoints: Endpoints{
			Tools:   baseURL + "/tools",
			Execute: baseURL + "/execute",
			SSE:     baseURL + "/sse",
			JSONRPC: baseURL + "/jsonrpc",
		},
	}
}

// ConfigDocument returns the document for this server's current
// registry and bound address.
func (s *Server) ConfigDocument() ConfigDocument {
	return NewConfigDocument(s.name, s.version, s.description, s.exec.Registry(), s.BaseURL())
}
