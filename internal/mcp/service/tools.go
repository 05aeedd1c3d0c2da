package service

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/mist-engine/internal/mcp/domain"
	rollsvc "github.com/louisbranch/mist-engine/internal/roll/service"
	sessionsvc "github.com/louisbranch/mist-engine/internal/session/service"
)

func registerSessionTools(mcpServer *mcp.Server, sessions *sessionsvc.Service, locale string) {
	mcp.AddTool(mcpServer, domain.SessionStartTool(), domain.SessionStartHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.SessionGetTool(), domain.SessionGetHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.SessionCancelTool(), domain.SessionCancelHandler(sessions, locale))
}

func registerTagTools(mcpServer *mcp.Server, sessions *sessionsvc.Service, locale string) {
	mcp.AddTool(mcpServer, domain.TagOptionsTool(), domain.TagOptionsHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.HelpPageSetTool(), domain.HelpPageSetHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.HinderPageSetTool(), domain.HinderPageSetHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.HelpToggleTool(), domain.HelpToggleHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.HinderToggleTool(), domain.HinderToggleHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.BurnSetTool(), domain.BurnSetHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.BurnClearTool(), domain.BurnClearHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.HelpAttributeTool(), domain.HelpAttributeHandler(sessions, locale))
}

func registerDraftTools(mcpServer *mcp.Server, sessions *sessionsvc.Service, locale string) {
	mcp.AddTool(mcpServer, domain.MightSetTool(), domain.MightSetHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.NarrativeSetTool(), domain.NarrativeSetHandler(sessions, locale))
	mcp.AddTool(mcpServer, domain.PowerPreviewTool(), domain.PowerPreviewHandler(sessions, locale))
}

func registerRollTools(mcpServer *mcp.Server, workflow *rollsvc.Workflow, locale string) {
	mcp.AddTool(mcpServer, domain.RollSubmitTool(), domain.RollSubmitHandler(workflow, locale))
	mcp.AddTool(mcpServer, domain.RollConfirmTool(), domain.RollConfirmHandler(workflow, locale))
	mcp.AddTool(mcpServer, domain.RollExecuteTool(), domain.RollExecuteHandler(workflow, locale))
	mcp.AddTool(mcpServer, domain.RollGetTool(), domain.RollGetHandler(workflow, locale))
	mcp.AddTool(mcpServer, domain.RollListTool(), domain.RollListHandler(workflow, locale))
}

func registerNarratorTools(mcpServer *mcp.Server, workflow *rollsvc.Workflow, locale string) {
	mcp.AddTool(mcpServer, domain.NarratorGrantTool(), domain.NarratorGrantHandler(workflow, locale))
	mcp.AddTool(mcpServer, domain.NarratorRevokeTool(), domain.NarratorRevokeHandler(workflow, locale))
}

// registerRollResources registers readable roll MCP resources.
func registerRollResources(mcpServer *mcp.Server, workflow *rollsvc.Workflow) {
	mcpServer.AddResourceTemplate(domain.RollResourceTemplate(), domain.RollResourceHandler(workflow))
	mcpServer.AddResourceTemplate(domain.RollListResourceTemplate(), domain.RollListResourceHandler(workflow))
}
