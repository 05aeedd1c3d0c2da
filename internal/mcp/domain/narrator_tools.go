package domain

import (
	"context"

	rollsvc "github.com/louisbranch/mist-engine/internal/roll/service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NarratorInput represents the MCP tool input for narrator role changes.
type NarratorInput struct {
	GuildID string `json:"guild_id" jsonschema:"guild the role applies to"`
	UserID  string `json:"user_id" jsonschema:"user whose narrator role changes"`
}

// NarratorResult represents the MCP tool output for narrator role changes.
type NarratorResult struct {
	GuildID  string `json:"guild_id" jsonschema:"guild the role applies to"`
	UserID   string `json:"user_id" jsonschema:"user whose narrator role changed"`
	Narrator bool   `json:"narrator" jsonschema:"whether the user now holds the narrator role"`
}

// NarratorGrantTool defines the MCP tool schema for granting the narrator role.
func NarratorGrantTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "narrator_grant",
		Description: "Grants the narrator role to a user within one guild. Narrators may confirm any proposed roll. Granting an existing narrator is a no-op.",
	}
}

// NarratorGrantHandler executes a narrator grant request.
func NarratorGrantHandler(workflow *rollsvc.Workflow, locale string) mcp.ToolHandlerFor[NarratorInput, NarratorResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input NarratorInput) (*mcp.CallToolResult, NarratorResult, error) {
		if err := workflow.GrantNarrator(ctx, input.GuildID, input.UserID); err != nil {
			return nil, NarratorResult{}, rejection("narrator grant", locale, err)
		}
		return nil, NarratorResult{GuildID: input.GuildID, UserID: input.UserID, Narrator: true}, nil
	}
}

// NarratorRevokeTool defines the MCP tool schema for revoking the narrator role.
func NarratorRevokeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "narrator_revoke",
		Description: "Revokes a user's narrator role within one guild. Revoking a user without the role is a no-op.",
	}
}

// NarratorRevokeHandler executes a narrator revoke request.
func NarratorRevokeHandler(workflow *rollsvc.Workflow, locale string) mcp.ToolHandlerFor[NarratorInput, NarratorResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input NarratorInput) (*mcp.CallToolResult, NarratorResult, error) {
		if err := workflow.RevokeNarrator(ctx, input.GuildID, input.UserID); err != nil {
			return nil, NarratorResult{}, rejection("narrator revoke", locale, err)
		}
		return nil, NarratorResult{GuildID: input.GuildID, UserID: input.UserID, Narrator: false}, nil
	}
}
