package domain

import (
	"context"

	sessionsvc "github.com/louisbranch/mist-engine/internal/session/service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MightSetInput represents the MCP tool input for setting the might modifier.
type MightSetInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string `json:"purpose" jsonschema:"session flow the draft was opened for"`
	Might   int    `json:"might" jsonschema:"flat modifier between -9 and 9"`
}

// MightSetTool defines the MCP tool schema for setting might.
func MightSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "might_set",
		Description: "Sets the draft's flat might modifier. Values outside -9 to 9 are rejected.",
	}
}

// MightSetHandler executes a might update request.
func MightSetHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[MightSetInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MightSetInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection("might set", locale, err)
		}
		session, err := sessions.SetMight(ctx, key, input.Might)
		if err != nil {
			return nil, SessionView{}, rejection("might set", locale, err)
		}
		return nil, sessionView(session), nil
	}
}

// NarrativeSetInput represents the MCP tool input for the draft's free text.
type NarrativeSetInput struct {
	UserID        string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose       string `json:"purpose" jsonschema:"session flow the draft was opened for"`
	Description   string `json:"description,omitempty" jsonschema:"what the character attempts"`
	NarrationLink string `json:"narration_link,omitempty" jsonschema:"link to the prose the roll resolves"`
	Justification string `json:"justification,omitempty" jsonschema:"why the selected tags apply"`
}

// NarrativeSetTool defines the MCP tool schema for the draft's free text.
func NarrativeSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "narrative_set",
		Description: "Replaces the draft's description, narration link, and tag justification in one call. Omitted fields are cleared.",
	}
}

// NarrativeSetHandler executes a narrative update request.
func NarrativeSetHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[NarrativeSetInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input NarrativeSetInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection("narrative set", locale, err)
		}
		session, err := sessions.SetNarrative(ctx, sessionsvc.NarrativeRequest{
			Key:           key,
			Description:   input.Description,
			NarrationLink: input.NarrationLink,
			Justification: input.Justification,
		})
		if err != nil {
			return nil, SessionView{}, rejection("narrative set", locale, err)
		}
		return nil, sessionView(session), nil
	}
}

// PowerPreviewInput represents the MCP tool input for previewing power.
type PowerPreviewInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string `json:"purpose" jsonschema:"session flow the draft was opened for"`
}

// PowerPreviewTool defines the MCP tool schema for previewing power.
func PowerPreviewTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "power_preview",
		Description: "Computes the power the draft's current selections would add to the dice, split into status tiers, tag sums, and might. Selections that no longer resolve contribute nothing.",
	}
}

// PowerPreviewHandler executes a power preview request.
func PowerPreviewHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[PowerPreviewInput, BreakdownView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PowerPreviewInput) (*mcp.CallToolResult, BreakdownView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, BreakdownView{}, rejection("power preview", locale, err)
		}
		breakdown, err := sessions.PreviewPower(ctx, key)
		if err != nil {
			return nil, BreakdownView{}, rejection("power preview", locale, err)
		}
		return nil, breakdownView(breakdown), nil
	}
}
