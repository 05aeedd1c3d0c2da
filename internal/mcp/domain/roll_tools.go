package domain

import (
	"context"

	"github.com/louisbranch/mist-engine/internal/mist"
	rollsvc "github.com/louisbranch/mist-engine/internal/roll/service"
	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RollSubmitInput represents the MCP tool input for submitting a draft.
type RollSubmitInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string `json:"purpose" jsonschema:"session flow the draft was opened for"`
}

// RollSubmitTool defines the MCP tool schema for submitting a draft.
func RollSubmitTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_submit",
		Description: "Seals the user's draft into a persisted roll. Propose and reaction drafts create a new proposed roll; amend drafts overwrite the targeted roll's selections and return it to proposed. The draft is discarded on success.",
	}
}

// RollSubmitHandler executes a draft submission request.
func RollSubmitHandler(workflow *rollsvc.Workflow, locale string) mcp.ToolHandlerFor[RollSubmitInput, RollView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollSubmitInput) (*mcp.CallToolResult, RollView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, RollView{}, rejection("roll submit", locale, err)
		}
		roll, err := workflow.Submit(ctx, key)
		if err != nil {
			return nil, RollView{}, rejection("roll submit", locale, err)
		}
		return nil, rollView(roll), nil
	}
}

// RollConfirmInput represents the MCP tool input for confirming a roll.
type RollConfirmInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string `json:"purpose" jsonschema:"confirm for proposed rolls, reconfirm for modified ones"`
}

// RollConfirmTool defines the MCP tool schema for confirming a roll.
func RollConfirmTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_confirm",
		Description: "Confirms the roll targeted by the user's confirm or reconfirm draft, applying any edits made in the draft first. Narrators confirm any roll in their guild; creators confirm their own. Dangling tag references are purged before the transition.",
	}
}

// RollConfirmHandler executes a roll confirmation request.
func RollConfirmHandler(workflow *rollsvc.Workflow, locale string) mcp.ToolHandlerFor[RollConfirmInput, RollView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollConfirmInput) (*mcp.CallToolResult, RollView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, RollView{}, rejection("roll confirm", locale, err)
		}
		roll, err := workflow.Confirm(ctx, key)
		if err != nil {
			return nil, RollView{}, rejection("roll confirm", locale, err)
		}
		return nil, rollView(roll), nil
	}
}

// RollExecuteInput represents the MCP tool input for executing a roll.
type RollExecuteInput struct {
	GuildID  string `json:"guild_id" jsonschema:"guild the roll belongs to"`
	RollID   int64  `json:"roll_id" jsonschema:"per-guild roll number"`
	ActorID  string `json:"actor_id" jsonschema:"user throwing the dice; must be the roll's creator"`
	Strategy string `json:"strategy,omitempty" jsonschema:"dice strategy (none, throw_caution, hedge_risks)"`
}

// RollExecuteResult represents the MCP tool output for executing a roll.
type RollExecuteResult struct {
	Roll      RollView      `json:"roll" jsonschema:"the executed roll with its dice trace"`
	Breakdown BreakdownView `json:"breakdown" jsonschema:"the power calculation behind the trace"`
}

// RollExecuteTool defines the MCP tool schema for executing a roll.
func RollExecuteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_execute",
		Description: "Throws 2d6 on a confirmed roll and seals the outcome. Throw-caution requires a helping status, hedge-risks a hindering one. Only the roll's creator may execute, and a roll executes exactly once.",
	}
}

// RollExecuteHandler executes a dice throw request.
func RollExecuteHandler(workflow *rollsvc.Workflow, locale string) mcp.ToolHandlerFor[RollExecuteInput, RollExecuteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollExecuteInput) (*mcp.CallToolResult, RollExecuteResult, error) {
		strategy, err := mist.ParseStrategy(input.Strategy)
		if err != nil {
			return nil, RollExecuteResult{}, rejection("roll execute", locale, err)
		}
		result, err := workflow.Execute(ctx, rollsvc.ExecuteRequest{
			GuildID:  input.GuildID,
			RollID:   input.RollID,
			ActorID:  input.ActorID,
			Strategy: strategy,
		})
		if err != nil {
			return nil, RollExecuteResult{}, rejection("roll execute", locale, err)
		}
		return nil, RollExecuteResult{
			Roll:      rollView(result.Roll),
			Breakdown: breakdownView(result.Breakdown),
		}, nil
	}
}

// RollGetInput represents the MCP tool input for reading a roll.
type RollGetInput struct {
	GuildID string `json:"guild_id" jsonschema:"guild the roll belongs to"`
	RollID  int64  `json:"roll_id" jsonschema:"per-guild roll number"`
}

// RollGetTool defines the MCP tool schema for reading a roll.
func RollGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_get",
		Description: "Returns one persisted roll by its per-guild number, including the dice trace once executed.",
	}
}

// RollGetHandler executes a roll read request.
func RollGetHandler(workflow *rollsvc.Workflow, locale string) mcp.ToolHandlerFor[RollGetInput, RollView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollGetInput) (*mcp.CallToolResult, RollView, error) {
		roll, err := workflow.Get(ctx, input.GuildID, input.RollID)
		if err != nil {
			return nil, RollView{}, rejection("roll get", locale, err)
		}
		return nil, rollView(roll), nil
	}
}

// RollListInput represents the MCP tool input for listing rolls.
type RollListInput struct {
	GuildID   string `json:"guild_id" jsonschema:"guild whose rolls to list"`
	Filter    string `json:"filter,omitempty" jsonschema:"filter expression over status, outcome, creator_id, character_id, scene_id, is_reaction, and might"`
	OrderBy   string `json:"order_by,omitempty" jsonschema:"sort order; id ascending, or the default id desc"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"rolls per page, capped at 100"`
	PageToken string `json:"page_token,omitempty" jsonschema:"continuation token from a previous page"`
}

// RollListResult represents the MCP tool output for listing rolls.
type RollListResult struct {
	Rolls         []RollView `json:"rolls" jsonschema:"one page of rolls"`
	NextPageToken string     `json:"next_page_token,omitempty" jsonschema:"token for the following page, empty on the last page"`
}

// RollListTool defines the MCP tool schema for listing rolls.
func RollListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_list",
		Description: "Lists a guild's rolls newest first, with optional filtering and pagination. Page tokens are bound to the filter and order that produced them.",
	}
}

// RollListHandler executes a roll listing request.
func RollListHandler(workflow *rollsvc.Workflow, locale string) mcp.ToolHandlerFor[RollListInput, RollListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollListInput) (*mcp.CallToolResult, RollListResult, error) {
		rolls, next, err := workflow.List(ctx, storage.ListRollsRequest{
			GuildID:   input.GuildID,
			Filter:    input.Filter,
			OrderBy:   input.OrderBy,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, RollListResult{}, rejection("roll list", locale, err)
		}
		result := RollListResult{
			Rolls:         make([]RollView, 0, len(rolls)),
			NextPageToken: next,
		}
		for _, roll := range rolls {
			result.Rolls = append(result.Rolls, rollView(roll))
		}
		return nil, result, nil
	}
}
