package domain

import (
	"context"

	sessionsvc "github.com/louisbranch/mist-engine/internal/session/service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SessionStartInput represents the MCP tool input for opening a draft.
type SessionStartInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	GuildID string `json:"guild_id" jsonschema:"guild the draft belongs to"`
	Purpose string `json:"purpose" jsonschema:"session flow (propose, reaction, amend, confirm, reconfirm)"`
	RollID  int64  `json:"roll_id,omitempty" jsonschema:"target roll for amend/confirm/reconfirm flows, or the roll being reacted to"`
}

// SessionStartTool defines the MCP tool schema for opening a draft.
func SessionStartTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_start",
		Description: "Opens a roll drafting session for the user. Propose and reaction flows start blank drafts for the user's character; amend, confirm, and reconfirm flows load the targeted roll for editing. An existing draft for the same purpose is replaced.",
	}
}

// SessionStartHandler executes a session open request.
func SessionStartHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[SessionStartInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionStartInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection("session start", locale, err)
		}
		session, err := sessions.Start(ctx, sessionsvc.StartRequest{
			CreatorID: key.CreatorID,
			GuildID:   input.GuildID,
			Purpose:   key.Purpose,
			RollID:    input.RollID,
		})
		if err != nil {
			return nil, SessionView{}, rejection("session start", locale, err)
		}
		return nil, sessionView(session), nil
	}
}

// SessionGetInput represents the MCP tool input for reading a draft.
type SessionGetInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string `json:"purpose" jsonschema:"session flow the draft was opened for"`
}

// SessionGetTool defines the MCP tool schema for reading a draft.
func SessionGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_get",
		Description: "Returns the user's live drafting session for the given flow, including current tag selections and allowed finishing actions.",
	}
}

// SessionGetHandler executes a session read request.
func SessionGetHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[SessionGetInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionGetInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection("session get", locale, err)
		}
		session, err := sessions.Get(ctx, key)
		if err != nil {
			return nil, SessionView{}, rejection("session get", locale, err)
		}
		return nil, sessionView(session), nil
	}
}

// SessionCancelInput represents the MCP tool input for discarding a draft.
type SessionCancelInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string `json:"purpose" jsonschema:"session flow the draft was opened for"`
}

// SessionCancelResult represents the MCP tool output for discarding a draft.
type SessionCancelResult struct {
	Cancelled bool `json:"cancelled" jsonschema:"always true; cancelling an absent draft is a no-op"`
}

// SessionCancelTool defines the MCP tool schema for discarding a draft.
func SessionCancelTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_cancel",
		Description: "Discards the user's drafting session for the given flow. Cancelling a draft that no longer exists succeeds silently.",
	}
}

// SessionCancelHandler executes a session cancel request.
func SessionCancelHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[SessionCancelInput, SessionCancelResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionCancelInput) (*mcp.CallToolResult, SessionCancelResult, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionCancelResult{}, rejection("session cancel", locale, err)
		}
		if err := sessions.Cancel(ctx, key); err != nil {
			return nil, SessionCancelResult{}, rejection("session cancel", locale, err)
		}
		return nil, SessionCancelResult{Cancelled: true}, nil
	}
}
