package domain

import (
	"context"
	"encoding/json"
	"fmt"

	rollsvc "github.com/louisbranch/mist-engine/internal/roll/service"
	"github.com/louisbranch/mist-engine/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RollPayload represents the MCP resource payload for a single roll.
type RollPayload struct {
	Roll RollView `json:"roll"`
}

// RollListPayload represents the MCP resource payload for roll listings.
type RollListPayload struct {
	Rolls         []RollView `json:"rolls"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

// rollListResourcePageSize caps how many rolls a listing resource returns.
const rollListResourcePageSize = 10

// RollResourceTemplate defines the MCP resource template for single rolls.
func RollResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "roll",
		Title:       "Roll",
		Description: "Readable view of one persisted roll. URI format: roll://{guild_id}/{roll_id}",
		MIMEType:    "application/json",
		URITemplate: "roll://{guild_id}/{roll_id}",
	}
}

// RollResourceHandler returns a readable single roll resource.
func RollResourceHandler(workflow *rollsvc.Workflow) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if workflow == nil {
			return nil, fmt.Errorf("roll workflow is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("roll reference is required; use URI format roll://{guild_id}/{roll_id}")
		}
		uri := req.Params.URI

		guildID, rollID, err := parseRollURI(uri)
		if err != nil {
			return nil, fmt.Errorf("parse roll reference from URI: %w", err)
		}

		roll, err := workflow.Get(ctx, guildID, rollID)
		if err != nil {
			return nil, fmt.Errorf("roll read failed: %w", err)
		}

		data, err := json.MarshalIndent(RollPayload{Roll: rollView(roll)}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal roll: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// RollListResourceTemplate defines the MCP resource template for roll listings.
func RollListResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "roll_list",
		Title:       "Rolls",
		Description: "Readable listing of a guild's most recent rolls. URI format: roll://{guild_id}/rolls",
		MIMEType:    "application/json",
		URITemplate: "roll://{guild_id}/rolls",
	}
}

// RollListResourceHandler returns a readable roll listing resource. The
// resource returns one fixed-size page of the newest rolls; clients that
// need paging or filtering use the roll_list tool instead.
func RollListResourceHandler(workflow *rollsvc.Workflow) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if workflow == nil {
			return nil, fmt.Errorf("roll workflow is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("guild ID is required; use URI format roll://{guild_id}/rolls")
		}
		uri := req.Params.URI

		guildID, err := parseGuildIDFromRollsURI(uri)
		if err != nil {
			return nil, fmt.Errorf("parse guild ID from URI: %w", err)
		}

		rolls, next, err := workflow.List(ctx, storage.ListRollsRequest{
			GuildID:  guildID,
			PageSize: rollListResourcePageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("roll list failed: %w", err)
		}

		payload := RollListPayload{NextPageToken: next}
		for _, roll := range rolls {
			payload.Rolls = append(payload.Rolls, rollView(roll))
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal roll list: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}
