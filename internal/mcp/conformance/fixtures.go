//go:build conformance

package conformance

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Canned payloads served by the protocol-check fixtures.
const (
	plainTextResponse     = "This is a plain text response for protocol testing."
	errorContentResponse  = "This is an error content response for protocol testing."
	errorHandlingResponse = "This tool intentionally returns an error for protocol testing"
	staticResourceContent = "This is the content of the static text resource."
	staticResourceName    = "test_static_text"
	staticResourceURI     = "test://static-text"
)

// toolFixture is one canned tool: a fixed reply and whether that reply is
// surfaced as a tool error.
type toolFixture struct {
	name        string
	description string
	reply       string
	isError     bool
}

var toolFixtures = []toolFixture{
	{
		name:        "test_plain_text",
		description: "Conformance tool that returns a plain text response.",
		reply:       plainTextResponse,
	},
	{
		name:        "test_error_content",
		description: "Conformance tool that returns an error response.",
		reply:       errorContentResponse,
		isError:     true,
	},
	{
		name:        "test_error_handling",
		description: "Conformance tool that always returns a tool error.",
		reply:       errorHandlingResponse,
		isError:     true,
	},
}

// Register wires the protocol-check fixtures into the server: three canned
// tools, a prompt, and a static resource.
func Register(mcpServer *mcp.Server) {
	if mcpServer == nil {
		return
	}

	for _, fixture := range toolFixtures {
		tool := &mcp.Tool{Name: fixture.name, Description: fixture.description}
		mcp.AddTool(mcpServer, tool, cannedReply(fixture.reply, fixture.isError))
	}
	registerPlainPrompt(mcpServer)
	registerStaticResource(mcpServer)
}

// cannedReply answers every call with the same text payload.
func cannedReply(reply string, isError bool) mcp.ToolHandlerFor[struct{}, any] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			IsError: isError,
			Content: []mcp.Content{&mcp.TextContent{Text: reply}},
		}, nil, nil
	}
}

func registerPlainPrompt(mcpServer *mcp.Server) {
	prompt := &mcp.Prompt{
		Name:        "test_plain_prompt",
		Description: "Conformance prompt that returns a plain text message.",
	}
	mcpServer.AddPrompt(prompt, func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: "This is a plain prompt for protocol testing."},
			}},
		}, nil
	})
}

func registerStaticResource(mcpServer *mcp.Server) {
	resource := &mcp.Resource{
		Name:        staticResourceName,
		Description: "Conformance resource that returns fixed text content.",
		MIMEType:    "text/plain",
		URI:         staticResourceURI,
	}
	mcpServer.AddResource(resource, func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      staticResourceURI,
				MIMEType: "text/plain",
				Text:     staticResourceContent,
			}},
		}, nil
	})
}
