package domain

import (
	"context"

	sessiondomain "github.com/louisbranch/mist-engine/internal/session/domain"
	sessionsvc "github.com/louisbranch/mist-engine/internal/session/service"
	"github.com/louisbranch/mist-engine/internal/tags"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TagOptionView represents one selectable tag reference.
type TagOptionView struct {
	Entity   EntityRef `json:"entity" jsonschema:"the tag reference to select"`
	Name     string    `json:"name" jsonschema:"display name"`
	Kind     string    `json:"kind" jsonschema:"tag kind (tag, status, weakness)"`
	Burnable bool      `json:"burnable,omitempty" jsonschema:"whether the tag may be burned for +3"`
	Burned   bool      `json:"burned,omitempty" jsonschema:"whether the tag is already spent"`
}

// TagOptionsInput represents the MCP tool input for listing tag options.
type TagOptionsInput struct {
	UserID      string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose     string `json:"purpose" jsonschema:"session flow the draft was opened for"`
	CharacterID string `json:"character_id,omitempty" jsonschema:"teammate character to list instead of the draft's own sources"`
}

// TagOptionsResult represents the MCP tool output for listing tag options.
type TagOptionsResult struct {
	Options []TagOptionView `json:"options" jsonschema:"selectable tag references"`
}

// TagOptionsTool defines the MCP tool schema for listing tag options.
func TagOptionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "tag_options",
		Description: "Lists every tag reference the draft may select: the acting character's sheet, the bound scene, and the guild fellowship. Passing a teammate's character_id lists that sheet only, for help from another character.",
	}
}

// TagOptionsHandler executes a tag option listing request.
func TagOptionsHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[TagOptionsInput, TagOptionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TagOptionsInput) (*mcp.CallToolResult, TagOptionsResult, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, TagOptionsResult{}, rejection("tag options", locale, err)
		}
		options, err := sessions.ListTagOptions(ctx, sessionsvc.TagOptionsRequest{
			Key:         key,
			CharacterID: input.CharacterID,
		})
		if err != nil {
			return nil, TagOptionsResult{}, rejection("tag options", locale, err)
		}

		result := TagOptionsResult{Options: make([]TagOptionView, 0, len(options))}
		for _, option := range options {
			result.Options = append(result.Options, TagOptionView{
				Entity:   entityRef(option.Entity),
				Name:     option.Name,
				Kind:     option.Kind.String(),
				Burnable: option.Burnable,
				Burned:   option.Burned,
			})
		}
		return nil, result, nil
	}
}

// PageSelectionInput represents the MCP tool input for replacing one
// picker page's selection.
type PageSelectionInput struct {
	UserID   string      `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose  string      `json:"purpose" jsonschema:"session flow the draft was opened for"`
	Page     int         `json:"page" jsonschema:"picker page number being replaced"`
	Visible  []KeyRef    `json:"visible" jsonschema:"identity keys of every option shown on the page"`
	Selected []EntityRef `json:"selected" jsonschema:"references selected on the page; visible keys absent from this list are deselected"`
}

// HelpPageSetTool defines the MCP tool schema for replacing a help page.
func HelpPageSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "help_page_set",
		Description: "Replaces the helping tags that were visible on one picker page with a new selection. Selections made on other pages are preserved.",
	}
}

// HelpPageSetHandler executes a help page replacement request.
func HelpPageSetHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[PageSelectionInput, SessionView] {
	return pageSetHandler(sessions.SetHelpPage, "help page set", locale)
}

// HinderPageSetTool defines the MCP tool schema for replacing a hinder page.
func HinderPageSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "hinder_page_set",
		Description: "Replaces the hindering tags that were visible on one picker page with a new selection. Selections made on other pages are preserved.",
	}
}

// HinderPageSetHandler executes a hinder page replacement request.
func HinderPageSetHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[PageSelectionInput, SessionView] {
	return pageSetHandler(sessions.SetHinderPage, "hinder page set", locale)
}

func pageSetHandler(apply func(context.Context, sessionsvc.PageSelection) (sessiondomain.Session, error), action, locale string) mcp.ToolHandlerFor[PageSelectionInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PageSelectionInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection(action, locale, err)
		}

		visible := make([]tags.Key, 0, len(input.Visible))
		for _, ref := range input.Visible {
			parsed, err := parseKey(ref)
			if err != nil {
				return nil, SessionView{}, rejection(action, locale, err)
			}
			visible = append(visible, parsed)
		}
		selected := make([]tags.Entity, 0, len(input.Selected))
		for _, ref := range input.Selected {
			entity, err := parseEntity(ref)
			if err != nil {
				return nil, SessionView{}, rejection(action, locale, err)
			}
			selected = append(selected, entity)
		}

		session, err := apply(ctx, sessionsvc.PageSelection{
			Key:      key,
			Page:     input.Page,
			Visible:  visible,
			Selected: selected,
		})
		if err != nil {
			return nil, SessionView{}, rejection(action, locale, err)
		}
		return nil, sessionView(session), nil
	}
}

// TagToggleInput represents the MCP tool input for toggling one tag.
type TagToggleInput struct {
	UserID  string    `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string    `json:"purpose" jsonschema:"session flow the draft was opened for"`
	Entity  EntityRef `json:"entity" jsonschema:"the tag reference to toggle"`
}

// HelpToggleTool defines the MCP tool schema for toggling a help tag.
func HelpToggleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "help_toggle",
		Description: "Adds the tag reference to the draft's helping set, or removes it when already selected. Removing the burned tag also clears the burn mark.",
	}
}

// HelpToggleHandler executes a help toggle request.
func HelpToggleHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[TagToggleInput, SessionView] {
	return tagToggleHandler(sessions.ToggleHelp, "help toggle", locale)
}

// HinderToggleTool defines the MCP tool schema for toggling a hinder tag.
func HinderToggleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "hinder_toggle",
		Description: "Adds the tag reference to the draft's hindering set, or removes it when already selected.",
	}
}

// HinderToggleHandler executes a hinder toggle request.
func HinderToggleHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[TagToggleInput, SessionView] {
	return tagToggleHandler(sessions.ToggleHinder, "hinder toggle", locale)
}

func tagToggleHandler(apply func(context.Context, sessiondomain.Key, tags.Entity) (sessiondomain.Session, error), action, locale string) mcp.ToolHandlerFor[TagToggleInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TagToggleInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection(action, locale, err)
		}
		entity, err := parseEntity(input.Entity)
		if err != nil {
			return nil, SessionView{}, rejection(action, locale, err)
		}
		session, err := apply(ctx, key, entity)
		if err != nil {
			return nil, SessionView{}, rejection(action, locale, err)
		}
		return nil, sessionView(session), nil
	}
}

// BurnSetInput represents the MCP tool input for marking a burn.
type BurnSetInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string `json:"purpose" jsonschema:"session flow the draft was opened for"`
	Tag     KeyRef `json:"tag" jsonschema:"identity key of the selected help tag to burn"`
}

// BurnSetTool defines the MCP tool schema for marking a burn.
func BurnSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "burn_set",
		Description: "Marks a selected helping tag as burned for a +3 contribution instead of +1. Only character-owned plain tags burn; statuses and weaknesses are rejected. A previous burn mark is replaced.",
	}
}

// BurnSetHandler executes a burn mark request.
func BurnSetHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[BurnSetInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input BurnSetInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection("burn set", locale, err)
		}
		tagKey, err := parseKey(input.Tag)
		if err != nil {
			return nil, SessionView{}, rejection("burn set", locale, err)
		}
		session, err := sessions.Burn(ctx, key, tagKey)
		if err != nil {
			return nil, SessionView{}, rejection("burn set", locale, err)
		}
		return nil, sessionView(session), nil
	}
}

// BurnClearInput represents the MCP tool input for clearing the burn mark.
type BurnClearInput struct {
	UserID  string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose string `json:"purpose" jsonschema:"session flow the draft was opened for"`
}

// BurnClearTool defines the MCP tool schema for clearing the burn mark.
func BurnClearTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "burn_clear",
		Description: "Removes the draft's burn mark, returning the tag to its +1 contribution.",
	}
}

// BurnClearHandler executes a burn clear request.
func BurnClearHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[BurnClearInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input BurnClearInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection("burn clear", locale, err)
		}
		session, err := sessions.ClearBurn(ctx, key)
		if err != nil {
			return nil, SessionView{}, rejection("burn clear", locale, err)
		}
		return nil, sessionView(session), nil
	}
}

// HelpAttributeInput represents the MCP tool input for attributing help.
type HelpAttributeInput struct {
	UserID      string `json:"user_id" jsonschema:"identifier of the acting user"`
	Purpose     string `json:"purpose" jsonschema:"session flow the draft was opened for"`
	Tag         KeyRef `json:"tag" jsonschema:"identity key of the selected help tag"`
	CharacterID string `json:"character_id" jsonschema:"teammate character contributing the tag"`
}

// HelpAttributeTool defines the MCP tool schema for attributing help.
func HelpAttributeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "help_attribute",
		Description: "Records that a teammate's character contributes an already selected helping tag. The teammate must exist in the draft's guild.",
	}
}

// HelpAttributeHandler executes a help attribution request.
func HelpAttributeHandler(sessions *sessionsvc.Service, locale string) mcp.ToolHandlerFor[HelpAttributeInput, SessionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input HelpAttributeInput) (*mcp.CallToolResult, SessionView, error) {
		key, err := sessionKey(input.UserID, input.Purpose)
		if err != nil {
			return nil, SessionView{}, rejection("help attribute", locale, err)
		}
		tagKey, err := parseKey(input.Tag)
		if err != nil {
			return nil, SessionView{}, rejection("help attribute", locale, err)
		}
		session, err := sessions.SetHelpFromCharacter(ctx, key, tagKey, input.CharacterID)
		if err != nil {
			return nil, SessionView{}, rejection("help attribute", locale, err)
		}
		return nil, sessionView(session), nil
	}
}
