package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/pulse/internal/dashboard"
	"github.com/kalambet/pulse/internal/scheduler"
)

var viewDescriptions = map[dashboard.View]string{
	dashboard.ViewUrgent:   "Show the tenant's oldest open urgent task.",
	dashboard.ViewBrief:    "List up to five open tasks, urgent first.",
	dashboard.ViewVault:    "Show the five most recent captured ideas.",
	dashboard.ViewPeople:   "List the tenant's stakeholders by strategic weight.",
	dashboard.ViewMainGoal: "Show the tenant's current main goal.",
}

// NewMCPServer creates an MCP server exposing note capture, the dashboard
// views and a manual pulse.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"pulse",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("pulse: capture notes for a tenant, read their dashboard and trigger a briefing."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("capture_note",
			mcp.WithDescription("Store a free-form note; it is reconciled into tasks on the tenant's next pulse."),
			mcp.WithString("tenant_id", mcp.Description("Tenant identifier"), mcp.Required()),
			mcp.WithString("content", mcp.Description("The note text"), mcp.Required()),
		),
		mcpCaptureNote(deps),
	)

	for _, v := range dashboard.Views {
		s.AddTool(
			mcp.NewTool(string(v),
				mcp.WithDescription(viewDescriptions[v]),
				mcp.WithString("tenant_id", mcp.Description("Tenant identifier"), mcp.Required()),
			),
			mcpView(deps, v),
		)
	}

	s.AddTool(
		mcp.NewTool("run_pulse",
			mcp.WithDescription("Run one briefing cycle for the tenant now, ignoring the delivery hours."),
			mcp.WithString("tenant_id", mcp.Description("Tenant identifier"), mcp.Required()),
		),
		mcpRunPulse(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"pulse://tenants",
			"Tenants",
			mcp.WithResourceDescription("Ids of onboarded tenants"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTenants(deps),
	)

	return s
}

func mcpCaptureNote(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantID, err := req.RequireString("tenant_id")
		if err != nil || tenantID == "" {
			return mcpError("tenant_id is required"), nil
		}
		raw, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		content, err := validNote(raw)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		d, err := captureNote(ctx, deps.Store, tenantID, content)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Captured note %s", d.ID)), nil
	}
}

func mcpView(deps Deps, v dashboard.View) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantID, err := req.RequireString("tenant_id")
		if err != nil || tenantID == "" {
			return mcpError("tenant_id is required"), nil
		}
		text, err := deps.Dashboard.Render(ctx, tenantID, v)
		if err != nil {
			return mcpError(fmt.Sprintf("%s failed: %v", v, err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpRunPulse(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantID, err := req.RequireString("tenant_id")
		if err != nil || tenantID == "" {
			return mcpError("tenant_id is required"), nil
		}
		o, err := deps.Runner.RunTenant(ctx, tenantID, true)
		if errors.Is(err, scheduler.ErrRunInProgress) {
			return mcpError("a pulse run is in progress, try again shortly"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("pulse failed: %v", err)), nil
		}

		b, err := json.Marshal(toOutcomeJSON(o))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal outcome: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceTenants(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := deps.Store.ListTenantIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tenants: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		b, err := json.Marshal(ids)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tenants: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
