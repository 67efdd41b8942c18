package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/doctadg/perpstrader-sub004/internal/heatmap"
	"github.com/doctadg/perpstrader-sub004/internal/storage"
)

// NewMCPServer registers the heatmap tools and resources consumed by
// downstream trading and prediction agents over stdio.
func NewMCPServer(deps Deps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := server.NewMCPServer(
		"newsheat",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("newsheat serves ranked news clusters with heat, velocity, trend and sentiment signals for market monitoring."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_news_heatmap",
			mcp.WithDescription("Return ranked news clusters with heat scores, velocity, trend, urgency and sentiment for a recent time window."),
			mcp.WithNumber("hours", mcp.Description("Lookback window in hours (1-168, default 24)")),
			mcp.WithNumber("limit", mcp.Description("Maximum clusters to return (1-300, default 60)")),
			mcp.WithString("category", mcp.Description("Restrict to one category, e.g. CRYPTO or MACRO")),
			mcp.WithBoolean("force", mcp.Description("Bypass the cache and rebuild")),
		),
		mcpGetHeatmap(deps),
	)

	s.AddTool(
		mcp.NewTool("get_cluster_details",
			mcp.WithDescription("Return one cluster from the current heatmap by id, including its member articles."),
			mcp.WithString("cluster_id", mcp.Description("Cluster id from a previous get_news_heatmap call"), mcp.Required()),
			mcp.WithNumber("hours", mcp.Description("Lookback window in hours (default 24)")),
		),
		mcpGetClusterDetails(deps),
	)

	s.AddTool(
		mcp.NewTool("get_heat_timeline",
			mcp.WithDescription("Return bucketed mean heat over time, for charting momentum."),
			mcp.WithNumber("hours", mcp.Description("Lookback window in hours (1-168, default 24)")),
			mcp.WithNumber("bucket_hours", mcp.Description("Bucket width in hours (1-24, default 2)")),
			mcp.WithString("category", mcp.Description("Restrict to one category")),
		),
		mcpGetTimeline(deps),
	)

	s.AddTool(
		mcp.NewTool("rebuild_heatmap",
			mcp.WithDescription("Force a fresh heatmap build, refreshing cluster state and velocity history."),
			mcp.WithNumber("hours", mcp.Description("Lookback window in hours (default 24)")),
			mcp.WithString("category", mcp.Description("Restrict to one category")),
		),
		mcpRebuildHeatmap(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"news://heatmap/latest",
			"Latest News Heatmap",
			mcp.WithResourceDescription("Current default-window heatmap as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHeatmap(deps),
	)

	return s
}

func mcpGetHeatmap(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := heatmap.Options{
			Hours:    req.GetInt("hours", 0),
			Limit:    req.GetInt("limit", 0),
			Category: req.GetString("category", ""),
			Force:    req.GetBool("force", false),
		}

		res, err := deps.Heatmap.GetHeatmap(ctx, opts)
		if err != nil {
			return mcpError(fmt.Sprintf("building heatmap: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpGetClusterDetails(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("cluster_id")
		if err != nil {
			return mcpError("cluster_id is required"), nil
		}
		hours := req.GetInt("hours", 0)

		cluster, err := deps.Heatmap.GetClusterDetails(ctx, id, hours)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("no cluster %q in the current heatmap", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("loading cluster: %v", err)), nil
		}
		return mcpJSON(cluster)
	}
}

func mcpGetTimeline(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		hours := req.GetInt("hours", 0)
		bucketHours := req.GetInt("bucket_hours", 0)
		category := req.GetString("category", "")

		tl, err := deps.Heatmap.GetTimeline(ctx, hours, bucketHours, category)
		if err != nil {
			return mcpError(fmt.Sprintf("building timeline: %v", err)), nil
		}
		return mcpJSON(tl)
	}
}

func mcpRebuildHeatmap(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := heatmap.Options{
			Hours:    req.GetInt("hours", 0),
			Category: req.GetString("category", ""),
		}

		res, err := deps.Heatmap.Rebuild(ctx, opts)
		if err != nil {
			return mcpError(fmt.Sprintf("rebuilding heatmap: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Rebuilt: %d clusters from %d articles at %s",
			res.TotalClusters, res.TotalArticles, res.GeneratedAt.Format(time.RFC3339))), nil
	}
}

func mcpResourceHeatmap(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		res, err := deps.Heatmap.GetHeatmap(ctx, heatmap.Options{})
		if err != nil {
			return nil, fmt.Errorf("building heatmap: %w", err)
		}

		b, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("marshaling heatmap: %w", err)
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

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("marshaling result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
