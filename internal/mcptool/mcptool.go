// Package mcptool implements the `netstrain mcp` subcommand, an MCP
// (Model Context Protocol) server over stdio transport. Agents can
// spawn the process and run measurements as a tool call.
package mcptool

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/saveenergy/netstrain/internal/config"
	"github.com/saveenergy/netstrain/internal/report"
	"github.com/saveenergy/netstrain/internal/run"
	"github.com/saveenergy/netstrain/pkg/types"
)

type runFunc func(ctx context.Context, settings types.Settings, reporter report.Reporter) ([]types.PhaseReport, error)

type toolServer struct {
	base types.Settings
	run  runFunc
}

// Serve runs the MCP stdio server. It blocks until stdin closes or a
// signal arrives.
func Serve(base types.Settings, version string) error {
	ts := newToolServer(base)

	s := server.NewMCPServer(
		"netstrain",
		version,
		server.WithToolCapabilities(true),
	)
	s.AddTool(measurementTool(), ts.handleRunMeasurement)

	return server.ServeStdio(s)
}

func newToolServer(base types.Settings) *toolServer {
	return &toolServer{
		base: base,
		run: func(ctx context.Context, settings types.Settings, reporter report.Reporter) ([]types.PhaseReport, error) {
			return run.New(settings, reporter, nil).Run(ctx)
		},
	}
}

func measurementTool() mcp.Tool {
	return mcp.NewTool("run_measurement",
		mcp.WithDescription("Measure network latency under load: continuous ping sampling while parallel netperf TCP sessions saturate the link, over idle/download/upload phases. Returns a plain-text report per phase. Takes roughly phases x duration seconds."),
		mcp.WithString("hosts",
			mcp.Description("Comma-separated netperf hosts (default: "+config.DefaultHost+")"),
		),
		mcp.WithString("ping_host",
			mcp.Description("Latency probe target host (default: "+config.DefaultPingHost+")"),
		),
		mcp.WithNumber("duration",
			mcp.Description("Seconds per phase, 1-900 (default: 60)"),
		),
		mcp.WithNumber("sessions",
			mcp.Description("Parallel transfer sessions per host, 1-64 (default: 5)"),
		),
		mcp.WithString("phases",
			mcp.Description("Comma-separated subset of idle,download,upload (default: all three)"),
		),
	)
}

func (t *toolServer) handleRunMeasurement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings := t.base

	if hosts := strings.TrimSpace(req.GetString("hosts", "")); hosts != "" {
		settings.Hosts = config.SplitList(hosts)
	}
	if ping := strings.TrimSpace(req.GetString("ping_host", "")); ping != "" {
		settings.PingHost = ping
	}

	duration := req.GetInt("duration", int(t.base.Duration/time.Second))
	if duration < 1 {
		duration = 1
	}
	if duration > 900 {
		duration = 900
	}
	settings.Duration = time.Duration(duration) * time.Second

	sessions := req.GetInt("sessions", t.base.Sessions)
	if sessions < 1 {
		sessions = 1
	}
	if sessions > 64 {
		sessions = 64
	}
	settings.Sessions = sessions

	if raw := strings.TrimSpace(req.GetString("phases", "")); raw != "" {
		phases, err := config.ParsePhases(config.SplitList(raw))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Bad phases argument: %v", err)), nil
		}
		settings.Phases = phases
	}

	if err := config.Validate(settings); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Bad measurement arguments: %v", err)), nil
	}

	// Phase count times duration, plus slack for subprocess startup
	// and teardown.
	budget := time.Duration(len(settings.Phases))*settings.Duration + 30*time.Second
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var buf bytes.Buffer
	reporter, err := report.New(report.FormatPlain, &buf)
	if err != nil {
		return nil, err
	}

	if _, err := t.run(runCtx, settings, reporter); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Measurement failed: %v", err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}
