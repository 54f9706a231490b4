// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpConnect bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pad to MCP clients over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the pad and
the action engine as tools: device status and control, action execution,
history and profile selection.

Logs go to stderr so they never mix with the protocol stream.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	addDaemonFlags(mcpCmd)
	mcpCmd.Flags().BoolVar(&mcpConnect, "auto-connect", true, "Keep the pad connected and run bound actions")
}

// jsonResult marshals v as the text of a tool result
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// newMCPServer registers the pad tools against d
func newMCPServer(d *daemon) *server.MCPServer {
	s := server.NewMCPServer("soomctl", rootCmd.Version)

	statusTool := mcp.NewTool("device_status",
		mcp.WithDescription("Get the macro pad connection state, bound profile and whether an action is running"),
	)
	s.AddTool(statusTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, _ := d.binder.ProfileName()
		return jsonResult(map[string]interface{}{
			"device":    d.manager.Status(),
			"profile":   name,
			"executing": d.engine.IsExecuting(),
		})
	})

	listDevicesTool := mcp.NewTool("list_devices",
		mcp.WithDescription("List attached macro pads"),
	)
	s.AddTool(listDevicesTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infos, err := d.manager.Enumerate()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error listing devices: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{"devices": infos, "count": len(infos)})
	})

	connectTool := mcp.NewTool("connect_device",
		mcp.WithDescription("Connect and initialize the pad and start reading its input"),
	)
	s.AddTool(connectTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info, err := BringUp(ctx, d.manager)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to connect: %v", err)), nil
		}
		return jsonResult(info)
	})

	disconnectTool := mcp.NewTool("disconnect_device",
		mcp.WithDescription("Blank the pad and release it"),
	)
	s.AddTool(disconnectTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := d.manager.Disconnect(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to disconnect: %v", err)), nil
		}
		return mcp.NewToolResultText("Disconnected"), nil
	})

	brightnessTool := mcp.NewTool("set_brightness",
		mcp.WithDescription("Set the LCD brightness"),
		mcp.WithNumber("level",
			mcp.Required(),
			mcp.Description("Brightness 0-100"),
		),
	)
	s.AddTool(brightnessTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		level, err := request.RequireFloat("level")
		if err != nil {
			return mcp.NewToolResultError("level is required and must be a number"), nil
		}
		if err := d.manager.SetBrightness(ctx, int(level)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to set brightness: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Brightness set to %d", int(level))), nil
	})

	clearTool := mcp.NewTool("clear_buttons",
		mcp.WithDescription("Blank one LCD button, or all of them when no index is given"),
		mcp.WithNumber("index",
			mcp.Description("LCD button 0-5"),
		),
	)
	s.AddTool(clearTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var index *int
		if args, ok := request.GetRawArguments().(map[string]interface{}); ok {
			if v, ok := args["index"].(float64); ok {
				i := int(v)
				index = &i
			}
		}
		if err := d.manager.ClearButton(ctx, index); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to clear: %v", err)), nil
		}
		return mcp.NewToolResultText("Cleared"), nil
	})

	executeTool := mcp.NewTool("execute_action",
		mcp.WithDescription("Run an action, e.g. {\"type\":\"keyboard\",\"keys\":\"ctrl+c\"} or {\"type\":\"homeAssistant\",\"operation\":\"toggle\",\"entityId\":\"light.desk\"}"),
		mcp.WithObject("action",
			mcp.Required(),
			mcp.Description("Action envelope with a type field and the action's settings"),
		),
	)
	s.AddTool(executeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.GetRawArguments().(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("action is required"), nil
		}
		raw, err := json.Marshal(args["action"])
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to encode action: %v", err)), nil
		}
		a, err := actions.UnmarshalAction(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid action: %v", err)), nil
		}
		return jsonResult(d.engine.Execute(ctx, a))
	})

	cancelTool := mcp.NewTool("cancel_action",
		mcp.WithDescription("Cancel the running action"),
	)
	s.AddTool(cancelTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		was := d.engine.IsExecuting()
		d.engine.Cancel()
		return jsonResult(map[string]bool{"cancelled": was})
	})

	historyTool := mcp.NewTool("action_history",
		mcp.WithDescription("List recent action executions, oldest first"),
		mcp.WithBoolean("clear",
			mcp.Description("Clear the history after reading it"),
		),
	)
	s.AddTool(historyTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		history := d.engine.History()
		if request.GetBool("clear", false) {
			d.engine.ClearHistory()
		}
		return jsonResult(history)
	})

	profilesTool := mcp.NewTool("list_profiles",
		mcp.WithDescription("List stored profiles"),
	)
	s.AddTool(profilesTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profiles, err := d.store.List()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error listing profiles: %v", err)), nil
		}
		active, _ := d.binder.ProfileName()
		summaries := make([]profileSummary, 0, len(profiles))
		for _, item := range profileItems(profiles, active) {
			summaries = append(summaries, profileSummary{ID: item.id, Name: item.name, Controls: item.controls, Active: item.active})
		}
		return jsonResult(map[string]interface{}{"profiles": summaries})
	})

	bindTool := mcp.NewTool("bind_profile",
		mcp.WithDescription("Make a profile the active one"),
		mcp.WithString("profile",
			mcp.Required(),
			mcp.Description("Profile id or name"),
		),
	)
	s.AddTool(bindTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("profile")
		if err != nil {
			return mcp.NewToolResultError("profile is required and must be a string"), nil
		}
		if err := d.SwitchProfile(name); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to bind %s: %v", name, err)), nil
		}
		return mcp.NewToolResultText("Bound profile " + name), nil
	})

	unbindTool := mcp.NewTool("unbind_profile",
		mcp.WithDescription("Stop running actions for pad input by clearing the active profile"),
	)
	s.AddTool(unbindTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d.Unbind()
		return mcp.NewToolResultText("Profile unbound"), nil
	})

	return s
}

// profileSummary is a profile as listed to tools
type profileSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Controls int    `json:"controls"`
	Active   bool   `json:"active"`
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, daemonConfig)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.bindStartup(profileName); err != nil {
		return err
	}
	if mcpConnect {
		go d.conn.run(ctx)
	}

	return server.ServeStdio(newMCPServer(d))
}
