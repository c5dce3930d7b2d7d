package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"printlapse/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, printer, and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return fmt.Errorf("fetch status: %w", err)
				}
				renderStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func renderStatus(out io.Writer, status *ipc.StatusResponse) {
	colorize := shouldColorize(out)
	var lines []string

	lines = append(lines, renderSectionHeader("Daemon", colorize))
	if status.Running {
		lines = append(lines, renderStatusLine("State", statusOK,
			fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("State", statusWarn, "stopped", colorize))
	}
	lines = append(lines, renderStatusLine("Storage root", statusInfo, status.StorageRoot, colorize))

	lines = append(lines, "", renderSectionHeader("Printer", colorize))
	printerKind := statusOK
	switch status.PrinterState {
	case "unreachable", "error":
		printerKind = statusError
	case "idle", "":
		printerKind = statusInfo
	}
	printerMsg := status.PrinterState
	if status.PrinterState == "printing" {
		printerMsg = fmt.Sprintf("printing %.1f%%", status.PrinterProgress)
		if status.JobName != "" {
			printerMsg += " " + status.JobName
		}
	}
	lines = append(lines, renderStatusLine("State", printerKind, printerMsg, colorize))

	lines = append(lines, "", renderSectionHeader("Session", colorize))
	if status.SessionID == "" {
		lines = append(lines, renderStatusLine("Active", statusInfo, "none", colorize))
	} else {
		mode := "automatic"
		if status.SessionManual {
			mode = "manual"
		}
		lines = append(lines, renderStatusLine("Active", statusOK,
			fmt.Sprintf("%s (%s)", status.SessionID, mode), colorize))
		lines = append(lines, renderStatusLine("Frames", statusInfo,
			fmt.Sprintf("%d", status.Frames), colorize))
		cadence := fmt.Sprintf("every %.0fs", status.IntervalSeconds)
		switch {
		case status.Burst:
			cadence += " (post-print burst)"
		case status.Finishing:
			cadence += " (finishing)"
		}
		lines = append(lines, renderStatusLine("Cadence", statusInfo, cadence, colorize))
	}
	lines = append(lines, renderStatusLine("Awaiting encode", statusInfo,
		fmt.Sprintf("%d", status.PendingCount), colorize))

	lines = append(lines, "", renderSectionHeader("Storage", colorize))
	if status.StorageHealthy {
		lines = append(lines, renderStatusLine("Health", statusOK,
			fmt.Sprintf("%d MB free", status.StorageFreeMB), colorize))
	} else {
		lines = append(lines, renderStatusLine("Health", statusError, status.StorageError, colorize))
	}

	lines = append(lines, "", renderSectionHeader("Dependencies", colorize))
	for _, dep := range status.Dependencies {
		kind := statusOK
		msg := dep.Command
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			msg = dep.Detail
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, msg, colorize))
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
