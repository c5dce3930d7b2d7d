package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"printlapse/internal/session"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List timelapse sessions on the storage root",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := sessionRows(ctx)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Session", "Phase", "Frames", "Video"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

// sessionRows asks the daemon when it is running and falls back to scanning
// the storage root directly, so the command works either way.
func sessionRows(ctx *commandContext) ([][]string, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		resp, err := client.Sessions()
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		rows := make([][]string, 0, len(resp.Sessions))
		for _, sess := range resp.Sessions {
			rows = append(rows, sessionRow(sess.ID, sess.Phase, sess.FrameCount, sess.VideoBytes))
		}
		return rows, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	infos, err := session.Scan(cfg.Paths.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("scan storage root: %w", err)
	}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, sessionRow(info.ID, string(info.Phase), info.FrameCount, info.VideoSize))
	}
	return rows, nil
}

func sessionRow(id, phase string, frames int, videoBytes int64) []string {
	video := "-"
	if videoBytes > 0 {
		video = formatBytes(videoBytes)
	}
	return []string{id, phase, fmt.Sprintf("%d", frames), video}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
