package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"printlapse/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent encode outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return fmt.Errorf("fetch history: %w", err)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No encodes recorded yet.")
					return nil
				}

				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					result := "ok"
					size := formatBytes(entry.VideoBytes)
					if entry.Error != "" {
						result = "failed"
						size = "-"
					}
					when := entry.CreatedAt
					if ts, err := time.Parse(time.RFC3339, entry.CreatedAt); err == nil {
						when = ts.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{
						entry.Title,
						entry.SessionID,
						result,
						fmt.Sprintf("%d", entry.Frames),
						size,
						when,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Title", "Session", "Result", "Frames", "Size", "When"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}
