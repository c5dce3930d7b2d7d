package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"printlapse/internal/fileutil"
	"printlapse/internal/session"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start [name]",
		Short: "Start a manual timelapse session",
		Long: "Writes the control file the daemon watches. The daemon opens a " +
			"manual session named after the argument on its next cycle.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = session.SanitizeName(args[0])
				if name == "" {
					return fmt.Errorf("session name %q has no usable characters", args[0])
				}
			}
			if err := fileutil.WriteFileAtomic(cfg.Paths.ControlFile, []byte(name+"\n"), 0o644); err != nil {
				return fmt.Errorf("write control file: %w", err)
			}

			out := cmd.OutOrStdout()
			if name != "" {
				fmt.Fprintf(out, "Manual session %q requested\n", name)
			} else {
				fmt.Fprintln(out, "Manual session requested")
			}
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the manual timelapse session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := os.Remove(cfg.Paths.ControlFile); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Fprintln(cmd.OutOrStdout(), "No manual session is active.")
					return nil
				}
				return fmt.Errorf("remove control file: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Manual session stopped; video will be encoded shortly.")
			return nil
		},
	}
}
