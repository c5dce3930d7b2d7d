package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"printlapse/internal/encoding"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "Encode sessions awaiting video now",
		Long: "Runs one encoding scan immediately. Uses the running daemon when " +
			"available, otherwise encodes directly in this process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if client, err := ctx.dialClient(); err == nil {
				defer client.Close()
				resp, err := client.Encode()
				if err != nil {
					return fmt.Errorf("encode: %w", err)
				}
				fmt.Fprintf(out, "Encoded %d session(s)\n", resp.Encoded)
				return nil
			}

			// No daemon: run a one-shot scan locally. The session locks make
			// this safe even if a daemon starts mid-encode.
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			encoder := encoding.NewEncoder(encoding.EncoderConfig{
				Binary:    cfg.FFmpegBinary(),
				FrameRate: cfg.Video.FrameRate,
				Rotation:  cfg.Video.Rotation,
				CRF:       cfg.Video.CRF,
				Preset:    cfg.Video.Preset,
				Timeout:   time.Duration(cfg.Video.EncodeTimeout) * time.Second,
				Niceness:  cfg.Video.Niceness,
			}, nil)
			worker := encoding.NewWorker(nil, cfg.Paths.StorageRoot, encoder, nil,
				time.Duration(cfg.Video.ScanInterval)*time.Second)
			encoded, err := worker.ScanOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			fmt.Fprintf(out, "Encoded %d session(s)\n", encoded)
			return nil
		},
	}
}
