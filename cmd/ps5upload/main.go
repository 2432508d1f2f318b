// Command ps5upload is a thin CLI front end over the engine package:
// it flag-binds onto engine.Config the way rclone's cmd/ tree
// flag-binds onto backend configs, and reports progress/log lines to
// stderr while the upload runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ps5upload/engine"
	"github.com/ps5upload/engine/internal/cancel"
	"github.com/ps5upload/engine/internal/source"
	"github.com/ps5upload/engine/internal/worker"
)

var cfg engine.Config

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ps5upload:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ps5upload <source> <dest>",
		Short: "Upload a directory, file, or archive to a PS5 host-side upload service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.SourcePath = args[0]
			cfg.DestPath = args[1]
			return runUpload(cmd.Context())
		},
	}

	flags := cmd.Flags()
	bindFlags(flags)
	return cmd
}

// bindFlags mirrors spec.md §6's "Configuration consumed" list,
// one pflag per field.
func bindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfg.RemoteAddr, "addr", "", "remote host:port of the upload service (required)")
	flags.IntVar(&cfg.Connections, "connections", 4, "number of TCP connections, 1-10")
	flags.StringVar(&cfg.ResumeMode, "resume", "off", "resume mode: off|size|size_mtime|sha256")
	flags.StringVar(&cfg.Compression, "compression", "auto", "compression: none|lz4|zstd|lzma|auto")
	flags.Float64Var(&cfg.BandwidthMbps, "bwlimit", 0, "aggregate bandwidth limit in Mbps, 0 = unlimited")
	flags.BoolVar(&cfg.AutoTune, "auto-tune", false, "sample the source and auto-select a connection count (directory/file uploads with --resume other than off only)")
	flags.BoolVar(&cfg.OptimiseUpload, "optimise", false, "auto-select both connection count and compression from a source sample, overriding --auto-tune and --compression (directory/file uploads with --resume other than off only)")
	flags.BoolVar(&cfg.UseTempStaging, "use-temp", false, "stage to a temp path and move into place (single connection only)")
	flags.StringVar(&cfg.RarExtraction, "rar-extraction", "", "safe|normal|turbo: upload a RAR source's raw bytes for the remote to extract, instead of decoding it locally")
	flags.StringVar(&cfg.PayloadVersion, "payload-version", "", "remote payload-version string (capability gate)")
}

func runUpload(ctx context.Context) error {
	if cfg.RemoteAddr == "" {
		return fmt.Errorf("--addr is required")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	c := &cancel.Flag{}
	cfg.Cancel = c
	go func() {
		<-ctx.Done()
		c.Cancel()
	}()

	cfg.OnScanProgress = func(p source.ScanProgress) {
		fmt.Fprintf(os.Stderr, "\rscanning: %d files, %d bytes", p.FilesFound, p.BytesSoFar)
	}
	cfg.OnUploadProgress = func(p worker.Progress) {
		fmt.Fprintf(os.Stderr, "\rsent: %d files, %d bytes", p.FilesSent, p.BytesSent)
	}

	result, err := engine.Upload(ctx, cfg)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	fmt.Printf("done: %d files, %d bytes\n", result.FilesSent, result.BytesSent)
	return nil
}
