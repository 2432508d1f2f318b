// Package engine is the PS5Upload bulk file-transfer engine: it scans
// a local directory, tree, or archive, plans what to skip against an
// optional resume inventory, opens one or more connections to the
// remote host-side upload service, and drives the pack/frame pipeline
// to completion (spec.md §1-§5).
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ps5upload/engine/internal/archive"
	"github.com/ps5upload/engine/internal/cancel"
	"github.com/ps5upload/engine/internal/codec"
	"github.com/ps5upload/engine/internal/coordinator"
	"github.com/ps5upload/engine/internal/ftxlog"
	"github.com/ps5upload/engine/internal/ratelimit"
	"github.com/ps5upload/engine/internal/remote"
	"github.com/ps5upload/engine/internal/resume"
	"github.com/ps5upload/engine/internal/source"
	"github.com/ps5upload/engine/internal/worker"
)

// FreeSpaceMargin is the safety margin spec.md §7.2 adds on top of the
// planned upload size when checking remote free space.
const FreeSpaceMargin = 64 << 20

// Config is everything Upload consumes, matching spec.md §6
// "Configuration consumed" field for field.
type Config struct {
	RemoteAddr string // PS5 host-side upload service address, host:port
	SourcePath string // local directory, file, or archive
	DestPath   string // destination path on the remote, relative

	Connections    int    // 1-10; clamped and possibly auto-tuned
	ResumeMode     string // off|size|size_mtime|sha256
	Compression    string // none|lz4|zstd|lzma|auto
	BandwidthMbps  float64
	AutoTune       bool
	OptimiseUpload bool
	UseTempStaging bool
	RarExtraction  string
	PayloadVersion string // capability gate for Zstd/LZMA

	Cancel *cancel.Flag

	OnScanProgress func(source.ScanProgress)
	// OnUploadProgress is called after each pack of an archive upload
	// (including a raw RAR upload for remote extraction). Directory and
	// single-file uploads do not call it.
	OnUploadProgress func(worker.Progress)
}

// Result is the engine's outcome: the remote's reported totals.
type Result struct {
	FilesSent int64
	BytesSent int64
}

// ErrValidation flags a Config that failed the up-front checks in
// spec.md §7 "Validation".
var ErrValidation = errors.New("engine: invalid configuration")

// ErrInsufficientSpace flags spec.md §7 "Precondition": the remote
// doesn't have required+FreeSpaceMargin bytes free.
var ErrInsufficientSpace = errors.New("engine: insufficient remote free space")

func validate(cfg Config) error {
	if cfg.RemoteAddr == "" {
		return fmt.Errorf("%w: remote address is empty", ErrValidation)
	}
	if cfg.SourcePath == "" {
		return fmt.Errorf("%w: source path is empty", ErrValidation)
	}
	if cfg.DestPath == "" {
		return fmt.Errorf("%w: destination path is empty", ErrValidation)
	}
	switch cfg.RarExtraction {
	case "", "safe", "normal", "turbo":
	default:
		return fmt.Errorf("%w: rar extraction mode %q is not safe|normal|turbo", ErrValidation, cfg.RarExtraction)
	}
	return nil
}

// Upload runs one upload end to end.
func Upload(ctx context.Context, cfg Config) (Result, error) {
	if err := validate(cfg); err != nil {
		return Result{}, err
	}

	resumeMode, err := resume.ParseMode(cfg.ResumeMode)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	compression, err := codec.ParseMode(cfg.Compression)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c := cfg.Cancel
	if c == nil {
		c = &cancel.Flag{}
	}

	client := remote.NewClient(cfg.RemoteAddr)
	capability := remote.CapabilityForVersion(cfg.PayloadVersion)

	format, archErr := archive.DetectFormat(cfg.SourcePath)
	if archErr == nil {
		if format == archive.FormatRar && cfg.RarExtraction != "" {
			return uploadRarForExtraction(ctx, cfg, client, capability, c)
		}
		return uploadArchive(ctx, cfg, client, format, compression, capability, c)
	}

	resumeMode = resume.DisabledForArchive(resumeMode, false)
	return uploadTree(ctx, cfg, client, resumeMode, compression, capability, c)
}

func uploadTree(ctx context.Context, cfg Config, client *remote.Client, resumeMode resume.Mode, compression codec.Mode, capability codec.Capability, c *cancel.Flag) (Result, error) {
	dial := dialerFor(client, cfg)
	coordCfg := coordinator.Config{
		Mode:                compression,
		Capability:          capability,
		LimitBytesPerSecond: mbpsToBytesPerSec(cfg.BandwidthMbps),
		UseTemp:             cfg.UseTempStaging,
	}

	if resumeMode == resume.Off {
		lazy := source.StartLazy(ctx, cfg.SourcePath, c, cfg.OnScanProgress)
		coordCfg.Connections = coordinator.ClampConnections(cfg.Connections, 0)
		res := coordinator.RunLazy(ctx, coordCfg, lazy, dial, c)
		if res.Err != nil {
			return Result{}, res.Err
		}
		return Result{FilesSent: res.FilesSent, BytesSent: res.BytesSent}, nil
	}

	entries, err := source.Eager(cfg.SourcePath, cfg.OnScanProgress)
	if err != nil {
		return Result{}, fmt.Errorf("engine: scan %s: %w", cfg.SourcePath, err)
	}

	plan, err := planResume(ctx, client, cfg, resumeMode, entries)
	if err != nil {
		return Result{}, err
	}
	if len(plan.Keep) == 0 {
		return Result{}, nil
	}

	if err := checkFreeSpace(ctx, client, cfg, plan); err != nil {
		return Result{}, err
	}

	n := cfg.Connections
	autoTune := cfg.AutoTune
	if cfg.OptimiseUpload {
		// spec.md §6 "optimise": a sample-driven connection count and
		// compression choice together, taking priority over a plain
		// auto-tune request — the original source treats the two as
		// mutually exclusive, optimise winning when both are set.
		coordCfg.Mode = codec.Auto
		autoTune = true
	}
	if autoTune {
		n = coordinator.AutoTuneConnections(plan.Keep, coordinator.MaxConnections)
	}
	coordCfg.Connections = coordinator.ClampConnections(n, len(plan.Keep))

	res := coordinator.RunEager(ctx, coordCfg, plan.Keep, dial, c)
	if res.Err != nil {
		return Result{}, res.Err
	}
	return Result{FilesSent: res.FilesSent, BytesSent: res.BytesSent}, nil
}

func uploadArchive(ctx context.Context, cfg Config, client *remote.Client, format archive.Format, compression codec.Mode, capability codec.Capability, c *cancel.Flag) (Result, error) {
	conn, err := client.UploadInit(ctx, cfg.DestPath, cfg.PayloadVersion, cfg.UseTempStaging)
	if err != nil {
		return Result{}, fmt.Errorf("engine: %w", err)
	}

	var progress func(worker.Progress)
	if cfg.OnUploadProgress != nil {
		progress = cfg.OnUploadProgress
	}

	res := worker.RunArchive(ctx, worker.ArchiveConfig{
		Conn:        conn,
		ArchivePath: cfg.SourcePath,
		Format:      format,
		Mode:        compression,
		Capability:  capability,
		Limiter:     ratelimit.New(mbpsToBytesPerSec(cfg.BandwidthMbps)),
		Cancel:      c,
		OnProgress:  progress,
	})
	if res.Err != nil {
		return Result{}, res.Err
	}
	return Result{FilesSent: int64(res.FilesSent), BytesSent: res.BytesSent}, nil
}

// uploadRarForExtraction uploads a RAR source's raw bytes unmodified
// (no client-side decode) and queues it for server-side extraction in
// the mode cfg.RarExtraction names, per spec.md §6 "RAR extraction
// mode": RAR is the only archive format the remote can extract itself,
// so a non-empty mode skips the client-side decode-and-repack path
// uploadArchive otherwise takes.
func uploadRarForExtraction(ctx context.Context, cfg Config, client *remote.Client, capability codec.Capability, c *cancel.Flag) (Result, error) {
	conn, err := client.UploadInit(ctx, cfg.DestPath, cfg.PayloadVersion, cfg.UseTempStaging)
	if err != nil {
		return Result{}, fmt.Errorf("engine: %w", err)
	}

	res := worker.RunArchive(ctx, worker.ArchiveConfig{
		Conn:        conn,
		ArchivePath: cfg.SourcePath,
		Format:      archive.FormatRaw,
		Mode:        codec.None,
		Capability:  capability,
		Limiter:     ratelimit.New(mbpsToBytesPerSec(cfg.BandwidthMbps)),
		Cancel:      c,
		OnProgress:  cfg.OnUploadProgress,
	})
	if res.Err != nil {
		return Result{}, res.Err
	}

	if err := client.QueueExtract(ctx, cfg.DestPath, cfg.RarExtraction); err != nil {
		return Result{}, fmt.Errorf("engine: queue rar extraction: %w", err)
	}
	return Result{FilesSent: int64(res.FilesSent), BytesSent: res.BytesSent}, nil
}

func planResume(ctx context.Context, client *remote.Client, cfg Config, mode resume.Mode, entries []source.FileEntry) (resume.Plan, error) {
	exists, err := client.Exists(ctx, cfg.DestPath)
	if err != nil {
		return resume.Plan{}, fmt.Errorf("engine: check destination: %w", err)
	}
	if !exists {
		return resume.Plan{Keep: entries}, nil
	}

	inventory, err := client.ListDirRecursive(ctx, cfg.DestPath)
	if err != nil {
		return resume.Plan{}, fmt.Errorf("engine: fetch remote inventory: %w", err)
	}

	var remoteHash resume.RemoteHasher
	if mode == resume.SHA256 {
		remoteHash = func(relPath string) (string, error) {
			return client.FileHash(ctx, cfg.DestPath+"/"+relPath)
		}
	}

	plan, err := resume.Compute(mode, exists, entries, inventory, remoteHash)
	if err != nil {
		return resume.Plan{}, fmt.Errorf("engine: plan resume: %w", err)
	}
	if plan.SkippedCount > 0 {
		ftxlog.Logf(nil, "resume: skipping %d file(s), %d bytes already present", plan.SkippedCount, plan.SkippedBytes)
	}
	return plan, nil
}

func checkFreeSpace(ctx context.Context, client *remote.Client, cfg Config, plan resume.Plan) error {
	var required int64
	for _, e := range plan.Keep {
		required += e.Size
	}
	free, err := client.FreeSpace(ctx, cfg.DestPath)
	if err != nil {
		return fmt.Errorf("engine: check free space: %w", err)
	}
	if free < required+FreeSpaceMargin {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientSpace, required+FreeSpaceMargin, free)
	}
	return nil
}

func dialerFor(client *remote.Client, cfg Config) coordinator.Dialer {
	return func(ctx context.Context, id int, useTemp bool) (net.Conn, error) {
		return client.UploadInit(ctx, cfg.DestPath, cfg.PayloadVersion, useTemp)
	}
}

// mbpsToBytesPerSec converts a megabits-per-second limit (0 =
// unlimited) into the bytes-per-second the rate limiter and
// per-worker bandwidth split operate on.
func mbpsToBytesPerSec(mbps float64) float64 {
	if mbps <= 0 {
		return 0
	}
	return mbps * 1_000_000 / 8
}
