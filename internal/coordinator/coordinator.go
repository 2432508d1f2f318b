// Package coordinator opens the N worker connections for one upload,
// partitions the file list across them, runs the adaptive parallelism
// controller, and aggregates the workers' results into a single
// outcome (spec.md §4.5).
package coordinator

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ps5upload/engine/internal/cancel"
	"github.com/ps5upload/engine/internal/codec"
	"github.com/ps5upload/engine/internal/ftxlog"
	"github.com/ps5upload/engine/internal/parallelism"
	"github.com/ps5upload/engine/internal/ratelimit"
	"github.com/ps5upload/engine/internal/source"
	"github.com/ps5upload/engine/internal/worker"
)

// MinConnections and MaxConnections bound the user-specified
// connection count, per spec.md §4.5.
const (
	MinConnections = 1
	MaxConnections = 10
)

// Dialer opens the worker connection with the given id. Workers are
// opened lazily, one per bucket, so a short file list never opens
// connections it won't use. useTemp is already gated to
// single-connection uploads by the caller (spec.md §4.5
// "Multi-connection uploads must disable temp-staging silently") —
// the dialer just has to forward it to the remote.
type Dialer func(ctx context.Context, id int, useTemp bool) (net.Conn, error)

// Config controls one coordinator run. Connections is clamped to
// [MinConnections, MaxConnections] and then (for eager sources) to the
// file count, per spec.md §4.5 "If file count < connections, reduce to
// file count."
type Config struct {
	Connections         int
	Mode                codec.Mode
	Capability          codec.Capability
	LimitBytesPerSecond float64 // aggregate; divided evenly across active workers
	UseTemp             bool    // single-connection only; silently disabled otherwise
	Controller          ControllerConfig
}

// ClampConnections applies spec.md §4.5's clamp: [1,10], then floored
// to fileCount if fileCount > 0 and smaller. fileCount == 0 means
// "unknown" (lazy/streaming source): no floor is applied.
func ClampConnections(requested, fileCount int) int {
	n := requested
	if n < MinConnections {
		n = MinConnections
	}
	if n > MaxConnections {
		n = MaxConnections
	}
	if fileCount > 0 && fileCount < n {
		n = fileCount
	}
	return n
}

// Result is what one coordinator run reports.
type Result struct {
	FilesSent int64
	BytesSent int64
	Err       error
}

// RunEager uploads entries, bucketed with greedy LPT across
// cfg.Connections workers opened via dial.
func RunEager(ctx context.Context, cfg Config, entries []source.FileEntry, dial Dialer, c *cancel.Flag) Result {
	n := ClampConnections(cfg.Connections, len(entries))
	buckets := Bucketize(entries, n)
	if len(buckets) == 0 {
		return Result{}
	}
	useTemp := cfg.UseTemp && len(buckets) == 1

	specs := make([]workerSpec, len(buckets))
	for i, b := range buckets {
		specs[i] = workerSpec{next: BucketNext(b)}
	}
	return run(ctx, cfg, specs, dial, c, useTemp)
}

// RunLazy uploads from a single shared lazy source, fanned out across
// cfg.Connections workers all pulling through the same mutex-guarded
// receiver (spec.md §4.5 "streaming mode").
func RunLazy(ctx context.Context, cfg Config, lazy *source.LazySource, dial Dialer, c *cancel.Flag) Result {
	n := ClampConnections(cfg.Connections, 0)
	shared := source.NewSharedReceiver(lazy)
	useTemp := cfg.UseTemp && n == 1

	specs := make([]workerSpec, n)
	for i := range specs {
		specs[i] = workerSpec{next: shared.Next}
	}
	result := run(ctx, cfg, specs, dial, c, useTemp)
	if result.Err == nil {
		result.Err = lazy.Err()
	}
	return result
}

type workerSpec struct {
	next worker.NextFunc
}

func run(ctx context.Context, cfg Config, specs []workerSpec, dial Dialer, c *cancel.Flag, useTemp bool) Result {
	n := len(specs)
	if n == 0 {
		return Result{}
	}

	var allowed *parallelism.Allowed
	var lastProg *parallelism.LastProgress
	ctrlCtx, stopCtrl := context.WithCancel(ctx)
	defer stopCtrl()

	if n > 1 {
		allowed = parallelism.NewAllowed(n)
		lastProg = parallelism.NewLastProgress()
		ctrl := cfg.Controller
		if ctrl.Tick == 0 {
			ctrl = DefaultControllerConfig()
		}
		go RunController(ctrlCtx, ctrl, allowed, lastProg, n)
	}

	var perWorkerBandwidth float64
	if cfg.LimitBytesPerSecond > 0 {
		perWorkerBandwidth = cfg.LimitBytesPerSecond / float64(n)
	}

	// One Resolver shared by every worker of this upload, so an Auto
	// compression choice is made once against a bounded sample (the
	// first ready pack any worker produces), never re-run per pack
	// or independently per worker (spec.md §4.5).
	resolver := codec.NewResolver(cfg.Mode, cfg.Capability)

	type outcome struct {
		id   int
		res  worker.Result
		conn net.Conn
		err  error
	}

	results := make([]outcome, n)
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(id int, spec workerSpec) {
			defer wg.Done()
			conn, err := dial(ctx, id, useTemp)
			if err != nil {
				results[id] = outcome{id: id, err: fmt.Errorf("coordinator: dial worker %d: %w", id, err)}
				if c != nil {
					c.Cancel()
				}
				return
			}
			res := worker.Run(ctx, worker.Config{
				ID:         id,
				Conn:       conn,
				Allowed:    allowed,
				LastProg:   lastProg,
				Mode:       cfg.Mode,
				Capability: cfg.Capability,
				Resolver:   resolver,
				Limiter:    ratelimit.New(perWorkerBandwidth),
				Cancel:     c,
				Next:       spec.next,
			})
			results[id] = outcome{id: id, res: res, conn: conn}
		}(i, spec)
	}
	wg.Wait()
	stopCtrl()

	var firstErr error
	var bytesSent int64
	var filesSent int64
	var controlConn net.Conn
	for _, o := range results {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		if o.res.Err != nil {
			if firstErr == nil {
				firstErr = o.res.Err
			}
			continue
		}
		bytesSent += o.res.BytesSent
		filesSent += int64(o.res.FilesSent)
		if o.id == 0 {
			controlConn = o.conn
		}
	}

	if firstErr != nil {
		return Result{Err: firstErr}
	}

	if useTemp {
		ftxlog.Logf(0, "temp-staging requested: remote will atomically move the staged upload into place")
	}

	if controlConn != nil {
		if received, err := readCompletionResponse(controlConn); err == nil {
			return Result{FilesSent: received.files, BytesSent: received.bytes}
		}
	}
	return Result{FilesSent: filesSent, BytesSent: bytesSent}
}

type completion struct {
	files int64
	bytes int64
}

// readCompletionResponse reads the remote's single newline (or EOF)
// terminated end-of-upload line and parses "files_received,
// bytes_received" out of it, tolerant of surrounding whitespace, per
// spec.md §4.5 "Completion".
func readCompletionResponse(conn net.Conn) (completion, error) {
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return completion{}, err
	}
	fields := strings.Fields(line)
	var files, bytes int64
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "files_received":
			files, _ = strconv.ParseInt(kv[1], 10, 64)
		case "bytes_received":
			bytes, _ = strconv.ParseInt(kv[1], 10, 64)
		}
	}
	return completion{files: files, bytes: bytes}, nil
}
