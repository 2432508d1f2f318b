package codec

import (
	"sync"

	"github.com/ps5upload/engine/internal/ftxlog"
)

// Capability reports which codecs a remote payload version supports,
// discovered out-of-band (spec.md §9, SPEC_FULL.md §4).
type Capability struct {
	Zstd bool
	LZMA bool
}

// SampleBytes is the maximum amount of source data the auto-selector
// reads before deciding, per spec.md §4.5 "sample up to a few MiB".
const SampleBytes = 4 << 20

var (
	zstdDowngradeOnce sync.Once
	lzmaDowngradeOnce sync.Once
)

// AutoSelect compresses sample with every codec the capability allows
// and returns whichever produced the smallest output. LZ4 is always a
// candidate; Zstd/LZMA are skipped (and their absence logged once per
// process, not once per sample) when cap says the remote can't decode
// them. Callers resolve this once per upload against a bounded
// sample, never per pack (spec.md §4.5 "sample up to a few MiB", not
// "recompress every pack").
func AutoSelect(sample []byte, cap Capability) Mode {
	if len(sample) > SampleBytes {
		sample = sample[:SampleBytes]
	}

	best := None
	bestSize := len(sample)

	try := func(mode Mode) {
		enc := Encode(mode, sample)
		if len(enc.Payload) < bestSize {
			best = mode
			bestSize = len(enc.Payload)
		}
	}

	try(LZ4)
	if cap.Zstd {
		try(Zstd)
	} else {
		zstdDowngradeOnce.Do(func() {
			ftxlog.Logf(nil, "auto-compression: remote payload version lacks zstd support, considering lz4 only")
		})
	}
	if cap.LZMA {
		try(LZMA)
	} else {
		lzmaDowngradeOnce.Do(func() {
			ftxlog.Logf(nil, "auto-compression: remote payload version lacks lzma support, not considering lzma")
		})
	}
	return best
}

// Resolver pins an upload's compression choice the first time it is
// asked, instead of re-running AutoSelect against every pack. A
// non-Auto Mode resolves to itself immediately and never samples
// anything. Safe for concurrent use by multiple worker goroutines.
type Resolver struct {
	mode Mode
	cap  Capability

	once     sync.Once
	resolved Mode
}

// NewResolver builds a Resolver for one upload's requested mode and
// remote capability.
func NewResolver(mode Mode, cap Capability) *Resolver {
	return &Resolver{mode: mode, cap: cap}
}

// Resolve returns the concrete Mode to use for the caller's pack. The
// first call against an Auto resolver runs AutoSelect against sample
// (capped to SampleBytes) and every subsequent call, from any worker,
// reuses that decision.
func (r *Resolver) Resolve(sample []byte) Mode {
	if r.mode != Auto {
		return r.mode
	}
	r.once.Do(func() {
		r.resolved = AutoSelect(sample, r.cap)
	})
	return r.resolved
}
