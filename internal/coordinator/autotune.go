package coordinator

import "github.com/ps5upload/engine/internal/source"

// perConnectionShare is the rough amount of payload that justifies
// adding one more connection, per spec.md §4.5 "more and larger files
// justify more connections; tiny workloads stay at 1".
const perConnectionShare = 256 << 20

// AutoTuneConnections recommends a connection count from a sampled (or
// complete) eager file list, monotone in total bytes and capped by
// both the file count and max.
func AutoTuneConnections(entries []source.FileEntry, max int) int {
	if len(entries) <= 1 {
		return 1
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	n := int(total/perConnectionShare) + 1
	if n > len(entries) {
		n = len(entries)
	}
	if n > max {
		n = max
	}
	if n < 1 {
		n = 1
	}
	return n
}
