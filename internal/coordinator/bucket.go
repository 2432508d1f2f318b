package coordinator

import (
	"sort"

	"github.com/ps5upload/engine/internal/source"
)

// Bucketize partitions entries across n workers using greedy
// longest-processing-time: sort descending by size, place each file
// into the currently lightest bucket. Produces n size-balanced
// buckets; empty buckets are dropped, so the returned slice may have
// fewer than n elements when there are fewer files than workers.
func Bucketize(entries []source.FileEntry, n int) [][]source.FileEntry {
	if n < 1 {
		n = 1
	}
	sorted := make([]source.FileEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Size > sorted[j].Size
	})

	buckets := make([][]source.FileEntry, n)
	totals := make([]int64, n)
	for _, e := range sorted {
		lightest := 0
		for i := 1; i < n; i++ {
			if totals[i] < totals[lightest] {
				lightest = i
			}
		}
		buckets[lightest] = append(buckets[lightest], e)
		totals[lightest] += e.Size
	}

	out := buckets[:0]
	for _, b := range buckets {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// BucketNext returns a NextFunc-compatible closure over a single
// bucket's file list, for wiring into a worker's packer stage.
func BucketNext(bucket []source.FileEntry) func() (source.FileEntry, bool) {
	i := 0
	return func() (source.FileEntry, bool) {
		if i >= len(bucket) {
			return source.FileEntry{}, false
		}
		e := bucket[i]
		i++
		return e, true
	}
}
