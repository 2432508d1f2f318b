package remote

import (
	"strconv"
	"strings"

	"github.com/ps5upload/engine/internal/codec"
)

// CapabilityForVersion maps a remote payload version string (as
// returned by GetPayloadVersion) to the codec capability gate
// referenced in spec.md §9: versions below 2 predate Zstd support,
// versions below 3 predate LZMA support. Any unparseable version is
// treated as the most conservative baseline (LZ4 only).
func CapabilityForVersion(version string) codec.Capability {
	major := majorVersion(version)
	return codec.Capability{
		Zstd: major >= 2,
		LZMA: major >= 3,
	}
}

func majorVersion(version string) int {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.SplitN(version, ".", 2)
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return n
}
