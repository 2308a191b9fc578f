package manifest

import (
	"strings"

	"github.com/docker/go-units"
	"github.com/ein-plus/lain/internal/lainerr"
)

// DefaultMemory is assumed for processes that declare no memory limit.
const DefaultMemory = "1Gi"

// CanonicalMemory rewrites a trailing lowercase "m" to the Kubernetes "Mi"
// suffix and returns the canonical string with its size in bytes.
func CanonicalMemory(s string) (string, int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, nil
	}
	if strings.HasSuffix(s, "m") {
		s = strings.TrimSuffix(s, "m") + "Mi"
	}

	n, err := MemoryBytes(s)
	if err != nil {
		return "", 0, err
	}
	return s, n, nil
}

// MemoryBytes parses a Kubernetes style memory quantity such as 80M or 20Mi.
func MemoryBytes(s string) (int64, error) {
	q := s
	// go-units wants the binary suffixes spelled out as MiB, GiB and so on.
	if strings.HasSuffix(q, "i") {
		q += "B"
	}
	n, err := units.RAMInBytes(q)
	if err != nil || n <= 0 {
		return 0, lainerr.New(lainerr.UserInput, lainerr.ErrInvalidMemory, "memory %q", s)
	}
	return n, nil
}
