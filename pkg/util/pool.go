package util

import "runtime"

// GetOptimalPoolSize returns the number of parsers per grammar and the number
// of workspace workers.
//
// Formula: min(max(runtime.NumCPU() * 2, 4), 32)
//
// Parsing runs in cgo, so twice the core count keeps cores busy while other
// goroutines wait on file reads and writes.
//
// Examples:
//   - 1-2 cores: 4 (minimum enforced)
//   - 4 cores: 8
//   - 16 cores: 32
//   - 24 cores: 32 (capped)
func GetOptimalPoolSize() int {
	poolSize := runtime.NumCPU() * 2

	if poolSize < 4 {
		poolSize = 4
	}
	if poolSize > 32 {
		poolSize = 32
	}

	return poolSize
}

// GetOptimalPoolSizeWithOverride returns override when positive, otherwise
// GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
