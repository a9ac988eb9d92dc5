// Package parallel splits row-wise kernels across goroutines.
package parallel

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls how work is fanned out.
type Config struct {
	Enabled      bool // Fan out at all.
	NumWorkers   int  // Upper bound on goroutines per call.
	MinChunkSize int  // Items below which a call stays sequential.
}

// DefaultConfig uses one worker per physical core. Hyper-threads share the
// FPU and do not help the float kernels.
func DefaultConfig() Config {
	n := cpuid.CPU.PhysicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 16,
	}
}

// Sequential never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1}
}

// ForRange calls f on disjoint [start, end) chunks covering [0, n).
// It returns after every chunk has finished.
func ForRange(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*cfg.MinChunkSize {
		f(0, n)
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(start, end)
		}()
	}
	wg.Wait()
}

// For calls f(i) for every i in [0, n).
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// CPUInfo describes the host for the startup log line.
func CPUInfo() string {
	var simd []string
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.SSE4, "sse4.1"},
		{cpuid.AVX, "avx"},
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma"},
		{cpuid.AVX512F, "avx512f"},
		{cpuid.ASIMD, "neon"},
	} {
		if cpuid.CPU.Supports(f.id) {
			simd = append(simd, f.name)
		}
	}
	if len(simd) == 0 {
		simd = append(simd, "none")
	}
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("cpu=%q physical_cores=%d logical_cores=%d simd=%s",
		brand, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, strings.Join(simd, ","))
}
