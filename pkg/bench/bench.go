// Package bench provides the timing helpers used by the standalone
// cmd/bench driver. pkg/lsm's `go test -bench` benchmarks do not use it.
package bench

import (
	"fmt"
	"time"

	"github.com/lsmengine/lsmengine/pkg/lsm"
)

// Result is one timed run's outcome.
type Result struct {
	Name     string
	Ops      int
	Elapsed  time.Duration
	OpsPerUs float64
}

func newResult(name string, ops int, elapsed time.Duration) Result {
	r := Result{Name: name, Ops: ops, Elapsed: elapsed}
	if elapsed > 0 {
		r.OpsPerUs = float64(ops) / float64(elapsed.Microseconds())
	}
	return r
}

func (r Result) String() string {
	return fmt.Sprintf("%-16s ops=%-8d elapsed=%-12s throughput=%.3f ops/us", r.Name, r.Ops, r.Elapsed, r.OpsPerUs)
}

// RunPut times ops sequential Put calls with generated keys.
func RunPut(db *lsm.DB, ops int) (Result, error) {
	start := time.Now()
	for i := 0; i < ops; i++ {
		key := fmt.Sprintf("bench-put-%08d", i)
		val := fmt.Sprintf("value-%08d", i)
		if err := db.Put(key, val); err != nil {
			return Result{}, fmt.Errorf("bench: put: %w", err)
		}
	}
	return newResult("put", ops, time.Since(start)), nil
}

// RunGet times ops sequential Get calls for keys already written by a
// prior RunPut call using the same ops count.
func RunGet(db *lsm.DB, ops int) (Result, error) {
	start := time.Now()
	for i := 0; i < ops; i++ {
		key := fmt.Sprintf("bench-put-%08d", i)
		if _, _, err := db.Get(key); err != nil {
			return Result{}, fmt.Errorf("bench: get: %w", err)
		}
	}
	return newResult("get", ops, time.Since(start)), nil
}

// RunScan times a single full-range scan.
func RunScan(db *lsm.DB) (Result, error) {
	start := time.Now()
	entries, err := db.Scan("", "")
	if err != nil {
		return Result{}, fmt.Errorf("bench: scan: %w", err)
	}
	return newResult("scan", len(entries), time.Since(start)), nil
}

// RunFlush times a forced flush of whatever is currently buffered.
func RunFlush(db *lsm.DB) (Result, error) {
	start := time.Now()
	if err := db.Flush(); err != nil {
		return Result{}, fmt.Errorf("bench: flush: %w", err)
	}
	return newResult("flush", 1, time.Since(start)), nil
}
