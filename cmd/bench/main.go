package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lsmengine/lsmengine/pkg/bench"
	"github.com/lsmengine/lsmengine/pkg/lsm"
)

// bench is the ad hoc micro-benchmark driver, for runs outside `go test
// -bench`. The timed operations come from pkg/bench; pkg/lsm's own
// benchmark tests run their own loops and do not use pkg/bench.
func main() {
	dataDir := flag.String("data-dir", "", "engine data directory (defaults to ./bench-data)")
	ops := flag.Int("ops", 10000, "number of operations per phase")
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		dir = "./bench-data"
	}

	logger := logrus.StandardLogger()
	opts := lsm.DefaultOptions()
	opts.DataDir = dir
	opts.Logger = logger

	db, err := lsm.Open(opts)
	if err != nil {
		logger.WithError(err).Fatal("bench: failed to open engine")
	}
	defer db.Close()

	results := make([]bench.Result, 0, 4)

	putResult, err := bench.RunPut(db, *ops)
	if err != nil {
		logger.WithError(err).Fatal("bench: put phase failed")
	}
	results = append(results, putResult)

	flushResult, err := bench.RunFlush(db)
	if err != nil {
		logger.WithError(err).Fatal("bench: flush phase failed")
	}
	results = append(results, flushResult)

	getResult, err := bench.RunGet(db, *ops)
	if err != nil {
		logger.WithError(err).Fatal("bench: get phase failed")
	}
	results = append(results, getResult)

	scanResult, err := bench.RunScan(db)
	if err != nil {
		logger.WithError(err).Fatal("bench: scan phase failed")
	}
	results = append(results, scanResult)

	for _, r := range results {
		fmt.Println(r.String())
	}
}
