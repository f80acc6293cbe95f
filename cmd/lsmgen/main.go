package main

import (
	"flag"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lsmengine/lsmengine/pkg/lsm"
)

// lsmgen produces sequentially numbered key/value fixtures for demos and for
// seeding the dashboard. Each run is stamped with a fresh UUID so repeated
// runs against the same data directory are distinguishable in Inspect
// output.
func main() {
	dataDir := flag.String("data-dir", "./data", "engine data directory")
	count := flag.Int("count", 1000, "number of key/value pairs to generate")
	flag.Parse()

	logger := logrus.StandardLogger()
	opts := lsm.DefaultOptions()
	opts.DataDir = *dataDir
	opts.Logger = logger

	db, err := lsm.Open(opts)
	if err != nil {
		logger.WithError(err).Fatal("lsmgen: failed to open engine")
	}
	defer db.Close()

	runID := uuid.New().String()
	for i := 0; i < *count; i++ {
		key := fmt.Sprintf("gen-%s-%08d", runID, i)
		value := fmt.Sprintf("value-%08d", i)
		if err := db.Put(key, value); err != nil {
			logger.WithError(err).Fatal("lsmgen: put failed")
		}
	}

	logger.WithFields(logrus.Fields{"run_id": runID, "count": *count}).Info("lsmgen: generation complete")
}
