package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lsmengine/lsmengine/pkg/lsm"
)

// lsmcli is a minimal interactive shell over the engine. It is explicitly
// out of core scope per the engine's design, so it is kept to bare
// bufio.Scanner line reading rather than a full line-editing library.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	logger := logrus.StandardLogger()

	opts, err := lsm.LoadOptions(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("lsmcli: failed to load config")
	}
	opts.Logger = logger

	db, err := lsm.Open(opts)
	if err != nil {
		logger.WithError(err).Fatal("lsmcli: failed to open engine")
	}
	defer db.Close()

	fmt.Println("lsmcli — commands: put <key> <value> | get <key> | del <key> | scan <lo> <hi> | stats | inspect [limit] | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(db, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func dispatch(db *lsm.DB, line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "quit", "exit":
		os.Exit(0)
	case "put":
		if len(fields) != 3 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		return db.Put(fields[1], fields[2])
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		v, ok, err := db.Get(fields[1])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(v)
	case "del":
		if len(fields) != 2 {
			return fmt.Errorf("usage: del <key>")
		}
		return db.Delete(fields[1])
	case "scan":
		if len(fields) != 3 {
			return fmt.Errorf("usage: scan <lo> <hi>")
		}
		entries, err := db.Scan(fields[1], fields[2])
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s = %s\n", e.Key, e.Value)
		}
	case "stats":
		st, err := db.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("memtable: %d bytes, %d entries\n", st.MemTableBytes, st.MemTableEntries)
		for i := range st.LevelTableCount {
			fmt.Printf("level %d: %d tables, %d bytes\n", i, st.LevelTableCount[i], st.LevelBytes[i])
		}
	case "inspect":
		limit := 100
		if len(fields) == 2 {
			fmt.Sscanf(fields[1], "%d", &limit)
		}
		entries, err := db.Inspect(limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s = %s\n", e.Key, e.Value)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
