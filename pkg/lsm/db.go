package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DB is the LSM orchestrator: it owns the active memtable, the WAL fronting
// it, and the on-disk level tree, and composes the write path, read path,
// auto-flush, and crash recovery described by the engine's design. Every
// exported method holds db.mu for its whole duration, so calls made from
// several goroutines run one at a time.
type DB struct {
	mu      sync.Mutex
	opts    Options
	dataDir string
	mem     *memTable
	wal     *Wal
	levels  [][]*sstableReader // levels[i] holds level i's open readers, newest first
	tsSeq   int64
	open    bool
	logger  *logrus.Logger
}

var sstFileRe = regexp.MustCompile(`^L(\d+)_(\d+)\.sst$`)

// Open prepares the data directory (creating it if absent), opens the WAL,
// loads the existing on-disk level tree, and then replays the WAL into a
// fresh memtable. A crash between a WAL append and the corresponding flush leaves the
// record in the WAL and it replays cleanly here; a crash between a flush's
// SSTable write and the WAL truncation is idempotent because flush always
// clears the WAL only after the SSTable is durably finished.
func Open(opts Options) (*DB, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("lsm: create data dir: %w", err)
	}

	wal, err := OpenWAL(filepath.Join(opts.DataDir, "wal.log"))
	if err != nil {
		return nil, err
	}

	db := &DB{
		opts:    opts,
		dataDir: opts.DataDir,
		mem:     newMemTable(),
		wal:     wal,
		levels:  make([][]*sstableReader, opts.MaxLevels),
		logger:  opts.Logger,
		open:    true,
	}

	if err := db.loadLevels(); err != nil {
		_ = wal.Close()
		return nil, err
	}

	records, err := wal.Recover()
	if err != nil {
		_ = wal.Close()
		return nil, err
	}
	for _, r := range records {
		switch r.Op {
		case opPut:
			db.mem.put(r.Key, r.Value)
		case opDelete:
			db.mem.delete(r.Key, opts.Tombstone)
		}
	}

	return db, nil
}

// loadLevels scans dataDir for L<N>_<seq>.sst files, bucketing them by
// level and sorting each level newest-first by sequence number. Each file is
// opened once here and the reader kept for the life of the DB: its sparse
// index and Bloom filter are parsed on this single open, not on every read
// (spec.md §3 Ownership). A file that fails to open is logged at Warn and
// skipped (spec.md §7: an isolated corrupt SSTable does not prevent the
// engine from opening).
func (db *DB) loadLevels() error {
	entries, err := os.ReadDir(db.dataDir)
	if err != nil {
		return fmt.Errorf("lsm: read data dir: %w", err)
	}

	type found struct {
		level  int
		seq    int64
		reader *sstableReader
	}
	var files []found
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := sstFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		level, _ := strconv.Atoi(m[1])
		seq, _ := strconv.ParseInt(m[2], 10, 64)
		path := filepath.Join(db.dataDir, e.Name())

		r, err := OpenSSTable(path, db.opts)
		if err != nil {
			db.logger.WithError(err).WithField("file", path).Warn("lsm: skipping unreadable sstable on load")
			continue
		}

		files = append(files, found{level: level, seq: seq, reader: r})
		if seq >= db.tsSeq {
			db.tsSeq = seq + 1
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].seq > files[j].seq })
	for _, f := range files {
		if f.level >= len(db.levels) {
			_ = f.reader.Close()
			continue
		}
		db.levels[f.level] = append(db.levels[f.level], f.reader)
	}
	return nil
}

func (db *DB) nextSeq() int64 {
	s := db.tsSeq
	db.tsSeq++
	return s
}

func (db *DB) sstPath(level int, seq int64) string {
	return filepath.Join(db.dataDir, fmt.Sprintf("L%d_%010d.sst", level, seq))
}

// Put inserts or overwrites key with value. The write is durable in the WAL
// before it becomes visible in the memtable.
func (db *DB) Put(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return ErrAlreadyClosed
	}
	if key == "" || value == "" {
		return ErrInvalidArgument
	}
	if strings.ContainsRune(key, walDelimiter) {
		return fmt.Errorf("%w: key contains wal field delimiter", ErrInvalidArgument)
	}
	if value == db.opts.Tombstone {
		return fmt.Errorf("%w: value collides with tombstone sentinel", ErrInvalidArgument)
	}
	if err := db.wal.Append(opPut, key, value); err != nil {
		return err
	}
	db.mem.put(key, value)
	return db.maybeFlush()
}

// Delete marks key as logically removed by writing the tombstone sentinel.
func (db *DB) Delete(key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return ErrAlreadyClosed
	}
	if key == "" {
		return ErrInvalidArgument
	}
	if strings.ContainsRune(key, walDelimiter) {
		return fmt.Errorf("%w: key contains wal field delimiter", ErrInvalidArgument)
	}
	if err := db.wal.Append(opDelete, key, db.opts.Tombstone); err != nil {
		return err
	}
	db.mem.delete(key, db.opts.Tombstone)
	return db.maybeFlush()
}

// Get returns the current value for key, checking the memtable first, then
// each level from newest to oldest. A tombstone hit reports not-found. A
// read error on an already-open table (corrupt data, unexpected EOF) is
// surfaced to the caller rather than skipped — unlike loadLevels, this is
// not an isolated-at-open-time condition.
func (db *DB) Get(key string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return "", false, ErrAlreadyClosed
	}

	if v, ok := db.mem.get(key); ok {
		if v == db.opts.Tombstone {
			return "", false, nil
		}
		return v, true, nil
	}

	for level := 0; level < len(db.levels); level++ {
		for _, r := range db.levels[level] {
			v, ok, err := r.Get(key)
			if err != nil {
				return "", false, fmt.Errorf("lsm: read %s: %w", r.Path(), err)
			}
			if ok {
				if v == db.opts.Tombstone {
					return "", false, nil
				}
				return v, true, nil
			}
		}
	}
	return "", false, nil
}

// Scan returns every live (key, value) pair with lo <= key <= hi, in
// ascending key order, merging the memtable and every level with
// newest-wins semantics and dropping tombstones from the result. An empty
// lo or hi is unbounded on that side.
func (db *DB) Scan(lo, hi string) ([]Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return nil, ErrAlreadyClosed
	}
	return db.scanLocked(lo, hi)
}

func (db *DB) scanLocked(lo, hi string) ([]Entry, error) {
	sources := []*mergeSource{{entries: db.mem.scan(lo, hi)}}

	for level := 0; level < len(db.levels); level++ {
		for _, r := range db.levels[level] {
			entries, err := r.Scan(lo, hi)
			if err != nil {
				return nil, fmt.Errorf("lsm: scan %s: %w", r.Path(), err)
			}
			sources = append(sources, &mergeSource{entries: entries})
		}
	}

	merged := mergeEntries(sources)
	return dropTombstones(merged, db.opts.Tombstone), nil
}

// maybeFlush flushes the active memtable to a new level-0 SSTable when its
// byte size crosses the configured threshold, then checks every level for a
// compaction trigger. Must be called with db.mu held.
func (db *DB) maybeFlush() error {
	if db.mem.size() < db.opts.MemTableSizeThreshold {
		return nil
	}
	return db.flushLocked()
}

func (db *DB) flushLocked() error {
	entries := db.mem.entries()
	if len(entries) == 0 {
		return nil
	}

	seq := db.nextSeq()
	path := db.sstPath(0, seq)
	if err := WriteSSTable(path, entries, db.opts); err != nil {
		return err
	}
	r, err := OpenSSTable(path, db.opts)
	if err != nil {
		return err
	}
	if err := db.wal.Clear(); err != nil {
		return err
	}
	db.mem.clear()

	db.levels[0] = append([]*sstableReader{r}, db.levels[0]...)
	return db.maybeCompact()
}

// Flush forces an immediate flush of the active memtable, regardless of its
// current size, followed by any compaction it triggers.
func (db *DB) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return ErrAlreadyClosed
	}
	return db.flushLocked()
}

// maybeCompact walks the levels once, from level 0 upward, merging a level
// into the next one whenever its table count reaches SizeRatio. A level
// that reaches its trigger because of a merge earlier in the same walk is
// compacted in that walk too. Must be called with db.mu held.
func (db *DB) maybeCompact() error {
	for level := 0; level < len(db.levels)-1; level++ {
		if len(db.levels[level]) < db.opts.SizeRatio {
			continue
		}
		if err := db.compactLevel(level); err != nil {
			return err
		}
	}
	return nil
}

// hasTablesBelow reports whether any level deeper than level currently
// holds at least one table.
func (db *DB) hasTablesBelow(level int) bool {
	for l := level + 1; l < len(db.levels); l++ {
		if len(db.levels[l]) > 0 {
			return true
		}
	}
	return false
}

// compactLevel merges only level's own tables (never the target level's
// existing tables) and prepends the merged result to level+1, preserving
// whatever tables already sit there. Tombstones are dropped only if level
// is currently the bottommost level holding any data, since a deeper level
// not yet touched by this compaction pass might still shadow the same key.
func (db *DB) compactLevel(level int) error {
	target := level + 1
	inputs := db.levels[level]
	if len(inputs) == 0 {
		return nil
	}

	bottommost := !db.hasTablesBelow(level)

	merged, err := mergeReaders(inputs, bottommost, db.opts.Tombstone)
	if err != nil {
		return err
	}

	if len(merged) > 0 {
		seq := db.nextSeq()
		outPath := db.sstPath(target, seq)
		if err := WriteSSTable(outPath, merged, db.opts); err != nil {
			return err
		}
		r, err := OpenSSTable(outPath, db.opts)
		if err != nil {
			return err
		}
		db.levels[target] = append([]*sstableReader{r}, db.levels[target]...)
	}

	for _, r := range inputs {
		path := r.Path()
		if err := r.Close(); err != nil {
			db.logger.WithError(err).WithField("file", path).Warn("lsm: failed to close compacted sstable")
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			db.logger.WithError(err).WithField("file", path).Warn("lsm: failed to unlink compacted sstable")
		}
	}
	db.levels[level] = nil
	return nil
}

// Stats summarizes the engine's current state for observers (dashboards,
// CLI inspection) without exposing internal file paths.
type Stats struct {
	MemTableBytes   int
	MemTableEntries int
	LevelTableCount []int
	LevelBytes      []int64
}

// Stats returns a point-in-time snapshot of memtable and level-tree sizes.
func (db *DB) Stats() (Stats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return Stats{}, ErrAlreadyClosed
	}

	st := Stats{
		MemTableBytes:   db.mem.size(),
		MemTableEntries: db.mem.numEntries(),
		LevelTableCount: make([]int, len(db.levels)),
		LevelBytes:      make([]int64, len(db.levels)),
	}
	for i, readers := range db.levels {
		st.LevelTableCount[i] = len(readers)
		for _, r := range readers {
			if size, err := r.Size(); err == nil {
				st.LevelBytes[i] += size
			}
		}
	}
	return st, nil
}

// Inspect returns up to limit live (key, value) pairs from the merged,
// newest-wins view of the whole keyspace, in ascending key order.
func (db *DB) Inspect(limit int) ([]Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return nil, ErrAlreadyClosed
	}
	entries, err := db.scanLocked("", "")
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close closes the WAL file handle and every open SSTable reader, and marks
// the engine unusable. The WAL is already durable record-by-record, so
// there is nothing else to flush.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return ErrAlreadyClosed
	}
	db.open = false

	err := db.wal.Close()
	for _, readers := range db.levels {
		for _, r := range readers {
			if cerr := r.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return err
}
