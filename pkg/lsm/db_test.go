package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func testOptions(dir string) Options {
	o := DefaultOptions()
	o.DataDir = dir
	o.MemTableSizeThreshold = 256
	o.SizeRatio = 2
	o.MaxLevels = 4
	o.SparseIndexInterval = 4
	return o
}

func TestBasicPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(testOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.Put("k1", "v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	val, ok, err := db.Get("k1")
	if err != nil || !ok || val != "v1" {
		t.Fatalf("get mismatch: ok=%v err=%v val=%q", ok, err, val)
	}

	if err := db.Delete("k1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, ok, _ := db.Get("k1"); ok {
		t.Fatalf("expected tombstone not found")
	}
}

// TestAutoFlushOnThreshold exercises the write path crossing
// MemTableSizeThreshold and landing the data in a level-0 SSTable.
func TestAutoFlushOnThreshold(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(testOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("key-%03d", i)
		v := fmt.Sprintf("value-%03d", i)
		if err := db.Put(k, v); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	st, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, c := range st.LevelTableCount {
		total += c
	}
	if total == 0 {
		t.Fatalf("expected at least one on-disk sstable after crossing the flush threshold")
	}

	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("key-%03d", i)
		want := fmt.Sprintf("value-%03d", i)
		v, ok, err := db.Get(k)
		if err != nil || !ok || v != want {
			t.Fatalf("get %s = (%q,%v,%v), want (%q,true,nil)", k, v, ok, err, want)
		}
	}
}

// TestCompactionDropsTombstoneAtBottommostLevel mirrors spec.md's property
// that a tombstone disappears only once it has been compacted down to the
// last level holding that key.
func TestCompactionDropsTombstoneAtBottommostLevel(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	db, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.Put("x", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.Flush(); err != nil {
		t.Fatal(err)
	}
	// This second flush brings level 0 to SizeRatio (2) tables, so both
	// versions of x are merged with no deeper level holding data: the
	// tombstone wins the merge and is then dropped.
	if err := db.Delete("x"); err != nil {
		t.Fatal(err)
	}
	if err := db.Flush(); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := db.Get("x"); err != nil || ok {
		t.Fatalf("Get(x) after delete+flush = (ok=%v,err=%v), want (false,nil)", ok, err)
	}

	// Further flushes run another compaction into level 1; x must stay
	// absent from every table, tombstone included.
	for i := 0; i < 3; i++ {
		if err := db.Put(fmt.Sprintf("filler-%d", i), "v"); err != nil {
			t.Fatal(err)
		}
		if err := db.Flush(); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok, err := db.Get("x"); err != nil || ok {
		t.Fatalf("Get(x) after compaction = (ok=%v,err=%v), want (false,nil)", ok, err)
	}
	for level, readers := range db.levels {
		for _, r := range readers {
			if v, ok, err := r.Get("x"); err != nil || ok {
				t.Fatalf("level %d table %s holds x=%q (err=%v), want tombstone dropped", level, r.Path(), v, err)
			}
		}
	}
}

// TestScanMergesMemtableAndLevelsNewestWins checks that a newer value in
// the memtable shadows an older flushed version on disk.
func TestScanMergesMemtableAndLevelsNewestWins(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(testOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.Put("a", "old"); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("b", "b-val"); err != nil {
		t.Fatal(err)
	}
	if err := db.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("a", "new"); err != nil {
		t.Fatal(err)
	}

	entries, err := db.Scan("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("scan len=%d want 2 (%v)", len(entries), entries)
	}
	if entries[0].Key != "a" || entries[0].Value != "new" {
		t.Fatalf("entries[0]=%+v, want a=new", entries[0])
	}
	if entries[1].Key != "b" || entries[1].Value != "b-val" {
		t.Fatalf("entries[1]=%+v, want b=b-val", entries[1])
	}
}

// TestRecoveryReplaysWalAfterReopen simulates a crash: a fresh DB handle
// opened over the same data directory must see every durably-appended
// write that had not yet been flushed.
func TestRecoveryReplaysWalAfterReopen(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)

	db, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Put("a", "va"); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("b", "vb"); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db2, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()

	if _, ok, err := db2.Get("a"); err != nil || ok {
		t.Fatalf("Get(a) after recovery = (ok=%v,err=%v), want (false,nil)", ok, err)
	}
	if v, ok, err := db2.Get("b"); err != nil || !ok || v != "vb" {
		t.Fatalf("Get(b) after recovery = (%q,%v,%v), want (vb,true,nil)", v, ok, err)
	}
}

// TestRecoveryLoadsExistingSSTables checks that a reopened engine picks up
// on-disk tables written by a prior session without needing them replayed
// through the WAL.
func TestRecoveryLoadsExistingSSTables(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)

	db, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Put("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := db.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db2, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()

	v, ok, err := db2.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get(k) after reopen = (%q,%v,%v), want (v,true,nil)", v, ok, err)
	}
	st, err := db2.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.LevelTableCount[0] != 1 {
		t.Fatalf("level0 table count=%d want 1", st.LevelTableCount[0])
	}
}

func TestInvalidArgumentsRejected(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(testOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.Put("", "v"); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if err := db.Put("k", ""); err == nil {
		t.Fatalf("expected error for empty value")
	}
	if err := db.Put("k", DefaultTombstone); err == nil {
		t.Fatalf("expected error for value colliding with tombstone sentinel")
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(testOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("a", "b"); err == nil {
		t.Fatalf("expected error writing to closed db")
	}
	if err := db.Close(); err == nil {
		t.Fatalf("expected error on double close")
	}
}

func TestInspectReturnsBoundedMergedView(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(testOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for i := 0; i < 10; i++ {
		if err := db.Put(fmt.Sprintf("k%02d", i), "v"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := db.Inspect(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("Inspect(5) returned %d entries, want 5", len(entries))
	}
}

func TestWalRecoverSkipsMalformedTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	w, err := OpenWAL(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(opPut, "a", "va"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("not-a-valid-record-line\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	w2, err := OpenWAL(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Close()
	records, err := w2.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(records) != 1 || records[0].Key != "a" {
		t.Fatalf("records=%v, want exactly the one well-formed record", records)
	}
}
