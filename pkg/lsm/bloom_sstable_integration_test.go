package lsm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBloomFilterRoundTrip(t *testing.T) {
	b := NewBloomFilter(1024, 7)
	keys := []string{"alpha", "beta", "gamma"}
	for _, k := range keys {
		b.Add(k)
	}

	buf := b.Serialize()
	if len(buf) == 0 {
		t.Fatalf("serialized bloom is empty")
	}

	b2, err := DeserializeBloomFilter(buf)
	if err != nil {
		t.Fatalf("DeserializeBloomFilter: %v", err)
	}
	for _, k := range keys {
		if !b2.MightContain(k) {
			t.Fatalf("restored bloom missing known key %q", k)
		}
	}
}

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	b := NewBloomFilter(2048, 5)
	var added []string
	for i := 0; i < 500; i++ {
		k := "key-" + string(rune('a'+i%26)) + string(rune('0'+i%10))
		b.Add(k)
		added = append(added, k)
	}
	for _, k := range added {
		if !b.MightContain(k) {
			t.Fatalf("false negative for %q", k)
		}
	}
}

func TestSSTableGetWithBloomHitAndMiss(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "table-0.sst")
	opts := DefaultOptions()

	entries := []Entry{
		{Key: "a", Value: "va"},
		{Key: "b", Value: "vb"},
		{Key: "c", Value: "vc"},
	}
	if err := WriteSSTable(path, entries, opts); err != nil {
		t.Fatalf("WriteSSTable: %v", err)
	}

	r, err := OpenSSTable(path, opts)
	if err != nil {
		t.Fatalf("OpenSSTable: %v", err)
	}
	defer r.Close()

	if val, ok, err := r.Get("a"); err != nil || !ok || val != "va" {
		t.Fatalf("Get(a) = (%q,%v,%v), want (va,true,nil)", val, ok, err)
	}
	if _, ok, err := r.Get("z"); err != nil {
		t.Fatalf("Get(z) error: %v", err)
	} else if ok {
		t.Fatalf("Get(z) unexpectedly found")
	}
}

func TestSSTableScanAndEntriesSorted(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "table-0.sst")
	opts := DefaultOptions()
	opts.SparseIndexInterval = 2

	entries := []Entry{
		{Key: "a", Value: "va"},
		{Key: "b", Value: "vb"},
		{Key: "c", Value: "vc"},
		{Key: "d", Value: "vd"},
		{Key: "e", Value: "ve"},
	}
	if err := WriteSSTable(path, entries, opts); err != nil {
		t.Fatalf("WriteSSTable: %v", err)
	}

	r, err := OpenSSTable(path, opts)
	if err != nil {
		t.Fatalf("OpenSSTable: %v", err)
	}
	defer r.Close()

	got, err := r.Scan("b", "d")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("Scan len=%d want %d (%v)", len(got), len(want), got)
	}
	for i, e := range got {
		if e.Key != want[i] {
			t.Fatalf("Scan[%d]=%q want %q", i, e.Key, want[i])
		}
	}

	all, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	for i := 1; i < len(all); i++ {
		if all[i].Key <= all[i-1].Key {
			t.Fatalf("entries not strictly ascending at %d: %q <= %q", i, all[i].Key, all[i-1].Key)
		}
	}
}

func TestOpenSSTableRejectsCorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.sst")
	if err := os.WriteFile(path, []byte("not a valid sstable"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSSTable(path, DefaultOptions()); err == nil {
		t.Fatalf("expected error opening corrupt sstable")
	}
}
