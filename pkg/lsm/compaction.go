package lsm

import "fmt"

// mergeSource is one ordered entry stream participating in a k-way merge.
// Lower index means newer: on a key collision across sources, the lowest
// index's value wins.
type mergeSource struct {
	entries []Entry
	pos     int
}

func (s *mergeSource) peek() (Entry, bool) {
	if s.pos >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[s.pos], true
}

// mergeEntries k-way merges sources already individually sorted ascending,
// newest (lowest index) wins on key collision. The spec notes a min-heap is
// the production choice; this is the reference's linear min-scan, which the
// design notes call an acceptable equivalent at the table counts one
// compaction pass sees.
func mergeEntries(sources []*mergeSource) []Entry {
	var out []Entry
	for {
		minKey := ""
		have := false
		for _, s := range sources {
			e, ok := s.peek()
			if !ok {
				continue
			}
			if !have || e.Key < minKey {
				minKey = e.Key
				have = true
			}
		}
		if !have {
			break
		}

		var winner Entry
		winnerSet := false
		for _, s := range sources {
			e, ok := s.peek()
			if !ok || e.Key != minKey {
				continue
			}
			if !winnerSet {
				winner = e
				winnerSet = true
			}
			s.pos++
		}
		out = append(out, winner)
	}
	return out
}

// dropTombstones removes entries whose value is the tombstone sentinel. It
// must only be applied to the bottommost level a key reaches during this
// compaction pass: dropping a tombstone earlier could resurrect a stale
// value still sitting in an older, not-yet-merged table further down.
func dropTombstones(entries []Entry, tombstone string) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Value == tombstone {
			continue
		}
		out = append(out, e)
	}
	return out
}

// mergeReaders k-way merges every already-open reader (newest first, index
// 0 = newest), matching the k-way merge contract. Tombstones are dropped
// only when bottommost is true: there must be no older level still holding
// a shadowed version of the same key, or dropping would resurrect it.
func mergeReaders(readers []*sstableReader, bottommost bool, tombstone string) ([]Entry, error) {
	sources := make([]*mergeSource, 0, len(readers))
	for _, r := range readers {
		entries, err := r.Entries()
		if err != nil {
			return nil, fmt.Errorf("lsm: compaction read %s: %w", r.Path(), err)
		}
		sources = append(sources, &mergeSource{entries: entries})
	}

	merged := mergeEntries(sources)
	if bottommost {
		merged = dropTombstones(merged, tombstone)
	}
	return merged, nil
}
