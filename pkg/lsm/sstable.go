package lsm

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// On-disk layout (all integers little-endian), per the wire contract:
//
//	Header (9B):       magic(u32=0x4C534D54) | version(u8=1) | entryCount(u32)
//	Data block:         repeated keyLen(u16) | valLen(u32) | keyBytes | valueBytes
//	Index block:        repeated keyLen(u16) | offset(u32)  | keyBytes  (sparse)
//	Bloom block:        size(u32) | hashCount(u8) | bits
//	Footer (16B):       dataOffset(u32) | indexOffset(u32) | bloomOffset(u32) | magic(u32)
const (
	sstMagic     uint32 = 0x4C534D54
	sstVersion   uint8  = 1
	sstHeaderLen uint32 = 9
	sstFooterLen uint32 = 16
)

type sparseIndexEntry struct {
	key    string
	offset uint32
}

// sstableWriter builds one immutable SSTable file from entries added in
// strictly ascending key order. It buffers the data block in memory and
// emits header, data, index, bloom, and footer as a single sequential
// write on Finish, avoiding any need to seek back and patch the header.
type sstableWriter struct {
	f       *os.File
	opts    Options
	bloom   *BloomFilter
	dataBuf bytes.Buffer
	sparse  []sparseIndexEntry
	count   uint32
	lastKey string
	hasLast bool
}

// NewSSTableWriter prepares a writer over f using opts' bloom filter sizing
// and sparse index interval.
func NewSSTableWriter(f *os.File, opts Options) *sstableWriter {
	opts = opts.withDefaults()
	return &sstableWriter{
		f:     f,
		opts:  opts,
		bloom: NewBloomFilter(opts.BloomFilterSize, opts.BloomHashCount),
	}
}

// Add appends one entry. Keys must arrive in strictly ascending order;
// anything else is ErrUnsortedInput.
func (w *sstableWriter) Add(key, value string) error {
	if w.hasLast && key <= w.lastKey {
		return fmt.Errorf("%w: key %q does not follow %q", ErrUnsortedInput, key, w.lastKey)
	}
	if int(w.count)%w.opts.SparseIndexInterval == 0 {
		w.sparse = append(w.sparse, sparseIndexEntry{
			key:    key,
			offset: sstHeaderLen + uint32(w.dataBuf.Len()),
		})
	}
	w.bloom.Add(key)

	kb, vb := []byte(key), []byte(value)
	var rec [6]byte
	binary.LittleEndian.PutUint16(rec[0:2], uint16(len(kb)))
	binary.LittleEndian.PutUint32(rec[2:6], uint32(len(vb)))
	w.dataBuf.Write(rec[:])
	w.dataBuf.Write(kb)
	w.dataBuf.Write(vb)

	w.lastKey = key
	w.hasLast = true
	w.count++
	return nil
}

// Finish writes header, data, sparse index, Bloom filter, and footer to the
// underlying file and fsyncs it. It does not close the file.
func (w *sstableWriter) Finish() error {
	dataOffset := sstHeaderLen
	indexOffset := dataOffset + uint32(w.dataBuf.Len())

	var idxBuf bytes.Buffer
	for _, e := range w.sparse {
		kb := []byte(e.key)
		var rec [6]byte
		binary.LittleEndian.PutUint16(rec[0:2], uint16(len(kb)))
		binary.LittleEndian.PutUint32(rec[2:6], e.offset)
		idxBuf.Write(rec[:])
		idxBuf.Write(kb)
	}
	bloomOffset := indexOffset + uint32(idxBuf.Len())
	bloomBytes := w.bloom.Serialize()

	var header [9]byte
	binary.LittleEndian.PutUint32(header[0:4], sstMagic)
	header[4] = sstVersion
	binary.LittleEndian.PutUint32(header[5:9], w.count)

	var footer [16]byte
	binary.LittleEndian.PutUint32(footer[0:4], dataOffset)
	binary.LittleEndian.PutUint32(footer[4:8], indexOffset)
	binary.LittleEndian.PutUint32(footer[8:12], bloomOffset)
	binary.LittleEndian.PutUint32(footer[12:16], sstMagic)

	bw := bufio.NewWriter(w.f)
	for _, chunk := range [][]byte{header[:], w.dataBuf.Bytes(), idxBuf.Bytes(), bloomBytes, footer[:]} {
		if _, err := bw.Write(chunk); err != nil {
			return fmt.Errorf("%w: %v", ErrSSTableWriteFailure, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrSSTableWriteFailure, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrSSTableWriteFailure, err)
	}
	return nil
}

// Close closes the underlying file.
func (w *sstableWriter) Close() error {
	return w.f.Close()
}

// WriteSSTable is the one-shot convenience used by flush and compaction: it
// creates path, writes every entry (already sorted ascending), and closes
// the file.
func WriteSSTable(path string, entries []Entry, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSSTableWriteFailure, err)
	}
	w := NewSSTableWriter(f, opts)
	for _, e := range entries {
		if err := w.Add(e.Key, e.Value); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Finish(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// sstableReader is an immutable, read-only view of one SSTable file. It is
// safe to query concurrently once opened.
type sstableReader struct {
	f           *os.File
	path        string
	dataOffset  uint32
	indexOffset uint32
	bloomOffset uint32
	entryCount  uint32
	sparse      []sparseIndexEntry
	bloom       *BloomFilter
}

// OpenSSTable parses the footer, then the header, then the sparse index and
// Bloom filter, and returns a reader. Readers never mutate the file.
func OpenSSTable(path string, opts Options) (*sstableReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	size := uint32(stat.Size())
	if size < sstHeaderLen+sstFooterLen {
		_ = f.Close()
		return nil, ErrCorruptSSTable
	}

	footer := make([]byte, sstFooterLen)
	if _, err := f.ReadAt(footer, int64(size-sstFooterLen)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorruptSSTable, err)
	}
	if binary.LittleEndian.Uint32(footer[12:16]) != sstMagic {
		_ = f.Close()
		return nil, ErrCorruptSSTable
	}
	dataOffset := binary.LittleEndian.Uint32(footer[0:4])
	indexOffset := binary.LittleEndian.Uint32(footer[4:8])
	bloomOffset := binary.LittleEndian.Uint32(footer[8:12])

	header := make([]byte, sstHeaderLen)
	if _, err := f.ReadAt(header, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorruptSSTable, err)
	}
	if binary.LittleEndian.Uint32(header[0:4]) != sstMagic {
		_ = f.Close()
		return nil, ErrCorruptSSTable
	}
	entryCount := binary.LittleEndian.Uint32(header[5:9])

	if indexOffset < dataOffset || bloomOffset < indexOffset || size-sstFooterLen < bloomOffset {
		_ = f.Close()
		return nil, ErrCorruptSSTable
	}

	idxBuf := make([]byte, bloomOffset-indexOffset)
	if _, err := f.ReadAt(idxBuf, int64(indexOffset)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorruptSSTable, err)
	}
	sparse, err := parseSparseIndex(idxBuf)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	bloomBuf := make([]byte, size-sstFooterLen-bloomOffset)
	if _, err := f.ReadAt(bloomBuf, int64(bloomOffset)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorruptSSTable, err)
	}
	bloom, err := DeserializeBloomFilter(bloomBuf)
	if err != nil {
		_ = f.Close()
		return nil, ErrCorruptSSTable
	}
	_ = opts

	return &sstableReader{
		f:           f,
		path:        path,
		dataOffset:  dataOffset,
		indexOffset: indexOffset,
		bloomOffset: bloomOffset,
		entryCount:  entryCount,
		sparse:      sparse,
		bloom:       bloom,
	}, nil
}

func parseSparseIndex(buf []byte) ([]sparseIndexEntry, error) {
	var out []sparseIndexEntry
	pos := 0
	for pos < len(buf) {
		if pos+6 > len(buf) {
			return nil, ErrCorruptSSTable
		}
		klen := int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
		offset := binary.LittleEndian.Uint32(buf[pos+2 : pos+6])
		pos += 6
		if pos+klen > len(buf) {
			return nil, ErrCorruptSSTable
		}
		key := string(buf[pos : pos+klen])
		pos += klen
		out = append(out, sparseIndexEntry{key: key, offset: offset})
	}
	return out, nil
}

// Path returns the file path backing this reader.
func (r *sstableReader) Path() string { return r.path }

// EntryCount returns the header's recorded entry count.
func (r *sstableReader) EntryCount() uint32 { return r.entryCount }

// Size returns the file size in bytes.
func (r *sstableReader) Size() (int64, error) {
	stat, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// Get looks up key, using the Bloom filter to fast-path a negative and the
// sparse index to bound the linear scan window.
func (r *sstableReader) Get(key string) (string, bool, error) {
	if !r.bloom.MightContain(key) {
		return "", false, nil
	}

	scanStart, scanEnd := r.dataOffset, r.indexOffset
	for _, e := range r.sparse {
		if e.key > key {
			scanEnd = e.offset
			break
		}
		scanStart = e.offset
	}

	buf := make([]byte, scanEnd-scanStart)
	if _, err := r.f.ReadAt(buf, int64(scanStart)); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrCorruptSSTable, err)
	}
	pos := 0
	for pos < len(buf) {
		k, v, next, err := decodeRecord(buf, pos)
		if err != nil {
			return "", false, err
		}
		if k == key {
			return v, true, nil
		}
		if k > key {
			return "", false, nil
		}
		pos = next
	}
	return "", false, nil
}

// Scan returns every entry with lo <= key <= hi, in ascending order. An
// empty hi means unbounded (no upper bound).
func (r *sstableReader) Scan(lo, hi string) ([]Entry, error) {
	buf := make([]byte, r.indexOffset-r.dataOffset)
	if _, err := r.f.ReadAt(buf, int64(r.dataOffset)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSSTable, err)
	}
	var out []Entry
	pos := 0
	for pos < len(buf) {
		k, v, next, err := decodeRecord(buf, pos)
		if err != nil {
			return nil, err
		}
		if hi != "" && k > hi {
			break
		}
		if k >= lo {
			out = append(out, Entry{Key: k, Value: v})
		}
		pos = next
	}
	return out, nil
}

// Entries returns every record in the data block, in ascending order.
func (r *sstableReader) Entries() ([]Entry, error) {
	buf := make([]byte, r.indexOffset-r.dataOffset)
	if _, err := r.f.ReadAt(buf, int64(r.dataOffset)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSSTable, err)
	}
	out := make([]Entry, 0, r.entryCount)
	pos := 0
	for pos < len(buf) {
		k, v, next, err := decodeRecord(buf, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: k, Value: v})
		pos = next
	}
	return out, nil
}

// Close closes the underlying file.
func (r *sstableReader) Close() error {
	return r.f.Close()
}

func decodeRecord(buf []byte, pos int) (key, value string, next int, err error) {
	if pos+6 > len(buf) {
		return "", "", 0, ErrCorruptSSTable
	}
	klen := int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
	vlen := int(binary.LittleEndian.Uint32(buf[pos+2 : pos+6]))
	pos += 6
	if pos+klen+vlen > len(buf) {
		return "", "", 0, ErrCorruptSSTable
	}
	key = string(buf[pos : pos+klen])
	pos += klen
	value = string(buf[pos : pos+vlen])
	pos += vlen
	return key, value, pos, nil
}
