package lsm

import "errors"

// Error taxonomy for the storage engine. Recoverable conditions (WAL tail
// corruption, unlink of an already-removed file, a corrupt-but-isolated
// SSTable found at load time) are logged and locally recovered rather than
// returned; everything else surfaces to the caller.
var (
	// ErrInvalidArgument marks a key/value that violates a format
	// constraint: empty key or value, a key containing the WAL field
	// delimiter, or a value equal to the tombstone sentinel. Non-ascending
	// input handed to the SSTable writer is reported as ErrUnsortedInput.
	ErrInvalidArgument = errors.New("lsm: invalid argument")

	// ErrCorruptFilter marks a malformed Bloom filter on deserialize.
	ErrCorruptFilter = errors.New("lsm: corrupt bloom filter")

	// ErrCorruptSSTable marks a bad magic number, a truncated file, or a
	// malformed record discovered while opening or reading an SSTable.
	ErrCorruptSSTable = errors.New("lsm: corrupt sstable")

	// ErrCorruptWalRecord marks a malformed WAL line encountered during
	// recovery. Recover skips malformed lines silently and neither returns
	// nor logs this value.
	ErrCorruptWalRecord = errors.New("lsm: corrupt wal record")

	// ErrWalWriteFailure marks a failed durable append to the WAL.
	ErrWalWriteFailure = errors.New("lsm: wal write failure")

	// ErrSSTableWriteFailure marks a failed write while building an
	// SSTable file.
	ErrSSTableWriteFailure = errors.New("lsm: sstable write failure")

	// ErrUnsortedInput marks input handed to the SSTable writer that is
	// not in strictly ascending key order.
	ErrUnsortedInput = errors.New("lsm: sstable input not sorted ascending")

	// ErrNotOpen marks an operation attempted before the engine finished
	// opening.
	ErrNotOpen = errors.New("lsm: engine is not open")

	// ErrAlreadyClosed marks an operation attempted on a closed engine.
	ErrAlreadyClosed = errors.New("lsm: engine already closed")
)
