// Package log implements the append-only, mmap-backed record log (spec
// component C4) that the tree (C3) addresses values through: a tree
// leaf slot holds an offset into this log, never the value bytes
// directly. Growth is handled by unmapping, truncating the backing
// file, and remapping -- the same sequence internal/memory's
// MemoryMap uses, but through github.com/edsrzf/mmap-go instead of raw
// syscalls, and with golang.org/x/sys/unix.Fdatasync backing the
// durability watermark.
package log

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// recordHeaderSize is the fixed-size prefix of every record: a little
// endian uint32 payload length, a one-byte flag set, and the int64 key
// the record belongs to.
const recordHeaderSize = 4 + 1 + 8

const tombstoneFlag = 1 << 0

// ErrCorrupted is returned by Open when the tail of the log file cannot
// be parsed as a sequence of well-formed records; the log has already
// been truncated back to the last good record boundary by the time
// this is returned, and the caller may keep using the returned Log.
var ErrCorrupted = errors.New("log: corrupted tail record")

// defaultInitialSize is the file size a freshly created log starts
// with; Append grows it geometrically from there.
const defaultInitialSize = 4 << 20 // 4 MiB

// growthFactor is how much the backing file is scaled up by when an
// Append would overrun it.
const growthFactor = 2

// Log is a single append-only file of length-prefixed records, mapped
// into memory for zero-copy reads. Only one writer may call Append at
// a time (the storage layer above enforces this); Read may run
// concurrently with a writer because records already durable never
// change.
type Log struct {
	mu   sync.RWMutex
	file *os.File
	data mmap.MMap
	path string

	size   int64 // current backing file / mapping size
	tail   int64 // offset the next record will be written at
	synced int64 // durable watermark: bytes fsynced to disk
}

// Open opens or creates the log file at path, mapping it into memory
// and recovering a usable tail: any trailing bytes that don't form a
// complete, well-formed record are discarded (the file is truncated to
// the last good record boundary) and ErrCorrupted is returned alongside
// the otherwise-usable *Log.
func Open(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log: open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("log: stat %s: %w", path, err)
	}

	writtenSize := stat.Size()
	size := writtenSize
	if size == 0 {
		size = defaultInitialSize
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, fmt.Errorf("log: truncate new log: %w", err)
		}
	}

	data, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("log: mmap %s: %w", path, err)
	}

	l := &Log{file: file, data: data, path: path, size: size}

	tail, recoverErr := l.recoverTail(writtenSize)
	l.tail = tail
	l.synced = tail

	if recoverErr != nil {
		if err := file.Truncate(tail); err != nil {
			l.Close()
			return nil, fmt.Errorf("log: truncate corrupted tail: %w", err)
		}
		l.size = tail
		return l, fmt.Errorf("%w: %v", ErrCorrupted, recoverErr)
	}
	return l, nil
}

// recoverTail walks records from the start of the mapping up to
// writtenSize, stopping at the first incomplete or malformed record.
// The scan cost is proportional to the number of records ever written
// to this file, paid once at Open.
func (l *Log) recoverTail(writtenSize int64) (tail int64, err error) {
	var offset int64
	for offset+recordHeaderSize <= writtenSize {
		length := binary.LittleEndian.Uint32(l.data[offset : offset+4])
		recordEnd := offset + recordHeaderSize + int64(length)
		if recordEnd > writtenSize {
			return offset, fmt.Errorf("record at offset %d overruns file (want %d bytes, have %d)", offset, recordEnd, writtenSize)
		}
		offset = recordEnd
	}
	if offset < writtenSize {
		return offset, fmt.Errorf("%d trailing bytes at offset %d do not form a record header", writtenSize-offset, offset)
	}
	return offset, nil
}

// Append writes a new record for key, tombstoned if value is nil, and
// returns the byte offset a tree leaf should store to find it again.
// Append does not itself make the record durable -- call Sync (or rely
// on the storage layer's batched sync policy) before acknowledging a
// write to a caller that needs a durability guarantee.
func (l *Log) Append(key int64, value []byte) (offset uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	flags := uint8(0)
	if value == nil {
		flags |= tombstoneFlag
	}
	need := int64(recordHeaderSize + len(value))
	if l.tail+need > l.size {
		if err := l.growLocked(l.tail + need); err != nil {
			return 0, err
		}
	}

	at := l.tail
	binary.LittleEndian.PutUint32(l.data[at:at+4], uint32(len(value)))
	l.data[at+4] = flags
	binary.LittleEndian.PutUint64(l.data[at+5:at+13], uint64(key))
	copy(l.data[at+recordHeaderSize:at+need], value)

	l.tail += need
	return uint64(at), nil
}

// growLocked grows the backing file and remapping to at least
// minSize, doubling from the current size (or defaultInitialSize) each
// step. Callers must hold l.mu.
func (l *Log) growLocked(minSize int64) error {
	newSize := l.size
	if newSize == 0 {
		newSize = defaultInitialSize
	}
	for newSize < minSize {
		newSize *= growthFactor
	}

	if err := l.data.Flush(); err != nil {
		return fmt.Errorf("log: flush before grow: %w", err)
	}
	if err := l.data.Unmap(); err != nil {
		return fmt.Errorf("log: unmap before grow: %w", err)
	}
	if err := l.file.Truncate(newSize); err != nil {
		return fmt.Errorf("log: truncate to grow: %w", err)
	}
	data, err := mmap.MapRegion(l.file, int(newSize), mmap.RDWR, 0, 0)
	if err != nil {
		return fmt.Errorf("log: remap after grow: %w", err)
	}
	l.data = data
	l.size = newSize
	return nil
}

// Record is a single decoded log entry, as returned by Read.
type Record struct {
	Key       int64
	Value     []byte // nil for a tombstone record
	Tombstone bool
}

// Read decodes the record at offset. The returned Value aliases the
// log's memory-mapped region and must not be retained past the next
// call that might grow (and therefore remap) the log.
func (l *Log) Read(offset uint64) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	at := int64(offset)
	if at < 0 || at+recordHeaderSize > l.tail {
		return Record{}, fmt.Errorf("log: offset %d out of range", offset)
	}
	length := binary.LittleEndian.Uint32(l.data[at : at+4])
	flags := l.data[at+4]
	key := int64(binary.LittleEndian.Uint64(l.data[at+5 : at+13]))
	end := at + recordHeaderSize + int64(length)
	if end > l.tail {
		return Record{}, fmt.Errorf("log: record at offset %d overruns log tail", offset)
	}

	rec := Record{Key: key, Tombstone: flags&tombstoneFlag != 0}
	if !rec.Tombstone {
		rec.Value = l.data[at+recordHeaderSize : end]
	}
	return rec, nil
}

// Tail returns the offset the next Append will write at -- equivalently,
// the number of durable-or-not bytes currently appended.
func (l *Log) Tail() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tail
}

// DurableWatermark returns the offset up to which Append'd records are
// guaranteed fsynced to disk.
func (l *Log) DurableWatermark() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.synced
}

// Sync flushes the mapping and fsyncs the backing file's data, then
// advances the durable watermark to the current tail.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.syncLocked()
}

func (l *Log) syncLocked() error {
	if err := l.data.Flush(); err != nil {
		return fmt.Errorf("log: flush mapping: %w", err)
	}
	if err := unix.Fdatasync(int(l.file.Fd())); err != nil {
		return fmt.Errorf("log: fdatasync: %w", err)
	}
	l.synced = l.tail
	return nil
}

// Close syncs and unmaps the log, trims the backing file to the tail
// (dropping the unused preallocated space), then closes the file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if err := l.syncLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := l.data.Unmap(); err != nil {
		errs = append(errs, fmt.Errorf("log: unmap: %w", err))
	}
	if err := l.file.Truncate(l.tail); err != nil {
		errs = append(errs, fmt.Errorf("log: truncate to tail: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("log: close file: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Replay calls fn for every record from offset 0 up to the current
// tail, in append order, for use during storage-layer recovery. fn's
// Record.Value aliases the log's backing memory and must not be
// retained past the call.
func (l *Log) Replay(fn func(offset uint64, rec Record) error) error {
	return l.ReplayFrom(0, fn)
}

// ReplayFrom is Replay starting at startOffset instead of the
// beginning of the file, for recovery that resumes after a known-good
// snapshot instead of rebuilding from scratch.
func (l *Log) ReplayFrom(startOffset uint64, fn func(offset uint64, rec Record) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	offset := int64(startOffset)
	for offset+recordHeaderSize <= l.tail {
		length := binary.LittleEndian.Uint32(l.data[offset : offset+4])
		flags := l.data[offset+4]
		key := int64(binary.LittleEndian.Uint64(l.data[offset+5 : offset+13]))
		end := offset + recordHeaderSize + int64(length)

		rec := Record{Key: key, Tombstone: flags&tombstoneFlag != 0}
		if !rec.Tombstone {
			rec.Value = l.data[offset+recordHeaderSize : end]
		}
		if err := fn(uint64(offset), rec); err != nil {
			return err
		}
		offset = end
	}
	return nil
}
