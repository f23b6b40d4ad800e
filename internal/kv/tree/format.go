package tree

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/alexvdb/alexvdb/internal/kv/leaf"
)

// errCorruptSnapshot wraps any structural problem found while reading a
// snapshot file (bad magic, version, or checksum).
var errCorruptSnapshot = errors.New("tree: corrupt snapshot")

// fileMagic identifies an ALEX tree snapshot. Readers must reject any
// file that doesn't start with these four bytes.
const fileMagic = "ALX1"

const formatVersion uint16 = 1

const tombstoneFlag = 1 << 0

// Save writes a full snapshot of the tree to path using a temp-file
// write, fsync, and atomic rename, so a crash mid-write never leaves a
// partially-written file visible at path. The snapshot carries every
// entry, tombstoned or not, so Load reproduces the tree's exact
// observable state rather than just its live keys.
func (t *Tree) Save(path string) error {
	entries := t.rangeNode(t.root, math.MinInt64, math.MaxInt64, nil)

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("tree: create snapshot temp file: %w", err)
	}

	if err := writeSnapshot(f, t, entries); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("tree: fsync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("tree: close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("tree: rename snapshot into place: %w", err)
	}
	dir, derr := os.Open(filepath.Dir(path))
	if derr == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

func writeSnapshot(f *os.File, t *Tree, entries []leaf.Entry) error {
	w := bufio.NewWriter(f)
	crc := crc32.NewIEEE()
	mw := io.MultiWriter(w, crc)

	if _, err := mw.Write([]byte(fileMagic)); err != nil {
		return err
	}
	header := struct {
		Version      uint16
		LeafCapacity uint32
		Fanout       uint32
		GapRatioBits uint64
		EntryCount   uint32
	}{
		Version:      formatVersion,
		LeafCapacity: uint32(t.leafCapacity),
		Fanout:       uint32(t.fanout),
		GapRatioBits: math.Float64bits(t.gapRatio),
		EntryCount:   uint32(len(entries)),
	}
	if err := binary.Write(mw, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, e := range entries {
		var flags uint8
		if e.Tombstone {
			flags |= tombstoneFlag
		}
		rec := struct {
			Key    int64
			Offset uint64
			Flags  uint8
		}{Key: e.Key, Offset: e.Offset, Flags: flags}
		if err := binary.Write(mw, binary.LittleEndian, rec); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, crc.Sum32()); err != nil {
		return err
	}
	return w.Flush()
}

// Load rebuilds a tree from a snapshot previously written by Save.
func Load(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tree: open snapshot: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	crc := crc32.NewIEEE()
	tr := io.TeeReader(r, crc)

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(tr, magic); err != nil {
		return nil, fmt.Errorf("tree: read snapshot magic: %w", err)
	}
	if string(magic) != fileMagic {
		return nil, fmt.Errorf("tree: %w: bad magic %q", errCorruptSnapshot, magic)
	}

	var header struct {
		Version      uint16
		LeafCapacity uint32
		Fanout       uint32
		GapRatioBits uint64
		EntryCount   uint32
	}
	if err := binary.Read(tr, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("tree: read snapshot header: %w", err)
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("tree: %w: unsupported version %d", errCorruptSnapshot, header.Version)
	}

	keys := make([]int64, 0, header.EntryCount)
	offsets := make([]uint64, 0, header.EntryCount)
	tombstoned := make([]bool, 0, header.EntryCount)
	for i := uint32(0); i < header.EntryCount; i++ {
		var rec struct {
			Key    int64
			Offset uint64
			Flags  uint8
		}
		if err := binary.Read(tr, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("tree: %w: truncated record %d: %v", errCorruptSnapshot, i, err)
		}
		keys = append(keys, rec.Key)
		offsets = append(offsets, rec.Offset)
		tombstoned = append(tombstoned, rec.Flags&tombstoneFlag != 0)
	}

	var wantCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &wantCRC); err != nil {
		return nil, fmt.Errorf("tree: read snapshot checksum: %w", err)
	}
	if gotCRC := crc.Sum32(); gotCRC != wantCRC {
		return nil, fmt.Errorf("tree: %w: checksum mismatch (got %x want %x)", errCorruptSnapshot, gotCRC, wantCRC)
	}

	gapRatio := math.Float64frombits(header.GapRatioBits)
	t := BulkBuild(keys, offsets,
		WithLeafCapacity(int(header.LeafCapacity)),
		WithGapRatio(gapRatio),
		WithFanout(int(header.Fanout)),
	)
	for i, tomb := range tombstoned {
		if tomb {
			t.Delete(keys[i])
		}
	}
	return t, nil
}
