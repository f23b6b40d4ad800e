package store

import (
	"encoding/binary"
	"os"
)

// writeManifest atomically records the log tail a snapshot covers, via
// the same temp-file-plus-rename pattern the tree and log packages use
// for their own durable writes.
func writeManifest(path string, coveredTail uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, coveredTail)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readManifest returns the covered-tail offset recorded by
// writeManifest, or 0 if the manifest is missing or malformed (forcing
// a full log replay, which is always correct, just slower).
func readManifest(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil || len(data) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(data)
}
