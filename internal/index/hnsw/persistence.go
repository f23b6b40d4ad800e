package hnsw

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// Core serialization functions.
//
// A save produces two sibling files plus a string-ID sidecar: <path>.graph
// (header + per-node level/neighbor-list structure), <path>.data (raw
// vectors), and <path>.ids (node index -> caller-supplied ID). Each is
// written to a temp file and renamed into place independently, so a
// crash between the three leaves at most a torn id/data file next to a
// valid graph file -- loadFromDiskImpl fails closed in that case rather
// than returning a partially reconstructed index.
func (h *Index) saveToDiskImpl(ctx context.Context, path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := atomicWrite(path+graphFileSuffix, func(file *os.File) error {
		writer := bufio.NewWriter(file)
		defer writer.Flush()
		return h.writeGraphFile(writer)
	}); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}

	if err := atomicWrite(path+dataFileSuffix, func(file *os.File) error {
		writer := bufio.NewWriter(file)
		defer writer.Flush()
		return h.writeDataFile(writer)
	}); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}

	if err := atomicWrite(path+idsFileSuffix, func(file *os.File) error {
		writer := bufio.NewWriter(file)
		defer writer.Flush()
		return h.writeIDsFile(writer)
	}); err != nil {
		return fmt.Errorf("failed to write ids file: %w", err)
	}

	return nil
}

func (h *Index) loadFromDiskImpl(ctx context.Context, path string) error {
	graphFile, err := os.Open(path + graphFileSuffix)
	if err != nil {
		return fmt.Errorf("failed to open graph file: %w", err)
	}
	defer graphFile.Close()

	hdr, levels, neighbors, err := readGraphFile(bufio.NewReader(graphFile))
	if err != nil {
		return fmt.Errorf("failed to read graph file: %w", err)
	}

	dataFile, err := os.Open(path + dataFileSuffix)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	defer dataFile.Close()

	vectors, err := readDataFile(bufio.NewReader(dataFile), hdr.NodeCount)
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}
	if len(vectors) != int(hdr.NodeCount) {
		return fmt.Errorf("data file node count %d does not match graph file node count %d", len(vectors), hdr.NodeCount)
	}

	ids, err := readIDsFile(path+idsFileSuffix, int(hdr.NodeCount))
	if err != nil {
		return fmt.Errorf("failed to read ids file: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.config.Dimension = int(hdr.Dim)
	h.config.M = int(hdr.M)
	h.config.EfConstruction = int(hdr.EfConstruction)

	nodes := make([]*Node, hdr.NodeCount)
	idToIndex := make(map[string]uint32, hdr.NodeCount)
	for i := range nodes {
		if levels[i] == deletedLevelMarker {
			continue
		}
		nodes[i] = &Node{
			ID:     ids[i],
			Vector: vectors[i],
			Level:  int(levels[i]),
			Links:  neighbors[i],
		}
		idToIndex[ids[i]] = uint32(i)
	}

	h.nodes = nodes
	h.idToIndex = idToIndex
	h.maxLevel = int(hdr.MaxLevel)
	h.entryPoint = nil
	if int(hdr.EntryPoint) < len(nodes) {
		h.entryPoint = nodes[hdr.EntryPoint]
	}

	return h.rebuildIndexState()
}

func (h *Index) writeGraphFile(w io.Writer) error {
	if _, err := io.WriteString(w, GraphFileMagic); err != nil {
		return err
	}

	hdr := graphHeader{
		Version:        uint16(FormatVersion),
		Dim:            uint32(h.config.Dimension),
		NodeCount:      uint32(len(h.nodes)),
		MaxLevel:       uint8(h.maxLevel),
		EntryPoint:     h.findNodeID(h.entryPoint),
		M:              uint16(h.config.M),
		EfConstruction: uint16(h.config.EfConstruction),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}

	for _, node := range h.nodes {
		if node == nil {
			if err := binary.Write(w, binary.LittleEndian, uint8(deletedLevelMarker)); err != nil {
				return err
			}
			continue
		}

		if err := binary.Write(w, binary.LittleEndian, uint8(node.Level)); err != nil {
			return err
		}

		for level := 0; level <= node.Level; level++ {
			var links []uint32
			if level < len(node.Links) {
				links = node.Links[level]
			}
			if err := binary.Write(w, binary.LittleEndian, uint16(len(links))); err != nil {
				return err
			}
			for _, id := range links {
				if err := binary.Write(w, binary.LittleEndian, id); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func readGraphFile(r io.Reader) (graphHeader, []uint8, [][][]uint32, error) {
	magic := make([]byte, len(GraphFileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return graphHeader{}, nil, nil, err
	}
	if string(magic) != GraphFileMagic {
		return graphHeader{}, nil, nil, fmt.Errorf("invalid graph file magic: %q", magic)
	}

	var hdr graphHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return graphHeader{}, nil, nil, err
	}
	if hdr.Version > uint16(FormatVersion) {
		return graphHeader{}, nil, nil, fmt.Errorf("unsupported graph file version %d", hdr.Version)
	}

	levels := make([]uint8, hdr.NodeCount)
	neighbors := make([][][]uint32, hdr.NodeCount)

	for i := uint32(0); i < hdr.NodeCount; i++ {
		var level uint8
		if err := binary.Read(r, binary.LittleEndian, &level); err != nil {
			return graphHeader{}, nil, nil, err
		}
		levels[i] = level
		if level == deletedLevelMarker {
			continue
		}

		links := make([][]uint32, int(level)+1)
		for l := 0; l <= int(level); l++ {
			var count uint16
			if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
				return graphHeader{}, nil, nil, err
			}
			ids := make([]uint32, count)
			for k := range ids {
				if err := binary.Read(r, binary.LittleEndian, &ids[k]); err != nil {
					return graphHeader{}, nil, nil, err
				}
				if ids[k] >= hdr.NodeCount {
					return graphHeader{}, nil, nil, fmt.Errorf("corrupt graph file: neighbor id %d out of range (node_count=%d)", ids[k], hdr.NodeCount)
				}
			}
			links[l] = ids
		}
		neighbors[i] = links
	}

	return hdr, levels, neighbors, nil
}

func (h *Index) writeDataFile(w io.Writer) error {
	hdr := dataHeader{
		Dim:       uint32(h.config.Dimension),
		NodeCount: uint32(len(h.nodes)),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}

	for _, node := range h.nodes {
		vec, err := h.vectorForPersistence(node)
		if err != nil {
			return fmt.Errorf("failed to materialize vector for persistence: %w", err)
		}
		for _, v := range vec {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}

	return nil
}

// vectorForPersistence returns the dim-length float32 vector to persist
// for node: its original vector, the quantizer's decompression of its
// compressed form, or an all-zero placeholder for a deleted slot.
func (h *Index) vectorForPersistence(node *Node) ([]float32, error) {
	dim := h.config.Dimension
	if node == nil {
		return make([]float32, dim), nil
	}
	if node.Vector != nil {
		return node.Vector, nil
	}
	if node.CompressedVector != nil && h.quantizer != nil {
		return h.quantizer.Decompress(node.CompressedVector)
	}
	return make([]float32, dim), nil
}

func readDataFile(r io.Reader, expectedNodeCount uint32) ([][]float32, error) {
	var hdr dataHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.NodeCount != expectedNodeCount {
		return nil, fmt.Errorf("data file node count %d does not match graph file node count %d", hdr.NodeCount, expectedNodeCount)
	}

	vectors := make([][]float32, hdr.NodeCount)
	for i := range vectors {
		vec := make([]float32, hdr.Dim)
		for j := range vec {
			if err := binary.Read(r, binary.LittleEndian, &vec[j]); err != nil {
				return nil, err
			}
		}
		vectors[i] = vec
	}

	return vectors, nil
}

// writeIDsFile persists the node-index -> caller ID mapping. Not one of
// the two formats spec'd for the HNSW core, but the public API here
// takes string IDs, and that mapping has to live somewhere to survive a
// save/load round trip.
func (h *Index) writeIDsFile(w io.Writer) error {
	for _, node := range h.nodes {
		var id string
		if node != nil {
			id = node.ID
		}
		idBytes := []byte(id)
		if err := binary.Write(w, binary.LittleEndian, uint16(len(idBytes))); err != nil {
			return err
		}
		if _, err := w.Write(idBytes); err != nil {
			return err
		}
	}
	return nil
}

func readIDsFile(path string, nodeCount int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := bufio.NewReader(file)
	ids := make([]string, nodeCount)
	for i := range ids {
		var length uint16
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, err
		}
		idBytes := make([]byte, length)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return nil, err
		}
		ids[i] = string(idBytes)
	}
	return ids, nil
}

func (h *Index) calculateCRC32() uint32 {
	crc := crc32.NewIEEE()
	binary.Write(crc, binary.LittleEndian, uint32(h.config.M))
	binary.Write(crc, binary.LittleEndian, uint32(h.config.EfConstruction))
	binary.Write(crc, binary.LittleEndian, uint32(h.config.Dimension))
	binary.Write(crc, binary.LittleEndian, uint32(len(h.nodes)))
	return crc.Sum32()
}

// atomicWrite writes finalPath via a temp file + fsync + rename, so a
// reader never observes a partially written file.
func atomicWrite(finalPath string, writeFunc func(*os.File) error) error {
	tempPath := finalPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	writeErr := writeFunc(file)

	if syncErr := file.Sync(); syncErr != nil && writeErr == nil {
		writeErr = syncErr
	}

	if closeErr := file.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write data: %w", writeErr)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// rebuildIndexState reconstructs internal state after loading from disk
func (h *Index) rebuildIndexState() error {
	h.size = 0
	h.entryPointCandidates = h.entryPointCandidates[:0]

	for i, node := range h.nodes {
		if node == nil {
			continue
		}
		h.size++
		if node.Level >= 2 {
			h.entryPointCandidates = append(h.entryPointCandidates, uint32(i))
		}
	}

	return nil
}
