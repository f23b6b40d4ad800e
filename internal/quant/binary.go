package quant

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/bits"
	"sort"
	"sync"
)

// BinaryQuantization packs each dimension down to a single bit: 1 if the
// value is at or above that dimension's trained threshold, 0 otherwise.
// Distance between two compressed vectors becomes a Hamming distance over
// packed words (XOR + popcount) instead of a float subtraction per
// dimension — far cheaper, at the cost of only keeping sign-relative-to-
// threshold information per component.
const BinaryQuantization QuantizationType = 2

// BinaryQuantizer implements 1-bit scalar quantization. Each vector
// compresses to ceil(dimension/64) uint64 words; distance between two
// compressed vectors is their Hamming distance, computed as XOR+popcount
// per word.
type BinaryQuantizer struct {
	mu sync.RWMutex

	config *QuantizationConfig

	trained   bool
	dimension int

	// thresholds[d] is the per-dimension cutoff: bit is set when
	// value[d] >= thresholds[d].
	thresholds []float32

	numWords int

	memoryUsage int64
}

// NewBinaryQuantizer creates a new, untrained BinaryQuantizer.
func NewBinaryQuantizer() *BinaryQuantizer {
	return &BinaryQuantizer{}
}

func (bq *BinaryQuantizer) Configure(config *QuantizationConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Type != BinaryQuantization {
		return fmt.Errorf("expected BinaryQuantization type, got %s", config.Type.String())
	}

	bq.mu.Lock()
	defer bq.mu.Unlock()
	bq.config = config
	return nil
}

// Train computes a per-dimension threshold (the median of sampled training
// values) that splits the training set roughly in half per dimension.
func (bq *BinaryQuantizer) Train(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("no training vectors provided")
	}
	if bq.config == nil {
		return fmt.Errorf("quantizer not configured")
	}

	bq.mu.Lock()
	defer bq.mu.Unlock()

	bq.dimension = len(vectors[0])
	for i, vec := range vectors {
		if len(vec) != bq.dimension {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), bq.dimension)
		}
	}

	numTraining := int(float64(len(vectors)) * bq.config.TrainRatio)
	if numTraining < 1 {
		numTraining = len(vectors)
	}
	trainingVectors := sampleForTraining(vectors, numTraining)

	thresholds := make([]float32, bq.dimension)
	column := make([]float32, len(trainingVectors))
	for d := 0; d < bq.dimension; d++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for i, vec := range trainingVectors {
			column[i] = vec[d]
		}
		sort.Slice(column, func(a, b int) bool { return column[a] < column[b] })
		thresholds[d] = column[len(column)/2]
	}
	bq.thresholds = thresholds

	bq.numWords = (bq.dimension + 63) / 64
	bq.trained = true
	bq.memoryUsage = int64(bq.dimension) * 4
	return nil
}

// Compress packs vector into ceil(dimension/64) little-endian uint64
// words, one bit per dimension, laid out as [dim:u32][words...] so a
// compressed blob is self-describing on disk.
func (bq *BinaryQuantizer) Compress(vector []float32) ([]byte, error) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	if !bq.trained {
		return nil, fmt.Errorf("quantizer not trained")
	}
	if len(vector) != bq.dimension {
		return nil, fmt.Errorf("vector dimension %d does not match expected %d", len(vector), bq.dimension)
	}

	words := make([]uint64, bq.numWords)
	for i, v := range vector {
		if v >= bq.thresholds[i] {
			words[i/64] |= 1 << uint(i%64)
		}
	}

	out := make([]byte, 4+bq.numWords*8)
	binary.LittleEndian.PutUint32(out[:4], uint32(bq.dimension))
	for i, w := range words {
		binary.LittleEndian.PutUint64(out[4+i*8:4+i*8+8], w)
	}
	return out, nil
}

// Decompress reconstructs a vector where each component is the trained
// threshold for dimensions whose bit is set, or the threshold's negation
// otherwise — the best float estimate recoverable from a single bit.
func (bq *BinaryQuantizer) Decompress(data []byte) ([]float32, error) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	if !bq.trained {
		return nil, fmt.Errorf("quantizer not trained")
	}
	words, err := bq.unpack(data)
	if err != nil {
		return nil, err
	}

	vector := make([]float32, bq.dimension)
	for i := 0; i < bq.dimension; i++ {
		bit := (words[i/64] >> uint(i%64)) & 1
		if bit == 1 {
			vector[i] = bq.thresholds[i]
		} else {
			vector[i] = -bq.thresholds[i]
		}
	}
	return vector, nil
}

// Distance returns the Hamming distance between two compressed vectors:
// the count of bits that differ, via XOR + popcount per word.
func (bq *BinaryQuantizer) Distance(compressed1, compressed2 []byte) (float32, error) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	if !bq.trained {
		return 0, fmt.Errorf("quantizer not trained")
	}
	w1, err := bq.unpack(compressed1)
	if err != nil {
		return 0, err
	}
	w2, err := bq.unpack(compressed2)
	if err != nil {
		return 0, err
	}

	var dist uint32
	for i := range w1 {
		dist += uint32(bits.OnesCount64(w1[i] ^ w2[i]))
	}
	return float32(dist), nil
}

// DistanceToQuery quantizes query with the trained thresholds and returns
// its Hamming distance to the already-compressed vector.
func (bq *BinaryQuantizer) DistanceToQuery(compressed []byte, query []float32) (float32, error) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	if !bq.trained {
		return 0, fmt.Errorf("quantizer not trained")
	}
	if len(query) != bq.dimension {
		return 0, fmt.Errorf("query dimension %d does not match expected %d", len(query), bq.dimension)
	}

	w1, err := bq.unpack(compressed)
	if err != nil {
		return 0, err
	}

	queryWords := make([]uint64, bq.numWords)
	for i, v := range query {
		if v >= bq.thresholds[i] {
			queryWords[i/64] |= 1 << uint(i%64)
		}
	}

	var dist uint32
	for i := range w1 {
		dist += uint32(bits.OnesCount64(w1[i] ^ queryWords[i]))
	}
	return float32(dist), nil
}

func (bq *BinaryQuantizer) unpack(data []byte) ([]uint64, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("invalid quantized vector: too short (need at least 4 bytes for dimensions)")
	}
	storedDim := binary.LittleEndian.Uint32(data[:4])
	if int(storedDim) != bq.dimension {
		return nil, fmt.Errorf("dimension mismatch: stored %d but expected %d", storedDim, bq.dimension)
	}
	if len(data) != 4+bq.numWords*8 {
		return nil, fmt.Errorf("invalid quantized vector: expected %d bytes but got %d", 4+bq.numWords*8, len(data))
	}

	words := make([]uint64, bq.numWords)
	for i := range words {
		off := 4 + i*8
		words[i] = binary.LittleEndian.Uint64(data[off : off+8])
	}
	return words, nil
}

func sampleForTraining(vectors [][]float32, n int) [][]float32 {
	if n >= len(vectors) {
		return vectors
	}
	step := len(vectors) / n
	if step < 1 {
		step = 1
	}
	sampled := make([][]float32, 0, n)
	for i := 0; i < len(vectors) && len(sampled) < n; i += step {
		sampled = append(sampled, vectors[i])
	}
	return sampled
}

// CompressionRatio is fixed by the 1-bit-per-dimension packing: 32:1
// against a float32 source vector.
func (bq *BinaryQuantizer) CompressionRatio() float32 {
	if !bq.trained {
		return 0
	}
	return 32.0
}

func (bq *BinaryQuantizer) MemoryUsage() int64 {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	return bq.memoryUsage
}

func (bq *BinaryQuantizer) IsTrained() bool {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	return bq.trained
}

func (bq *BinaryQuantizer) Config() *QuantizationConfig {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	if bq.config == nil {
		return nil
	}
	configCopy := *bq.config
	return &configCopy
}

// BinaryQuantizerFactory creates BinaryQuantizer instances.
type BinaryQuantizerFactory struct{}

func NewBinaryQuantizerFactory() *BinaryQuantizerFactory {
	return &BinaryQuantizerFactory{}
}

func (f *BinaryQuantizerFactory) Create(config *QuantizationConfig) (Quantizer, error) {
	if config.Type != BinaryQuantization {
		return nil, fmt.Errorf("unsupported quantization type: %s", config.Type.String())
	}
	bq := NewBinaryQuantizer()
	if err := bq.Configure(config); err != nil {
		return nil, err
	}
	return bq, nil
}

func (f *BinaryQuantizerFactory) Supports(qType QuantizationType) bool {
	return qType == BinaryQuantization
}

func (f *BinaryQuantizerFactory) Name() string {
	return "BinaryQuantizer"
}
