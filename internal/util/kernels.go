package util

import "github.com/klauspost/cpuid/v2"

// kernelTier names a dispatch tier selected once at process start based
// on the running CPU's feature set, from widest (fastest) to narrowest.
// All tiers are portable Go; there is no hand-written assembly here --
// the tiering exists so the distance kernels can be swapped for
// genuinely vectorized implementations later without touching any
// caller, the same role cpuid-gated dispatch plays in AKJUS-bsc-erigon.
type kernelTier int

const (
	tierScalar kernelTier = iota
	tierSSE
	tierAVX2
	tierAVX512
)

// selectedTier is resolved once at package init and never changes
// after that, so every call site pays only the cost of an interface
// dispatch, not a repeated feature check.
var selectedTier = detectTier()

func detectTier() kernelTier {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return tierAVX512
	case cpuid.CPU.Supports(cpuid.AVX2):
		return tierAVX2
	case cpuid.CPU.Supports(cpuid.SSE2):
		return tierSSE
	default:
		return tierScalar
	}
}

// SelectedTierName reports which dispatch tier this process resolved
// to, for diagnostics and tests.
func SelectedTierName() string {
	switch selectedTier {
	case tierAVX512:
		return "avx512"
	case tierAVX2:
		return "avx2"
	case tierSSE:
		return "sse"
	default:
		return "scalar"
	}
}

// kernelSet is the function-pointer table every tier fills in
// identically in behavior (every tier is a correctness-equivalent,
// portable Go body); only the loop-unrolling width differs between
// tiers, chosen to roughly match the SIMD lane width the tier name
// implies.
type kernelSet struct {
	l2           DistanceFunc
	innerProduct DistanceFunc
	cosine       DistanceFunc
}

var kernels = buildKernelSet(selectedTier)

func buildKernelSet(tier kernelTier) kernelSet {
	width := 1
	switch tier {
	case tierAVX512:
		width = 16
	case tierAVX2:
		width = 8
	case tierSSE:
		width = 4
	}
	return kernelSet{
		l2:           l2Kernel(width),
		innerProduct: innerProductKernel(width),
		cosine:       cosineKernel(width),
	}
}

// l2Kernel returns an L2-distance function that accumulates `width`
// independent partial sums before combining them, reducing the
// data-dependency chain length a real SIMD lowering of this loop would
// also need to break to use its lanes fully.
func l2Kernel(width int) DistanceFunc {
	return func(a, b []float32) float32 {
		if len(a) != len(b) {
			panic("vector dimensions must match")
		}
		sums := make([]float32, width)
		n := len(a)
		lanes := n - n%width
		for i := 0; i < lanes; i += width {
			for lane := 0; lane < width; lane++ {
				diff := a[i+lane] - b[i+lane]
				sums[lane] += diff * diff
			}
		}
		var total float32
		for _, s := range sums {
			total += s
		}
		for i := lanes; i < n; i++ {
			diff := a[i] - b[i]
			total += diff * diff
		}
		return sqrtf32(total)
	}
}

func innerProductKernel(width int) DistanceFunc {
	return func(a, b []float32) float32 {
		if len(a) != len(b) {
			panic("vector dimensions must match")
		}
		sums := make([]float32, width)
		n := len(a)
		lanes := n - n%width
		for i := 0; i < lanes; i += width {
			for lane := 0; lane < width; lane++ {
				sums[lane] += a[i+lane] * b[i+lane]
			}
		}
		var total float32
		for _, s := range sums {
			total += s
		}
		for i := lanes; i < n; i++ {
			total += a[i] * b[i]
		}
		return -total // negative for max-heap nearest-neighbor convention
	}
}

func cosineKernel(width int) DistanceFunc {
	return func(a, b []float32) float32 {
		if len(a) != len(b) {
			panic("vector dimensions must match")
		}
		dotSums := make([]float32, width)
		aSums := make([]float32, width)
		bSums := make([]float32, width)
		n := len(a)
		lanes := n - n%width
		for i := 0; i < lanes; i += width {
			for lane := 0; lane < width; lane++ {
				av, bv := a[i+lane], b[i+lane]
				dotSums[lane] += av * bv
				aSums[lane] += av * av
				bSums[lane] += bv * bv
			}
		}
		var dot, normA, normB float32
		for lane := 0; lane < width; lane++ {
			dot += dotSums[lane]
			normA += aSums[lane]
			normB += bSums[lane]
		}
		for i := lanes; i < n; i++ {
			av, bv := a[i], b[i]
			dot += av * bv
			normA += av * av
			normB += bv * bv
		}
		normA = sqrtf32(normA)
		normB = sqrtf32(normB)
		if normA == 0 || normB == 0 {
			return 1.0
		}
		return 1.0 - dot/(normA*normB)
	}
}

// DispatchedDistanceFunc returns the CPU-tier-dispatched kernel for
// metric, replacing the direct *_func references GetDistanceFunc used
// to return.
func DispatchedDistanceFunc(metric DistanceMetric) (DistanceFunc, error) {
	switch metric {
	case L2Distance:
		return kernels.l2, nil
	case InnerProduct:
		return kernels.innerProduct, nil
	case CosineDistance:
		return kernels.cosine, nil
	default:
		return nil, errUnsupportedMetric(metric)
	}
}
