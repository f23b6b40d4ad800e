// Package model implements the single-feature linear regression that
// backs every gapped leaf and inner node in the learned index: given a
// key, predict the array slot it should occupy.
package model

import "math"

// Linear is a fitted `slot = slope*key + intercept` model plus the
// worst-case prediction error observed over the data it was trained on.
// A leaf or inner node consults MaxError to bound how far a local search
// must scan around the prediction.
type Linear struct {
	Slope     float64
	Intercept float64
	MaxError  int64
}

// FitDense trains a model over keys[i] -> i, i.e. the keys are assumed
// to occupy slots 0..len(keys)-1 with no gaps. Used for inner-node
// routing models, which predict a child index rather than a gapped
// leaf slot.
func FitDense(keys []int64) Linear {
	return fitPositions(keys, denseSlots(len(keys)), fullSamples(len(keys)))
}

// FitSlots trains a model over explicit (key, slot) pairs -- the form a
// gapped leaf needs, since present keys are scattered across a
// capacity larger than their count. Trains on every pair.
func FitSlots(keys []int64, slots []int64) Linear {
	return fitPositions(keys, slots, fullSamples(len(keys)))
}

// FitSlotsSampled is FitSlots using roughly sqrt(n) evenly spaced
// samples instead of the full slice (the CDFShop approach): on a
// near-linear key distribution it reaches the same slope/intercept as
// FitSlots at a fraction of the build cost.
func FitSlotsSampled(keys []int64, slots []int64) Linear {
	return fitPositions(keys, slots, sampledIndices(len(keys)))
}

func denseSlots(n int) []int64 {
	slots := make([]int64, n)
	for i := range slots {
		slots[i] = int64(i)
	}
	return slots
}

// fullSamples returns every index 0..n-1.
func fullSamples(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// sampledIndices picks every floor(sqrt(n))-th position in [0, n), plus
// the last position n-1 when the stride does not land on it.
func sampledIndices(n int) []int {
	if n == 0 {
		return nil
	}
	step := int(math.Sqrt(float64(n)))
	if step < 1 {
		step = 1
	}
	idx := make([]int, 0, n/step+1)
	for i := 0; i < n; i += step {
		idx = append(idx, i)
	}
	if idx[len(idx)-1] != n-1 {
		idx = append(idx, n-1)
	}
	return idx
}

// fitPositions runs OLS over (keys[i], slots[i]) for i in sample, then
// scans the full key slice once to record the max absolute prediction
// error against the true slots.
func fitPositions(keys []int64, slots []int64, sample []int) Linear {
	n := len(keys)
	if n == 0 {
		return Linear{}
	}
	if n == 1 {
		return Linear{Slope: 0, Intercept: float64(slots[0]), MaxError: 0}
	}

	var sumX, sumY, sumXY, sumXX float64
	for _, i := range sample {
		x := float64(keys[i])
		y := float64(slots[i])
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	count := float64(len(sample))
	denom := count*sumXX - sumX*sumX

	var slope, intercept float64
	if denom == 0 {
		// All sampled keys are equal: the model degenerates to a
		// constant prediction. Callers must treat the owning leaf as
		// small (max error below reflects the full slot range).
		slope = 0
		intercept = sumY / count
	} else {
		slope = (count*sumXY - sumX*sumY) / denom
		intercept = (sumY - slope*sumX) / count
	}

	lm := Linear{Slope: slope, Intercept: intercept}
	lm.MaxError = maxAbsError(lm, keys, slots)
	return lm
}

// maxAbsError scans every (key, true slot) pair once and returns the
// largest absolute difference between predicted and true slot.
func maxAbsError(lm Linear, keys []int64, slots []int64) int64 {
	var maxErr int64
	for i, k := range keys {
		predicted := lm.Predict(k)
		diff := predicted - slots[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > maxErr {
			maxErr = diff
		}
	}
	return maxErr
}

// Predict returns the raw (unclamped) slot prediction for key.
func (lm Linear) Predict(key int64) int64 {
	return int64(math.Round(lm.Slope*float64(key) + lm.Intercept))
}

// PredictClamped returns Predict clamped to [0, capacity-1], the form
// callers actually index with.
func (lm Linear) PredictClamped(key int64, capacity int) int64 {
	p := lm.Predict(key)
	if p < 0 {
		return 0
	}
	if p >= int64(capacity) {
		return int64(capacity) - 1
	}
	return p
}
