package metrology

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptySamples reports an aggregation attempt over no samples.
var ErrEmptySamples = errors.New("metrology: cannot aggregate empty sample set")

// AggregateConfig tunes the robust reduction of a capture run.
type AggregateConfig struct {
	// MedianToleranceMM keeps only samples whose IPD is within this
	// distance of the median.
	MedianToleranceMM float64

	// MinRetainedFraction guards against over-filtering: when fewer
	// than this fraction survives, the full unfiltered set is used.
	MinRetainedFraction float64

	// PoseWeightScale controls how strongly pose error discounts a
	// sample: weight = 1 / (1 + poseError*scale).
	PoseWeightScale float64

	// StabilitySteepness maps the retained set's IPD deviation to the
	// final stability score. Stricter than the real-time tracker.
	StabilitySteepness float64
}

// DefaultAggregateConfig returns the standard reduction parameters.
func DefaultAggregateConfig() AggregateConfig {
	return AggregateConfig{
		MedianToleranceMM:   1.0,
		MinRetainedFraction: 0.4,
		PoseWeightScale:     10,
		StabilitySteepness:  40,
	}
}

// Aggregate reduces a completed capture run to one clinical measurement.
//
// Outlier rejection keeps samples near the median IPD, pose-weighted
// means produce the final IPD and distance, and the monocular PDs are
// rescaled so that left + right equals the reported total exactly.
func Aggregate(samples []Measurement, cfg AggregateConfig) (Measurement, error) {
	if len(samples) == 0 {
		return Measurement{}, ErrEmptySamples
	}

	medianIPD := median(extract(samples, func(m Measurement) float64 { return m.IPDMM }))

	retained := make([]Measurement, 0, len(samples))
	for _, m := range samples {
		if math.Abs(m.IPDMM-medianIPD) <= cfg.MedianToleranceMM {
			retained = append(retained, m)
		}
	}
	if float64(len(retained)) < cfg.MinRetainedFraction*float64(len(samples)) {
		// The run itself is too noisy for the filter to be meaningful.
		retained = samples
	}

	// Pose-weighted means: samples captured with the head square to the
	// camera count more.
	var ipdSum, distSum, weightSum float64
	for _, m := range retained {
		poseError := math.Abs(m.Yaw) + math.Abs(m.Pitch) + math.Abs(m.RollDeg)/100
		weight := 1 / (1 + poseError*cfg.PoseWeightScale)
		ipdSum += m.IPDMM * weight
		distSum += m.DistanceCM * weight
		weightSum += weight
	}
	finalIPD := ipdSum / weightSum
	finalDist := distSum / weightSum

	// Monocular PDs: plain means, then a single rescale so the halves
	// sum exactly to the reported total. Hard output invariant.
	var leftSum, rightSum float64
	for _, m := range retained {
		leftSum += m.LeftPDMM
		rightSum += m.RightPDMM
	}
	avgLeft := leftSum / float64(len(retained))
	avgRight := rightSum / float64(len(retained))
	finalLeft, finalRight := avgLeft, avgRight
	if avgLeft+avgRight > 0 {
		scale := finalIPD / (avgLeft + avgRight)
		finalLeft = avgLeft * scale
		finalRight = avgRight * scale
	}

	stdDev := stdDevOf(extract(retained, func(m Measurement) float64 { return m.IPDMM }))

	var accSum float64
	for _, m := range retained {
		accSum += float64(m.Accuracy)
	}

	return Measurement{
		IPDMM:      finalIPD,
		LeftPDMM:   finalLeft,
		RightPDMM:  finalRight,
		DistanceCM: finalDist,
		Lighting:   median(extract(retained, func(m Measurement) float64 { return m.Lighting })),
		Accuracy:   int(math.Round(accSum / float64(len(retained)))),
		RollDeg:    median(extract(retained, func(m Measurement) float64 { return m.RollDeg })),
		Yaw:        median(extract(retained, func(m Measurement) float64 { return m.Yaw })),
		Pitch:      median(extract(retained, func(m Measurement) float64 { return m.Pitch })),
		FaceY:      median(extract(retained, func(m Measurement) float64 { return m.FaceY })),
		Stability:  stabilityScore(stdDev, cfg.StabilitySteepness),
	}, nil
}

func extract(samples []Measurement, field func(Measurement) float64) []float64 {
	out := make([]float64, len(samples))
	for i, m := range samples {
		out[i] = field(m)
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func stdDevOf(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
