package estimator

import "math"

// Distance is the scaled euclidean distance between a record and the
// profile over height, weight and age.
func Distance(r Record, p Profile, cfg Config) float64 {
	dh := (r.HeightCm - p.HeightCm) / cfg.Scale.Height
	dw := (r.WeightKg - p.WeightKg) / cfg.Scale.Weight
	da := ageDelta(r.Age, p.Age, cfg.MissingAge) / cfg.Scale.Age
	return math.Sqrt(dh*dh + dw*dw + da*da)
}

func ageDelta(a, b *int, policy AgePolicy) float64 {
	if a != nil && b != nil {
		return float64(*a - *b)
	}
	if policy == AgeSkip {
		return 0
	}
	var av, bv int
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return float64(av - bv)
}

// KernelWeight is the unit-bandwidth gaussian kernel of Distance.
func KernelWeight(r Record, p Profile, cfg Config) float64 {
	d := Distance(r, p, cfg)
	return math.Exp(-0.5 * d * d)
}

// Summarize aggregates every configured field across subset.
func Summarize(subset []Record, p Profile, cfg Config) map[Field]FieldSummary {
	weights := make([]float64, len(subset))
	for i, r := range subset {
		weights[i] = KernelWeight(r, p, cfg)
	}
	out := make(map[Field]FieldSummary, len(cfg.Fields))
	for _, f := range cfg.Fields {
		var pairs []sample
		for i, r := range subset {
			if v, ok := r.Value(f); ok {
				pairs = append(pairs, sample{value: v, weight: weights[i]})
			}
		}
		out[f] = summarizeField(pairs, cfg)
	}
	return out
}

func summarizeField(pairs []sample, cfg Config) FieldSummary {
	if len(pairs) == 0 {
		nan := math.NaN()
		return FieldSummary{Estimate: nan, StdDev: nan, Median: nan, Mean: nan, Mode: nan, MAD: nan, Min: nan, Max: nan}
	}
	cleaned := dropOutliers(pairs, cfg.OutlierFactor)
	values, weights := unzip(cleaned)
	d := Describe(values)
	return FieldSummary{
		Estimate: trimmedMean(cleaned, cfg.TrimFraction),
		StdDev:   WeightedStdDev(values, weights),
		N:        len(cleaned),
		Median:   d.Median,
		Mean:     d.Mean,
		Mode:     HistMode(values, 0),
		MAD:      MAD(values),
		Min:      d.Min,
		Max:      d.Max,
	}
}

// dropOutliers applies the IQR fences to the values while keeping every
// survivor paired with its own weight.
func dropOutliers(pairs []sample, f float64) []sample {
	values, _ := unzip(pairs)
	lo, hi, ok := OutlierBounds(values, f)
	if !ok {
		return pairs
	}
	out := make([]sample, 0, len(pairs))
	for _, p := range pairs {
		if p.value >= lo && p.value <= hi {
			out = append(out, p)
		}
	}
	return out
}
