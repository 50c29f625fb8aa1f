package estimator

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats is a descriptive summary of a sample.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	StdDev float64 `json:"std_dev"`
}

// Describe summarizes samples. An empty sample yields the zero Stats.
func Describe(samples []float64) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	s := sortedCopy(samples)
	return Stats{
		Min:    s[0],
		Max:    s[len(s)-1],
		Mean:   Mean(s),
		Median: Median(s),
		Q1:     Quantile(s, 0.25),
		Q3:     Quantile(s, 0.75),
		StdDev: StdDev(s),
	}
}

func sortedCopy(xs []float64) []float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	return s
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mean returns the arithmetic mean, or NaN for an empty sample.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Sum(xs) / float64(len(xs))
}

// Median returns the middle value (average of the middle pair for even
// sizes), or NaN for an empty sample.
func Median(xs []float64) float64 {
	m, err := stats.Median(xs)
	if err != nil {
		return math.NaN()
	}
	return m
}

// Variance is the sample (n-1) variance; samples smaller than two have none.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.Variance(xs, nil)
}

func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Quantile interpolates linearly between order statistics at position
// (n-1)*q. sorted must be ascending.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := float64(n-1) * q
	base := int(math.Floor(pos))
	if base < 0 {
		return sorted[0]
	}
	if base+1 >= n {
		return sorted[n-1]
	}
	rest := pos - float64(base)
	return sorted[base] + (sorted[base+1]-sorted[base])*rest
}

// IQR returns the first quartile, the third quartile and their distance.
func IQR(xs []float64) (q1, q3, iqr float64) {
	s := sortedCopy(xs)
	q1 = Quantile(s, 0.25)
	q3 = Quantile(s, 0.75)
	return q1, q3, q3 - q1
}

// MAD is the unscaled median absolute deviation, NaN for an empty sample.
func MAD(xs []float64) float64 {
	m, err := stats.MedianAbsoluteDeviation(xs)
	if err != nil {
		return math.NaN()
	}
	return m
}

// HistMode estimates the mode as the centre of the fullest of bins
// equal-width bins spanning the sample. bins <= 0 picks ceil(sqrt(n)).
func HistMode(xs []float64, bins int) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	if bins <= 0 {
		bins = int(math.Ceil(math.Sqrt(float64(len(xs)))))
	}
	mn, mx := floats.Min(xs), floats.Max(xs)
	width := (mx - mn) / math.Max(1, float64(bins))
	step := width
	if step == 0 {
		step = 1
	}
	hist := make([]int, bins)
	for _, x := range xs {
		i := int(math.Floor((x - mn) / step))
		if i < 0 {
			i = 0
		}
		if i > bins-1 {
			i = bins - 1
		}
		hist[i]++
	}
	best := 0
	for i := 1; i < len(hist); i++ {
		if hist[i] > hist[best] {
			best = i
		}
	}
	return mn + (float64(best)+0.5)*width
}

// OutlierBounds returns the Tukey fences q1-f*iqr and q3+f*iqr. ok is false
// when the sample is too small (fewer than four values) to be filtered.
func OutlierBounds(xs []float64, f float64) (lo, hi float64, ok bool) {
	if len(xs) < 4 {
		return 0, 0, false
	}
	q1, q3, iqr := IQR(xs)
	return q1 - f*iqr, q3 + f*iqr, true
}

// RemoveOutliersIQR keeps the values inside the Tukey fences, in their
// original order.
func RemoveOutliersIQR(xs []float64, f float64) []float64 {
	lo, hi, ok := OutlierBounds(xs, f)
	if !ok {
		return xs
	}
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x >= lo && x <= hi {
			out = append(out, x)
		}
	}
	return out
}

// WeightedMean returns NaN when the weights sum to zero.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 || floats.Sum(weights) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, weights)
}

// WeightedStdDev is the population standard deviation under weights, 0 when
// the weights sum to zero.
func WeightedStdDev(values, weights []float64) float64 {
	if len(values) == 0 || floats.Sum(weights) == 0 {
		return 0
	}
	return stat.PopStdDev(values, weights)
}

// TrimmedWeightedMean sorts the (value, weight) pairs by value, drops
// floor(n*t) pairs from each end and returns the weighted mean of the rest.
func TrimmedWeightedMean(values, weights []float64, t float64) float64 {
	pairs := make([]sample, len(values))
	for i := range values {
		pairs[i] = sample{value: values[i], weight: weights[i]}
	}
	return trimmedMean(pairs, t)
}

// sample binds a value to its kernel weight so the two never drift apart
// through filtering or sorting.
type sample struct {
	value  float64
	weight float64
}

func trimmedMean(pairs []sample, t float64) float64 {
	s := append([]sample(nil), pairs...)
	sort.SliceStable(s, func(i, j int) bool { return s[i].value < s[j].value })
	n := len(s)
	k := int(math.Floor(float64(n) * t))
	if 2*k >= n {
		return math.NaN()
	}
	vs, ws := unzip(s[k : n-k])
	return WeightedMean(vs, ws)
}

func unzip(pairs []sample) (values, weights []float64) {
	values = make([]float64, len(pairs))
	weights = make([]float64, len(pairs))
	for i, p := range pairs {
		values[i] = p.value
		weights[i] = p.weight
	}
	return values, weights
}
