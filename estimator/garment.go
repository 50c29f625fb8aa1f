package estimator

import "math"

// Fit is the wearer's preferred garment ease.
type Fit string

const (
	FitSlim    Fit = "slim"
	FitRegular Fit = "regular"
	FitRelaxed Fit = "relaxed"
)

var (
	bellyFactors  = []float64{0, 0.015, 0.035, 0.06}
	muscleFactors = []float64{0, 0.01, 0.025, 0.045}
	fitEase       = map[Fit]float64{FitSlim: -2, FitRegular: 0, FitRelaxed: 3}
)

// Refinement holds the subject's belly and musculature levels (0 to 3) and
// the garment fit they want.
type Refinement struct {
	BellyLevel  int `json:"belly_level"`
	MuscleLevel int `json:"muscle_level"`
	Fit         Fit `json:"fit"`
}

// Garment is the finished-garment target derived from a body estimate.
type Garment struct {
	ChestCm float64 `json:"chest_cm"`
	WaistCm float64 `json:"waist_cm"`
	HipCm   float64 `json:"hip_cm"`
}

// Refine applies belly and musculature corrections to an adjusted estimate
// and attaches the subject's height and weight. Belly mostly grows the waist
// and a little the hips; muscle grows chest and, more strongly, biceps.
func Refine(estimate map[Field]float64, p Profile, r Refinement) map[Field]float64 {
	out := make(map[Field]float64, len(estimate)+2)
	for k, v := range estimate {
		out[k] = v
	}
	belly := bellyFactors[level(r.BellyLevel, len(bellyFactors))]
	muscle := muscleFactors[level(r.MuscleLevel, len(muscleFactors))]

	scale := func(f Field, factor float64) {
		if v, ok := out[f]; ok {
			out[f] = v * (1 + factor)
		}
	}
	scale(WaistCm, belly)
	scale(HipCm, belly*0.35)
	scale(ChestCm, muscle)
	scale(BicepCm, muscle*1.6)

	out[HeightCm] = p.HeightCm
	out[WeightKg] = p.WeightKg
	return out
}

func level(l, n int) int {
	if l < 0 {
		return 0
	}
	if l >= n {
		return n - 1
	}
	return l
}

// GarmentTarget adds the fit ease to chest, waist and hip. Unknown fits get
// no ease, targets never go below zero and missing fields stay NaN.
func GarmentTarget(body map[Field]float64, fit Fit) Garment {
	ease := fitEase[fit]
	target := func(f Field) float64 {
		v, ok := body[f]
		if !ok || !finite(v) {
			return math.NaN()
		}
		if v+ease < 0 {
			return 0
		}
		return v + ease
	}
	return Garment{
		ChestCm: target(ChestCm),
		WaistCm: target(WaistCm),
		HipCm:   target(HipCm),
	}
}
