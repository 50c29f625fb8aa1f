// Package estimator predicts body measurements for a subject from a
// reference anthropometric dataset.
//
// The pipeline is: select neighbors around the subject with widening
// tolerance windows, aggregate every measurement field with a kernel
// weighted, outlier trimmed mean, then correct the raw estimate for the
// subject's self-reported morphology:
//
//	env, err := estimator.Estimate(dataset, estimator.Request{
//	    Profile:    estimator.Profile{Sex: "M", HeightCm: 178, WeightKg: 75},
//	    Morphology: estimator.Morphology{Shape: estimator.ShapeVShape},
//	}, estimator.DefaultConfig())
//
// Every call is a pure function of its arguments. The dataset is only read,
// so concurrent estimations may share it as long as nobody writes to it.
package estimator

import "math"

// Field names a measurement in centimeters (or kilograms for weight).
type Field string

const (
	NeckCm        Field = "neck_cm"
	ChestCm       Field = "chest_cm"
	WaistCm       Field = "waist_cm"
	HipCm         Field = "hip_cm"
	ShoulderCm    Field = "shoulder_cm"
	SleeveRightCm Field = "sleeve_right_cm"
	SleeveLeftCm  Field = "sleeve_left_cm"
	BicepCm       Field = "bicep_cm"
	WristCm       Field = "wrist_cm"

	// Attached to estimates for downstream renderers, never estimated.
	HeightCm Field = "height_cm"
	WeightKg Field = "weight_kg"
)

// DefaultFields is the measurement set estimated for every request.
var DefaultFields = []Field{
	NeckCm, ChestCm, WaistCm, HipCm, ShoulderCm, SleeveRightCm, SleeveLeftCm, BicepCm, WristCm,
}

type BodyShape string

const (
	ShapeRectangle BodyShape = "rectangle"
	ShapeVShape    BodyShape = "vshape"
	ShapeApple     BodyShape = "apple"
	ShapePear      BodyShape = "pear"
)

type ShoulderSlope string

const (
	SlopeStraight ShoulderSlope = "straight"
	SlopeAverage  ShoulderSlope = "average"
	SlopeSloped   ShoulderSlope = "sloped"
)

// Morphology is the subject's self-reported body shape and shoulder slope.
type Morphology struct {
	Shape BodyShape     `json:"body_shape,omitempty" yaml:"body_shape,omitempty"`
	Slope ShoulderSlope `json:"shoulder_slope,omitempty" yaml:"shoulder_slope,omitempty"`
}

// Profile describes the subject being estimated. Height and weight must be
// finite and positive; callers validate them before estimating.
type Profile struct {
	Sex      string  `json:"sex,omitempty"`
	HeightCm float64 `json:"height_cm"`
	WeightKg float64 `json:"weight_kg"`
	Age      *int    `json:"age,omitempty"`
}

// BMI returns weight over squared height in meters.
func (p Profile) BMI() float64 {
	return BMI(p.HeightCm, p.WeightKg)
}

func BMI(heightCm, weightKg float64) float64 {
	m := heightCm / 100
	return weightKg / (m * m)
}

// Record is one row of the reference dataset. NaN marks a missing height or
// weight; a missing measurement is either absent from Measurements or NaN.
type Record struct {
	Sex          string            `json:"sex,omitempty"`
	HeightCm     float64           `json:"height_cm"`
	WeightKg     float64           `json:"weight_kg"`
	Age          *int              `json:"age,omitempty"`
	Measurements map[Field]float64 `json:"measurements,omitempty"`
}

// Value reports the record's measurement for f and whether it is usable.
func (r Record) Value(f Field) (float64, bool) {
	v, ok := r.Measurements[f]
	if !ok || !finite(v) {
		return 0, false
	}
	return v, true
}

// Tolerances are the half-widths of the matching windows used by a selection.
type Tolerances struct {
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
	Age    float64 `json:"age"`
}

// FieldSummary is the per-field output of the weighted estimator. N == 0
// means the subset had no usable value and Estimate is NaN. Estimate is also
// NaN with N > 0 when every kernel weight underflows to zero, which happens
// when a dataset fallback supplies only records far from the profile; StdDev
// is then 0 and the unweighted Median and Mean stay finite.
type FieldSummary struct {
	Estimate float64 `json:"estimate"`
	StdDev   float64 `json:"std_dev"`
	N        int     `json:"n"`
	Median   float64 `json:"median"`
	Mean     float64 `json:"mean"`
	Mode     float64 `json:"mode"`
	MAD      float64 `json:"mad"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Meta describes how an estimate was obtained.
type Meta struct {
	SubsetSize int        `json:"subset_size"`
	Tolerances Tolerances `json:"tolerances"`
	BMI        float64    `json:"bmi"`
	Widenings  int        `json:"widenings"`
	FellBack   bool       `json:"fell_back"`
}

// Envelope is the result of one estimation. Estimate values may be NaN for
// fields without data; check with math.IsNaN before use.
type Envelope struct {
	Estimate map[Field]float64
	Meta     Meta
	Raw      map[Field]FieldSummary
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// usable is the presence test for post-processing: finite and positive.
func usable(m map[Field]float64, f Field) bool {
	v, ok := m[f]
	return ok && finite(v) && v > 0
}
