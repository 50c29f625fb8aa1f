package estimator

import "math"

var (
	chestWaistRatio = map[BodyShape]float64{
		ShapeRectangle: 1.02,
		ShapeVShape:    1.14,
		ShapeApple:     0.96,
		ShapePear:      1.00,
	}
	shoulderFactor = map[ShoulderSlope]float64{
		SlopeStraight: 1.02,
		SlopeAverage:  1.00,
		SlopeSloped:   0.97,
	}
	sleeveFactor = map[ShoulderSlope]float64{
		SlopeStraight: 0.995,
		SlopeAverage:  1.00,
		SlopeSloped:   1.01,
	}
)

const (
	// Ratios within this distance of the target are left alone.
	ratioSlack = 0.02
	// Maximum relative movement of chest or waist.
	maxShapeAdjust = 0.12
)

// TargetRatio returns the chest/waist ratio for shape, rectangle when unknown.
func TargetRatio(shape BodyShape) float64 {
	if r, ok := chestWaistRatio[shape]; ok {
		return r
	}
	return chestWaistRatio[ShapeRectangle]
}

// Adjust corrects a raw estimate for the subject's morphology and returns a
// new map. It is not idempotent: apply it once per raw estimate.
func Adjust(base map[Field]float64, m Morphology) map[Field]float64 {
	out := make(map[Field]float64, len(base))
	for k, v := range base {
		out[k] = v
	}

	if usable(out, ChestCm) && usable(out, WaistCm) {
		chest, waist := out[ChestCm], out[WaistCm]
		target := TargetRatio(m.Shape)
		if math.Abs(chest/waist-target) > ratioSlack {
			sum := chest + waist
			newChest := sum * target / (1 + target)
			newWaist := sum - newChest
			// Clamped independently, so the target may be missed when one
			// side hits its cap.
			out[ChestCm] = Clamp(newChest, chest*(1-maxShapeAdjust), chest*(1+maxShapeAdjust))
			out[WaistCm] = Clamp(newWaist, waist*(1-maxShapeAdjust), waist*(1+maxShapeAdjust))
		}
	}

	sf, ok := shoulderFactor[m.Slope]
	if !ok {
		sf = 1
	}
	lf, ok := sleeveFactor[m.Slope]
	if !ok {
		lf = 1
	}
	if usable(out, ShoulderCm) {
		out[ShoulderCm] *= sf
	}
	for _, f := range []Field{SleeveRightCm, SleeveLeftCm} {
		if usable(out, f) {
			out[f] *= lf
		}
	}
	return out
}
