package estimator

import "math"

// Selection is the neighbor subset chosen for a profile.
type Selection struct {
	Records    []Record
	Tolerances Tolerances
	// Widenings counts the passes after the first one.
	Widenings int
	// Sizes holds the subset size after every filter pass, in order.
	Sizes []int
	// FellBack is set when no record matched and the whole dataset was used.
	FellBack bool
}

// SelectNeighbors filters dataset around p, widening the height, weight and
// age windows by their steps until cfg.MinSubset records match or every
// window is at its maximum. An empty result falls back to the full dataset.
// cfg is expected to have passed Validate; windows that cannot grow are
// simply left as they are.
func SelectNeighbors(dataset []Record, p Profile, cfg Config) Selection {
	tol := Tolerances{
		Height: cfg.Height.Start,
		Weight: cfg.Weight.Start,
		Age:    cfg.Age.Start,
	}
	if p.BMI() >= cfg.ObeseBMI {
		tol.Weight = math.Max(tol.Weight, cfg.ObeseWeightTolerance)
	}

	sel := Selection{}
	subset := filterRecords(dataset, p, tol)
	sel.Sizes = append(sel.Sizes, len(subset))

	for len(subset) < cfg.MinSubset && canWiden(tol, cfg) {
		tol.Height = widen(tol.Height, cfg.Height)
		tol.Weight = widen(tol.Weight, cfg.Weight)
		tol.Age = widen(tol.Age, cfg.Age)
		subset = filterRecords(dataset, p, tol)
		sel.Widenings++
		sel.Sizes = append(sel.Sizes, len(subset))
	}

	if len(subset) == 0 {
		subset = dataset
		sel.FellBack = true
	}
	sel.Records = subset
	sel.Tolerances = tol
	return sel
}

// widen steps cur toward w.Max. A window already past its max, such as a
// raised obese weight window, is never narrowed.
func widen(cur float64, w Window) float64 {
	return math.Max(cur, math.Min(w.Max, cur+w.Step))
}

// canWiden reports whether some window can still grow. Windows with a
// non-positive step are treated as fixed.
func canWiden(tol Tolerances, cfg Config) bool {
	grows := func(cur float64, w Window) bool { return w.Step > 0 && cur < w.Max }
	return grows(tol.Height, cfg.Height) || grows(tol.Weight, cfg.Weight) || grows(tol.Age, cfg.Age)
}

func filterRecords(dataset []Record, p Profile, tol Tolerances) []Record {
	var out []Record
	for _, r := range dataset {
		if matches(r, p, tol) {
			out = append(out, r)
		}
	}
	return out
}

// matches is false for records with a missing height or weight, since NaN
// compares false against every window.
func matches(r Record, p Profile, tol Tolerances) bool {
	if !(math.Abs(r.HeightCm-p.HeightCm) <= tol.Height) {
		return false
	}
	if !(math.Abs(r.WeightKg-p.WeightKg) <= tol.Weight) {
		return false
	}
	if r.Age != nil && p.Age != nil && math.Abs(float64(*r.Age-*p.Age)) > tol.Age {
		return false
	}
	return p.Sex == "" || r.Sex == p.Sex
}
