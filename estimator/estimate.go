package estimator

import "fmt"

// EmptyDatasetError is returned when an estimation is asked for without
// reference data.
type EmptyDatasetError struct{}

func (*EmptyDatasetError) Error() string {
	return "reference dataset is empty"
}

// Request is one estimation query.
type Request struct {
	Profile    Profile
	Morphology Morphology
}

// Estimate runs neighbor selection, weighted aggregation and morphology
// adjustment for req against dataset.
func Estimate(dataset []Record, req Request, cfg Config) (*Envelope, error) {
	if len(dataset) == 0 {
		return nil, &EmptyDatasetError{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("estimator config: %w", err)
	}

	profile := req.Profile
	if profile.Sex == "" {
		profile.Sex = cfg.DefaultSex
	}

	sel := SelectNeighbors(dataset, profile, cfg)
	summary := Summarize(sel.Records, profile, cfg)

	raw := make(map[Field]float64, len(summary)+1)
	for _, f := range cfg.Fields {
		raw[f] = summary[f].Estimate
	}
	fillSleeveSymmetry(raw)
	raw[HeightCm] = profile.HeightCm

	morph := req.Morphology
	if morph.Shape == "" {
		morph.Shape = ShapeRectangle
	}
	if morph.Slope == "" {
		morph.Slope = SlopeAverage
	}

	return &Envelope{
		Estimate: Adjust(raw, morph),
		Meta: Meta{
			SubsetSize: len(sel.Records),
			Tolerances: sel.Tolerances,
			BMI:        profile.BMI(),
			Widenings:  sel.Widenings,
			FellBack:   sel.FellBack,
		},
		Raw: summary,
	}, nil
}

// fillSleeveSymmetry copies one sleeve into the other when only one side
// could be estimated.
func fillSleeveSymmetry(m map[Field]float64) {
	right, left := usable(m, SleeveRightCm), usable(m, SleeveLeftCm)
	switch {
	case right && !left:
		m[SleeveLeftCm] = m[SleeveRightCm]
	case left && !right:
		m[SleeveRightCm] = m[SleeveLeftCm]
	}
}
