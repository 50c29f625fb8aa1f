package estimator

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgePolicy decides how a missing age enters the kernel distance.
type AgePolicy string

const (
	// AgeSkip drops the age term when either side has no age.
	AgeSkip AgePolicy = "skip"
	// AgeZero substitutes 0 for a missing age.
	AgeZero AgePolicy = "zero"
)

// Window is a tolerance that starts at Start and widens by Step up to Max.
type Window struct {
	Start float64 `yaml:"start"`
	Step  float64 `yaml:"step"`
	Max   float64 `yaml:"max"`
}

// Scale holds the per-dimension bandwidths of the distance metric.
type Scale struct {
	Height float64 `yaml:"height"`
	Weight float64 `yaml:"weight"`
	Age    float64 `yaml:"age"`
}

// Config parameterizes one estimation.
type Config struct {
	Height Window
	Weight Window
	Age    Window

	// MinSubset is the neighbor count at which widening stops.
	MinSubset int
	Scale     Scale
	Fields    []Field

	// Queries at or above ObeseBMI start with at least ObeseWeightTolerance.
	ObeseBMI             float64
	ObeseWeightTolerance float64

	TrimFraction  float64
	OutlierFactor float64
	MissingAge    AgePolicy

	// DefaultSex is used when a request carries no sex. Empty disables the
	// sex filter for such requests.
	DefaultSex string
}

func DefaultConfig() Config {
	return Config{
		Height:               Window{Start: 1.0, Step: 0.5, Max: 6.0},
		Weight:               Window{Start: 3.0, Step: 1.5, Max: 12.0},
		Age:                  Window{Start: 6.0, Step: 4.0, Max: 24.0},
		MinSubset:            30,
		Scale:                Scale{Height: 2.0, Weight: 4.0, Age: 8.0},
		Fields:               append([]Field(nil), DefaultFields...),
		ObeseBMI:             30,
		ObeseWeightTolerance: 5,
		TrimFraction:         0.1,
		OutlierFactor:        1.5,
		MissingAge:           AgeSkip,
	}
}

// Validate checks the configuration before it is used.
func (c Config) Validate() error {
	windows := []struct {
		name string
		w    Window
	}{{"height", c.Height}, {"weight", c.Weight}, {"age", c.Age}}
	for _, w := range windows {
		if w.w.Start < 0 {
			return fmt.Errorf("%s tolerance start must be non-negative, got %g", w.name, w.w.Start)
		}
		if w.w.Step <= 0 {
			return fmt.Errorf("%s tolerance step must be positive, got %g", w.name, w.w.Step)
		}
		if w.w.Start > w.w.Max {
			return fmt.Errorf("%s tolerance start %g exceeds max %g", w.name, w.w.Start, w.w.Max)
		}
	}
	if c.MinSubset < 0 {
		return fmt.Errorf("min_subset must be non-negative, got %d", c.MinSubset)
	}
	if c.Scale.Height <= 0 || c.Scale.Weight <= 0 || c.Scale.Age <= 0 {
		return fmt.Errorf("kernel scales must be positive, got %+v", c.Scale)
	}
	if len(c.Fields) == 0 {
		return errors.New("at least one field must be estimated")
	}
	if c.TrimFraction < 0 || c.TrimFraction >= 0.5 {
		return fmt.Errorf("trim_fraction must be in [0, 0.5), got %g", c.TrimFraction)
	}
	if c.OutlierFactor <= 0 {
		return fmt.Errorf("outlier_factor must be positive, got %g", c.OutlierFactor)
	}
	if c.ObeseWeightTolerance < 0 {
		return fmt.Errorf("obese_weight_tolerance must be non-negative, got %g", c.ObeseWeightTolerance)
	}
	switch c.MissingAge {
	case AgeSkip, AgeZero:
	default:
		return fmt.Errorf("unknown missing_age policy %q", c.MissingAge)
	}
	return nil
}

// Overrides replaces selected Config values. Nil fields keep the base value,
// so a partial file is safe.
type Overrides struct {
	Height               *Window    `yaml:"height,omitempty"`
	Weight               *Window    `yaml:"weight,omitempty"`
	Age                  *Window    `yaml:"age,omitempty"`
	MinSubset            *int       `yaml:"min_subset,omitempty"`
	Scale                *Scale     `yaml:"scale,omitempty"`
	Fields               []Field    `yaml:"fields,omitempty"`
	ObeseBMI             *float64   `yaml:"obese_bmi,omitempty"`
	ObeseWeightTolerance *float64   `yaml:"obese_weight_tolerance,omitempty"`
	TrimFraction         *float64   `yaml:"trim_fraction,omitempty"`
	OutlierFactor        *float64   `yaml:"outlier_factor,omitempty"`
	MissingAge           *AgePolicy `yaml:"missing_age,omitempty"`
	DefaultSex           *string    `yaml:"default_sex,omitempty"`
}

// Apply returns base with every set override copied in.
func (o *Overrides) Apply(base Config) Config {
	if o == nil {
		return base
	}
	if o.Height != nil {
		base.Height = *o.Height
	}
	if o.Weight != nil {
		base.Weight = *o.Weight
	}
	if o.Age != nil {
		base.Age = *o.Age
	}
	if o.MinSubset != nil {
		base.MinSubset = *o.MinSubset
	}
	if o.Scale != nil {
		base.Scale = *o.Scale
	}
	if len(o.Fields) > 0 {
		base.Fields = append([]Field(nil), o.Fields...)
	}
	if o.ObeseBMI != nil {
		base.ObeseBMI = *o.ObeseBMI
	}
	if o.ObeseWeightTolerance != nil {
		base.ObeseWeightTolerance = *o.ObeseWeightTolerance
	}
	if o.TrimFraction != nil {
		base.TrimFraction = *o.TrimFraction
	}
	if o.OutlierFactor != nil {
		base.OutlierFactor = *o.OutlierFactor
	}
	if o.MissingAge != nil {
		base.MissingAge = *o.MissingAge
	}
	if o.DefaultSex != nil {
		base.DefaultSex = *o.DefaultSex
	}
	return base
}

// LoadOverrides reads estimator overrides from a YAML file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("estimator config not found: %s", path)
		}
		return nil, fmt.Errorf("reading estimator config: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing estimator config YAML: %w", err)
	}
	return &o, nil
}

// LoadConfig applies the overrides in path to DefaultConfig and validates
// the result. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	o, err := LoadOverrides(path)
	if err != nil {
		return Config{}, err
	}
	cfg = o.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid estimator config %s: %w", path, err)
	}
	return cfg, nil
}
