package scoring

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed norms.yaml
var defaultNormsYAML []byte

const (
	// MaxNormalized is the top of the internal normalization scale
	MaxNormalized = 1000.0
	// ReliabilityCap bounds every normalized rate contribution while reliability is below the floor
	ReliabilityCap = 700.0
)

// Direction says which end of a stat's range is good
type Direction string

const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

// Norm is the configured [Min, Max] range of one rate stat
type Norm struct {
	Min       float64   `yaml:"min"`
	Max       float64   `yaml:"max"`
	Direction Direction `yaml:"direction"`
}

// Norms maps stat keys to their ranges
type Norms map[string]Norm

type normsFile struct {
	Norms Norms `yaml:"norms"`
}

// Normalize clamps v into the range and scales it to 0-1000, inverted for lower-is-better stats
func (n Norm) Normalize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(n.Min, math.Min(n.Max, v))
	ratio := (v - n.Min) / (n.Max - n.Min)
	if n.Direction == LowerIsBetter {
		ratio = 1 - ratio
	}
	return ratio * MaxNormalized
}

// Denormalize maps a 0-1000 score back into the stat's domain
func (n Norm) Denormalize(score float64) float64 {
	ratio := math.Max(0, math.Min(MaxNormalized, score)) / MaxNormalized
	if n.Direction == LowerIsBetter {
		ratio = 1 - ratio
	}
	return n.Min + ratio*(n.Max-n.Min)
}

func (n Norm) validate(key string) error {
	if n.Max <= n.Min {
		return fmt.Errorf("norm %q: max %v must exceed min %v", key, n.Max, n.Min)
	}
	switch n.Direction {
	case HigherIsBetter, LowerIsBetter:
		return nil
	default:
		return fmt.Errorf("norm %q: unknown direction %q", key, n.Direction)
	}
}

// ParseNorms decodes and validates a YAML norms table
func ParseNorms(data []byte) (Norms, error) {
	var file normsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse norms: %w", err)
	}
	for key, norm := range file.Norms {
		if err := norm.validate(key); err != nil {
			return nil, err
		}
	}
	return file.Norms, nil
}

// DefaultNorms returns the embedded norms table
func DefaultNorms() Norms {
	norms, err := ParseNorms(defaultNormsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded norms are invalid: %v", err))
	}
	return norms
}

// LoadNorms returns the embedded table overlaid with the entries of the file at path.
// An empty path yields the embedded table.
func LoadNorms(path string) (Norms, error) {
	norms := DefaultNorms()
	if path == "" {
		return norms, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read norms file: %w", err)
	}
	overrides, err := ParseNorms(data)
	if err != nil {
		return nil, err
	}
	for key, norm := range overrides {
		norms[key] = norm
	}
	return norms, nil
}
