package mapper

import "fmt"

// Policy holds the tunables of the mapping decision.
type Policy struct {
	// SimFloor admits every dimension with fused similarity at or above it.
	SimFloor float64
	// TopM admits the M most similar dimensions regardless of the floor.
	TopM int
	// BaseThreshold is the reranker probability a candidate must reach.
	BaseThreshold float64
	// AdaptDelta lowers the threshold when the mean candidate similarity is
	// below WeakMean.
	AdaptDelta float64
	WeakMean   float64
	// PerDimensionDelta adds a fixed offset to one dimension's threshold.
	PerDimensionDelta map[string]float64
	// Alpha weighs reranker probability against similarity when ranking.
	Alpha float64
	// MaxDimensions caps the result; zero or less keeps every survivor.
	MaxDimensions int
	// FloorRatio scales SimFloor into the similarity a survivor needs.
	FloorRatio float64
	// UseAliases forces alias hits into the candidate set.
	UseAliases bool
}

// ProductionPolicy is the precision-first policy used when mapping.
func ProductionPolicy() Policy {
	return Policy{
		SimFloor:      0.55,
		TopM:          6,
		BaseThreshold: 0.85,
		AdaptDelta:    0.04,
		WeakMean:      0.45,
		Alpha:         0.85,
		MaxDimensions: 1,
		FloorRatio:    0.8,
		UseAliases:    true,
	}
}

// EvaluationPolicy is the policy used when scoring a fine-tuned run against
// gold labels: up to three dimensions and no alias forcing.
func EvaluationPolicy() Policy {
	p := ProductionPolicy()
	p.MaxDimensions = 3
	p.UseAliases = false
	return p
}

// Validate rejects policies that cannot produce a sensible decision.
func (p Policy) Validate() error {
	switch {
	case p.TopM < 1:
		return fmt.Errorf("mapper: top-M must be at least 1, got %d", p.TopM)
	case p.SimFloor < 0 || p.SimFloor > 1:
		return fmt.Errorf("mapper: similarity floor %v outside [0,1]", p.SimFloor)
	case p.Alpha < 0 || p.Alpha > 1:
		return fmt.Errorf("mapper: alpha %v outside [0,1]", p.Alpha)
	case p.FloorRatio < 0:
		return fmt.Errorf("mapper: floor ratio %v is negative", p.FloorRatio)
	}
	return nil
}

// threshold returns the acceptance gate for dimension key given the mean
// similarity of the candidate set.
func (p Policy) threshold(key string, meanSim float64) float64 {
	th := p.BaseThreshold
	if meanSim < p.WeakMean {
		th -= p.AdaptDelta
	}
	return th + p.PerDimensionDelta[key]
}
