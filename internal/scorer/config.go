// Package scorer computes the rule-based relevance of a candidate against a
// research profile. Output is a pure function of its inputs.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/supervisor-cli/internal/config"
)

// DefaultConfig returns the product-tuned scoring constants.
func DefaultConfig() config.ScoringConfig {
	return config.ScoringConfig{
		CoreThreshold:     0.35,
		AdjacentThreshold: 0.2,
		CoreWeight:        0.1,
		AdjacentWeight:    0.05,
		EmailBonus:        0.1,
		HighEmailBonus:    0.05,
		RetierPercentile:  0.35,
	}
}

const (
	// Caps on the keyword contributions.
	maxCoreContribution     = 1.0
	maxAdjacentContribution = 0.5
)

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := map[string]float64{
		"core_weight":      c.CoreWeight,
		"adjacent_weight":  c.AdjacentWeight,
		"email_bonus":      c.EmailBonus,
		"high_email_bonus": c.HighEmailBonus,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if c.CoreThreshold <= 0 || c.CoreThreshold > 1 {
		errs = append(errs, "core_threshold must be in (0, 1]")
	}
	if c.AdjacentThreshold < 0 || c.AdjacentThreshold > c.CoreThreshold {
		errs = append(errs, "adjacent_threshold must be between 0 and core_threshold")
	}
	if c.RetierPercentile < 0 || c.RetierPercentile >= 1 {
		errs = append(errs, "retier_percentile must be in [0, 1)")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
