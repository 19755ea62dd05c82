package miner

import (
	"fmt"

	"github.com/harrison/chainminer/internal/models"
)

// Confidence maps each observed transition to its dependency score in [-1, 1].
type Confidence map[models.Transition]float64

// ComputeConfidence scores every transition present in counts.
//
// For A->B with forward count awb and backward count bwa (count of B->A,
// 0 when absent) the score is 1 when awb == bwa, otherwise
// (awb-bwa)/(awb+bwa). Start and end transitions have no possible reverse
// and therefore always score 1. Balanced bidirectional flow also scores 1.
func ComputeConfidence(counts TransitionCounts) (Confidence, error) {
	conf := make(Confidence, len(counts))
	for t, awb := range counts {
		if awb < 0 {
			return nil, fmt.Errorf("%w: %s has count %d", models.ErrNegativeCount, t.Label(), awb)
		}
		bwa := counts[t.Reverse()]
		if bwa < 0 {
			return nil, fmt.Errorf("%w: %s has count %d", models.ErrNegativeCount, t.Reverse().Label(), bwa)
		}

		if awb == bwa {
			conf[t] = 1
			continue
		}
		if awb+bwa == 0 {
			return nil, fmt.Errorf("%w: %s", models.ErrDivisionUndefined, t.Label())
		}
		conf[t] = float64(awb-bwa) / float64(awb+bwa)
	}
	return conf, nil
}

// Score returns the confidence of t and whether it is present.
func (c Confidence) Score(t models.Transition) (float64, bool) {
	v, ok := c[t]
	return v, ok
}

// Transitions returns the scored transitions sorted by label.
func (c Confidence) Transitions() []models.Transition {
	ts := make([]models.Transition, 0, len(c))
	for t := range c {
		ts = append(ts, t)
	}
	models.SortTransitions(ts)
	return ts
}
