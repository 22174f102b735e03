// Package bandit selects which strategy parameter set governs the
// next entry, using epsilon-greedy over realized R-multiples. Arm
// statistics are rebuilt from the append-only outcome ledger on every
// selection; there is no separately persisted counter state that could
// drift from the ledger after a crash.
package bandit

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/pkg/types"
)

// Ledger is the slice of the durable store the selector depends on.
type Ledger interface {
	ArmOutcomes() ([]types.ArmOutcome, error)
	AppendArmOutcome(types.ArmOutcome) error
}

// ArmStats is the rebuilt per-arm state.
type ArmStats struct {
	Count int     `json:"count"`
	MeanR float64 `json:"meanR"`
}

// Selector implements the epsilon-greedy arm chooser.
type Selector struct {
	logger  *zap.Logger
	ledger  Ledger
	numArms int
	epsilon float64
	jitter  float64
	rng     *rand.Rand
}

// NewSelector creates a selector over numArms arms. epsilon is the
// exploration probability, jitter the standard deviation of the
// Gaussian noise added to arm means during exploitation. A nil rng
// gets a time-seeded source.
func NewSelector(logger *zap.Logger, ledger Ledger, numArms int, epsilon, jitter float64, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		logger:  logger.Named("bandit"),
		ledger:  ledger,
		numArms: numArms,
		epsilon: epsilon,
		jitter:  jitter,
		rng:     rng,
	}
}

// Stats rebuilds per-arm counts and running mean R-multiples by
// replaying the outcome ledger.
func (s *Selector) Stats() ([]ArmStats, error) {
	outcomes, err := s.ledger.ArmOutcomes()
	if err != nil {
		return nil, err
	}

	stats := make([]ArmStats, s.numArms)
	for _, o := range outcomes {
		if o.Arm < 0 || o.Arm >= s.numArms {
			continue
		}
		st := &stats[o.Arm]
		st.Count++
		st.MeanR += (o.RMultiple - st.MeanR) / float64(st.Count)
	}
	return stats, nil
}

// SelectArm returns the arm index governing the next entry. Called
// only while flat; once a position opens its arm stays bound to it.
func (s *Selector) SelectArm() (int, error) {
	stats, err := s.Stats()
	if err != nil {
		return 0, err
	}

	// Exploration.
	if s.rng.Float64() < s.epsilon {
		arm := s.rng.Intn(s.numArms)
		s.logger.Debug("Arm selected by exploration", zap.Int("arm", arm))
		return arm, nil
	}

	// Cold start: no arm has an outcome yet.
	sampled := false
	for _, st := range stats {
		if st.Count > 0 {
			sampled = true
			break
		}
	}
	if !sampled {
		arm := s.rng.Intn(s.numArms)
		s.logger.Debug("Arm selected at cold start", zap.Int("arm", arm))
		return arm, nil
	}

	// Exploitation: argmax over jittered means. The jitter breaks
	// exact ties between arms without a fixed ordering bias.
	best := 0
	bestScore := stats[0].MeanR + s.rng.NormFloat64()*s.jitter
	for i := 1; i < s.numArms; i++ {
		score := stats[i].MeanR + s.rng.NormFloat64()*s.jitter
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	s.logger.Debug("Arm selected by exploitation",
		zap.Int("arm", best),
		zap.Float64("meanR", stats[best].MeanR),
		zap.Int("count", stats[best].Count))
	return best, nil
}

// RecordOutcome appends one ledger row for a closed position. Must be
// called exactly once per close, synchronously with it.
func (s *Selector) RecordOutcome(arm int, rMultiple, pnlPercent float64, outcome string, at time.Time) error {
	err := s.ledger.AppendArmOutcome(types.ArmOutcome{
		Arm:        arm,
		Timestamp:  at,
		RMultiple:  rMultiple,
		PnLPercent: pnlPercent,
		Outcome:    outcome,
	})
	if err != nil {
		return err
	}

	s.logger.Info("Arm outcome recorded",
		zap.Int("arm", arm),
		zap.Float64("rMultiple", rMultiple),
		zap.String("outcome", outcome))
	return nil
}
