// services/rewards.go - Reward Tier Evaluation
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"typerush/models"
)

// RewardAdjustment is one tier a run qualified for, paired with the flat
// increment to apply. NewTotal is the projected cumulative amount for the
// (user, tier) row after the increment lands.
type RewardAdjustment struct {
	Tier          models.RewardTier
	Increment     float64
	PreviousTotal float64
	NewTotal      float64
}

// EvaluateRewards returns every tier the run's score qualifies for. A run
// qualifies iff wpm >= MinWPM and accuracy >= MinAccuracy; multiple tiers can
// qualify at once and each pays its full flat amount again, cumulatively.
// Tiers with a non-positive or non-finite amount are dropped rather than
// trusted; configuration should never produce them but the database must not
// see them if it does.
func EvaluateRewards(wpm, accuracy float64, tiers []models.RewardTier, earned map[string]float64) []RewardAdjustment {
	adjustments := make([]RewardAdjustment, 0, len(tiers))

	for _, tier := range tiers {
		if wpm < tier.MinWPM || accuracy < tier.MinAccuracy {
			continue
		}

		increment := tier.Amount
		if !isFinite(increment) || increment <= 0 {
			continue
		}

		previous := earned[tier.ID]
		if !isFinite(previous) {
			previous = 0
		}

		adjustments = append(adjustments, RewardAdjustment{
			Tier:          tier,
			Increment:     increment,
			PreviousTotal: previous,
			NewTotal:      round2(previous + increment),
		})
	}

	return adjustments
}

// LoadRewardTiers reads the static tier configuration. Entries missing an id
// or carrying an unusable amount are skipped with a warning so one bad entry
// does not take the whole table down.
func LoadRewardTiers(path string) ([]models.RewardTier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reward config %s: %w", path, err)
	}

	var raw []models.RewardTier
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse reward config %s: %w", path, err)
	}

	tiers := make([]models.RewardTier, 0, len(raw))
	seen := make(map[string]bool)
	for _, tier := range raw {
		if tier.ID == "" {
			log.Printf("Skipping reward tier with empty id in %s", path)
			continue
		}
		if seen[tier.ID] {
			log.Printf("Skipping duplicate reward tier %q in %s", tier.ID, path)
			continue
		}
		if !isFinite(tier.Amount) || tier.Amount <= 0 {
			log.Printf("Skipping reward tier %q with invalid amount %v", tier.ID, tier.Amount)
			continue
		}
		if !isFinite(tier.MinWPM) || !isFinite(tier.MinAccuracy) {
			log.Printf("Skipping reward tier %q with invalid thresholds", tier.ID)
			continue
		}
		seen[tier.ID] = true
		tiers = append(tiers, tier)
	}

	return tiers, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
