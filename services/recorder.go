// services/recorder.go - Finish-Run Orchestration
package services

import (
	"errors"
	"fmt"
	"log"
	"time"
	"typerush/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppliedReward is one tier credit that actually landed for a run.
type AppliedReward struct {
	RewardKey string  `json:"reward_key"`
	Amount    float64 `json:"amount"`
	NewTotal  float64 `json:"new_total"`
}

// RunOutcome is everything the client needs to reflect a recorded run.
type RunOutcome struct {
	Result        models.Result   `json:"result"`
	Score         RunScore        `json:"score"`
	Credits       int             `json:"credits"`
	PersonalBest  bool            `json:"personal_best"`
	Awards        []AppliedReward `json:"awards"`
	TotalAwarded  float64         `json:"total_awarded"`
	TotalEarnings float64         `json:"total_earnings"`
}

// RunRecorder runs the finish-run pipeline: score, consume a credit, persist
// the result, evaluate tiers and credit them. A failed credit consumption
// aborts the whole operation; once the result row is in, reward persistence is
// best-effort and partial failure leaves already-applied increments in place.
type RunRecorder struct {
	db       *gorm.DB
	ledger   *CreditLedger
	tiers    []models.RewardTier
	duration int
	feed     *RunFeed
}

func NewRunRecorder(db *gorm.DB, ledger *CreditLedger, tiers []models.RewardTier, durationSeconds int, feed *RunFeed) *RunRecorder {
	if durationSeconds <= 0 {
		durationSeconds = DefaultTestDurationSeconds
	}
	return &RunRecorder{
		db:       db,
		ledger:   ledger,
		tiers:    tiers,
		duration: durationSeconds,
		feed:     feed,
	}
}

// Record processes one completed run for an already-ensured user.
func (r *RunRecorder) Record(user *models.User, typed, prompt []string) (*RunOutcome, error) {
	score := ScoreRun(typed, prompt, r.duration)

	credits, err := r.ledger.Consume(user.WhopUserID, 1)
	if err != nil {
		return nil, err
	}

	result := models.Result{
		UserID:   user.ID,
		WPM:      score.WPM,
		Accuracy: score.Accuracy,
	}
	if err := r.db.Create(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	outcome := &RunOutcome{
		Result:  result,
		Score:   score,
		Credits: credits,
		Awards:  []AppliedReward{},
	}

	// Personal-best signal only; a failure here never fails the run.
	personalBest, err := r.isPersonalBest(user.ID, result.ID, score.WPM)
	if err != nil {
		log.Printf("Failed to evaluate personal best for user %s: %v", user.ID, err)
	}
	outcome.PersonalBest = personalBest

	earned, err := r.earnedPerTier(user.ID)
	if err != nil {
		log.Printf("Failed to load earned reward totals for user %s: %v", user.ID, err)
		earned = map[string]float64{}
	}

	adjustments := EvaluateRewards(score.WPM, score.Accuracy, r.tiers, earned)

	for _, adj := range adjustments {
		if err := r.applyReward(user, &result, adj); err != nil {
			// Partial-failure semantics: skip this tier, keep the rest.
			log.Printf("Failed to credit reward %q for user %s: %v", adj.Tier.ID, user.ID, err)
			continue
		}
		outcome.Awards = append(outcome.Awards, AppliedReward{
			RewardKey: adj.Tier.ID,
			Amount:    adj.Increment,
			NewTotal:  adj.NewTotal,
		})
		outcome.TotalAwarded = round2(outcome.TotalAwarded + adj.Increment)
	}

	total, _, err := r.totalEarnings(user.ID)
	if err != nil {
		log.Printf("Failed to recompute earnings for user %s: %v", user.ID, err)
	}
	outcome.TotalEarnings = total

	if r.feed != nil {
		r.feed.Publish(RunEvent{
			ResultID:     result.ID,
			Username:     user.Username,
			WPM:          score.WPM,
			Accuracy:     score.Accuracy,
			RewardEarned: outcome.TotalAwarded,
			CreatedAt:    result.CreatedAt,
		})
	}

	return outcome, nil
}

// applyReward inserts the (user, tier) row or, when it already exists, bumps
// its cumulative amount in place. The upsert is a single statement so two
// qualifying runs landing together both add their increment instead of one
// overwriting the other.
func (r *RunRecorder) applyReward(user *models.User, result *models.Result, adj RewardAdjustment) error {
	reward := models.Reward{
		UserID:    user.ID,
		RewardKey: adj.Tier.ID,
		Amount:    adj.Increment,
		ResultID:  result.ID,
		Username:  user.Username,
		WPM:       result.WPM,
		Accuracy:  result.Accuracy,
	}

	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "reward_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("rewards.amount + excluded.amount"),
			"result_id":  result.ID,
			"username":   user.Username,
			"wpm":        result.WPM,
			"accuracy":   result.Accuracy,
			"updated_at": time.Now(),
		}),
	}).Create(&reward).Error
}

func (r *RunRecorder) isPersonalBest(userID, resultID string, wpm float64) (bool, error) {
	var best models.Result
	err := r.db.Where("user_id = ? AND id <> ?", userID, resultID).
		Order("wpm DESC").
		Limit(1).
		First(&best).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return wpm > best.WPM, nil
}

func (r *RunRecorder) earnedPerTier(userID string) (map[string]float64, error) {
	var rewards []models.Reward
	if err := r.db.Where("user_id = ?", userID).Find(&rewards).Error; err != nil {
		return nil, err
	}

	earned := make(map[string]float64, len(rewards))
	for _, reward := range rewards {
		if !isFinite(reward.Amount) {
			continue
		}
		earned[reward.RewardKey] += reward.Amount
	}
	return earned, nil
}

func (r *RunRecorder) totalEarnings(userID string) (float64, int, error) {
	earned, err := r.earnedPerTier(userID)
	if err != nil {
		return 0, 0, err
	}

	total := 0.0
	for _, amount := range earned {
		total += amount
	}
	return round2(total), len(earned), nil
}
