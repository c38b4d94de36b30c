// internal/economy/engine.go
//
// All coin-balance, streak, and score business rules, expressed as
// transformations of a progress.Record. No I/O here: the guard hands each
// rule an isolated copy of the record and owns persistence, so every rule
// is unit-testable in isolation.
//
// Every rule validates before it mutates; a returned error means the record
// was not changed at all.
package economy

import (
	"errors"
	"math"
	"time"

	"github.com/karlijc92/fartopia/internal/catalog"
	"github.com/karlijc92/fartopia/internal/progress"
)

var (
	// ErrInvalidAmount rejects negative coin amounts before any mutation.
	ErrInvalidAmount = errors.New("invalid coin amount")
	// ErrInsufficientFunds rejects a spend against a balance too low.
	ErrInsufficientFunds = errors.New("insufficient coins")
	// ErrAlreadyClaimedToday rejects a second daily-bonus claim on the same
	// UTC calendar day.
	ErrAlreadyClaimedToday = errors.New("daily bonus already claimed today")
	// ErrInvalidScore rejects negative scores.
	ErrInvalidScore = errors.New("invalid score")
	// ErrUnknownGame rejects scores for games not in the catalog.
	ErrUnknownGame = errors.New("unknown game")
)

// Daily bonus reward: base plus 10 per streak day, bonus capped at 100.
const (
	dailyBaseReward     int64 = 100
	dailyStreakStep     int64 = 10
	dailyStreakBonusCap int64 = 100
)

// AwardCoins credits amount to the balance. Zero is a valid no-op award;
// negative amounts, and amounts that would overflow the balance, are
// rejected. The balance never wraps negative.
func AwardCoins(rec *progress.Record, amount int64) error {
	if amount < 0 || amount > math.MaxInt64-rec.Coins {
		return ErrInvalidAmount
	}
	rec.Coins += amount
	return nil
}

// SpendCoins debits amount from the balance. The check runs against the
// record the guard just loaded, never a stale snapshot, so a successful
// spend can never drive the balance negative.
func SpendCoins(rec *progress.Record, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if rec.Coins < amount {
		return ErrInsufficientFunds
	}
	rec.Coins -= amount
	return nil
}

// DateKey returns YYYY-MM-DD in UTC. All same-day / next-day comparisons in
// the daily bonus use this single time zone policy.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailyClaim reports the outcome of a successful daily-bonus claim.
type DailyClaim struct {
	Streak int   `json:"streak"`
	Reward int64 `json:"reward"`
}

// ClaimDailyBonus claims the daily bonus at time now.
//
//   - Same UTC calendar day as the last claim: ErrAlreadyClaimedToday.
//   - Last claim exactly one day before: streak continues (+1).
//   - Gap of two or more days, or first ever claim: streak restarts at 1.
//
// The reward is credited and the claim timestamp advanced in the same step.
func ClaimDailyBonus(rec *progress.Record, now time.Time) (DailyClaim, error) {
	today := DateKey(now)
	streak := 1
	if last, ok := rec.LastClaimTime(); ok {
		switch DateKey(last) {
		case today:
			return DailyClaim{}, ErrAlreadyClaimedToday
		case DateKey(now.AddDate(0, 0, -1)):
			streak = rec.DailyStreak + 1
		}
	}

	bonus := int64(streak) * dailyStreakStep
	if bonus > dailyStreakBonusCap {
		bonus = dailyStreakBonusCap
	}
	reward := dailyBaseReward + bonus

	if err := AwardCoins(rec, reward); err != nil {
		return DailyClaim{}, err
	}
	rec.DailyStreak = streak
	rec.LastDailyClaim = now.UTC().Format(time.RFC3339)
	return DailyClaim{Streak: streak, Reward: reward}, nil
}

// RecordScore stores score as the high score for gameID if it beats the
// stored value. Reports whether a new high score was set. Scores never
// decrease a stored high score.
func RecordScore(rec *progress.Record, gameID string, score int) (bool, error) {
	if !catalog.IsGame(gameID) {
		return false, ErrUnknownGame
	}
	if score < 0 {
		return false, ErrInvalidScore
	}
	if cur, ok := rec.HighScores[gameID]; ok && score <= cur {
		return false, nil
	}
	rec.HighScores[gameID] = score
	return true, nil
}

// AchievementEligible reports whether the record currently satisfies the
// achievement's condition. Claiming is the registry's job; this is the pure
// check.
func AchievementEligible(rec *progress.Record, a catalog.Achievement) bool {
	switch a.Kind {
	case catalog.AchievementCreatures:
		return len(rec.UnlockedCreatures) >= a.Threshold
	case catalog.AchievementHabitats:
		return len(rec.UnlockedHabitats) >= a.Threshold
	case catalog.AchievementGamesPlayed:
		return len(rec.HighScores) >= a.Threshold
	case catalog.AchievementGameScore:
		return rec.HighScores[a.GameID] >= a.Threshold
	}
	return false
}
