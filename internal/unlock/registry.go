// internal/unlock/registry.go
//
// Unlock transitions and storefront grants. Every operation composes its
// spend/award with its bookkeeping inside one guarded mutation, so there is
// no window where coins are deducted but the unlock is missing, or the
// other way around.
//
// Re-unlock policy: a duplicate unlock is rejected with ErrAlreadyUnlocked
// (and no coins move), rather than silently succeeding, so the UI can tell
// the player what happened.
package unlock

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/karlijc92/fartopia/internal/catalog"
	"github.com/karlijc92/fartopia/internal/economy"
	"github.com/karlijc92/fartopia/internal/progress"
)

var (
	// ErrUnknownItem rejects ids not present in the catalog.
	ErrUnknownItem = errors.New("unknown catalog item")
	// ErrAlreadyUnlocked rejects a duplicate unlock attempt.
	ErrAlreadyUnlocked = errors.New("already unlocked")
	// ErrAlreadyClaimed rejects a second claim of the same achievement.
	ErrAlreadyClaimed = errors.New("achievement already claimed")
	// ErrNotEligible rejects an achievement claim whose condition is unmet.
	ErrNotEligible = errors.New("achievement requirements not met")
	// ErrPINAlreadySet rejects overwriting an existing parental PIN.
	ErrPINAlreadySet = errors.New("parent pin already set")
	// ErrPINTooShort rejects PINs under four digits.
	ErrPINTooShort = errors.New("parent pin too short")
	// ErrPINRequired rejects purchases before a parental PIN exists.
	ErrPINRequired = errors.New("parent pin not set")
	// ErrPINMismatch rejects purchases with a wrong PIN.
	ErrPINMismatch = errors.New("parent pin mismatch")
)

// Registry runs unlock, achievement, and purchase operations through the
// guard against the static catalog.
type Registry struct {
	guard *progress.Guard
}

// NewRegistry wires the registry to the one guard owning all writes.
func NewRegistry(guard *progress.Guard) *Registry {
	return &Registry{guard: guard}
}

// UnlockCreature spends the creature's cost and marks it unlocked in one
// atomic step. InsufficientFunds propagates untouched and nothing changes.
func (r *Registry) UnlockCreature(ctx context.Context, playerID, creatureID string) (*progress.Record, error) {
	c, ok := catalog.CreatureByID(creatureID)
	if !ok {
		return nil, ErrUnknownItem
	}
	return r.guard.Update(ctx, playerID, func(rec *progress.Record) error {
		if rec.UnlockedCreatures[creatureID] {
			return ErrAlreadyUnlocked
		}
		if err := economy.SpendCoins(rec, c.Cost); err != nil {
			return err
		}
		rec.UnlockedCreatures[creatureID] = true
		return nil
	})
}

// UnlockHabitat spends the habitat's cost and marks it unlocked in one
// atomic step.
func (r *Registry) UnlockHabitat(ctx context.Context, playerID, habitatID string) (*progress.Record, error) {
	h, ok := catalog.HabitatByID(habitatID)
	if !ok {
		return nil, ErrUnknownItem
	}
	return r.guard.Update(ctx, playerID, func(rec *progress.Record) error {
		if rec.UnlockedHabitats[habitatID] {
			return ErrAlreadyUnlocked
		}
		if err := economy.SpendCoins(rec, h.Cost); err != nil {
			return err
		}
		rec.UnlockedHabitats[habitatID] = true
		return nil
	})
}

// ClaimAchievement awards the achievement's coins once, after its condition
// checks out against the freshly loaded record.
func (r *Registry) ClaimAchievement(ctx context.Context, playerID, achievementID string) (*progress.Record, error) {
	a, ok := catalog.AchievementByID(achievementID)
	if !ok {
		return nil, ErrUnknownItem
	}
	return r.guard.Update(ctx, playerID, func(rec *progress.Record) error {
		if rec.Achievements[achievementID] {
			return ErrAlreadyClaimed
		}
		if !economy.AchievementEligible(rec, a) {
			return ErrNotEligible
		}
		if err := economy.AwardCoins(rec, a.Reward); err != nil {
			return err
		}
		rec.Achievements[achievementID] = true
		return nil
	})
}

// SetParentPIN stores a bcrypt hash of the parental-gate PIN. The PIN can
// only be set once; resetting it is an out-of-band support action.
func (r *Registry) SetParentPIN(ctx context.Context, playerID, pin string) (*progress.Record, error) {
	if len(pin) < 4 {
		return nil, ErrPINTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return r.guard.Update(ctx, playerID, func(rec *progress.Record) error {
		if rec.ParentPINHash != "" {
			return ErrPINAlreadySet
		}
		rec.ParentPINHash = string(hash)
		return nil
	})
}

// ConfirmPurchase applies a confirmed storefront purchase: coin packs credit
// the balance, the remove-ads item flips the settings flag once. The
// parental PIN gates every confirmation. Payment itself happens outside
// this process; by the time this runs the purchase is already paid for.
func (r *Registry) ConfirmPurchase(ctx context.Context, playerID, packID, pin string) (*progress.Record, error) {
	p, ok := catalog.PackByID(packID)
	if !ok {
		return nil, ErrUnknownItem
	}
	return r.guard.Update(ctx, playerID, func(rec *progress.Record) error {
		if rec.ParentPINHash == "" {
			return ErrPINRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(rec.ParentPINHash), []byte(pin)) != nil {
			return ErrPINMismatch
		}
		if p.RemovesAds {
			if rec.Settings.AdsRemoved {
				return ErrAlreadyUnlocked
			}
			rec.Settings.AdsRemoved = true
			return nil
		}
		return economy.AwardCoins(rec, p.Coins)
	})
}
