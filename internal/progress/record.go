// internal/progress/record.go
//
// The durable per-player progress record: coin balance, per-game high
// scores, daily-bonus streak, unlock sets, achievements, and settings.
// One record per player; it is created lazily with defaults on first load
// and never deleted during normal play.
//
// Stored as a single JSON object per player. decodeRecord repairs stored
// data field by field, so one corrupt field never wipes the valid ones.
package progress

import (
	"encoding/json"
	"time"

	"github.com/karlijc92/fartopia/internal/catalog"
)

// Settings are the player-facing toggles.
type Settings struct {
	SoundEnabled     bool `json:"sound_enabled"`
	VibrationEnabled bool `json:"vibration_enabled"`
	AdsRemoved       bool `json:"ads_removed"`
}

// Record is the single source of truth for a player's progress.
//
// Invariants (enforced by the economy rules and the guard, restored by
// normalize after decode):
//   - Coins is never negative.
//   - Unlock sets hold each id at most once (map encoding makes this free).
//   - DailyStreak is never negative.
type Record struct {
	ID                string          `json:"id"`
	Coins             int64           `json:"coins"`
	HighScores        map[string]int  `json:"high_scores"`
	DailyStreak       int             `json:"daily_streak"`
	LastDailyClaim    string          `json:"last_daily_claim,omitempty"` // RFC3339 UTC
	UnlockedCreatures map[string]bool `json:"unlocked_creatures"`
	UnlockedHabitats  map[string]bool `json:"unlocked_habitats"`
	Achievements      map[string]bool `json:"achievements"`
	Settings          Settings        `json:"settings"`
	ParentPINHash     string          `json:"parent_pin_hash,omitempty"` // never exposed over HTTP
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

// NewRecord builds the default record for a player: zero coins, sound and
// vibration on, Common creatures and starter habitats unlocked.
func NewRecord(playerID string, now time.Time) *Record {
	ts := now.UTC().Format(time.RFC3339)
	rec := &Record{
		ID:                playerID,
		HighScores:        map[string]int{},
		UnlockedCreatures: map[string]bool{},
		UnlockedHabitats:  map[string]bool{},
		Achievements:      map[string]bool{},
		Settings:          Settings{SoundEnabled: true, VibrationEnabled: true},
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	for _, id := range catalog.StarterCreatureIDs() {
		rec.UnlockedCreatures[id] = true
	}
	for _, id := range catalog.StarterHabitatIDs() {
		rec.UnlockedHabitats[id] = true
	}
	return rec
}

// Clone deep-copies the record. The guard mutates only clones, so a failed
// operation can never leak a partial change into a shared record.
func (r *Record) Clone() *Record {
	c := *r
	c.HighScores = make(map[string]int, len(r.HighScores))
	for k, v := range r.HighScores {
		c.HighScores[k] = v
	}
	c.UnlockedCreatures = cloneSet(r.UnlockedCreatures)
	c.UnlockedHabitats = cloneSet(r.UnlockedHabitats)
	c.Achievements = cloneSet(r.Achievements)
	return &c
}

func cloneSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LastClaimTime parses the last daily claim timestamp.
// ok is false when the player has never claimed (or the stored value is
// unreadable, which counts as never claimed).
func (r *Record) LastClaimTime() (t time.Time, ok bool) {
	if r.LastDailyClaim == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, r.LastDailyClaim)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Touch stamps the record as updated.
func (r *Record) Touch(now time.Time) {
	r.UpdatedAt = now.UTC().Format(time.RFC3339)
}

// decodeRecord rebuilds a Record from stored JSON. It starts from the
// default record and overlays every field that parses cleanly; fields that
// are missing or corrupt keep their defaults. It never fails: on fully
// unreadable data the caller gets the default record back.
//
// repaired reports whether the stored bytes needed any repair (a required
// field missing or unparseable, or an invariant restored). Stores persist
// the repaired record immediately so corrupt bytes do not outlive the load
// that found them.
func decodeRecord(data []byte, playerID string, now time.Time) (rec *Record, repaired bool) {
	rec = NewRecord(playerID, now)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return rec, true
	}
	overlay := func(key string, dst any, required bool) {
		v, ok := raw[key]
		if !ok {
			repaired = repaired || required
			return
		}
		if err := json.Unmarshal(v, dst); err != nil {
			repaired = true
		}
	}

	overlay("coins", &rec.Coins, true)
	overlay("high_scores", &rec.HighScores, true)
	overlay("daily_streak", &rec.DailyStreak, true)
	overlay("last_daily_claim", &rec.LastDailyClaim, false)
	overlay("unlocked_creatures", &rec.UnlockedCreatures, true)
	overlay("unlocked_habitats", &rec.UnlockedHabitats, true)
	overlay("achievements", &rec.Achievements, true)
	overlay("settings", &rec.Settings, true)
	overlay("parent_pin_hash", &rec.ParentPINHash, false)
	overlay("created_at", &rec.CreatedAt, true)
	overlay("updated_at", &rec.UpdatedAt, true)
	if _, ok := raw["id"]; !ok {
		repaired = true
	}

	// The record id follows the storage key, not whatever was stored.
	rec.ID = playerID
	if rec.normalize() {
		repaired = true
	}
	return rec, repaired
}

// normalize restores invariants after an overlay: no negative counters, no
// nil sets. Reports whether anything had to change.
func (r *Record) normalize() (changed bool) {
	if r.Coins < 0 {
		r.Coins = 0
		changed = true
	}
	if r.DailyStreak < 0 {
		r.DailyStreak = 0
		changed = true
	}
	if r.HighScores == nil {
		r.HighScores = map[string]int{}
		changed = true
	}
	for k, v := range r.HighScores {
		if v < 0 {
			r.HighScores[k] = 0
			changed = true
		}
	}
	if r.UnlockedCreatures == nil {
		r.UnlockedCreatures = map[string]bool{}
		changed = true
	}
	if r.UnlockedHabitats == nil {
		r.UnlockedHabitats = map[string]bool{}
		changed = true
	}
	if r.Achievements == nil {
		r.Achievements = map[string]bool{}
		changed = true
	}
	return changed
}
