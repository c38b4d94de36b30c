// internal/catalog/catalog.go
//
// Static game catalog: creatures, habitats, coin packs, and achievements.
// The data is embedded so the server runs without any external files; the
// UI owns the cosmetic side (names, emoji, sounds) and only needs the ids,
// costs, and rarities served here.
//
// The catalog is read-only. Nothing in this package or its consumers ever
// mutates it after Init.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed creatures.json
var creaturesJSON []byte

//go:embed habitats.json
var habitatsJSON []byte

//go:embed packs.json
var packsJSON []byte

//go:embed achievements.json
var achievementsJSON []byte

// Rarity buckets determine unlock cost and whether a creature starts
// unlocked (Common creatures do).
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityRare      Rarity = "Rare"
	RarityEpic      Rarity = "Epic"
	RarityLegendary Rarity = "Legendary"
)

// Creature is one collectible creature definition.
type Creature struct {
	ID     string `json:"id"`
	Rarity Rarity `json:"rarity"`
	Cost   int64  `json:"cost"`
}

// Habitat is one unlockable habitat definition. Cost 0 marks a starter
// habitat that every new record begins with.
type Habitat struct {
	ID   string `json:"id"`
	Cost int64  `json:"cost"`
}

// Pack is a storefront item granted on purchase confirmation: either a coin
// bundle or the one-time ads removal.
type Pack struct {
	ID         string `json:"id"`
	Coins      int64  `json:"coins"`
	RemovesAds bool   `json:"removes_ads,omitempty"`
}

// Achievement condition kinds.
const (
	AchievementCreatures   = "creatures"    // unlocked creature count
	AchievementHabitats    = "habitats"     // unlocked habitat count
	AchievementGamesPlayed = "games_played" // distinct mini-games played
	AchievementGameScore   = "game_score"   // high score in one game
)

// Achievement is a one-time coin reward with an eligibility condition.
type Achievement struct {
	ID        string `json:"id"`
	Reward    int64  `json:"reward"`
	Kind      string `json:"kind"`
	Threshold int    `json:"threshold"`
	GameID    string `json:"game_id,omitempty"`
}

// gameIDs are the mini-games that may report results. Per-game high scores
// are keyed by these.
var gameIDs = []string{"tap", "memory", "pattern", "bubble", "race"}

var (
	initOnce     sync.Once
	initialErr   error
	creatures    []Creature
	habitats     []Habitat
	packs        []Pack
	achievements []Achievement

	creatureIdx    map[string]Creature
	habitatIdx     map[string]Habitat
	packIdx        map[string]Pack
	achievementIdx map[string]Achievement
	gameIdx        map[string]struct{}
)

// Init parses the embedded catalog once. Safe to call from multiple
// packages; later calls return the first result.
func Init() error {
	initOnce.Do(func() {
		initialErr = load()
	})
	return initialErr
}

func load() error {
	if err := json.Unmarshal(creaturesJSON, &creatures); err != nil {
		return fmt.Errorf("parse creatures catalog: %w", err)
	}
	if err := json.Unmarshal(habitatsJSON, &habitats); err != nil {
		return fmt.Errorf("parse habitats catalog: %w", err)
	}
	if err := json.Unmarshal(packsJSON, &packs); err != nil {
		return fmt.Errorf("parse packs catalog: %w", err)
	}
	if err := json.Unmarshal(achievementsJSON, &achievements); err != nil {
		return fmt.Errorf("parse achievements catalog: %w", err)
	}

	creatureIdx = make(map[string]Creature, len(creatures))
	for _, c := range creatures {
		if _, dup := creatureIdx[c.ID]; dup {
			return fmt.Errorf("duplicate creature id %q", c.ID)
		}
		creatureIdx[c.ID] = c
	}
	habitatIdx = make(map[string]Habitat, len(habitats))
	for _, h := range habitats {
		if _, dup := habitatIdx[h.ID]; dup {
			return fmt.Errorf("duplicate habitat id %q", h.ID)
		}
		habitatIdx[h.ID] = h
	}
	packIdx = make(map[string]Pack, len(packs))
	for _, p := range packs {
		packIdx[p.ID] = p
	}
	achievementIdx = make(map[string]Achievement, len(achievements))
	for _, a := range achievements {
		achievementIdx[a.ID] = a
	}
	gameIdx = make(map[string]struct{}, len(gameIDs))
	for _, g := range gameIDs {
		gameIdx[g] = struct{}{}
	}
	return nil
}

func ensure() {
	if err := Init(); err != nil {
		panic("catalog: " + err.Error())
	}
}

// Creatures returns all creature definitions.
func Creatures() []Creature { ensure(); return creatures }

// Habitats returns all habitat definitions.
func Habitats() []Habitat { ensure(); return habitats }

// Packs returns all storefront pack definitions.
func Packs() []Pack { ensure(); return packs }

// Achievements returns all achievement definitions.
func Achievements() []Achievement { ensure(); return achievements }

// CreatureByID looks up one creature.
func CreatureByID(id string) (Creature, bool) {
	ensure()
	c, ok := creatureIdx[id]
	return c, ok
}

// HabitatByID looks up one habitat.
func HabitatByID(id string) (Habitat, bool) {
	ensure()
	h, ok := habitatIdx[id]
	return h, ok
}

// PackByID looks up one storefront pack.
func PackByID(id string) (Pack, bool) {
	ensure()
	p, ok := packIdx[id]
	return p, ok
}

// AchievementByID looks up one achievement.
func AchievementByID(id string) (Achievement, bool) {
	ensure()
	a, ok := achievementIdx[id]
	return a, ok
}

// IsGame reports whether id is a known mini-game.
func IsGame(id string) bool {
	ensure()
	_, ok := gameIdx[id]
	return ok
}

// GameCount is the number of known mini-games.
func GameCount() int { return len(gameIDs) }

// StarterCreatureIDs lists creatures every new record starts with
// (all Common creatures).
func StarterCreatureIDs() []string {
	ensure()
	var out []string
	for _, c := range creatures {
		if c.Rarity == RarityCommon {
			out = append(out, c.ID)
		}
	}
	return out
}

// StarterHabitatIDs lists habitats every new record starts with
// (the zero-cost ones).
func StarterHabitatIDs() []string {
	ensure()
	var out []string
	for _, h := range habitats {
		if h.Cost == 0 {
			out = append(out, h.ID)
		}
	}
	return out
}
