// internal/httpserver/server.go
//
// HTTP wiring for the Fartopia backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", catalog reads.
//   - Player endpoints: progress read, settings, daily bonus, mini-game
//     results, unlocks, achievements (mounted behind the player cookie).
//   - Storefront endpoints under /purchases (see routes_shop.go).
//   - Player identity via a signed HttpOnly cookie, issued on first contact.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled so the cookie works from
//     the SPA origin.
//   - Domain failures map to typed JSON errors; a persistence failure maps
//     to 503 progress_not_saved so the UI never shows a false success.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/karlijc92/fartopia/internal/economy"
	"github.com/karlijc92/fartopia/internal/progress"
	"github.com/karlijc92/fartopia/internal/unlock"
)

// Config carries the edge settings the server needs from main.
type Config struct {
	JWTSecret    string
	CookieName   string
	ClientOrigin string
	Production   bool
}

// Server bundles the router, the guard (all reads/writes), and the unlock
// registry.
type Server struct {
	r        *chi.Mux
	guard    *progress.Guard
	registry *unlock.Registry
	cfg      Config
}

// New constructs a Server, installs middleware, and registers routes.
func New(guard *progress.Guard, registry *unlock.Registry, cfg Config) *Server {
	s := &Server{r: chi.NewRouter(), guard: guard, registry: registry, cfg: cfg}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"fartopia-api","endpoints":["/health","/progress","/daily/claim","/catalog/creatures"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Player endpoints — the cookie identifies (or creates) the player.
	s.r.Group(func(r chi.Router) {
		r.Use(s.withPlayer)
		r.Get("/progress", s.handleProgress)
		r.Post("/progress/settings", s.handleSettings)
		r.Post("/daily/claim", s.handleDailyClaim)
		r.Post("/games/{gameID}/result", s.handleGameResult)
		r.Post("/creatures/{creatureID}/unlock", s.handleUnlockCreature)
		r.Post("/habitats/{habitatID}/unlock", s.handleUnlockHabitat)
		r.Post("/achievements/{achievementID}/claim", s.handleClaimAchievement)
	})

	s.mountShop()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured SPA origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------------------------- player identity -------------------------------

// ctxPlayerKey is the context key type for the player id.
type ctxPlayerKey struct{}

// withPlayer resolves the player id from the signed cookie, minting a fresh
// id + cookie when absent or invalid. The game has no accounts; the cookie
// is the whole identity, like the original's per-browser save slot.
func (s *Server) withPlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pid := s.playerFromToken(r)
		if pid == "" {
			pid = uuid.NewString()
			if err := s.setPlayerCookie(w, pid); err != nil {
				log.Error().Err(err).Msg("sign player token")
				http.Error(w, `{"error":"token_failed"}`, http.StatusInternalServerError)
				return
			}
		}
		ctx := context.WithValue(r.Context(), ctxPlayerKey{}, pid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// playerID pulls the player id out of the request context.
func playerID(r *http.Request) string {
	pid, _ := r.Context().Value(ctxPlayerKey{}).(string)
	return pid
}

// playerFromToken parses the player cookie and returns the id, or "" when
// missing/invalid.
func (s *Server) playerFromToken(r *http.Request) string {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !t.Valid {
		return ""
	}
	pid, _ := claims["pid"].(string)
	return pid
}

// setPlayerCookie signs a long-lived player token and writes the cookie.
func (s *Server) setPlayerCookie(w http.ResponseWriter, pid string) error {
	exp := time.Now().Add(365 * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"pid": pid,
		"iat": time.Now().Unix(),
		"exp": exp.Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return err
	}
	sameSite := http.SameSiteLaxMode
	if s.cfg.Production {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    ss,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: sameSite,
		Expires:  exp,
	})
	return nil
}

// ----------------------------- error mapping -------------------------------

// writeDomainErr maps typed domain failures onto HTTP statuses. Anything
// unrecognized is a 500.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrInsufficientFunds):
		http.Error(w, `{"error":"insufficient_funds"}`, http.StatusPaymentRequired)
	case errors.Is(err, economy.ErrAlreadyClaimedToday):
		http.Error(w, `{"error":"already_claimed"}`, http.StatusConflict)
	case errors.Is(err, economy.ErrInvalidAmount), errors.Is(err, economy.ErrInvalidScore):
		http.Error(w, `{"error":"invalid_amount"}`, http.StatusBadRequest)
	case errors.Is(err, economy.ErrUnknownGame):
		http.Error(w, `{"error":"unknown_game"}`, http.StatusNotFound)
	case errors.Is(err, unlock.ErrUnknownItem):
		http.Error(w, `{"error":"unknown_item"}`, http.StatusNotFound)
	case errors.Is(err, unlock.ErrAlreadyUnlocked):
		http.Error(w, `{"error":"already_unlocked"}`, http.StatusConflict)
	case errors.Is(err, unlock.ErrAlreadyClaimed):
		http.Error(w, `{"error":"already_claimed"}`, http.StatusConflict)
	case errors.Is(err, unlock.ErrNotEligible):
		http.Error(w, `{"error":"not_eligible"}`, http.StatusPreconditionFailed)
	case errors.Is(err, unlock.ErrPINAlreadySet):
		http.Error(w, `{"error":"pin_already_set"}`, http.StatusConflict)
	case errors.Is(err, unlock.ErrPINTooShort):
		http.Error(w, `{"error":"pin_too_short"}`, http.StatusBadRequest)
	case errors.Is(err, unlock.ErrPINRequired), errors.Is(err, unlock.ErrPINMismatch):
		http.Error(w, `{"error":"parent_gate"}`, http.StatusForbidden)
	case progress.IsPersistenceErr(err):
		http.Error(w, `{"error":"progress_not_saved"}`, http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("unhandled domain error")
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}
}

// ----------------------------- progress view -------------------------------

// progressView is the record as the UI sees it: the PIN hash stays server
// side; only whether a PIN exists is exposed.
type progressView struct {
	ID                string            `json:"id"`
	Coins             int64             `json:"coins"`
	HighScores        map[string]int    `json:"highScores"`
	DailyStreak       int               `json:"dailyStreak"`
	LastDailyClaim    string            `json:"lastDailyClaim,omitempty"`
	UnlockedCreatures map[string]bool   `json:"unlockedCreatures"`
	UnlockedHabitats  map[string]bool   `json:"unlockedHabitats"`
	Achievements      map[string]bool   `json:"achievements"`
	Settings          progress.Settings `json:"settings"`
	ParentPINSet      bool              `json:"parentPinSet"`
}

func viewOf(rec *progress.Record) progressView {
	return progressView{
		ID:                rec.ID,
		Coins:             rec.Coins,
		HighScores:        rec.HighScores,
		DailyStreak:       rec.DailyStreak,
		LastDailyClaim:    rec.LastDailyClaim,
		UnlockedCreatures: rec.UnlockedCreatures,
		UnlockedHabitats:  rec.UnlockedHabitats,
		Achievements:      rec.Achievements,
		Settings:          rec.Settings,
		ParentPINSet:      rec.ParentPINHash != "",
	}
}

// ------------------------------- handlers ----------------------------------

// handleProgress returns the player's current record. May be stale by at
// most one in-flight mutation; mutating endpoints return the authoritative
// post-write record so the UI reconciles from those.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := s.guard.Current(r.Context(), playerID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(rec))
}

// settingsReq toggles are pointers so absent fields stay untouched.
// AdsRemoved is deliberately not settable here; it only flips via a
// confirmed purchase.
type settingsReq struct {
	SoundEnabled     *bool `json:"soundEnabled"`
	VibrationEnabled *bool `json:"vibrationEnabled"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	rec, err := s.guard.Update(r.Context(), playerID(r), func(rec *progress.Record) error {
		if req.SoundEnabled != nil {
			rec.Settings.SoundEnabled = *req.SoundEnabled
		}
		if req.VibrationEnabled != nil {
			rec.Settings.VibrationEnabled = *req.VibrationEnabled
		}
		return nil
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(rec))
}

// dailyClaimRes is the response for POST /daily/claim.
type dailyClaimRes struct {
	Progress progressView `json:"progress"`
	Streak   int          `json:"streak"`
	Reward   int64        `json:"reward"`
}

func (s *Server) handleDailyClaim(w http.ResponseWriter, r *http.Request) {
	var claim economy.DailyClaim
	rec, err := s.guard.Update(r.Context(), playerID(r), func(rec *progress.Record) error {
		var err error
		claim, err = economy.ClaimDailyBonus(rec, time.Now())
		return err
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	log.Info().Str("player", rec.ID).Int("streak", claim.Streak).Int64("reward", claim.Reward).Msg("daily bonus claimed")
	_ = json.NewEncoder(w).Encode(dailyClaimRes{Progress: viewOf(rec), Streak: claim.Streak, Reward: claim.Reward})
}

// gameResultReq is what a finished mini-game session reports.
type gameResultReq struct {
	Score       int   `json:"score"`
	CoinsEarned int64 `json:"coinsEarned"`
}
type gameResultRes struct {
	Progress     progressView `json:"progress"`
	NewHighScore bool         `json:"newHighScore"`
}

// handleGameResult credits the session's coins and records the score as one
// atomic step. An award already submitted is honored even if the player has
// navigated away; it is never retracted.
func (s *Server) handleGameResult(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req gameResultReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	var newHigh bool
	rec, err := s.guard.Update(r.Context(), playerID(r), func(rec *progress.Record) error {
		var err error
		if newHigh, err = economy.RecordScore(rec, gameID, req.Score); err != nil {
			return err
		}
		return economy.AwardCoins(rec, req.CoinsEarned)
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(gameResultRes{Progress: viewOf(rec), NewHighScore: newHigh})
}

func (s *Server) handleUnlockCreature(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.UnlockCreature(r.Context(), playerID(r), chi.URLParam(r, "creatureID"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(rec))
}

func (s *Server) handleUnlockHabitat(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.UnlockHabitat(r.Context(), playerID(r), chi.URLParam(r, "habitatID"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(rec))
}

func (s *Server) handleClaimAchievement(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.ClaimAchievement(r.Context(), playerID(r), chi.URLParam(r, "achievementID"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(rec))
}
