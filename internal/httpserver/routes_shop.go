// internal/httpserver/routes_shop.go
//
// Storefront and catalog routes.
//   - GET  /catalog/creatures|habitats|packs|achievements → static catalog
//   - POST /purchases/pin     → set the parental-gate PIN (once)
//   - POST /purchases/confirm → apply a confirmed purchase
//
// The confirm endpoint is the single entry point the payment collaborator
// gets: it is called only after a purchase is complete, and it only grants
// (coins or ads removal) — the server never initiates or validates payment.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/karlijc92/fartopia/internal/catalog"
)

// mountShop registers catalog and purchase routes.
func (s *Server) mountShop() {
	// Catalog is static and player-independent.
	s.r.Route("/catalog", func(r chi.Router) {
		r.Get("/creatures", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(catalog.Creatures())
		})
		r.Get("/habitats", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(catalog.Habitats())
		})
		r.Get("/packs", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(catalog.Packs())
		})
		r.Get("/achievements", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(catalog.Achievements())
		})
	})

	s.r.Group(func(r chi.Router) {
		r.Use(s.withPlayer)
		r.Post("/purchases/pin", s.handleSetPIN)
		r.Post("/purchases/confirm", s.handleConfirmPurchase)
	})
}

type setPINReq struct {
	PIN string `json:"pin"`
}

func (s *Server) handleSetPIN(w http.ResponseWriter, r *http.Request) {
	var req setPINReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	rec, err := s.registry.SetParentPIN(r.Context(), playerID(r), req.PIN)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(rec))
}

type confirmPurchaseReq struct {
	PackID string `json:"packId"`
	PIN    string `json:"pin"`
}

func (s *Server) handleConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	var req confirmPurchaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	rec, err := s.registry.ConfirmPurchase(r.Context(), playerID(r), req.PackID, req.PIN)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	log.Info().Str("player", rec.ID).Str("pack", req.PackID).Msg("purchase granted")
	_ = json.NewEncoder(w).Encode(viewOf(rec))
}
