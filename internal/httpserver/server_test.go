package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/karlijc92/fartopia/internal/progress"
	"github.com/karlijc92/fartopia/internal/unlock"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	guard := progress.NewGuard(progress.NewMemoryStore(), 1)
	return New(guard, unlock.NewRegistry(guard), Config{
		JWTSecret:    "test_secret",
		CookieName:   "fartopia_player",
		ClientOrigin: "http://localhost:5173",
	})
}

// client replays the player cookie across requests, like a browser would.
type client struct {
	t       *testing.T
	router  http.Handler
	cookies []*http.Cookie
}

func newClient(t *testing.T, s *Server) *client {
	return &client{t: t, router: s.Router()}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)
	if cks := rr.Result().Cookies(); len(cks) > 0 {
		c.cookies = cks
	}
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("bad response body %q: %v", rr.Body.String(), err)
	}
	return m
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rr.Code != code {
		t.Fatalf("status = %d, expected %d; body: %s", rr.Code, code, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	c := newClient(t, newTestServer(t))
	rr := c.do(http.MethodGet, "/health", nil)
	wantStatus(t, rr, http.StatusOK)
}

func TestProgressIssuesCookieAndDefaults(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rr := c.do(http.MethodGet, "/progress", nil)
	wantStatus(t, rr, http.StatusOK)
	if len(c.cookies) == 0 {
		t.Fatal("first contact should set the player cookie")
	}
	body := decodeBody(t, rr)
	if body["coins"].(float64) != 0 {
		t.Errorf("coins = %v, expected 0", body["coins"])
	}
	creatures := body["unlockedCreatures"].(map[string]any)
	if len(creatures) == 0 {
		t.Error("expected starter creatures in a fresh record")
	}
	if _, ok := body["parent_pin_hash"]; ok {
		t.Error("pin hash must never appear in responses")
	}

	// The cookie identifies the same record on the next request.
	id := body["id"]
	rr = c.do(http.MethodGet, "/progress", nil)
	if decodeBody(t, rr)["id"] != id {
		t.Error("player id changed between requests with the same cookie")
	}
}

func TestGameResult(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rr := c.do(http.MethodPost, "/games/tap/result", map[string]any{"score": 30, "coinsEarned": 25})
	wantStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	if body["newHighScore"] != true {
		t.Error("first score should be a new high")
	}
	prog := body["progress"].(map[string]any)
	if prog["coins"].(float64) != 25 {
		t.Errorf("coins = %v, expected 25", prog["coins"])
	}

	// A lower score still credits coins but keeps the high score.
	rr = c.do(http.MethodPost, "/games/tap/result", map[string]any{"score": 10, "coinsEarned": 5})
	wantStatus(t, rr, http.StatusOK)
	body = decodeBody(t, rr)
	if body["newHighScore"] != false {
		t.Error("lower score should not be a new high")
	}
	prog = body["progress"].(map[string]any)
	if prog["highScores"].(map[string]any)["tap"].(float64) != 30 {
		t.Errorf("high score = %v, expected 30 kept", prog["highScores"])
	}
	if prog["coins"].(float64) != 30 {
		t.Errorf("coins = %v, expected 30", prog["coins"])
	}
}

func TestGameResultUnknownGame(t *testing.T) {
	c := newClient(t, newTestServer(t))
	rr := c.do(http.MethodPost, "/games/chess/result", map[string]any{"score": 1})
	wantStatus(t, rr, http.StatusNotFound)
	if decodeBody(t, rr)["error"] != "unknown_game" {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestDailyClaim(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rr := c.do(http.MethodPost, "/daily/claim", nil)
	wantStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	if body["streak"].(float64) != 1 || body["reward"].(float64) != 110 {
		t.Errorf("claim = streak %v reward %v, expected 1/110", body["streak"], body["reward"])
	}

	rr = c.do(http.MethodPost, "/daily/claim", nil)
	wantStatus(t, rr, http.StatusConflict)
	if decodeBody(t, rr)["error"] != "already_claimed" {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestUnlockCreatureFlow(t *testing.T) {
	c := newClient(t, newTestServer(t))

	// Broke player gets a 402 and nothing changes.
	rr := c.do(http.MethodPost, "/creatures/llama/unlock", nil)
	wantStatus(t, rr, http.StatusPaymentRequired)
	if decodeBody(t, rr)["error"] != "insufficient_funds" {
		t.Errorf("body = %s", rr.Body.String())
	}

	// Earn enough and retry.
	rr = c.do(http.MethodPost, "/games/tap/result", map[string]any{"score": 1, "coinsEarned": 300})
	wantStatus(t, rr, http.StatusOK)

	rr = c.do(http.MethodPost, "/creatures/llama/unlock", nil)
	wantStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	if body["coins"].(float64) != 0 {
		t.Errorf("coins = %v, expected 0 after spending 300", body["coins"])
	}
	if body["unlockedCreatures"].(map[string]any)["llama"] != true {
		t.Error("llama not unlocked in response")
	}

	rr = c.do(http.MethodPost, "/creatures/llama/unlock", nil)
	wantStatus(t, rr, http.StatusConflict)

	rr = c.do(http.MethodPost, "/creatures/griffin/unlock", nil)
	wantStatus(t, rr, http.StatusNotFound)
}

func TestSettings(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rr := c.do(http.MethodPost, "/progress/settings", map[string]any{"soundEnabled": false})
	wantStatus(t, rr, http.StatusOK)
	settings := decodeBody(t, rr)["settings"].(map[string]any)
	if settings["sound_enabled"] != false {
		t.Errorf("sound_enabled = %v, expected false", settings["sound_enabled"])
	}
	// Absent toggles stay as they were.
	if settings["vibration_enabled"] != true {
		t.Errorf("vibration_enabled = %v, expected untouched true", settings["vibration_enabled"])
	}
}

func TestAchievementClaim(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rr := c.do(http.MethodPost, "/achievements/high_score/claim", nil)
	wantStatus(t, rr, http.StatusPreconditionFailed)

	rr = c.do(http.MethodPost, "/games/tap/result", map[string]any{"score": 50})
	wantStatus(t, rr, http.StatusOK)

	rr = c.do(http.MethodPost, "/achievements/high_score/claim", nil)
	wantStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	if body["coins"].(float64) != 200 {
		t.Errorf("coins = %v, expected the 200 reward", body["coins"])
	}

	rr = c.do(http.MethodPost, "/achievements/high_score/claim", nil)
	wantStatus(t, rr, http.StatusConflict)
}

func TestPurchaseParentGate(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rr := c.do(http.MethodPost, "/purchases/confirm", map[string]any{"packId": "coins_small", "pin": "1234"})
	wantStatus(t, rr, http.StatusForbidden)
	if decodeBody(t, rr)["error"] != "parent_gate" {
		t.Errorf("body = %s", rr.Body.String())
	}

	rr = c.do(http.MethodPost, "/purchases/pin", map[string]any{"pin": "1234"})
	wantStatus(t, rr, http.StatusOK)
	if decodeBody(t, rr)["parentPinSet"] != true {
		t.Error("parentPinSet should be true after setting the pin")
	}

	rr = c.do(http.MethodPost, "/purchases/confirm", map[string]any{"packId": "coins_small", "pin": "0000"})
	wantStatus(t, rr, http.StatusForbidden)

	rr = c.do(http.MethodPost, "/purchases/confirm", map[string]any{"packId": "coins_small", "pin": "1234"})
	wantStatus(t, rr, http.StatusOK)
	if decodeBody(t, rr)["coins"].(float64) != 500 {
		t.Errorf("coins = %v, expected 500", decodeBody(t, rr)["coins"])
	}
}

func TestCatalogIsPublic(t *testing.T) {
	c := newClient(t, newTestServer(t))
	for _, path := range []string{"/catalog/creatures", "/catalog/habitats", "/catalog/packs", "/catalog/achievements"} {
		rr := c.do(http.MethodGet, path, nil)
		wantStatus(t, rr, http.StatusOK)
		if len(c.cookies) != 0 {
			t.Errorf("%s should not mint a player cookie", path)
		}
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	c := newClient(t, newTestServer(t))
	rr := c.do(http.MethodGet, "/nope", nil)
	wantStatus(t, rr, http.StatusNotFound)
	if decodeBody(t, rr)["error"] != "not_found" {
		t.Errorf("body = %s", rr.Body.String())
	}
}
