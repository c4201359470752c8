package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openagora/agora/backend/internal/auth"
	"github.com/openagora/agora/backend/internal/database"
	"github.com/openagora/agora/backend/internal/debates"
	"github.com/openagora/agora/backend/internal/moderation"
	"github.com/openagora/agora/backend/internal/scoreboard"
	"github.com/openagora/agora/backend/internal/server"
	"go.uber.org/zap"
)

const (
	signingSecret   = "integration-secret"
	jsonContentType = "application/json"
)

type debateFlowHarness struct {
	server *httptest.Server
	now    *time.Time
}

func newDebateFlowHarness(t *testing.T) *debateFlowHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	start := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	now := &start
	clock := func() time.Time { return *now }

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "agora.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store, err := database.NewDebateStore(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}

	debateService, err := debates.NewService(debates.ServiceConfig{
		Store:      store,
		Moderator:  moderation.NewChecker(nil),
		Clock:      clock,
		IDProvider: debates.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build debates service: %v", err)
	}
	scoreboardService, err := scoreboard.NewService(scoreboard.ServiceConfig{
		Store:  store,
		Clock:  clock,
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build scoreboard service: %v", err)
	}
	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(signingSecret),
		Issuer:        "agora",
		Audience:      "agora-clients",
		TokenTTL:      24 * time.Hour,
		Clock:         clock,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Debates:    debateService,
		Scoreboard: scoreboardService,
		Tokens:     issuer,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)

	return &debateFlowHarness{server: testServer, now: now}
}

func (h *debateFlowHarness) advance(d time.Duration) {
	*h.now = h.now.Add(d)
}

func (h *debateFlowHarness) request(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to encode request payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, h.server.URL+path, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", jsonContentType)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer response.Body.Close()
	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return response.StatusCode, responseBody
}

func (h *debateFlowHarness) mintToken(t *testing.T, handle, displayName string) string {
	t.Helper()
	status, body := h.request(t, http.MethodPost, "/auth/session", "", map[string]any{
		"handle":      handle,
		"displayName": displayName,
	})
	if status != http.StatusOK {
		t.Fatalf("unexpected session status for %s: %d (%s)", handle, status, body)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode session response: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatalf("expected a session token for %s", handle)
	}
	return payload.AccessToken
}

func decodeDebate(t *testing.T, body []byte) debates.Debate {
	t.Helper()
	debate := debates.Debate{}
	if err := json.Unmarshal(body, &debate); err != nil {
		t.Fatalf("failed to decode debate payload: %v", err)
	}
	return debate
}

func TestDebateLifecycleFlow(t *testing.T) {
	harness := newDebateFlowHarness(t)

	aliceToken := harness.mintToken(t, "alice@example.com", "Alice")
	bobToken := harness.mintToken(t, "bob@example.com", "Bob")

	status, body := harness.request(t, http.MethodPost, "/debates", aliceToken, map[string]any{
		"title":       "Remote work beats office work",
		"description": "A debate on whether distributed teams outperform colocated ones over a full product cycle.",
		"tags":        []string{"work", "remote"},
		"category":    "society",
		"duration":    1,
	})
	if status != http.StatusCreated {
		t.Fatalf("unexpected create status: %d (%s)", status, body)
	}
	debate := decodeDebate(t, body)
	if !debate.IsActive {
		t.Fatalf("expected new debate to be active")
	}

	status, body = harness.request(t, http.MethodPost, "/debates/"+debate.ID+"/join", aliceToken, map[string]any{"side": "support"})
	if status != http.StatusOK {
		t.Fatalf("unexpected join status for alice: %d (%s)", status, body)
	}
	status, body = harness.request(t, http.MethodPost, "/debates/"+debate.ID+"/join", bobToken, map[string]any{"side": "oppose"})
	if status != http.StatusOK {
		t.Fatalf("unexpected join status for bob: %d (%s)", status, body)
	}

	status, body = harness.request(t, http.MethodPost, "/debates/"+debate.ID+"/arguments", aliceToken, map[string]any{
		"content": "Distributed teams hire from a wider pool and keep written records by default.",
	})
	if status != http.StatusOK {
		t.Fatalf("unexpected argument status: %d (%s)", status, body)
	}
	posted := decodeDebate(t, body)
	if len(posted.Arguments) != 1 || posted.Arguments[0].Side != debates.SideSupport {
		t.Fatalf("unexpected argument state: %+v", posted.Arguments)
	}
	argumentID := posted.Arguments[0].ID

	votePath := "/debates/" + debate.ID + "/arguments/" + argumentID + "/vote"
	status, body = harness.request(t, http.MethodPost, votePath, bobToken, nil)
	if status != http.StatusOK {
		t.Fatalf("unexpected vote status: %d (%s)", status, body)
	}
	voted := decodeDebate(t, body)
	if voted.SupportVotes != 1 || voted.OpposeVotes != 0 || voted.TotalVotes != 1 {
		t.Fatalf("unexpected totals after vote: %d/%d/%d", voted.SupportVotes, voted.OpposeVotes, voted.TotalVotes)
	}

	status, body = harness.request(t, http.MethodPost, votePath, bobToken, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected duplicate vote rejection, got %d (%s)", status, body)
	}
	var rejection struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &rejection); err != nil {
		t.Fatalf("failed to decode rejection: %v", err)
	}
	if rejection.Message != "User already voted on this argument" {
		t.Fatalf("unexpected rejection message: %q", rejection.Message)
	}

	harness.advance(time.Hour)

	status, body = harness.request(t, http.MethodGet, "/debates/"+debate.ID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("unexpected get status after expiry: %d (%s)", status, body)
	}
	expired := decodeDebate(t, body)
	if expired.IsActive {
		t.Fatalf("expected debate to close lazily at expiry")
	}
	if expired.Winner == nil || *expired.Winner != debates.SideSupport {
		t.Fatalf("unexpected winner: %v", expired.Winner)
	}

	status, body = harness.request(t, http.MethodPost, "/debates/"+debate.ID+"/join", bobToken, map[string]any{"side": "support"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected join on closed debate to fail, got %d (%s)", status, body)
	}

	status, body = harness.request(t, http.MethodGet, "/winners", "", nil)
	if status != http.StatusOK {
		t.Fatalf("unexpected winners status: %d (%s)", status, body)
	}
	var winners []debates.Debate
	if err := json.Unmarshal(body, &winners); err != nil {
		t.Fatalf("failed to decode winners: %v", err)
	}
	if len(winners) != 1 || winners[0].ID != debate.ID {
		t.Fatalf("unexpected winners list: %+v", winners)
	}

	status, body = harness.request(t, http.MethodGet, "/leaderboard", "", nil)
	if status != http.StatusOK {
		t.Fatalf("unexpected leaderboard status: %d (%s)", status, body)
	}
	var entries []scoreboard.Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("failed to decode leaderboard: %v", err)
	}
	if len(entries) == 0 || entries[0].UserID != "alice@example.com" || entries[0].TotalVotes != 1 {
		t.Fatalf("unexpected leaderboard entries: %+v", entries)
	}

	status, body = harness.request(t, http.MethodGet, "/profile?user=alice@example.com", "", nil)
	if status != http.StatusOK {
		t.Fatalf("unexpected profile status: %d (%s)", status, body)
	}
	var profile scoreboard.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if profile.DebatesWon != 1 || profile.WinRate != 100 {
		t.Fatalf("unexpected profile statistics: %+v", profile)
	}
}
