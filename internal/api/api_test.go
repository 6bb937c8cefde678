package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/volanre/jollyred/internal/command"
	"github.com/volanre/jollyred/internal/game"
	"github.com/volanre/jollyred/internal/storage"
)

// ============================================================================
// Test doubles
// ============================================================================

// fakeStore implements StoreInterface in memory
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]game.Profile
	deaths   []game.DeathRecord
}

func newFakeStore(profiles ...game.Profile) *fakeStore {
	s := &fakeStore{profiles: make(map[string]game.Profile)}
	for _, p := range profiles {
		s.profiles[p.Name] = p
	}
	return s
}

func (s *fakeStore) GetProfile(_ context.Context, name string) (game.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[name]
	if !ok {
		return game.Profile{}, fmt.Errorf("get profile %s: %w", name, storage.ErrProfileNotFound)
	}
	return p, nil
}

func (s *fakeStore) ListProfiles(context.Context) ([]game.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) SaveProfile(_ context.Context, p game.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Name] = p
	return nil
}

func (s *fakeStore) ListDeaths(_ context.Context, limit int) ([]game.DeathRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.deaths) {
		limit = len(s.deaths)
	}
	return append([]game.DeathRecord(nil), s.deaths[:limit]...), nil
}

// fakeSink records enqueued commands
type fakeSink struct {
	mu   sync.Mutex
	cmds []command.Command
}

func (f *fakeSink) Enqueue(cmd command.Command) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return true
}

func (f *fakeSink) commands() []command.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Command(nil), f.cmds...)
}

// ============================================================================
// Helpers
// ============================================================================

type testAPI struct {
	engine *game.Engine
	store  *fakeStore
	ts     *httptest.Server
}

func newTestAPI(t *testing.T, adminToken string) *testAPI {
	t.Helper()

	brute := game.DefaultProfile()
	brute.Name = "brute"
	brute.Title = "Brute"
	brute.Base.Attack = 200

	engine := game.NewEngine(game.EngineConfig{Seed: 7})
	store := newFakeStore(game.DefaultProfile(), brute)

	router := NewRouter(RouterConfig{
		Engine: engine,
		Store:  store,
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000, // High limit for tests
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		AdminToken:     adminToken,
		DisableLogging: true, // Quiet logs in tests
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return &testAPI{engine: engine, store: store, ts: ts}
}

func (a *testAPI) do(t *testing.T, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testAPI) spawn(t *testing.T, name string, x float64) game.CharacterSnapshot {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/characters", fmt.Sprintf(`{"name":%q,"x":%g}`, name, x), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 on spawn, got %d", resp.StatusCode)
	}
	var snap game.CharacterSnapshot
	decode(t, resp, &snap)
	return snap
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

// ============================================================================
// Character endpoints
// ============================================================================

// TestAPISpawnAndGet tests spawning a character and reading it back
func TestAPISpawnAndGet(t *testing.T) {
	a := newTestAPI(t, "")

	resp := a.do(t, http.MethodPost, "/api/characters", `{"name":"Alice","x":2}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var created game.CharacterSnapshot
	decode(t, resp, &created)

	if loc := resp.Header.Get("Location"); loc != "/api/characters/"+created.ID {
		t.Errorf("Expected Location for %s, got %q", created.ID, loc)
	}
	if created.Position.X != 2 {
		t.Errorf("Expected spawn x 2, got %v", created.Position.X)
	}

	resp = a.do(t, http.MethodGet, "/api/characters/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var got game.CharacterSnapshot
	decode(t, resp, &got)

	if got.Name != "Alice" {
		t.Errorf("Expected name Alice, got %q", got.Name)
	}
	if got.Profile != game.DefaultProfileName {
		t.Errorf("Expected default profile, got %q", got.Profile)
	}
	if got.HP != 500 || got.MaxHP != 500 {
		t.Errorf("Expected 500/500 HP, got %d/%d", got.HP, got.MaxHP)
	}
	if got.Lifecycle != "alive" {
		t.Errorf("Expected alive, got %q", got.Lifecycle)
	}
}

// TestAPISpawnWithProfile tests that the named profile's stats are used
func TestAPISpawnWithProfile(t *testing.T) {
	a := newTestAPI(t, "")

	resp := a.do(t, http.MethodPost, "/api/characters", `{"name":"Bob","profile":"brute"}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var snap game.CharacterSnapshot
	decode(t, resp, &snap)

	if snap.Stats.Attack != 200 {
		t.Errorf("Expected brute attack 200, got %d", snap.Stats.Attack)
	}
}

// TestAPISpawnValidation tests rejected spawn requests
func TestAPISpawnValidation(t *testing.T) {
	a := newTestAPI(t, "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"empty name", `{"name": ""}`, http.StatusBadRequest},
		{"blank name", `{"name": "   "}`, http.StatusBadRequest},
		{"invalid json", `{invalid}`, http.StatusBadRequest},
		{"unknown profile", `{"name": "Eve", "profile": "ghost"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := a.do(t, http.MethodPost, "/api/characters", tt.body, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

// TestAPIGetUnknownCharacter tests the 404 mapping
func TestAPIGetUnknownCharacter(t *testing.T) {
	a := newTestAPI(t, "")

	resp := a.do(t, http.MethodGet, "/api/characters/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}

	var body map[string]string
	decode(t, resp, &body)
	if !strings.Contains(body["error"], "not found") {
		t.Errorf("Expected not found error, got %q", body["error"])
	}
}

// TestAPIState tests the snapshot endpoint
func TestAPIState(t *testing.T) {
	a := newTestAPI(t, "")
	a.spawn(t, "Alice", -1)
	a.spawn(t, "Bob", 1)
	a.engine.Step(0.02)

	resp := a.do(t, http.MethodGet, "/api/state", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var snap game.GameSnapshot
	decode(t, resp, &snap)

	if snap.CharacterCount != 2 {
		t.Errorf("Expected 2 characters, got %d", snap.CharacterCount)
	}
	if snap.AliveCount != 2 {
		t.Errorf("Expected 2 alive, got %d", snap.AliveCount)
	}
	if len(snap.Characters) != 2 {
		t.Errorf("Expected 2 character snapshots, got %d", len(snap.Characters))
	}
}

// TestAPIInput tests input parsing and application
func TestAPIInput(t *testing.T) {
	a := newTestAPI(t, "")
	c := a.spawn(t, "Alice", 0)

	resp := a.do(t, http.MethodPost, "/api/characters/"+c.ID+"/input", `{"command":"jump"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Input    string `json:"input"`
		Accepted bool   `json:"accepted"`
	}
	decode(t, resp, &result)
	if !result.Accepted {
		t.Error("Expected jump to be accepted")
	}

	resp = a.do(t, http.MethodPost, "/api/characters/"+c.ID+"/input", `{"command":"move","args":["1"]}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for move, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodPost, "/api/characters/"+c.ID+"/input", `{"command":"fly"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown input, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodPost, "/api/characters/nope/input", `{"command":"jump"}`, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown character, got %d", resp.StatusCode)
	}
}

// TestAPIAdminAuth tests that mutating routes need the admin token
func TestAPIAdminAuth(t *testing.T) {
	a := newTestAPI(t, "secret")
	c := a.spawn(t, "Alice", 0)
	path := "/api/characters/" + c.ID + "/damage"

	resp := a.do(t, http.MethodPost, path, `{"attack":100}`, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodPost, path, `{"attack":100}`, bearer("wrong"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodPost, path, `{"attack":100}`, bearer("secret"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 with bearer token, got %d", resp.StatusCode)
	}
	var res game.DamageResult
	decode(t, resp, &res)
	// 100² / (100 + 100)
	if res.Applied != 50 {
		t.Errorf("Expected 50 damage, got %d", res.Applied)
	}
	if res.Current != 450 {
		t.Errorf("Expected 450 HP left, got %d", res.Current)
	}

	resp = a.do(t, http.MethodPost, path, `{"attack":100}`, http.Header{AdminTokenHeader: []string{"secret"}})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with admin header, got %d", resp.StatusCode)
	}

	// Reads stay public
	resp = a.do(t, http.MethodGet, "/api/characters/"+c.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for public read, got %d", resp.StatusCode)
	}
}

// TestAPIDamageAndHeal tests damage, ignore-defense and healing
func TestAPIDamageAndHeal(t *testing.T) {
	a := newTestAPI(t, "")
	c := a.spawn(t, "Alice", 0)
	base := "/api/characters/" + c.ID

	resp := a.do(t, http.MethodPost, base+"/damage", `{"attack":100,"ignoreDefense":true}`, nil)
	var res game.DamageResult
	decode(t, resp, &res)
	if res.Applied != 100 {
		t.Errorf("Expected 100 damage ignoring defense, got %d", res.Applied)
	}

	resp = a.do(t, http.MethodPost, base+"/heal", `{"amount":1000}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var healed struct {
		Healed int `json:"healed"`
	}
	decode(t, resp, &healed)
	if healed.Healed != 100 {
		t.Errorf("Expected heal capped at 100, got %d", healed.Healed)
	}

	resp = a.do(t, http.MethodPost, base+"/heal", `{"amount":0}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero heal, got %d", resp.StatusCode)
	}
}

// TestAPIModifiers tests adding and removing stat modifiers
func TestAPIModifiers(t *testing.T) {
	a := newTestAPI(t, "")
	c := a.spawn(t, "Alice", 0)
	base := "/api/characters/" + c.ID

	resp := a.do(t, http.MethodPost, base+"/modifiers", `{"stat":"defense","kind":"mul","value":3}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	got, err := a.engine.Get(c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stats.Defense != 300 {
		t.Errorf("Expected defense 300, got %d", got.Stats.Defense)
	}

	// 100² / (100 + 300)
	resp = a.do(t, http.MethodPost, base+"/damage", `{"attack":100}`, nil)
	var res game.DamageResult
	decode(t, resp, &res)
	if res.Applied != 25 {
		t.Errorf("Expected 25 damage, got %d", res.Applied)
	}

	resp = a.do(t, http.MethodDelete, base+"/modifiers", `{"stat":"defense","kind":"mul","value":3}`, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	resp = a.do(t, http.MethodDelete, base+"/modifiers", `{"stat":"defense","kind":"mul","value":3}`, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for missing modifier, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodPost, base+"/modifiers", `{"stat":"luck","kind":"add","value":1}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown stat, got %d", resp.StatusCode)
	}
	resp = a.do(t, http.MethodPost, base+"/modifiers", `{"stat":"attack","kind":"pow","value":1}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown kind, got %d", resp.StatusCode)
	}
}

// TestAPIRemove tests character removal
func TestAPIRemove(t *testing.T) {
	a := newTestAPI(t, "")
	c := a.spawn(t, "Alice", 0)

	resp := a.do(t, http.MethodDelete, "/api/characters/"+c.ID, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodGet, "/api/characters/"+c.ID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after removal, got %d", resp.StatusCode)
	}
}

// TestAPITracePNG tests the trace chart endpoint
func TestAPITracePNG(t *testing.T) {
	a := newTestAPI(t, "")
	c := a.spawn(t, "Alice", 0)
	a.engine.ApplyInput(c.ID, game.Press(game.InputJumpPressed))
	for i := 0; i < 20; i++ {
		a.engine.Step(0.02)
	}

	resp := a.do(t, http.MethodGet, "/api/characters/"+c.ID+"/trace.png", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("Expected PNG signature")
	}

	resp = a.do(t, http.MethodGet, "/api/characters/nope/trace.png", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

// TestRenderTraceEmpty tests that an empty trace still renders
func TestRenderTraceEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderTrace(&buf, nil, 100, 200, 100); err != nil {
		t.Fatalf("RenderTrace failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("Expected PNG signature")
	}
}

// ============================================================================
// Profiles and deaths
// ============================================================================

// TestAPIProfiles tests listing, reading and saving profiles
func TestAPIProfiles(t *testing.T) {
	a := newTestAPI(t, "secret")

	resp := a.do(t, http.MethodGet, "/api/profiles", "", nil)
	var profiles []game.Profile
	decode(t, resp, &profiles)
	if len(profiles) != 2 || profiles[0].Name != "brute" || profiles[1].Name != "player" {
		t.Errorf("Expected [brute player], got %+v", profiles)
	}

	resp = a.do(t, http.MethodGet, "/api/profiles/ghost", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodPut, "/api/profiles/tank", `{"base":{"defense":400}}`, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodPut, "/api/profiles/tank", `{"base":{"defense":400,"maxHealth":800}}`, bearer("secret"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	resp = a.do(t, http.MethodGet, "/api/profiles/tank", "", nil)
	var tank game.Profile
	decode(t, resp, &tank)
	if tank.Base.Defense != 400 || tank.Base.MaxHealth != 800 {
		t.Errorf("Expected defense 400 and max health 800, got %+v", tank.Base)
	}
	if tank.Title != "tank" {
		t.Errorf("Expected title to default to name, got %q", tank.Title)
	}
	if tank.Tuning != game.DefaultTuning() {
		t.Errorf("Expected default tuning, got %+v", tank.Tuning)
	}

	resp = a.do(t, http.MethodPut, "/api/profiles/broken", `{"base":{"maxHealth":0}}`, bearer("secret"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid profile, got %d", resp.StatusCode)
	}
}

// TestAPIDeaths tests the death ledger endpoint
func TestAPIDeaths(t *testing.T) {
	a := newTestAPI(t, "")
	a.store.deaths = []game.DeathRecord{
		{CharacterID: "b", Name: "Bob", Overkill: 40},
		{CharacterID: "a", Name: "Alice"},
	}

	resp := a.do(t, http.MethodGet, "/api/deaths?limit=1", "", nil)
	var deaths []game.DeathRecord
	decode(t, resp, &deaths)
	if len(deaths) != 1 || deaths[0].Name != "Bob" {
		t.Errorf("Expected only Bob, got %+v", deaths)
	}

	resp = a.do(t, http.MethodGet, "/api/deaths", "", nil)
	decode(t, resp, &deaths)
	if len(deaths) != 2 {
		t.Errorf("Expected 2 deaths, got %d", len(deaths))
	}

	resp = a.do(t, http.MethodGet, "/api/deaths?limit=abc", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

// TestAPINoStore tests the built-in profile fallback without storage
func TestAPINoStore(t *testing.T) {
	router := NewRouter(RouterConfig{
		Engine:         game.NewEngine(game.EngineConfig{}),
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/characters", "application/json", strings.NewReader(`{"name":"Alice"}`))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected 201 with the default profile, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/deaths")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	var deaths []game.DeathRecord
	json.NewDecoder(resp.Body).Decode(&deaths)
	if deaths == nil || len(deaths) != 0 {
		t.Errorf("Expected empty list, got %+v", deaths)
	}
}

// ============================================================================
// Middleware
// ============================================================================

// TestAPIRateLimit tests that bursts beyond the limit get 429
func TestAPIRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: 0.001,
		Burst:             2,
		CleanupInterval:   time.Hour,
	})
	defer limiter.Stop()

	router := NewRouter(RouterConfig{
		Engine:         game.NewEngine(game.EngineConfig{}),
		RateLimiter:    limiter,
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("Expected first two requests to pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 429 on third request, got %d", statuses[2])
	}

	stats := limiter.GetStats()
	if stats["allowed"] != 2 || stats["rejected"] != 1 {
		t.Errorf("Expected 2 allowed and 1 rejected, got %v", stats)
	}
}

// TestIPRateLimiterCleanup tests that idle limiters are evicted
func TestIPRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.Allow("1.2.3.4")
	rl.cleanup(time.Now())
	if _, ok := rl.limiters.Load("1.2.3.4"); !ok {
		t.Error("Fresh limiter should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Hour))
	if _, ok := rl.limiters.Load("1.2.3.4"); ok {
		t.Error("Idle limiter should be evicted")
	}
}

// TestGetClientIP tests client IP extraction
func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		remote string
		want   string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded chain", http.Header{"X-Forwarded-For": {"1.1.1.1, 2.2.2.2"}}, "10.0.0.1:5555", "1.1.1.1"},
		{"real ip", http.Header{"X-Real-Ip": {" 3.3.3.3 "}}, "10.0.0.1:5555", "3.3.3.3"},
		{"no port", nil, "10.0.0.9", "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header[k] = v
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestWebSocketRateLimiter tests per-IP connection slots
func TestWebSocketRateLimiter(t *testing.T) {
	wrl := NewWebSocketRateLimiter(2)

	if !wrl.Allow("ip") || !wrl.Allow("ip") {
		t.Fatal("Expected two slots")
	}
	if wrl.Allow("ip") {
		t.Error("Expected third slot to be refused")
	}
	wrl.Release("ip")
	if wrl.GetConnectionCount("ip") != 1 {
		t.Errorf("Expected 1 connection, got %d", wrl.GetConnectionCount("ip"))
	}
	if !wrl.Allow("ip") {
		t.Error("Expected a slot after release")
	}
}

// TestOriginChecker tests the WebSocket origin allow list
func TestOriginChecker(t *testing.T) {
	oc := NewOriginChecker([]string{"https://game.example", "http://localhost:*"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://game.example", true},
		{"http://localhost:3000", true},
		{"http://localhost:8080", true},
		{"https://evil.example", false},
		{"http://127.0.0.1:3000", false},
	}
	for _, tt := range tests {
		if got := oc.Allowed(tt.origin); got != tt.want {
			t.Errorf("Allowed(%q): expected %v, got %v", tt.origin, tt.want, got)
		}
	}

	if !NewOriginChecker([]string{"*"}).Allowed("https://anything.example") {
		t.Error("Wildcard should allow every origin")
	}
}

// TestDebugHandler tests the health, metrics and auth wiring of the debug server
func TestDebugHandler(t *testing.T) {
	healthy := true
	h := DebugHandler(ObservabilityConfig{}, func() error {
		if !healthy {
			return errors.New("database down")
		}
		return nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}

	RecordTick(2 * time.Millisecond)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "game_tick_duration_seconds") {
		t.Error("Expected tick histogram in metrics output")
	}

	guarded := DebugHandler(ObservabilityConfig{BasicAuthUser: "ops", BasicAuthPass: "pw"}, nil)
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with credentials, got %d", rec.Code)
	}
}

// TestNewDebugServerDisabled tests that a disabled debug server is nil
func TestNewDebugServerDisabled(t *testing.T) {
	if srv := NewDebugServer(ObservabilityConfig{Enabled: false}, nil); srv != nil {
		t.Error("Expected nil server when disabled")
	}
	srv := NewDebugServer(DefaultObservabilityConfig(), nil)
	if srv == nil || srv.Addr != "127.0.0.1:6060" {
		t.Errorf("Expected server on 127.0.0.1:6060, got %+v", srv)
	}
}

// ============================================================================
// WebSocket
// ============================================================================

func readReply(t *testing.T, conn *websocket.Conn) commandReply {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		var r commandReply
		if json.Unmarshal(data, &r) == nil && r.Seq != 0 {
			return r
		}
	}
}

// TestWebSocketCommands tests that client commands are queued and acknowledged
func TestWebSocketCommands(t *testing.T) {
	engine := game.NewEngine(game.EngineConfig{})
	c, err := engine.SpawnAt("Alice", game.DefaultProfile(), 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	sink := &fakeSink{}
	srv := NewServer(engine, nil, sink, ServerConfig{AllowedOrigins: []string{"*"}})
	go srv.wsHub.Run()
	defer srv.Shutdown(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?id=" + c.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(clientMessage{Type: "command", Text: "!move -1", Seq: 1})
	if r := readReply(t, conn); r.Type != "commandAck" || r.Seq != 1 {
		t.Errorf("Expected ack for seq 1, got %+v", r)
	}

	conn.WriteJSON(clientMessage{Type: "command", Text: "fly", Seq: 2})
	if r := readReply(t, conn); r.Type != "commandReject" || r.Seq != 2 {
		t.Errorf("Expected reject for seq 2, got %+v", r)
	}

	cmds := sink.commands()
	if len(cmds) != 1 {
		t.Fatalf("Expected 1 queued command, got %d", len(cmds))
	}
	if cmds[0].CharacterID != c.ID || cmds[0].Name != "move" {
		t.Errorf("Expected move for %s, got %+v", c.ID, cmds[0])
	}
	if cmds[0].ClientID == "" {
		t.Error("Expected a client ID")
	}
}

// TestWebSocketUnboundClient tests that spectators cannot send commands
func TestWebSocketUnboundClient(t *testing.T) {
	sink := &fakeSink{}
	srv := NewServer(game.NewEngine(game.EngineConfig{}), nil, sink, ServerConfig{AllowedOrigins: []string{"*"}})
	go srv.wsHub.Run()
	defer srv.Shutdown(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(clientMessage{Type: "command", Text: "jump", Seq: 7})
	if r := readReply(t, conn); r.Type != "commandReject" {
		t.Errorf("Expected reject, got %+v", r)
	}
	if len(sink.commands()) != 0 {
		t.Error("Expected no queued commands")
	}
}

// TestWebSocketOriginRejected tests the origin check on upgrade
func TestWebSocketOriginRejected(t *testing.T) {
	srv := NewServer(game.NewEngine(game.EngineConfig{}), nil, nil, ServerConfig{
		AllowedOrigins: []string{"https://game.example"},
	})
	go srv.wsHub.Run()
	defer srv.Shutdown(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %+v", resp)
	}
}

// TestWebSocketStateBroadcast tests that connected clients receive game:state snapshots
func TestWebSocketStateBroadcast(t *testing.T) {
	engine := game.NewEngine(game.EngineConfig{})
	if _, err := engine.SpawnAt("Alice", game.DefaultProfile(), 0); err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	engine.Step(0.02)

	srv := NewServer(engine, nil, nil, ServerConfig{AllowedOrigins: []string{"*"}})
	go srv.wsHub.Run()
	srv.wsHub.StartBroadcastLoop(engine, 50)
	defer srv.Shutdown(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg struct {
			Event string            `json:"event"`
			Data  game.GameSnapshot `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Expected a game:state message, got %v", err)
		}
		if msg.Event != "game:state" {
			continue
		}
		if msg.Data.CharacterCount != 1 || len(msg.Data.Characters) != 1 {
			t.Errorf("Expected 1 character in state, got %d", msg.Data.CharacterCount)
		}
		return
	}
}
