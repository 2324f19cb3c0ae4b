package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/auth"
	"github.com/harshasoftware/halohome-sub007/internal/cache"
	"github.com/harshasoftware/halohome-sub007/internal/catalog"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/health"
	"github.com/harshasoftware/halohome-sub007/internal/httputil"
	"github.com/harshasoftware/halohome-sub007/internal/scout"
	"github.com/harshasoftware/halohome-sub007/internal/stream"
	"github.com/harshasoftware/halohome-sub007/internal/tz"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

const testTime = "1990-06-15T14:30:00Z"

var testCities = []catalog.City{
	{ID: "lon", Name: "London", Country: "GB", Lat: 51.5074, Lng: -0.1278, Population: 8982000},
	{ID: "par", Name: "Paris", Country: "FR", Lat: 48.8566, Lng: 2.3522},
	{ID: "tyo", Name: "Tokyo", Country: "JP", Lat: 35.6895, Lng: 139.6917, Population: 13960000},
	{ID: "syd", Name: "Sydney", Country: "AU", Lat: -33.8688, Lng: 151.2093},
}

func testDeps(t *testing.T) (Deps, *catalog.Memory) {
	t.Helper()
	logger := testLogger()
	base := ephemeris.NewBaseline()

	pc := cache.NewPositionCache(cache.NewMemory(), cache.DefaultConfig(), logger)
	prog := cache.NewProgressive(base, nil, pc, logger)
	t.Cleanup(prog.Wait)

	scores, err := cache.NewScoreCache(64, nil, time.Hour, logger)
	if err != nil {
		t.Fatal(err)
	}

	mem := catalog.NewMemory()
	mem.Set(&catalog.Dataset{Source: "test", LoadedAt: time.Now(), Cities: testCities})

	return Deps{
		Ephemeris:   base,
		Baseline:    base,
		Progressive: prog,
		Scores:      scores,
		Catalog:     mem,
		Pool:        scout.NewPool(2, logger),
		TZ:          tz.NewResolver(logger),
		Stream:      stream.NewHandler(prog, stream.Config{MaxConcurrentPerIP: 2}, logger),
		Ready: map[string]health.Check{
			"catalog": func(context.Context) error {
				if mem.Len() == 0 {
					return catalog.ErrEmpty
				}
				return nil
			},
		},
	}, mem
}

func newTestServer(t *testing.T, cfg Config) (http.Handler, *catalog.Memory) {
	t.Helper()
	deps, mem := testDeps(t)
	return NewServer(cfg, deps, testLogger()).Handler(), mem
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.1:4000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

// TestProbes verifies the probe and metrics endpoints.
func TestProbes(t *testing.T) {
	h, mem := newTestServer(t, Config{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if w := do(h, "GET", path, ""); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}

	mem.Set(&catalog.Dataset{Source: "empty"})
	if w := do(h, "GET", "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with empty catalog = %d, want 503", w.Code)
	}
}

// TestRequestID verifies every response carries a request ID and a valid
// incoming one is kept.
func TestRequestID(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	w := do(h, "GET", "/healthz", "")
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing X-Request-ID")
	}

	const id = "3f1c2b8e-1d2a-4c5b-9e6f-7a8b9c0d1e2f"
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(requestIDHeader, id)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}

	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(requestIDHeader, "not a uuid\r\n")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got == "not a uuid\r\n" || got == "" {
		t.Errorf("X-Request-ID = %q, want a fresh ID", got)
	}
}

func TestPositions(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	w := do(h, "POST", "/api/v1/positions", `{"time":"2000-01-01T12:00:00Z","bodies":["sun","moon"],"tier":"baseline"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Positions []ephemeris.Position `json:"positions"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(resp.Positions))
	}
	// The Sun's apparent longitude at J2000.0 is about 280.37°.
	if sun := resp.Positions[0]; sun.Body != ephemeris.Sun || math.Abs(sun.Lon-280.37) > 0.2 {
		t.Errorf("sun = %+v, want lon ≈ 280.37", sun)
	}

	w = do(h, "GET", "/api/v1/cache/stats", "")
	var stats struct {
		Positions cache.Stats `json:"positions"`
	}
	decodeBody(t, w, &stats)
	if stats.Positions.Misses != 2 || stats.Positions.Entries != 2 {
		t.Errorf("stats = %+v, want 2 misses and 2 entries", stats.Positions)
	}
}

// TestLocalWallTime verifies a zoneless time is read at the birthplace.
func TestLocalWallTime(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	// 13:00 in the UTC+1 zone at 15°E is J2000.0.
	w := do(h, "POST", "/api/v1/positions", `{"time":"2000-01-01T13:00:00","birthplace":{"lat":52.5,"lng":15.0},"bodies":["sun"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Instant struct {
			JD float64 `json:"jd"`
		} `json:"instant"`
	}
	decodeBody(t, w, &resp)
	if math.Abs(resp.Instant.JD-2451545.0) > 1e-6 {
		t.Errorf("jd = %v, want 2451545", resp.Instant.JD)
	}
}

func TestLines(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	w := do(h, "POST", "/api/v1/lines", `{"time":"`+testTime+`","bodies":["sun","moon"],"no_parans":true,"no_aspects":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Lines []struct {
			Body  string `json:"body"`
			Angle string `json:"angle"`
		} `json:"lines"`
		Parans []any `json:"parans"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Lines) != 8 {
		t.Errorf("lines = %d, want 8", len(resp.Lines))
	}
	if len(resp.Parans) != 0 {
		t.Errorf("parans = %d, want 0", len(resp.Parans))
	}
}

func TestCharts(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	w := do(h, "POST", "/api/v1/chart/natal", `{"time":"`+testTime+`","lat":51.5,"lng":-0.13,"house_system":"koch"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("natal status = %d: %s", w.Code, w.Body.String())
	}
	var natal struct {
		HouseSystem string `json:"house_system"`
		Placements  []any  `json:"placements"`
	}
	decodeBody(t, w, &natal)
	if natal.HouseSystem != "koch" {
		t.Errorf("house_system = %q, want koch", natal.HouseSystem)
	}
	if len(natal.Placements) != len(ephemeris.AllBodies) {
		t.Errorf("placements = %d, want %d", len(natal.Placements), len(ephemeris.AllBodies))
	}

	w = do(h, "POST", "/api/v1/chart/relocation", `{"time":"`+testTime+`","lat":51.5,"lng":-0.13,"relocated":{"lat":40.7,"lng":-74.0}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("relocation status = %d: %s", w.Code, w.Body.String())
	}
	var rel struct {
		Changes []any `json:"changes"`
	}
	decodeBody(t, w, &rel)
	if len(rel.Changes) != len(ephemeris.AllBodies) {
		t.Errorf("changes = %d, want %d", len(rel.Changes), len(ephemeris.AllBodies))
	}

	w = do(h, "POST", "/api/v1/local-space", `{"time":"`+testTime+`","lat":51.5,"lng":-0.13,"bodies":["sun"],"max_km":1000,"step_km":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("local-space status = %d: %s", w.Code, w.Body.String())
	}
}

// sunMCLongitude reads the Sun's MC longitude from the lines endpoint.
func sunMCLongitude(t *testing.T, h http.Handler) float64 {
	t.Helper()
	w := do(h, "POST", "/api/v1/lines", `{"time":"`+testTime+`","bodies":["sun"],"no_parans":true,"no_aspects":true}`)
	var resp struct {
		Lines []struct {
			Angle     string   `json:"angle"`
			Longitude *float64 `json:"longitude"`
		} `json:"lines"`
	}
	decodeBody(t, w, &resp)
	for _, l := range resp.Lines {
		if l.Angle == "MC" && l.Longitude != nil {
			return *l.Longitude
		}
	}
	t.Fatal("no Sun MC line")
	return 0
}

// TestScoutRank verifies ranking of supplied candidates and the score
// cache round trip.
func TestScoutRank(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	lng := sunMCLongitude(t, h)

	body := fmt.Sprintf(`{"time":%q,"category":"wealth","candidates":[
		{"id":"on-line","name":"On","country":"AA","point":{"lat":0,"lng":%v}},
		{"id":"far","name":"Far","country":"BB","point":{"lat":-89,"lng":%v}}]}`, testTime, lng, lng)

	w := do(h, "POST", "/api/v1/scout/rank", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("X-Cache = %q, want miss", got)
	}
	var resp struct {
		Candidates int `json:"candidates"`
		Rankings   []struct {
			Candidate scout.Candidate `json:"candidate"`
			Benefit   float64         `json:"benefit"`
			Nature    string          `json:"nature"`
		} `json:"rankings"`
	}
	decodeBody(t, w, &resp)
	if resp.Candidates != 2 {
		t.Errorf("candidates = %d, want 2", resp.Candidates)
	}
	if len(resp.Rankings) == 0 || resp.Rankings[0].Candidate.ID != "on-line" {
		t.Fatalf("rankings = %+v, want on-line first", resp.Rankings)
	}
	if resp.Rankings[0].Benefit <= 50 {
		t.Errorf("benefit = %v, want > 50 on a Sun MC line", resp.Rankings[0].Benefit)
	}

	again := do(h, "POST", "/api/v1/scout/rank", body)
	if got := again.Header().Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q, want hit", got)
	}
	if !bytes.Equal(again.Body.Bytes(), w.Body.Bytes()) {
		t.Error("cached body differs from computed body")
	}
}

// TestScoutCatalog verifies rankings and country groups drawn from the
// catalog by bounds.
func TestScoutCatalog(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	body := `{"time":"` + testTime + `","category":"career","scoring":{"preset":"relaxed","max_km":5000},
		"bounds":{"min_lat":-90,"max_lat":90,"min_lng":-180,"max_lng":180}}`

	w := do(h, "POST", "/api/v1/scout/rank", body)
	if w.Code != http.StatusOK {
		t.Fatalf("rank status = %d: %s", w.Code, w.Body.String())
	}
	var rank struct {
		Candidates int `json:"candidates"`
	}
	decodeBody(t, w, &rank)
	if rank.Candidates != len(testCities) {
		t.Errorf("candidates = %d, want %d", rank.Candidates, len(testCities))
	}

	w = do(h, "POST", "/api/v1/scout/countries", body)
	if w.Code != http.StatusOK {
		t.Fatalf("countries status = %d: %s", w.Code, w.Body.String())
	}
	var countries struct {
		Countries []scout.RankedCountry `json:"countries"`
	}
	decodeBody(t, w, &countries)
	if len(countries.Countries) == 0 {
		t.Error("no countries")
	}
}

// TestCitiesToCandidates verifies catalog fields, including the optional
// population weight, reach the scorer.
func TestCitiesToCandidates(t *testing.T) {
	got := citiesToCandidates(testCities)
	if len(got) != len(testCities) {
		t.Fatalf("candidates = %d, want %d", len(got), len(testCities))
	}
	for i, c := range got {
		city := testCities[i]
		if c.ID != city.ID || c.Name != city.Name || c.Country != city.Country {
			t.Errorf("candidate %d = %+v, want %s %s %s", i, c, city.ID, city.Name, city.Country)
		}
		if c.Point.Lat != city.Lat || c.Point.Lng != city.Lng {
			t.Errorf("candidate %d point = %v, want %v, %v", i, c.Point, city.Lat, city.Lng)
		}
		if c.Population != city.Population {
			t.Errorf("candidate %d population = %d, want %d", i, c.Population, city.Population)
		}
	}
}

func TestScoutScoreAndGrid(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	w := do(h, "POST", "/api/v1/scout/score", `{"time":"`+testTime+`","lat":48.85,"lng":2.35,"scoring":{"preset":"high_precision"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("score status = %d: %s", w.Code, w.Body.String())
	}
	var score scoreResponse
	decodeBody(t, w, &score)
	if score.Score.Benefit < 0 || score.Score.Benefit > 100 {
		t.Errorf("benefit = %v, want within [0, 100]", score.Score.Benefit)
	}
	if score.Score.InfluenceCount != len(score.Influences) {
		t.Errorf("influence_count = %d, influences = %d", score.Score.InfluenceCount, len(score.Influences))
	}

	w = do(h, "POST", "/api/v1/scout/grid", `{"time":"`+testTime+`","category":"wealth"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("grid status = %d: %s", w.Code, w.Body.String())
	}
	var grid scout.GridResult
	decodeBody(t, w, &grid)
	if grid.Phase == "" {
		t.Error("grid phase empty")
	}
}

func TestNearest(t *testing.T) {
	h, mem := newTestServer(t, Config{})

	w := do(h, "GET", "/api/v1/catalog/nearest?lat=49&lng=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		City       catalog.City `json:"city"`
		DistanceKm float64      `json:"distance_km"`
	}
	decodeBody(t, w, &resp)
	if resp.City.ID != "par" {
		t.Errorf("city = %q, want par", resp.City.ID)
	}

	if w := do(h, "GET", "/api/v1/catalog/nearest?lat=49", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing lng = %d, want 400", w.Code)
	}

	mem.Set(&catalog.Dataset{Source: "empty"})
	if w := do(h, "GET", "/api/v1/catalog/nearest?lat=49&lng=2", ""); w.Code != http.StatusNotFound {
		t.Errorf("empty catalog = %d, want 404", w.Code)
	}
}

// TestBadRequests verifies caller mistakes are reported as JSON 400s.
func TestBadRequests(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed JSON", "/api/v1/positions", `{"time":`},
		{"unknown field", "/api/v1/positions", `{"time":"` + testTime + `","planet":"sun"}`},
		{"missing time", "/api/v1/positions", `{}`},
		{"zoneless time without birthplace", "/api/v1/positions", `{"time":"1990-06-15T14:30:00"}`},
		{"unknown body", "/api/v1/positions", `{"time":"` + testTime + `","bodies":["vulcan"]}`},
		{"unknown tier", "/api/v1/positions", `{"time":"` + testTime + `","tier":"exact"}`},
		{"step too small", "/api/v1/lines", `{"time":"` + testTime + `","longitude_step":0.001}`},
		{"unknown aspect mode", "/api/v1/lines", `{"time":"` + testTime + `","aspect_mode":"galactic"}`},
		{"latitude out of range", "/api/v1/chart/natal", `{"time":"` + testTime + `","lat":95,"lng":0}`},
		{"unknown house system", "/api/v1/chart/natal", `{"time":"` + testTime + `","lat":10,"lng":0,"house_system":"vedic"}`},
		{"unknown category", "/api/v1/scout/grid", `{"time":"` + testTime + `","category":"fame"}`},
		{"unknown preset", "/api/v1/scout/score", `{"time":"` + testTime + `","lat":0,"lng":0,"scoring":{"preset":"loose"}}`},
		{"negative kernel param", "/api/v1/scout/score", `{"time":"` + testTime + `","lat":0,"lng":0,"scoring":{"kernel_param":-1}}`},
		{"rank without candidates", "/api/v1/scout/rank", `{"time":"` + testTime + `"}`},
		{"unknown sort", "/api/v1/scout/rank", `{"time":"` + testTime + `","sort":"random","candidates":[{"id":"a","point":{"lat":0,"lng":0}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, "POST", tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			var resp map[string]string
			decodeBody(t, w, &resp)
			if resp["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	if w := do(h, "GET", "/api/v1/lines", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/v1/lines = %d, want 405", w.Code)
	}
}

// TestRateLimit verifies the per-IP limiter rejects bursts but not probes.
func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, Config{RateLimit: RateLimitConfig{RPS: 0.001, Burst: 2}})

	for i := 0; i < 2; i++ {
		if w := do(h, "GET", "/api/v1/cache/stats", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i+1, w.Code)
		}
	}
	w := do(h, "GET", "/api/v1/cache/stats", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if w := do(h, "GET", "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz while limited = %d, want 200", w.Code)
	}
}

func TestRateLimiterPrunesIdle(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{RPS: 1}, false)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	now = now.Add(2 * limiterIdle)
	l.allow("10.0.0.2")

	if _, ok := l.visitors["10.0.0.1"]; ok {
		t.Error("idle visitor not pruned")
	}
	if len(l.visitors) != 1 {
		t.Errorf("visitors = %d, want 1", len(l.visitors))
	}
}

func TestAuthRequired(t *testing.T) {
	h, _ := newTestServer(t, Config{Auth: auth.Config{Enabled: true, Token: "tok"}})

	if w := do(h, "GET", "/api/v1/cache/stats", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("without token = %d, want 401", w.Code)
	}
	if w := do(h, "GET", "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with token = %d, want 200", w.Code)
	}
}

// TestStreamThroughMiddleware verifies the SSE route works behind the
// response writer wrappers.
func TestStreamThroughMiddleware(t *testing.T) {
	h, _ := newTestServer(t, Config{RateLimit: RateLimitConfig{RPS: 10}})

	w := do(h, "GET", "/api/v1/stream/positions?time=2000-01-01T12:00:00Z&bodies=sun", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"type":"baseline"`) || !strings.Contains(body, `"type":"upgrade"`) {
		t.Errorf("body = %q, want baseline and upgrade messages", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", badRequest("x"), http.StatusBadRequest},
		{"wrapped body", fmt.Errorf("positions: %w", ephemeris.ErrUnknownBody), http.StatusBadRequest},
		{"scout config", scout.ErrInvalidConfig, http.StatusBadRequest},
		{"decode", httputil.ErrBadRequest, http.StatusBadRequest},
		{"empty catalog", catalog.ErrEmpty, http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
