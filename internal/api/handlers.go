package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/harshasoftware/halohome-sub007/internal/cache"
	"github.com/harshasoftware/halohome-sub007/internal/catalog"
	"github.com/harshasoftware/halohome-sub007/internal/chart"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/httputil"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
	"github.com/harshasoftware/halohome-sub007/internal/scout"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// decode reads the request body into v and writes the 400 itself on
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(w, r, v); err != nil {
		s.writeErr(w, r, err)
		return false
	}
	return true
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	var req positionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	inst, err := s.resolveInstant(req.Time, req.Birthplace)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	provider := s.deps.Ephemeris
	if req.Tier != nil && *req.Tier == ephemeris.TierBaseline {
		provider = s.deps.Baseline
	}
	bodies := req.Bodies
	if len(bodies) == 0 {
		bodies = slices.Clone(ephemeris.AllBodies)
	}

	pos, err := s.deps.Progressive.Cache().Positions(r.Context(), provider, inst, bodies)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"instant":   inst,
		"positions": pos,
	})
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	var req linesRequest
	if !s.decode(w, r, &req) {
		return
	}
	inst, err := s.resolveInstant(req.Time, req.Birthplace)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	res, err := lines.Generate(r.Context(), s.deps.Ephemeris, inst, opts)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleLocalSpace(w http.ResponseWriter, r *http.Request) {
	var req localSpaceRequest
	if !s.decode(w, r, &req) {
		return
	}
	origin := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if err := checkPoint("origin", origin); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if req.MaxKm < 0 || req.MaxKm > maxLocalKm {
		s.writeErr(w, r, badRequest("max_km must be within [0, %v]", maxLocalKm))
		return
	}
	if req.StepKm != 0 && req.StepKm < minLocalStepKm {
		s.writeErr(w, r, badRequest("step_km must be at least %d", minLocalStepKm))
		return
	}
	inst, err := s.resolveInstant(req.Time, &origin)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	res, err := lines.LocalSpace(r.Context(), s.deps.Ephemeris, inst, geo.NewPoint(origin.Lat, origin.Lng), lines.LocalSpaceOptions{
		Bodies: req.Bodies,
		MaxKm:  req.MaxKm,
		StepKm: req.StepKm,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleNatal(w http.ResponseWriter, r *http.Request) {
	var req chartRequest
	if !s.decode(w, r, &req) {
		return
	}
	site := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if err := checkPoint("site", site); err != nil {
		s.writeErr(w, r, err)
		return
	}
	inst, err := s.resolveInstant(req.Time, &site)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	c, err := chart.Natal(r.Context(), s.deps.Ephemeris, inst, site, req.options())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) handleRelocation(w http.ResponseWriter, r *http.Request) {
	var req relocationRequest
	if !s.decode(w, r, &req) {
		return
	}
	site := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if err := checkPoint("site", site); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := checkPoint("relocated", req.Relocated); err != nil {
		s.writeErr(w, r, err)
		return
	}
	inst, err := s.resolveInstant(req.Time, &site)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	rel, err := chart.Relocate(r.Context(), s.deps.Ephemeris, inst, site, req.Relocated, req.options())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rel)
}

// scoutLines generates the line set scouting runs against: angular lines
// and aspect lines, without parans.
func (s *Server) scoutLines(ctx context.Context, inst transform.Instant) ([]lines.Line, error) {
	opts := lines.DefaultOptions()
	opts.NoParans = true
	res, err := lines.Generate(ctx, s.deps.Ephemeris, inst, opts)
	if err != nil {
		return nil, err
	}
	return append(res.Lines, res.AspectLines...), nil
}

type scoreResponse struct {
	Score      scout.ScoreResult `json:"score"`
	Influences []scout.Influence `json:"influences"`
	Config     scout.Config      `json:"config"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	p := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if err := checkPoint("location", p); err != nil {
		s.writeErr(w, r, err)
		return
	}
	inst, err := s.resolveInstant(req.Time, req.Birthplace)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cfg, err := req.Scoring.config()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	key := cache.ScoreKey(inst.JD, p.Lat, p.Lng, "score", cacheParam(cfg))
	s.cached(w, r, key, func(ctx context.Context) (any, error) {
		ls, err := s.scoutLines(ctx, inst)
		if err != nil {
			return nil, err
		}
		prepared := scout.Prepare(ls, cfg.MaxKm, 0)
		infl := scout.Influences(p, prepared, cfg)
		if infl == nil {
			infl = []scout.Influence{}
		}
		return scoreResponse{
			Score:      scout.Score(scout.Candidate{ID: "location", Point: p}, prepared, cfg),
			Influences: infl,
			Config:     cfg,
		}, nil
	})
}

type rankResponse struct {
	Category   scout.Category  `json:"category"`
	Sort       scout.SortMode  `json:"sort"`
	Config     scout.Config    `json:"config"`
	Candidates int             `json:"candidates"`
	Rankings   []scout.Ranking `json:"rankings"`
}

type countriesResponse struct {
	Category   scout.Category        `json:"category"`
	Config     scout.Config          `json:"config"`
	Candidates int                   `json:"candidates"`
	Countries  []scout.RankedCountry `json:"countries"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	s.rank(w, r, "rank", func(req rankRequest, cfg scout.Config, n int, rs []scout.Ranking) any {
		return rankResponse{Category: req.Category, Sort: req.Sort, Config: cfg, Candidates: n, Rankings: rs}
	})
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	s.rank(w, r, "countries", func(req rankRequest, cfg scout.Config, n int, rs []scout.Ranking) any {
		countries := scout.GroupByCountry(rs)
		if countries == nil {
			countries = []scout.RankedCountry{}
		}
		return countriesResponse{Category: req.Category, Config: cfg, Candidates: n, Countries: countries}
	})
}

// rank runs a category ranking and shapes the response with build. The
// limit applies to the rankings before build sees them.
func (s *Server) rank(w http.ResponseWriter, r *http.Request, kind string, build func(rankRequest, scout.Config, int, []scout.Ranking) any) {
	var req rankRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.writeErr(w, r, err)
		return
	}
	inst, err := s.resolveInstant(req.Time, req.Birthplace)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cfg, err := req.Scoring.config()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	params := []string{kind, req.Sort.String(), cacheParam(cfg), strconv.Itoa(req.Limit)}
	if req.Bounds != nil {
		params = append(params, cacheParam(req.Bounds), s.catalogVersion())
	} else {
		params = append(params, cacheParam(req.Candidates))
	}
	key := cache.ScoreKey(inst.JD, 0, 0, req.Category.String(), params...)

	s.cached(w, r, key, func(ctx context.Context) (any, error) {
		candidates := req.Candidates
		if req.Bounds != nil {
			cities, err := s.deps.Catalog.WithinBounds(ctx, *req.Bounds)
			if err != nil {
				return nil, err
			}
			candidates = citiesToCandidates(cities)
		}
		ls, err := s.scoutLines(ctx, inst)
		if err != nil {
			return nil, err
		}
		rs, err := s.deps.Pool.Rank(ctx, candidates, scout.Prepare(ls, cfg.MaxKm, 0), req.Category, req.Sort, cfg)
		if err != nil {
			return nil, err
		}
		if req.Limit > 0 && len(rs) > req.Limit {
			rs = rs[:req.Limit]
		}
		return build(req, cfg, len(candidates), rs), nil
	})
}

func citiesToCandidates(cities []catalog.City) []scout.Candidate {
	out := make([]scout.Candidate, len(cities))
	for i, c := range cities {
		out[i] = scout.Candidate{ID: c.ID, Name: c.Name, Country: c.Country, Point: c.Point(), Population: c.Population}
	}
	return out
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	var req gridRequest
	if !s.decode(w, r, &req) {
		return
	}
	inst, err := s.resolveInstant(req.Time, req.Birthplace)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cfg, err := req.Scoring.config()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	key := cache.ScoreKey(inst.JD, 0, 0, req.Category.String(), "grid", cacheParam(cfg))
	s.cached(w, r, key, func(ctx context.Context) (any, error) {
		ls, err := s.scoutLines(ctx, inst)
		if err != nil {
			return nil, err
		}
		return s.deps.Pool.ScoutGrid(ctx, ls, req.Category, cfg)
	})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		s.writeErr(w, r, badRequest("lat and lng query parameters are required"))
		return
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if err := checkPoint("query", p); err != nil {
		s.writeErr(w, r, err)
		return
	}

	c, err := s.deps.Catalog.Nearest(r.Context(), lat, lng)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"city":        c,
		"distance_km": geo.Haversine(p, c.Point()),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"positions": s.deps.Progressive.Cache().Stats(r.Context()),
	}
	if s.deps.Scores != nil {
		resp["scores"] = map[string]int{"entries": s.deps.Scores.Len()}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) catalogVersion() string {
	if s.deps.CatalogVersion == nil {
		return ""
	}
	return s.deps.CatalogVersion()
}

// cacheParam encodes v for use in a score cache key.
func cacheParam(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// cached serves the encoded result under key from the score cache, or
// computes, stores and serves it.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, key string, compute func(ctx context.Context) (any, error)) {
	ctx := r.Context()
	if s.deps.Scores != nil {
		if blob, ok := s.deps.Scores.Get(ctx, key); ok {
			writeBlob(w, "hit", blob)
			return
		}
	}

	v, err := compute(ctx)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	blob, err := json.Marshal(v)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if s.deps.Scores != nil {
		s.deps.Scores.Put(ctx, key, blob)
	}
	writeBlob(w, "miss", blob)
}

func writeBlob(w http.ResponseWriter, cacheStatus string, blob []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
	w.Write([]byte("\n"))
}
