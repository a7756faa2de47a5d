// Package api provides the HTTP API for observing the running colony.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Snusene/AutoArm-sub008/internal/engine"
	"github.com/Snusene/AutoArm-sub008/internal/persistence"
	"github.com/Snusene/AutoArm-sub008/internal/scheduler"
	"github.com/Snusene/AutoArm-sub008/internal/scoring"
	"github.com/Snusene/AutoArm-sub008/internal/sim"
)

// Server serves the world state over HTTP.
type Server struct {
	Sim       *engine.Simulation
	Eng       *engine.Engine
	Decider   *scheduler.Scheduler
	DB        *persistence.DB
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
	StartedAt time.Time

	// SnapshotLimit caps snapshot POSTs per client per SnapshotWindow.
	// Zero values fall back to 10 per hour.
	SnapshotLimit  int
	SnapshotWindow time.Duration
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	limit, window := s.SnapshotLimit, s.SnapshotWindow
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Hour
	}
	snapshotLimiter := NewRateLimiter(limit, window)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only — anyone can check in on the colony).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentRoutes)
	mux.HandleFunc("/api/v1/items", s.handleItems)
	mux.HandleFunc("/api/v1/item/", s.adminOnly(s.handleItemDetail))
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", RateLimitMiddleware(snapshotLimiter, s.adminOnly(s.handleSnapshot)))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ARMSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":         "armsim",
		"tick":         s.Sim.CurrentTick(),
		"sim_time":     engine.SimTime(s.Sim.CurrentTick()),
		"speed":        s.Eng.Speed,
		"running":      s.Eng.Running,
		"uptime":       humanize.Time(s.StartedAt),
		"agents":       s.Sim.Stats.Agents,
		"armed":        s.Sim.Stats.Armed,
		"ground_items": s.Sim.Stats.GroundItems,
		"equips":       humanize.Comma(int64(s.Sim.Stats.Equips)),
		"swaps":        humanize.Comma(int64(s.Sim.Stats.Swaps)),
		"failures":     s.Sim.Stats.Failures,
	}
	writeJSON(w, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	type agentSummary struct {
		ID       sim.AgentID `json:"id"`
		Name     string      `json:"name"`
		Age      int         `json:"age"`
		Weapon   string      `json:"weapon"`
		Quality  string      `json:"quality,omitempty"`
		Score    float64     `json:"score"`
		Sidearms int         `json:"sidearms"`
		Forced   bool        `json:"forced"`
		Drafted  bool        `json:"drafted"`
		Alive    bool        `json:"alive"`
	}

	var result []agentSummary
	for _, a := range s.Sim.Agents {
		entry := agentSummary{
			ID:       a.ID,
			Name:     a.Name,
			Age:      a.Age,
			Weapon:   "unarmed",
			Score:    scoring.CurrentScore(a),
			Sidearms: a.CarriedCount(),
			Forced:   a.ForcedWeapon,
			Drafted:  a.Drafted,
			Alive:    a.Alive,
		}
		if a.Equipped != nil {
			entry.Weapon = a.Equipped.Def.Name
			entry.Quality = sim.QualityName(a.Equipped.Quality)
		}
		result = append(result, entry)
	}
	writeJSON(w, result)
}

// handleAgentRoutes dispatches /agent/:id and the admin subroutes
// /agent/:id/force and /agent/:id/draft.
func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}
	agent := s.Sim.World.Agent(sim.AgentID(id))
	if agent == nil {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	if len(parts) >= 6 {
		switch parts[5] {
		case "force":
			s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
				s.handleAgentForce(w, r, agent)
			})(w, r)
		case "draft":
			s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
				s.handleAgentDraft(w, r, agent)
			})(w, r)
		default:
			http.Error(w, "unknown agent route", http.StatusNotFound)
		}
		return
	}

	s.handleAgentDetail(w, agent)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, agent *sim.Agent) {
	type itemView struct {
		ID      sim.ItemID `json:"id"`
		Name    string     `json:"name"`
		Quality string     `json:"quality"`
		Score   float64    `json:"score"`
	}

	detail := map[string]any{
		"agent": agent,
		"score": scoring.CurrentScore(agent),
	}
	if agent.Equipped != nil {
		detail["equipped"] = itemView{
			ID:      agent.Equipped.ID,
			Name:    agent.Equipped.Def.Name,
			Quality: sim.QualityName(agent.Equipped.Quality),
			Score:   scoring.Full(agent, agent.Equipped),
		}
	}
	var sidearms []itemView
	for _, it := range agent.Inventory {
		sidearms = append(sidearms, itemView{
			ID:      it.ID,
			Name:    it.Def.Name,
			Quality: sim.QualityName(it.Quality),
			Score:   scoring.Full(agent, it),
		})
	}
	detail["sidearms"] = sidearms
	writeJSON(w, detail)
}

// handleAgentForce pins or unpins the agent's current weapon. A pinned
// weapon is never auto-replaced.
func (s *Server) handleAgentForce(w http.ResponseWriter, r *http.Request, agent *sim.Agent) {
	if r.Method == http.MethodPost {
		var req struct {
			Forced bool `json:"forced"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		agent.ForcedWeapon = req.Forced
		s.Decider.InvalidateAgentCache(agent.ID)
		slog.Info("forced weapon changed", "agent", agent.ID, "forced", req.Forced)
	}
	writeJSON(w, map[string]any{"id": agent.ID, "forced": agent.ForcedWeapon})
}

func (s *Server) handleAgentDraft(w http.ResponseWriter, r *http.Request, agent *sim.Agent) {
	if r.Method == http.MethodPost {
		var req struct {
			Drafted bool `json:"drafted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		agent.Drafted = req.Drafted
		s.Decider.InvalidateAgentCache(agent.ID)
		slog.Info("draft changed", "agent", agent.ID, "drafted", req.Drafted)
	}
	writeJSON(w, map[string]any{"id": agent.ID, "drafted": agent.Drafted})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	type itemSummary struct {
		ID        sim.ItemID `json:"id"`
		Name      string     `json:"name"`
		Quality   string     `json:"quality"`
		Condition string     `json:"condition"`
		X         int        `json:"x"`
		Y         int        `json:"y"`
		Forbidden bool       `json:"forbidden,omitempty"`
	}

	var result []itemSummary
	for _, it := range s.Sim.World.ItemsIn(s.Sim.Map.Region) {
		result = append(result, itemSummary{
			ID:        it.ID,
			Name:      it.Def.Name,
			Quality:   sim.QualityName(it.Quality),
			Condition: fmt.Sprintf("%.0f%%", it.HitPoints*100),
			X:         it.Cell.X,
			Y:         it.Cell.Y,
			Forbidden: it.Forbidden,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	writeJSON(w, result)
}

// handleItemDetail serves GET /item/:id and POST /item/:id/forbid.
func (s *Server) handleItemDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 {
		http.Error(w, "missing item id", http.StatusBadRequest)
		return
	}
	it := s.Sim.World.Item(sim.ItemID(parts[4]))
	if it == nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	if len(parts) >= 6 && parts[5] == "forbid" && r.Method == http.MethodPost {
		var req struct {
			Forbidden bool `json:"forbidden"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		it.Forbidden = req.Forbidden
		slog.Info("item forbidden changed", "item", it.ID, "forbidden", req.Forbidden)
	}

	writeJSON(w, it)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.Events

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}

	writeJSON(w, events[start:])
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Stats)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.Speed = req.Speed
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("snapshot failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"saved": true, "tick": s.Sim.CurrentTick()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
