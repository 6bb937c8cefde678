package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/volanre/jollyred/internal/game"
	"github.com/volanre/jollyred/internal/stats"
	"github.com/volanre/jollyred/internal/storage"
)

const (
	tracePNGWidth  = 800
	tracePNGHeight = 400
	maxDeathsLimit = 500
)

// Handler methods for routerHandlers

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string   `json:"name"`
		Profile string   `json:"profile"`
		X       *float64 `json:"x"` // Random spawn point when omitted
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, "Name is required", http.StatusBadRequest)
		return
	}
	if req.Profile == "" {
		req.Profile = h.defaultProfile
	}

	profile, err := h.lookupProfile(r, req.Profile)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var snap game.CharacterSnapshot
	if req.X != nil {
		snap, err = h.engine.SpawnAt(req.Name, profile, *req.X)
	} else {
		snap, err = h.engine.Spawn(req.Name, profile)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Location", "/api/characters/"+snap.ID)
	writeJSONStatus(w, http.StatusCreated, snap)
}

// lookupProfile resolves a profile name through the store. Without a store
// only the built-in default exists.
func (h *routerHandlers) lookupProfile(r *http.Request, name string) (game.Profile, error) {
	if h.store == nil {
		if name == game.DefaultProfileName {
			return game.DefaultProfile(), nil
		}
		return game.Profile{}, fmt.Errorf("profile %q: %w", name, storage.ErrProfileNotFound)
	}
	return h.store.GetProfile(r.Context(), name)
}

func (h *routerHandlers) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Remove(chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	ev, err := game.ParseInput(req.Command, req.Args)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	accepted, err := h.engine.ApplyInput(chi.URLParam(r, "id"), ev)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"input":    ev.Kind.String(),
		"accepted": accepted,
	})
}

func (h *routerHandlers) handleDamage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attack        int  `json:"attack"`
		IgnoreDefense bool `json:"ignoreDefense"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	res, err := h.engine.ApplyDamage(chi.URLParam(r, "id"), req.Attack, req.IgnoreDefense)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *routerHandlers) handleHeal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int `json:"amount"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Amount <= 0 {
		writeError(w, "Amount must be positive", http.StatusBadRequest)
		return
	}

	healed, err := h.engine.Heal(chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"healed": healed})
}

// modifierRequest is the body of the modifier routes
type modifierRequest struct {
	Stat  string  `json:"stat"`
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
}

func decodeModifier(r *http.Request) (stats.Stat, stats.Modifier, error) {
	var req modifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, stats.Modifier{}, errors.New("invalid request")
	}
	stat, err := stats.ParseStat(req.Stat)
	if err != nil {
		return 0, stats.Modifier{}, err
	}
	kind, err := stats.ParseModifierKind(req.Kind)
	if err != nil {
		return 0, stats.Modifier{}, err
	}
	return stat, stats.Modifier{Kind: kind, Value: req.Value}, nil
}

func (h *routerHandlers) handleAddModifier(w http.ResponseWriter, r *http.Request) {
	stat, m, err := decodeModifier(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.engine.AddModifier(id, stat, m); err != nil {
		writeEngineError(w, err)
		return
	}

	snap, err := h.engine.Get(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, snap.Stats)
}

func (h *routerHandlers) handleRemoveModifier(w http.ResponseWriter, r *http.Request) {
	stat, m, err := decodeModifier(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := h.engine.RemoveModifier(chi.URLParam(r, "id"), stat, m)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !removed {
		writeError(w, "Modifier not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleTracePNG(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.engine.Get(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	samples, err := h.engine.Trace(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := RenderTrace(w, samples, snap.MaxHP, tracePNGWidth, tracePNGHeight); err != nil {
		log.Printf("⚠️ Trace render failed for %s: %v", id, err)
	}
}

func (h *routerHandlers) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, []game.Profile{game.DefaultProfile()})
		return
	}
	profiles, err := h.store.ListProfiles(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, profiles)
}

func (h *routerHandlers) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.lookupProfile(r, chi.URLParam(r, "name"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, profile)
}

func (h *routerHandlers) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, "Profile storage is not configured", http.StatusServiceUnavailable)
		return
	}

	// Unset fields keep the stock values
	profile := game.DefaultProfile()
	profile.Title = ""
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	profile.Name = chi.URLParam(r, "name")
	if profile.Title == "" {
		profile.Title = profile.Name
	}

	if err := profile.Validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.SaveProfile(r.Context(), profile); err != nil {
		writeEngineError(w, err)
		return
	}

	log.Printf("📝 Profile %s saved", profile.Name)
	writeJSON(w, profile)
}

func (h *routerHandlers) handleListDeaths(w http.ResponseWriter, r *http.Request) {
	limit := storage.DefaultDeathLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n > maxDeathsLimit {
			n = maxDeathsLimit
		}
		limit = n
	}

	if h.store == nil {
		writeJSON(w, []game.DeathRecord{})
		return
	}
	deaths, err := h.store.ListDeaths(r.Context(), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if deaths == nil {
		deaths = []game.DeathRecord{}
	}
	writeJSON(w, deaths)
}

// Helper functions

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps engine and storage errors to status codes
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrCharacterNotFound), errors.Is(err, storage.ErrProfileNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, game.ErrCharacterLimit):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, game.ErrUnknownInput), errors.Is(err, stats.ErrUnknownStat),
		errors.Is(err, game.ErrInvalidProfile):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("⚠️ API error: %v", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}
