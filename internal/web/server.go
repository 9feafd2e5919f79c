// Package web exposes the application as a JSON API.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/lukas-hzb/verve/internal/deck"
	"github.com/lukas-hzb/verve/internal/gitsource"
	"github.com/lukas-hzb/verve/internal/parser"
	"github.com/lukas-hzb/verve/internal/srs"
	"github.com/lukas-hzb/verve/internal/storage"
	syncsrc "github.com/lukas-hzb/verve/internal/sync"
	"github.com/lukas-hzb/verve/internal/validate"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	router   *http.ServeMux
	reposDir string

	// mu serializes mutating requests. Updates are load-modify-store over a
	// whole set, so the single-writer-per-card assumption of the scheduler
	// is enforced here.
	mu sync.Mutex
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, reposDir string) *Server {
	s := &Server{
		db:       db,
		router:   http.NewServeMux(),
		reposDir: reposDir,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /api/sets", s.handleListSets)
	s.router.HandleFunc("POST /api/sets", s.handleCreateSet)
	s.router.HandleFunc("DELETE /api/sets/{id}", s.handleDeleteSet)

	s.router.HandleFunc("GET /api/sets/{id}/cards", s.handleGetCards)
	s.router.HandleFunc("POST /api/sets/{id}/cards", s.handleAddCard)
	s.router.HandleFunc("DELETE /api/sets/{id}/cards/{cardID}", s.handleDeleteCard)

	s.router.HandleFunc("GET /api/sets/{id}/due", s.handleGetDueCards)
	s.router.HandleFunc("GET /api/sets/{id}/next", s.handleGetNextCard)
	s.router.HandleFunc("GET /api/sets/{id}/stats", s.handleGetStats)

	s.router.HandleFunc("POST /api/sets/{id}/rate", s.handleRateCard)
	s.router.HandleFunc("POST /api/sets/{id}/restore", s.handleRestoreCard)
	s.router.HandleFunc("POST /api/sets/{id}/reset", s.handleResetSet)
	s.router.HandleFunc("POST /api/sets/{id}/import", s.handleImportIntoSet)

	s.router.HandleFunc("GET /api/sources", s.handleListSources)
	s.router.HandleFunc("POST /api/sources", s.handleAddSource)
	s.router.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource)
	s.router.HandleFunc("POST /api/sync", s.handleSync)
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"data":   data,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondErr maps an error onto an HTTP status and writes an error envelope.
func respondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ie *validate.InputError
	switch {
	case errors.As(err, &ie), errors.Is(err, parser.ErrNoCards):
		status = http.StatusBadRequest
	case errors.Is(err, deck.ErrCardNotFound), errors.Is(err, deck.ErrSetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, deck.ErrDuplicateCard):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		msg = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "error",
		"message": msg,
	})
}

// decode parses a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &validate.InputError{Field: "body", Reason: "malformed JSON"}
	}
	return nil
}

// loadSet resolves the {id} path value into a set with its cards.
func (s *Server) loadSet(r *http.Request) (*deck.Set, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, &validate.InputError{Field: "id", Reason: "set ID must be an integer"}
	}
	return s.db.GetSet(id)
}

// setSummary is the list view of a set.
type setSummary struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	CardCount  int         `json:"card_count"`
	DueCount   int         `json:"due_count"`
	LevelCount map[int]int `json:"level_counts"`
	MaxLevel   int         `json:"max_level"`
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.db.ListSets()
	if err != nil {
		respondErr(w, err)
		return
	}

	now := time.Now()
	summaries := make([]setSummary, 0, len(sets))
	for _, set := range sets {
		stats := set.Statistics(now)

		// The level with the most cards, shown as the set's overall progress.
		maxLevel := 1
		best := 0
		for level, count := range stats.LevelCounts {
			if count > best || (count == best && level > maxLevel) {
				maxLevel, best = level, count
			}
		}

		summaries = append(summaries, setSummary{
			ID:         set.ID,
			Name:       set.Name,
			CardCount:  stats.TotalCards,
			DueCount:   stats.DueCards,
			LevelCount: stats.LevelCounts,
			MaxLevel:   maxLevel,
		})
	}
	respond(w, http.StatusOK, summaries)
}

func (s *Server) handleCreateSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string `json:"name"`
		Content        string `json:"content"`
		CardSeparator  string `json:"card_separator"`
		FieldSeparator string `json:"field_separator"`
	}
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	name, err := validate.SetName(req.Name)
	if err != nil {
		respondErr(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.db.FindSetByName(name)
	if err != nil {
		respondErr(w, err)
		return
	}
	if existing != nil {
		respondErr(w, &validate.InputError{Field: "name", Reason: "a set with this name already exists"})
		return
	}

	now := time.Now()
	set, err := s.db.CreateSet(name, now)
	if err != nil {
		respondErr(w, err)
		return
	}

	// Optional inline import: content provided with the set creation.
	if req.Content != "" {
		entries, err := parser.Parse(req.Content, req.CardSeparator, req.FieldSeparator)
		if err != nil {
			respondErr(w, err)
			return
		}
		for _, card := range set.Merge(entries, now) {
			if err := s.db.InsertCard(set.ID, card); err != nil {
				respondErr(w, err)
				return
			}
		}
	}

	respond(w, http.StatusCreated, set)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondErr(w, &validate.InputError{Field: "id", Reason: "set ID must be an integer"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteSet(id); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleGetCards(w http.ResponseWriter, r *http.Request) {
	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, set.Cards)
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	front, err := validate.CardFront(req.Front)
	if err != nil {
		respondErr(w, err)
		return
	}
	if req.Back == "" {
		respondErr(w, &validate.InputError{Field: "back", Reason: "card back cannot be empty"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	now := time.Now()
	card, err := set.AddCard(front, req.Back, now)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := s.db.InsertCard(set.ID, card); err != nil {
		respondErr(w, err)
		return
	}
	if err := s.db.TouchSet(set.ID, now); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	setID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondErr(w, &validate.InputError{Field: "id", Reason: "set ID must be an integer"})
		return
	}
	cardID, err := strconv.ParseInt(r.PathValue("cardID"), 10, 64)
	if err != nil {
		respondErr(w, &validate.InputError{Field: "card_id", Reason: "card ID must be an integer"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCard(setID, cardID); err != nil {
		respondErr(w, err)
		return
	}
	if err := s.db.TouchSet(setID, time.Now()); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleGetDueCards(w http.ResponseWriter, r *http.Request) {
	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	due := set.DueCards(time.Now())
	if due == nil {
		due = []*deck.Card{}
	}
	respond(w, http.StatusOK, due)
}

func (s *Server) handleGetNextCard(w http.ResponseWriter, r *http.Request) {
	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	due := set.DueCards(time.Now())
	if len(due) == 0 {
		respond(w, http.StatusOK, nil)
		return
	}
	respond(w, http.StatusOK, due[0])
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, set.Statistics(time.Now()))
}

func (s *Server) handleRateCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Front   string `json:"front"`
		Quality int    `json:"quality"`
	}
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	front, err := validate.CardFront(req.Front)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := validate.Quality(req.Quality); err != nil {
		respondErr(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	now := time.Now()
	res, err := set.ApplyReview(front, srs.Quality(req.Quality), now)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := s.db.UpdateCardReview(res.Card); err != nil {
		respondErr(w, err)
		return
	}
	if err := s.db.TouchSet(set.ID, now); err != nil {
		respondErr(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"old_level":     res.OldLevel,
		"new_level":     res.NewLevel,
		"interval_days": res.IntervalDays,
		"card":          res.Card,
	})
}

func (s *Server) handleRestoreCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Front      string `json:"front"`
		Level      int    `json:"level"`
		NextReview string `json:"next_review"`
	}
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	front, err := validate.CardFront(req.Front)
	if err != nil {
		respondErr(w, err)
		return
	}
	if req.Level < 1 {
		respondErr(w, &validate.InputError{Field: "level", Reason: "level must be at least 1"})
		return
	}
	nextReview, err := parseTimestamp(req.NextReview)
	if err != nil {
		respondErr(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	now := time.Now()
	card, err := set.RestoreCard(front, req.Level, nextReview, now)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := s.db.UpdateCardReview(card); err != nil {
		respondErr(w, err)
		return
	}
	if err := s.db.TouchSet(set.ID, now); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, card)
}

func (s *Server) handleResetSet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := s.db.ResetSet(set.ID, time.Now()); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"message": "all cards in " + set.Name + " have been reset to level 1",
	})
}

func (s *Server) handleImportIntoSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content        string `json:"content"`
		CardSeparator  string `json:"card_separator"`
		FieldSeparator string `json:"field_separator"`
	}
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.Content == "" {
		respondErr(w, &validate.InputError{Field: "content", Reason: "import content cannot be empty"})
		return
	}

	entries, err := parser.Parse(req.Content, req.CardSeparator, req.FieldSeparator)
	if err != nil {
		respondErr(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.loadSet(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	now := time.Now()
	added := set.Merge(entries, now)
	for _, card := range added {
		if err := s.db.InsertCard(set.ID, card); err != nil {
			respondErr(w, err)
			return
		}
	}
	if err := s.db.TouchSet(set.ID, now); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"added": len(added)})
}

type sourceJSON struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		respondErr(w, err)
		return
	}
	out := make([]sourceJSON, 0, len(sources))
	for _, src := range sources {
		j := sourceJSON{ID: src.ID, Path: src.Path, Type: src.Type}
		if src.LastScanned.Valid {
			t := src.LastScanned.Time
			j.LastScanned = &t
		}
		out = append(out, j)
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.Path == "" {
		respondErr(w, &validate.InputError{Field: "path", Reason: "source path cannot be empty"})
		return
	}

	sourceType := "local"
	if gitsource.IsGitURL(req.Path) {
		sourceType = "git"
	}

	id, err := s.db.InsertSource(req.Path, sourceType)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, sourceJSON{ID: id, Path: req.Path, Type: sourceType})
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondErr(w, &validate.InputError{Field: "id", Reason: "source ID must be an integer"})
		return
	}
	if err := s.db.DeleteSource(id); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := syncsrc.RunSync(r.Context(), s.db, s.reposDir)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

// parseTimestamp accepts RFC 3339 with or without an offset.
func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &validate.InputError{
		Field:  "next_review",
		Reason: "timestamp must be RFC 3339, e.g. 2025-06-01T12:00:00Z",
	}
}
