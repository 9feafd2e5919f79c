package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lukas-hzb/verve/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "verve.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewServer(db, filepath.Join(t.TempDir(), "repos"))
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, s *Server, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func createSet(t *testing.T, s *Server, name string) int64 {
	t.Helper()
	code, env := do(t, s, http.MethodPost, "/api/sets", map[string]any{"name": name})
	if code != http.StatusCreated {
		t.Fatalf("Create set failed with %d: %s", code, env.Message)
	}
	var set struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &set); err != nil {
		t.Fatal(err)
	}
	return set.ID
}

func TestSetLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := createSet(t, s, "german-basics")

	t.Run("duplicate name rejected", func(t *testing.T) {
		code, _ := do(t, s, http.MethodPost, "/api/sets", map[string]any{"name": "german-basics"})
		if code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})

	t.Run("invalid name rejected", func(t *testing.T) {
		code, _ := do(t, s, http.MethodPost, "/api/sets", map[string]any{"name": "../escape"})
		if code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})

	t.Run("list contains the set", func(t *testing.T) {
		code, env := do(t, s, http.MethodGet, "/api/sets", nil)
		if code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		var sets []struct {
			Name      string `json:"name"`
			CardCount int    `json:"card_count"`
		}
		if err := json.Unmarshal(env.Data, &sets); err != nil {
			t.Fatal(err)
		}
		if len(sets) != 1 || sets[0].Name != "german-basics" {
			t.Errorf("Expected one set 'german-basics', got %+v", sets)
		}
	})

	t.Run("delete", func(t *testing.T) {
		code, _ := do(t, s, http.MethodDelete, fmt.Sprintf("/api/sets/%d", id), nil)
		if code != http.StatusOK {
			t.Errorf("Expected 200, got %d", code)
		}
		code, _ = do(t, s, http.MethodDelete, fmt.Sprintf("/api/sets/%d", id), nil)
		if code != http.StatusNotFound {
			t.Errorf("Expected 404 on second delete, got %d", code)
		}
	})
}

func TestReviewFlow(t *testing.T) {
	s := newTestServer(t)
	id := createSet(t, s, "flow")

	code, env := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/cards", id),
		map[string]any{"front": "Haus", "back": "house"})
	if code != http.StatusCreated {
		t.Fatalf("Add card failed with %d: %s", code, env.Message)
	}

	t.Run("new card is due immediately", func(t *testing.T) {
		code, env := do(t, s, http.MethodGet, fmt.Sprintf("/api/sets/%d/due", id), nil)
		if code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		var due []struct {
			Front string `json:"front"`
			Level int    `json:"level"`
		}
		if err := json.Unmarshal(env.Data, &due); err != nil {
			t.Fatal(err)
		}
		if len(due) != 1 || due[0].Front != "Haus" || due[0].Level != 1 {
			t.Errorf("Expected [Haus@1] due, got %+v", due)
		}
	})

	var snapshot struct {
		Level      int       `json:"level"`
		NextReview time.Time `json:"next_review"`
	}
	t.Run("rate advances the card", func(t *testing.T) {
		// Snapshot pre-review state first, the way an undo-capable client must.
		code, env := do(t, s, http.MethodGet, fmt.Sprintf("/api/sets/%d/next", id), nil)
		if code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		if err := json.Unmarshal(env.Data, &snapshot); err != nil {
			t.Fatal(err)
		}

		code, env = do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/rate", id),
			map[string]any{"front": "Haus", "quality": 5})
		if code != http.StatusOK {
			t.Fatalf("Rate failed with %d: %s", code, env.Message)
		}
		var res struct {
			OldLevel     int `json:"old_level"`
			NewLevel     int `json:"new_level"`
			IntervalDays int `json:"interval_days"`
		}
		if err := json.Unmarshal(env.Data, &res); err != nil {
			t.Fatal(err)
		}
		if res.OldLevel != 1 || res.NewLevel != 2 || res.IntervalDays != 1 {
			t.Errorf("Expected 1 -> 2 over 1 day, got %+v", res)
		}
	})

	t.Run("rated card no longer due", func(t *testing.T) {
		_, env := do(t, s, http.MethodGet, fmt.Sprintf("/api/sets/%d/stats", id), nil)
		var stats struct {
			TotalCards int `json:"total_cards"`
			DueCards   int `json:"due_cards"`
		}
		if err := json.Unmarshal(env.Data, &stats); err != nil {
			t.Fatal(err)
		}
		if stats.TotalCards != 1 || stats.DueCards != 0 {
			t.Errorf("Expected 1 card, 0 due, got %+v", stats)
		}
	})

	t.Run("restore undoes the review", func(t *testing.T) {
		code, env := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/restore", id),
			map[string]any{
				"front":       "Haus",
				"level":       snapshot.Level,
				"next_review": snapshot.NextReview.Format(time.RFC3339),
			})
		if code != http.StatusOK {
			t.Fatalf("Restore failed with %d: %s", code, env.Message)
		}
		var card struct {
			Level int `json:"level"`
		}
		if err := json.Unmarshal(env.Data, &card); err != nil {
			t.Fatal(err)
		}
		if card.Level != 1 {
			t.Errorf("Expected level restored to 1, got %d", card.Level)
		}
	})

	t.Run("bad quality rejected", func(t *testing.T) {
		code, _ := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/rate", id),
			map[string]any{"front": "Haus", "quality": 6})
		if code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})

	t.Run("unknown card is 404", func(t *testing.T) {
		code, _ := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/rate", id),
			map[string]any{"front": "Katze", "quality": 5})
		if code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", code)
		}
	})
}

func TestResetSet(t *testing.T) {
	s := newTestServer(t)
	id := createSet(t, s, "reset-me")

	for _, front := range []string{"a", "b", "c"} {
		code, env := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/cards", id),
			map[string]any{"front": front, "back": front})
		if code != http.StatusCreated {
			t.Fatalf("Add card failed with %d: %s", code, env.Message)
		}
	}
	// Push every card past level 1.
	for _, front := range []string{"a", "b", "c"} {
		do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/rate", id),
			map[string]any{"front": front, "quality": 4})
	}

	code, _ := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/reset", id), nil)
	if code != http.StatusOK {
		t.Fatalf("Reset failed with %d", code)
	}

	_, env := do(t, s, http.MethodGet, fmt.Sprintf("/api/sets/%d/stats", id), nil)
	var stats struct {
		TotalCards  int         `json:"total_cards"`
		DueCards    int         `json:"due_cards"`
		LevelCounts map[int]int `json:"level_counts"`
	}
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.DueCards != 3 {
		t.Errorf("Expected all 3 cards due after reset, got %d", stats.DueCards)
	}
	if stats.LevelCounts[1] != 3 {
		t.Errorf("Expected 3 cards at level 1, got %+v", stats.LevelCounts)
	}
}

func TestImportIntoSet(t *testing.T) {
	s := newTestServer(t)
	id := createSet(t, s, "imported")

	code, env := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/import", id),
		map[string]any{"content": "Haus\thouse\nBaum\ttree\n"})
	if code != http.StatusOK {
		t.Fatalf("Import failed with %d: %s", code, env.Message)
	}
	var res struct {
		Added int `json:"added"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Added != 2 {
		t.Errorf("Expected 2 cards added, got %d", res.Added)
	}

	t.Run("re-import adds nothing", func(t *testing.T) {
		_, env := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/import", id),
			map[string]any{"content": "Haus\thouse\n Vogel\tbird\n"})
		if err := json.Unmarshal(env.Data, &res); err != nil {
			t.Fatal(err)
		}
		if res.Added != 1 {
			t.Errorf("Expected only the new card to be added, got %d", res.Added)
		}
	})

	t.Run("unparseable content is 400", func(t *testing.T) {
		code, _ := do(t, s, http.MethodPost, fmt.Sprintf("/api/sets/%d/import", id),
			map[string]any{"content": "no separators here"})
		if code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})
}

func TestCreateSetWithContent(t *testing.T) {
	s := newTestServer(t)

	code, env := do(t, s, http.MethodPost, "/api/sets", map[string]any{
		"name":            "inline",
		"content":         "Haus,house;Baum,tree",
		"card_separator":  ";",
		"field_separator": ",",
	})
	if code != http.StatusCreated {
		t.Fatalf("Create failed with %d: %s", code, env.Message)
	}

	var set struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &set); err != nil {
		t.Fatal(err)
	}
	_, env = do(t, s, http.MethodGet, fmt.Sprintf("/api/sets/%d/cards", set.ID), nil)
	var cards []struct {
		Front string `json:"front"`
	}
	if err := json.Unmarshal(env.Data, &cards); err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 {
		t.Errorf("Expected 2 cards, got %d", len(cards))
	}
}

func TestSources(t *testing.T) {
	s := newTestServer(t)

	code, env := do(t, s, http.MethodPost, "/api/sources",
		map[string]any{"path": "https://github.com/alice/cards.git"})
	if code != http.StatusCreated {
		t.Fatalf("Add source failed with %d: %s", code, env.Message)
	}
	var src struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(env.Data, &src); err != nil {
		t.Fatal(err)
	}
	if src.Type != "git" {
		t.Errorf("Expected git source type, got %q", src.Type)
	}

	code, env = do(t, s, http.MethodGet, "/api/sources", nil)
	if code != http.StatusOK {
		t.Fatalf("List sources failed with %d", code)
	}
	var sources []struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(env.Data, &sources); err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 {
		t.Fatalf("Expected 1 source, got %d", len(sources))
	}

	code, _ = do(t, s, http.MethodDelete, fmt.Sprintf("/api/sources/%d", src.ID), nil)
	if code != http.StatusOK {
		t.Errorf("Delete source failed with %d", code)
	}
}
