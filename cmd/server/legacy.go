package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"example.com/chirp/internal/csvdb"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-pkgz/rest"
)

// LegacyRoutes serves the CSV cheep archive the way the first prototype did.
func LegacyRoutes(db *csvdb.Database[csvdb.Cheep], version string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(rest.AppInfo("chirp-legacy", "chirp", version), rest.Ping)

	r.Get("/cheeps", func(w http.ResponseWriter, r *http.Request) {
		cheeps, err := db.ReadAll()
		if err != nil {
			logg.Error("legacy", "Failed to read archive", err)
			http.Error(w, "failed to read cheeps", http.StatusInternalServerError)
			return
		}
		render.JSON(w, r, cheeps)
	})

	// Expects JSON body: {"limit": n}
	r.Post("/cheeps", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Limit int `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		cheeps, err := db.Read(req.Limit)
		if err != nil {
			logg.Error("legacy", "Failed to read archive", err)
			http.Error(w, "failed to read cheeps", http.StatusInternalServerError)
			return
		}
		render.JSON(w, r, cheeps)
	})

	// Expects JSON body: {"author": "...", "message": "...", "timestamp": unix}
	r.Post("/cheep", func(w http.ResponseWriter, r *http.Request) {
		var c csvdb.Cheep
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(c.Author) == "" {
			http.Error(w, "author is required", http.StatusBadRequest)
			return
		}
		if err := db.Store(c); err != nil {
			if errors.Is(err, csvdb.ErrUnencodable) {
				http.Error(w, "author can't contain commas, quotes or line breaks", http.StatusBadRequest)
				return
			}
			logg.Error("legacy", "Failed to append to archive", err)
			http.Error(w, "failed to store cheep", http.StatusInternalServerError)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, c)
	})

	return r
}
