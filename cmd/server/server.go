package server

import (
	"context"
	"net/http"
	"time"

	"example.com/chirp/internal/chirp"
	"example.com/chirp/internal/logger"
	appmw "example.com/chirp/internal/middleware"
	"github.com/didip/tollbooth"
	"github.com/didip/tollbooth_chi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-pkgz/rest"
	"github.com/microcosm-cc/bluemonday"
)

// Options configures the HTTP server.
type Options struct {
	Secret    []byte
	TokenTTL  time.Duration
	RateLimit float64 // write requests per second per client; 0 disables limiting
	Version   string
	Secure    bool // mark cookies Secure, set when serving TLS
}

type Server struct {
	chirp  *chirp.Service
	opts   Options
	policy *bluemonday.Policy
}

var logg = logger.New()

// New creates the server for svc.
func New(svc *chirp.Service, opts Options) *Server {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Version == "" {
		opts.Version = "local"
	}
	return &Server{chirp: svc, opts: opts, policy: bluemonday.StrictPolicy()}
}

// Routes returns the router with every Chirp endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(rest.AppInfo("chirp", "chirp", s.opts.Version), rest.Ping)
	r.Use(appmw.OptionalJWT(s.opts.Secret))

	limit := func(next http.Handler) http.Handler { return next }
	if s.opts.RateLimit > 0 {
		limit = tollbooth_chi.LimitHandler(tollbooth.NewLimiter(s.opts.RateLimit, nil))
	}

	// --- Public pages ---
	r.Get("/", s.publicTimelineHandler)
	r.Get("/search", s.searchHandler)
	r.Post("/logout", s.logoutHandler)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/register", s.registerHandler)
		r.Post("/login", s.loginHandler)
		r.Post("/api/token", s.tokenHandler)
	})

	// --- Endpoints that need a logged-in author ---
	r.Group(func(r chi.Router) {
		r.Use(appmw.JWTAuth(s.opts.Secret), limit)
		r.Post("/", s.createCheepHandler)
		r.Get("/account", s.accountHandler)
		r.Post("/account/delete", s.deleteAccountHandler)
		r.Post("/cheep/delete", s.deleteCheepHandler)
		r.Post("/{author}", s.createCheepHandler)
		r.Post("/{author}/follow", s.followHandler)
		r.Post("/{author}/unfollow", s.unfollowHandler)
	})

	r.Get("/{author}", s.authorTimelineHandler)
	r.Get("/{author}/following", s.followingHandler)
	r.Get("/{author}/followers", s.followersHandler)

	return r
}

// Run serves h on addr until ctx is done, then shuts down gracefully. TLS is
// used when both certFile and keyFile are set.
func Run(ctx context.Context, h http.Handler, addr, certFile, keyFile string) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
