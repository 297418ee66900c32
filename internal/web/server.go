package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/metrics"
	"github.com/hpungsan/agenda/internal/timeutil"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// maxFormBytes bounds POST bodies. Forms here are a few fields each.
const maxFormBytes = 64 << 10

// NewServer creates and configures the HTTP server for the planner web UI.
func NewServer(db *sql.DB, cfg *config.Config, clock timeutil.Clock, log zerolog.Logger, version, bind string, port int) *http.Server {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create template sub-FS")
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create static sub-FS")
	}

	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	metrics.Register()

	h := &Handlers{
		db:       db,
		cfg:      cfg,
		clock:    clock,
		renderer: NewRenderer(templateSub, version, log),
		log:      log,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/week", http.StatusFound)
	})
	mux.HandleFunc("GET /week", h.HandleWeek)
	mux.HandleFunc("GET /month", h.HandleMonth)
	mux.HandleFunc("GET /year", h.HandleYear)
	mux.HandleFunc("GET /day", h.HandleDay)

	mux.HandleFunc("GET /events", h.HandleEvents)
	mux.HandleFunc("POST /events", h.HandleEventCreate)
	mux.HandleFunc("DELETE /events/{id}", h.HandleEventDelete)
	mux.HandleFunc("POST /events/{id}/delete", h.HandleEventDelete)

	mux.HandleFunc("GET /categories", h.HandleCategories)
	mux.HandleFunc("POST /categories", h.HandleCategorySave)
	mux.HandleFunc("DELETE /categories/{id}", h.HandleCategoryDelete)
	mux.HandleFunc("POST /categories/{id}/delete", h.HandleCategoryDelete)

	mux.HandleFunc("GET /priorities", h.HandlePriorities)
	mux.HandleFunc("POST /priorities", h.HandlePrioritiesSave)

	mux.HandleFunc("GET /suggest", h.HandleSuggest)
	mux.HandleFunc("POST /suggest/book", h.HandleSuggestBook)

	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	handler := chain(mux,
		recovery(log),
		requestLog(log),
		securityHeaders,
		withBodyLimit(maxFormBytes),
	)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Str("addr", "http://"+srv.Addr).Msg("agenda UI running")

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
