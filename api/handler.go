package api

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raushankrgupta/virtual-tryon-studio/session"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures the HTTP surface.
type Options struct {
	HumanImagesDir    string
	GarmentImagesDir  string
	UploadDir         string
	KeepUploads       bool
	MaxUploadBytes    int64
	SessionSecret     []byte
	SessionTTL        time.Duration
	TryOnTimeout      time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Server wires the chat and try-on adapters to the web UI and JSON API.
type Server struct {
	chat     utils.TextGenerator
	fitter   utils.GarmentFitter
	sessions *session.Store
	history  utils.HistoryStore
	archive  utils.ResultArchiver
	logger   *zap.Logger
	opts     Options
	page     *template.Template
}

// NewServer builds a server. history and archive may be nil when those features are off.
func NewServer(
	chat utils.TextGenerator,
	fitter utils.GarmentFitter,
	sessions *session.Store,
	history utils.HistoryStore,
	archive utils.ResultArchiver,
	logger *zap.Logger,
	opts Options,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.TryOnTimeout <= 0 {
		opts.TryOnTimeout = 5 * time.Minute
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		chat:     chat,
		fitter:   fitter,
		sessions: sessions,
		history:  history,
		archive:  archive,
		logger:   logger,
		opts:     opts,
		page:     template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")),
	}
}

// Routes returns the router for all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(utils.LatencyMiddleware(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.HealthHandler)
	r.Get("/ready", s.ReadyHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Handle("/samples/human/*", http.StripPrefix("/samples/human/", http.FileServer(http.Dir(s.opts.HumanImagesDir))))
	r.Handle("/samples/garment/*", http.StripPrefix("/samples/garment/", http.FileServer(http.Dir(s.opts.GarmentImagesDir))))

	limiter := s.tryOnLimiter()

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/", s.IndexHandler)
		r.Post("/chat", s.ChatFormHandler)
		r.Post("/chat/reset", s.ChatResetHandler)
		r.With(limiter).Post("/try-on", s.TryOnFormHandler)

		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   []string{"https://*", "http://*"},
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))

			r.Get("/samples", s.SamplesHandler)
			r.Get("/chat", s.TranscriptHandler)
			r.Post("/chat", s.ChatAPIHandler)
			r.With(limiter).Post("/try-on", s.TryOnAPIHandler)
			r.Get("/try-ons", s.HistoryHandler)
		})
	})

	return r
}

// tryOnLimiter caps try-on calls per client IP; each one reaches a GPU-backed service.
func (s *Server) tryOnLimiter() func(http.Handler) http.Handler {
	if s.opts.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.opts.RateLimitRequests,
		s.opts.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			utils.RespondError(w, nil, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
		}),
	)
}

// HealthHandler handles GET /health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyHandler handles GET /ready
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history != nil {
		if err := s.history.Ping(r.Context()); err != nil {
			utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "history store unreachable",
			})
			return
		}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
