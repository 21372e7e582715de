package lookup

import (
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"macfinder/infra/assets"
	"macfinder/pkg/render"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultPageTitle      = "MAC Address Search"
	indexTemplate         = "index.html.tmpl"
)

// HTTPConfig controls the HTTP surface of the lookup service.
type HTTPConfig struct {
	PageTitle      string
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Middleware wraps every route after the request id is assigned; typically the
	// telemetry middleware.
	Middleware func(http.Handler) http.Handler
}

// API wires the lookup service, the page renderer and configuration for HTTP handlers.
type API struct {
	service *Service
	config  HTTPConfig
	logger  zerolog.Logger
	index   []byte
	static  fs.FS
}

// New renders the search page once and applies defaults to cfg.
func New(service *Service, renderer *render.Engine, cfg HTTPConfig, logger zerolog.Logger) (*API, error) {
	if service == nil {
		return nil, errors.New("service is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}

	if cfg.PageTitle == "" {
		cfg.PageTitle = defaultPageTitle
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	index, err := renderer.Render(indexTemplate, map[string]any{
		"Title":      cfg.PageTitle,
		"SearchPath": "search_mac",
	})
	if err != nil {
		return nil, err
	}

	return &API{
		service: service,
		config:  cfg,
		logger:  logger,
		index:   index,
		static:  assets.Files,
	}, nil
}

// Routes constructs the chi router containing the page, the lookup endpoints and the
// operational endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if a.config.Middleware != nil {
		r.Use(a.config.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.config.RequestTimeout))

	if len(a.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         int((10 * time.Minute).Seconds()),
		}))
	}

	r.Get("/", a.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", staticHandler(a.static)))

	r.Get("/search_mac", a.handleSearch)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/macs/{mac}", a.handleSearchPath)
	})

	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r, nil
}

// staticHandler serves the page assets. Requests carrying a content version are cached
// for a year since a changed file gets a new version.
func staticHandler(fsys fs.FS) http.Handler {
	files := http.FileServer(http.FS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(render.VersionParam) != "" {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		files.ServeHTTP(w, r)
	})
}
