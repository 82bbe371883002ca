package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/retention-registry/internal/console/handler"
	"github.com/xela07ax/retention-registry/internal/infra"
)

type ConsoleServer struct {
	router   *chi.Mux
	logger   *zap.Logger
	cfg      *infra.Config
	gatherer prometheus.Gatherer

	// Обработчики бизнес-доменов
	modelHandler  *handler.ModelHandler  // /retention-models
	policyHandler *handler.PolicyHandler // /retention_policies
}

// NewConsoleServer инициализирует API реестра со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	gatherer prometheus.Gatherer,
	modelH *handler.ModelHandler,
	policyH *handler.PolicyHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		cfg:           cfg,
		gatherer:      gatherer,
		modelHandler:  modelH,
		policyHandler: policyH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. Служебные роуты ---
	r.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		if s.gatherer != nil {
			r.Handle(s.cfg.Metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	})

	// --- 3. API реестра: лимит запросов и идентичность вызывающего ---
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(s.cfg.API.RateLimit, s.cfg.API.RateBurst))
		r.Use(handler.RequireActor(s.cfg.API.ActorHeader))

		r.Mount("/retention-models", s.modelHandler.Routes())
		r.Mount("/retention_policies", s.policyHandler.Routes())
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
