package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/ai"
	"github.com/fdg312/calorie-hub/internal/auth"
	"github.com/fdg312/calorie-hub/internal/billing"
	"github.com/fdg312/calorie-hub/internal/blob"
	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/dbmigrate"
	"github.com/fdg312/calorie-hub/internal/logger"
	"github.com/fdg312/calorie-hub/internal/meals"
	"github.com/fdg312/calorie-hub/internal/storage"
	"github.com/fdg312/calorie-hub/internal/storage/memory"
	"github.com/fdg312/calorie-hub/internal/storage/postgres"
)

// Server is the development backend the calorie client talks to.
type Server struct {
	config         *config.Config
	log            *zap.Logger
	mux            *http.ServeMux
	storage        storage.Storage
	blobs          blob.Store
	ai             ai.Provider
	authMiddleware *auth.Middleware
	http           *http.Server
}

// New wires storage, blob store and AI provider, then registers routes.
func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	s := &Server{
		config: cfg,
		log:    logger.OrNop(log).Named("httpserver"),
		mux:    http.NewServeMux(),
	}

	if err := s.initStorage(); err != nil {
		return nil, err
	}

	blobs, mode, err := blob.NewBlobStore(cfg.Blob, s.log)
	if err != nil {
		s.storage.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}
	s.log.Info("blob store ready", zap.String("mode", mode))
	s.blobs = blobs
	s.ai = ai.NewProvider(cfg)

	s.routes()
	return s, nil
}

// initStorage picks Postgres when a database is configured and falls back
// to memory when it cannot be reached.
func (s *Server) initStorage() error {
	if s.config.DatabaseURL == "" {
		s.log.Info("using in-memory storage")
		s.storage = memory.New()
		return nil
	}

	if s.config.RunMigrationsOnStartup {
		dbURL, source, warning, err := dbmigrate.SelectDatabaseURL(s.config, false)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		if warning != "" {
			s.log.Warn(warning)
		}
		s.log.Info("running migrations", zap.String("source", source))
		if err := dbmigrate.Run("up", dbURL, s.log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := postgres.New(ctx, s.config.DatabaseURL)
	if err != nil {
		s.log.Warn("postgres unavailable, falling back to in-memory storage", zap.Error(err))
		s.storage = memory.New()
		return nil
	}
	s.log.Info("postgres connected")
	s.storage = pg
	return nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.authMiddleware = auth.NewMiddleware(s.config, s.storage, s.log)

	mealsService := meals.NewService(s.config, s.storage, s.blobs, s.ai, s.log)
	s.mux.HandleFunc("GET /api/profile", meals.HandleProfile(mealsService))
	s.mux.HandleFunc("GET /api/summary", meals.HandleSummary(mealsService))
	s.mux.HandleFunc("POST /api/addmeal", meals.HandleAddMeal(mealsService))
	s.mux.HandleFunc("POST /api/aiadd", meals.HandleAIAdd(mealsService))
	s.mux.HandleFunc("DELETE /api/meal/{id}", meals.HandleDeleteMeal(mealsService))
	s.mux.HandleFunc("POST /api/upload", meals.HandleUpload(mealsService))
	s.mux.HandleFunc("GET /api/coach", meals.HandleCoach(mealsService))
	s.mux.HandleFunc("GET /api/analyze_day", meals.HandleAnalyzeDay(mealsService))
	s.mux.HandleFunc("GET /uploads/{key}", meals.HandlePhoto(mealsService))

	billingService := billing.NewService(s.config, s.storage, s.log)
	s.mux.HandleFunc("GET /api/subscribe/status", billing.HandleStatus(billingService))
	s.mux.HandleFunc("POST /api/subscribe/create", billing.HandleCreate(billingService))
	s.mux.HandleFunc("POST /telegram/webhook", billing.HandleWebhook(billingService))
}

// Handler returns the full middleware chain, outermost first:
// CORS, rate limit, Telegram identity, router.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = s.authMiddleware.Resolve(handler)
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("server listening",
		zap.String("addr", "http://localhost"+addr),
		zap.Bool("require_auth", s.config.RequireAuth),
		zap.String("ai_mode", s.config.AIMode),
	)

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Close releases storage.
func (s *Server) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
