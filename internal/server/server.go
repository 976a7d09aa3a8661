package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jjudge-oj/contestd/config"
	"github.com/jjudge-oj/contestd/internal/db"
	"github.com/jjudge-oj/contestd/internal/handlers"
	"github.com/jjudge-oj/contestd/internal/ingest"
	"github.com/jjudge-oj/contestd/internal/keylock"
	"github.com/jjudge-oj/contestd/internal/mq"
	"github.com/jjudge-oj/contestd/internal/services"
	"github.com/jjudge-oj/contestd/internal/storage"
	"github.com/jjudge-oj/contestd/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Server wraps the HTTP server, its router and the judge-state consumer.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	consumer   *ingest.Consumer
	log        zerolog.Logger
}

// New wires repositories, services and routes from cfg.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{log: log}
	repos, err := s.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, err
	}
	var mirror services.ArchiveMirror
	if objects != nil {
		mirror = objects
		log.Info().Str("backend", cfg.Storage.Backend).Str("bucket", objects.Bucket()).Msg("archive mirror enabled")
	}

	locks := keylock.New()
	contests := services.NewContestService(repos, locks, cfg.ContestCacheTTL, log)
	files := services.NewFileSetService(cfg.UploadDir, cfg.Quota, locks, mirror, log)

	s.mq, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, err
	}
	if s.mq != nil {
		s.consumer = ingest.NewConsumer(s.mq, cfg.MQ.JudgeChannel, contests, log)
	}

	contestHandler := handlers.NewContestHandler(contests, files, filepath.Join(cfg.UploadDir, "tmp"))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		hlog.NewHandler(log),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/contests", func(r chi.Router) {
		handlers.ContestRouter(r, contestHandler, cfg.JWTSecret)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openRepositories(ctx context.Context, cfg config.Config) (services.ContestRepositories, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case "memory":
		mem := store.NewMemory()
		mem.Seed(cfg.Seed)
		s.log.Warn().
			Int("users", len(cfg.Seed.Users)).
			Int("problems", len(cfg.Seed.Problems)).
			Msg("using in-memory store; state is lost on exit")
		return services.ContestRepositories{
			Contests:  mem.Contests,
			Players:   mem.Players,
			Ranklists: mem.Ranklists,
			Users:     mem.Users,
			Problems:  mem.Problems,
		}, nil
	case "", "postgres":
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return services.ContestRepositories{}, fmt.Errorf("open database: %w", err)
		}
		s.db = dbConn
		return services.ContestRepositories{
			Contests:  store.NewContestRepository(dbConn),
			Players:   store.NewPlayerRepository(dbConn),
			Ranklists: store.NewRanklistRepository(dbConn),
			Users:     store.NewUserRepository(dbConn),
			Problems:  store.NewProblemRepository(dbConn),
		}, nil
	default:
		return services.ContestRepositories{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Consume runs the judge-state consumer until ctx is cancelled. Without a
// configured broker it waits for ctx and returns nil.
func (s *Server) Consume(ctx context.Context) error {
	if s.consumer == nil {
		s.log.Info().Msg("no message queue configured; judge states are accepted over http only")
		<-ctx.Done()
		return nil
	}
	return s.consumer.Run(ctx)
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires and releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
