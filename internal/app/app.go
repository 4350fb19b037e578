// internal/app/app.go
//
// Process wiring: builds the store, catalog, stats pipeline, round controller
// and transports from a Config, then serves until the context is cancelled.

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robalobadob/gamedle/assets"
	"github.com/robalobadob/gamedle/internal/catalog"
	"github.com/robalobadob/gamedle/internal/config"
	"github.com/robalobadob/gamedle/internal/database"
	"github.com/robalobadob/gamedle/internal/game"
	"github.com/robalobadob/gamedle/internal/httpserver"
	"github.com/robalobadob/gamedle/internal/round"
	"github.com/robalobadob/gamedle/internal/stats"
	"github.com/robalobadob/gamedle/internal/store"
	"github.com/robalobadob/gamedle/internal/ws"
)

// SetupLogging configures the global zerolog logger.
func SetupLogging(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// App is a fully wired server.
type App struct {
	cfg     *config.Config
	server  *httpserver.Server
	rounds  *round.Controller
	rec     *stats.Recorder
	mem     *store.Memory // nil unless the memory store is used
	closers []func(context.Context) error
}

// Build opens every backend named by cfg. On error, whatever was already
// opened is closed again.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	modes := cfg.Modes
	if len(modes) == 0 {
		modes = game.DefaultModes()
	}
	reg, err := game.NewRegistry(modes)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.Catalog == "sqlite" || cfg.Stats == "sqlite" {
		if db, err = database.Open(cfg.DBPath); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		if err = database.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}

	cat, err := buildCatalog(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	st, err := a.buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sink, board, err := a.buildStats(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	a.rec = stats.NewRecorder(sink, cfg.StatsBuffer)
	a.closers = append(a.closers, func(context.Context) error { a.rec.Close(); return nil })

	a.rounds = round.New(st, cat, reg, cfg.SessionTTL, round.WithDailySalt(cfg.DailySalt))
	a.server = httpserver.New(a.rounds, a.rec, board, httpserver.Options{
		ClientOrigin: cfg.ClientOrigin,
		JWTSecret:    cfg.JWTSecret,
		CookieName:   cfg.CookieName,
		Timeout:      cfg.RequestTimeout,
	})
	a.server.MountWebsocket(ws.New(a.rounds, a.rec, cfg.ClientOrigin))
	return a, nil
}

func buildCatalog(ctx context.Context, cfg *config.Config, db *sql.DB) (catalog.Catalog, error) {
	seed, err := assets.Candidates()
	if err != nil {
		return nil, fmt.Errorf("load embedded games: %w", err)
	}
	if cfg.Catalog == "static" {
		log.Info().Int("games", len(seed)).Msg("static catalog")
		return catalog.NewStatic(seed), nil
	}
	sq := catalog.NewSQLite(db)
	n, err := sq.Seed(ctx, seed)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Info().Int("games", n).Msg("seeded games table")
	}
	return sq, nil
}

func (a *App) buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store != "redis" {
		a.mem = store.NewMemory()
		return a.mem, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("redis session store")
	return store.NewRedis(client, cfg.RedisPrefix), nil
}

func (a *App) buildStats(ctx context.Context, cfg *config.Config, db *sql.DB) (stats.Sink, httpserver.Leaderboard, error) {
	switch cfg.Stats {
	case "sqlite":
		s := stats.NewSQLite(db)
		return s, s, nil
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		m := stats.NewMongo(client, cfg.MongoDB)
		if err := m.EnsureIndexes(pingCtx); err != nil {
			log.Warn().Err(err).Msg("mongo indexes")
		}
		return m, nil, nil
	}
	return stats.Nop{}, nil, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Rounds returns the round controller.
func (a *App) Rounds() *round.Controller { return a.rounds }

// Run serves on cfg.Addr() until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a.mem != nil {
		go a.mem.Run(ctx, a.cfg.ReapInterval)
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting gamedle")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	a.Close(shutdownCtx)
	return err
}

// Close releases backends in reverse order of opening.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
	a.closers = nil
}
