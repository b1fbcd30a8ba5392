package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"partyrooms/config"
	"partyrooms/content"
	"partyrooms/game"
	"partyrooms/games/codenames"
	"partyrooms/games/drawing"
	"partyrooms/games/sudoku"
	"partyrooms/games/typing"
	"partyrooms/games/wordchain"
	"partyrooms/games/wordle"
	"partyrooms/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

// CreateServer builds the engine with health, origin filtering and CORS.
// Requests without an Origin header come from non-browser clients and pass.
func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware())
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })

	allowAll := slices.Contains(allowedOrigins, "*")
	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		if origin == "" || allowAll || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}
	if allowAll {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsConfig))

	return r
}

// Factories returns one factory per game kind the server hosts.
func Factories(words content.WordSource, dict content.Dictionary, puzzles content.PuzzleGenerator, rng game.Rand) []game.Factory {
	return []game.Factory{
		codenames.NewFactory(codenames.Deps{Words: words, Rand: rng}),
		drawing.NewFactory(drawing.Deps{Words: words}),
		sudoku.NewFactory(sudoku.Deps{Puzzles: puzzles}),
		typing.NewFactory(typing.Deps{Passages: words}),
		wordchain.NewFactory(wordchain.Deps{Words: words, Dictionary: dict}),
		wordle.NewFactory(wordle.Deps{Words: words, Dictionary: dict}),
	}
}

func newSource() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func run(ctx context.Context, cfg *config.Config) error {
	lg := logger.Component("server")

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var dict content.Dictionary = content.OpenDictionary{}
	if cfg.DictionaryURL != "" {
		dict = content.NewHTTPDictionary(cfg.DictionaryURL, cfg.DictionaryTimeout)
	}
	factories := Factories(b.words, dict, content.NewSudokuGenerator(newSource()), game.NewRand())

	lobby := game.NewLobby(factories, b.store, game.NewSystemClock(), game.NewCodeGenerator(), game.NewTickerCreator())

	g, ctx := errgroup.WithContext(ctx)
	started := make(chan struct{})
	g.Go(func() error {
		lobby.LobbyActor(ctx, started)
		return nil
	})
	<-started

	resumed, err := lobby.Resume(ctx)
	if err != nil {
		lg.Warn().Err(err).Msg("resuming rooms")
	} else if resumed > 0 {
		lg.Info().Int("rooms", resumed).Msg("resumed rooms with pending alarms")
	}

	r := CreateServer(cfg.AllowedOrigins)
	game.NewGameHandler(lobby, game.NewPlayerIdGenerator(), cfg.AllowedOrigins, cfg.PublicURL).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		lg.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.Storage).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		lg.Info().Msg("shutting down, closing rooms")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		select {
		case <-lobby.Done():
		case <-shutdownCtx.Done():
		}
		return nil
	})

	if b.prunable != nil {
		g.Go(func() error {
			pruneLoop(ctx, b.prunable, cfg.StateRetention)
			return nil
		})
	}

	return g.Wait()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogPretty)
	if !cfg.LogPretty {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("bye")
}
