package main

import (
	"context"
	"fmt"
	"time"

	"partyrooms/config"
	"partyrooms/content"
	"partyrooms/game"
	"partyrooms/logger"
	"partyrooms/storage"
	"partyrooms/storage/migrations"
)

type pruner interface {
	PruneStates(ctx context.Context, before time.Time) (int64, error)
}

type wordSeeder interface {
	HasWords(ctx context.Context, category string) (bool, error)
	SeedWords(ctx context.Context, category string, words []string) error
}

// backends is what the configured storage and word source resolved to.
type backends struct {
	store game.Store
	words content.WordSource
	// prunable is set when stored states do not expire on their own.
	prunable pruner
	closers  []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	var pg *storage.PostgresStore
	if cfg.Storage == "postgres" || cfg.WordsSource == "postgres" {
		if err := migrations.Migrate(cfg.PostgresURL); err != nil {
			return nil, err
		}
		var err error
		pg, err = storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		b.closers = append(b.closers, pg.Close)
	}

	switch cfg.Storage {
	case "postgres":
		b.store = pg
		b.prunable = pg
	case "redis":
		rs, err := storage.NewRedisStore(ctx, cfg.RedisURL, cfg.StateRetention)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = rs.Close() })
		b.store = rs
	default:
		b.store = storage.NewMemoryStore()
	}

	static, err := content.NewStaticWords(newSource())
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("loading word lists: %w", err)
	}
	b.words = static

	if cfg.WordsSource == "postgres" {
		if err := seedWords(ctx, pg, static); err != nil {
			b.Close()
			return nil, err
		}
		b.words = pg
	}
	return b, nil
}

// seedWords copies the built-in list of every category that dst has no
// words for yet. Categories that already have words are left alone.
func seedWords(ctx context.Context, dst wordSeeder, src *content.StaticWords) error {
	lg := logger.Component("seed")
	for _, category := range src.Categories() {
		has, err := dst.HasWords(ctx, category)
		if err != nil {
			return fmt.Errorf("checking %s words: %w", category, err)
		}
		if has {
			continue
		}
		words := src.List(category)
		if err := dst.SeedWords(ctx, category, words); err != nil {
			return fmt.Errorf("seeding %s words: %w", category, err)
		}
		lg.Info().Str("category", category).Int("words", len(words)).Msg("seeded word list")
	}
	return nil
}

func pruneLoop(ctx context.Context, p pruner, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			prune(ctx, p, now, retention)
		}
	}
}

func prune(ctx context.Context, p pruner, now time.Time, retention time.Duration) {
	lg := logger.Component("prune")
	n, err := p.PruneStates(ctx, now.Add(-retention))
	if err != nil {
		lg.Warn().Err(err).Msg("pruning room states")
		return
	}
	if n > 0 {
		lg.Info().Int64("rooms", n).Msg("pruned idle room states")
	}
}
