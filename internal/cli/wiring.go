package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"futureslab/internal/config"
	"futureslab/internal/generate"
	"futureslab/internal/joincode"
	"futureslab/internal/pipeline"
	"futureslab/internal/realtime"
	"futureslab/internal/seed"
	"futureslab/internal/session"
	"futureslab/internal/store"
	"futureslab/seeds"
)

// gateway is everything the commands need from storage.
type gateway interface {
	session.Store
	pipeline.Reference
	pipeline.Outputs
	seed.Writer
}

func openSupabase(cfg config.Config) (*store.Supabase, error) {
	if err := cfg.RequireSupabase(); err != nil {
		return nil, err
	}
	return store.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey)
}

// openMemory returns an in-process gateway preloaded with the embedded
// reference content.
func openMemory(ctx context.Context, logger *zap.Logger) (*store.Memory, error) {
	mem := store.NewMemory()
	f, err := seed.Parse(seeds.Reference)
	if err != nil {
		return nil, err
	}
	if err := seed.Apply(ctx, mem, f, logger); err != nil {
		return nil, err
	}
	return mem, nil
}

func newPipeline(ctx context.Context, cfg config.Config, gw gateway, dedupe bool, logger *zap.Logger) (*pipeline.Pipeline, func() error, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, nil, err
	}
	gemini, err := generate.NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model,
		generate.WithTimeout(cfg.GenerateTimeout),
		generate.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	p := pipeline.New(gw, gw, gemini,
		pipeline.WithLogger(logger),
		pipeline.WithDefaultSector(cfg.Sector),
		pipeline.WithDeduplication(dedupe),
		pipeline.WithFlightTimeout(cfg.GenerateTimeout))
	return p, gemini.Close, nil
}

// newMachine wires the session machine to Supabase and its Realtime feed.
func newMachine(cfg config.Config, logger *zap.Logger) (*session.Machine, *store.Supabase, error) {
	db, err := openSupabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	rt, err := realtime.New(cfg.SupabaseURL, cfg.SupabaseKey, realtime.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	codes, err := joincode.New(cfg.CodePrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("join codes: %w", err)
	}
	return session.NewMachine(db, rt, codes, logger), db, nil
}
