// Package pipeline turns a generation request into a persisted scenario:
// reference lookup, archetype, prompt assembly, generation, write-back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"futureslab/internal/archetype"
	"futureslab/internal/generate"
	"futureslab/internal/prompt"
	"futureslab/internal/workshop"
)

// DefaultSector is the organization whose profile frames every scenario
// unless a request names another.
const DefaultSector = "Alliander"

// Reference reads the static reference tables.
type Reference interface {
	PromptTemplates(ctx context.Context) ([]workshop.PromptTemplate, error)
	TechnologyAnalyses(ctx context.Context, names []workshop.Technology) ([]workshop.TechnologyAnalysis, error)
	SectorProfile(ctx context.Context, name string) (workshop.SectorProfile, error)
}

// Outputs persists generated narratives.
type Outputs interface {
	InsertOutput(ctx context.Context, out workshop.StepOutput) error
}

// Request asks for the narrative of one generation step.
type Request struct {
	SessionID        string
	Step             string
	Inputs           workshop.StepInputs
	Sector           string
	Intervention     string
	PreviousScenario string
	Language         workshop.Language
}

// Result is what the caller shows. Persisted is false when the write-back
// failed; the content is still valid.
type Result struct {
	Content   string
	Archetype archetype.Archetype
	Step      string
	Persisted bool
}

// Pipeline orchestrates one generation per Run call.
type Pipeline struct {
	ref     Reference
	outputs Outputs
	invoker generate.Invoker
	logger  *zap.Logger
	sector  string
	dedupe  bool
	timeout time.Duration
	flight  singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDefaultSector overrides DefaultSector.
func WithDefaultSector(name string) Option {
	return func(p *Pipeline) {
		if name != "" {
			p.sector = name
		}
	}
}

// WithDeduplication makes concurrent Runs for the same session and step
// share a single generation.
func WithDeduplication(on bool) Option {
	return func(p *Pipeline) { p.dedupe = on }
}

// WithFlightTimeout bounds a shared generation. A shared generation does
// not stop when one of its callers goes away, so it needs its own limit.
func WithFlightTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New builds a pipeline.
func New(ref Reference, outputs Outputs, invoker generate.Invoker, opts ...Option) *Pipeline {
	p := &Pipeline{
		ref:     ref,
		outputs: outputs,
		invoker: invoker,
		logger:  zap.NewNop(),
		sector:  DefaultSector,
		timeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run generates and persists the narrative for req.Step.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if _, err := prompt.TemplateID(req.Step); err != nil {
		return Result{}, err
	}
	if req.SessionID == "" {
		return Result{}, fmt.Errorf("%w: session_id", workshop.ErrInputsIncomplete)
	}
	if !req.Inputs.Complete() {
		return Result{}, fmt.Errorf("%w: %s", workshop.ErrInputsIncomplete, req.Inputs.MissingString())
	}
	if !p.dedupe {
		return p.run(ctx, req)
	}

	// The flight outlives any single caller; each caller only stops
	// waiting when its own ctx ends.
	key := req.SessionID + "/" + req.Step
	ch := p.flight.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.run(flightCtx, req)
	})
	select {
	case res := <-ch:
		if res.Shared {
			p.logger.Info("duplicate generation request joined in-flight call",
				zap.String("session_id", req.SessionID), zap.String("step", req.Step))
		}
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *Pipeline) run(ctx context.Context, req Request) (Result, error) {
	log := p.logger.With(zap.String("session_id", req.SessionID), zap.String("step", req.Step))

	sector := req.Sector
	if sector == "" {
		sector = p.sector
	}

	ref, err := p.fetchReference(ctx, req.Inputs, sector, log)
	if err != nil {
		return Result{}, err
	}

	arch, _ := archetype.Classify(req.Inputs.Resources, req.Inputs.System)
	intervention := req.Intervention
	if intervention == "" {
		intervention = req.Inputs.Intervention
	}
	lang := req.Language
	if !lang.Valid() {
		lang = workshop.LanguageEnglish
	}

	text, err := prompt.Assemble(req.Step, ref.templates, prompt.Values{
		Archetype:        string(arch),
		DominantValue:    string(req.Inputs.DominantValue),
		Technology1:      string(req.Inputs.Technology1),
		Technology2:      string(req.Inputs.Technology2),
		Tech1Analysis:    ref.tech1,
		Tech2Analysis:    ref.tech2,
		SectorProfile:    ref.sector,
		Resources:        string(req.Inputs.Resources),
		System:           string(req.Inputs.System),
		Intervention:     intervention,
		PreviousScenario: req.PreviousScenario,
		Language:         lang.Name(),
	})
	if err != nil {
		return Result{}, err
	}

	log.Info("calling generation", zap.Int("prompt_len", len(text)), zap.String("archetype", string(arch)))
	content, err := p.invoker.Generate(ctx, text)
	if err != nil {
		if !errors.Is(err, workshop.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %v", workshop.ErrGenerationFailed, err)
		}
		log.Error("generation failed", zap.Error(err))
		return Result{}, err
	}
	log.Info("generated", zap.Int("content_len", len(content)))

	result := Result{Content: content, Archetype: arch, Step: req.Step, Persisted: true}
	out := workshop.StepOutput{SessionID: req.SessionID, StepName: req.Step, Content: content}
	if err := p.outputs.InsertOutput(ctx, out); err != nil {
		log.Error("saving output", zap.Error(fmt.Errorf("%w: %v", workshop.ErrPersistenceFailed, err)))
		result.Persisted = false
	}
	return result, nil
}

type reference struct {
	templates []workshop.PromptTemplate
	tech1     string
	tech2     string
	sector    string
}

// fetchReference loads templates, technology analyses and the sector
// profile concurrently. Only the templates are required.
func (p *Pipeline) fetchReference(ctx context.Context, in workshop.StepInputs, sector string, log *zap.Logger) (reference, error) {
	var ref reference
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		templates, err := p.ref.PromptTemplates(gctx)
		if err != nil {
			return fmt.Errorf("fetch prompts: %w", err)
		}
		ref.templates = templates
		return nil
	})

	g.Go(func() error {
		analyses, err := p.ref.TechnologyAnalyses(gctx, []workshop.Technology{in.Technology1, in.Technology2})
		if err != nil {
			log.Warn("technology analyses unavailable", zap.Error(err))
			return nil
		}
		for _, a := range analyses {
			switch a.TechnologyName {
			case in.Technology1:
				ref.tech1 = a.Content
			case in.Technology2:
				ref.tech2 = a.Content
			}
		}
		if ref.tech1 == "" || ref.tech2 == "" {
			log.Warn("technology analysis missing",
				zap.Error(workshop.ErrReferenceDataUnavailable),
				zap.Bool("technology_1", ref.tech1 != ""),
				zap.Bool("technology_2", ref.tech2 != ""))
		}
		return nil
	})

	g.Go(func() error {
		profile, err := p.ref.SectorProfile(gctx, sector)
		if err != nil {
			log.Warn("sector profile unavailable", zap.String("sector", sector), zap.Error(err))
			return nil
		}
		ref.sector = profile.Content
		return nil
	})

	if err := g.Wait(); err != nil {
		return reference{}, err
	}
	return ref, nil
}
