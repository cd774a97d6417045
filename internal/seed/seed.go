// Package seed loads reference content (prompt templates, technology
// analyses and sector profiles) from YAML and writes it to storage.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"futureslab/internal/prompt"
	"futureslab/internal/workshop"
)

// File is the layout of a reference seed file.
type File struct {
	Prompts      []workshop.PromptTemplate     `yaml:"prompts"`
	Technologies []workshop.TechnologyAnalysis `yaml:"technologies"`
	Sectors      []workshop.SectorProfile      `yaml:"sectors"`
}

// Writer upserts reference rows.
type Writer interface {
	UpsertPromptTemplates(ctx context.Context, rows []workshop.PromptTemplate) error
	UpsertTechnologyAnalyses(ctx context.Context, rows []workshop.TechnologyAnalysis) error
	UpsertSectorProfiles(ctx context.Context, rows []workshop.SectorProfile) error
}

// Parse decodes and validates a seed file.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate rejects rows that could never be used: prompts with unknown ids
// or a step name that disagrees with the id, unknown technologies and
// nameless sectors. All problems are reported together.
func (f File) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, p := range f.Prompts {
		switch {
		case strings.TrimSpace(p.Text) == "":
			errs = append(errs, fmt.Errorf("prompts[%d] %s: empty prompt_text", i, p.PromptID))
		case seen[p.PromptID]:
			errs = append(errs, fmt.Errorf("prompts[%d]: duplicate prompt_id %s", i, p.PromptID))
		}
		seen[p.PromptID] = true

		id, err := prompt.TemplateID(p.StepName)
		if err != nil {
			errs = append(errs, fmt.Errorf("prompts[%d]: %w", i, err))
			continue
		}
		if id != p.PromptID {
			errs = append(errs, fmt.Errorf("prompts[%d]: step %s uses prompt_id %s, got %s", i, p.StepName, id, p.PromptID))
		}
	}
	for i, t := range f.Technologies {
		if !t.TechnologyName.Valid() {
			errs = append(errs, fmt.Errorf("technologies[%d]: unknown technology %q", i, t.TechnologyName))
		}
	}
	for i, s := range f.Sectors {
		if strings.TrimSpace(s.SectorName) == "" {
			errs = append(errs, fmt.Errorf("sectors[%d]: missing sector_name", i))
		}
	}
	return errors.Join(errs...)
}

// Apply writes every section of f that has rows.
func Apply(ctx context.Context, w Writer, f File, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(f.Prompts) > 0 {
		if err := w.UpsertPromptTemplates(ctx, f.Prompts); err != nil {
			return fmt.Errorf("seeding prompts: %w", err)
		}
		logger.Info("seeded prompts", zap.Int("rows", len(f.Prompts)))
	}
	if len(f.Technologies) > 0 {
		if err := w.UpsertTechnologyAnalyses(ctx, f.Technologies); err != nil {
			return fmt.Errorf("seeding technology analyses: %w", err)
		}
		logger.Info("seeded technology analyses", zap.Int("rows", len(f.Technologies)))
	}
	if len(f.Sectors) > 0 {
		if err := w.UpsertSectorProfiles(ctx, f.Sectors); err != nil {
			return fmt.Errorf("seeding sector profiles: %w", err)
		}
		logger.Info("seeded sector profiles", zap.Int("rows", len(f.Sectors)))
	}
	return nil
}
