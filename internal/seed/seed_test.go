package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futureslab/internal/prompt"
	"futureslab/internal/store"
	"futureslab/internal/workshop"
	"futureslab/seeds"
)

func TestEmbeddedReferenceIsComplete(t *testing.T) {
	f, err := Parse(seeds.Reference)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, p := range f.Prompts {
		ids[p.PromptID] = true
	}
	for _, step := range prompt.Steps() {
		id, err := prompt.TemplateID(step)
		require.NoError(t, err)
		assert.True(t, ids[id], "missing template %s for %s", id, step)
	}

	names := map[workshop.Technology]bool{}
	for _, tech := range f.Technologies {
		names[tech.TechnologyName] = true
	}
	for _, tech := range workshop.Technologies {
		assert.True(t, names[tech], "missing analysis for %s", tech)
	}

	require.Len(t, f.Sectors, 1)
	assert.Equal(t, "Alliander", f.Sectors[0].SectorName)
}

func TestParseRejectsBadRows(t *testing.T) {
	data := []byte(`
prompts:
  - prompt_id: b9
    step_name: distant_future
    prompt_text: hi
  - prompt_id: b2
    step_name: nowhere
    prompt_text: hi
  - prompt_id: b5
    step_name: not_so_distant
    prompt_text: "  "
technologies:
  - technology_name: Cold fusion
    content: x
sectors:
  - sector_name: ""
`)
	_, err := Parse(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, workshop.ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "uses prompt_id b2, got b9")
	assert.Contains(t, err.Error(), "empty prompt_text")
	assert.Contains(t, err.Error(), "Cold fusion")
	assert.Contains(t, err.Error(), "missing sector_name")

	_, err = Parse([]byte("prompts: ["))
	assert.Error(t, err)
}

func TestApplyWritesAllSections(t *testing.T) {
	f, err := Parse(seeds.Reference)
	require.NoError(t, err)

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, Apply(ctx, mem, f, nil))
	// Upserts are idempotent.
	require.NoError(t, Apply(ctx, mem, f, nil))

	templates, err := mem.PromptTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, len(f.Prompts))

	analyses, err := mem.TechnologyAnalyses(ctx, []workshop.Technology{workshop.TechQuantum, workshop.TechAGI})
	require.NoError(t, err)
	assert.Len(t, analyses, 2)

	profile, err := mem.SectorProfile(ctx, "Alliander")
	require.NoError(t, err)
	assert.Contains(t, profile.Content, "distribution network operator")
}

type failingWriter struct{ *store.Memory }

func (failingWriter) UpsertTechnologyAnalyses(context.Context, []workshop.TechnologyAnalysis) error {
	return errors.New("permission denied")
}

func TestApplyStopsOnFirstFailure(t *testing.T) {
	f, err := Parse(seeds.Reference)
	require.NoError(t, err)

	w := failingWriter{store.NewMemory()}
	err = Apply(context.Background(), w, f, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seeding technology analyses")
}
