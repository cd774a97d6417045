package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futureslab/internal/workshop"
)

const fullTemplate = `Archetype {{ARCHETYPE}} valued by {{DOMINANT_VALUE}}.
Technologies: {{TECHNOLOGY_1}} and {{TECHNOLOGY_2}}.
{{TECH_1_ANALYSIS}} / {{TECH_2_ANALYSIS}}
Sector: {{SECTOR_PROFILE}}
Axes: {{RESOURCES}} {{SYSTEM}}
Intervention: {{INTERVENTION}}
Before: {{PREVIOUS_SCENARIO}}
Write in {{LANGUAGE}}. Again: {{ARCHETYPE}}`

func TestTemplateIDTable(t *testing.T) {
	want := map[string]string{
		"seed":                   "b1",
		"distant_future":         "b2",
		"assessment":             "b3",
		"revision":               "b3_revision",
		"not_so_distant":         "b5",
		"near_future":            "b6",
		"backcasting_assessment": "b7",
		"intervention":           "b8",
	}
	for step, id := range want {
		got, err := TemplateID(step)
		require.NoError(t, err)
		assert.Equal(t, id, got, step)
	}

	_, err := TemplateID("unknown_step")
	assert.True(t, errors.Is(err, workshop.ErrTemplateNotFound))
	assert.ErrorIs(t, err, ErrStepNotMapped)
}

func TestStepsOrderedByTemplate(t *testing.T) {
	steps := Steps()
	require.Len(t, steps, 8)
	assert.Equal(t, "seed", steps[0])
	assert.Equal(t, "intervention", steps[len(steps)-1])
}

func TestFillReplacesEveryOccurrence(t *testing.T) {
	out := Fill(fullTemplate, Values{
		Archetype:        "Continued Growth",
		DominantValue:    "individualism",
		Technology1:      "Quantum",
		Technology2:      "AGI",
		Tech1Analysis:    "qubits",
		Tech2Analysis:    "agents",
		SectorProfile:    "grid operator",
		Resources:        "abundance",
		System:           "stable",
		Intervention:     "",
		PreviousScenario: "",
		Language:         "English",
	})

	assert.Equal(t, 2, strings.Count(out, "Continued Growth"))
	assert.Contains(t, out, "Quantum and AGI")
	assert.Contains(t, out, "Intervention: \n")
	assert.NotContains(t, out, "{{")
}

func TestFillWithNoValuesLeavesNoTokens(t *testing.T) {
	out := Fill(fullTemplate, Values{})
	assert.NotContains(t, out, "{{")
	assert.True(t, strings.HasPrefix(out, "Archetype  valued by ."))
}

func TestFillDoesNotRescanSubstitutedText(t *testing.T) {
	out := Fill("{{INTERVENTION}}", Values{Intervention: "keep {{ARCHETYPE}} literal", Archetype: "Collapse"})
	assert.Equal(t, "keep {{ARCHETYPE}} literal", out)
}

func TestAssembleIsDeterministic(t *testing.T) {
	templates := []workshop.PromptTemplate{
		{PromptID: "b1", StepName: "seed", Text: "seed"},
		{PromptID: "b2", StepName: "distant_future", Text: fullTemplate},
	}
	v := Values{Archetype: "Discipline", Technology1: "Bio tech", Technology2: "Robotics"}

	first, err := Assemble("distant_future", templates, v)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Assemble("distant_future", templates, v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAssembleMissingTemplate(t *testing.T) {
	templates := []workshop.PromptTemplate{{PromptID: "b2", Text: "x"}}

	_, err := Assemble("near_future", templates, Values{})
	assert.ErrorIs(t, err, workshop.ErrTemplateNotFound)

	_, err = Assemble("unknown_step", templates, Values{})
	assert.ErrorIs(t, err, workshop.ErrTemplateNotFound)

	blank := []workshop.PromptTemplate{{PromptID: "b6", Text: ""}}
	_, err = Assemble("near_future", blank, Values{})
	assert.ErrorIs(t, err, workshop.ErrTemplateNotFound)
}
