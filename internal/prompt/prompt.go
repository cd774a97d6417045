// Package prompt resolves a generation step into the exact text sent to the
// model. Everything here is pure.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"futureslab/internal/workshop"
)

// templateIDs maps a generation step onto its prompt identifier.
var templateIDs = map[string]string{
	workshop.OutputSeed:                  "b1",
	workshop.OutputDistantFuture:         "b2",
	workshop.OutputAssessment:            "b3",
	workshop.OutputRevision:              "b3_revision",
	workshop.OutputNotSoDistant:          "b5",
	workshop.OutputNearFuture:            "b6",
	workshop.OutputBackcastingAssessment: "b7",
	workshop.OutputIntervention:          "b8",
}

// Placeholder tokens understood by Fill.
const (
	TokenArchetype        = "{{ARCHETYPE}}"
	TokenDominantValue    = "{{DOMINANT_VALUE}}"
	TokenTechnology1      = "{{TECHNOLOGY_1}}"
	TokenTechnology2      = "{{TECHNOLOGY_2}}"
	TokenTech1Analysis    = "{{TECH_1_ANALYSIS}}"
	TokenTech2Analysis    = "{{TECH_2_ANALYSIS}}"
	TokenSectorProfile    = "{{SECTOR_PROFILE}}"
	TokenResources        = "{{RESOURCES}}"
	TokenSystem           = "{{SYSTEM}}"
	TokenIntervention     = "{{INTERVENTION}}"
	TokenPreviousScenario = "{{PREVIOUS_SCENARIO}}"
	TokenLanguage         = "{{LANGUAGE}}"
)

// Values are the substitutions for one prompt. Any empty field becomes an
// empty string in the output.
type Values struct {
	Archetype        string
	DominantValue    string
	Technology1      string
	Technology2      string
	Tech1Analysis    string
	Tech2Analysis    string
	SectorProfile    string
	Resources        string
	System           string
	Intervention     string
	PreviousScenario string
	Language         string
}

// ErrStepNotMapped is returned for a generation step with no prompt
// identifier. It matches workshop.ErrTemplateNotFound.
var ErrStepNotMapped = fmt.Errorf("step not mapped: %w", workshop.ErrTemplateNotFound)

// TemplateID returns the prompt identifier for a generation step.
func TemplateID(step string) (string, error) {
	id, ok := templateIDs[step]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrStepNotMapped, step)
	}
	return id, nil
}

// Steps returns the generation steps that have a prompt, sorted by template id.
func Steps() []string {
	steps := make([]string, 0, len(templateIDs))
	for step := range templateIDs {
		steps = append(steps, step)
	}
	sort.Slice(steps, func(i, j int) bool {
		return templateIDs[steps[i]] < templateIDs[steps[j]]
	})
	return steps
}

// Fill replaces every occurrence of every token in one pass. Substituted
// text is never rescanned, so content that happens to contain a token is
// left alone.
func Fill(template string, v Values) string {
	r := strings.NewReplacer(
		TokenArchetype, v.Archetype,
		TokenDominantValue, v.DominantValue,
		TokenTechnology1, v.Technology1,
		TokenTechnology2, v.Technology2,
		TokenTech1Analysis, v.Tech1Analysis,
		TokenTech2Analysis, v.Tech2Analysis,
		TokenSectorProfile, v.SectorProfile,
		TokenResources, v.Resources,
		TokenSystem, v.System,
		TokenIntervention, v.Intervention,
		TokenPreviousScenario, v.PreviousScenario,
		TokenLanguage, v.Language,
	)
	return r.Replace(template)
}

// Assemble finds the template for step among templates and fills it.
func Assemble(step string, templates []workshop.PromptTemplate, v Values) (string, error) {
	id, err := TemplateID(step)
	if err != nil {
		return "", err
	}
	for _, t := range templates {
		if t.PromptID == id && t.Text != "" {
			return Fill(t.Text, v), nil
		}
	}
	return "", fmt.Errorf("prompt %s for step %q: %w", id, step, workshop.ErrTemplateNotFound)
}
