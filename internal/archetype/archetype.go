// Package archetype maps the two scenario axes onto the four narrative
// framings used by the prompts.
package archetype

import "futureslab/internal/workshop"

// Archetype is one of four fixed narrative framings.
type Archetype string

const (
	ContinuedGrowth Archetype = "Continued Growth"
	Collapse        Archetype = "Collapse"
	Discipline      Archetype = "Discipline"
	Transformation  Archetype = "Transformation"
)

// All lists the archetypes in axis order.
var All = []Archetype{ContinuedGrowth, Collapse, Discipline, Transformation}

// Classify returns the archetype for the given axes. It returns false when
// either axis is absent; callers treat that as incomplete inputs.
func Classify(resources workshop.Resources, system workshop.System) (Archetype, bool) {
	switch {
	case resources == workshop.ResourcesAbundance && system == workshop.SystemStable:
		return ContinuedGrowth, true
	case resources == workshop.ResourcesScarce && system == workshop.SystemBreaksDown:
		return Collapse, true
	case resources == workshop.ResourcesScarce && system == workshop.SystemStable:
		return Discipline, true
	case resources == workshop.ResourcesAbundance && system == workshop.SystemBreaksDown:
		return Transformation, true
	}
	return "", false
}
