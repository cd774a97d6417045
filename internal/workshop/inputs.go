package workshop

import "strings"

// Resources is the resource-availability axis.
type Resources string

const (
	ResourcesAbundance Resources = "abundance"
	ResourcesScarce    Resources = "scarce"
)

// Valid reports whether r is one of the two axis values.
func (r Resources) Valid() bool {
	return r == ResourcesAbundance || r == ResourcesScarce
}

// System is the system-stability axis.
type System string

const (
	SystemStable     System = "stable"
	SystemBreaksDown System = "breaks_down"
)

// Valid reports whether s is one of the two axis values.
func (s System) Valid() bool {
	return s == SystemStable || s == SystemBreaksDown
}

// DominantValue is the dominant-value axis.
type DominantValue string

const (
	ValueCollectivism  DominantValue = "collectivism"
	ValueIndividualism DominantValue = "individualism"
)

// Valid reports whether v is one of the two axis values.
func (v DominantValue) Valid() bool {
	return v == ValueCollectivism || v == ValueIndividualism
}

// Technology is one of the cards on the selection table.
type Technology string

const (
	TechQuantum  Technology = "Quantum"
	TechNeuro    Technology = "Neuro tech"
	TechBio      Technology = "Bio tech"
	TechClimate  Technology = "Climate tech"
	TechAGI      Technology = "AGI"
	TechRobotics Technology = "Robotics"
)

// Technologies lists the cards in display order.
var Technologies = []Technology{
	TechQuantum,
	TechNeuro,
	TechBio,
	TechClimate,
	TechAGI,
	TechRobotics,
}

// Valid reports whether t is a known card.
func (t Technology) Valid() bool {
	for _, known := range Technologies {
		if t == known {
			return true
		}
	}
	return false
}

// StepInputs matches the 'session_inputs' table in Supabase.
type StepInputs struct {
	ID            string        `json:"id,omitempty"`
	SessionID     string        `json:"session_id"`
	Resources     Resources     `json:"resources"`
	System        System        `json:"system"`
	DominantValue DominantValue `json:"dominant_value"`
	Technology1   Technology    `json:"technology_1"`
	Technology2   Technology    `json:"technology_2"`
	Intervention  string        `json:"intervention,omitempty"`
}

// Missing names the choices that still have to be made before generation.
func (in StepInputs) Missing() []string {
	var missing []string
	if !in.Resources.Valid() {
		missing = append(missing, "resources")
	}
	if !in.System.Valid() {
		missing = append(missing, "system")
	}
	if !in.DominantValue.Valid() {
		missing = append(missing, "dominant_value")
	}
	if !in.Technology1.Valid() {
		missing = append(missing, "technology_1")
	}
	if !in.Technology2.Valid() || in.Technology2 == in.Technology1 {
		missing = append(missing, "technology_2")
	}
	return missing
}

// Complete reports whether every axis is chosen and two distinct
// technologies are selected.
func (in StepInputs) Complete() bool {
	return len(in.Missing()) == 0
}

// MissingString joins Missing for error messages.
func (in StepInputs) MissingString() string {
	return strings.Join(in.Missing(), ", ")
}
