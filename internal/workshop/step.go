// Package workshop holds the shared vocabulary of a scenario workshop: the
// step sequence, the participant choices, the rows kept in Supabase and the
// events fanned out to subscribed participants.
package workshop

import "fmt"

// Step is the ordinal position of a session in the fixed workshop sequence.
type Step int

const (
	StepWelcome Step = iota + 1
	StepSetup
	StepCode
	StepCards
	StepDistantFuture
	StepNotSoDistant
	StepNearFuture
	StepIntervention
	StepConsequences
	StepInsights
	StepClosing
)

// FirstStep and LastStep bound the sequence.
const (
	FirstStep = StepWelcome
	LastStep  = StepClosing
)

var stepNames = map[Step]string{
	StepWelcome:       "welcome",
	StepSetup:         "setup",
	StepCode:          "code",
	StepCards:         "cards",
	StepDistantFuture: "distant_future",
	StepNotSoDistant:  "not_so_distant",
	StepNearFuture:    "near_future",
	StepIntervention:  "intervention",
	StepConsequences:  "consequences",
	StepInsights:      "insights",
	StepClosing:       "closing",
}

// Valid reports whether s is inside the sequence.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// Terminal reports whether no transition leaves s.
func (s Step) Terminal() bool {
	return s == LastStep
}

// Next returns the step that follows s. The second return is false for the
// terminal step and for anything outside the sequence.
func (s Step) Next() (Step, bool) {
	if !s.Valid() || s.Terminal() {
		return s, false
	}
	return s + 1, true
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Role is the participant's part in a session. It lives only in client
// memory and is never written to storage.
type Role string

const (
	RoleModerator Role = "moderator"
	RoleViewer    Role = "viewer"
)

// Status is the lifecycle status of a session row.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Language is the configured workshop language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageDutch   Language = "nl"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageDutch
}

// Name returns the human name of the language, used inside prompts.
func (l Language) Name() string {
	switch l {
	case LanguageDutch:
		return "Dutch"
	default:
		return "English"
	}
}
