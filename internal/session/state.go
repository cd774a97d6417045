package session

import "futureslab/internal/workshop"

// State is one participant's local view of a session. It is a value: every
// change produces a new State.
type State struct {
	Role     workshop.Role
	Language workshop.Language
	Session  workshop.Session
	Step     workshop.Step
	Inputs   workshop.StepInputs
	Outputs  map[string]string
}

// NewState is the view before any session exists.
func NewState() State {
	return State{
		Language: workshop.LanguageEnglish,
		Step:     workshop.StepWelcome,
		Outputs:  map[string]string{},
	}
}

// FromSnapshot builds the starting view for a participant joining late.
func FromSnapshot(snap Snapshot, role workshop.Role) State {
	s := NewState()
	s.Role = role
	s.Session = snap.Session
	s.Language = snap.Session.Language
	s.Step = snap.Session.CurrentStep
	s.Inputs.SessionID = snap.Session.ID
	for k, v := range snap.Outputs {
		s.Outputs[k] = v
	}
	return s
}

// Reduce applies a change notification. Events for other sessions and
// steps behind the current one are ignored, so redelivered or reordered
// events converge on the same view.
func Reduce(s State, ev workshop.Event) State {
	if s.Session.ID == "" || workshop.EventSession(ev) != s.Session.ID {
		return s
	}
	switch e := ev.(type) {
	case workshop.StepChanged:
		if e.Step.Valid() && e.Step > s.Step {
			s.Step = e.Step
			s.Session.CurrentStep = e.Step
		}
		if e.Status != "" {
			s.Session.Status = e.Status
		}
	case workshop.OutputChanged:
		outputs := make(map[string]string, len(s.Outputs)+1)
		for k, v := range s.Outputs {
			outputs[k] = v
		}
		outputs[e.StepName] = e.Content
		s.Outputs = outputs
	}
	return s
}

// ToggleTechnology applies a card click: a selected card is deselected, a
// new card fills the first free slot, and a third card is ignored.
func ToggleTechnology(in workshop.StepInputs, t workshop.Technology) workshop.StepInputs {
	switch {
	case in.Technology1 == t:
		in.Technology1 = ""
	case in.Technology2 == t:
		in.Technology2 = ""
	case in.Technology1 == "":
		in.Technology1 = t
	case in.Technology2 == "":
		in.Technology2 = t
	}
	return in
}

// Selected lists the selected technologies in slot order.
func Selected(in workshop.StepInputs) []workshop.Technology {
	var out []workshop.Technology
	if in.Technology1 != "" {
		out = append(out, in.Technology1)
	}
	if in.Technology2 != "" {
		out = append(out, in.Technology2)
	}
	return out
}
