package workshop

// Event is a change notification delivered to a subscribed participant.
// Delivery is at-least-once and the two kinds are not ordered relative to
// each other.
type Event interface {
	sessionID() string
}

// StepChanged carries a new step index from a session-row update.
type StepChanged struct {
	SessionID string
	Step      Step
	Status    Status
}

// OutputChanged carries a generated narrative from an output-row insert or
// update.
type OutputChanged struct {
	SessionID string
	StepName  string
	Content   string
}

func (e StepChanged) sessionID() string   { return e.SessionID }
func (e OutputChanged) sessionID() string { return e.SessionID }

// EventSession returns the session an event belongs to.
func EventSession(e Event) string {
	if e == nil {
		return ""
	}
	return e.sessionID()
}
