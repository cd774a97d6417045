package tui

import (
	"futureslab/internal/session"
	"futureslab/internal/workshop"
)

// sessionStartedMsg carries a freshly created or joined session and its
// change stream.
type sessionStartedMsg struct {
	snapshot session.Snapshot
	role     workshop.Role
	events   <-chan workshop.Event
}

// eventMsg is one change notification read from the stream.
type eventMsg struct {
	event workshop.Event
}

// streamClosedMsg reports that the change stream ended.
type streamClosedMsg struct{}

// stepDoneMsg reports a finished moderator action: an optional generated
// output followed by an advance.
type stepDoneMsg struct {
	step      workshop.Step
	output    string
	content   string
	persisted bool
}

// insightSavedMsg reports a stored insight from a viewer.
type insightSavedMsg struct{}

// errMsg carries a failed action back to the screen.
type errMsg struct {
	err error
}

// subscribeFailedMsg reports a session that was created but could not be
// followed. Retrying reuses it.
type subscribeFailedMsg struct {
	session workshop.Session
	err     error
}
