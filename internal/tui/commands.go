package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"futureslab/internal/pipeline"
	"futureslab/internal/session"
	"futureslab/internal/workshop"
)

// generation names what the moderator's confirmation on a step produces and
// which earlier output feeds it.
type generation struct {
	output   string
	previous string
}

var generations = map[workshop.Step]generation{
	workshop.StepCards:         {output: workshop.OutputDistantFuture},
	workshop.StepDistantFuture: {output: workshop.OutputNotSoDistant, previous: workshop.OutputDistantFuture},
	workshop.StepNotSoDistant:  {output: workshop.OutputNearFuture, previous: workshop.OutputNotSoDistant},
	workshop.StepIntervention:  {output: workshop.OutputIntervention, previous: workshop.OutputDistantFuture},
}

// waitForEvent reads exactly one notification; Update re-issues it after
// every eventMsg.
func waitForEvent(events <-chan workshop.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

// createSession creates a session unless created already holds one from an
// earlier attempt, then subscribes to it.
func createSession(ctx context.Context, w Workshop, lang workshop.Language, created workshop.Session) tea.Cmd {
	return func() tea.Msg {
		sess := created
		if sess.ID == "" {
			var err error
			sess, err = w.Create(ctx, lang)
			if err != nil {
				return errMsg{fmt.Errorf("create session: %w", err)}
			}
		}
		events, err := w.Subscribe(ctx, sess.ID)
		if err != nil {
			return subscribeFailedMsg{session: sess, err: fmt.Errorf("subscribe to session %s: %w", sess.Code, err)}
		}
		return sessionStartedMsg{
			snapshot: session.Snapshot{Session: sess, Outputs: map[string]string{}},
			role:     workshop.RoleModerator,
			events:   events,
		}
	}
}

func joinSession(ctx context.Context, w Workshop, code string) tea.Cmd {
	return func() tea.Msg {
		snap, events, err := w.Join(ctx, code)
		if err != nil {
			return errMsg{fmt.Errorf("join %s: %w", code, err)}
		}
		return sessionStartedMsg{snapshot: snap, role: workshop.RoleViewer, events: events}
	}
}

// advance runs the moderator's action for the current step: the step's
// side effect and generation, when it has them, then the transition.
func advance(ctx context.Context, w Workshop, gen Generator, s session.State, text string) tea.Cmd {
	return func() tea.Msg {
		id := s.Session.ID
		done := stepDoneMsg{persisted: true}

		switch s.Step {
		case workshop.StepCards:
			if err := w.SaveInputs(ctx, s.Inputs); err != nil {
				return errMsg{err}
			}
		case workshop.StepIntervention:
			if err := w.SubmitIntervention(ctx, id, text); err != nil {
				return errMsg{err}
			}
			s.Inputs.Intervention = text
		case workshop.StepInsights:
			if err := w.SubmitInsight(ctx, id, text); err != nil {
				return errMsg{err}
			}
		}

		if g, ok := generations[s.Step]; ok {
			res, err := gen.Run(ctx, pipeline.Request{
				SessionID:        id,
				Step:             g.output,
				Inputs:           s.Inputs,
				Intervention:     s.Inputs.Intervention,
				PreviousScenario: s.Outputs[g.previous],
				Language:         s.Language,
			})
			if err != nil {
				return errMsg{fmt.Errorf("generate %s: %w", g.output, err)}
			}
			done.output = g.output
			done.content = res.Content
			done.persisted = res.Persisted
		}

		to, err := w.Advance(ctx, id, s.Role, s.Step)
		if err != nil {
			return errMsg{fmt.Errorf("advance: %w", err)}
		}
		done.step = to
		return done
	}
}

func submitInsight(ctx context.Context, w Workshop, sessionID, text string) tea.Cmd {
	return func() tea.Msg {
		if err := w.SubmitInsight(ctx, sessionID, text); err != nil {
			return errMsg{err}
		}
		return insightSavedMsg{}
	}
}
