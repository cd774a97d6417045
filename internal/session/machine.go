// Package session is the workshop step state machine. The Machine performs
// transitions against the storage gateway; State and Reduce mirror a session
// locally from the change notifications the gateway fans out.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"futureslab/internal/joincode"
	"futureslab/internal/workshop"
)

// Store is the slice of the storage gateway the machine writes through.
type Store interface {
	CreateSession(ctx context.Context, code string, lang workshop.Language, step workshop.Step) (workshop.Session, error)
	SessionByCode(ctx context.Context, code string) (workshop.Session, error)
	UpdateStep(ctx context.Context, id string, from, to workshop.Step, status workshop.Status) (bool, error)
	OutputsBySession(ctx context.Context, sessionID string) ([]workshop.StepOutput, error)
	InputsBySession(ctx context.Context, sessionID string) (workshop.StepInputs, bool, error)
	InsertInputs(ctx context.Context, in workshop.StepInputs) error
	UpdateInputs(ctx context.Context, in workshop.StepInputs) error
	UpdateIntervention(ctx context.Context, sessionID, text string) error
	InsertInsight(ctx context.Context, in workshop.Insight) error
}

// Notifier delivers change notifications for one session until ctx is done.
type Notifier interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan workshop.Event, error)
}

// CodeGenerator produces join codes.
type CodeGenerator interface {
	Generate() (string, error)
}

const maxCodeAttempts = 5

// Machine runs session transitions on behalf of participants.
type Machine struct {
	store    Store
	notifier Notifier
	codes    CodeGenerator
	logger   *zap.Logger
}

// NewMachine wires a machine. A nil logger means no logging.
func NewMachine(store Store, notifier Notifier, codes CodeGenerator, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{store: store, notifier: notifier, codes: codes, logger: logger}
}

// Snapshot is a late joiner's starting view, rebuilt from persisted rows.
type Snapshot struct {
	Session workshop.Session
	Outputs map[string]string
}

// Create starts a session for a moderator who has finished the welcome and
// setup screens, so the row starts at the code display step.
func (m *Machine) Create(ctx context.Context, lang workshop.Language) (workshop.Session, error) {
	if !lang.Valid() {
		lang = workshop.LanguageEnglish
	}
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := m.codes.Generate()
		if err != nil {
			return workshop.Session{}, err
		}
		_, err = m.store.SessionByCode(ctx, code)
		if err == nil {
			m.logger.Debug("join code collision", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}
		if !errors.Is(err, workshop.ErrSessionNotFound) {
			return workshop.Session{}, fmt.Errorf("check join code: %w", err)
		}

		sess, err := m.store.CreateSession(ctx, code, lang, workshop.StepCode)
		if err != nil {
			return workshop.Session{}, err
		}
		m.logger.Info("session created", zap.String("session_id", sess.ID), zap.String("code", sess.Code))
		return sess, nil
	}
	return workshop.Session{}, fmt.Errorf("no free join code after %d attempts", maxCodeAttempts)
}

// Join resolves a typed code, subscribes to changes and snapshots the
// current step and outputs. The subscription opens before the snapshot is
// read so nothing between the two is missed; Reduce ignores stale steps.
func (m *Machine) Join(ctx context.Context, code string) (Snapshot, <-chan workshop.Event, error) {
	sess, err := m.store.SessionByCode(ctx, joincode.Normalize(code))
	if err != nil {
		return Snapshot{}, nil, err
	}

	// On success the subscription lives as long as ctx; any failure below
	// tears it down before returning.
	subCtx, cancel := context.WithCancel(ctx)
	joined := false
	defer func() {
		if !joined {
			cancel()
		}
	}()

	events, err := m.notifier.Subscribe(subCtx, sess.ID)
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("subscribe to session %s: %w", sess.ID, err)
	}

	rows, err := m.store.OutputsBySession(ctx, sess.ID)
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("load outputs: %w", err)
	}
	snap := Snapshot{Session: sess, Outputs: make(map[string]string, len(rows))}
	for _, row := range rows {
		// Rows arrive oldest first; a repeated step keeps the newest.
		snap.Outputs[row.StepName] = row.Content
	}
	m.logger.Info("joined session",
		zap.String("session_id", sess.ID),
		zap.Stringer("step", sess.CurrentStep),
		zap.Int("outputs", len(rows)))
	joined = true
	return snap, events, nil
}

// Subscribe opens the change-notification stream for a session.
func (m *Machine) Subscribe(ctx context.Context, sessionID string) (<-chan workshop.Event, error) {
	return m.notifier.Subscribe(ctx, sessionID)
}

// Advance moves the session one step forward from `from` and returns the
// step it is now on. Viewers and the terminal step are silent no-ops.
func (m *Machine) Advance(ctx context.Context, sessionID string, role workshop.Role, from workshop.Step) (workshop.Step, error) {
	if role != workshop.RoleModerator {
		m.logger.Debug("ignoring advance",
			zap.String("session_id", sessionID),
			zap.String("role", string(role)),
			zap.Error(workshop.ErrUnauthorizedTransition))
		return from, nil
	}
	to, ok := from.Next()
	if !ok {
		return from, nil
	}

	status := workshop.StatusActive
	if to.Terminal() {
		status = workshop.StatusEnded
	}
	applied, err := m.store.UpdateStep(ctx, sessionID, from, to, status)
	if err != nil {
		return from, err
	}
	if !applied {
		m.logger.Warn("session moved underneath advance",
			zap.String("session_id", sessionID), zap.Stringer("from", from))
		return from, nil
	}
	m.logger.Info("advanced", zap.String("session_id", sessionID), zap.Stringer("step", to))
	return to, nil
}

// SaveInputs records the card and axis choices. The first call inserts the
// row; later calls rewrite the choices in place.
func (m *Machine) SaveInputs(ctx context.Context, in workshop.StepInputs) error {
	if !in.Complete() {
		return fmt.Errorf("%w: %s", workshop.ErrInputsIncomplete, in.MissingString())
	}
	_, found, err := m.store.InputsBySession(ctx, in.SessionID)
	if err != nil {
		return err
	}
	if found {
		return m.store.UpdateInputs(ctx, in)
	}
	return m.store.InsertInputs(ctx, in)
}

// SubmitIntervention stores the intervention statement on the inputs row.
func (m *Machine) SubmitIntervention(ctx context.Context, sessionID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("intervention: %w", workshop.ErrEmptyText)
	}
	return m.store.UpdateIntervention(ctx, sessionID, text)
}

// SubmitInsight appends a participant's reflection.
func (m *Machine) SubmitInsight(ctx context.Context, sessionID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("insight: %w", workshop.ErrEmptyText)
	}
	return m.store.InsertInsight(ctx, workshop.Insight{SessionID: sessionID, Insight: text})
}
