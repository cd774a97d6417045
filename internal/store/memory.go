package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"futureslab/internal/workshop"
)

// Memory is an in-process gateway with the same semantics as Supabase plus
// its own change notifications. It backs `serve --memory` and tests.
type Memory struct {
	mu           sync.Mutex
	now          func() time.Time
	sessions     map[string]workshop.Session
	inputs       map[string]workshop.StepInputs
	outputs      []workshop.StepOutput
	insights     []workshop.Insight
	prompts      map[string]workshop.PromptTemplate
	technologies map[workshop.Technology]workshop.TechnologyAnalysis
	sectors      map[string]workshop.SectorProfile
	subscribers  map[string]map[*subscriber]struct{}
}

// NewMemory returns an empty gateway.
func NewMemory() *Memory {
	return &Memory{
		now:          time.Now,
		sessions:     map[string]workshop.Session{},
		inputs:       map[string]workshop.StepInputs{},
		prompts:      map[string]workshop.PromptTemplate{},
		technologies: map[workshop.Technology]workshop.TechnologyAnalysis{},
		sectors:      map[string]workshop.SectorProfile{},
		subscribers:  map[string]map[*subscriber]struct{}{},
	}
}

func (m *Memory) CreateSession(ctx context.Context, code string, lang workshop.Language, step workshop.Step) (workshop.Session, error) {
	if err := ctx.Err(); err != nil {
		return workshop.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.Code == code {
			return workshop.Session{}, fmt.Errorf("insert session: duplicate code %q", code)
		}
	}
	sess := workshop.Session{
		ID:          uuid.NewString(),
		Code:        code,
		CurrentStep: step,
		Language:    lang,
		Status:      workshop.StatusActive,
		CreatedAt:   m.now().UTC(),
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *Memory) SessionByCode(ctx context.Context, code string) (workshop.Session, error) {
	if err := ctx.Err(); err != nil {
		return workshop.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.Code == code {
			return sess, nil
		}
	}
	return workshop.Session{}, fmt.Errorf("code %q: %w", code, workshop.ErrSessionNotFound)
}

func (m *Memory) SessionByID(ctx context.Context, id string) (workshop.Session, error) {
	if err := ctx.Err(); err != nil {
		return workshop.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return workshop.Session{}, fmt.Errorf("id %q: %w", id, workshop.ErrSessionNotFound)
	}
	return sess, nil
}

func (m *Memory) UpdateStep(ctx context.Context, id string, from, to workshop.Step, status workshop.Status) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok || sess.CurrentStep != from {
		m.mu.Unlock()
		return false, nil
	}
	sess.CurrentStep = to
	sess.Status = status
	m.sessions[id] = sess
	m.publishLocked(id, workshop.StepChanged{SessionID: id, Step: to, Status: status})
	m.mu.Unlock()
	return true, nil
}

func (m *Memory) InputsBySession(ctx context.Context, sessionID string) (workshop.StepInputs, bool, error) {
	if err := ctx.Err(); err != nil {
		return workshop.StepInputs{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.inputs[sessionID]
	return in, ok, nil
}

func (m *Memory) InsertInputs(ctx context.Context, in workshop.StepInputs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inputs[in.SessionID]; ok {
		return fmt.Errorf("insert inputs: session %s already has inputs", in.SessionID)
	}
	in.ID = uuid.NewString()
	m.inputs[in.SessionID] = in
	return nil
}

func (m *Memory) UpdateInputs(ctx context.Context, in workshop.StepInputs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.inputs[in.SessionID]
	if !ok {
		return fmt.Errorf("update inputs: no inputs for session %s: %w", in.SessionID, workshop.ErrSessionNotFound)
	}
	existing.Resources = in.Resources
	existing.System = in.System
	existing.DominantValue = in.DominantValue
	existing.Technology1 = in.Technology1
	existing.Technology2 = in.Technology2
	m.inputs[in.SessionID] = existing
	return nil
}

func (m *Memory) UpdateIntervention(ctx context.Context, sessionID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.inputs[sessionID]
	if !ok {
		return fmt.Errorf("update intervention: no inputs for session %s: %w", sessionID, workshop.ErrSessionNotFound)
	}
	existing.Intervention = text
	m.inputs[sessionID] = existing
	return nil
}

func (m *Memory) InsertOutput(ctx context.Context, out workshop.StepOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out.ID = uuid.NewString()
	out.CreatedAt = m.now().UTC()
	m.outputs = append(m.outputs, out)
	m.publishLocked(out.SessionID, workshop.OutputChanged{SessionID: out.SessionID, StepName: out.StepName, Content: out.Content})
	return nil
}

func (m *Memory) OutputsBySession(ctx context.Context, sessionID string) ([]workshop.StepOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []workshop.StepOutput
	for _, out := range m.outputs {
		if out.SessionID == sessionID {
			rows = append(rows, out)
		}
	}
	return rows, nil
}

func (m *Memory) InsertInsight(ctx context.Context, in workshop.Insight) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in.ID = uuid.NewString()
	in.CreatedAt = m.now().UTC()
	m.insights = append(m.insights, in)
	return nil
}

// Insights returns the insights recorded for a session.
func (m *Memory) Insights(sessionID string) []workshop.Insight {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []workshop.Insight
	for _, in := range m.insights {
		if in.SessionID == sessionID {
			rows = append(rows, in)
		}
	}
	return rows
}

func (m *Memory) PromptTemplates(ctx context.Context) ([]workshop.PromptTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]workshop.PromptTemplate, 0, len(m.prompts))
	for _, p := range m.prompts {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PromptID < rows[j].PromptID })
	return rows, nil
}

func (m *Memory) TechnologyAnalyses(ctx context.Context, names []workshop.Technology) ([]workshop.TechnologyAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []workshop.TechnologyAnalysis
	for _, n := range names {
		if a, ok := m.technologies[n]; ok {
			rows = append(rows, a)
		}
	}
	return rows, nil
}

func (m *Memory) SectorProfile(ctx context.Context, name string) (workshop.SectorProfile, error) {
	if err := ctx.Err(); err != nil {
		return workshop.SectorProfile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.sectors[name]
	if !ok {
		return workshop.SectorProfile{}, fmt.Errorf("%w: no sector profile %q", workshop.ErrReferenceDataUnavailable, name)
	}
	return p, nil
}

func (m *Memory) UpsertPromptTemplates(ctx context.Context, rows []workshop.PromptTemplate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.prompts[r.PromptID] = r
	}
	return nil
}

func (m *Memory) UpsertTechnologyAnalyses(ctx context.Context, rows []workshop.TechnologyAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.technologies[r.TechnologyName] = r
	}
	return nil
}

func (m *Memory) UpsertSectorProfiles(ctx context.Context, rows []workshop.SectorProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.sectors[r.SectorName] = r
	}
	return nil
}

// Subscribe delivers every step and output change of a session until ctx is
// done, then closes the channel. Events are queued per subscriber so a slow
// reader never blocks writers and nothing is dropped.
func (m *Memory) Subscribe(ctx context.Context, sessionID string) (<-chan workshop.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscriber{wake: make(chan struct{}, 1)}
	out := make(chan workshop.Event)

	m.mu.Lock()
	if m.subscribers[sessionID] == nil {
		m.subscribers[sessionID] = map[*subscriber]struct{}{}
	}
	m.subscribers[sessionID][sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.subscribers[sessionID], sub)
			if len(m.subscribers[sessionID]) == 0 {
				delete(m.subscribers, sessionID)
			}
			m.mu.Unlock()
		}()
		sub.run(ctx, out)
	}()
	return out, nil
}

func (m *Memory) publishLocked(sessionID string, ev workshop.Event) {
	for sub := range m.subscribers[sessionID] {
		sub.push(ev)
	}
}

type subscriber struct {
	mu    sync.Mutex
	queue []workshop.Event
	wake  chan struct{}
}

func (s *subscriber) push(ev workshop.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run(ctx context.Context, out chan<- workshop.Event) {
	defer close(out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		}
	}
}
