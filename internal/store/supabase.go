// Package store is the structured storage gateway: sessions, inputs,
// outputs, insights and the read-only reference tables.
package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"futureslab/internal/workshop"
)

const (
	tableSessions     = "sessions"
	tableInputs       = "session_inputs"
	tableOutputs      = "session_outputs"
	tableInsights     = "session_insights"
	tablePrompts      = "prompts"
	tableTechnologies = "technology_sector_analyses"
	tableSectors      = "sector_profile"
)

// Supabase is the gateway backed by a Supabase project's PostgREST API.
// Change notifications for it come from the realtime package.
type Supabase struct {
	client *supa.Client
}

// NewSupabase connects to the Supabase project at url.
func NewSupabase(url, key string) (*Supabase, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to supabase: %w", err)
	}
	return &Supabase{client: client}, nil
}

type sessionRow struct {
	Code        string            `json:"code"`
	CurrentStep workshop.Step     `json:"current_step"`
	Language    workshop.Language `json:"language"`
	Status      workshop.Status   `json:"status"`
}

// CreateSession inserts a new active session row and returns it.
func (s *Supabase) CreateSession(ctx context.Context, code string, lang workshop.Language, step workshop.Step) (workshop.Session, error) {
	if err := ctx.Err(); err != nil {
		return workshop.Session{}, err
	}
	row := sessionRow{Code: code, CurrentStep: step, Language: lang, Status: workshop.StatusActive}

	var inserted []workshop.Session
	_, err := s.client.From(tableSessions).Insert(row, false, "", "representation", "").ExecuteTo(&inserted)
	if err != nil {
		return workshop.Session{}, fmt.Errorf("insert session: %w", err)
	}
	if len(inserted) == 0 {
		return workshop.Session{}, fmt.Errorf("insert session: no row returned")
	}
	return inserted[0], nil
}

// SessionByCode resolves a join code. The code must already be normalized.
func (s *Supabase) SessionByCode(ctx context.Context, code string) (workshop.Session, error) {
	return s.sessionBy(ctx, "code", code)
}

// SessionByID loads a session row.
func (s *Supabase) SessionByID(ctx context.Context, id string) (workshop.Session, error) {
	return s.sessionBy(ctx, "id", id)
}

func (s *Supabase) sessionBy(ctx context.Context, column, value string) (workshop.Session, error) {
	if err := ctx.Err(); err != nil {
		return workshop.Session{}, err
	}
	var rows []workshop.Session
	_, err := s.client.From(tableSessions).Select("*", "", false).Eq(column, value).Limit(1, "").ExecuteTo(&rows)
	if err != nil {
		return workshop.Session{}, fmt.Errorf("select session by %s: %w", column, err)
	}
	if len(rows) == 0 {
		return workshop.Session{}, fmt.Errorf("%s %q: %w", column, value, workshop.ErrSessionNotFound)
	}
	return rows[0], nil
}

// UpdateStep moves a session from one step to the next. The write only
// applies while the row is still at from; the boolean reports whether it did.
func (s *Supabase) UpdateStep(ctx context.Context, id string, from, to workshop.Step, status workshop.Status) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	patch := map[string]any{"current_step": int(to), "status": string(status)}

	var updated []workshop.Session
	_, err := s.client.From(tableSessions).
		Update(patch, "representation", "").
		Eq("id", id).
		Eq("current_step", strconv.Itoa(int(from))).
		ExecuteTo(&updated)
	if err != nil {
		return false, fmt.Errorf("update session step: %w", err)
	}
	return len(updated) > 0, nil
}

// InputsBySession returns the session's inputs row if one exists.
func (s *Supabase) InputsBySession(ctx context.Context, sessionID string) (workshop.StepInputs, bool, error) {
	if err := ctx.Err(); err != nil {
		return workshop.StepInputs{}, false, err
	}
	var rows []workshop.StepInputs
	_, err := s.client.From(tableInputs).Select("*", "", false).Eq("session_id", sessionID).Limit(1, "").ExecuteTo(&rows)
	if err != nil {
		return workshop.StepInputs{}, false, fmt.Errorf("select inputs: %w", err)
	}
	if len(rows) == 0 {
		return workshop.StepInputs{}, false, nil
	}
	return rows[0], true, nil
}

// InsertInputs creates the inputs row for a session.
func (s *Supabase) InsertInputs(ctx context.Context, in workshop.StepInputs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in.ID = ""
	if _, _, err := s.client.From(tableInputs).Insert(in, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert inputs: %w", err)
	}
	return nil
}

// UpdateInputs rewrites the card and axis choices of an existing row.
func (s *Supabase) UpdateInputs(ctx context.Context, in workshop.StepInputs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch := map[string]any{
		"resources":      in.Resources,
		"system":         in.System,
		"dominant_value": in.DominantValue,
		"technology_1":   in.Technology1,
		"technology_2":   in.Technology2,
	}
	return s.patchInputs(in.SessionID, patch, "update inputs")
}

// UpdateIntervention sets the intervention text in place.
func (s *Supabase) UpdateIntervention(ctx context.Context, sessionID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch := map[string]any{"intervention": text}
	return s.patchInputs(sessionID, patch, "update intervention")
}

// patchInputs updates the session's inputs row and fails when there is none.
func (s *Supabase) patchInputs(sessionID string, patch map[string]any, op string) error {
	var updated []workshop.StepInputs
	_, err := s.client.From(tableInputs).
		Update(patch, "representation", "").
		Eq("session_id", sessionID).
		ExecuteTo(&updated)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(updated) == 0 {
		return fmt.Errorf("%s: no inputs for session %s: %w", op, sessionID, workshop.ErrSessionNotFound)
	}
	return nil
}

type outputRow struct {
	SessionID string `json:"session_id"`
	StepName  string `json:"step_name"`
	Content   string `json:"content"`
}

// InsertOutput appends a generated narrative.
func (s *Supabase) InsertOutput(ctx context.Context, out workshop.StepOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := outputRow{SessionID: out.SessionID, StepName: out.StepName, Content: out.Content}
	if _, _, err := s.client.From(tableOutputs).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert output: %w", err)
	}
	return nil
}

// OutputsBySession returns every output of a session, oldest first.
func (s *Supabase) OutputsBySession(ctx context.Context, sessionID string) ([]workshop.StepOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []workshop.StepOutput
	_, err := s.client.From(tableOutputs).
		Select("id,session_id,step_name,content,created_at", "", false).
		Eq("session_id", sessionID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("select outputs: %w", err)
	}
	return rows, nil
}

type insightRow struct {
	SessionID string `json:"session_id"`
	Insight   string `json:"insight"`
}

// InsertInsight appends a participant's reflection.
func (s *Supabase) InsertInsight(ctx context.Context, in workshop.Insight) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := insightRow{SessionID: in.SessionID, Insight: in.Insight}
	if _, _, err := s.client.From(tableInsights).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

// PromptTemplates returns every prompt template.
func (s *Supabase) PromptTemplates(ctx context.Context) ([]workshop.PromptTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []workshop.PromptTemplate
	_, err := s.client.From(tablePrompts).Select("prompt_id,step_name,prompt_text", "", false).ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("select prompts: %w", err)
	}
	return rows, nil
}

// TechnologyAnalyses returns the analyses for the named technologies.
func (s *Supabase) TechnologyAnalyses(ctx context.Context, names []workshop.Technology) ([]workshop.TechnologyAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := make([]string, len(names))
	for i, n := range names {
		values[i] = string(n)
	}
	var rows []workshop.TechnologyAnalysis
	_, err := s.client.From(tableTechnologies).
		Select("technology_name,content", "", false).
		In("technology_name", values).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("%w: select technology analyses: %v", workshop.ErrReferenceDataUnavailable, err)
	}
	return rows, nil
}

// SectorProfile returns the profile for a sector.
func (s *Supabase) SectorProfile(ctx context.Context, name string) (workshop.SectorProfile, error) {
	if err := ctx.Err(); err != nil {
		return workshop.SectorProfile{}, err
	}
	var rows []workshop.SectorProfile
	_, err := s.client.From(tableSectors).
		Select("sector_name,organization_name,content", "", false).
		Eq("sector_name", name).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return workshop.SectorProfile{}, fmt.Errorf("%w: select sector profile: %v", workshop.ErrReferenceDataUnavailable, err)
	}
	if len(rows) == 0 {
		return workshop.SectorProfile{}, fmt.Errorf("%w: no sector profile %q", workshop.ErrReferenceDataUnavailable, name)
	}
	return rows[0], nil
}

// UpsertPromptTemplates writes prompt templates keyed by prompt_id.
func (s *Supabase) UpsertPromptTemplates(ctx context.Context, rows []workshop.PromptTemplate) error {
	return s.upsert(ctx, tablePrompts, "prompt_id", rows)
}

// UpsertTechnologyAnalyses writes analyses keyed by technology_name.
func (s *Supabase) UpsertTechnologyAnalyses(ctx context.Context, rows []workshop.TechnologyAnalysis) error {
	return s.upsert(ctx, tableTechnologies, "technology_name", rows)
}

// UpsertSectorProfiles writes profiles keyed by sector_name.
func (s *Supabase) UpsertSectorProfiles(ctx context.Context, rows []workshop.SectorProfile) error {
	return s.upsert(ctx, tableSectors, "sector_name", rows)
}

func (s *Supabase) upsert(ctx context.Context, table, key string, rows any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := s.client.From(table).Upsert(rows, key, "minimal", "").Execute(); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}
