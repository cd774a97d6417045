package workshop

import "time"

// Generation step names. A StepOutput row is keyed by one of these, not by
// the live step counter.
const (
	OutputSeed                  = "seed"
	OutputDistantFuture         = "distant_future"
	OutputAssessment            = "assessment"
	OutputRevision              = "revision"
	OutputNotSoDistant          = "not_so_distant"
	OutputNearFuture            = "near_future"
	OutputBackcastingAssessment = "backcasting_assessment"
	OutputIntervention          = "intervention"
)

// Session matches the 'sessions' table in Supabase.
type Session struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	CurrentStep Step      `json:"current_step"`
	Language    Language  `json:"language"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// StepOutput matches the 'session_outputs' table in Supabase.
type StepOutput struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StepName  string    `json:"step_name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Insight matches the 'session_insights' table in Supabase.
type Insight struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id"`
	Insight   string    `json:"insight"`
	CreatedAt time.Time `json:"created_at"`
}

// PromptTemplate matches the 'prompts' table.
type PromptTemplate struct {
	PromptID string `json:"prompt_id" yaml:"prompt_id"`
	StepName string `json:"step_name" yaml:"step_name"`
	Text     string `json:"prompt_text" yaml:"prompt_text"`
}

// TechnologyAnalysis matches the 'technology_sector_analyses' table.
type TechnologyAnalysis struct {
	TechnologyName Technology `json:"technology_name" yaml:"technology_name"`
	Content        string     `json:"content" yaml:"content"`
}

// SectorProfile matches the 'sector_profile' table.
type SectorProfile struct {
	SectorName       string `json:"sector_name" yaml:"sector_name"`
	OrganizationName string `json:"organization_name" yaml:"organization_name"`
	Content          string `json:"content" yaml:"content"`
}
