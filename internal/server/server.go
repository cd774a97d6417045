// Package server exposes the generation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"futureslab/internal/pipeline"
	"futureslab/internal/workshop"
)

// Generator runs one generation request.
type Generator interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// GenerateRequest is the JSON body of POST /api/generate.
type GenerateRequest struct {
	SessionID        string                 `json:"session_id"`
	Step             string                 `json:"step"`
	Resources        workshop.Resources     `json:"resources"`
	System           workshop.System        `json:"system"`
	DominantValue    workshop.DominantValue `json:"dominant_value"`
	Technology1      workshop.Technology    `json:"technology_1"`
	Technology2      workshop.Technology    `json:"technology_2"`
	SectorName       string                 `json:"sector_name,omitempty"`
	Intervention     string                 `json:"intervention,omitempty"`
	PreviousScenario string                 `json:"previous_scenario,omitempty"`
	Language         workshop.Language      `json:"language,omitempty"`
}

// GenerateResponse is the success body.
type GenerateResponse struct {
	Success   bool   `json:"success"`
	Content   string `json:"content"`
	Archetype string `json:"archetype"`
	Step      string `json:"step"`
	Persisted bool   `json:"persisted"`
}

// ErrorResponse is the failure body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (r GenerateRequest) pipelineRequest() pipeline.Request {
	return pipeline.Request{
		SessionID: r.SessionID,
		Step:      r.Step,
		Inputs: workshop.StepInputs{
			SessionID:     r.SessionID,
			Resources:     r.Resources,
			System:        r.System,
			DominantValue: r.DominantValue,
			Technology1:   r.Technology1,
			Technology2:   r.Technology2,
		},
		Sector:           r.SectorName,
		Intervention:     r.Intervention,
		PreviousScenario: r.PreviousScenario,
		Language:         r.Language,
	}
}

// Server serves the generation endpoint.
type Server struct {
	gen    Generator
	logger *zap.Logger
}

// New builds a server around gen.
func New(gen Generator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{gen: gen, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	s.logger.Info("generate request",
		zap.String("session_id", body.SessionID),
		zap.String("step", body.Step),
		zap.String("technology_1", string(body.Technology1)),
		zap.String("technology_2", string(body.Technology2)))

	res, err := s.gen.Run(r.Context(), body.pipelineRequest())
	if err != nil {
		status, resp := errorResponse(body.Step, err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("generate failed", zap.String("step", body.Step), zap.Error(err))
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Success:   true,
		Content:   res.Content,
		Archetype: string(res.Archetype),
		Step:      res.Step,
		Persisted: res.Persisted,
	})
}

// errorResponse maps the error taxonomy onto HTTP statuses. Provider
// details are not echoed to participants.
func errorResponse(step string, err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, workshop.ErrTemplateNotFound):
		return http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("Prompt not found for step: %s", step)}
	case errors.Is(err, workshop.ErrInputsIncomplete):
		return http.StatusBadRequest, ErrorResponse{Error: "Inputs incomplete", Details: err.Error()}
	case errors.Is(err, workshop.ErrGenerationFailed):
		return http.StatusBadGateway, ErrorResponse{Error: "Generation failed"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Generation failed"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
