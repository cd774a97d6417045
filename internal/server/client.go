package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"futureslab/internal/archetype"
	"futureslab/internal/pipeline"
	"futureslab/internal/workshop"
)

// Client calls a remote generation endpoint. It satisfies Generator, so a
// workshop client can use either this or a local pipeline.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Run posts req to /api/generate and maps error statuses back onto the
// workshop error taxonomy.
func (c *Client) Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	body := GenerateRequest{
		SessionID:        req.SessionID,
		Step:             req.Step,
		Resources:        req.Inputs.Resources,
		System:           req.Inputs.System,
		DominantValue:    req.Inputs.DominantValue,
		Technology1:      req.Inputs.Technology1,
		Technology2:      req.Inputs.Technology2,
		SectorName:       req.Sector,
		Intervention:     req.Intervention,
		PreviousScenario: req.PreviousScenario,
		Language:         req.Language,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(raw))
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("%w: %v", workshop.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		msg := e.Error
		if msg == "" {
			msg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return pipeline.Result{}, fmt.Errorf("%w: %s", workshop.ErrTemplateNotFound, msg)
		case http.StatusBadRequest:
			return pipeline.Result{}, fmt.Errorf("%w: %s", workshop.ErrInputsIncomplete, e.Details)
		default:
			return pipeline.Result{}, fmt.Errorf("%w: %s", workshop.ErrGenerationFailed, msg)
		}
	}

	var ok GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		return pipeline.Result{}, fmt.Errorf("%w: decode response: %v", workshop.ErrGenerationFailed, err)
	}
	return pipeline.Result{
		Content:   ok.Content,
		Archetype: archetype.Archetype(ok.Archetype),
		Step:      ok.Step,
		Persisted: ok.Persisted,
	}, nil
}
