package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futureslab/internal/workshop"
)

func TestSupabaseSessionByCodeQueriesPostgrest(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sessions") {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("code")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"7d1e","code":"ALL-ABCD","current_step":5,"language":"nl","status":"active","created_at":"2026-10-16T09:00:00.123456+00:00"}]`)
	}))
	defer srv.Close()

	s, err := NewSupabase(srv.URL, "anon-key")
	require.NoError(t, err)

	sess, err := s.SessionByCode(context.Background(), "ALL-ABCD")
	require.NoError(t, err)
	assert.Equal(t, "eq.ALL-ABCD", gotQuery)
	assert.Equal(t, "7d1e", sess.ID)
	assert.Equal(t, workshop.StepDistantFuture, sess.CurrentStep)
	assert.Equal(t, workshop.LanguageDutch, sess.Language)
}

func TestSupabaseSessionByCodeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	s, err := NewSupabase(srv.URL, "anon-key")
	require.NoError(t, err)

	_, err = s.SessionByCode(context.Background(), "ALL-NOPE")
	assert.ErrorIs(t, err, workshop.ErrSessionNotFound)
}

func TestSupabaseInsertOutputSendsOnlyColumns(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/session_outputs"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s, err := NewSupabase(srv.URL, "anon-key")
	require.NoError(t, err)

	err = s.InsertOutput(context.Background(), workshop.StepOutput{SessionID: "s1", StepName: "distant_future", Content: "text"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"session_id": "s1", "step_name": "distant_future", "content": "text"}, body)
}

func TestSupabaseUpdateInterventionRequiresRow(t *testing.T) {
	var prefer atomic.Value
	var hasRow atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.s1", r.URL.Query().Get("session_id"))
		prefer.Store(r.Header.Get("Prefer"))
		w.Header().Set("Content-Type", "application/json")
		if !hasRow.Load() {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, `[{"id":"9a","session_id":"s1","intervention":"community batteries"}]`)
	}))
	defer srv.Close()

	s, err := NewSupabase(srv.URL, "anon-key")
	require.NoError(t, err)

	err = s.UpdateIntervention(context.Background(), "s1", "community batteries")
	require.ErrorIs(t, err, workshop.ErrSessionNotFound)
	assert.Contains(t, prefer.Load(), "return=representation")

	err = s.UpdateInputs(context.Background(), workshop.StepInputs{SessionID: "s1"})
	require.ErrorIs(t, err, workshop.ErrSessionNotFound)

	hasRow.Store(true)
	require.NoError(t, s.UpdateIntervention(context.Background(), "s1", "community batteries"))
}

func TestSupabaseCancelledContext(t *testing.T) {
	s, err := NewSupabase("http://127.0.0.1:1", "anon-key")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.PromptTemplates(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
