package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"futureslab/internal/joincode"
	"futureslab/internal/store"
	"futureslab/internal/workshop"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestMachine(t *testing.T) (*Machine, *store.Memory) {
	t.Helper()
	codes, err := joincode.New("ALL")
	require.NoError(t, err)
	mem := store.NewMemory()
	return NewMachine(mem, mem, codes, nil), mem
}

type fixedCodes struct {
	codes []string
	next  int
}

func (f *fixedCodes) Generate() (string, error) {
	if f.next >= len(f.codes) {
		return "", errors.New("out of codes")
	}
	c := f.codes[f.next]
	f.next++
	return c, nil
}

func TestCreateStartsAtCodeStep(t *testing.T) {
	m, _ := newTestMachine(t)

	sess, err := m.Create(context.Background(), workshop.LanguageDutch)
	require.NoError(t, err)
	assert.Equal(t, workshop.StepCode, sess.CurrentStep)
	assert.Equal(t, workshop.StatusActive, sess.Status)
	assert.Equal(t, workshop.LanguageDutch, sess.Language)
	assert.Regexp(t, `^ALL-[A-HJ-NP-Z2-9]{4}$`, sess.Code)
}

func TestCreateRetriesOnCodeCollision(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.CreateSession(ctx, "ALL-AAAA", workshop.LanguageEnglish, workshop.StepCode)
	require.NoError(t, err)

	codes := &fixedCodes{codes: []string{"ALL-AAAA", "ALL-BBBB"}}
	m := NewMachine(mem, mem, codes, nil)

	sess, err := m.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "ALL-BBBB", sess.Code)
	assert.Equal(t, workshop.LanguageEnglish, sess.Language)
}

func TestAdvanceOnlyForModerator(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestMachine(t)
	sess, err := m.Create(ctx, workshop.LanguageEnglish)
	require.NoError(t, err)

	got, err := m.Advance(ctx, sess.ID, workshop.RoleViewer, workshop.StepCode)
	require.NoError(t, err)
	assert.Equal(t, workshop.StepCode, got)

	stored, err := mem.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, workshop.StepCode, stored.CurrentStep)

	got, err = m.Advance(ctx, sess.ID, workshop.RoleModerator, workshop.StepCode)
	require.NoError(t, err)
	assert.Equal(t, workshop.StepCards, got)
}

func TestAdvanceWalksToClosingAndStops(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestMachine(t)
	sess, err := m.Create(ctx, workshop.LanguageEnglish)
	require.NoError(t, err)

	step := sess.CurrentStep
	for step != workshop.StepClosing {
		next, err := m.Advance(ctx, sess.ID, workshop.RoleModerator, step)
		require.NoError(t, err)
		require.Equal(t, step+1, next)
		step = next
	}

	stored, err := mem.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, workshop.StepClosing, stored.CurrentStep)
	assert.Equal(t, workshop.StatusEnded, stored.Status)

	got, err := m.Advance(ctx, sess.ID, workshop.RoleModerator, workshop.StepClosing)
	require.NoError(t, err)
	assert.Equal(t, workshop.StepClosing, got)
}

func TestAdvanceFromStaleStepIsNoop(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t)
	sess, err := m.Create(ctx, workshop.LanguageEnglish)
	require.NoError(t, err)

	got, err := m.Advance(ctx, sess.ID, workshop.RoleModerator, workshop.StepCards)
	require.NoError(t, err)
	assert.Equal(t, workshop.StepCards, got)
}

func TestLateJoinerReconstructsFromRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, mem := newTestMachine(t)

	sess, err := m.Create(ctx, workshop.LanguageEnglish)
	require.NoError(t, err)
	_, err = m.Advance(ctx, sess.ID, workshop.RoleModerator, workshop.StepCode)
	require.NoError(t, err)
	_, err = m.Advance(ctx, sess.ID, workshop.RoleModerator, workshop.StepCards)
	require.NoError(t, err)
	require.NoError(t, mem.InsertOutput(ctx, workshop.StepOutput{SessionID: sess.ID, StepName: "distant_future", Content: "first draft"}))
	require.NoError(t, mem.InsertOutput(ctx, workshop.StepOutput{SessionID: sess.ID, StepName: "distant_future", Content: "second draft"}))

	snap, events, err := m.Join(ctx, "  "+strings.ToLower(sess.Code)+" ")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, snap.Session.ID)
	assert.Equal(t, workshop.StepDistantFuture, snap.Session.CurrentStep)
	assert.Equal(t, "second draft", snap.Outputs["distant_future"])

	state := FromSnapshot(snap, workshop.RoleViewer)
	_, err = m.Advance(ctx, sess.ID, workshop.RoleModerator, workshop.StepDistantFuture)
	require.NoError(t, err)

	select {
	case ev := <-events:
		state = Reduce(state, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no step notification")
	}
	assert.Equal(t, workshop.StepNotSoDistant, state.Step)
	assert.Equal(t, "second draft", state.Outputs["distant_future"])

	cancel()
	for range events {
	}
}

type outputsDown struct {
	*store.Memory
}

func (outputsDown) OutputsBySession(context.Context, string) ([]workshop.StepOutput, error) {
	return nil, errors.New("select outputs: timeout")
}

type recordingNotifier struct {
	*store.Memory
	ctxs []context.Context
}

func (r *recordingNotifier) Subscribe(ctx context.Context, sessionID string) (<-chan workshop.Event, error) {
	r.ctxs = append(r.ctxs, ctx)
	return r.Memory.Subscribe(ctx, sessionID)
}

func TestJoinReleasesSubscriptionWhenSnapshotFails(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	sess, err := mem.CreateSession(ctx, "ALL-AAAA", workshop.LanguageEnglish, workshop.StepCode)
	require.NoError(t, err)

	notifier := &recordingNotifier{Memory: mem}
	m := NewMachine(outputsDown{mem}, notifier, &fixedCodes{}, nil)

	_, events, err := m.Join(ctx, sess.Code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load outputs")
	assert.Nil(t, events)
	require.Len(t, notifier.ctxs, 1)
	assert.ErrorIs(t, notifier.ctxs[0].Err(), context.Canceled)
}

func TestJoinKeepsSubscriptionOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mem := store.NewMemory()
	sess, err := mem.CreateSession(ctx, "ALL-AAAA", workshop.LanguageEnglish, workshop.StepCode)
	require.NoError(t, err)

	notifier := &recordingNotifier{Memory: mem}
	m := NewMachine(mem, notifier, &fixedCodes{}, nil)

	_, events, err := m.Join(ctx, sess.Code)
	require.NoError(t, err)
	require.NotNil(t, events)
	require.Len(t, notifier.ctxs, 1)
	assert.NoError(t, notifier.ctxs[0].Err())

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestJoinUnknownCode(t *testing.T) {
	m, _ := newTestMachine(t)
	_, _, err := m.Join(context.Background(), "ALL-ZZZZ")
	assert.ErrorIs(t, err, workshop.ErrSessionNotFound)
}

func TestSaveInputsInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestMachine(t)

	in := workshop.StepInputs{SessionID: "s1", Technology1: workshop.TechAGI}
	assert.ErrorIs(t, m.SaveInputs(ctx, in), workshop.ErrInputsIncomplete)

	in.Technology2 = workshop.TechBio
	in.Resources = workshop.ResourcesAbundance
	in.System = workshop.SystemBreaksDown
	in.DominantValue = workshop.ValueCollectivism
	require.NoError(t, m.SaveInputs(ctx, in))

	in.Resources = workshop.ResourcesScarce
	require.NoError(t, m.SaveInputs(ctx, in))

	require.NoError(t, m.SubmitIntervention(ctx, "s1", "  community batteries  "))
	assert.ErrorIs(t, m.SubmitIntervention(ctx, "s1", "   "), workshop.ErrEmptyText)

	got, found, err := mem.InputsBySession(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, workshop.ResourcesScarce, got.Resources)
	assert.Equal(t, "community batteries", got.Intervention)
}

func TestSubmitInterventionNeedsInputs(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()

	err := m.SubmitIntervention(ctx, "s1", "community batteries")
	require.ErrorIs(t, err, workshop.ErrSessionNotFound)

	_, found, err := mem.InputsBySession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSubmitInsightAppends(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestMachine(t)

	require.NoError(t, m.SubmitInsight(ctx, "s1", "grid needs slack"))
	require.NoError(t, m.SubmitInsight(ctx, "s1", "grid needs slack"))
	assert.ErrorIs(t, m.SubmitInsight(ctx, "s1", ""), workshop.ErrEmptyText)

	assert.Len(t, mem.Insights("s1"), 2)
}
