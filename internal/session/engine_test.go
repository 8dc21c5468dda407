package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innervoice/internal/analyze"
	"innervoice/internal/capture"
	"innervoice/internal/connectivity"
	"innervoice/internal/database"
	"innervoice/internal/llm"
)

// scriptedGenerator returns canned questions in order, tracking concurrency.
type scriptedGenerator struct {
	questions []string
	errs      []error
	calls     int
	active    int
	maxActive int
	lastHist  []llm.Message
}

func (g *scriptedGenerator) NextQuestion(_ context.Context, history []llm.Message) (string, error) {
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	defer func() { g.active-- }()

	g.lastHist = history
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i >= len(g.questions) {
		return "Thank you for sharing, that's all for now.", nil
	}
	return g.questions[i], nil
}

func (g *scriptedGenerator) ExtractTags(_ context.Context, _ string, _ int) ([]string, error) {
	return nil, nil
}
func (g *scriptedGenerator) Headline(_ context.Context, _ []string) (*string, error) {
	return nil, nil
}
func (g *scriptedGenerator) ClassifyEmotions(_ context.Context, _ string) ([]database.IdentifiedFeeling, error) {
	return nil, nil
}
func (g *scriptedGenerator) Summarize(_ context.Context, _ string) (string, error) {
	return "", nil
}

type fakeTranscriber struct {
	texts []string
	err   error
	calls int
}

func (t *fakeTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	i := t.calls
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	if i < len(t.texts) {
		return t.texts[i], nil
	}
	return "some answer", nil
}

func (t *fakeTranscriber) IsConfigured() bool { return true }

type fakeRecorder struct {
	starts, stops, cancels int
}

func (r *fakeRecorder) Start() (*capture.Recording, error) {
	r.starts++
	return &capture.Recording{}, nil
}

func (r *fakeRecorder) Stop(_ *capture.Recording) ([]byte, error) {
	r.stops++
	return []byte("wav"), nil
}

func (r *fakeRecorder) Cancel(_ *capture.Recording) error {
	r.cancels++
	return nil
}

type countingAnalyzer struct {
	runs    int
	entryID string
}

func (a *countingAnalyzer) Run(_ context.Context, entryID string) *analyze.Result {
	a.runs++
	a.entryID = entryID
	return &analyze.Result{EntryID: entryID}
}

type fixture struct {
	db       *database.DB
	entry    *database.Entry
	gen      *scriptedGenerator
	trans    *fakeTranscriber
	rec      *fakeRecorder
	analyzer *countingAnalyzer
	engine   *Engine
}

func newFixture(t *testing.T, gen *scriptedGenerator) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	entry := &database.Entry{Transcript: "I had a good day", CreatedAt: time.Now()}
	require.NoError(t, db.InsertEntry(entry))

	f := &fixture{
		db:       db,
		entry:    entry,
		gen:      gen,
		trans:    &fakeTranscriber{},
		rec:      &fakeRecorder{},
		analyzer: &countingAnalyzer{},
	}
	f.engine = NewEngine(Deps{
		Store:       db,
		Generator:   gen,
		Transcriber: f.trans,
		Recorder:    f.rec,
		Network:     connectivity.Static(true),
		Analyzer:    f.analyzer,
	})
	return f
}

func state(t *testing.T, e *Engine) State {
	t.Helper()
	s, _ := e.State()
	return s
}

func TestEndToEndConversation(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"What made it good?"}})
	f.trans.texts = []string{"friends visited"}
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, f.entry))
	assert.Equal(t, StateShowingQuestion, state(t, f.engine))
	assert.Equal(t, "What made it good?", f.engine.CurrentQuestion())

	require.NoError(t, f.engine.BeginAnswerCapture())
	assert.Equal(t, StateListening, state(t, f.engine))

	require.NoError(t, f.engine.BeginRecording())
	require.NoError(t, f.engine.EndRecordingAndProcess(ctx))

	// Second generation call returned the stop phrase.
	assert.Equal(t, StateFinished, state(t, f.engine))
	assert.Equal(t, 1, f.analyzer.runs, "pipeline runs exactly once")
	assert.Equal(t, f.entry.ID, f.analyzer.entryID)

	turns, err := f.db.GetTurnsForEntry(f.entry.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1, "stop phrase must not persist an extra question turn")
	assert.Equal(t, "What made it good?", turns[0].Question)
	require.NotNil(t, turns[0].Answer)
	assert.Equal(t, "friends visited", *turns[0].Answer)

	msgs, err := f.db.GetMessagesForEntry(f.entry.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, database.RoleAssistant, msgs[0].Role)
	assert.Equal(t, database.RoleUser, msgs[1].Role)

	// Exchange context carried transcript, question, and answer.
	require.Len(t, f.gen.lastHist, 3)
	assert.Equal(t, "I had a good day", f.gen.lastHist[0].Content)
	assert.Equal(t, "friends visited", f.gen.lastHist[2].Content)
}

func TestImmediateStopPhrase(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{}) // first reply is already the sign-off
	require.NoError(t, f.engine.Start(context.Background(), f.entry))

	assert.Equal(t, StateFinished, state(t, f.engine))
	assert.Equal(t, 1, f.analyzer.runs)
	turns, _ := f.db.GetTurnsForEntry(f.entry.ID)
	assert.Empty(t, turns)
}

func TestStartRequiresConnectivity(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"Q?"}})
	f.engine.network = connectivity.Static(false)

	err := f.engine.Start(context.Background(), f.entry)
	assert.Error(t, err)
	assert.Equal(t, StateIdle, state(t, f.engine), "refused start leaves the engine idle")
}

func TestStartOnlyFromIdle(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"Q?"}})
	require.NoError(t, f.engine.Start(context.Background(), f.entry))
	assert.Error(t, f.engine.Start(context.Background(), f.entry))
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"Q?"}})
	ctx := context.Background()

	assert.Error(t, f.engine.BeginAnswerCapture(), "capture before start")
	assert.Error(t, f.engine.BeginRecording(), "record before start")
	assert.Error(t, f.engine.EndRecordingAndProcess(ctx), "process before start")

	require.NoError(t, f.engine.Start(ctx, f.entry))
	assert.Error(t, f.engine.BeginRecording(), "record while showing question")

	require.NoError(t, f.engine.BeginAnswerCapture())
	assert.Error(t, f.engine.EndRecordingAndProcess(ctx), "process without open recording")

	require.NoError(t, f.engine.BeginRecording())
	assert.Error(t, f.engine.BeginRecording(), "double recording acquisition")
}

func TestGenerationFailureIsTerminal(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{errs: []error{assert.AnError}})
	require.NoError(t, f.engine.Start(context.Background(), f.entry))

	s, msg := f.engine.State()
	assert.Equal(t, StateErrored, s)
	assert.Contains(t, msg, "generating question")
	assert.Zero(t, f.analyzer.runs, "errored sessions do not run analysis")

	// Terminal states are sticky.
	assert.Error(t, f.engine.BeginAnswerCapture())
}

func TestTranscriptionFailureIsTerminal(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"Q?"}})
	f.trans.err = assert.AnError
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, f.entry))
	require.NoError(t, f.engine.BeginAnswerCapture())
	require.NoError(t, f.engine.BeginRecording())
	require.NoError(t, f.engine.EndRecordingAndProcess(ctx))

	s, msg := f.engine.State()
	assert.Equal(t, StateErrored, s)
	assert.Contains(t, msg, "transcribing answer")
}

func TestEndExternallyRunsAnalysisOnce(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"Q?"}})
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, f.entry))
	f.engine.EndExternally(ctx)
	assert.Equal(t, StateFinished, state(t, f.engine))
	assert.Equal(t, 1, f.analyzer.runs)

	f.engine.EndExternally(ctx)
	assert.Equal(t, 1, f.analyzer.runs, "repeat end must not re-run analysis")
}

func TestEndExternallyReleasesOpenRecording(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"Q?"}})
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, f.entry))
	require.NoError(t, f.engine.BeginAnswerCapture())
	require.NoError(t, f.engine.BeginRecording())

	f.engine.EndExternally(ctx)
	assert.Equal(t, 1, f.rec.cancels, "open capture released exactly once")
	assert.Equal(t, 0, f.rec.stops)
	assert.Equal(t, 1, f.analyzer.runs)
}

func TestCancelRecordingReturnsToQuestion(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"Q?"}})
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, f.entry))
	require.NoError(t, f.engine.BeginAnswerCapture())
	require.NoError(t, f.engine.BeginRecording())
	require.NoError(t, f.engine.CancelRecording())

	assert.Equal(t, StateShowingQuestion, state(t, f.engine))
	assert.Equal(t, 1, f.rec.cancels)
	assert.Error(t, f.engine.CancelRecording(), "no recording left to cancel")
}

func TestNoConcurrentGenerationCalls(t *testing.T) {
	gen := &scriptedGenerator{questions: []string{"Q1?", "Q2?"}}
	f := newFixture(t, gen)
	f.trans.texts = []string{"a1", "a2"}
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, f.entry))
	for i := 0; i < 2; i++ {
		require.NoError(t, f.engine.BeginAnswerCapture())
		require.NoError(t, f.engine.BeginRecording())
		require.NoError(t, f.engine.EndRecordingAndProcess(ctx))
	}

	assert.Equal(t, StateFinished, state(t, f.engine))
	assert.Equal(t, 1, gen.maxActive, "never more than one generation call in flight")
	assert.Equal(t, 3, gen.calls)
}

func TestDegradedSignalDoesNotHaltSession(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{questions: []string{"Q?"}})
	base := time.Now()
	clock := base
	f.engine.now = func() time.Time {
		// Each transcription appears to take 10s.
		clock = clock.Add(10 * time.Second)
		return clock
	}
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, f.entry))
	require.NoError(t, f.engine.BeginAnswerCapture())
	require.NoError(t, f.engine.BeginRecording())
	require.NoError(t, f.engine.EndRecordingAndProcess(ctx))

	assert.True(t, f.engine.Degraded(), "slow transcription flags the advisory signal")
	assert.Equal(t, StateFinished, state(t, f.engine), "degraded signal never halts progression")
}
