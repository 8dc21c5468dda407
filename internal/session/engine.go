package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"innervoice/internal/analyze"
	"innervoice/internal/capture"
	"innervoice/internal/connectivity"
	"innervoice/internal/database"
	"innervoice/internal/generate"
	"innervoice/internal/latency"
	"innervoice/internal/llm"
	"innervoice/internal/transcribe"
)

// Store is the subset of persistence the engine writes through.
// *database.DB satisfies it.
type Store interface {
	CreateQuestionTurn(entryID, question string, askedAt time.Time) (*database.Turn, error)
	AnswerTurn(turnID, answer string, answeredAt time.Time) error
}

// Analyzer runs the post-conversation analysis for an entry.
// *analyze.Pipeline satisfies it.
type Analyzer interface {
	Run(ctx context.Context, entryID string) *analyze.Result
}

// Deps are the collaborators a session engine is constructed with.
type Deps struct {
	Store       Store
	Generator   generate.Generator
	Transcriber transcribe.Transcriber
	Recorder    capture.Recorder
	Network     connectivity.Monitor
	Latency     *latency.Tracker
	Analyzer    Analyzer
	Now         func() time.Time
}

// Engine drives one follow-up session for a single journal entry: it asks
// questions through the generation collaborator, captures and transcribes
// answers, persists every turn, and hands the finished conversation to the
// analysis pipeline exactly once.
//
// All collaborator calls run with the engine unlocked so EndExternally can
// interleave; a result arriving after a terminal state is dropped. At most
// one generation or transcription call is in flight at any time.
type Engine struct {
	store       Store
	gen         generate.Generator
	transcriber transcribe.Transcriber
	recorder    capture.Recorder
	network     connectivity.Monitor
	latency     *latency.Tracker
	analyzer    Analyzer
	now         func() time.Time

	mu          sync.Mutex
	state       State
	errMsg      string
	entryID     string
	history     []llm.Message
	currentTurn *database.Turn
	recording   *capture.Recording
	inFlight    bool
	analyzed    bool
}

// NewEngine creates an idle engine from its collaborators.
func NewEngine(deps Deps) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	lat := deps.Latency
	if lat == nil {
		lat = latency.NewTracker(0, 0)
	}
	return &Engine{
		store:       deps.Store,
		gen:         deps.Generator,
		transcriber: deps.Transcriber,
		recorder:    deps.Recorder,
		network:     deps.Network,
		latency:     lat,
		analyzer:    deps.Analyzer,
		now:         now,
		state:       StateIdle,
	}
}

// State returns the current state and, when errored, the failure reason.
func (e *Engine) State() (State, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.errMsg
}

// CurrentQuestion returns the question awaiting an answer, or "".
func (e *Engine) CurrentQuestion() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentTurn == nil {
		return ""
	}
	return e.currentTurn.Question
}

// Degraded reports the latency monitor's advisory slow-network signal.
func (e *Engine) Degraded() bool {
	return e.latency.Degraded()
}

// Start opens the session for the entry: it seeds the exchange context with
// the entry's transcript and requests the first question. Valid only from
// idle, and only while the network is connected.
func (e *Engine) Start(ctx context.Context, entry *database.Entry) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", e.state)
	}
	if !e.network.Connected() {
		e.mu.Unlock()
		return fmt.Errorf("no network connection")
	}
	e.entryID = entry.ID
	e.history = []llm.Message{{Role: llm.RoleUser, Content: entry.Transcript}}
	e.state = StateThinking
	e.mu.Unlock()

	e.askNextQuestion(ctx)
	return nil
}

// BeginAnswerCapture moves from showingQuestion to listening. The source
// experience inserts a short pacing delay here before inviting the user to
// speak; this non-interactive rendition transitions immediately.
func (e *Engine) BeginAnswerCapture() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateShowingQuestion {
		return fmt.Errorf("cannot capture answer from state %s", e.state)
	}
	e.state = StateListening
	return nil
}

// BeginRecording acquires the audio capture collaborator. Valid only while
// listening with no capture already open.
func (e *Engine) BeginRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateListening {
		return fmt.Errorf("cannot record from state %s", e.state)
	}
	if e.recording != nil {
		return fmt.Errorf("recording already in progress")
	}
	rec, err := e.recorder.Start()
	if err != nil {
		e.failLocked(fmt.Sprintf("starting recording: %v", err))
		return err
	}
	e.recording = rec
	return nil
}

// EndRecordingAndProcess releases the capture, transcribes the answer,
// persists the answered turn with its user message, and re-enters the
// question-generation step.
func (e *Engine) EndRecordingAndProcess(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateListening || e.recording == nil {
		e.mu.Unlock()
		return fmt.Errorf("no active recording to process")
	}
	rec := e.recording
	e.recording = nil
	e.state = StateProcessingAnswer
	e.mu.Unlock()

	audio, err := e.recorder.Stop(rec)
	if err != nil {
		e.fail(fmt.Sprintf("stopping recording: %v", err))
		return nil
	}

	text, ok := e.transcribeAudio(ctx, audio)
	if !ok {
		return nil
	}

	e.mu.Lock()
	if e.state.Terminal() {
		// Session ended while transcription was in flight; drop the result.
		e.mu.Unlock()
		return nil
	}
	turn := e.currentTurn
	e.mu.Unlock()

	if turn == nil {
		e.fail("no open question to answer")
		return nil
	}
	if err := e.store.AnswerTurn(turn.ID, text, e.now()); err != nil {
		e.fail(fmt.Sprintf("persisting answer: %v", err))
		return nil
	}

	e.mu.Lock()
	if e.state.Terminal() {
		e.mu.Unlock()
		return nil
	}
	e.history = append(e.history, llm.Message{Role: llm.RoleUser, Content: text})
	e.currentTurn = nil
	e.state = StateThinking
	e.mu.Unlock()

	e.askNextQuestion(ctx)
	return nil
}

// CancelRecording releases an open capture without processing it. The
// session returns to showingQuestion so the answer can be re-recorded.
func (e *Engine) CancelRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recording == nil {
		return fmt.Errorf("no active recording")
	}
	rec := e.recording
	e.recording = nil
	if err := e.recorder.Cancel(rec); err != nil {
		log.Printf("Error cancelling recording: %v", err)
	}
	if e.state == StateListening {
		e.state = StateShowingQuestion
	}
	return nil
}

// EndExternally force-finishes the session from any non-terminal state, e.g.
// when the user abandons the interview. An in-flight collaborator call is not
// aborted; its result is ignored once the terminal state is reached. The
// analysis pipeline runs exactly once.
func (e *Engine) EndExternally(ctx context.Context) {
	e.mu.Lock()
	if e.state.Terminal() {
		e.mu.Unlock()
		return
	}
	if e.recording != nil {
		rec := e.recording
		e.recording = nil
		if err := e.recorder.Cancel(rec); err != nil {
			log.Printf("Error cancelling recording: %v", err)
		}
	}
	e.state = StateFinished
	e.mu.Unlock()

	e.runAnalysisOnce(ctx)
}

// askNextQuestion requests the next question from the generation
// collaborator using the full exchange context. A stop-phrase reply finishes
// the session and triggers analysis; otherwise the question is persisted and
// shown.
func (e *Engine) askNextQuestion(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateThinking {
		e.mu.Unlock()
		return
	}
	if e.inFlight {
		e.mu.Unlock()
		e.fail("generation call already in flight")
		return
	}
	if !e.network.Connected() {
		e.failLocked("network connection lost")
		e.mu.Unlock()
		return
	}
	e.inFlight = true
	history := append([]llm.Message(nil), e.history...)
	e.mu.Unlock()

	question, err := e.gen.NextQuestion(ctx, history)

	e.mu.Lock()
	e.inFlight = false
	if e.state.Terminal() {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err != nil {
		e.fail(fmt.Sprintf("generating question: %v", err))
		return
	}

	if generate.IsStopPhrase(question) {
		e.mu.Lock()
		if e.state.Terminal() {
			e.mu.Unlock()
			return
		}
		e.state = StateFinished
		e.mu.Unlock()
		e.runAnalysisOnce(ctx)
		return
	}

	turn, err := e.store.CreateQuestionTurn(e.entryID, question, e.now())
	if err != nil {
		e.fail(fmt.Sprintf("persisting question: %v", err))
		return
	}

	e.mu.Lock()
	if e.state.Terminal() {
		e.mu.Unlock()
		return
	}
	e.history = append(e.history, llm.Message{Role: llm.RoleAssistant, Content: question})
	e.currentTurn = turn
	e.state = StateShowingQuestion
	e.mu.Unlock()
}

// transcribeAudio runs the transcription collaborator, feeding the latency
// monitor. Returns ok=false after transitioning to errored.
func (e *Engine) transcribeAudio(ctx context.Context, audio []byte) (string, bool) {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		e.fail("transcription call already in flight")
		return "", false
	}
	if !e.network.Connected() {
		e.failLocked("network connection lost")
		e.mu.Unlock()
		return "", false
	}
	e.inFlight = true
	e.mu.Unlock()

	started := e.now()
	text, err := e.transcriber.Transcribe(ctx, audio)
	completed := e.now()
	e.latency.Record(completed, completed.Sub(started))

	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()

	if err != nil {
		e.fail(fmt.Sprintf("transcribing answer: %v", err))
		return "", false
	}
	return text, true
}

// fail transitions to errored unless a terminal state was already reached;
// the first terminal outcome wins and later error signals are suppressed.
func (e *Engine) fail(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failLocked(msg)
}

func (e *Engine) failLocked(msg string) {
	if e.state.Terminal() {
		return
	}
	log.Printf("Session for entry %s failed: %s", e.entryID, msg)
	e.state = StateErrored
	e.errMsg = msg
}

// runAnalysisOnce invokes the analysis pipeline the first time the session
// finishes; later finish signals are no-ops.
func (e *Engine) runAnalysisOnce(ctx context.Context) {
	e.mu.Lock()
	if e.analyzed || e.analyzer == nil {
		e.mu.Unlock()
		return
	}
	e.analyzed = true
	entryID := e.entryID
	e.mu.Unlock()

	result := e.analyzer.Run(ctx, entryID)
	for _, step := range result.Steps {
		if step.Err != nil {
			log.Printf("Analysis stage %s: %v", step.Name, step.Err)
		}
	}
}
