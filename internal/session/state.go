package session

// State is the lifecycle phase of a follow-up session.
type State string

const (
	StateIdle             State = "idle"
	StateThinking         State = "thinking"
	StateShowingQuestion  State = "showingQuestion"
	StateListening        State = "listening"
	StateProcessingAnswer State = "processingAnswer"
	StateFinished         State = "finished"
	StateErrored          State = "errored"
)

// Terminal reports whether no further transitions can leave the state.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateErrored
}
