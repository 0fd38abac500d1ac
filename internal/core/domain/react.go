package domain

import "time"

// StepKind tags a transcript step
type StepKind string

const (
	StepThought     StepKind = "thought"
	StepAction      StepKind = "action"
	StepObservation StepKind = "observation"
	StepFinalAnswer StepKind = "final_answer"
	StepParseError  StepKind = "parse_error"
)

// Step is one entry of the ReAct transcript.
// Which fields are set depends on Kind:
//   - thought, observation, final_answer: Text
//   - action: ToolName, ToolInput
//   - parse_error: RawText, Reason, and Text holding the feedback shown to the model
type Step struct {
	Kind      StepKind `json:"kind"`
	Text      string   `json:"text,omitempty"`
	ToolName  string   `json:"tool_name,omitempty"`
	ToolInput string   `json:"tool_input,omitempty"`
	RawText   string   `json:"raw_text,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Synthetic bool     `json:"synthetic,omitempty"` // observation produced by the loop, not by a tool
}

func ThoughtStep(text string) Step {
	return Step{Kind: StepThought, Text: text}
}

func ActionStep(tool, input string) Step {
	return Step{Kind: StepAction, ToolName: tool, ToolInput: input}
}

func ObservationStep(text string) Step {
	return Step{Kind: StepObservation, Text: text}
}

// SyntheticObservation is an observation the loop writes itself (unknown tool, model timeout).
func SyntheticObservation(text string) Step {
	return Step{Kind: StepObservation, Text: text, Synthetic: true}
}

func FinalAnswerStep(text string) Step {
	return Step{Kind: StepFinalAnswer, Text: text}
}

// ParseErrorStep records an unparseable model output. The feedback text is what
// the next prompt shows the model in place of an observation.
func ParseErrorStep(raw, reason string) Step {
	return Step{
		Kind:    StepParseError,
		RawText: raw,
		Reason:  reason,
		Text:    "Invalid format: " + reason + ". Please follow the Thought/Action/Final-Answer structure.",
	}
}

// Transcript is the append-only history of a single run.
// Steps are never modified after Append; readers get copies.
type Transcript struct {
	steps []Step
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a step at the end
func (t *Transcript) Append(s Step) {
	t.steps = append(t.steps, s)
}

func (t *Transcript) Len() int {
	return len(t.steps)
}

// Steps returns a copy of every step
func (t *Transcript) Steps() []Step {
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

// Tail returns a copy of the last n steps. n <= 0 means all of them.
func (t *Transcript) Tail(n int) []Step {
	if n <= 0 || n >= len(t.steps) {
		return t.Steps()
	}
	out := make([]Step, n)
	copy(out, t.steps[len(t.steps)-n:])
	return out
}

// Last returns the most recent step
func (t *Transcript) Last() (Step, bool) {
	if len(t.steps) == 0 {
		return Step{}, false
	}
	return t.steps[len(t.steps)-1], true
}

// ParsedKind is the outcome of parsing one model response
type ParsedKind string

const (
	ParsedAction      ParsedKind = "action"
	ParsedFinalAnswer ParsedKind = "final_answer"
	ParsedMalformed   ParsedKind = "malformed"
)

// ParsedStep is what the response parser extracts from raw model text.
type ParsedStep struct {
	Kind      ParsedKind `json:"kind"`
	Thought   string     `json:"thought,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
	ToolInput string     `json:"tool_input,omitempty"`
	Answer    string     `json:"answer,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// RunOutcome is the terminal state of an agent run
type RunOutcome string

const (
	OutcomeAnswer    RunOutcome = "answer"
	OutcomeExhausted RunOutcome = "exhausted"
	OutcomeFatal     RunOutcome = "fatal"
)

// RunResult is produced exactly once per run.
// Answer is set for OutcomeAnswer, Err for OutcomeFatal. Exhausted and Fatal
// results carry the transcript (or its configured tail) for diagnosis.
type RunResult struct {
	RunID      RunID      `json:"run_id"`
	Question   string     `json:"question"`
	Outcome    RunOutcome `json:"outcome"`
	Answer     string     `json:"answer,omitempty"`
	Transcript []Step     `json:"transcript,omitempty"`
	Err        error      `json:"-"`
	Error      string     `json:"error,omitempty"`
	Iterations int        `json:"iterations"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

func (r RunResult) IsAnswer() bool    { return r.Outcome == OutcomeAnswer }
func (r RunResult) IsExhausted() bool { return r.Outcome == OutcomeExhausted }
func (r RunResult) IsFatal() bool     { return r.Outcome == OutcomeFatal }
