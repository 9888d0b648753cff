package scheduler

// State identifies the scheduler's position in the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateEvaluating
	StateWaiting
	StateTraining
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateWaiting:
		return "waiting"
	case StateTraining:
		return "training"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
