package radio

import "fmt"

// Result is the verdict of an operation callback and of a whole run.
type Result uint8

const (
	ResultContinue Result = iota
	ResultComplete
	ResultFailed
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultContinue:
		return "continue"
	case ResultComplete:
		return "complete"
	case ResultFailed:
		return "failed"
	case ResultCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Terminal reports whether the result ends the loop.
func (r Result) Terminal() bool {
	return r != ResultContinue
}

// State is the operation loop state.
type State int32

const (
	StateIdle State = iota
	StateReceiving
	StateProcessingPayload
	StateTerminating
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateProcessingPayload:
		return "processing"
	case StateTerminating:
		return "terminating"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
