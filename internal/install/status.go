package install

// Status is the state of the download and install state machine.
type Status int

// Download states.
const (
	StatusIdle Status = iota
	StatusRequested
	StatusNotStarted
	StatusStarted
	StatusInProgress
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRequested:
		return "requested"
	case StatusNotStarted:
		return "not_started"
	case StatusStarted:
		return "started"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}

	return "unknown"
}

// PollResult is the outcome of a Poll call.
type PollResult int

// Poll results.
const (
	PollContinue PollResult = iota
	PollCompleted
	PollError
)
