package task

// WorkerState is the lifecycle position of one pool worker.
type WorkerState int

// Worker states. Exiting is terminal.
const (
	StateIdle WorkerState = iota
	StateClaiming
	StateGenerating
	StateValidating
	StateEnqueuing
	StateExiting
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateClaiming:   "claiming",
	StateGenerating: "generating",
	StateValidating: "validating",
	StateEnqueuing:  "enqueuing",
	StateExiting:    "exiting",
}

// String returns the lower-case state name.
func (s WorkerState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// StateObserver receives every worker state transition. It is called from
// the worker goroutines and must be safe for concurrent use.
type StateObserver func(workerID int, from, to WorkerState)
