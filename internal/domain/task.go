package domain

import "time"

// TaskMode enumerates supported generation modes.
type TaskMode string

const (
	ModeTextToVideo  TaskMode = "text2video"
	ModeImageToVideo TaskMode = "image2video"
	ModeEdit         TaskMode = "edit"
)

// TaskState enumerates task lifecycle states.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateSubmitted TaskState = "submitted"
	StateRunning   TaskState = "running"
	StateSucceeded TaskState = "succeeded"
	StateFailed    TaskState = "failed"
)

// Terminal reports whether no further transitions may occur from s.
func (s TaskState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// stateRank orders states along the only legal path
// pending -> submitted -> running -> succeeded|failed.
func stateRank(s TaskState) int {
	switch s {
	case StatePending:
		return 0
	case StateSubmitted:
		return 1
	case StateRunning:
		return 2
	case StateSucceeded, StateFailed:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether moving from -> to keeps the lifecycle
// monotonic. Staying in running across polls counts as allowed.
func CanTransition(from, to TaskState) bool {
	if from.Terminal() {
		return false
	}
	if from == to {
		return from == StateRunning
	}
	return stateRank(to) > stateRank(from)
}

// TaskInput carries the user-provided content for a generation request.
// Exactly the fields matching the mode are required; the rest stay empty.
type TaskInput struct {
	Prompt   string `json:"prompt,omitempty"`
	ImageRef string `json:"image_ref,omitempty"`
	VideoRef string `json:"video_ref,omitempty"`
}

// TaskParams holds the validated generation parameters.
type TaskParams struct {
	Ratio     string `json:"ratio"`
	Duration  int    `json:"duration"`
	Watermark bool   `json:"watermark,omitempty"`
	Enhance   bool   `json:"enhance,omitempty"`
}

// TaskError describes a terminal failure recorded on the task.
type TaskError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Task is one generation request and its tracked lifecycle. State is
// mutated only by the lifecycle manager; everything else is set once.
type Task struct {
	ID             string     `json:"id"`
	Mode           TaskMode   `json:"mode"`
	Input          TaskInput  `json:"input"`
	Params         TaskParams `json:"params"`
	State          TaskState  `json:"state"`
	Progress       string     `json:"progress,omitempty"`
	EnhancedPrompt string     `json:"enhanced_prompt,omitempty"`
	RemoteJobRef   string     `json:"remote_job_ref,omitempty"`
	ResultRef      string     `json:"result_ref,omitempty"`
	Error          *TaskError `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SubmittedAt    time.Time  `json:"submitted_at,omitzero"`
	CompletedAt    time.Time  `json:"completed_at,omitzero"`
}

// Clone returns a snapshot safe to hand to readers while the owning
// goroutine keeps mutating the original.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Error != nil {
		e := *t.Error
		cp.Error = &e
	}
	return &cp
}
