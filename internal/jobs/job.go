package jobs

import (
	"errors"
	"time"
)

// State is a job's position in Pending -> Running -> {Succeeded, Failed}.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

const (
	KindCancelled = "Cancelled"
	KindUnknown   = "UnknownError"
)

// Result is what a successful job produced.
type Result struct {
	Prompt   string `json:"prompt"`
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	// Payload carries use-case output that later jobs build on. It is not
	// serialized.
	Payload any `json:"-"`
}

type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job is a point-in-time snapshot of one submitted job.
type Job struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Owner           string     `json:"-"`
	Lease           string     `json:"-"`
	State           State      `json:"state"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Result          *Result    `json:"result,omitempty"`
	Error           *JobError  `json:"error,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
}

// snapshot copies the job so callers never share memory with the table.
func (j Job) snapshot() Job {
	out := j
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		out.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	return out
}

// errorFrom keeps the kind of errors that carry one.
func errorFrom(err error) *JobError {
	var k interface{ ErrorKind() string }
	if errors.As(err, &k) {
		return &JobError{Kind: k.ErrorKind(), Message: err.Error()}
	}
	return &JobError{Kind: KindUnknown, Message: err.Error()}
}
