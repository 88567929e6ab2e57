package models

import "time"

// RunStatus is the lifecycle state of a recorded reconciliation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// RunRecord is one row of reconciliation history.
type RunRecord struct {
	ID           string     `json:"id" validate:"required"`
	Sequence     int        `json:"sequence"`
	ContainerID  string     `json:"containerId" validate:"required"`
	Status       RunStatus  `json:"status" validate:"oneof=running completed failed canceled"`
	Statistics   Statistics `json:"statistics"`
	QueriedCount int        `json:"queried"`
	ErrorMessage string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// NewRunRecord starts a record in the running state.
func NewRunRecord(id, containerID string, startedAt time.Time) *RunRecord {
	return &RunRecord{ID: id, ContainerID: containerID, Status: RunRunning, StartedAt: startedAt, Statistics: NewStatistics()}
}

// Complete moves the record to a terminal state. A nil err means completed.
func (r *RunRecord) Complete(stats Statistics, queried int, err error, canceled bool, at time.Time) {
	r.Statistics = stats
	r.QueriedCount = queried
	r.CompletedAt = &at
	switch {
	case canceled:
		r.Status = RunCanceled
	case err != nil:
		r.Status = RunFailed
	default:
		r.Status = RunCompleted
	}
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}
