package orchestrator

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/swanchain/go-swan-sdk/pkg/storage"
)

// TaskState is the status of a task as reported by the orchestrator. States are
// only observed, never enforced locally.
type TaskState string

const (
	StateRequested  TaskState = "Requested"
	StateScheduled  TaskState = "Scheduled"
	StateRunning    TaskState = "Running"
	StateCompleted  TaskState = "Completed"
	StateFailed     TaskState = "Failed"
	StateTerminated TaskState = "Terminated"
)

var knownStates = []TaskState{
	StateRequested,
	StateScheduled,
	StateRunning,
	StateCompleted,
	StateFailed,
	StateTerminated,
}

// ParseTaskState maps a status string onto a known state regardless of case.
// Unknown statuses are kept verbatim.
func ParseTaskState(s string) TaskState {
	s = strings.TrimSpace(s)
	for _, state := range knownStates {
		if strings.EqualFold(s, string(state)) {
			return state
		}
	}
	return TaskState(s)
}

func (s TaskState) Finished() bool {
	switch s {
	case StateCompleted, StateFailed, StateTerminated:
		return true
	}
	return false
}

func (s TaskState) Known() bool {
	return slices.Contains(knownStates, s)
}

func (s *TaskState) UnmarshalJSON(data []byte) error {
	var raw string
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}
	*s = ParseTaskState(raw)
	return nil
}

// Task is a read-only projection of the remote task.
type Task struct {
	UUID      string       `json:"uuid"`
	Name      string       `json:"name"`
	Status    TaskState    `json:"status"`
	Duration  int64        `json:"duration"`
	StartIn   int64        `json:"start_in"`
	EndAt     int64        `json:"end_at"`
	TxHash    *string      `json:"tx_hash"`
	SourceURI string       `json:"job_source_uri"`
	Detail    TaskDetail   `json:"task_detail"`
	CreatedAt storage.Time `json:"created_at"`
	UpdatedAt storage.Time `json:"updated_at"`
}

type TaskDetail struct {
	Hardware string `json:"hardware"`
	Region   string `json:"region"`
}

type Job struct {
	UUID     string    `json:"uuid"`
	Status   TaskState `json:"status"`
	RealURI  string    `json:"job_real_uri"`
	Hardware string    `json:"hardware"`
}

type DeploymentInfo struct {
	Task Task  `json:"task"`
	Jobs []Job `json:"jobs"`
}

// RealURLs returns the public URLs of the task's jobs that have one.
func (d *DeploymentInfo) RealURLs() []string {
	urls := make([]string, 0, len(d.Jobs))
	for _, job := range d.Jobs {
		if len(job.RealURI) > 0 {
			urls = append(urls, job.RealURI)
		}
	}
	return urls
}

type Payment struct {
	TaskUUID string  `json:"task_uuid"`
	Amount   float64 `json:"amount"`
	TxHash   *string `json:"tx_hash"`
	Status   string  `json:"status"`
}
