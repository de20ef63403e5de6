package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusStreaming JobStatus = "streaming"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Message is one role/content pair as submitted by the browser.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Job is the unit of work handed from the HTTP layer to the worker.
// Status transitions are monotonic: pending -> streaming -> completed|failed.
type Job struct {
	ID                string
	Messages          []Message
	Model             string
	Temperature       float64
	DeployedResources map[string]ResourceConfig
	Status            JobStatus
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewJob(id, modelName string, temperature float64, messages []Message, resources map[string]ResourceConfig) *Job {
	now := time.Now()
	return &Job{
		ID:                id,
		Messages:          messages,
		Model:             modelName,
		Temperature:       temperature,
		DeployedResources: resources,
		Status:            JobStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// MarkStreaming records worker pickup. Only a pending job can enter streaming.
func (j *Job) MarkStreaming() bool {
	if j.Status != JobStatusPending {
		return false
	}
	j.Status = JobStatusStreaming
	j.UpdatedAt = time.Now()
	return true
}

// Complete marks normal termination of the upstream call.
func (j *Job) Complete() bool {
	if j.Status != JobStatusStreaming {
		return false
	}
	j.Status = JobStatusCompleted
	j.UpdatedAt = time.Now()
	return true
}

// Fail records the upstream failure message. Terminal states never regress.
func (j *Job) Fail(msg string) bool {
	if j.Status != JobStatusStreaming && j.Status != JobStatusPending {
		return false
	}
	j.Status = JobStatusFailed
	j.LastError = msg
	j.UpdatedAt = time.Now()
	return true
}

func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
