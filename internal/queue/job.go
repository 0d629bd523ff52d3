package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType identifies which registered handler processes a job.
type JobType string

const (
	JobTypeOutboundAction JobType = "outbound-action"
	JobTypeLowScoreAlert  JobType = "low-score-alert"
)

// Job is one unit of deferred work. Jobs are serialized whole into the
// pending sorted set; the member is the JSON encoding and the score is the
// ScheduledAt unix time.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LastError   string          `json:"last_error,omitempty"`
	TraceID     string          `json:"trace_id,omitempty"`
}

func (j Job) encode() (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encoding job: %w", err)
	}
	return string(data), nil
}

func decodeJob(member string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(member), &job); err != nil {
		return Job{}, fmt.Errorf("decoding job: %w", err)
	}
	if job.ID == "" || job.Type == "" {
		return Job{}, fmt.Errorf("job missing id or type")
	}
	return job, nil
}
