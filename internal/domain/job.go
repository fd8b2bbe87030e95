package domain

import "time"

// JobStatus represents the lifecycle state of a derived-work job.
type JobStatus string

const (
	// JobStatusPending means the job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing means a worker has claimed the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted means the job finished and its result is stored.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed means the job exhausted its attempts.
	JobStatusFailed JobStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
// Failed jobs may only leave the state via an explicit retry, which
// resets them to pending before attempts are exhausted.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is a unit of asynchronous derived work keyed to a ContentRecord.
type Job struct {
	ID              string     `db:"id" json:"id"`
	ContentRecordID string     `db:"content_record_id" json:"content_record_id"`
	Backend         string     `db:"backend" json:"backend"`
	Status          JobStatus  `db:"status" json:"status"`
	Attempts        int        `db:"attempts" json:"attempts"`
	MaxAttempts     int        `db:"max_attempts" json:"max_attempts"`
	Progress        int        `db:"progress" json:"progress"`
	Result          *string    `db:"result" json:"result,omitempty"`
	ErrorMessage    *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
