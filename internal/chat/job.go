package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job tracks one asynchronous assistant reply. The user turn is persisted
// at enqueue time; the worker only produces the assistant turn.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID      uint   `gorm:"index:uniq_chat_job_idempo,unique,priority:1;not null" json:"-"`
	CharacterID string `gorm:"type:varchar(36);index;not null" json:"characterId"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_chat_job_idempo,unique,priority:2" json:"-"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultMessageID *string `gorm:"type:varchar(36)" json:"resultMessageId,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Job) TableName() string { return "chat_jobs" }
