package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobEventKind string

const (
	JobEventCreated        JobEventKind = "created"
	JobEventRequeued       JobEventKind = "requeued"
	JobEventRetryScheduled JobEventKind = "retry_scheduled"
	JobEventSucceeded      JobEventKind = "succeeded"
	JobEventFailed         JobEventKind = "failed"
	JobEventExhausted      JobEventKind = "exhausted"
)

// JobRunEvent is an append-only ledger of job transitions, so operators can see
// every attempt of a financial job after the fact.
type JobRunEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	JobType   string    `gorm:"column:job_type;not null;index" json:"job_type"`
	Kind      string    `gorm:"column:kind;not null;index" json:"kind"`
	Status    string    `gorm:"column:status;not null" json:"status"`
	Attempt   int       `gorm:"column:attempt;not null" json:"attempt"`
	Message   string    `gorm:"column:message;type:text" json:"message,omitempty"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (JobRunEvent) TableName() string { return "job_run_event" }

func (e *JobRunEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
