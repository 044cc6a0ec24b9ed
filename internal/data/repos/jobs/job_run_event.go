package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

type JobRunEventRepo interface {
	Append(dbc dbctx.Context, job *types.JobRun, kind types.JobEventKind, message string) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.JobRunEvent, error)
}

type jobRunEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return &jobRunEventRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunEventRepo"),
	}
}

func (r *jobRunEventRepo) Append(dbc dbctx.Context, job *types.JobRun, kind types.JobEventKind, message string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if job == nil {
		return nil
	}
	ev := &types.JobRunEvent{
		JobID:     job.ID,
		JobType:   job.JobType,
		Kind:      string(kind),
		Status:    job.Status,
		Attempt:   job.Attempts,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	return transaction.WithContext(dbc.Ctx).Create(ev).Error
}

func (r *jobRunEventRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.JobRunEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRunEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
