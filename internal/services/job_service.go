package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/charity-iap-backend/internal/data/repos"
	types "github.com/yungbote/charity-iap-backend/internal/domain"
	"github.com/yungbote/charity-iap-backend/internal/platform/ctxutil"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

// JobDispatcher hands a stored job to an external scheduler. When none is
// configured the DB worker pool picks jobs up on its own.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *types.JobRun) error
}

type EnqueueRequest struct {
	JobType    string
	EntityType string
	EntityID   *uuid.UUID
	Payload    map[string]any
	// JobKey dedupes enqueues; the first writer wins.
	JobKey      string
	MaxAttempts int
	// Requeue resets a terminal job found under JobKey so it runs again.
	Requeue bool
}

type JobService interface {
	// Enqueue stores the job and reports whether an existing job was returned
	// instead of a new one.
	Enqueue(dbc dbctx.Context, req EnqueueRequest) (*types.JobRun, bool, error)
	Dispatch(dbc dbctx.Context, job *types.JobRun) error
	Get(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, []*types.JobRunEvent, error)
}

type jobService struct {
	db          *gorm.DB
	log         *logger.Logger
	repo        repos.JobRunRepo
	events      repos.JobRunEventRepo
	dispatcher  JobDispatcher
	maxAttempts int
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	events repos.JobRunEventRepo,
	dispatcher JobDispatcher,
	maxAttempts int,
) JobService {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &jobService{
		db:          db,
		log:         baseLog.With("service", "JobService"),
		repo:        repo,
		events:      events,
		dispatcher:  dispatcher,
		maxAttempts: maxAttempts,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, req EnqueueRequest) (*types.JobRun, bool, error) {
	if strings.TrimSpace(req.JobType) == "" {
		return nil, false, fmt.Errorf("missing job_type")
	}
	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	ctxutil.GetTraceData(dbc.Ctx).Stamp(payload)
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("encode payload: %w", err)
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = s.maxAttempts
	}
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		JobType:     req.JobType,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		MaxAttempts: maxAttempts,
		Payload:     datatypes.JSON(b),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if key := strings.TrimSpace(req.JobKey); key != "" {
		job.JobKey = &key
	}

	stored, created, err := s.repo.CreateIfAbsent(dbc, job)
	if err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}
	if created {
		s.appendEvent(dbc, stored, types.JobEventCreated, "")
		s.log.Debug("Job enqueued", "job_id", stored.ID, "job_type", stored.JobType, "job_key", req.JobKey)
		return stored, false, s.dispatchAfterCommit(dbc, stored)
	}

	if !req.Requeue || !types.IsTerminalJobStatus(stored.Status) {
		s.log.Debug("Job deduped", "job_id", stored.ID, "job_key", req.JobKey, "status", stored.Status)
		return stored, true, nil
	}
	ok, err := s.repo.Requeue(dbc, stored.ID)
	if err != nil {
		return nil, true, fmt.Errorf("requeue job: %w", err)
	}
	if ok {
		reloaded, err := s.repo.GetByID(dbc, stored.ID)
		if err != nil {
			return nil, true, err
		}
		if reloaded != nil {
			stored = reloaded
		}
		s.appendEvent(dbc, stored, types.JobEventRequeued, "previous status cleared for re-run")
		s.log.Info("Job requeued", "job_id", stored.ID, "job_key", req.JobKey)
		return stored, true, s.dispatchAfterCommit(dbc, stored)
	}
	return stored, true, nil
}

// dispatchAfterCommit skips dispatch inside a real transaction; the caller
// dispatches once the row is visible.
func (s *jobService) dispatchAfterCommit(dbc dbctx.Context, job *types.JobRun) error {
	if s.dispatcher == nil {
		return nil
	}
	if isDBTransaction(dbc.Tx) {
		s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID)
		return nil
	}
	return s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job)
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

func (s *jobService) Dispatch(dbc dbctx.Context, job *types.JobRun) error {
	if s.dispatcher == nil || job == nil {
		return nil
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.dispatcher.Dispatch(ctx, job)
	if err == nil {
		return nil
	}
	// The row stays queued; a later requeue or dispatch retry can still pick it up.
	s.log.Error("Job dispatch failed", "job_id", job.ID, "job_type", job.JobType, "error", err)
	return fmt.Errorf("dispatch job: %w", err)
}

func (s *jobService) Get(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, []*types.JobRunEvent, error) {
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil || job == nil {
		return nil, nil, err
	}
	events, err := s.events.ListByJob(dbc, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, events, nil
}

func (s *jobService) appendEvent(dbc dbctx.Context, job *types.JobRun, kind types.JobEventKind, msg string) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(dbc, job, kind, msg); err != nil {
		s.log.Warn("job event append failed", "job_id", job.ID, "kind", kind, "error", err)
	}
}
