package runtime

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

/*
Context is the execution handle for a single claimed job attempt.
It wraps:
  - the request context (timeouts, cancellation)
  - the job_run row as claimed
  - the only sanctioned ways to finish an attempt (Succeed, Retry, Exhaust, Fail)

Handlers never write job_run directly. Every terminal or retry transition also
appends a job_run_event so the attempt history survives.
*/
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *types.JobRun
	Repo   repos.JobRunRepo
	Events repos.JobRunEventRepo
	Log    *logger.Logger

	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, events repos.JobRunEventRepo, log *logger.Logger) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Events: events,
		Log:    log,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	if c.Log != nil && job != nil {
		c.Log = c.Log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	}
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil {
		return
	}
	if td := ctxutil.FromPayload(c.Payload()); td != nil {
		c.Ctx = ctxutil.WithTraceData(c.Ctx, td)
	}
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := c.PayloadString(key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	// Finishing writes must land even when the attempt's context was canceled.
	return context.WithoutCancel(c.Ctx)
}

func (c *Context) Heartbeat() {
	if c == nil || c.Repo == nil || c.Job == nil {
		return
	}
	_ = c.Repo.Heartbeat(dbctx.Context{Ctx: c.context()}, c.Job.ID)
}

// Succeed stores the result and closes the job.
func (c *Context) Succeed(finalStage string, result any) {
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	now := time.Now().UTC()
	c.transition(types.JobStatusSucceeded, types.JobEventSucceeded, finalStage, "", map[string]interface{}{
		"result":       res,
		"error":        "",
		"next_run_at":  nil,
		"locked_at":    nil,
		"heartbeat_at": now,
	})
	if c.Job != nil {
		c.Job.Result = res
		c.Job.Error = ""
	}
}

// Retry schedules another attempt after delay.
func (c *Context) Retry(err error, delay time.Duration) {
	now := time.Now().UTC()
	next := now.Add(delay)
	msg := errString(err)
	c.transition(types.JobStatusRetrying, types.JobEventRetryScheduled, "retrying",
		fmt.Sprintf("%s (next attempt in %s)", msg, delay),
		map[string]interface{}{
			"error":         msg,
			"last_error_at": now,
			"next_run_at":   next,
			"locked_at":     nil,
		})
	if c.Job != nil {
		c.Job.Error = msg
		c.Job.NextRunAt = &next
	}
}

// Exhaust closes a job whose retries ran out. It stays visible for manual review.
func (c *Context) Exhaust(err error) {
	c.finishWithError(types.JobStatusExhausted, types.JobEventExhausted, "exhausted", err)
}

// Fail closes a job on a non-retryable error.
func (c *Context) Fail(stage string, err error) {
	c.finishWithError(types.JobStatusFailed, types.JobEventFailed, stage, err)
}

func (c *Context) finishWithError(status string, kind types.JobEventKind, stage string, err error) {
	now := time.Now().UTC()
	msg := errString(err)
	c.transition(status, kind, stage, msg, map[string]interface{}{
		"error":         msg,
		"last_error_at": now,
		"next_run_at":   nil,
		"locked_at":     nil,
	})
	if c.Job != nil {
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
	}
}

// transition writes status/stage plus extra fields, guarded so a job that has
// already reached a terminal state is never reopened by a late writer.
func (c *Context) transition(status string, kind types.JobEventKind, stage, message string, extra map[string]interface{}) {
	if c == nil || c.Job == nil {
		return
	}
	ctx := c.context()
	updates := map[string]interface{}{
		"status":     status,
		"stage":      stage,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	if c.Repo != nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID,
			[]string{types.JobStatusSucceeded, types.JobStatusFailed, types.JobStatusExhausted}, updates)
		if err != nil {
			if c.Log != nil {
				c.Log.Error("job transition write failed", "status", status, "error", err)
			}
			return
		}
		if !ok {
			return
		}
	}
	c.Job.Status = status
	c.Job.Stage = stage
	if c.Events != nil {
		if err := c.Events.Append(dbctx.Context{Ctx: ctx}, c.Job, kind, message); err != nil && c.Log != nil {
			c.Log.Warn("job event append failed", "kind", kind, "error", err)
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (c *Context) finished() bool {
	if c == nil || c.Job == nil {
		return true
	}
	return types.IsTerminalJobStatus(c.Job.Status)
}
