package domain

import (
	"github.com/yungbote/charity-iap-backend/internal/domain/billing"
	"github.com/yungbote/charity-iap-backend/internal/domain/jobs"
)

const (
	PurchaseStatusPendingValidation = billing.PurchaseStatusPendingValidation
	PurchaseStatusCompleted         = billing.PurchaseStatusCompleted
	PurchaseStatusFailed            = billing.PurchaseStatusFailed

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusRetrying  = jobs.StatusRetrying
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusExhausted = jobs.StatusExhausted

	JobEventCreated        = jobs.JobEventCreated
	JobEventRequeued       = jobs.JobEventRequeued
	JobEventRetryScheduled = jobs.JobEventRetryScheduled
	JobEventSucceeded      = jobs.JobEventSucceeded
	JobEventFailed         = jobs.JobEventFailed
	JobEventExhausted      = jobs.JobEventExhausted
)

type (
	Purchase        = billing.Purchase
	Charity         = billing.Charity
	CharityDonation = billing.CharityDonation
	MonthlyReport   = billing.MonthlyReport

	JobRun       = jobs.JobRun
	JobRunEvent  = jobs.JobRunEvent
	JobEventKind = jobs.JobEventKind
)

func IsTerminalJobStatus(status string) bool { return jobs.IsTerminalStatus(status) }
