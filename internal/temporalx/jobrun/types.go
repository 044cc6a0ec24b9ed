package jobrun

const (
	WorkflowName    = "job_run"
	ActivityAttempt = "job_run_attempt"
)

type Input struct {
	JobID       string `json:"job_id"`
	MaxAttempts int    `json:"max_attempts"`
}

type AttemptResult struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Stage   string `json:"stage,omitempty"`
	Attempt int    `json:"attempt"`
}
