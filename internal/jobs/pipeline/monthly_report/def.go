package monthly_report

import (
	"context"

	"github.com/yungbote/charity-iap-backend/internal/modules/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

const JobType = "monthly_report"

type Aggregator interface {
	Run(ctx context.Context, month string) (*reports.Report, error)
}

type Pipeline struct {
	log        *logger.Logger
	aggregator Aggregator
}

func New(baseLog *logger.Logger, aggregator Aggregator) *Pipeline {
	return &Pipeline{
		log:        baseLog.With("job", JobType),
		aggregator: aggregator,
	}
}

func (p *Pipeline) Type() string { return JobType }

func Payload(month string) map[string]any {
	return map[string]any{"month": month}
}

func Key(month string) string { return JobType + ":" + month }

// FinalKey names the later recompute that picks up purchases completed in
// month but validated after its first run.
func FinalKey(month string) string { return Key(month) + ":final" }
