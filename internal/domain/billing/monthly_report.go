package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MonthlyReport stores the aggregation for one UTC month ("YYYY-MM"). It is
// derived data and is overwritten on every run.
type MonthlyReport struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Month       string         `gorm:"column:month;not null;uniqueIndex" json:"month"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	GeneratedAt time.Time      `gorm:"column:generated_at;not null" json:"generated_at"`
}

func (MonthlyReport) TableName() string { return "monthly_report" }

func (r *MonthlyReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
