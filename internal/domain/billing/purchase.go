package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PurchaseStatusPendingValidation = "pending_validation"
	PurchaseStatusCompleted         = "completed"
	PurchaseStatusFailed            = "failed"
)

// Purchase is one in-app purchase awaiting or past store validation. Exactly one
// of ReceiptData / TransactionJWS carries the proof of payment.
type Purchase struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	CharityID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"charity_id"`
	ProductID          string     `gorm:"column:product_id;not null" json:"product_id"`
	AppleTransactionID *string    `gorm:"column:apple_transaction_id;uniqueIndex" json:"apple_transaction_id,omitempty"`
	ReceiptData        *string    `gorm:"column:receipt_data;type:text" json:"-"`
	TransactionJWS     *string    `gorm:"column:transaction_jws;type:text" json:"-"`
	GrossCents         int64      `gorm:"column:gross_cents;not null" json:"gross_cents"`
	AppleFeeCents      int64      `gorm:"column:apple_fee_cents;not null;default:0" json:"apple_fee_cents"`
	NetCents           int64      `gorm:"column:net_cents;not null;default:0" json:"net_cents"`
	DonationCents      int64      `gorm:"column:donation_cents;not null;default:0" json:"donation_cents"`
	Status             string     `gorm:"column:status;not null;index" json:"status"`
	FailureReason      *string    `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`
	CompletedAt        *time.Time `gorm:"column:completed_at;index" json:"completed_at,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updated_at"`
}

func (Purchase) TableName() string { return "purchase" }

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PurchaseStatusPendingValidation
	}
	return nil
}

func (p *Purchase) IsPending() bool {
	return p != nil && p.Status == PurchaseStatusPendingValidation
}
