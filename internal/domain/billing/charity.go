package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Charity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Active    bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Charity) TableName() string { return "charity" }

func (c *Charity) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CharityDonation is the donation share of one completed purchase. PurchaseID is
// unique, so a purchase can contribute at most once.
type CharityDonation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"purchase_id"`
	CharityID     uuid.UUID `gorm:"type:uuid;not null;index" json:"charity_id"`
	DonationCents int64     `gorm:"column:donation_cents;not null" json:"donation_cents"`
	RecordedAt    time.Time `gorm:"column:recorded_at;not null;index" json:"recorded_at"`
}

func (CharityDonation) TableName() string { return "charity_donation" }

func (d *CharityDonation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
