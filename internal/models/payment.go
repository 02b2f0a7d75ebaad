package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
)

type Payment struct {
	ID              string        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          string        `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	ApplicationID   *string       `gorm:"column:application_id;type:uuid" json:"application_id,omitempty"`
	PackageTier     PackageTier   `gorm:"column:package_tier;type:text" json:"package_tier"`
	AmountCents     int64         `gorm:"column:amount_cents;type:bigint" json:"amount_cents"`
	Currency        string        `gorm:"column:currency;type:text" json:"currency"`
	ExternalID      string        `gorm:"column:external_id;type:text;uniqueIndex" json:"external_id"`
	PaymentIntentID string        `gorm:"column:payment_intent_id;type:text" json:"payment_intent_id,omitempty"`
	Status          PaymentStatus `gorm:"column:status;type:text" json:"status"`
	CreatedAt       time.Time     `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// ProcessedEvent marks a payment-processor webhook event as consumed.
type ProcessedEvent struct {
	EventID     string    `gorm:"column:event_id;type:text;primaryKey" json:"event_id"`
	Type        string    `gorm:"column:type;type:text" json:"type"`
	ProcessedAt time.Time `gorm:"column:processed_at;type:timestamptz" json:"processed_at"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }

// PaymentConfirmation is a processor-agnostic "this payment succeeded" record.
type PaymentConfirmation struct {
	ExternalID      string
	PaymentIntentID string
	UserID          string
	PackageTier     PackageTier
	AmountCents     int64
	Currency        string
}
