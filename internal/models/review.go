package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReviewStatus string

const (
	ReviewInProgress ReviewStatus = "IN_PROGRESS"
	ReviewCompleted  ReviewStatus = "COMPLETED"
)

type Review struct {
	ID            string       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ApplicationID string       `gorm:"column:application_id;type:uuid;uniqueIndex:uniq_review_app_reviewer" json:"application_id"`
	ReviewerID    string       `gorm:"column:reviewer_id;type:uuid;uniqueIndex:uniq_review_app_reviewer" json:"reviewer_id"`
	Status        ReviewStatus `gorm:"column:status;type:text" json:"status"`

	// section name -> reviewer comment
	SectionComments datatypes.JSON `gorm:"column:section_comments;type:jsonb" json:"section_comments"`
	Rating          *int           `gorm:"column:rating;type:integer" json:"rating,omitempty"`
	EditSummary     datatypes.JSON `gorm:"column:edit_summary;type:jsonb" json:"edit_summary"`

	EditedPersonalStatement string `gorm:"column:edited_personal_statement;type:text" json:"edited_personal_statement,omitempty"`

	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Review) TableName() string { return "reviews" }

// ReviewView is what an applicant sees once their application has been reviewed.
type ReviewView struct {
	Application *Application `json:"application"`
	Review      *Review      `json:"review"`
}
