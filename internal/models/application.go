package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type ApplicationStatus string

const (
	StatusDraft     ApplicationStatus = "DRAFT"
	StatusSubmitted ApplicationStatus = "SUBMITTED" // legacy alias of IN_REVIEW, never written by Submit
	StatusInReview  ApplicationStatus = "IN_REVIEW"
	StatusReviewed  ApplicationStatus = "REVIEWED"
	StatusCompleted ApplicationStatus = "COMPLETED"
)

// PendingStatuses are the statuses that count as "waiting for review".
var PendingStatuses = []ApplicationStatus{StatusInReview, StatusSubmitted}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusInReview, StatusReviewed, StatusCompleted:
		return true
	}
	return false
}

func (s ApplicationStatus) IsPending() bool {
	return s == StatusInReview || s == StatusSubmitted
}

// HasReview reports whether the owner may see the review view.
func (s ApplicationStatus) HasReview() bool {
	return s == StatusReviewed || s == StatusCompleted
}

var transitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:     {StatusInReview, StatusSubmitted},
	StatusSubmitted: {StatusInReview, StatusReviewed},
	StatusInReview:  {StatusReviewed},
	StatusReviewed:  {StatusCompleted},
}

// CanTransition is the only transition graph for Application.Status.
func CanTransition(from, to ApplicationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type PackageTier string

const (
	TierEssential     PackageTier = "essential"
	TierComprehensive PackageTier = "comprehensive"
	TierPremium       PackageTier = "premium"
)

type TierInfo struct {
	Name        string
	AmountCents int64
}

var tiers = map[PackageTier]TierInfo{
	TierEssential:     {Name: "ERAS Essential Review", AmountCents: 14900},
	TierComprehensive: {Name: "ERAS Comprehensive Review", AmountCents: 24900},
	TierPremium:       {Name: "ERAS Premium Review", AmountCents: 39900},
}

func (t PackageTier) Valid() bool {
	_, ok := tiers[t]
	return ok
}

func (t PackageTier) Info() (TierInfo, bool) {
	info, ok := tiers[t]
	return info, ok
}

const MaxPersonalStatementChars = 28000

type Application struct {
	ID          string            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      string            `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	PackageTier PackageTier       `gorm:"column:package_tier;type:text" json:"package_tier"`
	Status      ApplicationStatus `gorm:"column:status;type:text;index" json:"status"`
	Title       string            `gorm:"column:title;type:text" json:"title"`

	PersonalStatement string `gorm:"column:personal_statement;type:text" json:"personal_statement"`
	PSWordCount       int    `gorm:"column:ps_word_count;type:integer" json:"ps_word_count"`
	PSCharCount       int    `gorm:"column:ps_char_count;type:integer" json:"ps_char_count"`

	ProgramSignals    datatypes.JSON `gorm:"column:program_signals;type:jsonb" json:"program_signals"`
	TargetSpecialties pq.StringArray `gorm:"column:target_specialties;type:text[]" json:"target_specialties"`

	SubmittedAt *time.Time `gorm:"column:submitted_at;type:timestamptz" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at;type:timestamptz" json:"reviewed_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`

	Experiences []Experience `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"experiences,omitempty"`
	Documents   []Document   `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
}

func (Application) TableName() string { return "applications" }

// SetPersonalStatement stores the text together with its derived counts.
func (a *Application) SetPersonalStatement(text string) {
	a.PersonalStatement = text
	a.PSWordCount = WordCount(text)
	a.PSCharCount = CharCount(text)
}

// StampStatus records the lifecycle timestamp belonging to the new status.
func (a *Application) StampStatus(to ApplicationStatus, at time.Time) {
	a.Status = to
	a.UpdatedAt = at
	switch to {
	case StatusInReview, StatusSubmitted:
		a.SubmittedAt = &at
	case StatusReviewed:
		a.ReviewedAt = &at
	case StatusCompleted:
		a.CompletedAt = &at
	}
}

type StatusEvent struct {
	ID            string            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ApplicationID string            `gorm:"column:application_id;type:uuid;index" json:"application_id"`
	FromStatus    ApplicationStatus `gorm:"column:from_status;type:text" json:"from_status"`
	ToStatus      ApplicationStatus `gorm:"column:to_status;type:text" json:"to_status"`
	ActorID       string            `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	Override      bool              `gorm:"column:override" json:"override"`
	Note          string            `gorm:"column:note;type:text" json:"note,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (StatusEvent) TableName() string { return "application_status_events" }
