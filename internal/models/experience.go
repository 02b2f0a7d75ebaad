package models

import "time"

type ExperienceCategory string

const (
	CategoryWork         ExperienceCategory = "WORK"
	CategoryVolunteer    ExperienceCategory = "VOLUNTEER"
	CategoryResearch     ExperienceCategory = "RESEARCH"
	CategoryEducation    ExperienceCategory = "EDUCATION"
	CategoryPublication  ExperienceCategory = "PUBLICATION"
	CategoryPresentation ExperienceCategory = "PRESENTATION"
	CategoryTeaching     ExperienceCategory = "TEACHING"
	CategoryLeadership   ExperienceCategory = "LEADERSHIP"
	CategoryOther        ExperienceCategory = "OTHER"
)

func (c ExperienceCategory) Valid() bool {
	switch c {
	case CategoryWork, CategoryVolunteer, CategoryResearch, CategoryEducation, CategoryPublication,
		CategoryPresentation, CategoryTeaching, CategoryLeadership, CategoryOther:
		return true
	}
	return false
}

// ERAS limits
const (
	MaxExperiences                = 10
	MaxMostMeaningful             = 3
	MaxExperienceDescriptionChars = 1020
	MaxMostMeaningfulChars        = 300
)

type Experience struct {
	ID            string             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ApplicationID string             `gorm:"column:application_id;type:uuid;index" json:"application_id"`
	Title         string             `gorm:"column:title;type:text" json:"title"`
	Organization  string             `gorm:"column:organization;type:text" json:"organization"`
	Category      ExperienceCategory `gorm:"column:category;type:text" json:"category"`

	StartDate *time.Time `gorm:"column:start_date;type:date" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"column:end_date;type:date" json:"end_date,omitempty"`
	Ongoing   bool       `gorm:"column:ongoing" json:"ongoing"`

	Description          string `gorm:"column:description;type:text" json:"description"`
	DescriptionCharCount int    `gorm:"column:description_char_count;type:integer" json:"description_char_count"`

	MostMeaningful bool   `gorm:"column:most_meaningful" json:"most_meaningful"`
	MMDescription  string `gorm:"column:mm_description;type:text" json:"mm_description,omitempty"`

	Position  int       `gorm:"column:position;type:integer" json:"position"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Experience) TableName() string { return "experiences" }

func (e *Experience) SetDescription(text string) {
	e.Description = text
	e.DescriptionCharCount = CharCount(text)
}
