package models

import "time"

type DocumentType string

const (
	DocPersonalStatement DocumentType = "PERSONAL_STATEMENT"
	DocCV                DocumentType = "CV"
	DocTranscript        DocumentType = "TRANSCRIPT"
	DocLetter            DocumentType = "LETTER"
	DocOther             DocumentType = "OTHER"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocPersonalStatement, DocCV, DocTranscript, DocLetter, DocOther:
		return true
	}
	return false
}

type Document struct {
	ID            string       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ApplicationID string       `gorm:"column:application_id;type:uuid;index" json:"application_id"`
	UserID        string       `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	FileName      string       `gorm:"column:file_name;type:text" json:"file_name"`
	StoragePath   string       `gorm:"column:storage_path;type:text" json:"storage_path"`
	MimeType      string       `gorm:"column:mime_type;type:text" json:"mime_type"`
	FileSize      int          `gorm:"column:file_size;type:integer" json:"file_size"`
	DocType       DocumentType `gorm:"column:doc_type;type:text" json:"doc_type"`
	Content       string       `gorm:"column:content;type:text" json:"content,omitempty"`
	UploadedBy    string       `gorm:"column:uploaded_by;type:uuid" json:"uploaded_by"`
	CreatedAt     time.Time    `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Document) TableName() string { return "documents" }
