package services

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/models"
	pgrepo "github.com/yoockh/erasreview/internal/repositories/postgres"
	"github.com/yoockh/erasreview/internal/storage"
	"github.com/yoockh/erasreview/internal/utils"
)

const MaxDocumentBytes = 10 << 20

var allowedDocumentTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/msword": true,
	"text/plain":         true,
}

type UploadInput struct {
	FileName string
	MimeType string
	Size     int
	DocType  models.DocumentType
	Content  string // optional extracted text
	Body     io.Reader
}

type DocumentService interface {
	Upload(ctx context.Context, appID string, actor models.Principal, in UploadInput) (*models.Document, error)
	List(ctx context.Context, appID string, actor models.Principal) ([]models.Document, error)
	Delete(ctx context.Context, appID, docID string, actor models.Principal) error
}

type documentService struct {
	store pgrepo.Store
	blobs storage.BlobStore
	log   *logrus.Logger
}

func NewDocumentService(store pgrepo.Store, blobs storage.BlobStore, log *logrus.Logger) DocumentService {
	return &documentService{store: store, blobs: blobs, log: log}
}

// application loads appID as seen by actor: owners see their own, admins see all.
func (s *documentService) application(ctx context.Context, appID string, actor models.Principal) (*models.Application, error) {
	if actor.IsAdmin() {
		return s.store.Applications().GetDetailed(ctx, appID)
	}
	return s.store.Applications().GetOwned(ctx, appID, actor.UserID)
}

func (s *documentService) Upload(ctx context.Context, appID string, actor models.Principal, in UploadInput) (*models.Document, error) {
	const op = "DocumentService.Upload"

	if in.Body == nil || strings.TrimSpace(in.FileName) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file is required", nil)
	}
	if in.Size <= 0 || in.Size > MaxDocumentBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file must be between 1 byte and 10MB", nil)
	}
	if !allowedDocumentTypes[in.MimeType] {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unsupported file type", nil)
	}
	if in.DocType == "" {
		in.DocType = models.DocOther
	}
	if !in.DocType.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid doc_type", nil)
	}
	if s.blobs == nil {
		return nil, utils.E(utils.CodeInternal, op, "blob store is not configured", nil)
	}

	app, err := s.application(ctx, appID, actor)
	if err != nil {
		return nil, repoErr(op, "failed to load application", err)
	}
	if !actor.IsAdmin() && app.Status != models.StatusDraft {
		return nil, utils.E(utils.CodeInvalidState, op, "documents can only be added while the application is a draft", nil)
	}

	docID := uuid.NewString()
	name := filepath.Base(in.FileName)
	storedPath, err := s.blobs.Upload(ctx, storage.ObjectName(app.UserID, app.ID, docID, name), in.MimeType, in.Body)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload file", err)
	}

	row := &models.Document{
		ID:            docID,
		ApplicationID: app.ID,
		UserID:        app.UserID,
		FileName:      name,
		StoragePath:   storedPath,
		MimeType:      in.MimeType,
		FileSize:      in.Size,
		DocType:       in.DocType,
		Content:       in.Content,
		UploadedBy:    actor.UserID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.Documents().Insert(ctx, row); err != nil {
		if derr := s.blobs.Delete(ctx, storedPath); derr != nil {
			s.log.WithError(derr).WithField("path", storedPath).Warn("orphan blob cleanup failed")
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to persist document metadata", err)
	}

	return row, nil
}

func (s *documentService) List(ctx context.Context, appID string, actor models.Principal) ([]models.Document, error) {
	const op = "DocumentService.List"

	if _, err := s.application(ctx, appID, actor); err != nil {
		return nil, repoErr(op, "failed to load application", err)
	}
	docs, err := s.store.Documents().ListByApplication(ctx, appID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list documents", err)
	}
	return docs, nil
}

func (s *documentService) Delete(ctx context.Context, appID, docID string, actor models.Principal) error {
	const op = "DocumentService.Delete"

	app, err := s.application(ctx, appID, actor)
	if err != nil {
		return repoErr(op, "failed to load application", err)
	}
	if !actor.IsAdmin() && app.Status != models.StatusDraft {
		return utils.E(utils.CodeInvalidState, op, "documents can only be removed while the application is a draft", nil)
	}

	doc, err := s.store.Documents().Get(ctx, appID, docID)
	if err != nil {
		return repoErr(op, "failed to load document", err)
	}
	if err := s.store.Documents().Delete(ctx, appID, docID); err != nil {
		return repoErr(op, "failed to delete document", err)
	}
	if s.blobs != nil {
		if err := s.blobs.Delete(ctx, doc.StoragePath); err != nil {
			s.log.WithError(err).WithField("document_id", docID).Warn("blob delete failed")
		}
	}
	return nil
}
