package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/metrics"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/notify"
	pgrepo "github.com/yoockh/erasreview/internal/repositories/postgres"
	"github.com/yoockh/erasreview/internal/storage"
	"github.com/yoockh/erasreview/internal/utils"
	"gorm.io/datatypes"
)

type CreateApplicationInput struct {
	Title string `json:"title"`
}

// UpdateDraftInput holds optional fields; nil means "leave as is".
type UpdateDraftInput struct {
	Title             *string         `json:"title"`
	PersonalStatement *string         `json:"personal_statement"`
	ProgramSignals    json.RawMessage `json:"program_signals"`
	TargetSpecialties []string        `json:"target_specialties"`
}

type ExperienceInput struct {
	Title          string                    `json:"title"`
	Organization   string                    `json:"organization"`
	Category       models.ExperienceCategory `json:"category"`
	StartDate      *time.Time                `json:"start_date"`
	EndDate        *time.Time                `json:"end_date"`
	Ongoing        bool                      `json:"ongoing"`
	Description    string                    `json:"description"`
	MostMeaningful bool                      `json:"most_meaningful"`
	MMDescription  string                    `json:"mm_description"`
	Position       *int                      `json:"position"`
}

type ApplicationService interface {
	Create(ctx context.Context, userID string, in CreateApplicationInput) (*models.Application, error)
	Get(ctx context.Context, id, userID string) (*models.Application, error)
	ListMine(ctx context.Context, userID string) ([]models.Application, error)
	UpdateDraft(ctx context.Context, id, userID string, in UpdateDraftInput) (*models.Application, error)
	Submit(ctx context.Context, id, userID string) (*models.Application, error)
	Delete(ctx context.Context, id, userID string) error

	AddExperience(ctx context.Context, appID, userID string, in ExperienceInput) (*models.Experience, error)
	UpdateExperience(ctx context.Context, appID, expID, userID string, in ExperienceInput) (*models.Experience, error)
	DeleteExperience(ctx context.Context, appID, expID, userID string) error

	ListAll(ctx context.Context, f pgrepo.ApplicationFilter) ([]models.Application, int64, error)
	AdminGet(ctx context.Context, id string) (*models.Application, error)
	UpdateStatus(ctx context.Context, id, adminID string, to models.ApplicationStatus, override bool, note string) (*models.Application, error)
}

type applicationService struct {
	store    pgrepo.Store
	blobs    storage.BlobStore
	notifier notify.Notifier
	log      *logrus.Logger
	now      func() time.Time
}

func NewApplicationService(store pgrepo.Store, blobs storage.BlobStore, n notify.Notifier, log *logrus.Logger) ApplicationService {
	return &applicationService{
		store:    store,
		blobs:    blobs,
		notifier: n,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// newDraft builds a DRAFT application paid for by p and links p to it.
func newDraft(ctx context.Context, tx pgrepo.Store, p *models.Payment, title string, now time.Time) (*models.Application, error) {
	if title == "" {
		if info, ok := p.PackageTier.Info(); ok {
			title = info.Name
		}
	}
	app := &models.Application{
		ID:                uuid.NewString(),
		UserID:            p.UserID,
		PackageTier:       p.PackageTier,
		Status:            models.StatusDraft,
		Title:             title,
		ProgramSignals:    datatypes.JSON("{}"),
		TargetSpecialties: []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.Applications().Create(ctx, app); err != nil {
		return nil, err
	}
	p.ApplicationID = &app.ID
	if err := tx.Payments().Save(ctx, p); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *applicationService) Create(ctx context.Context, userID string, in CreateApplicationInput) (*models.Application, error) {
	const op = "ApplicationService.Create"

	var app *models.Application
	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		p, err := tx.Payments().FindUnlinkedSucceeded(ctx, userID)
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodePaymentRequired, op, "a completed payment is required to start an application", nil)
		}
		if err != nil {
			return err
		}
		app, err = newDraft(ctx, tx, p, strings.TrimSpace(in.Title), s.now())
		return err
	})
	if err != nil {
		return nil, passAppErr(op, "failed to create application", err)
	}
	return app, nil
}

func (s *applicationService) Get(ctx context.Context, id, userID string) (*models.Application, error) {
	const op = "ApplicationService.Get"

	if _, err := s.store.Applications().GetOwned(ctx, id, userID); err != nil {
		return nil, repoErr(op, "failed to load application", err)
	}
	app, err := s.store.Applications().GetDetailed(ctx, id)
	if err != nil {
		return nil, repoErr(op, "failed to load application", err)
	}
	return app, nil
}

func (s *applicationService) ListMine(ctx context.Context, userID string) ([]models.Application, error) {
	const op = "ApplicationService.ListMine"

	apps, err := s.store.Applications().ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list applications", err)
	}
	return apps, nil
}

func (s *applicationService) UpdateDraft(ctx context.Context, id, userID string, in UpdateDraftInput) (*models.Application, error) {
	const op = "ApplicationService.UpdateDraft"

	if in.PersonalStatement != nil && models.CharCount(*in.PersonalStatement) > models.MaxPersonalStatementChars {
		return nil, utils.E(utils.CodeInvalidArgument, op, "personal statement exceeds 28000 characters", nil)
	}
	if len(in.ProgramSignals) > 0 && !json.Valid(in.ProgramSignals) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "program_signals must be valid JSON", nil)
	}

	app, err := s.store.Applications().GetOwned(ctx, id, userID)
	if err != nil {
		return nil, repoErr(op, "failed to load application", err)
	}
	if app.Status != models.StatusDraft {
		return nil, utils.E(utils.CodeInvalidState, op, "only draft applications can be edited", nil)
	}

	if in.Title != nil {
		app.Title = strings.TrimSpace(*in.Title)
	}
	if in.PersonalStatement != nil {
		app.SetPersonalStatement(*in.PersonalStatement)
	}
	if len(in.ProgramSignals) > 0 {
		app.ProgramSignals = datatypes.JSON(in.ProgramSignals)
	}
	if in.TargetSpecialties != nil {
		app.TargetSpecialties = in.TargetSpecialties
	}

	if err := s.store.Applications().Save(ctx, app); err != nil {
		return nil, repoErr(op, "failed to save application", err)
	}
	return app, nil
}

func (s *applicationService) Submit(ctx context.Context, id, userID string) (*models.Application, error) {
	const op = "ApplicationService.Submit"

	var app *models.Application
	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		// serializes concurrent submits by the same user
		if err := tx.Users().LockForUpdate(ctx, userID); err != nil {
			return err
		}

		var err error
		app, err = tx.Applications().GetOwned(ctx, id, userID)
		if err != nil {
			return err
		}

		other, err := tx.Applications().FindPendingByUser(ctx, userID, id)
		if err == nil {
			return utils.EM(utils.CodeConflict, op, "another application is already in review",
				map[string]any{"existing_application_id": other.ID}, nil)
		}
		if !errors.Is(err, utils.ErrNotFound) {
			return err
		}

		if strings.TrimSpace(app.PersonalStatement) == "" {
			n, err := tx.Applications().CountExperiences(ctx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				return utils.E(utils.CodeInvalidState, op, "add a personal statement or at least one experience before submitting", nil)
			}
		}

		from := app.Status
		if !models.CanTransition(from, models.StatusInReview) {
			return utils.E(utils.CodeInvalidState, op, "application cannot be submitted from status "+string(from), nil)
		}

		now := s.now()
		app.StampStatus(models.StatusInReview, now)
		if err := tx.Applications().UpdateStatus(ctx, app, from); err != nil {
			return err
		}
		return tx.Applications().InsertStatusEvent(ctx, &models.StatusEvent{
			ID:            uuid.NewString(),
			ApplicationID: app.ID,
			FromStatus:    from,
			ToStatus:      models.StatusInReview,
			ActorID:       userID,
			CreatedAt:     now,
		})
	})
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "application not found", err)
	}
	if errors.Is(err, utils.ErrConflict) {
		// lost the race to the pending-per-user index or a concurrent status change
		var meta map[string]any
		if other, ferr := s.store.Applications().FindPendingByUser(ctx, userID, id); ferr == nil {
			meta = map[string]any{"existing_application_id": other.ID}
		}
		return nil, utils.EM(utils.CodeConflict, op, "another application is already in review", meta, err)
	}
	if err != nil {
		return nil, passAppErr(op, "failed to submit application", err)
	}

	metrics.ApplicationsSubmitted.Inc()
	s.notifier.Notify(ctx, models.Notification{
		Kind:    models.NotifyApplicationSubmitted,
		UserID:  userID,
		Subject: "Application submitted for review",
		Body:    app.Title,
		Fields: map[string]string{
			"application_id": app.ID,
			"package_tier":   string(app.PackageTier),
		},
	})
	return app, nil
}

func (s *applicationService) Delete(ctx context.Context, id, userID string) error {
	const op = "ApplicationService.Delete"

	var docs []models.Document
	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		app, err := tx.Applications().GetOwned(ctx, id, userID)
		if err != nil {
			return err
		}
		if app.Status.IsPending() {
			return utils.E(utils.CodeInvalidState, op, "an application in review cannot be deleted", nil)
		}
		if docs, err = tx.Documents().ListByApplication(ctx, id); err != nil {
			return err
		}
		// experiences, documents, reviews and status events cascade
		return tx.Applications().Delete(ctx, id)
	})
	if err != nil {
		return passAppErr(op, "failed to delete application", err)
	}

	if s.blobs != nil {
		for _, d := range docs {
			if err := s.blobs.Delete(ctx, d.StoragePath); err != nil {
				s.log.WithError(err).WithField("document_id", d.ID).Warn("blob delete failed")
			}
		}
	}
	return nil
}

func validateExperience(op string, in ExperienceInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "title is required", nil)
	}
	if !in.Category.Valid() {
		return utils.E(utils.CodeInvalidArgument, op, "invalid experience category", nil)
	}
	if models.CharCount(in.Description) > models.MaxExperienceDescriptionChars {
		return utils.E(utils.CodeInvalidArgument, op, "description exceeds 1020 characters", nil)
	}
	if models.CharCount(in.MMDescription) > models.MaxMostMeaningfulChars {
		return utils.E(utils.CodeInvalidArgument, op, "most meaningful narrative exceeds 300 characters", nil)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return utils.E(utils.CodeInvalidArgument, op, "end_date is before start_date", nil)
	}
	return nil
}

func applyExperience(e *models.Experience, in ExperienceInput) {
	e.Title = strings.TrimSpace(in.Title)
	e.Organization = strings.TrimSpace(in.Organization)
	e.Category = in.Category
	e.StartDate = in.StartDate
	e.Ongoing = in.Ongoing
	e.EndDate = in.EndDate
	if in.Ongoing {
		e.EndDate = nil
	}
	e.SetDescription(in.Description)
	e.MostMeaningful = in.MostMeaningful
	e.MMDescription = ""
	if in.MostMeaningful {
		e.MMDescription = in.MMDescription
	}
	if in.Position != nil {
		e.Position = *in.Position
	}
}

// draftInTx loads an owned application and requires it to be a DRAFT.
func draftInTx(ctx context.Context, tx pgrepo.Store, op, appID, userID string) (*models.Application, error) {
	if err := tx.Users().LockForUpdate(ctx, userID); err != nil {
		return nil, err
	}
	app, err := tx.Applications().GetOwned(ctx, appID, userID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusDraft {
		return nil, utils.E(utils.CodeInvalidState, op, "experiences can only change while the application is a draft", nil)
	}
	return app, nil
}

func (s *applicationService) AddExperience(ctx context.Context, appID, userID string, in ExperienceInput) (*models.Experience, error) {
	const op = "ApplicationService.AddExperience"

	if err := validateExperience(op, in); err != nil {
		return nil, err
	}

	var exp *models.Experience
	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		if _, err := draftInTx(ctx, tx, op, appID, userID); err != nil {
			return err
		}

		n, err := tx.Applications().CountExperiences(ctx, appID)
		if err != nil {
			return err
		}
		if n >= models.MaxExperiences {
			return utils.E(utils.CodeInvalidState, op, "an application holds at most 10 experiences", nil)
		}
		if in.MostMeaningful {
			mm, err := tx.Applications().CountMostMeaningful(ctx, appID, "")
			if err != nil {
				return err
			}
			if mm >= models.MaxMostMeaningful {
				return utils.E(utils.CodeInvalidState, op, "at most 3 experiences can be marked most meaningful", nil)
			}
		}

		now := s.now()
		exp = &models.Experience{
			ID:            uuid.NewString(),
			ApplicationID: appID,
			Position:      int(n),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		applyExperience(exp, in)
		return tx.Applications().CreateExperience(ctx, exp)
	})
	if err != nil {
		return nil, passAppErr(op, "failed to add experience", err)
	}
	return exp, nil
}

func (s *applicationService) UpdateExperience(ctx context.Context, appID, expID, userID string, in ExperienceInput) (*models.Experience, error) {
	const op = "ApplicationService.UpdateExperience"

	if err := validateExperience(op, in); err != nil {
		return nil, err
	}

	var exp *models.Experience
	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		if _, err := draftInTx(ctx, tx, op, appID, userID); err != nil {
			return err
		}

		var err error
		exp, err = tx.Applications().GetExperience(ctx, appID, expID)
		if err != nil {
			return err
		}
		if in.MostMeaningful && !exp.MostMeaningful {
			mm, err := tx.Applications().CountMostMeaningful(ctx, appID, expID)
			if err != nil {
				return err
			}
			if mm >= models.MaxMostMeaningful {
				return utils.E(utils.CodeInvalidState, op, "at most 3 experiences can be marked most meaningful", nil)
			}
		}

		applyExperience(exp, in)
		return tx.Applications().SaveExperience(ctx, exp)
	})
	if err != nil {
		return nil, passAppErr(op, "failed to update experience", err)
	}
	return exp, nil
}

func (s *applicationService) DeleteExperience(ctx context.Context, appID, expID, userID string) error {
	const op = "ApplicationService.DeleteExperience"

	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		if _, err := draftInTx(ctx, tx, op, appID, userID); err != nil {
			return err
		}
		return tx.Applications().DeleteExperience(ctx, appID, expID)
	})
	if err != nil {
		return passAppErr(op, "failed to delete experience", err)
	}
	return nil
}

func (s *applicationService) ListAll(ctx context.Context, f pgrepo.ApplicationFilter) ([]models.Application, int64, error) {
	const op = "ApplicationService.ListAll"

	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, utils.E(utils.CodeInvalidArgument, op, "invalid status filter", nil)
	}
	apps, total, err := s.store.Applications().List(ctx, f)
	if err != nil {
		return nil, 0, utils.E(utils.CodeInternal, op, "failed to list applications", err)
	}
	return apps, total, nil
}

func (s *applicationService) AdminGet(ctx context.Context, id string) (*models.Application, error) {
	const op = "ApplicationService.AdminGet"

	app, err := s.store.Applications().GetDetailed(ctx, id)
	if err != nil {
		return nil, repoErr(op, "failed to load application", err)
	}
	return app, nil
}

func (s *applicationService) UpdateStatus(ctx context.Context, id, adminID string, to models.ApplicationStatus, override bool, note string) (*models.Application, error) {
	const op = "ApplicationService.UpdateStatus"

	if !to.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid status", nil)
	}

	var app *models.Application
	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		var err error
		app, err = tx.Applications().GetDetailed(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Users().LockForUpdate(ctx, app.UserID); err != nil {
			return err
		}

		from := app.Status
		legal := models.CanTransition(from, to)
		if !legal && !override {
			return utils.E(utils.CodeInvalidState, op, "illegal transition "+string(from)+" -> "+string(to), nil)
		}
		if to.IsPending() {
			other, err := tx.Applications().FindPendingByUser(ctx, app.UserID, app.ID)
			if err == nil {
				return utils.EM(utils.CodeConflict, op, "user already has an application in review",
					map[string]any{"existing_application_id": other.ID}, nil)
			}
			if !errors.Is(err, utils.ErrNotFound) {
				return err
			}
		}

		now := s.now()
		app.StampStatus(to, now)
		if err := tx.Applications().UpdateStatus(ctx, app, from); err != nil {
			return err
		}
		return tx.Applications().InsertStatusEvent(ctx, &models.StatusEvent{
			ID:            uuid.NewString(),
			ApplicationID: app.ID,
			FromStatus:    from,
			ToStatus:      to,
			ActorID:       adminID,
			Override:      !legal,
			Note:          strings.TrimSpace(note),
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, passAppErr(op, "failed to update status", err)
	}

	s.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"status":         app.Status,
		"admin_id":       adminID,
		"override":       override,
	}).Info("application status changed")
	return app, nil
}
