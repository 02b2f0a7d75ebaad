package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/notify"
	pgrepo "github.com/yoockh/erasreview/internal/repositories/postgres"
	"github.com/yoockh/erasreview/internal/utils"
	"gorm.io/datatypes"
)

type ReviewInput struct {
	EditSummary             json.RawMessage   `json:"edit_summary"`
	SectionComments         map[string]string `json:"section_comments"`
	Rating                  *int              `json:"rating"`
	EditedPersonalStatement *string           `json:"edited_personal_statement"`
}

type ReviewService interface {
	// AttachReview upserts the reviewer's single review of the application.
	AttachReview(ctx context.Context, appID, reviewerID string, in ReviewInput) (*models.Review, error)
	CompleteReview(ctx context.Context, appID, reviewerID string) (*models.Review, error)
	GetReviewView(ctx context.Context, appID, userID string) (*models.ReviewView, error)
	ListForApplication(ctx context.Context, appID string) ([]models.Review, error)
}

type reviewService struct {
	store    pgrepo.Store
	notifier notify.Notifier
	log      *logrus.Logger
	now      func() time.Time
}

func NewReviewService(store pgrepo.Store, n notify.Notifier, log *logrus.Logger) ReviewService {
	return &reviewService{store: store, notifier: n, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s *reviewService) AttachReview(ctx context.Context, appID, reviewerID string, in ReviewInput) (*models.Review, error) {
	const op = "ReviewService.AttachReview"

	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 10) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "rating must be between 1 and 10", nil)
	}
	if len(in.EditSummary) > 0 && !json.Valid(in.EditSummary) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "edit_summary must be valid JSON", nil)
	}
	comments, err := json.Marshal(in.SectionComments)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid section_comments", err)
	}

	var rv *models.Review
	attach := func(tx pgrepo.Store) error {
		if _, err := tx.Applications().GetDetailed(ctx, appID); err != nil {
			return err
		}

		now := s.now()
		existing, err := tx.Reviews().GetByAppAndReviewer(ctx, appID, reviewerID)
		switch {
		case err == nil:
			rv = existing
		case errors.Is(err, utils.ErrNotFound):
			rv = &models.Review{
				ID:              uuid.NewString(),
				ApplicationID:   appID,
				ReviewerID:      reviewerID,
				Status:          models.ReviewInProgress,
				SectionComments: datatypes.JSON("{}"),
				EditSummary:     datatypes.JSON("{}"),
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			applyReview(rv, in, comments)
			return tx.Reviews().Create(ctx, rv)
		default:
			return err
		}

		applyReview(rv, in, comments)
		rv.Status = models.ReviewInProgress
		rv.CompletedAt = nil
		return tx.Reviews().Save(ctx, rv)
	}

	err = s.store.WithinTx(ctx, attach)
	if errors.Is(err, utils.ErrConflict) {
		// another first attach by the same reviewer inserted the row; update it instead
		err = s.store.WithinTx(ctx, attach)
	}
	if err != nil {
		return nil, passAppErr(op, "failed to save review", err)
	}
	return rv, nil
}

func applyReview(rv *models.Review, in ReviewInput, comments []byte) {
	if len(in.EditSummary) > 0 {
		rv.EditSummary = datatypes.JSON(in.EditSummary)
	}
	if in.SectionComments != nil {
		rv.SectionComments = datatypes.JSON(comments)
	}
	if in.Rating != nil {
		rv.Rating = in.Rating
	}
	if in.EditedPersonalStatement != nil {
		rv.EditedPersonalStatement = *in.EditedPersonalStatement
	}
}

func (s *reviewService) CompleteReview(ctx context.Context, appID, reviewerID string) (*models.Review, error) {
	const op = "ReviewService.CompleteReview"

	var (
		rv  *models.Review
		app *models.Application
	)
	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		var err error
		app, err = tx.Applications().GetDetailed(ctx, appID)
		if err != nil {
			return err
		}
		rv, err = tx.Reviews().GetByAppAndReviewer(ctx, appID, reviewerID)
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "no review by this reviewer", err)
		}
		if err != nil {
			return err
		}

		now := s.now()
		if app.Status != models.StatusReviewed {
			from := app.Status
			if !models.CanTransition(from, models.StatusReviewed) {
				return utils.E(utils.CodeInvalidState, op, "application cannot be marked reviewed from status "+string(from), nil)
			}
			app.StampStatus(models.StatusReviewed, now)
			if err := tx.Applications().UpdateStatus(ctx, app, from); err != nil {
				return err
			}
			if err := tx.Applications().InsertStatusEvent(ctx, &models.StatusEvent{
				ID:            uuid.NewString(),
				ApplicationID: app.ID,
				FromStatus:    from,
				ToStatus:      models.StatusReviewed,
				ActorID:       reviewerID,
				CreatedAt:     now,
			}); err != nil {
				return err
			}
		}

		rv.Status = models.ReviewCompleted
		rv.CompletedAt = &now
		return tx.Reviews().Save(ctx, rv)
	})
	if err != nil {
		return nil, passAppErr(op, "failed to complete review", err)
	}

	owner, err := s.store.Users().GetByID(ctx, app.UserID)
	if err != nil {
		s.log.WithError(err).WithField("application_id", appID).Warn("review owner lookup failed")
		return rv, nil
	}
	s.notifier.Notify(ctx, models.Notification{
		Kind:    models.NotifyReviewCompleted,
		UserID:  owner.ID,
		Email:   owner.Email,
		Subject: "Your ERAS application review is ready",
		Body:    "Your reviewer has finished reviewing \"" + app.Title + "\". Sign in to read the feedback.",
		Fields:  map[string]string{"application_id": app.ID},
	})
	return rv, nil
}

func (s *reviewService) GetReviewView(ctx context.Context, appID, userID string) (*models.ReviewView, error) {
	const op = "ReviewService.GetReviewView"

	owned, err := s.store.Applications().GetOwned(ctx, appID, userID)
	if err != nil {
		return nil, repoErr(op, "failed to load application", err)
	}
	if !owned.Status.HasReview() {
		return nil, utils.E(utils.CodeInvalidState, op, "the review is not available yet", nil)
	}

	app, err := s.store.Applications().GetDetailed(ctx, appID)
	if err != nil {
		return nil, repoErr(op, "failed to load application", err)
	}

	view := &models.ReviewView{Application: app}
	rv, err := s.store.Reviews().LatestForApplication(ctx, appID)
	switch {
	case err == nil:
		view.Review = rv
	case errors.Is(err, utils.ErrNotFound):
	default:
		return nil, utils.E(utils.CodeInternal, op, "failed to load review", err)
	}
	return view, nil
}

func (s *reviewService) ListForApplication(ctx context.Context, appID string) ([]models.Review, error) {
	const op = "ReviewService.ListForApplication"

	out, err := s.store.Reviews().ListForApplication(ctx, appID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list reviews", err)
	}
	return out, nil
}
