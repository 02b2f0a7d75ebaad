package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
)

// ==========================
// Test Helper Functions
// ==========================

func newApplicationFixture(t *testing.T) (*memStore, *recordingNotifier, *memBlobs, ApplicationService) {
	t.Helper()
	store := newMemStore()
	store.addUser("u1", "u1@example.com", models.RoleUser)
	store.addUser("u2", "u2@example.com", models.RoleUser)
	store.addUser("admin", "admin@example.com", models.RoleAdmin)

	n := &recordingNotifier{}
	blobs := newMemBlobs()
	return store, n, blobs, NewApplicationService(store, blobs, n, quietLogger())
}

func appCode(t *testing.T, err error) utils.Code {
	t.Helper()
	var ae *utils.AppError
	require.True(t, errors.As(err, &ae), "expected AppError, got %v", err)
	return ae.Code
}

func strPtr(s string) *string { return &s }

// ==========================
// Create
// ==========================

func TestCreate_RequiresPayment(t *testing.T) {
	_, _, _, svc := newApplicationFixture(t)

	_, err := svc.Create(context.Background(), "u1", CreateApplicationInput{Title: "Mine"})

	assert.Equal(t, utils.CodePaymentRequired, appCode(t, err))
}

func TestCreate_ConsumesPayment(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	p := paidFor(store, "u1", models.TierPremium)

	app, err := svc.Create(context.Background(), "u1", CreateApplicationInput{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusDraft, app.Status)
	assert.Equal(t, models.TierPremium, app.PackageTier)
	assert.Equal(t, "ERAS Premium Review", app.Title)
	require.NotNil(t, store.payments[p.ID].ApplicationID)
	assert.Equal(t, app.ID, *store.payments[p.ID].ApplicationID)

	// the payment is spent
	_, err = svc.Create(context.Background(), "u1", CreateApplicationInput{})
	assert.Equal(t, utils.CodePaymentRequired, appCode(t, err))
}

// ==========================
// UpdateDraft
// ==========================

func TestUpdateDraft_DerivesCounts(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})

	app, err := svc.UpdateDraft(context.Background(), "a1", "u1", UpdateDraftInput{
		PersonalStatement: strPtr("I want  to be\na doctor."),
		ProgramSignals:    []byte(`{"gold":["Mayo"]}`),
		TargetSpecialties: []string{"Internal Medicine"},
	})
	require.NoError(t, err)

	assert.Equal(t, 6, app.PSWordCount)
	assert.Equal(t, 23, app.PSCharCount)
	assert.JSONEq(t, `{"gold":["Mayo"]}`, string(app.ProgramSignals))
}

func TestUpdateDraft_Guards(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusInReview})
	store.addApp(models.Application{ID: "a2", UserID: "u1", Status: models.StatusDraft})
	ctx := context.Background()

	_, err := svc.UpdateDraft(ctx, "a1", "u1", UpdateDraftInput{Title: strPtr("x")})
	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))

	_, err = svc.UpdateDraft(ctx, "a2", "u2", UpdateDraftInput{Title: strPtr("x")})
	assert.Equal(t, utils.CodeNotFound, appCode(t, err))

	_, err = svc.UpdateDraft(ctx, "a2", "u1", UpdateDraftInput{ProgramSignals: []byte(`{nope`)})
	assert.Equal(t, utils.CodeInvalidArgument, appCode(t, err))

	long := make([]rune, models.MaxPersonalStatementChars+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.UpdateDraft(ctx, "a2", "u1", UpdateDraftInput{PersonalStatement: strPtr(string(long))})
	assert.Equal(t, utils.CodeInvalidArgument, appCode(t, err))
}

// ==========================
// Submit
// ==========================

func TestSubmit_EmptyApplicationIsInvalidState(t *testing.T) {
	store, n, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})

	_, err := svc.Submit(context.Background(), "a1", "u1")

	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))
	assert.Equal(t, models.StatusDraft, store.apps["a1"].Status)
	assert.Empty(t, n.kinds())
}

func TestSubmit_NotOwnedIsNotFound(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft, PersonalStatement: "ps"})

	_, err := svc.Submit(context.Background(), "a1", "u2")

	assert.Equal(t, utils.CodeNotFound, appCode(t, err))
}

func TestSubmit_SecondPendingConflicts(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusInReview})
	store.addApp(models.Application{ID: "a2", UserID: "u1", Status: models.StatusDraft, PersonalStatement: "ps"})

	_, err := svc.Submit(context.Background(), "a2", "u1")

	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeConflict, ae.Code)
	assert.Equal(t, "a1", ae.Meta["existing_application_id"])
	assert.Equal(t, models.StatusDraft, store.apps["a2"].Status)
}

func TestSubmit_LosingIndexRaceReportsExistingApplication(t *testing.T) {
	store, n, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a2", UserID: "u1", Status: models.StatusDraft, PersonalStatement: "ps"})
	// a concurrent submit of another draft commits after our pending check
	store.beforeStatusWrite = func(m *memStore) {
		m.apps["a1"] = &models.Application{ID: "a1", UserID: "u1", Status: models.StatusInReview, PackageTier: models.TierEssential}
	}

	_, err := svc.Submit(context.Background(), "a2", "u1")

	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeConflict, ae.Code)
	assert.Equal(t, "a1", ae.Meta["existing_application_id"])
	assert.Equal(t, models.StatusDraft, store.apps["a2"].Status)
	assert.Empty(t, n.kinds())
}

func TestSubmit_LegacySubmittedCountsAsPending(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusSubmitted})
	store.addApp(models.Application{ID: "a2", UserID: "u1", Status: models.StatusDraft, PersonalStatement: "ps"})

	_, err := svc.Submit(context.Background(), "a2", "u1")

	assert.Equal(t, utils.CodeConflict, appCode(t, err))
}

func TestSubmit_FromReviewedIsInvalidState(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusReviewed, PersonalStatement: "ps"})

	_, err := svc.Submit(context.Background(), "a1", "u1")

	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))
}

func TestSubmit_ExperienceAloneIsEnough(t *testing.T) {
	store, n, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})
	store.exps["e1"] = &models.Experience{ID: "e1", ApplicationID: "a1", Title: "Research"}

	app, err := svc.Submit(context.Background(), "a1", "u1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusInReview, app.Status)
	assert.NotNil(t, app.SubmittedAt)
	assert.Equal(t, models.StatusInReview, store.apps["a1"].Status)
	require.Len(t, store.statusLog, 1)
	assert.Equal(t, models.StatusDraft, store.statusLog[0].FromStatus)
	assert.Equal(t, []models.NotificationKind{models.NotifyApplicationSubmitted}, n.kinds())
}

// ==========================
// Delete
// ==========================

func TestDelete_PendingIsRefused(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusInReview})

	err := svc.Delete(context.Background(), "a1", "u1")

	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))
	assert.Contains(t, store.apps, "a1")
}

func TestDelete_RemovesBlobsAfterCommit(t *testing.T) {
	store, _, blobs, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})
	store.docs["d1"] = &models.Document{ID: "d1", ApplicationID: "a1", StoragePath: "mem://x"}
	store.exps["e1"] = &models.Experience{ID: "e1", ApplicationID: "a1"}

	require.NoError(t, svc.Delete(context.Background(), "a1", "u1"))

	assert.NotContains(t, store.apps, "a1")
	assert.Empty(t, store.docs)
	assert.Empty(t, store.exps)
	assert.Equal(t, []string{"mem://x"}, blobs.deleted)
}

func TestDelete_OtherUsersApplicationIsNotFound(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})

	err := svc.Delete(context.Background(), "a1", "u2")

	assert.Equal(t, utils.CodeNotFound, appCode(t, err))
}

// ==========================
// Experiences
// ==========================

func TestAddExperience_Limits(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})
	ctx := context.Background()

	for i := 0; i < models.MaxMostMeaningful; i++ {
		_, err := svc.AddExperience(ctx, "a1", "u1", ExperienceInput{
			Title: "MM", Category: models.CategoryWork, MostMeaningful: true, MMDescription: "why",
		})
		require.NoError(t, err)
	}
	_, err := svc.AddExperience(ctx, "a1", "u1", ExperienceInput{
		Title: "MM", Category: models.CategoryWork, MostMeaningful: true,
	})
	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))

	for i := models.MaxMostMeaningful; i < models.MaxExperiences; i++ {
		_, err := svc.AddExperience(ctx, "a1", "u1", ExperienceInput{Title: "Plain", Category: models.CategoryVolunteer})
		require.NoError(t, err)
	}
	_, err = svc.AddExperience(ctx, "a1", "u1", ExperienceInput{Title: "Eleventh", Category: models.CategoryOther})
	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))
}

func TestAddExperience_Validation(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})
	ctx := context.Background()

	_, err := svc.AddExperience(ctx, "a1", "u1", ExperienceInput{Title: "", Category: models.CategoryWork})
	assert.Equal(t, utils.CodeInvalidArgument, appCode(t, err))

	_, err = svc.AddExperience(ctx, "a1", "u1", ExperienceInput{Title: "x", Category: "HOBBY"})
	assert.Equal(t, utils.CodeInvalidArgument, appCode(t, err))
}

func TestAddExperience_OnlyWhileDraft(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusInReview})

	_, err := svc.AddExperience(context.Background(), "a1", "u1", ExperienceInput{Title: "x", Category: models.CategoryWork})

	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))
}

func TestUpdateExperience_KeepsOwnMostMeaningfulSlot(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})
	for _, id := range []string{"e1", "e2", "e3"} {
		store.exps[id] = &models.Experience{ID: id, ApplicationID: "a1", MostMeaningful: true}
	}
	store.exps["e4"] = &models.Experience{ID: "e4", ApplicationID: "a1"}
	ctx := context.Background()

	got, err := svc.UpdateExperience(ctx, "a1", "e1", "u1", ExperienceInput{
		Title: "Edited", Category: models.CategoryResearch, MostMeaningful: true, MMDescription: "still",
	})
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Title)

	_, err = svc.UpdateExperience(ctx, "a1", "e4", "u1", ExperienceInput{
		Title: "Promote", Category: models.CategoryResearch, MostMeaningful: true,
	})
	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))
}

func TestDeleteExperience_Missing(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})

	err := svc.DeleteExperience(context.Background(), "a1", "nope", "u1")

	assert.Equal(t, utils.CodeNotFound, appCode(t, err))
}

// ==========================
// Admin status changes
// ==========================

func TestUpdateStatus_IllegalNeedsOverride(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusDraft})
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "a1", "admin", models.StatusCompleted, false, "")
	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))

	app, err := svc.UpdateStatus(ctx, "a1", "admin", models.StatusCompleted, true, "refund case")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, app.Status)
	assert.NotNil(t, app.CompletedAt)
	require.Len(t, store.statusLog, 1)
	assert.True(t, store.statusLog[0].Override)
	assert.Equal(t, "refund case", store.statusLog[0].Note)
}

func TestUpdateStatus_OverrideStillKeepsOnePending(t *testing.T) {
	store, _, _, svc := newApplicationFixture(t)
	store.addApp(models.Application{ID: "a1", UserID: "u1", Status: models.StatusInReview})
	store.addApp(models.Application{ID: "a2", UserID: "u1", Status: models.StatusCompleted})

	_, err := svc.UpdateStatus(context.Background(), "a2", "admin", models.StatusInReview, true, "")

	assert.Equal(t, utils.CodeConflict, appCode(t, err))
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	_, _, _, svc := newApplicationFixture(t)

	_, err := svc.UpdateStatus(context.Background(), "a1", "admin", "ARCHIVED", true, "")

	assert.Equal(t, utils.CodeInvalidArgument, appCode(t, err))
}

// ==========================
// End-to-end workflow
// ==========================

func TestWorkflow_PayDraftSubmitReviewComplete(t *testing.T) {
	store, n, _, apps := newApplicationFixture(t)
	reviews := NewReviewService(store, n, quietLogger())
	ctx := context.Background()

	paidFor(store, "u1", models.TierEssential)
	first, err := apps.Create(ctx, "u1", CreateApplicationInput{Title: "Cycle 2027"})
	require.NoError(t, err)

	_, err = apps.Submit(ctx, first.ID, "u1")
	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))

	_, err = apps.UpdateDraft(ctx, first.ID, "u1", UpdateDraftInput{PersonalStatement: strPtr("Medicine chose me.")})
	require.NoError(t, err)
	submitted, err := apps.Submit(ctx, first.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, submitted.Status)

	// a second paid draft cannot enter review while the first is pending
	paidFor(store, "u1", models.TierEssential)
	second, err := apps.Create(ctx, "u1", CreateApplicationInput{})
	require.NoError(t, err)
	_, err = apps.AddExperience(ctx, second.ID, "u1", ExperienceInput{Title: "Clinic", Category: models.CategoryVolunteer})
	require.NoError(t, err)
	_, err = apps.Submit(ctx, second.ID, "u1")
	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeConflict, ae.Code)
	assert.Equal(t, first.ID, ae.Meta["existing_application_id"])

	assert.Equal(t, utils.CodeInvalidState, appCode(t, apps.Delete(ctx, first.ID, "u1")))

	_, err = reviews.GetReviewView(ctx, first.ID, "u1")
	assert.Equal(t, utils.CodeInvalidState, appCode(t, err))

	rating := 8
	_, err = reviews.AttachReview(ctx, first.ID, "admin", ReviewInput{
		Rating:          &rating,
		SectionComments: map[string]string{"ps": "tighten"},
		EditSummary:     json.RawMessage(`{"personal_statement":"cut the opening anecdote"}`),
	})
	require.NoError(t, err)
	_, err = reviews.CompleteReview(ctx, first.ID, "admin")
	require.NoError(t, err)

	view, err := reviews.GetReviewView(ctx, first.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, view.Application.Status)
	require.NotNil(t, view.Review)
	assert.Equal(t, models.ReviewCompleted, view.Review.Status)
	assert.JSONEq(t, `{"personal_statement":"cut the opening anecdote"}`, string(view.Review.EditSummary))

	// the first one left review, so the second can go in
	_, err = apps.Submit(ctx, second.ID, "u1")
	require.NoError(t, err)

	done, err := apps.UpdateStatus(ctx, first.ID, "admin", models.StatusCompleted, false, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)

	assert.Equal(t, []models.NotificationKind{
		models.NotifyApplicationSubmitted,
		models.NotifyReviewCompleted,
		models.NotifyApplicationSubmitted,
	}, n.kinds())
}
