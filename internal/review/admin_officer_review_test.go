package review

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/messaging"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/notify"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

func confirm(h *harness, userID string) (*ConfirmResult, error) {
	return h.svc.ConfirmAdminOfficerReview(context.Background(), ConfirmRequest{
		ApplicationID:    appID,
		PerformingUserID: userID,
	})
}

func TestConfirmAdminOfficerReview_DraftWithoutAssignees(t *testing.T) {
	h := newHarness(t)
	h.store.PutApplication(&models.Application{
		ID:            appID,
		Reference:     "FLA-2024-001",
		CreatedByID:   applicantID,
		StatusHistory: ledger.StatusHistory{{Status: ledger.StatusDraft, CreatedAt: epoch}},
	})

	_, err := confirm(h, adminID)

	requireCode(t, err, errors.ErrCodeNotAuthorized)
	assert.Len(t, h.recorder.Named(Failure(EventConfirmAdminOfficerReview)), 1)
	assert.Empty(t, h.bus.Published())
	assert.Empty(t, h.sender.Sent())
}

func TestConfirmAdminOfficerReview_Success(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})

	res, err := confirm(h, adminID)
	require.NoError(t, err)

	assert.Equal(t, woodlandID, res.WoodlandOfficerID)
	assert.Equal(t, 2, res.ConditionsGenerated)
	assert.Equal(t, 2, res.NotificationsSent)
	assert.Equal(t, h.now, res.CompletedAt)

	aor, ok := h.store.AdminOfficerReview(appID)
	require.True(t, ok)
	assert.True(t, aor.Complete)
	assert.Equal(t, adminID, aor.CompletedByID)

	app, _ := h.store.Application(appID)
	assert.Equal(t, ledger.StatusWoodlandOfficerReview, app.CurrentStatus())
	assert.Len(t, h.store.Conditions(appID), 2)

	wor, ok := h.store.WoodlandOfficerReview(appID)
	require.True(t, ok)
	require.NotNil(t, wor.ConditionsGeneratedAt)
	assert.Nil(t, wor.ConditionsConfirmed)

	assigned := h.sender.SentOfType(models.NotificationUserAssignedForReview)
	require.Len(t, assigned, 1)
	assert.Equal(t, "bob@forestry.example", assigned[0].Recipient.Email)
	assert.Equal(t, "Alice Admin", assigned[0].Model["assignedByName"])

	progressed := h.sender.SentOfType(models.NotificationApplicationProgressed)
	require.Len(t, progressed, 1)
	assert.Equal(t, "carol@example.com", progressed[0].Recipient.Email)
	assert.Equal(t, "https://fla.example/applications/app-1", progressed[0].Model["viewApplicationURL"])

	assert.Len(t, h.recorder.Named(EventConfirmAdminOfficerReview), 1)
	assert.Empty(t, h.recorder.Named(Failure(EventConfirmAdminOfficerReview)))
	sent := h.recorder.Named(EventNotificationSent)
	require.Len(t, sent, 2)
	assert.Equal(t, string(ledger.RoleWoodlandOfficer), sent[0].Data["RecipientRole"])
	assert.Equal(t, woodlandID, sent[0].Data["RecipientId"])
	assert.Equal(t, string(ledger.RoleApplicant), sent[1].Data["RecipientRole"])

	published := h.bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, messaging.GeneratePdfPreview{ApplicationID: appID, PerformingUserID: adminID}, published[0])
}

func TestConfirmAdminOfficerReview_ConditionsFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})
	h.calculator.FailWith(stderrors.New("conditions engine unavailable"))

	_, err := confirm(h, adminID)

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	aor, _ := h.store.AdminOfficerReview(appID)
	assert.False(t, aor.Complete)
	app, _ := h.store.Application(appID)
	assert.Equal(t, ledger.StatusAdminOfficerReview, app.CurrentStatus())
	_, ok := h.store.WoodlandOfficerReview(appID)
	assert.False(t, ok)
	assert.Empty(t, h.store.Conditions(appID))
	assert.Empty(t, h.sender.Sent())
	assert.Empty(t, h.bus.Published())

	failures := h.recorder.Named(Failure(EventConfirmAdminOfficerReview))
	require.Len(t, failures, 1)
	assert.Equal(t, "Unable to calculate licence conditions", failures[0].Data["Error"])
	assert.Len(t, h.recorder.Events(), 1)
}

func TestConfirmAdminOfficerReview_NotificationFailureStillPublishesPreview(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})
	h.sender.FailOn(models.NotificationApplicationProgressed, stderrors.New("smtp down"))

	_, err := confirm(h, adminID)

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	assert.Len(t, h.bus.Published(), 1)

	aor, _ := h.store.AdminOfficerReview(appID)
	assert.False(t, aor.Complete)

	assert.Len(t, h.recorder.Named(EventNotificationSent), 1)
	failed := h.recorder.Named(EventNotificationFailure)
	require.Len(t, failed, 1)
	assert.Equal(t, applicantID, failed[0].Data["RecipientId"])
	assert.Equal(t, "smtp down", failed[0].Data["Error"])
	assert.Len(t, h.recorder.Named(Failure(EventConfirmAdminOfficerReview)), 1)
	assert.Empty(t, h.recorder.Named(EventConfirmAdminOfficerReview))
}

// cancellingSender cancels the operation context when the first message is sent.
type cancellingSender struct {
	next   notify.Sender
	cancel context.CancelFunc
}

func (c cancellingSender) Send(ctx context.Context, msg notify.Message) error {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.next.Send(ctx, msg)
}

func TestConfirmAdminOfficerReview_CancelDuringNotificationStillPublishesPreview(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.svc.deps.Notifier = cancellingSender{next: h.sender, cancel: cancel}

	_, err := h.svc.ConfirmAdminOfficerReview(ctx, ConfirmRequest{ApplicationID: appID, PerformingUserID: adminID})

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	published := h.bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, messaging.GeneratePdfPreview{ApplicationID: appID, PerformingUserID: adminID}, published[0])
	assert.Empty(t, h.sender.Sent())

	aor, _ := h.store.AdminOfficerReview(appID)
	assert.False(t, aor.Complete)
}

func TestConfirmAdminOfficerReview_FirstNotificationFailureSkipsSecond(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})
	h.sender.FailTo("bob@forestry.example", stderrors.New("mailbox full"))

	_, err := confirm(h, adminID)

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	assert.Empty(t, h.sender.Sent())
	assert.Len(t, h.recorder.Named(EventNotificationFailure), 1)
	assert.Len(t, h.bus.Published(), 1)
}

func TestConfirmAdminOfficerReview_DirectoryFailureDoesNotPublish(t *testing.T) {
	h := newHarness(t)
	app := h.seedAdminOfficerReview(models.Category{})
	app.Assignees = append(app.Assignees, ledger.Assignment{
		ID: "as-3", Role: ledger.RoleApplicant, UserID: "unknown-applicant", AssignedAt: epoch,
	})
	h.store.PutApplication(app)
	h.completeRequiredChecks(t, models.Category{})

	_, err := confirm(h, adminID)

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	assert.Empty(t, h.bus.Published())
	assert.Empty(t, h.sender.Sent())
}

func TestConfirmAdminOfficerReview_PublishFailureIsNotReported(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})
	h.bus.FailWith(stderrors.New("topic missing"))

	_, err := confirm(h, adminID)

	require.NoError(t, err)
	aor, _ := h.store.AdminOfficerReview(appID)
	assert.True(t, aor.Complete)
}

func TestConfirmAdminOfficerReview_SecondConfirmIsInvalidState(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})

	_, err := confirm(h, adminID)
	require.NoError(t, err)

	_, err = confirm(h, adminID)
	requireCode(t, err, errors.ErrCodeInvalidState)
	assert.Len(t, h.bus.Published(), 1)
	assert.Len(t, h.recorder.Named(EventConfirmAdminOfficerReview), 1)
	assert.Len(t, h.recorder.Named(Failure(EventConfirmAdminOfficerReview)), 1)
}

func TestConfirmAdminOfficerReview_ConcurrentConfirmationsSerialize(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = confirm(h, adminID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.bus.Published(), 1)
	assert.Len(t, h.sender.Sent(), 2)
}

func TestConfirmAdminOfficerReview_CricketBatWillowSkipsConditions(t *testing.T) {
	h := newHarness(t)
	cat := models.Category{CricketBatWillow: true, HasLarch: true}
	h.seedAdminOfficerReview(cat)
	h.completeRequiredChecks(t, cat)

	res, err := confirm(h, adminID)

	require.NoError(t, err)
	assert.Equal(t, 0, res.ConditionsGenerated)
	assert.Equal(t, 0, h.calculator.Calls())
	_, ok := h.store.WoodlandOfficerReview(appID)
	assert.False(t, ok)
	assert.Len(t, h.bus.Published(), 1)
}

func TestConfirmAdminOfficerReview_Preconditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
		user  string
		want  errors.ErrorCode
	}{
		{
			name:  "missing application",
			setup: func(t *testing.T, h *harness) {},
			user:  adminID,
			want:  errors.ErrCodeNotFound,
		},
		{
			name: "wrong user",
			setup: func(t *testing.T, h *harness) {
				h.seedAdminOfficerReview(models.Category{})
				h.completeRequiredChecks(t, models.Category{})
			},
			user: woodlandID,
			want: errors.ErrCodeNotAuthorized,
		},
		{
			name: "no woodland officer",
			setup: func(t *testing.T, h *harness) {
				app := h.seedAdminOfficerReview(models.Category{})
				app.Assignees = app.Assignees[:1]
				h.store.PutApplication(app)
				h.completeRequiredChecks(t, models.Category{})
			},
			user: adminID,
			want: errors.ErrCodeInvalidState,
		},
		{
			name: "checks incomplete",
			setup: func(t *testing.T, h *harness) {
				h.seedAdminOfficerReview(models.Category{SubmittedByAgent: true})
				h.completeRequiredChecks(t, models.Category{})
			},
			user: adminID,
			want: errors.ErrCodeInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(t, h)

			_, err := confirm(h, tt.user)

			requireCode(t, err, tt.want)
			assert.Empty(t, h.sender.Sent())
			assert.Empty(t, h.bus.Published())
			assert.Equal(t, 0, h.calculator.Calls())
			if aor, ok := h.store.AdminOfficerReview(appID); ok {
				assert.False(t, aor.Complete)
			}
		})
	}
}

func TestConfirmAdminOfficerReview_CancelledContext(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	h.completeRequiredChecks(t, models.Category{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := h.svc.ConfirmAdminOfficerReview(ctx, ConfirmRequest{ApplicationID: appID, PerformingUserID: adminID})

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	assert.Len(t, h.recorder.Named(Failure(EventConfirmAdminOfficerReview)), 1)
	aor, _ := h.store.AdminOfficerReview(appID)
	assert.False(t, aor.Complete)
}
