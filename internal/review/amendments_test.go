package review

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

func (h *harness) seedWoodlandOfficerReview() *models.Application {
	app := h.seedAdminOfficerReview(models.Category{})
	app.StatusHistory = append(app.StatusHistory, ledger.StatusEntry{
		Status: ledger.StatusWoodlandOfficerReview, CreatedAt: epoch.Add(2 * time.Hour), CreatedByID: adminID,
	})
	h.store.PutApplication(app)
	return app
}

func sendAmendments(h *harness, userID string, deadline *time.Time) (*AmendmentResult, error) {
	return h.svc.RecordAmendmentsSent(context.Background(), AmendmentsSentRequest{
		ApplicationID:    appID,
		PerformingUserID: userID,
		Reason:           "restocking density too low",
		ResponseDeadline: deadline,
	})
}

func TestRecordAmendmentsSent_DefaultDeadline(t *testing.T) {
	h := newHarness(t)
	h.seedWoodlandOfficerReview()

	res, err := sendAmendments(h, woodlandID, nil)

	require.NoError(t, err)
	assert.Equal(t, h.now.Add(defaultAmendmentResponsePeriod), res.ResponseDeadline)
	assert.True(t, res.Amendment.Pending())

	stored := h.store.Amendments(appID)
	require.Len(t, stored, 1)
	assert.Equal(t, woodlandID, stored[0].AmendingUserID)
	assert.Equal(t, "restocking density too low", stored[0].AmendmentsReason)

	sent := h.sender.SentOfType(models.NotificationAmendmentsSent)
	require.Len(t, sent, 1)
	assert.Equal(t, "carol@example.com", sent[0].Recipient.Email)
	assert.Equal(t, "Bob Woods", sent[0].Model["woodlandOfficerName"])
	assert.Equal(t, "16 June 2024", sent[0].Model["responseDeadline"])

	assert.Len(t, h.recorder.Named(EventAmendmentsSent), 1)
}

func TestRecordAmendmentsSent_PendingExists(t *testing.T) {
	h := newHarness(t)
	h.seedWoodlandOfficerReview()

	_, err := sendAmendments(h, woodlandID, nil)
	require.NoError(t, err)

	_, err = sendAmendments(h, woodlandID, nil)
	requireCode(t, err, errors.ErrCodeInvalidState)
	assert.Len(t, h.store.Amendments(appID), 1)
	assert.Len(t, h.sender.Sent(), 1)
}

func TestRecordAmendmentsSent_NewRoundAfterResponse(t *testing.T) {
	h := newHarness(t)
	h.seedWoodlandOfficerReview()

	first, err := sendAmendments(h, woodlandID, nil)
	require.NoError(t, err)
	_, err = h.svc.RecordApplicantAmendmentResponse(context.Background(), AmendmentResponseRequest{
		AmendmentID: first.AmendmentID, PerformingUserID: applicantID, Agreed: checklist.BoolPtr(true),
	})
	require.NoError(t, err)

	_, err = sendAmendments(h, woodlandID, nil)
	require.NoError(t, err)
	assert.Len(t, h.store.Amendments(appID), 2)
}

func TestRecordAmendmentsSent_Preconditions(t *testing.T) {
	past := epoch
	tests := []struct {
		name     string
		seed     func(h *harness)
		user     string
		deadline *time.Time
		want     errors.ErrorCode
	}{
		{"missing application", func(h *harness) {}, woodlandID, nil, errors.ErrCodeNotFound},
		{"not the woodland officer", func(h *harness) { h.seedWoodlandOfficerReview() }, adminID, nil, errors.ErrCodeNotAuthorized},
		{"wrong status", func(h *harness) { h.seedAdminOfficerReview(models.Category{}) }, woodlandID, nil, errors.ErrCodeInvalidState},
		{"review complete", func(h *harness) {
			h.seedWoodlandOfficerReview()
			wor := checklist.NewWoodlandOfficerReview(appID)
			wor.Complete = true
			h.store.PutWoodlandOfficerReview(wor)
		}, woodlandID, nil, errors.ErrCodeInvalidState},
		{"deadline in the past", func(h *harness) { h.seedWoodlandOfficerReview() }, woodlandID, &past, errors.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.seed(h)

			_, err := sendAmendments(h, tt.user, tt.deadline)

			requireCode(t, err, tt.want)
			assert.Empty(t, h.store.Amendments(appID))
			assert.Empty(t, h.sender.Sent())
			assert.Len(t, h.recorder.Named(Failure(EventAmendmentsSent)), 1)
		})
	}
}

func TestRecordAmendmentsSent_NotificationFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.seedWoodlandOfficerReview()
	h.sender.FailOn(models.NotificationAmendmentsSent, stderrors.New("smtp down"))

	_, err := sendAmendments(h, woodlandID, nil)

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	assert.Empty(t, h.store.Amendments(appID))
}

func TestRecordApplicantAmendmentResponse(t *testing.T) {
	seedPending := func(h *harness) {
		h.seedWoodlandOfficerReview()
		h.store.PutAmendment(&checklist.AmendmentReview{
			ID: "am-1", ApplicationID: appID, AmendingUserID: woodlandID,
			AmendmentsSentAt: epoch, ResponseDeadline: epoch.Add(14 * 24 * time.Hour),
		})
	}

	t.Run("disagreement recorded", func(t *testing.T) {
		h := newHarness(t)
		seedPending(h)

		res, err := h.svc.RecordApplicantAmendmentResponse(context.Background(), AmendmentResponseRequest{
			AmendmentID: "am-1", PerformingUserID: applicantID,
			Agreed: checklist.BoolPtr(false), DisagreementReason: "the density matches the grant scheme",
		})

		require.NoError(t, err)
		assert.False(t, res.Amendment.Pending())
		stored := h.store.Amendments(appID)
		require.Len(t, stored, 1)
		require.NotNil(t, stored[0].ApplicantAgreed)
		assert.False(t, *stored[0].ApplicantAgreed)
		assert.Equal(t, applicantID, stored[0].RespondingUserID)

		events := h.recorder.Named(EventApplicantAmendmentResult)
		require.Len(t, events, 1)
		assert.Equal(t, appID, events[0].SourceEntityID)
		assert.Equal(t, audit.ActorExternal, events[0].ActorType)
	})

	t.Run("already responded", func(t *testing.T) {
		h := newHarness(t)
		seedPending(h)
		req := AmendmentResponseRequest{AmendmentID: "am-1", PerformingUserID: applicantID, Agreed: checklist.BoolPtr(true)}

		_, err := h.svc.RecordApplicantAmendmentResponse(context.Background(), req)
		require.NoError(t, err)
		_, err = h.svc.RecordApplicantAmendmentResponse(context.Background(), req)
		requireCode(t, err, errors.ErrCodeInvalidState)
	})

	t.Run("missing amendment", func(t *testing.T) {
		h := newHarness(t)
		seedPending(h)

		_, err := h.svc.RecordApplicantAmendmentResponse(context.Background(), AmendmentResponseRequest{
			AmendmentID: "am-9", PerformingUserID: applicantID, Agreed: checklist.BoolPtr(true),
		})
		requireCode(t, err, errors.ErrCodeNotFound)

		failures := h.recorder.Named(Failure(EventApplicantAmendmentResult))
		require.Len(t, failures, 1)
		assert.Equal(t, "am-9", failures[0].SourceEntityID)
		assert.Equal(t, audit.SourceAmendmentReview, failures[0].SourceEntityType)
	})

	t.Run("agreement unspecified", func(t *testing.T) {
		h := newHarness(t)
		seedPending(h)

		_, err := h.svc.RecordApplicantAmendmentResponse(context.Background(), AmendmentResponseRequest{
			AmendmentID: "am-1", PerformingUserID: applicantID,
		})
		requireCode(t, err, errors.ErrCodeValidation)

		failures := h.recorder.Named(Failure(EventApplicantAmendmentResult))
		require.Len(t, failures, 1)
		assert.Equal(t, "am-1", failures[0].SourceEntityID)
		assert.Equal(t, audit.SourceAmendmentReview, failures[0].SourceEntityType)
	})

	t.Run("disagreement without reason", func(t *testing.T) {
		h := newHarness(t)
		seedPending(h)

		_, err := h.svc.RecordApplicantAmendmentResponse(context.Background(), AmendmentResponseRequest{
			AmendmentID: "am-1", PerformingUserID: applicantID, Agreed: checklist.BoolPtr(false),
		})
		requireCode(t, err, errors.ErrCodeValidation)
	})

	t.Run("not the applicant", func(t *testing.T) {
		h := newHarness(t)
		seedPending(h)

		_, err := h.svc.RecordApplicantAmendmentResponse(context.Background(), AmendmentResponseRequest{
			AmendmentID: "am-1", PerformingUserID: woodlandID, Agreed: checklist.BoolPtr(true),
		})
		requireCode(t, err, errors.ErrCodeNotAuthorized)
		assert.True(t, h.store.Amendments(appID)[0].Pending())
	})
}

func TestRearmAmendmentReminder(t *testing.T) {
	h := newHarness(t)
	h.seedWoodlandOfficerReview()
	received := epoch.Add(time.Hour)
	h.store.PutAmendment(&checklist.AmendmentReview{
		ID: "am-1", ApplicationID: appID, AmendingUserID: woodlandID,
		AmendmentsSentAt: epoch, ResponseDeadline: epoch.Add(time.Hour), ResponseReceivedAt: &received,
	})
	at := epoch.Add(48 * time.Hour)

	res, err := h.svc.RearmAmendmentReminder(context.Background(), RearmReminderRequest{
		AmendmentID: "am-1", PerformingUserID: "scheduler", At: &at,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Amendment.ReminderNotificationSentAt)
	assert.Equal(t, at, *h.store.Amendments(appID)[0].ReminderNotificationSentAt)

	_, err = h.svc.RearmAmendmentReminder(context.Background(), RearmReminderRequest{
		AmendmentID: "am-1", PerformingUserID: "scheduler",
	})
	require.NoError(t, err)
	assert.Nil(t, h.store.Amendments(appID)[0].ReminderNotificationSentAt)

	events := h.recorder.Named(EventAmendmentReminderRearmed)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActorSystem, events[0].ActorType)

	assert.Equal(t, appID, events[0].SourceEntityID)
	assert.Equal(t, audit.SourceApplication, events[0].SourceEntityType)

	_, err = h.svc.RearmAmendmentReminder(context.Background(), RearmReminderRequest{AmendmentID: "missing"})
	requireCode(t, err, errors.ErrCodeNotFound)

	failures := h.recorder.Named(Failure(EventAmendmentReminderRearmed))
	require.Len(t, failures, 1)
	assert.Equal(t, "missing", failures[0].SourceEntityID)
	assert.Equal(t, audit.SourceAmendmentReview, failures[0].SourceEntityType)
}
