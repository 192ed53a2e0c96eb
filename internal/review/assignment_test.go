package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

func seedSubmitted(h *harness) {
	h.store.PutApplication(&models.Application{
		ID:          appID,
		Reference:   "FLA-2024-001",
		CreatedAt:   epoch,
		CreatedByID: applicantID,
		StatusHistory: ledger.StatusHistory{
			{Status: ledger.StatusSubmitted, CreatedAt: epoch, CreatedByID: applicantID},
		},
	})
}

func TestAssignUserToApplication_FirstAdminOfficerStartsReview(t *testing.T) {
	h := newHarness(t)
	seedSubmitted(h)

	res, err := h.svc.AssignUserToApplication(context.Background(), AssignmentRequest{
		ApplicationID: appID, PerformingUserID: "fm-1", Role: ledger.RoleAdminOfficer, AssignedUserID: adminID,
	})

	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, ledger.StatusAdminOfficerReview, res.Status)

	app, _ := h.store.Application(appID)
	assert.True(t, app.Assignees.IsCurrentAssignee(ledger.RoleAdminOfficer, adminID))
	assert.Equal(t, ledger.StatusAdminOfficerReview, app.CurrentStatus())
	assert.Len(t, h.recorder.Named(EventAssignUser), 1)
}

func TestAssignUserToApplication_ReplacesHolder(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})

	_, err := h.svc.AssignUserToApplication(context.Background(), AssignmentRequest{
		ApplicationID: appID, PerformingUserID: "fm-1", Role: ledger.RoleWoodlandOfficer, AssignedUserID: "wo-2",
	})
	require.NoError(t, err)

	app, _ := h.store.Application(appID)
	require.NoError(t, app.Assignees.Validate())
	holder, ok := app.Assignees.CurrentAssignee(ledger.RoleWoodlandOfficer)
	require.True(t, ok)
	assert.Equal(t, "wo-2", holder)
	assert.Len(t, app.Assignees, 3)
	assert.Equal(t, ledger.StatusAdminOfficerReview, app.CurrentStatus())
}

func TestAssignUserToApplication_SameHolderIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})

	res, err := h.svc.AssignUserToApplication(context.Background(), AssignmentRequest{
		ApplicationID: appID, PerformingUserID: "fm-1", Role: ledger.RoleAdminOfficer, AssignedUserID: adminID,
	})

	require.NoError(t, err)
	assert.False(t, res.Changed)
	app, _ := h.store.Application(appID)
	assert.Len(t, app.Assignees, 2)
}

func TestAssignUserToApplication_Validation(t *testing.T) {
	h := newHarness(t)
	seedSubmitted(h)

	_, err := h.svc.AssignUserToApplication(context.Background(), AssignmentRequest{
		ApplicationID: appID, Role: "Gardener", AssignedUserID: adminID,
	})
	requireCode(t, err, errors.ErrCodeValidation)

	_, err = h.svc.AssignUserToApplication(context.Background(), AssignmentRequest{
		ApplicationID: appID, Role: ledger.RoleAdminOfficer,
	})
	requireCode(t, err, errors.ErrCodeValidation)

	_, err = h.svc.AssignUserToApplication(context.Background(), AssignmentRequest{
		ApplicationID: "missing", Role: ledger.RoleAdminOfficer, AssignedUserID: adminID,
	})
	requireCode(t, err, errors.ErrCodeNotFound)
	assert.Len(t, h.recorder.Named(Failure(EventAssignUser)), 3)
}

func TestUnassignUserFromApplication(t *testing.T) {
	h := newHarness(t)
	h.seedAdminOfficerReview(models.Category{})
	req := AssignmentRequest{ApplicationID: appID, PerformingUserID: "fm-1", Role: ledger.RoleWoodlandOfficer}

	res, err := h.svc.UnassignUserFromApplication(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	app, _ := h.store.Application(appID)
	_, ok := app.Assignees.CurrentAssignee(ledger.RoleWoodlandOfficer)
	assert.False(t, ok)

	res, err = h.svc.UnassignUserFromApplication(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	events := h.recorder.Named(EventUnassignUser)
	require.Len(t, events, 2)
	assert.Equal(t, woodlandID, events[0].Data["UnassignedUserId"])
}
