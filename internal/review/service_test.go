package review

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/conditions"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/directory"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/messaging"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/notify"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
)

// ==========================
// Test Helper Functions
// ==========================

const (
	appID       = "app-1"
	adminID     = "ao-1"
	woodlandID  = "wo-1"
	applicantID = "applicant-1"
	strangerID  = "someone-else"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	store      *repository.MemoryStore
	sender     *notify.FakeSender
	recorder   *audit.FakeRecorder
	calculator *conditions.FakeCalculator
	bus        *messaging.FakePublisher
	svc        *Service
	now        time.Time
	ids        int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:      repository.NewMemoryStore(),
		sender:     notify.NewFakeSender(),
		recorder:   audit.NewFakeRecorder(),
		calculator: conditions.NewFakeCalculator(),
		bus:        messaging.NewFakePublisher(),
		now:        epoch.Add(24 * time.Hour),
	}
	h.svc = NewService(Dependencies{
		Store:      h.store,
		Conditions: h.calculator,
		Notifier:   h.sender,
		Audit:      h.recorder,
		InternalUsers: directory.MapDirectory{
			adminID:    {ID: adminID, FirstName: "Alice", LastName: "Admin", Email: "alice@forestry.example"},
			woodlandID: {ID: woodlandID, FirstName: "Bob", LastName: "Woods", Email: "bob@forestry.example"},
		},
		ExternalUsers: directory.MapDirectory{
			applicantID: {ID: applicantID, FirstName: "Carol", LastName: "Grower", Email: "carol@example.com"},
		},
		Bus:    h.bus,
		Logger: logger.NewTestLogger(t),
		Clock:  func() time.Time { return h.now },
		NewID: func() string {
			h.ids++
			return fmt.Sprintf("id-%d", h.ids)
		},
	}, Config{BaseURL: "https://fla.example"})
	return h
}

// seedAdminOfficerReview stores an application in admin officer review with
// the admin officer and woodland officer assigned.
func (h *harness) seedAdminOfficerReview(cat models.Category) *models.Application {
	app := &models.Application{
		ID:           appID,
		Reference:    "FLA-2024-001",
		CreatedAt:    epoch,
		CreatedByID:  applicantID,
		PropertyName: "Oak Farm",
		Category:     cat,
		StatusHistory: ledger.StatusHistory{
			{Status: ledger.StatusSubmitted, CreatedAt: epoch, CreatedByID: applicantID},
			{Status: ledger.StatusAdminOfficerReview, CreatedAt: epoch.Add(time.Hour), CreatedByID: adminID},
		},
		Assignees: ledger.Assignments{
			{ID: "as-1", Role: ledger.RoleAdminOfficer, UserID: adminID, AssignedAt: epoch},
			{ID: "as-2", Role: ledger.RoleWoodlandOfficer, UserID: woodlandID, AssignedAt: epoch},
		},
	}
	h.store.PutApplication(app)
	h.store.PutConfirmedFellingAndRestocking(&models.ConfirmedFellingAndRestocking{
		ApplicationID: appID,
		Compartments: []models.CompartmentFelling{
			{CompartmentID: "c-1", CompartmentName: "North Wood", FellingOperation: "ClearFelling", AreaHectares: 2.5},
			{CompartmentID: "c-2", CompartmentName: "South Wood", FellingOperation: "Thinning", AreaHectares: 1.2},
		},
	})
	return app
}

// completeRequiredChecks stores an admin officer review whose required
// sub-checks all pass.
func (h *harness) completeRequiredChecks(t *testing.T, cat models.Category) {
	t.Helper()
	aor := checklist.NewAdminOfficerReview(appID)
	for _, kind := range checklist.RequiredChecks(cat) {
		if kind == checklist.CheckEia {
			aor.SetEiaFormsCorrect(true)
			continue
		}
		_, err := aor.Record(kind, checklist.CheckInput{
			Outcome:                checklist.Yes(),
			InspectionLogConfirmed: checklist.BoolPtr(true),
			MoratoriumConfirmed:    checklist.BoolPtr(true),
		}, cat)
		require.NoError(t, err)
	}
	h.store.PutAdminOfficerReview(aor)
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, errors.CodeOf(err), "error: %v", err)
}

// ==========================
// Operation runner
// ==========================

func TestRun_PanicBecomesDependencyFailure(t *testing.T) {
	h := newHarness(t)
	op := h.svc.begin("Explode", appID, adminID, audit.ActorInternalUser)

	err := h.svc.run(context.Background(), op, func(ctx context.Context) (map[string]interface{}, error) {
		panic("boom")
	})

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	events := h.recorder.Named("ExplodeFailure")
	require.Len(t, events, 1)
	assert.Equal(t, adminID, events[0].Data["PerformingUserId"])
	assert.Equal(t, "Unable to complete Explode", events[0].Data["Error"])
}

func TestRun_ForeignErrorIsDependencyFailure(t *testing.T) {
	h := newHarness(t)
	op := h.svc.begin("Anything", appID, adminID, audit.ActorInternalUser)

	err := h.svc.run(context.Background(), op, func(ctx context.Context) (map[string]interface{}, error) {
		return nil, assert.AnError
	})

	requireCode(t, err, errors.ErrCodeDependencyFailure)
	assert.Len(t, h.recorder.Events(), 1)
}

func TestRun_AuditFailureDoesNotChangeOutcome(t *testing.T) {
	h := newHarness(t)
	h.recorder.FailWith(assert.AnError)
	op := h.svc.begin("Quiet", appID, adminID, audit.ActorInternalUser)

	err := h.svc.run(context.Background(), op, func(ctx context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})

	assert.NoError(t, err)
}

func TestRun_EventsCarryCorrelationAndSource(t *testing.T) {
	h := newHarness(t)
	ctx := audit.WithCorrelationID(context.Background(), "job-42")
	op := h.svc.begin("Traced", appID, adminID, audit.ActorInternalUser)
	op.note("Side", map[string]interface{}{"k": "v"})

	err := h.svc.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"done": true}, nil
	})
	require.NoError(t, err)

	events := h.recorder.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "Side", events[0].Name)
	assert.Equal(t, "Traced", events[1].Name)
	for _, e := range events {
		assert.Equal(t, "job-42", e.CorrelationID)
		assert.Equal(t, appID, e.SourceEntityID)
		assert.Equal(t, audit.SourceApplication, e.SourceEntityType)
		assert.Equal(t, audit.ActorInternalUser, e.ActorType)
		assert.Equal(t, adminID, e.Data["PerformingUserId"])
	}
}
