package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var ts = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

// ==========================
// Transactions
// ==========================

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO status_history`).
		WithArgs("app-1", "WoodlandOfficerReview", ts, "ao-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertStatus(ctx, "app-1", ledger.StatusEntry{
			Status: ledger.StatusWoodlandOfficerReview, CreatedAt: ts, CreatedByID: "ao-1",
		})
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Applications
// ==========================

func TestGetApplication(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, reference, (.+) FROM applications WHERE id = \$1 FOR UPDATE`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference", "created_at", "created_by_id", "woodland_owner_id", "property_name", "category"}).
			AddRow("app-1", "FLA-001", ts, "applicant-1", nil, "Oak Farm", []byte(`{"hasLarch":true}`)))
	mock.ExpectQuery(`SELECT status, created_at, created_by_id FROM status_history`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "created_at", "created_by_id"}).
			AddRow("Submitted", ts, "applicant-1").
			AddRow("AdminOfficerReview", ts.Add(time.Hour), nil))
	mock.ExpectQuery(`SELECT id, role, assigned_user_id, (.+) FROM assignee_history`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "assigned_user_id", "timestamp_assigned", "timestamp_unassigned"}).
			AddRow("as-1", "AdminOfficer", "ao-old", ts, ts.Add(time.Minute)).
			AddRow("as-2", "AdminOfficer", "ao-1", ts.Add(time.Minute), nil))
	mock.ExpectCommit()

	var app *models.Application
	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		app, err = tx.GetApplication(ctx, "app-1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, "FLA-001", app.Reference)
	assert.Equal(t, "Oak Farm", app.PropertyName)
	assert.True(t, app.Category.HasLarch)
	assert.Equal(t, ledger.StatusAdminOfficerReview, app.CurrentStatus())
	holder, ok := app.Assignees.CurrentAssignee(ledger.RoleAdminOfficer)
	assert.True(t, ok)
	assert.Equal(t, "ao-1", holder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetApplication_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM applications`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.GetApplication(ctx, "missing")
		return err
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseAssignment_NoOpenRow(t *testing.T) {
	store, mock := newMockStore(t)
	end := ts.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE assignee_history`).
		WithArgs(end, "as-1", "app-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.CloseAssignment(ctx, "app-1", ledger.Assignment{ID: "as-1", UnassignedAt: &end})
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Checklists
// ==========================

func TestAdminOfficerReview_RoundTrip(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT review FROM admin_officer_reviews WHERE application_id = \$1 FOR UPDATE`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"review"}).
			AddRow([]byte(`{"mapping":{"outcome":{"value":true},"complete":true}}`)))
	mock.ExpectExec(`INSERT INTO admin_officer_reviews (.+) ON CONFLICT \(application_id\) DO UPDATE`).
		WithArgs("app-1", sqlmock.AnyArg(), false, ts).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		r, err := tx.GetAdminOfficerReview(ctx, "app-1")
		if err != nil {
			return err
		}
		assert.Equal(t, "app-1", r.ApplicationID)
		assert.True(t, r.Mapping.Complete)
		r.Touch(ts, "ao-1")
		return tx.SaveAdminOfficerReview(ctx, r)
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWoodlandOfficerReview_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT review FROM woodland_officer_reviews`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"review"}))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.GetWoodlandOfficerReview(ctx, "app-1")
		return err
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Amendments
// ==========================

func TestInsertAmendment_PendingExists(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO amendment_reviews`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertAmendment(ctx, &checklist.AmendmentReview{
			ID: "am-2", ApplicationID: "app-1", AmendingUserID: "wo-1",
			AmendmentsSentAt: ts, ResponseDeadline: ts.Add(14 * 24 * time.Hour),
		})
	})

	assert.ErrorIs(t, err, ErrPendingAmendmentExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAmendment(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM amendment_reviews WHERE id = \$1 FOR UPDATE`).
		WithArgs("am-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "application_id", "amending_user_id", "amendments_sent_at", "response_deadline",
			"amendments_reason", "response_received_at", "applicant_agreed", "applicant_disagreement_reason",
			"responding_user_id", "reminder_notification_sent_at",
		}).AddRow("am-1", "app-1", "wo-1", ts, ts.Add(time.Hour), "restocking area", ts.Add(time.Minute), false, "no", "applicant-1", nil))
	mock.ExpectCommit()

	var got *checklist.AmendmentReview
	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		got, err = tx.GetAmendment(ctx, "am-1")
		return err
	})

	require.NoError(t, err)
	assert.False(t, got.Pending())
	require.NotNil(t, got.ApplicantAgreed)
	assert.False(t, *got.ApplicantAgreed)
	assert.Equal(t, "no", got.ApplicantDisagreementReason)
	assert.Nil(t, got.ReminderNotificationSentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Conditions
// ==========================

func TestSaveConditions_ReplacesExisting(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM licence_conditions`).
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO licence_conditions`).
		WithArgs("app-1", 1, []byte(`["Restock within 2 years"]`), []byte(`["C1"]`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SaveConditions(ctx, "app-1", []models.LicenceCondition{
			{Number: 1, Lines: []string{"Restock within 2 years"}, AppliesToCompartments: []string{"C1"}},
		})
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaDeclaresPartialUniqueIndexes(t *testing.T) {
	assert.Contains(t, Schema, "WHERE response_received_at IS NULL")
	assert.Contains(t, Schema, "WHERE timestamp_unassigned IS NULL")
}
