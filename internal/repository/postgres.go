package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// Schema is the DDL for the tables used by PostgresStore.
//
//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

// PostgresStore is the production Store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithTx implements Store.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

// ==========================
// Applications and ledger
// ==========================

func (t *pgTx) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	var (
		app      models.Application
		owner    sql.NullString
		property sql.NullString
		category []byte
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, reference, created_at, created_by_id, woodland_owner_id, property_name, category
		FROM applications
		WHERE id = $1
		FOR UPDATE`, applicationID).
		Scan(&app.ID, &app.Reference, &app.CreatedAt, &app.CreatedByID, &owner, &property, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", applicationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query application: %w", err)
	}
	app.WoodlandOwnerID = owner.String
	app.PropertyName = property.String
	if len(category) > 0 {
		if err := json.Unmarshal(category, &app.Category); err != nil {
			return nil, fmt.Errorf("decode application category: %w", err)
		}
	}

	if app.StatusHistory, err = t.statusHistory(ctx, applicationID); err != nil {
		return nil, err
	}
	if app.Assignees, err = t.assignees(ctx, applicationID); err != nil {
		return nil, err
	}
	return &app, nil
}

func (t *pgTx) statusHistory(ctx context.Context, applicationID string) (ledger.StatusHistory, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT status, created_at, created_by_id
		FROM status_history
		WHERE application_id = $1
		ORDER BY created_at, id`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var history ledger.StatusHistory
	for rows.Next() {
		var (
			entry ledger.StatusEntry
			actor sql.NullString
		)
		if err := rows.Scan(&entry.Status, &entry.CreatedAt, &actor); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		entry.CreatedByID = actor.String
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (t *pgTx) assignees(ctx context.Context, applicationID string) (ledger.Assignments, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, role, assigned_user_id, timestamp_assigned, timestamp_unassigned
		FROM assignee_history
		WHERE application_id = $1
		ORDER BY timestamp_assigned, id`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("query assignee history: %w", err)
	}
	defer rows.Close()

	var assignments ledger.Assignments
	for rows.Next() {
		var (
			a          ledger.Assignment
			unassigned sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Role, &a.UserID, &a.AssignedAt, &unassigned); err != nil {
			return nil, fmt.Errorf("scan assignee history: %w", err)
		}
		if unassigned.Valid {
			end := unassigned.Time
			a.UnassignedAt = &end
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (t *pgTx) InsertStatus(ctx context.Context, applicationID string, entry ledger.StatusEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO status_history (application_id, status, created_at, created_by_id)
		VALUES ($1, $2, $3, $4)`,
		applicationID, string(entry.Status), entry.CreatedAt, nullString(entry.CreatedByID))
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	return nil
}

func (t *pgTx) InsertAssignment(ctx context.Context, applicationID string, a ledger.Assignment) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO assignee_history (id, application_id, role, assigned_user_id, timestamp_assigned)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, applicationID, string(a.Role), a.UserID, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (t *pgTx) CloseAssignment(ctx context.Context, applicationID string, a ledger.Assignment) error {
	if a.UnassignedAt == nil {
		return fmt.Errorf("close assignment %s: no end time", a.ID)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE assignee_history
		SET timestamp_unassigned = $1
		WHERE id = $2 AND application_id = $3 AND timestamp_unassigned IS NULL`,
		*a.UnassignedAt, a.ID, applicationID)
	if err != nil {
		return fmt.Errorf("close assignment: %w", err)
	}
	return expectOneRow(res, "assignment "+a.ID)
}

// ==========================
// Checklists
// ==========================

func (t *pgTx) GetAdminOfficerReview(ctx context.Context, applicationID string) (*checklist.AdminOfficerReview, error) {
	var r checklist.AdminOfficerReview
	if err := t.getReview(ctx, "admin_officer_reviews", applicationID, &r); err != nil {
		return nil, err
	}
	r.ApplicationID = applicationID
	return &r, nil
}

func (t *pgTx) SaveAdminOfficerReview(ctx context.Context, r *checklist.AdminOfficerReview) error {
	return t.saveReview(ctx, "admin_officer_reviews", r.ApplicationID, r, r.Complete, r.LastUpdatedAt)
}

func (t *pgTx) GetWoodlandOfficerReview(ctx context.Context, applicationID string) (*checklist.WoodlandOfficerReview, error) {
	var r checklist.WoodlandOfficerReview
	if err := t.getReview(ctx, "woodland_officer_reviews", applicationID, &r); err != nil {
		return nil, err
	}
	r.ApplicationID = applicationID
	return &r, nil
}

func (t *pgTx) SaveWoodlandOfficerReview(ctx context.Context, r *checklist.WoodlandOfficerReview) error {
	return t.saveReview(ctx, "woodland_officer_reviews", r.ApplicationID, r, r.Complete, r.LastUpdatedAt)
}

// table is always one of the constant names above.
func (t *pgTx) getReview(ctx context.Context, table, applicationID string, dest interface{}) error {
	var raw []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT review FROM `+table+` WHERE application_id = $1 FOR UPDATE`, applicationID).
		Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s for %s: %w", table, applicationID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

func (t *pgTx) saveReview(ctx context.Context, table, applicationID string, review interface{}, complete bool, updatedAt time.Time) error {
	raw, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("encode %s: %w", table, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO `+table+` (application_id, review, complete, last_updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (application_id) DO UPDATE
		SET review = EXCLUDED.review, complete = EXCLUDED.complete, last_updated_at = EXCLUDED.last_updated_at`,
		applicationID, raw, complete, nullTime(updatedAt))
	if err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

// ==========================
// Amendments
// ==========================

const amendmentColumns = `id, application_id, amending_user_id, amendments_sent_at, response_deadline,
	amendments_reason, response_received_at, applicant_agreed, applicant_disagreement_reason,
	responding_user_id, reminder_notification_sent_at`

func (t *pgTx) GetPendingAmendment(ctx context.Context, applicationID string) (*checklist.AmendmentReview, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+amendmentColumns+`
		FROM amendment_reviews
		WHERE application_id = $1 AND response_received_at IS NULL
		FOR UPDATE`, applicationID)
	return scanAmendment(row, "pending amendment for "+applicationID)
}

func (t *pgTx) GetAmendment(ctx context.Context, amendmentID string) (*checklist.AmendmentReview, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+amendmentColumns+`
		FROM amendment_reviews
		WHERE id = $1
		FOR UPDATE`, amendmentID)
	return scanAmendment(row, "amendment "+amendmentID)
}

func scanAmendment(row *sql.Row, what string) (*checklist.AmendmentReview, error) {
	var (
		a                                  checklist.AmendmentReview
		reason, disagreement, respondingID sql.NullString
		received, reminder                 sql.NullTime
		agreed                             sql.NullBool
	)
	err := row.Scan(&a.ID, &a.ApplicationID, &a.AmendingUserID, &a.AmendmentsSentAt, &a.ResponseDeadline,
		&reason, &received, &agreed, &disagreement, &respondingID, &reminder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	a.AmendmentsReason = reason.String
	a.ApplicantDisagreementReason = disagreement.String
	a.RespondingUserID = respondingID.String
	if received.Valid {
		at := received.Time
		a.ResponseReceivedAt = &at
	}
	if reminder.Valid {
		at := reminder.Time
		a.ReminderNotificationSentAt = &at
	}
	if agreed.Valid {
		a.ApplicantAgreed = checklist.BoolPtr(agreed.Bool)
	}
	return &a, nil
}

func (t *pgTx) InsertAmendment(ctx context.Context, a *checklist.AmendmentReview) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO amendment_reviews (id, application_id, amending_user_id, amendments_sent_at, response_deadline, amendments_reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ApplicationID, a.AmendingUserID, a.AmendmentsSentAt, a.ResponseDeadline, nullString(a.AmendmentsReason))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("application %s: %w", a.ApplicationID, ErrPendingAmendmentExists)
		}
		return fmt.Errorf("insert amendment: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateAmendment(ctx context.Context, a *checklist.AmendmentReview) error {
	var agreed sql.NullBool
	if a.ApplicantAgreed != nil {
		agreed = sql.NullBool{Bool: *a.ApplicantAgreed, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE amendment_reviews
		SET response_received_at = $2, applicant_agreed = $3, applicant_disagreement_reason = $4,
			responding_user_id = $5, reminder_notification_sent_at = $6
		WHERE id = $1`,
		a.ID, nullTimePtr(a.ResponseReceivedAt), agreed, nullString(a.ApplicantDisagreementReason),
		nullString(a.RespondingUserID), nullTimePtr(a.ReminderNotificationSentAt))
	if err != nil {
		return fmt.Errorf("update amendment: %w", err)
	}
	return expectOneRow(res, "amendment "+a.ID)
}

// ==========================
// EIA, felling details and conditions
// ==========================

func (t *pgTx) InsertEiaRequest(ctx context.Context, r checklist.EiaRequest) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO eia_requests (id, application_id, requesting_user_id, notification_time, request_type)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.ApplicationID, r.RequestingUserID, r.NotificationTime, string(r.RequestType))
	if err != nil {
		return fmt.Errorf("insert eia request: %w", err)
	}
	return nil
}

func (t *pgTx) GetConfirmedFellingAndRestocking(ctx context.Context, applicationID string) (*models.ConfirmedFellingAndRestocking, error) {
	var raw []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT details FROM confirmed_felling_and_restocking WHERE application_id = $1`, applicationID).
		Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("confirmed felling and restocking for %s: %w", applicationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query confirmed felling and restocking: %w", err)
	}
	var details models.ConfirmedFellingAndRestocking
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("decode confirmed felling and restocking: %w", err)
	}
	details.ApplicationID = applicationID
	return &details, nil
}

// SaveConditions replaces the stored conditions of an application.
func (t *pgTx) SaveConditions(ctx context.Context, applicationID string, conditions []models.LicenceCondition) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM licence_conditions WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("clear conditions: %w", err)
	}
	for _, c := range conditions {
		lines, err := json.Marshal(c.Lines)
		if err != nil {
			return fmt.Errorf("encode condition lines: %w", err)
		}
		appliesTo, err := json.Marshal(c.AppliesToCompartments)
		if err != nil {
			return fmt.Errorf("encode condition compartments: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO licence_conditions (application_id, condition_number, lines, applies_to)
			VALUES ($1, $2, $3, $4)`,
			applicationID, c.Number, lines, appliesTo); err != nil {
			return fmt.Errorf("insert condition %d: %w", c.Number, err)
		}
	}
	return nil
}

// ==========================
// helpers
// ==========================

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
