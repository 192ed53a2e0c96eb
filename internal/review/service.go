// Package review implements the review-stage operations of a felling licence
// application: checklist updates gated by role assignment, the admin officer
// review confirmation saga, the EIA reminder flow, amendment rounds and
// assignment changes.
//
// Every operation runs in one repository transaction and records exactly one
// completion or failure audit event.
package review

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/conditions"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/directory"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/messaging"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/notify"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/metrics"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
)

const (
	defaultAmendmentResponsePeriod = 14 * 24 * time.Hour
	pdfPreviewPublishTimeout       = 10 * time.Second
)

// Config holds workflow tunables.
type Config struct {
	AmendmentResponsePeriod time.Duration
	// BaseURL prefixes the application links rendered into notifications.
	BaseURL string
}

// Dependencies are the collaborators of the Service. Clock and NewID default
// to UTC wall time and random UUIDs.
type Dependencies struct {
	Store         repository.Store
	Conditions    conditions.Calculator
	Notifier      notify.Sender
	Audit         audit.Recorder
	InternalUsers directory.Directory
	ExternalUsers directory.Directory
	Bus           messaging.Publisher
	Logger        logger.Logger
	Clock         func() time.Time
	NewID         func() string
}

// Service runs review operations.
type Service struct {
	deps   Dependencies
	cfg    Config
	logger logger.Logger
	tracer trace.Tracer
}

func NewService(deps Dependencies, cfg Config) *Service {
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if cfg.AmendmentResponsePeriod <= 0 {
		cfg.AmendmentResponsePeriod = defaultAmendmentResponsePeriod
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger.WithFields(map[string]interface{}{"component": "review"}),
		tracer: otel.Tracer("review"),
	}
}

func (s *Service) now() time.Time {
	return s.deps.Clock()
}

// ==========================
// Operation runner
// ==========================

// operation is the audit context of one exposed call.
type operation struct {
	name             string
	applicationID    string
	performingUserID string
	actor            audit.ActorType
	outcomes         []audit.Event
	// amendmentID names the source when applicationID is unknown.
	amendmentID string
}

func (s *Service) begin(name, applicationID, performingUserID string, actor audit.ActorType) *operation {
	return &operation{
		name:             name,
		applicationID:    applicationID,
		performingUserID: performingUserID,
		actor:            actor,
	}
}

func (op *operation) source() (string, string) {
	if op.applicationID == "" && op.amendmentID != "" {
		return op.amendmentID, audit.SourceAmendmentReview
	}
	return op.applicationID, audit.SourceApplication
}

// note buffers an outcome event that is published with the operation's own event.
func (op *operation) note(name string, data map[string]interface{}) {
	op.outcomes = append(op.outcomes, audit.Event{Name: name, Data: data})
}

// run executes fn and then publishes the buffered outcome events followed by
// exactly one completion or failure event. Panics become DependencyFailure.
// Errors that are not StandardErrors are reported as DependencyFailure.
func (s *Service) run(ctx context.Context, op *operation, fn func(ctx context.Context) (map[string]interface{}, error)) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op.name, trace.WithAttributes(
		attribute.String("applicationId", op.applicationID),
		attribute.String("performingUserId", op.performingUserID),
	))
	defer span.End()

	data, err := s.invoke(ctx, op, fn)
	if err != nil {
		if _, ok := errors.AsStandardError(err); !ok {
			err = errors.NewDependencyFailureError(fmt.Sprintf("Unable to complete %s", op.name), err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
	}

	s.flush(ctx, op, data, err)

	outcome := "success"
	if err != nil {
		outcome = string(errors.CodeOf(err))
	}
	metrics.ReviewOperations.WithLabelValues(op.name, outcome).Inc()
	metrics.ReviewOperationDuration.WithLabelValues(op.name).Observe(time.Since(start).Seconds())

	log := s.logger.WithFields(map[string]interface{}{
		"operation":        op.name,
		"applicationId":    op.applicationID,
		"performingUserId": op.performingUserID,
		"correlationId":    audit.CorrelationID(ctx),
	})
	if err != nil {
		stdErr := errors.Normalize(err)
		log.Warn("review operation failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"message":   stdErr.Message,
			"details":   stdErr.Details,
		})
	} else {
		log.Info("review operation completed", nil)
	}
	return err
}

func (s *Service) invoke(ctx context.Context, op *operation, fn func(ctx context.Context) (map[string]interface{}, error)) (data map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewDependencyFailureError(fmt.Sprintf("Unable to complete %s", op.name), fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx)
}

// flush publishes audit events. Audit failures are logged and never change
// the outcome reported to the caller.
func (s *Service) flush(ctx context.Context, op *operation, data map[string]interface{}, opErr error) {
	auditCtx := context.WithoutCancel(ctx)
	correlationID := audit.CorrelationID(ctx)
	occurredAt := s.now()

	events := make([]audit.Event, 0, len(op.outcomes)+1)
	events = append(events, op.outcomes...)

	final := audit.Event{Name: op.name}
	if opErr != nil {
		final.Name = Failure(op.name)
		final.Data = map[string]interface{}{"Error": errors.Normalize(opErr).Message}
	} else {
		final.Data = make(map[string]interface{}, len(data)+1)
		for k, v := range data {
			final.Data[k] = v
		}
	}
	events = append(events, final)

	for _, e := range events {
		if e.Data == nil {
			e.Data = make(map[string]interface{}, 1)
		}
		e.Data["PerformingUserId"] = op.performingUserID
		e.ActorType = op.actor
		e.PerformingUserID = op.performingUserID
		e.SourceEntityID, e.SourceEntityType = op.source()
		e.CorrelationID = correlationID
		e.OccurredAt = occurredAt

		if err := s.deps.Audit.Publish(auditCtx, e); err != nil {
			s.logger.Error("failed to publish audit event", map[string]interface{}{
				"event":         e.Name,
				"applicationId": op.applicationID,
				"error":         err,
			})
		}
	}
}

// ==========================
// Shared preconditions
// ==========================

func dependencyFailure(message string, err error) error {
	if _, ok := errors.AsStandardError(err); ok {
		return err
	}
	return errors.NewDependencyFailureError(message, err)
}

func (s *Service) loadApplication(ctx context.Context, tx repository.Tx, applicationID string) (*models.Application, error) {
	app, err := tx.GetApplication(ctx, applicationID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NewNotFoundError("Application", applicationID)
	}
	if err != nil {
		return nil, dependencyFailure("Unable to load application", err)
	}
	return app, nil
}

// adminOfficerReview returns the stored checklist or a new one. A new
// checklist is only persisted if the transaction commits.
func (s *Service) adminOfficerReview(ctx context.Context, tx repository.Tx, applicationID string) (*checklist.AdminOfficerReview, error) {
	aor, err := tx.GetAdminOfficerReview(ctx, applicationID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return checklist.NewAdminOfficerReview(applicationID), nil
	}
	if err != nil {
		return nil, dependencyFailure("Unable to load admin officer review", err)
	}
	return aor, nil
}

func (s *Service) woodlandOfficerReview(ctx context.Context, tx repository.Tx, applicationID string) (*checklist.WoodlandOfficerReview, error) {
	wor, err := tx.GetWoodlandOfficerReview(ctx, applicationID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return checklist.NewWoodlandOfficerReview(applicationID), nil
	}
	if err != nil {
		return nil, dependencyFailure("Unable to load woodland officer review", err)
	}
	return wor, nil
}

func authorize(app *models.Application, role ledger.Role, userID string) error {
	if !app.Assignees.IsCurrentAssignee(role, userID) {
		return errors.NewNotAuthorizedError(fmt.Sprintf("user %s is not the assigned %s for application %s", userID, role, app.Reference))
	}
	return nil
}

func requireStatus(app *models.Application, want ledger.Status) error {
	if got := app.CurrentStatus(); got != want {
		return errors.NewInvalidStateError(fmt.Sprintf("application %s is in status %s, not %s", app.Reference, got, want))
	}
	return nil
}

// ==========================
// Accounts and notifications
// ==========================

func (s *Service) internalUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	u, err := s.deps.InternalUsers.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("internal user %s: %w", userID, err)
	}
	return u, nil
}

func (s *Service) externalUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	u, err := s.deps.ExternalUsers.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("external user %s: %w", userID, err)
	}
	return u, nil
}

func recipient(u *models.UserAccount) notify.Recipient {
	return notify.Recipient{Name: u.FullName(), Email: u.Email}
}

func (s *Service) applicationModel(app *models.Application) map[string]interface{} {
	return map[string]interface{}{
		"applicationId":        app.ID,
		"applicationReference": app.Reference,
		"propertyName":         app.PropertyName,
		"viewApplicationURL":   fmt.Sprintf("%s/applications/%s", s.cfg.BaseURL, app.ID),
	}
}

func (s *Service) send(ctx context.Context, msg notify.Message) error {
	err := s.deps.Notifier.Send(ctx, msg)
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	metrics.ReviewNotifications.WithLabelValues(string(msg.Type), outcome).Inc()
	return err
}
