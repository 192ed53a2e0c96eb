package review

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/notify"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
)

const deadlineLayout = "2 January 2006"

// AmendmentsSentRequest opens an amendment round. A nil ResponseDeadline
// uses the configured response period.
type AmendmentsSentRequest struct {
	ApplicationID    string
	PerformingUserID string
	Reason           string
	ResponseDeadline *time.Time
}

// AmendmentResponseRequest is the applicant's answer to an amendment round.
type AmendmentResponseRequest struct {
	AmendmentID        string
	PerformingUserID   string
	Agreed             *bool
	DisagreementReason string
}

// RearmReminderRequest sets the reminder timestamp, or clears it when At is nil.
type RearmReminderRequest struct {
	AmendmentID      string
	PerformingUserID string
	At               *time.Time
}

// AmendmentResult is the stored amendment round after an operation.
type AmendmentResult struct {
	AmendmentID      string                     `json:"amendmentId"`
	ApplicationID    string                     `json:"applicationId"`
	ResponseDeadline time.Time                  `json:"responseDeadline"`
	Amendment        *checklist.AmendmentReview `json:"amendment"`
}

// RecordAmendmentsSent creates a pending amendment round and notifies the applicant.
func (s *Service) RecordAmendmentsSent(ctx context.Context, req AmendmentsSentRequest) (*AmendmentResult, error) {
	op := s.begin(EventAmendmentsSent, req.ApplicationID, req.PerformingUserID, audit.ActorInternalUser)
	var result *AmendmentResult

	err := s.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		err := s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			app, err := s.loadApplication(ctx, tx, req.ApplicationID)
			if err != nil {
				return err
			}
			wor, err := s.woodlandOfficerReview(ctx, tx, req.ApplicationID)
			if err != nil {
				return err
			}
			if wor.Complete {
				return errors.NewInvalidStateError("Woodland officer review is already complete")
			}
			if err := authorize(app, ledger.RoleWoodlandOfficer, req.PerformingUserID); err != nil {
				return err
			}
			if err := requireStatus(app, ledger.StatusWoodlandOfficerReview); err != nil {
				return err
			}
			pending, err := tx.GetPendingAmendment(ctx, req.ApplicationID)
			switch {
			case err == nil && pending != nil:
				return errors.NewInvalidStateError("A pending amendment review already exists for this application")
			case err != nil && !stderrors.Is(err, repository.ErrNotFound):
				return dependencyFailure("Unable to load amendment reviews", err)
			}

			now := s.now()
			deadline := now.Add(s.cfg.AmendmentResponsePeriod)
			if req.ResponseDeadline != nil {
				deadline = req.ResponseDeadline.UTC()
			}
			if !deadline.After(now) {
				return errors.NewValidationError("response deadline must be in the future")
			}

			amendment := &checklist.AmendmentReview{
				ID:               s.deps.NewID(),
				ApplicationID:    req.ApplicationID,
				AmendingUserID:   req.PerformingUserID,
				AmendmentsSentAt: now,
				ResponseDeadline: deadline,
				AmendmentsReason: strings.TrimSpace(req.Reason),
			}
			if err := tx.InsertAmendment(ctx, amendment); err != nil {
				if stderrors.Is(err, repository.ErrPendingAmendmentExists) {
					return errors.NewInvalidStateError("A pending amendment review already exists for this application")
				}
				return dependencyFailure("Unable to store amendment review", err)
			}
			wor.Touch(now, req.PerformingUserID)
			if err := tx.SaveWoodlandOfficerReview(ctx, wor); err != nil {
				return dependencyFailure("Unable to update woodland officer review", err)
			}

			if err := s.notifyAmendmentsSent(ctx, app, amendment); err != nil {
				return err
			}
			result = &AmendmentResult{
				AmendmentID:      amendment.ID,
				ApplicationID:    amendment.ApplicationID,
				ResponseDeadline: amendment.ResponseDeadline,
				Amendment:        amendment,
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"AmendmentId":      result.AmendmentID,
			"ResponseDeadline": result.ResponseDeadline,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) notifyAmendmentsSent(ctx context.Context, app *models.Application, amendment *checklist.AmendmentReview) error {
	woodlandOfficer, err := s.internalUser(ctx, amendment.AmendingUserID)
	if err != nil {
		return dependencyFailure("Unable to retrieve user account details", err)
	}
	applicant, err := s.externalUser(ctx, app.ApplicantID())
	if err != nil {
		return dependencyFailure("Unable to retrieve user account details", err)
	}

	model := s.applicationModel(app)
	model["woodlandOfficerName"] = woodlandOfficer.FullName()
	model["amendmentsReason"] = amendment.AmendmentsReason
	model["responseDeadline"] = amendment.ResponseDeadline.Format(deadlineLayout)
	replyTo := recipient(woodlandOfficer)

	err = s.send(ctx, notify.Message{
		Type:      models.NotificationAmendmentsSent,
		Recipient: recipient(applicant),
		ReplyTo:   &replyTo,
		Model:     model,
	})
	if err != nil {
		return errors.NewDependencyFailureError("Unable to send amendments notification to the applicant", err)
	}
	return nil
}

// RecordApplicantAmendmentResponse stores the applicant's agreement or
// disagreement with a pending amendment round.
func (s *Service) RecordApplicantAmendmentResponse(ctx context.Context, req AmendmentResponseRequest) (*AmendmentResult, error) {
	op := s.begin(EventApplicantAmendmentResult, "", req.PerformingUserID, audit.ActorExternal)
	op.amendmentID = req.AmendmentID
	var result *AmendmentResult

	err := s.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		if req.Agreed == nil {
			return nil, errors.NewValidationError(checklist.ErrAgreementUnspecified.Error())
		}
		if !*req.Agreed && strings.TrimSpace(req.DisagreementReason) == "" {
			return nil, errors.NewValidationError("a reason is required when the amendments are not agreed")
		}

		err := s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			amendment, err := tx.GetAmendment(ctx, req.AmendmentID)
			if stderrors.Is(err, repository.ErrNotFound) {
				return errors.NewNotFoundError("AmendmentReview", req.AmendmentID)
			}
			if err != nil {
				return dependencyFailure("Unable to load amendment review", err)
			}
			op.applicationID = amendment.ApplicationID

			app, err := s.loadApplication(ctx, tx, amendment.ApplicationID)
			if err != nil {
				return err
			}
			if req.PerformingUserID != app.ApplicantID() && req.PerformingUserID != app.WoodlandOwnerID {
				return errors.NewNotAuthorizedError("only the applicant may respond to amendments")
			}

			err = amendment.RecordResponse(req.Agreed, req.DisagreementReason, req.PerformingUserID, s.now())
			switch {
			case stderrors.Is(err, checklist.ErrAlreadyResponded):
				return errors.NewInvalidStateError(err.Error())
			case err != nil:
				return errors.NewValidationError(err.Error())
			}
			if err := tx.UpdateAmendment(ctx, amendment); err != nil {
				return dependencyFailure("Unable to store amendment response", err)
			}
			result = &AmendmentResult{
				AmendmentID:      amendment.ID,
				ApplicationID:    amendment.ApplicationID,
				ResponseDeadline: amendment.ResponseDeadline,
				Amendment:        amendment,
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"AmendmentId":     result.AmendmentID,
			"ApplicantAgreed": *req.Agreed,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RearmAmendmentReminder sets or clears the reminder timestamp of an
// amendment round, whether or not it has been answered.
func (s *Service) RearmAmendmentReminder(ctx context.Context, req RearmReminderRequest) (*AmendmentResult, error) {
	op := s.begin(EventAmendmentReminderRearmed, "", req.PerformingUserID, audit.ActorSystem)
	op.amendmentID = req.AmendmentID
	var result *AmendmentResult

	err := s.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		err := s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			amendment, err := tx.GetAmendment(ctx, req.AmendmentID)
			if stderrors.Is(err, repository.ErrNotFound) {
				return errors.NewNotFoundError("AmendmentReview", req.AmendmentID)
			}
			if err != nil {
				return dependencyFailure("Unable to load amendment review", err)
			}
			op.applicationID = amendment.ApplicationID

			amendment.SetReminder(req.At)
			if err := tx.UpdateAmendment(ctx, amendment); err != nil {
				return dependencyFailure("Unable to update amendment reminder", err)
			}
			result = &AmendmentResult{
				AmendmentID:      amendment.ID,
				ApplicationID:    amendment.ApplicationID,
				ResponseDeadline: amendment.ResponseDeadline,
				Amendment:        amendment,
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"ReminderSet": req.At != nil}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
