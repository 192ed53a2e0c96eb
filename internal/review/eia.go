package review

import (
	"context"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/notify"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
)

// EiaRequest carries the admin officer's answer for one EIA path.
type EiaRequest struct {
	ApplicationID    string
	PerformingUserID string
	Value            *bool
}

// EiaResult reports the EIA sub-check after the update.
type EiaResult struct {
	ApplicationID string `json:"applicationId"`
	EiaComplete   bool   `json:"eiaComplete"`
	ReminderSent  bool   `json:"reminderSent"`
}

// eiaPath describes the forms-present and forms-absent variants.
type eiaPath struct {
	event          string
	missingValue   string
	failureMessage string
	notification   models.NotificationType
	requestType    checklist.EiaRequestType
	set            func(r *checklist.AdminOfficerReview, v bool) bool
}

var (
	eiaFormsCorrect = eiaPath{
		event:          EventEiaFormsCorrect,
		missingValue:   "must specify if forms are correct",
		failureMessage: "Unable to send notification for incomplete EIA forms",
		notification:   models.NotificationEiaFormsIncorrectReminder,
		requestType:    checklist.EiaRequestAttachedFormsIncorrect,
		set:            (*checklist.AdminOfficerReview).SetEiaFormsCorrect,
	}
	eiaFormsReceived = eiaPath{
		event:          EventEiaFormsReceived,
		missingValue:   "must specify if forms have been received",
		failureMessage: "Unable to send EIA reminder notification",
		notification:   models.NotificationEiaFormsMissingReminder,
		requestType:    checklist.EiaRequestFormsNotReceived,
		set:            (*checklist.AdminOfficerReview).SetEiaFormsReceived,
	}
)

// ConfirmAttachedEiaFormsAreCorrect records whether the EIA forms attached
// to the application are correct. A false answer sends the applicant a
// reminder and logs an EIA request.
func (s *Service) ConfirmAttachedEiaFormsAreCorrect(ctx context.Context, req EiaRequest) (*EiaResult, error) {
	return s.confirmEia(ctx, eiaFormsCorrect, req)
}

// ConfirmEiaFormsHaveBeenReceived records whether EIA forms that were not
// attached have since been received.
func (s *Service) ConfirmEiaFormsHaveBeenReceived(ctx context.Context, req EiaRequest) (*EiaResult, error) {
	return s.confirmEia(ctx, eiaFormsReceived, req)
}

func (s *Service) confirmEia(ctx context.Context, path eiaPath, req EiaRequest) (*EiaResult, error) {
	op := s.begin(path.event, req.ApplicationID, req.PerformingUserID, audit.ActorInternalUser)
	result := &EiaResult{ApplicationID: req.ApplicationID}

	err := s.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		if req.Value == nil {
			return nil, errors.NewValidationError(path.missingValue)
		}
		value := *req.Value

		err := s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			aor, err := s.adminOfficerReview(ctx, tx, req.ApplicationID)
			if err != nil {
				return err
			}
			if aor.Complete {
				return errors.NewInvalidStateError("Admin officer review is already complete")
			}
			now := s.now()
			result.EiaComplete = path.set(aor, value)
			aor.Touch(now, req.PerformingUserID)
			if err := tx.SaveAdminOfficerReview(ctx, aor); err != nil {
				return err
			}
			if value {
				return nil
			}

			if err := s.sendEiaReminder(ctx, tx, path, req); err != nil {
				return err
			}
			result.ReminderSent = true
			return tx.InsertEiaRequest(ctx, checklist.EiaRequest{
				ID:               s.deps.NewID(),
				ApplicationID:    req.ApplicationID,
				RequestingUserID: req.PerformingUserID,
				NotificationTime: now,
				RequestType:      path.requestType,
			})
		})
		if errors.HasCode(err, errors.ErrCodeInvalidState) {
			return nil, err
		}
		if err != nil {
			result.ReminderSent = false
			return nil, errors.NewDependencyFailureError(path.failureMessage, err)
		}
		return map[string]interface{}{
			"EiaComplete":  result.EiaComplete,
			"ReminderSent": result.ReminderSent,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// sendEiaReminder notifies the applicant, copying in the admin officer.
// Every failure is returned as a plain error so the caller reports the
// path's uniform message.
func (s *Service) sendEiaReminder(ctx context.Context, tx repository.Tx, path eiaPath, req EiaRequest) error {
	app, err := tx.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return err
	}
	adminOfficerID, ok := app.Assignees.CurrentAssignee(ledger.RoleAdminOfficer)
	if !ok {
		adminOfficerID = req.PerformingUserID
	}
	adminOfficer, err := s.internalUser(ctx, adminOfficerID)
	if err != nil {
		return err
	}
	applicant, err := s.externalUser(ctx, app.ApplicantID())
	if err != nil {
		return err
	}

	model := s.applicationModel(app)
	model["adminOfficerName"] = adminOfficer.FullName()
	replyTo := recipient(adminOfficer)

	return s.send(ctx, notify.Message{
		Type:      path.notification,
		Recipient: recipient(applicant),
		CC:        []notify.Recipient{replyTo},
		ReplyTo:   &replyTo,
		Model:     model,
	})
}
