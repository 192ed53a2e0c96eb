package review

import (
	"context"
	"fmt"
	"time"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/messaging"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/notify"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/metrics"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
)

// ConfirmRequest identifies the stage confirmation.
type ConfirmRequest struct {
	ApplicationID    string
	PerformingUserID string
}

// ConfirmResult describes a completed admin officer review.
type ConfirmResult struct {
	ApplicationID       string    `json:"applicationId"`
	CompletedAt         time.Time `json:"completedAt"`
	WoodlandOfficerID   string    `json:"woodlandOfficerId"`
	ConditionsGenerated int       `json:"conditionsGenerated"`
	NotificationsSent   int       `json:"notificationsSent"`
}

// confirmState accumulates what the saga steps load and produce.
type confirmState struct {
	app               *models.Application
	aor               *checklist.AdminOfficerReview
	woodlandOfficerID string
	facts             *models.ConfirmedFellingAndRestocking
	conditions        []models.LicenceCondition
	completedAt       time.Time

	adminOfficer    *models.UserAccount
	woodlandOfficer *models.UserAccount
	applicant       *models.UserAccount

	// stageCompleted is set once every step up to account resolution has succeeded.
	stageCompleted    bool
	notificationsSent int
}

const stageWoodlandOfficerReview = "woodland officer review"

// ConfirmAdminOfficerReview closes the admin officer review and hands the
// application to the assigned woodland officer.
//
// Felling details, conditions, checklist completion, the status change and
// notifications commit together. The PDF preview request is published after
// the transaction whenever the stage itself was completed, including when a
// notification then fails and the operation is reported as failed.
func (s *Service) ConfirmAdminOfficerReview(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	op := s.begin(EventConfirmAdminOfficerReview, req.ApplicationID, req.PerformingUserID, audit.ActorInternalUser)
	st := &confirmState{}

	err := s.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		txErr := s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := s.confirmPreconditions(ctx, tx, req, st); err != nil {
				return err
			}
			return s.runSteps(ctx, s.confirmSteps(tx, op, req, st))
		})

		if st.stageCompleted {
			s.requestPdfPreview(ctx, req)
		}
		if txErr != nil {
			return nil, txErr
		}
		return map[string]interface{}{
			"ReviewCompleted":     true,
			"WoodlandOfficerId":   st.woodlandOfficerID,
			"ConditionsGenerated": len(st.conditions),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &ConfirmResult{
		ApplicationID:       req.ApplicationID,
		CompletedAt:         st.completedAt,
		WoodlandOfficerID:   st.woodlandOfficerID,
		ConditionsGenerated: len(st.conditions),
		NotificationsSent:   st.notificationsSent,
	}, nil
}

func (s *Service) confirmPreconditions(ctx context.Context, tx repository.Tx, req ConfirmRequest, st *confirmState) error {
	app, err := s.loadApplication(ctx, tx, req.ApplicationID)
	if err != nil {
		return err
	}
	aor, err := s.adminOfficerReview(ctx, tx, req.ApplicationID)
	if err != nil {
		return err
	}
	if aor.Complete {
		return errors.NewInvalidStateError("Admin officer review is already complete")
	}
	if err := authorize(app, ledger.RoleAdminOfficer, req.PerformingUserID); err != nil {
		return err
	}
	if err := requireStatus(app, ledger.StatusAdminOfficerReview); err != nil {
		return err
	}
	woodlandOfficerID, ok := app.Assignees.CurrentAssignee(ledger.RoleWoodlandOfficer)
	if !ok {
		return errors.NewInvalidStateError("A woodland officer must be assigned before the admin officer review can be confirmed")
	}
	if missing := aor.IncompleteChecks(app.Category); len(missing) > 0 {
		return errors.NewInvalidStateError(fmt.Sprintf("Admin officer review checks are not complete: %v", missing))
	}

	st.app = app
	st.aor = aor
	st.woodlandOfficerID = woodlandOfficerID
	return nil
}

func (s *Service) confirmSteps(tx repository.Tx, op *operation, req ConfirmRequest, st *confirmState) []step {
	cbw := st.app.Category.CricketBatWillow

	return []step{
		{
			name: "load-felling-and-restocking",
			skip: cbw,
			run: func(ctx context.Context) error {
				facts, err := tx.GetConfirmedFellingAndRestocking(ctx, req.ApplicationID)
				if err != nil {
					return dependencyFailure("Unable to retrieve confirmed felling and restocking details", err)
				}
				st.facts = facts
				return nil
			},
		},
		{
			name: "reconcile-woodland-officer-review",
			skip: cbw,
			run: func(ctx context.Context) error {
				wor, err := s.woodlandOfficerReview(ctx, tx, req.ApplicationID)
				if err != nil {
					return err
				}
				wor.ReconcileFellingAndRestocking(st.facts, s.now(), req.PerformingUserID)
				if err := tx.SaveWoodlandOfficerReview(ctx, wor); err != nil {
					return dependencyFailure("Unable to update woodland officer review", err)
				}
				return nil
			},
		},
		{
			name: "calculate-conditions",
			skip: cbw,
			run: func(ctx context.Context) error {
				conds, err := s.deps.Conditions.Calculate(ctx, st.facts, req.PerformingUserID)
				if err != nil {
					return dependencyFailure("Unable to calculate licence conditions", err)
				}
				if err := tx.SaveConditions(ctx, req.ApplicationID, conds); err != nil {
					return dependencyFailure("Unable to store licence conditions", err)
				}
				wor, err := s.woodlandOfficerReview(ctx, tx, req.ApplicationID)
				if err != nil {
					return err
				}
				wor.ConditionsGenerated(s.now(), req.PerformingUserID)
				if err := tx.SaveWoodlandOfficerReview(ctx, wor); err != nil {
					return dependencyFailure("Unable to update woodland officer review", err)
				}
				st.conditions = conds
				return nil
			},
		},
		{
			name: "complete-stage",
			run: func(ctx context.Context) error {
				now := s.now()
				if err := st.aor.MarkComplete(st.app.Category, now, req.PerformingUserID); err != nil {
					return errors.NewInvalidStateError(err.Error())
				}
				if err := tx.SaveAdminOfficerReview(ctx, st.aor); err != nil {
					return dependencyFailure("Unable to save admin officer review", err)
				}
				entry, err := st.app.StatusHistory.Append(ledger.StatusWoodlandOfficerReview, now, req.PerformingUserID)
				if err != nil {
					return errors.NewInvalidStateError(err.Error())
				}
				if err := tx.InsertStatus(ctx, req.ApplicationID, entry); err != nil {
					return dependencyFailure("Unable to update application status", err)
				}
				st.completedAt = now
				return nil
			},
		},
		{
			name: "resolve-accounts",
			run: func(ctx context.Context) error {
				var err error
				if st.adminOfficer, err = s.internalUser(ctx, req.PerformingUserID); err != nil {
					return dependencyFailure("Unable to retrieve user account details", err)
				}
				if st.woodlandOfficer, err = s.internalUser(ctx, st.woodlandOfficerID); err != nil {
					return dependencyFailure("Unable to retrieve user account details", err)
				}
				if st.applicant, err = s.externalUser(ctx, st.app.ApplicantID()); err != nil {
					return dependencyFailure("Unable to retrieve user account details", err)
				}
				st.stageCompleted = true
				return nil
			},
		},
		{
			name: "notify-woodland-officer",
			run: func(ctx context.Context) error {
				model := s.applicationModel(st.app)
				model["stage"] = stageWoodlandOfficerReview
				model["assignedByName"] = st.adminOfficer.FullName()
				return s.notifyRecipient(ctx, op, st, ledger.RoleWoodlandOfficer, st.woodlandOfficer, notify.Message{
					Type:      models.NotificationUserAssignedForReview,
					Recipient: recipient(st.woodlandOfficer),
					Model:     model,
				})
			},
		},
		{
			name: "notify-applicant",
			run: func(ctx context.Context) error {
				model := s.applicationModel(st.app)
				model["stage"] = stageWoodlandOfficerReview
				model["assignedToName"] = st.woodlandOfficer.FullName()
				return s.notifyRecipient(ctx, op, st, ledger.RoleApplicant, st.applicant, notify.Message{
					Type:      models.NotificationApplicationProgressed,
					Recipient: recipient(st.applicant),
					Model:     model,
				})
			},
		},
	}
}

// notifyRecipient sends msg and notes a sent or failed outcome event for the recipient.
func (s *Service) notifyRecipient(ctx context.Context, op *operation, st *confirmState, role ledger.Role, user *models.UserAccount, msg notify.Message) error {
	data := map[string]interface{}{
		"RecipientRole":    string(role),
		"RecipientId":      user.ID,
		"NotificationType": string(msg.Type),
	}
	if err := s.send(ctx, msg); err != nil {
		data["Error"] = err.Error()
		op.note(EventNotificationFailure, data)
		return errors.NewDependencyFailureError(fmt.Sprintf("Unable to send notification to the %s", roleLabel(role)), err)
	}
	op.note(EventNotificationSent, data)
	st.notificationsSent++
	return nil
}

// requestPdfPreview publishes the preview request. It outlives cancellation
// of the operation context. Failures are logged only.
func (s *Service) requestPdfPreview(ctx context.Context, req ConfirmRequest) {
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pdfPreviewPublishTimeout)
	defer cancel()

	err := s.deps.Bus.Publish(publishCtx, messaging.GeneratePdfPreview{
		ApplicationID:    req.ApplicationID,
		PerformingUserID: req.PerformingUserID,
	})
	if err != nil {
		metrics.PdfPreviewRequests.WithLabelValues("failed").Inc()
		s.logger.Error("failed to publish PDF preview request", map[string]interface{}{
			"applicationId": req.ApplicationID,
			"error":         err,
		})
		return
	}
	metrics.PdfPreviewRequests.WithLabelValues("published").Inc()
}

func roleLabel(role ledger.Role) string {
	switch role {
	case ledger.RoleWoodlandOfficer:
		return "woodland officer"
	case ledger.RoleAdminOfficer:
		return "admin officer"
	case ledger.RoleFieldManager:
		return "field manager"
	case ledger.RoleApplicant:
		return "applicant"
	default:
		return string(role)
	}
}
