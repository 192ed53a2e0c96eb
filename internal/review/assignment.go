package review

import (
	"context"
	"strings"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
)

// AssignmentRequest names a role on an application. AssignedUserID is
// ignored when unassigning.
type AssignmentRequest struct {
	ApplicationID    string
	PerformingUserID string
	Role             ledger.Role
	AssignedUserID   string
}

// AssignmentResult reports the holder of the role after the change.
type AssignmentResult struct {
	ApplicationID   string        `json:"applicationId"`
	Role            ledger.Role   `json:"role"`
	CurrentAssignee string        `json:"currentAssignee,omitempty"`
	Changed         bool          `json:"changed"`
	Status          ledger.Status `json:"status"`
}

// AssignUserToApplication makes the user the current holder of the role,
// closing any previous holder's assignment. Assigning the first admin
// officer moves a submitted application into admin officer review.
func (s *Service) AssignUserToApplication(ctx context.Context, req AssignmentRequest) (*AssignmentResult, error) {
	op := s.begin(EventAssignUser, req.ApplicationID, req.PerformingUserID, audit.ActorInternalUser)
	result := &AssignmentResult{ApplicationID: req.ApplicationID, Role: req.Role}

	err := s.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		if !req.Role.Valid() {
			return nil, errors.NewValidationError("unknown role " + string(req.Role))
		}
		if strings.TrimSpace(req.AssignedUserID) == "" {
			return nil, errors.NewValidationError("an assigned user is required")
		}

		err := s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			app, err := s.loadApplication(ctx, tx, req.ApplicationID)
			if err != nil {
				return err
			}
			if app.Assignees.IsCurrentAssignee(req.Role, req.AssignedUserID) {
				result.CurrentAssignee = req.AssignedUserID
				result.Status = app.CurrentStatus()
				return nil
			}

			now := s.now()
			closed, opened := app.Assignees.Assign(s.deps.NewID(), req.Role, req.AssignedUserID, now)
			if closed != nil {
				if err := tx.CloseAssignment(ctx, app.ID, *closed); err != nil {
					return dependencyFailure("Unable to update assignment history", err)
				}
			}
			if err := tx.InsertAssignment(ctx, app.ID, opened); err != nil {
				return dependencyFailure("Unable to update assignment history", err)
			}
			if err := s.enterAdminOfficerReview(ctx, tx, app, req); err != nil {
				return err
			}

			result.CurrentAssignee = req.AssignedUserID
			result.Changed = true
			result.Status = app.CurrentStatus()
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"Role":           string(req.Role),
			"AssignedUserId": req.AssignedUserID,
			"Changed":        result.Changed,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) enterAdminOfficerReview(ctx context.Context, tx repository.Tx, app *models.Application, req AssignmentRequest) error {
	if req.Role != ledger.RoleAdminOfficer {
		return nil
	}
	if st := app.CurrentStatus(); st != ledger.StatusSubmitted && st != ledger.StatusReceived {
		return nil
	}
	entry, err := app.StatusHistory.Append(ledger.StatusAdminOfficerReview, s.now(), req.PerformingUserID)
	if err != nil {
		return errors.NewInvalidStateError(err.Error())
	}
	if err := tx.InsertStatus(ctx, app.ID, entry); err != nil {
		return dependencyFailure("Unable to update application status", err)
	}
	return nil
}

// UnassignUserFromApplication closes the open assignment for the role.
// Nobody holding the role is not an error.
func (s *Service) UnassignUserFromApplication(ctx context.Context, req AssignmentRequest) (*AssignmentResult, error) {
	op := s.begin(EventUnassignUser, req.ApplicationID, req.PerformingUserID, audit.ActorInternalUser)
	result := &AssignmentResult{ApplicationID: req.ApplicationID, Role: req.Role}

	err := s.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		if !req.Role.Valid() {
			return nil, errors.NewValidationError("unknown role " + string(req.Role))
		}

		var previous string
		err := s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			app, err := s.loadApplication(ctx, tx, req.ApplicationID)
			if err != nil {
				return err
			}
			result.Status = app.CurrentStatus()

			closed := app.Assignees.Unassign(req.Role, s.now())
			if closed == nil {
				return nil
			}
			if err := tx.CloseAssignment(ctx, app.ID, *closed); err != nil {
				return dependencyFailure("Unable to update assignment history", err)
			}
			previous = closed.UserID
			result.Changed = true
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"Role":             string(req.Role),
			"UnassignedUserId": previous,
			"Changed":          result.Changed,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
