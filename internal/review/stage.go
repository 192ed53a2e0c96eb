package review

import (
	"context"
	stderrors "errors"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
)

// CheckRequest is the payload of a narrow admin officer check.
// InspectionLogConfirmed and MoratoriumConfirmed are only read by the larch check.
type CheckRequest struct {
	ApplicationID          string
	PerformingUserID       string
	Passed                 *bool
	Reason                 string
	InspectionLogConfirmed *bool
	MoratoriumConfirmed    *bool
}

// CheckResult reports the recomputed completion flag of the sub-check.
type CheckResult struct {
	ApplicationID   string              `json:"applicationId"`
	Check           checklist.CheckKind `json:"check"`
	ReviewCompleted bool                `json:"reviewCompleted"`
}

var checkEvents = map[checklist.CheckKind]string{
	checklist.CheckMapping:        EventMappingCheck,
	checklist.CheckConstraints:    EventConstraintsCheck,
	checklist.CheckAgentAuthority: EventAgentAuthorityCheck,
	checklist.CheckLarch:          EventLarchCheck,
	checklist.CheckTreeHealth:     EventTreeHealthCheck,
}

func (s *Service) CompleteMappingCheck(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	return s.completeCheck(ctx, checklist.CheckMapping, req)
}

func (s *Service) CompleteConstraintsCheck(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	return s.completeCheck(ctx, checklist.CheckConstraints, req)
}

func (s *Service) CompleteAgentAuthorityCheck(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	return s.completeCheck(ctx, checklist.CheckAgentAuthority, req)
}

func (s *Service) CompleteLarchCheck(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	return s.completeCheck(ctx, checklist.CheckLarch, req)
}

func (s *Service) ConfirmTreeHealthCheck(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	return s.completeCheck(ctx, checklist.CheckTreeHealth, req)
}

// completeCheck validates preconditions in order (application exists,
// checklist not complete, caller is the assigned admin officer, application
// is in admin officer review, decision present) and then records the decision.
func (s *Service) completeCheck(ctx context.Context, kind checklist.CheckKind, req CheckRequest) (*CheckResult, error) {
	op := s.begin(checkEvents[kind], req.ApplicationID, req.PerformingUserID, audit.ActorInternalUser)
	result := &CheckResult{ApplicationID: req.ApplicationID, Check: kind}

	err := s.run(ctx, op, func(ctx context.Context) (map[string]interface{}, error) {
		err := s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
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

			in := checklist.CheckInput{
				Outcome:                checklist.Decision{Value: req.Passed, Reason: req.Reason},
				InspectionLogConfirmed: req.InspectionLogConfirmed,
				MoratoriumConfirmed:    req.MoratoriumConfirmed,
			}
			complete, err := aor.Record(kind, in, app.Category)
			switch {
			case stderrors.Is(err, checklist.ErrDecisionMissing), stderrors.Is(err, checklist.ErrReasonRequired):
				return errors.NewValidationError(err.Error())
			case err != nil:
				return errors.NewInvalidStateError(err.Error())
			}
			aor.Touch(s.now(), req.PerformingUserID)

			if err := tx.SaveAdminOfficerReview(ctx, aor); err != nil {
				return dependencyFailure("Unable to save admin officer review", err)
			}
			result.ReviewCompleted = complete
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"ReviewCompleted": result.ReviewCompleted}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
