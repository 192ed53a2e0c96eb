package confirmeiaforms

import (
	"context"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/review"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/pkg/registry"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ConfirmAttachedEiaFormsAreCorrect(ctx context.Context, req review.EiaRequest) (*review.EiaResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.EiaResult), args.Error(1)
}

func (m *MockService) ConfirmEiaFormsHaveBeenReceived(ctx context.Context, req review.EiaRequest) (*review.EiaResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.EiaResult), args.Error(1)
}

func newHandler(t *testing.T, taskType string, svc Service) *Handler {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	h, err := NewHandler(HandlerOptions{TaskType: taskType, Registry: reg, Service: svc, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	return h
}

func TestExecute_FormsReceivedFalseSendsReminder(t *testing.T) {
	svc := new(MockService)
	h := newHandler(t, TaskTypeFormsReceived, svc)
	no := false

	svc.On("ConfirmEiaFormsHaveBeenReceived", mock.Anything, review.EiaRequest{
		ApplicationID: "app-1", PerformingUserID: "ao-1", Value: &no,
	}).Return(&review.EiaResult{ApplicationID: "app-1", EiaComplete: true, ReminderSent: true}, nil)

	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", PerformingUserID: "ao-1", Value: &no})
	require.NoError(t, err)
	assert.True(t, out.ReminderSent)
	assert.True(t, out.EiaComplete)
	svc.AssertNotCalled(t, "ConfirmAttachedEiaFormsAreCorrect", mock.Anything, mock.Anything)
}

func TestExecute_FormsCorrectRoutesToCorrectPath(t *testing.T) {
	svc := new(MockService)
	h := newHandler(t, TaskTypeFormsCorrect, svc)
	yes := true

	svc.On("ConfirmAttachedEiaFormsAreCorrect", mock.Anything, mock.Anything).
		Return(&review.EiaResult{ApplicationID: "app-1", EiaComplete: true}, nil)

	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", PerformingUserID: "ao-1", Value: &yes})
	require.NoError(t, err)
	assert.False(t, out.ReminderSent)
	svc.AssertExpectations(t)
}

func TestExecute_UniformFailure(t *testing.T) {
	svc := new(MockService)
	h := newHandler(t, TaskTypeFormsCorrect, svc)

	svc.On("ConfirmAttachedEiaFormsAreCorrect", mock.Anything, mock.Anything).
		Return(nil, errors.NewDependencyFailureError("Unable to confirm the attached EIA forms are correct", nil))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", PerformingUserID: "ao-1"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeDependencyFailure))
}

func TestExecuteJob_NullValueDecodesAsMissing(t *testing.T) {
	svc := new(MockService)
	h := newHandler(t, TaskTypeFormsReceived, svc)

	svc.On("ConfirmEiaFormsHaveBeenReceived", mock.Anything, review.EiaRequest{ApplicationID: "app-1", PerformingUserID: "ao-1"}).
		Return(nil, errors.NewValidationError("A value must be supplied"))

	job := entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       5,
		Variables: `{"applicationId":"app-1","performingUserId":"ao-1","value":null}`,
	}}
	require.NoError(t, h.runner.ValidateJob(job))

	_, err := h.execute(context.Background(), job)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
	svc.AssertExpectations(t)
}

func TestNewHandler_RejectsOtherTaskTypes(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	_, err = NewHandler(HandlerOptions{TaskType: "review.check.mapping", Registry: reg, Service: new(MockService)})
	assert.Error(t, err)
}
