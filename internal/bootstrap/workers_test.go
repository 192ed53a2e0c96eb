package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/conditions"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/directory"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/messaging"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/notify"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/review"
	applicationassignment "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/workers/review/application-assignment"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/pkg/registry"
)

func newTestService() *review.Service {
	return newTestServiceWithStore(repository.NewMemoryStore())
}

func newTestServiceWithStore(store repository.Store) *review.Service {
	return review.NewService(review.Dependencies{
		Store:         store,
		Conditions:    conditions.NewFakeCalculator(),
		Notifier:      notify.NewFakeSender(),
		Audit:         audit.NewFakeRecorder(),
		InternalUsers: directory.MapDirectory{},
		ExternalUsers: directory.MapDirectory{},
		Bus:           messaging.NewFakePublisher(),
	}, review.Config{})
}

func TestNewWorkers_CoversRegistry(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	workers, err := NewWorkers(WorkerDeps{
		AppConfig: &config.Config{Workers: map[string]config.WorkerConfig{
			"rearm-amendment-reminder": {Enabled: false, MaxJobsActive: 1, Timeout: 1000},
		}},
		Registry: reg,
		Service:  newTestService(),
		Logger:   logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	require.Len(t, workers, len(reg.Activities))

	seen := map[string]bool{}
	for _, w := range workers {
		assert.False(t, seen[w.GetTaskType()], "duplicate worker for %s", w.GetTaskType())
		seen[w.GetTaskType()] = true
		if w.GetTaskType() == "review.amendment.rearm" {
			assert.False(t, w.IsEnabled())
			assert.NoError(t, w.Register())
		} else {
			assert.True(t, w.IsEnabled())
		}
	}
}

func TestCheckCoverage(t *testing.T) {
	reg, err := registry.Parse([]byte(`{"activities":[{"id":"review.extra.task","taskType":"review.extra.task"}]}`))
	require.NoError(t, err)

	assert.Error(t, checkCoverage(reg, nil))
}

func TestProcess_AssignAdminOfficerThroughWorker(t *testing.T) {
	submitted := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	store.PutApplication(&models.Application{
		ID:            "app-1",
		Reference:     "FLA-001",
		CreatedByID:   "applicant-1",
		StatusHistory: ledger.StatusHistory{{Status: ledger.StatusSubmitted, CreatedAt: submitted}},
	})

	reg, err := registry.Default()
	require.NoError(t, err)
	workers, err := NewWorkers(WorkerDeps{Registry: reg, Service: newTestServiceWithStore(store), Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	w, ok := Find(workers, applicationassignment.TaskTypeAssign)
	require.True(t, ok)

	out, err := w.Process(context.Background(), entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       1,
		Type:      applicationassignment.TaskTypeAssign,
		Variables: `{"applicationId":"app-1","performingUserId":"manager-1","role":"AdminOfficer","assignedUserId":"ao-1"}`,
	}})
	require.NoError(t, err)
	assert.Equal(t, "AdminOfficerReview", out.(*applicationassignment.Output).Status)

	app, ok := store.Application("app-1")
	require.True(t, ok)
	assert.True(t, app.Assignees.IsCurrentAssignee(ledger.RoleAdminOfficer, "ao-1"))
	assert.Equal(t, ledger.StatusAdminOfficerReview, app.CurrentStatus())

	_, err = w.Process(context.Background(), entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       2,
		Variables: `{"applicationId":"app-1","performingUserId":"manager-1","role":"Gardener","assignedUserId":"ao-1"}`,
	}})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidJobInput))
}
