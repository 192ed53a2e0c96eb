package bootstrap

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/camunda"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/review"
	amendmentreview "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/workers/review/amendment-review"
	applicationassignment "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/workers/review/application-assignment"
	completecheck "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/workers/review/complete-check"
	confirmadminofficerreview "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/workers/review/confirm-admin-officer-review"
	confirmeiaforms "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/workers/review/confirm-eia-forms"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/pkg/registry"
)

// Worker is a registered job handler.
type Worker interface {
	Register() error
	Close()
	GetTaskType() string
	IsEnabled() bool
	Process(ctx context.Context, job entities.Job) (interface{}, error)
}

// WorkerDeps are what every review worker needs.
type WorkerDeps struct {
	AppConfig *config.Config
	Camunda   *camunda.Client
	Registry  *registry.ActivityRegistry
	Service   *review.Service
	Logger    logger.Logger
}

// NewWorkers builds one handler per review task type.
func NewWorkers(deps WorkerDeps) ([]Worker, error) {
	var workers []Worker

	for _, taskType := range completecheck.TaskTypes {
		h, err := completecheck.NewHandler(completecheck.HandlerOptions{
			TaskType:  taskType,
			AppConfig: deps.AppConfig,
			Camunda:   deps.Camunda,
			Registry:  deps.Registry,
			Service:   deps.Service,
			Logger:    deps.Logger,
		})
		if err != nil {
			return nil, err
		}
		workers = append(workers, h)
	}

	confirm, err := confirmadminofficerreview.NewHandler(confirmadminofficerreview.HandlerOptions{
		AppConfig: deps.AppConfig,
		Camunda:   deps.Camunda,
		Registry:  deps.Registry,
		Service:   deps.Service,
		Logger:    deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	workers = append(workers, confirm)

	for _, taskType := range confirmeiaforms.TaskTypes {
		h, err := confirmeiaforms.NewHandler(confirmeiaforms.HandlerOptions{
			TaskType:  taskType,
			AppConfig: deps.AppConfig,
			Camunda:   deps.Camunda,
			Registry:  deps.Registry,
			Service:   deps.Service,
			Logger:    deps.Logger,
		})
		if err != nil {
			return nil, err
		}
		workers = append(workers, h)
	}

	for _, taskType := range amendmentreview.TaskTypes {
		h, err := amendmentreview.NewHandler(amendmentreview.HandlerOptions{
			TaskType:  taskType,
			AppConfig: deps.AppConfig,
			Camunda:   deps.Camunda,
			Registry:  deps.Registry,
			Service:   deps.Service,
			Logger:    deps.Logger,
		})
		if err != nil {
			return nil, err
		}
		workers = append(workers, h)
	}

	for _, taskType := range applicationassignment.TaskTypes {
		h, err := applicationassignment.NewHandler(applicationassignment.HandlerOptions{
			TaskType:  taskType,
			AppConfig: deps.AppConfig,
			Camunda:   deps.Camunda,
			Registry:  deps.Registry,
			Service:   deps.Service,
			Logger:    deps.Logger,
		})
		if err != nil {
			return nil, err
		}
		workers = append(workers, h)
	}

	if err := checkCoverage(deps.Registry, workers); err != nil {
		return nil, err
	}
	return workers, nil
}

// Find returns the worker serving taskType.
func Find(workers []Worker, taskType string) (Worker, bool) {
	for _, w := range workers {
		if w.GetTaskType() == taskType {
			return w, true
		}
	}
	return nil, false
}

// checkCoverage fails when a registered activity has no handler.
func checkCoverage(reg *registry.ActivityRegistry, workers []Worker) error {
	served := make(map[string]bool, len(workers))
	for _, w := range workers {
		served[w.GetTaskType()] = true
	}
	for _, a := range reg.Activities {
		if !served[a.TaskType] {
			return fmt.Errorf("no worker serves registered task type %s", a.TaskType)
		}
	}
	return nil
}
