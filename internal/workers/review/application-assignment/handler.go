package applicationassignment

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/camunda"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/review"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/pkg/registry"
)

const (
	TaskTypeAssign   = "review.assignment.assign"
	TaskTypeUnassign = "review.assignment.unassign"
)

var TaskTypes = []string{TaskTypeAssign, TaskTypeUnassign}

type Service interface {
	AssignUserToApplication(ctx context.Context, req review.AssignmentRequest) (*review.AssignmentResult, error)
	UnassignUserFromApplication(ctx context.Context, req review.AssignmentRequest) (*review.AssignmentResult, error)
}

type Handler struct {
	taskType string
	config   *Config
	logger   logger.Logger
	camunda  *camunda.Client
	service  Service
	runner   *camunda.JobRunner
}

type HandlerOptions struct {
	TaskType     string
	AppConfig    *config.Config
	Camunda      *camunda.Client
	Registry     *registry.ActivityRegistry
	Service      Service
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.TaskType != TaskTypeAssign && opts.TaskType != TaskTypeUnassign {
		return nil, fmt.Errorf("application-assignment does not serve task type %q", opts.TaskType)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("service is required for %s", opts.TaskType)
	}
	activity, ok := opts.Registry.Find(opts.TaskType)
	if !ok {
		return nil, fmt.Errorf("task type %s is not in the activity registry", opts.TaskType)
	}

	workerConfig := createConfigFromAppConfig(opts.AppConfig, activity, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", activity.ConfigKey, err)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"worker": opts.TaskType})

	h := &Handler{
		taskType: opts.TaskType,
		config:   workerConfig,
		logger:   loggerInstance,
		camunda:  opts.Camunda,
		service:  opts.Service,
	}

	runnerOpts := camunda.JobRunnerOptions{
		TaskType:    opts.TaskType,
		Timeout:     workerConfig.Timeout,
		InputSchema: activity.InputSchema,
		Logger:      loggerInstance,
	}
	if opts.Camunda != nil {
		runnerOpts.RequestTimeout = opts.Camunda.RequestTimeout()
	}
	h.runner = camunda.NewJobRunner(runnerOpts, h.execute)

	return h, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Handle(client, job)
}

// Process runs a job through validation and Execute without a broker.
func (h *Handler) Process(ctx context.Context, job entities.Job) (interface{}, error) {
	return h.runner.Process(ctx, job)
}

func (h *Handler) execute(ctx context.Context, job entities.Job) (interface{}, error) {
	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		return nil, err
	}
	ctx = audit.WithCorrelationID(ctx, camunda.CorrelationID(job))
	return h.Execute(ctx, &input)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req := review.AssignmentRequest{
		ApplicationID:    input.ApplicationID,
		PerformingUserID: input.PerformingUserID,
		Role:             ledger.Role(input.Role),
		AssignedUserID:   input.AssignedUserID,
	}

	var (
		result *review.AssignmentResult
		err    error
	)
	if h.taskType == TaskTypeAssign {
		result, err = h.service.AssignUserToApplication(ctx, req)
	} else {
		req.AssignedUserID = ""
		result, err = h.service.UnassignUserFromApplication(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("Assignment updated", map[string]interface{}{
		"applicationId":   result.ApplicationID,
		"role":            string(result.Role),
		"currentAssignee": result.CurrentAssignee,
		"changed":         result.Changed,
	})

	return &Output{
		ApplicationID:   result.ApplicationID,
		Role:            string(result.Role),
		CurrentAssignee: result.CurrentAssignee,
		Changed:         result.Changed,
		Status:          string(result.Status),
	}, nil
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", h.taskType)
	}
	h.runner.Open(h.camunda.GetClient(), h.config.MaxJobsActive)
	return nil
}

func (h *Handler) Close() {
	h.runner.Close()
}

func (h *Handler) GetTaskType() string {
	return h.taskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
