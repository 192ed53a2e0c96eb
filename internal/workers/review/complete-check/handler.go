package completecheck

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/camunda"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/review"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/pkg/registry"
)

const (
	TaskTypeMapping        = "review.check.mapping"
	TaskTypeConstraints    = "review.check.constraints"
	TaskTypeAgentAuthority = "review.check.agentauthority"
	TaskTypeLarch          = "review.check.larch"
	TaskTypeTreeHealth     = "review.check.treehealth"
)

// TaskTypes lists every task type served by this package.
var TaskTypes = []string{
	TaskTypeMapping,
	TaskTypeConstraints,
	TaskTypeAgentAuthority,
	TaskTypeLarch,
	TaskTypeTreeHealth,
}

// Service is the part of review.Service used by the check workers.
type Service interface {
	CompleteMappingCheck(ctx context.Context, req review.CheckRequest) (*review.CheckResult, error)
	CompleteConstraintsCheck(ctx context.Context, req review.CheckRequest) (*review.CheckResult, error)
	CompleteAgentAuthorityCheck(ctx context.Context, req review.CheckRequest) (*review.CheckResult, error)
	CompleteLarchCheck(ctx context.Context, req review.CheckRequest) (*review.CheckResult, error)
	ConfirmTreeHealthCheck(ctx context.Context, req review.CheckRequest) (*review.CheckResult, error)
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
	if !supported(opts.TaskType) {
		return nil, fmt.Errorf("complete-check does not serve task type %q", opts.TaskType)
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

func supported(taskType string) bool {
	for _, t := range TaskTypes {
		if t == taskType {
			return true
		}
	}
	return false
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

// Execute records the check decision through the review service.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req := review.CheckRequest{
		ApplicationID:          input.ApplicationID,
		PerformingUserID:       input.PerformingUserID,
		Passed:                 input.Passed,
		Reason:                 input.Reason,
		InspectionLogConfirmed: input.InspectionLogConfirmed,
		MoratoriumConfirmed:    input.MoratoriumConfirmed,
	}

	var (
		result *review.CheckResult
		err    error
	)
	switch h.taskType {
	case TaskTypeMapping:
		result, err = h.service.CompleteMappingCheck(ctx, req)
	case TaskTypeConstraints:
		result, err = h.service.CompleteConstraintsCheck(ctx, req)
	case TaskTypeAgentAuthority:
		result, err = h.service.CompleteAgentAuthorityCheck(ctx, req)
	case TaskTypeLarch:
		result, err = h.service.CompleteLarchCheck(ctx, req)
	case TaskTypeTreeHealth:
		result, err = h.service.ConfirmTreeHealthCheck(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID:   result.ApplicationID,
		Check:           string(result.Check),
		ReviewCompleted: result.ReviewCompleted,
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

func (h *Handler) GetConfig() *Config {
	return h.config
}
