package confirmadminofficerreview

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

const TaskType = "review.adminofficer.confirm"

// Service is the part of review.Service used by this worker.
type Service interface {
	ConfirmAdminOfficerReview(ctx context.Context, req review.ConfirmRequest) (*review.ConfirmResult, error)
}

type Handler struct {
	config  *Config
	logger  logger.Logger
	camunda *camunda.Client
	service Service
	runner  *camunda.JobRunner
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	Registry     *registry.ActivityRegistry
	Service      Service
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("service is required for %s", TaskType)
	}
	activity, ok := opts.Registry.Find(TaskType)
	if !ok {
		return nil, fmt.Errorf("task type %s is not in the activity registry", TaskType)
	}

	workerConfig := createConfigFromAppConfig(opts.AppConfig, activity, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for confirm-admin-officer-review: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"worker": TaskType})

	h := &Handler{
		config:  workerConfig,
		logger:  loggerInstance,
		camunda: opts.Camunda,
		service: opts.Service,
	}

	runnerOpts := camunda.JobRunnerOptions{
		TaskType:    TaskType,
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

// Execute completes the admin officer review stage.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	h.logger.Info("Confirming admin officer review", map[string]interface{}{
		"applicationId":    input.ApplicationID,
		"performingUserId": input.PerformingUserID,
	})

	result, err := h.service.ConfirmAdminOfficerReview(ctx, review.ConfirmRequest{
		ApplicationID:    input.ApplicationID,
		PerformingUserID: input.PerformingUserID,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID:       result.ApplicationID,
		CompletedAt:         result.CompletedAt,
		WoodlandOfficerID:   result.WoodlandOfficerID,
		ConditionsGenerated: result.ConditionsGenerated,
		NotificationsSent:   result.NotificationsSent,
	}, nil
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}
	h.runner.Open(h.camunda.GetClient(), h.config.MaxJobsActive)
	return nil
}

func (h *Handler) Close() {
	h.runner.Close()
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}
