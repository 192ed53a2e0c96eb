package amendmentreview

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
	TaskTypeSend    = "review.amendment.send"
	TaskTypeRespond = "review.amendment.respond"
	TaskTypeRearm   = "review.amendment.rearm"
)

var TaskTypes = []string{TaskTypeSend, TaskTypeRespond, TaskTypeRearm}

type Service interface {
	RecordAmendmentsSent(ctx context.Context, req review.AmendmentsSentRequest) (*review.AmendmentResult, error)
	RecordApplicantAmendmentResponse(ctx context.Context, req review.AmendmentResponseRequest) (*review.AmendmentResult, error)
	RearmAmendmentReminder(ctx context.Context, req review.RearmReminderRequest) (*review.AmendmentResult, error)
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
	switch opts.TaskType {
	case TaskTypeSend, TaskTypeRespond, TaskTypeRearm:
	default:
		return nil, fmt.Errorf("amendment-review does not serve task type %q", opts.TaskType)
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
	var (
		result *review.AmendmentResult
		err    error
	)

	switch h.taskType {
	case TaskTypeSend:
		result, err = h.service.RecordAmendmentsSent(ctx, review.AmendmentsSentRequest{
			ApplicationID:    input.ApplicationID,
			PerformingUserID: input.PerformingUserID,
			Reason:           input.Reason,
			ResponseDeadline: input.ResponseDeadline,
		})
	case TaskTypeRespond:
		result, err = h.service.RecordApplicantAmendmentResponse(ctx, review.AmendmentResponseRequest{
			AmendmentID:        input.AmendmentID,
			PerformingUserID:   input.PerformingUserID,
			Agreed:             input.Agreed,
			DisagreementReason: input.DisagreementReason,
		})
	case TaskTypeRearm:
		result, err = h.service.RearmAmendmentReminder(ctx, review.RearmReminderRequest{
			AmendmentID:      input.AmendmentID,
			PerformingUserID: input.PerformingUserID,
			At:               input.ReminderAt,
		})
	}
	if err != nil {
		return nil, err
	}

	out := &Output{
		AmendmentID:      result.AmendmentID,
		ApplicationID:    result.ApplicationID,
		ResponseDeadline: result.ResponseDeadline,
	}
	if a := result.Amendment; a != nil {
		out.ResponseReceived = a.ResponseReceivedAt != nil
		out.ApplicantAgreed = a.ApplicantAgreed
	}
	return out, nil
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
