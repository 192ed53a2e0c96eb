// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/trace"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/metrics"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/validation"
)

// ExecuteFunc runs the business logic of one job whose variables already
// passed schema validation. The returned value becomes the job's output
// variables.
type ExecuteFunc func(ctx context.Context, job entities.Job) (interface{}, error)

// JobObserver receives a span and outcome for every handled job.
type JobObserver interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span)
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

var observer JobObserver

// SetObserver installs o for every runner. Passing nil disables it.
func SetObserver(o JobObserver) {
	observer = o
}

// JobRunnerOptions configures a JobRunner.
type JobRunnerOptions struct {
	TaskType       string
	Timeout        time.Duration
	RequestTimeout time.Duration
	InputSchema    map[string]interface{}
	Retry          *RetryConfig
	Logger         logger.Logger
}

// JobRunner carries the per-job plumbing shared by every worker: metrics,
// deadline, input validation, completion and BPMN error propagation.
type JobRunner struct {
	opts      JobRunnerOptions
	logger    logger.Logger
	errors    *errors.ErrorHandler
	execute   ExecuteFunc
	jobWorker worker.JobWorker
}

func NewJobRunner(opts JobRunnerOptions, execute ExecuteFunc) *JobRunner {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Retry == nil {
		opts.Retry = DefaultRetryConfig
	}
	return &JobRunner{
		opts:    opts,
		logger:  opts.Logger,
		errors:  errors.NewErrorHandler(opts.Logger),
		execute: execute,
	}
}

// Handle processes one activated job. It matches worker.JobHandler.
func (r *JobRunner) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	taskType := r.opts.TaskType
	metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()

	r.logger.Info("Processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             taskType,
	})

	obs := observer
	if obs != nil {
		var span trace.Span
		ctx, span = obs.StartSpan(ctx, taskType, map[string]string{
			"jobKey": CorrelationID(job),
		})
		defer span.End()
	}
	status := "success"
	defer func() {
		if obs != nil {
			obs.RecordJobProcessed(ctx, taskType, status)
			obs.RecordJobDuration(ctx, taskType, time.Since(startTime), status)
		}
	}()

	output, err := r.Process(ctx, job)

	// Replies to the broker must go out even when the job deadline has passed.
	replyCtx, replyCancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.RequestTimeout)
	defer replyCancel()

	if err != nil {
		status = "failed"
		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(errors.CodeOf(err))).Inc()
		r.errors.HandleJobError(replyCtx, client, job, err)
		return
	}

	if err := r.completeJob(replyCtx, client, job, output); err != nil {
		status = "failed"
		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(errors.CodeOf(err))).Inc()
		r.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": taskType,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(startTime).Seconds())
}

// Process validates and executes job without talking to the broker.
func (r *JobRunner) Process(ctx context.Context, job entities.Job) (interface{}, error) {
	if err := r.ValidateJob(job); err != nil {
		return nil, err
	}
	return r.execute(ctx, job)
}

// ValidateJob checks the job variables against the runner's input schema.
func (r *JobRunner) ValidateJob(job entities.Job) error {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return errors.NewInvalidJobInputError(fmt.Sprintf("failed to parse job variables: %v", err))
	}
	return ValidateVariables(variables, r.opts.InputSchema)
}

// ValidateVariables checks variables against schema.
func ValidateVariables(variables map[string]interface{}, schema map[string]interface{}) error {
	result, err := validation.ValidateInput(variables, schema)
	if err != nil {
		return errors.NewInvalidJobInputError(err.Error())
	}
	if !result.Valid {
		return errors.NewInvalidJobInputError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

func (r *JobRunner) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	return executeWithRetry(ctx, r.opts.Retry, func(ctx context.Context) error {
		request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
		if err != nil {
			return fmt.Errorf("encode output variables: %w", err)
		}
		_, err = request.Send(ctx)
		return err
	}, "complete job "+strconv.FormatInt(job.GetKey(), 10))
}

// Open registers the runner as a job worker on client.
func (r *JobRunner) Open(client zbc.Client, maxJobsActive int) {
	r.jobWorker = client.NewJobWorker().
		JobType(r.opts.TaskType).
		Handler(r.Handle).
		MaxJobsActive(maxJobsActive).
		Timeout(r.opts.Timeout).
		Name(fmt.Sprintf("%s-worker", r.opts.TaskType)).
		Open()

	r.logger.Info("Worker registered with Camunda", map[string]interface{}{
		"taskType":      r.opts.TaskType,
		"maxJobsActive": maxJobsActive,
		"timeout":       r.opts.Timeout.String(),
	})
}

// Close stops polling and waits for in-flight jobs.
func (r *JobRunner) Close() {
	if r.jobWorker != nil {
		r.logger.Info("Shutting down worker gracefully", map[string]interface{}{
			"worker": r.opts.TaskType,
		})
		r.jobWorker.Close()
		r.jobWorker.AwaitClose()
		r.jobWorker = nil
	}
}

func (r *JobRunner) TaskType() string {
	return r.opts.TaskType
}

// DecodeVariables unmarshals the job variables into dest. Unknown process
// variables are ignored.
func DecodeVariables(job entities.Job, dest interface{}) error {
	if err := json.Unmarshal([]byte(job.GetVariables()), dest); err != nil {
		return errors.NewInvalidJobInputError(fmt.Sprintf("failed to decode job variables: %v", err))
	}
	return nil
}

// CorrelationID identifies a job in audit events.
func CorrelationID(job entities.Job) string {
	return strconv.FormatInt(job.GetKey(), 10)
}
