package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ErrDuplicateJob is returned when a job id is already queued
var ErrDuplicateJob = errors.New("job already queued")

type taskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// AsynqClient enqueues jobs as asynq tasks keyed by job id
type AsynqClient struct {
	client    *asynq.Client
	queue     string
	policy    RetryPolicy
	retention time.Duration
}

func NewAsynqClient(client *asynq.Client, queue string, policy RetryPolicy, retention time.Duration) *AsynqClient {
	return &AsynqClient{
		client:    client,
		queue:     queue,
		policy:    policy,
		retention: retention,
	}
}

func (c *AsynqClient) Enqueue(ctx context.Context, jobID string, payload []byte) error {
	task, err := newSearchTask(jobID, payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	_, err = c.client.EnqueueContext(ctx, task, c.options(jobID)...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return ErrDuplicateJob
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func (c *AsynqClient) options(jobID string) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(c.queue),
		asynq.TaskID(jobID),
		asynq.MaxRetry(c.policy.Attempts() - 1),
		asynq.Retention(c.retention),
	}
}

func newSearchTask(jobID string, payload []byte) (*asynq.Task, error) {
	data, err := json.Marshal(taskEnvelope{JobID: jobID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSearch, data), nil
}

// AsynqServer runs the handler for search tasks pulled from Redis
type AsynqServer struct {
	srv     *asynq.Server
	handler HandlerFunc
	logger  *zap.Logger
}

// ServerConfig configures the asynq worker server
type ServerConfig struct {
	Concurrency int
	Queue       string
	Policy      RetryPolicy
}

func NewAsynqServer(redisOpt asynq.RedisClientOpt, cfg ServerConfig, handler HandlerFunc, logger *zap.Logger) *AsynqServer {
	logger = logger.Named("asynq")
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			cfg.Queue: 1,
		},
		RetryDelayFunc: retryDelayFunc(cfg.Policy),
		Logger:         logger.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn("task failed",
				zap.String("type", task.Type()),
				zap.Int("retried", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})

	return &AsynqServer{srv: srv, handler: handler, logger: logger}
}

// retryDelayFunc maps asynq's retry count (0 on the first failure) onto the policy.
func retryDelayFunc(p RetryPolicy) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return p.Delay(n + 1)
	}
}

// ProcessTask adapts an asynq task to the handler
func (s *AsynqServer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var env taskEnvelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	err := s.handler(ctx, Task{
		JobID:       env.JobID,
		Payload:     env.Payload,
		Attempt:     retried + 1,
		MaxAttempts: maxRetry + 1,
	})
	if err != nil && errors.Is(err, ErrSkipRetry) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Run serves until ctx is done
func (s *AsynqServer) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSearch, s.ProcessTask)

	if err := s.srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}
	s.logger.Info("worker server started")

	<-ctx.Done()
	s.srv.Shutdown()
	return nil
}
