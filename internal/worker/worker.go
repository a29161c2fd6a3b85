// Package worker consumes queued execution requests and drives them
// through the Executor, or — when no message queue is configured —
// polls the executions table directly for work a trigger enqueued
// synchronously.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/flowcore/engine/internal/config"
	"github.com/flowcore/engine/internal/errortracking"
	"github.com/flowcore/engine/internal/executor"
	"github.com/flowcore/engine/internal/executor/javascript"
	"github.com/flowcore/engine/internal/messaging"
	"github.com/flowcore/engine/internal/nodes"
	"github.com/flowcore/engine/internal/objectstore"
	"github.com/flowcore/engine/internal/param"
	"github.com/flowcore/engine/internal/quota"
	"github.com/flowcore/engine/internal/registry"
	"github.com/flowcore/engine/internal/storage"
	"github.com/flowcore/engine/internal/store"
	"github.com/flowcore/engine/internal/store/postgres"
)

// ExecutionRequest is the queued unit of work: everything the Executor's
// Request needs to run a submission asynchronously.
type ExecutionRequest struct {
	ExecutionID        string                        `json:"execution_id"`
	WorkflowID         string                        `json:"workflow_id"`
	OrganizationID     string                        `json:"organization_id"`
	UserID             string                        `json:"user_id"`
	DeploymentID       string                        `json:"deployment_id,omitempty"`
	ComputeCredits     float64                       `json:"compute_credits"`
	OverageLimit       *float64                      `json:"overage_limit,omitempty"`
	UserPlan           string                        `json:"user_plan,omitempty"`
	SubscriptionStatus string                        `json:"subscription_status,omitempty"`
	Mode               registry.Mode                 `json:"mode,omitempty"`
	Parameters         map[string]json.RawMessage    `json:"parameters,omitempty"`
	HTTPRequest        *registry.HTTPRequestContext  `json:"http_request,omitempty"`
}

// Worker drives queued or polled executions to completion.
type Worker struct {
	config         *config.Config
	logger         *slog.Logger
	db             *sqlx.DB
	redis          *redis.Client
	executor       *executor.Executor
	workflowStore  store.WorkflowStore
	executionStore store.ExecutionStore
	creditLedger   *quota.CreditLedger

	messageQueue messaging.MessageQueue
	queueEnabled bool

	concurrency      int
	concurrencyLimit *OrganizationConcurrencyLimiter
	wg               sync.WaitGroup

	activeExecutions atomic.Int32
	processedTotal   atomic.Int64
	failedTotal      atomic.Int64
}

// New wires a Worker from configuration: a Postgres-backed store, a
// Redis-backed concurrency limiter, an object store for blob
// externalization, and the demonstration node set gated by the
// worker's capability flags.
func New(cfg *config.Config, logger *slog.Logger) (*Worker, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("worker: connecting to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	workflowStore := postgres.NewWorkflowStore(db)
	executionStore := postgres.NewExecutionStore(db)
	deploymentStore := postgres.NewDeploymentStore(db)

	backend, err := storage.NewS3Storage(cfg.AWS.Region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("worker: initializing object storage: %w", err)
	}
	objStore := objectstore.NewStore(backend, cfg.AWS.S3Bucket)
	codec := param.NewTable(objStore)

	reg := registry.New()
	caps := nodes.Capabilities{
		OutboundHTTP: cfg.Worker.OutboundHTTPEnabled,
		Logger:       logger,
	}
	if cfg.Worker.JSSandboxEnabled {
		engine, err := javascript.NewEngine(nil)
		if err != nil {
			return nil, fmt.Errorf("worker: initializing javascript engine: %w", err)
		}
		caps.JSSandbox = true
		caps.JSEngine = engine
	}
	nodes.RegisterAll(reg, caps)

	errorTracker, err := errortracking.Initialize(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("worker: initializing error tracking: %w", err)
	}

	creditLedger := quota.NewCreditLedger(redisClient)
	quotaTracker := quota.NewTracker(redisClient)
	quotaMiddleware := quota.NewExecutorMiddleware(quotaTracker, logger)

	exec := executor.New(reg, codec, executionStore, logger).
		WithDeploymentStore(deploymentStore).
		WithQuotaMiddleware(quotaMiddleware).
		WithErrorTracker(errorTracker)

	maxPerOrg := 10
	if cfg.Worker.MaxConcurrencyPerTenant > 0 {
		maxPerOrg = cfg.Worker.MaxConcurrencyPerTenant
	}
	concurrencyLimit := NewOrganizationConcurrencyLimiter(redisClient, maxPerOrg)

	w := &Worker{
		config:           cfg,
		logger:           logger,
		db:               db,
		redis:            redisClient,
		executor:         exec,
		workflowStore:    workflowStore,
		executionStore:   executionStore,
		creditLedger:     creditLedger,
		concurrency:      cfg.Worker.Concurrency,
		concurrencyLimit: concurrencyLimit,
		queueEnabled:     cfg.Queue.Enabled,
	}

	if cfg.Queue.Enabled {
		mq, err := messaging.NewMessageQueue(context.Background(), messaging.Config{
			Type:       messaging.QueueType(cfg.Queue.Type),
			Region:     cfg.AWS.Region,
			URL:        cfg.Worker.QueueURL,
			MaxRetries: cfg.Queue.MaxRetries,
			Timeout:    time.Duration(cfg.Queue.ProcessTimeout) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("worker: initializing message queue: %w", err)
		}
		w.messageQueue = mq
		logger.Info("queue consumer initialized", "queue_url", cfg.Worker.QueueURL)
	}

	return w, nil
}

// Start begins processing jobs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if w.queueEnabled && w.messageQueue != nil {
		w.logger.Info("starting queue-based worker", "queue_enabled", true)
		return w.consumeQueue(ctx)
	}

	w.logger.Info("starting worker pool", "concurrency", w.concurrency, "queue_enabled", false)
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (w *Worker) consumeQueue(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := w.messageQueue.Receive(ctx, w.config.Worker.QueueURL, 10, 5*time.Second)
		if err != nil {
			w.logger.Error("failed to receive queue messages", "error", err)
			continue
		}

		for _, msg := range messages {
			if err := w.handleMessage(ctx, msg); err != nil {
				w.logger.Error("failed to process queue message", "error", err, "message_id", msg.ID)
				if nackErr := w.messageQueue.Nack(ctx, msg); nackErr != nil {
					w.logger.Error("failed to nack message", "error", nackErr, "message_id", msg.ID)
				}
				continue
			}
			if err := w.messageQueue.Ack(ctx, msg); err != nil {
				w.logger.Error("failed to ack message", "error", err, "message_id", msg.ID)
			}
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg messaging.Message) error {
	var req ExecutionRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		return fmt.Errorf("decoding execution request: %w", err)
	}
	return w.processRequest(ctx, req)
}

// processLoop is the polling fallback's per-goroutine loop.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Info("worker started", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "worker_id", workerID)
			return
		default:
			req, err := w.claimPendingExecution(ctx)
			if err != nil {
				if !errors.Is(err, ErrNoWork) {
					w.logger.Error("failed to claim execution", "error", err)
				}
				time.Sleep(500 * time.Millisecond)
				continue
			}

			if err := w.processRequest(ctx, *req); err != nil {
				w.logger.Error("execution failed", "error", err, "execution_id", req.ExecutionID)
			}
		}
	}
}

// claimPendingExecution atomically claims the oldest pending execution
// and reconstructs the request that originally submitted it.
func (w *Worker) claimPendingExecution(ctx context.Context) (*ExecutionRequest, error) {
	if err := w.markStaleExecutionsAsFailed(ctx); err != nil {
		w.logger.Error("failed to mark stale executions", "error", err)
	}

	query := `
		UPDATE executions
		SET status = 'running', started_at = $1
		WHERE id = (
			SELECT id FROM executions
			WHERE status = 'pending'
			ORDER BY started_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, workflow_id, deployment_id, organization_id, user_id, usage
	`

	var row struct {
		ID             string  `db:"id"`
		WorkflowID     string  `db:"workflow_id"`
		DeploymentID   *string `db:"deployment_id"`
		OrganizationID string  `db:"organization_id"`
		UserID         string  `db:"user_id"`
		Usage          float64 `db:"usage"`
	}
	if err := w.db.GetContext(ctx, &row, query, time.Now()); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, ErrNoWork
		}
		return nil, err
	}

	req := &ExecutionRequest{
		ExecutionID:    row.ID,
		WorkflowID:     row.WorkflowID,
		OrganizationID: row.OrganizationID,
		UserID:         row.UserID,
		Mode:           registry.ModeProd,
	}
	if row.DeploymentID != nil {
		req.DeploymentID = *row.DeploymentID
	}
	return req, nil
}

// markStaleExecutionsAsFailed marks executions pending for too long as failed.
func (w *Worker) markStaleExecutionsAsFailed(ctx context.Context) error {
	staleThreshold := time.Now().Add(-1 * time.Hour)
	errorMsg := "execution timeout: pending for more than 1 hour"

	query := `
		UPDATE executions
		SET status = 'error', error = $1, ended_at = $2
		WHERE status = 'pending' AND started_at < $3
	`
	_, err := w.db.ExecContext(ctx, query, errorMsg, time.Now(), staleThreshold)
	return err
}

// processRequest resolves the workflow, enforces organization
// concurrency, and drives the Executor to completion.
func (w *Worker) processRequest(ctx context.Context, req ExecutionRequest) error {
	w.logger.Info("processing execution", "execution_id", req.ExecutionID, "workflow_id", req.WorkflowID, "organization_id", req.OrganizationID)

	acquired, err := w.concurrencyLimit.Acquire(ctx, req.OrganizationID, req.ExecutionID)
	if err != nil {
		w.logger.Error("failed to acquire organization concurrency slot", "error", err, "organization_id", req.OrganizationID)
		return err
	}
	if !acquired {
		w.logger.Warn("organization at concurrency limit, execution will be retried",
			"organization_id", req.OrganizationID,
			"execution_id", req.ExecutionID,
			"max_concurrent", w.concurrencyLimit.GetMaxPerOrganization(),
		)
		return ErrOrganizationAtCapacity
	}
	defer func() {
		if err := w.concurrencyLimit.Release(ctx, req.OrganizationID, req.ExecutionID); err != nil {
			w.logger.Error("failed to release organization concurrency slot", "error", err, "organization_id", req.OrganizationID)
		}
	}()

	w.activeExecutions.Add(1)
	defer w.activeExecutions.Add(-1)

	balance, err := w.creditLedger.Balance(ctx, req.OrganizationID)
	if err != nil {
		w.logger.Error("failed to read compute credit balance, falling back to submitted value",
			"error", err, "organization_id", req.OrganizationID)
		balance = req.ComputeCredits
	}

	executorReq := executor.Request{
		UserID:             req.UserID,
		OrganizationID:     req.OrganizationID,
		ComputeCredits:     balance,
		SubscriptionStatus: req.SubscriptionStatus,
		OverageLimit:       req.OverageLimit,
		DeploymentID:       req.DeploymentID,
		Parameters:         req.Parameters,
		UserPlan:           req.UserPlan,
		Mode:               req.Mode,
		HTTPRequest:        req.HTTPRequest,
	}

	if req.DeploymentID == "" {
		wf, err := w.workflowStore.GetWorkflow(ctx, req.OrganizationID, req.WorkflowID)
		if err != nil {
			w.failedTotal.Add(1)
			return fmt.Errorf("loading workflow: %w", err)
		}
		executorReq.Workflow = *wf
	}

	_, usage, err := w.executor.Execute(ctx, executorReq)
	if err != nil {
		w.failedTotal.Add(1)
		return err
	}

	if usage > 0 {
		overageLimit := 0.0
		if req.OverageLimit != nil {
			overageLimit = *req.OverageLimit
		}
		if _, deductErr := w.creditLedger.Deduct(ctx, req.OrganizationID, usage, overageLimit); deductErr != nil {
			w.logger.Error("failed to deduct compute credits", "error", deductErr, "organization_id", req.OrganizationID, "execution_id", req.ExecutionID)
		}
	}

	w.logger.Info("execution completed", "execution_id", req.ExecutionID)
	w.processedTotal.Add(1)
	return nil
}

// Wait waits for all polling-mode workers to finish.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Close cleans up worker resources.
func (w *Worker) Close() error {
	if w.db != nil {
		w.db.Close()
	}
	if w.redis != nil {
		w.redis.Close()
	}
	if w.messageQueue != nil {
		return w.messageQueue.Close()
	}
	return nil
}

func (w *Worker) getActiveExecutions() int32 {
	return w.activeExecutions.Load()
}

func (w *Worker) getProcessedCount() int64 {
	return w.processedTotal.Load()
}

func (w *Worker) getFailedCount() int64 {
	return w.failedTotal.Load()
}

// WorkerError is a sentinel error carrying a fixed message.
type WorkerError struct {
	Message string
}

func (e WorkerError) Error() string {
	return e.Message
}

var (
	ErrNoWork                 = WorkerError{Message: "no work available"}
	ErrOrganizationAtCapacity = WorkerError{Message: "organization at concurrency capacity"}
	ErrMissingQueueURL        = WorkerError{Message: "queue URL is required when queue is enabled"}
)
