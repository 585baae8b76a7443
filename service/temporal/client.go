package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// Client is the Temporal-backed Scheduler.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

func (c *Client) scanAction(address string, dustThreshold uint64) *client.ScheduleWorkflowAction {
	return &client.ScheduleWorkflowAction{
		ID:        "scan-wallet-run-" + address,
		Workflow:  ScanWalletWorkflow,
		TaskQueue: c.taskQueue,
		Args: []interface{}{ScanWalletInput{
			Address:       address,
			DustThreshold: dustThreshold,
		}},
	}
}

// UpsertScanSchedule creates the wallet's scan schedule, or updates its
// interval and dust threshold if it already exists.
func (c *Client) UpsertScanSchedule(ctx context.Context, address string, interval time.Duration, dustThreshold uint64) error {
	id := scheduleID(address)
	spec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
	}

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.DebugContext(ctx, "schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID:     id,
			Spec:   spec,
			Action: c.scanAction(address, dustThreshold),
			Memo: map[string]interface{}{
				"wallet_address": address,
				"created_by":     "solsweep",
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create schedule %q: %w", id, err)
		}
		c.logger.InfoContext(ctx, "scan schedule created",
			"address", address,
			"schedule_id", id,
			"interval", interval,
		)
		return nil
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec = &spec
			input.Description.Schedule.Action = c.scanAction(address, dustThreshold)
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "scan schedule updated",
		"address", address,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// DeleteScanSchedule deletes the wallet's scan schedule.
func (c *Client) DeleteScanSchedule(ctx context.Context, address string) error {
	id := scheduleID(address)
	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}
	c.logger.InfoContext(ctx, "scan schedule deleted",
		"address", address,
		"schedule_id", id,
	)
	return nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
