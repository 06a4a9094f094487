package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.temporal.io/sdk/client"
	"google.golang.org/grpc"

	"github.com/jordanhubbard/convreview/pkg/config"
)

// Client wraps the Temporal client with the service's connection settings
type Client struct {
	temporal  client.Client
	config    *config.TemporalConfig
	namespace string
}

// New dials Temporal, retrying with exponential backoff before giving up.
func New(cfg *config.TemporalConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("temporal config cannot be nil")
	}

	maxRetries := 5
	baseDelay := 2 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1)) // 2s, 4s, 8s, 16s
			log.Printf("[Temporal] Retrying connection in %v (attempt %d/%d)...", delay, attempt+1, maxRetries)
			time.Sleep(delay)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		c, err := client.DialContext(ctx, client.Options{
			HostPort:  cfg.Host,
			Namespace: cfg.Namespace,
			Logger:    &temporalLogger{},
			ConnectionOptions: client.ConnectionOptions{
				DialOptions: []grpc.DialOption{
					grpc.WithBlock(),
					grpc.FailOnNonTempDialError(false),
				},
			},
		})
		cancel()

		if err == nil {
			log.Printf("[Temporal] Connected to %s (namespace: %s)", cfg.Host, cfg.Namespace)
			return &Client{temporal: c, config: cfg, namespace: cfg.Namespace}, nil
		}
		log.Printf("[Temporal] Connection attempt %d failed: %v", attempt+1, err)
	}

	return nil, fmt.Errorf("failed to create temporal client after %d retries", maxRetries)
}

// Close closes the Temporal client connection
func (c *Client) Close() {
	if c.temporal != nil {
		c.temporal.Close()
	}
}

// GetClient returns the underlying Temporal client
func (c *Client) GetClient() client.Client {
	return c.temporal
}

// GetNamespace returns the configured namespace
func (c *Client) GetNamespace() string {
	return c.namespace
}

// GetTaskQueue returns the configured task queue
func (c *Client) GetTaskQueue() string {
	return c.config.TaskQueue
}

// ExecuteWorkflow starts a new workflow execution
func (c *Client) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	return c.temporal.ExecuteWorkflow(ctx, options, workflow, args...)
}

// temporalLogger routes SDK logs through the standard logger. Debug is dropped.
type temporalLogger struct{}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	log.Printf("[Temporal INFO] %s %v", msg, keyvals)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	log.Printf("[Temporal WARN] %s %v", msg, keyvals)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	log.Printf("[Temporal ERROR] %s %v", msg, keyvals)
}
