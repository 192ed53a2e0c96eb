// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
)

// Client wraps the Zeebe gRPC client with retry and error mapping.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// ConfigFromApp builds a ClientConfig from the camunda section of the app config.
func ConfigFromApp(cfg config.CamundaConfig) *ClientConfig {
	requestTimeout := config.GetDuration(cfg.RequestTimeout)
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: cfg.UsePlaintext,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         requestTimeout,
		RetryConfig:            DefaultRetryConfig,
	}
}

// NewClientWithConfig connects to the gateway and verifies the topology.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: config,
	}, nil
}

// GetClient returns the raw Zeebe client for job worker registration.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) RequestTimeout() time.Duration {
	return c.config.RequestTimeout
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry runs command with exponential backoff. Only transient
// errors (timeouts, connection issues) are retried.
func (c *Client) ExecuteWithRetry(ctx context.Context, command func(context.Context) error, operationName string) error {
	return executeWithRetry(ctx, c.config.RetryConfig, command, operationName)
}

func executeWithRetry(ctx context.Context, retry *RetryConfig, command func(context.Context) error, operationName string) error {
	for attempt := 0; ; attempt++ {
		err := command(ctx)
		if err == nil {
			return nil
		}

		if !isRetryableZeebeError(err) || attempt >= retry.MaxRetries {
			return mapZeebeError(err, operationName, attempt)
		}

		delay := retry.BaseDelay * time.Duration(1<<attempt)
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.NewDependencyFailureError(
				fmt.Sprintf("Zeebe operation '%s' cancelled after %d attempts", operationName, attempt+1), ctx.Err())
		}
	}
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
		"resource_exhausted",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError converts Zeebe errors into StandardErrors.
func mapZeebeError(err error, operation string, attempt int) error {
	lowerMsg := strings.ToLower(err.Error())

	enhancedMsg := fmt.Sprintf("Zeebe operation '%s' failed", operation)
	if attempt > 0 {
		enhancedMsg += fmt.Sprintf(" after %d attempts", attempt+1)
	}

	switch {
	case strings.Contains(lowerMsg, "not found"):
		return errors.NewNotFoundError("ZeebeResource", operation)

	case strings.Contains(lowerMsg, "already exists"),
		strings.Contains(lowerMsg, "failed_precondition"):
		return errors.NewInvalidStateError(enhancedMsg)

	case strings.Contains(lowerMsg, "permission denied"),
		strings.Contains(lowerMsg, "unauthorized"),
		strings.Contains(lowerMsg, "unauthenticated"):
		return errors.NewNotAuthorizedError(enhancedMsg)

	default:
		return errors.NewDependencyFailureError(enhancedMsg, err)
	}
}

// HealthCheck performs a topology request against the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
