package capabilities

import "time"

// Config specifies how capability calls are executed.
type Config struct {
	ExecutionTimeout time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	RetryConfig      RetryConfig   `json:"retry_config" yaml:"retry_config"`
}

// RetryConfig defines retry behavior for failing capability handlers.
// Validation, permission and timeout failures are never retried.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`
	BackoffBase   time.Duration `json:"backoff_base" yaml:"backoff_base"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

// DefaultConfig does not retry: most capabilities have side effects.
func DefaultConfig() Config {
	return Config{
		ExecutionTimeout: 30 * time.Second,
		RetryConfig: RetryConfig{
			MaxRetries:    0,
			BackoffBase:   500 * time.Millisecond,
			BackoffFactor: 2.0,
		},
	}
}

func (c Config) WithExecutionTimeout(timeout time.Duration) Config {
	c.ExecutionTimeout = timeout
	return c
}

func (c Config) WithRetryConfig(cfg RetryConfig) Config {
	c.RetryConfig = cfg
	return c
}

func (r RetryConfig) backoff(attempt int) time.Duration {
	d := r.BackoffBase
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * r.BackoffFactor)
	}
	return d
}
