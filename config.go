package runloop

import (
	"github.com/ygrebnov/errorc"
)

// Config holds RunLoop configuration (§6, "Configuration surface").
// Adapted from the teacher's config.go: same error-returning functional
// options builder, generalized from pool sizing/buffers to the run loop's
// concurrency/window/commit/timeout knobs.
type Config struct {
	// MaxConcurrency is the per-task in-flight cap. Must be >= 1.
	MaxConcurrency int

	// WindowMs is the periodic window tick interval. 0 disables windowing.
	WindowMs int64

	// CommitMs is the periodic commit tick interval. 0 disables periodic
	// commit (coordinator-requested commits still fire).
	CommitMs int64

	// CallbackTimeoutMs arms a per-callback deadline. 0 disables the watchdog.
	CallbackTimeoutMs int64

	// Executor runs window/commit bodies off the loop thread when set. If
	// nil, window/commit run inline on the loop thread (§6).
	Executor Executor

	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger Logger

	// Metrics receives counter/histogram/gauge updates. Defaults to a
	// no-op sink.
	Metrics MetricsSink

	// FallbackPollIntervalMs bounds blockIfBusy's idle wait when the
	// consumer reports a non-positive poll interval.
	FallbackPollIntervalMs int64
}

// defaultConfig centralizes default values, mirroring the teacher's
// defaultConfig (config.go); NewConfig starts from it before applying
// the Option builders.
func defaultConfig() Config {
	return Config{
		MaxConcurrency:         1,
		WindowMs:               0,
		CommitMs:               0,
		CallbackTimeoutMs:      0,
		Executor:               nil,
		Logger:                 noopLogger{},
		Metrics:                noopMetricsSink{},
		FallbackPollIntervalMs: 100,
	}
}

// Option configures a Config. Use NewConfig(opts...) to build one.
// Breaking change relative to panicking option builders: Option returns an
// error on invalid input.
type Option func(*Config) error

// WithMaxConcurrency sets the per-task in-flight cap (must be > 0).
func WithMaxConcurrency(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMaxConcurrency requires n > 0"))
		}
		c.MaxConcurrency = n
		return nil
	}
}

// WithWindow sets the periodic window tick interval in milliseconds. 0 disables windowing.
func WithWindow(ms int64) Option {
	return func(c *Config) error {
		if ms < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithWindow requires ms >= 0"))
		}
		c.WindowMs = ms
		return nil
	}
}

// WithCommit sets the periodic commit tick interval in milliseconds. 0 disables periodic commit.
func WithCommit(ms int64) Option {
	return func(c *Config) error {
		if ms < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithCommit requires ms >= 0"))
		}
		c.CommitMs = ms
		return nil
	}
}

// WithCallbackTimeout sets the per-callback deadline in milliseconds. 0 disables it.
func WithCallbackTimeout(ms int64) Option {
	return func(c *Config) error {
		if ms < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithCallbackTimeout requires ms >= 0"))
		}
		c.CallbackTimeoutMs = ms
		return nil
	}
}

// WithExecutor configures a worker thread pool to run window/commit bodies off the loop thread.
func WithExecutor(e Executor) Option {
	return func(c *Config) error { c.Executor = e; return nil }
}

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithLogger requires a non-nil Logger"))
		}
		c.Logger = l
		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m MetricsSink) Option {
	return func(c *Config) error {
		if m == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil MetricsSink"))
		}
		c.Metrics = m
		return nil
	}
}

// WithFallbackPollInterval sets the idle-wait bound used when the consumer
// reports a non-positive poll interval.
func WithFallbackPollInterval(ms int64) Option {
	return func(c *Config) error {
		if ms <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithFallbackPollInterval requires ms > 0"))
		}
		c.FallbackPollIntervalMs = ms
		return nil
	}
}

// NewConfig builds a validated Config from functional options.
func NewConfig(opts ...Option) (Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateConfig performs cross-field invariant checks and fills in any
// zero-value collaborators left by a caller that built Config by hand.
func validateConfig(cfg *Config) error {
	if cfg.MaxConcurrency <= 0 {
		return errorc.With(ErrInvalidConfig, errorc.String("", "MaxConcurrency must be > 0"))
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetricsSink{}
	}
	if cfg.FallbackPollIntervalMs <= 0 {
		cfg.FallbackPollIntervalMs = 100
	}
	return nil
}
