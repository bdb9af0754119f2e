package execution

import "github.com/rs/zerolog"

// Option configures an executor.
type Option func(*executorConfig)

// executorConfig contains configuration for an executor.
type executorConfig struct {
	// priority selects the ordering band.
	priority Priority

	// name is an optional label shown in diagnostics.
	name string

	// delay is the number of matching calls a Task skips before firing.
	delay int
}

// defaultExecutorConfig returns the default executor configuration.
func defaultExecutorConfig() executorConfig {
	return executorConfig{
		priority: PriorityDefault,
	}
}

// WithPriority sets the executor priority band.
func WithPriority(p Priority) Option {
	return func(c *executorConfig) {
		c.priority = p
	}
}

// WithName sets a label included in the executor's diagnostic name.
func WithName(name string) Option {
	return func(c *executorConfig) {
		c.name = name
	}
}

// WithDelay sets how many matching calls a Task skips before it fires.
// Listeners ignore it.
func WithDelay(delay int) Option {
	return func(c *executorConfig) {
		c.delay = delay
	}
}

// SystemOption configures a System.
type SystemOption func(*systemConfig)

// systemConfig contains configuration for a System.
type systemConfig struct {
	// logger receives debug traces and, with the default sink, failures.
	logger zerolog.Logger

	// errorSink receives every executor failure.
	errorSink ErrorSink
}

// defaultSystemConfig returns the default system configuration.
func defaultSystemConfig() systemConfig {
	return systemConfig{
		logger: zerolog.Nop(),
	}
}

// WithLogger sets the logger used by the System.
func WithLogger(l zerolog.Logger) SystemOption {
	return func(c *systemConfig) {
		c.logger = l
	}
}

// WithErrorSink sets the callback receiving executor failures.
// A nil sink keeps the default, which logs through the System's logger.
func WithErrorSink(sink ErrorSink) SystemOption {
	return func(c *systemConfig) {
		if sink != nil {
			c.errorSink = sink
		}
	}
}

// ContainerOption configures a Container.
type ContainerOption func(*containerConfig)

// containerConfig contains configuration for a Container.
type containerConfig struct {
	name   string
	parent *Container
}

// WithContainerName sets the container name. Without it a name is generated.
func WithContainerName(name string) ContainerOption {
	return func(c *containerConfig) {
		c.name = name
	}
}

// WithParent makes the new container a child of parent. The parent must
// belong to the same System.
func WithParent(parent *Container) ContainerOption {
	return func(c *containerConfig) {
		c.parent = parent
	}
}
