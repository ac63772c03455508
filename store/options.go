package store

import (
	"log"

	"github.com/dshills/fluxstore/module"
)

// Plugin receives the store after construction. Plugins observe the store
// through Subscribe and SubscribeAction.
type Plugin func(*Store)

// CallOption modifies a single Commit or Dispatch call. It is the same type
// handlers use inside their local context; see module.WithRoot.
type CallOption = module.CallOption

// Option configures a Store.
type Option func(*config)

type config struct {
	logger  *log.Logger
	devMode bool
	strict  bool
	plugins []Plugin
}

func defaultConfig() config {
	return config{logger: log.Default()}
}

// WithLogger routes the store's diagnostics through logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDevMode enables configuration validation and turns authoring errors
// into panics instead of log lines.
func WithDevMode() Option {
	return func(c *config) { c.devMode = true }
}

// WithStrict asserts that no state write happens outside the committing
// scope. Costs a deep state snapshot per commit; intended for development.
func WithStrict() Option {
	return func(c *config) { c.strict = true }
}

// WithPlugins installs plugins after the store is constructed.
func WithPlugins(plugins ...Plugin) Option {
	return func(c *config) { c.plugins = append(c.plugins, plugins...) }
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	prepend bool
}

// WithPrepend inserts the subscriber at the front of the list so it observes
// before existing subscribers. Used by the devtools bridge.
func WithPrepend() SubscribeOption {
	return func(c *subscribeConfig) { c.prepend = true }
}

// RegisterOption configures RegisterModule.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	preserveState bool
}

// WithPreserveState keeps the state already present at the module's key
// instead of attaching the module's initial state. Used when server-rendered
// or persisted state is hydrated before the module is registered.
func WithPreserveState() RegisterOption {
	return func(c *registerConfig) { c.preserveState = true }
}
