package module

import "sort"

// Module is one node of the module tree. It owns its raw configuration, its
// state map, and its runtime children. A module is owned exclusively by its
// parent; the root module is owned by the Collection.
type Module struct {
	runtime  bool
	config   *Config
	state    StateMap
	children map[string]*Module
}

// New constructs a module from cfg. runtime marks modules registered after
// store construction; only runtime modules can be unregistered.
func New(cfg *Config, runtime bool) *Module {
	if cfg == nil {
		cfg = &Config{}
	}
	state, ok := resolveState(cfg.State)
	if !ok || state == nil {
		state = StateMap{}
	}
	return &Module{
		runtime:  runtime,
		config:   cfg,
		state:    state,
		children: make(map[string]*Module),
	}
}

// Runtime reports whether the module was registered dynamically.
func (m *Module) Runtime() bool { return m.runtime }

// Namespaced reports whether the module isolates its keys under its own
// namespace segment.
func (m *Module) Namespaced() bool { return m.config.Namespaced }

// State returns the module's state map. The map is live: the store mutates
// it inside the committing scope.
func (m *Module) State() StateMap { return m.state }

// Config returns the module's raw configuration.
func (m *Module) Config() *Config { return m.config }

// Child returns the child registered under key, or nil.
func (m *Module) Child(key string) *Module { return m.children[key] }

// HasChild reports whether a child is registered under key.
func (m *Module) HasChild(key string) bool {
	_, ok := m.children[key]
	return ok
}

// AddChild attaches a child under key, replacing any previous child.
func (m *Module) AddChild(key string, child *Module) {
	m.children[key] = child
}

// RemoveChild detaches the child under key.
func (m *Module) RemoveChild(key string) {
	delete(m.children, key)
}

// ChildKeys lists the keys of the module's children.
func (m *Module) ChildKeys() []string {
	keys := make([]string, 0, len(m.children))
	for k := range m.children {
		keys = append(keys, k)
	}
	return keys
}

// ForEachChild visits every child in sorted key order, so installation and
// handler registration order is deterministic.
func (m *Module) ForEachChild(fn func(key string, child *Module)) {
	for _, k := range sortedKeys(m.children) {
		fn(k, m.children[k])
	}
}

// ForEachMutation visits every declared mutation in sorted key order.
func (m *Module) ForEachMutation(fn func(key string, handler MutationFunc)) {
	for _, k := range sortedKeys(m.config.Mutations) {
		if h := m.config.Mutations[k]; h != nil {
			fn(k, h)
		}
	}
}

// ForEachAction visits every declared action in sorted key order, normalized
// to its tagged variant. Entries with unsupported shapes are skipped;
// dev-mode validation reports them at registration time.
func (m *Module) ForEachAction(fn func(key string, spec ActionSpec)) {
	for _, k := range sortedKeys(m.config.Actions) {
		if spec, ok := normalizeAction(m.config.Actions[k]); ok {
			fn(k, spec)
		}
	}
}

// ForEachGetter visits every declared getter in sorted key order.
func (m *Module) ForEachGetter(fn func(key string, handler GetterFunc)) {
	for _, k := range sortedKeys(m.config.Getters) {
		if h := m.config.Getters[k]; h != nil {
			fn(k, h)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Update overlays new mutation, action and getter definitions from cfg onto
// the module, keeping its state and children. Used by hot updates.
func (m *Module) Update(cfg *Config) {
	m.config.Namespaced = cfg.Namespaced
	if cfg.Mutations != nil {
		m.config.Mutations = cfg.Mutations
	}
	if cfg.Actions != nil {
		m.config.Actions = cfg.Actions
	}
	if cfg.Getters != nil {
		m.config.Getters = cfg.Getters
	}
}
