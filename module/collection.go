package module

import (
	"log"
	"strings"
)

// Collection builds and maintains the module tree from a root configuration.
// It resolves paths to modules, computes namespace prefixes, and supports
// dynamic registration, unregistration and hot updates.
type Collection struct {
	root    *Module
	devMode bool
	logger  *log.Logger
}

// NewCollection builds a tree from the root configuration. In dev mode the
// configuration is validated recursively before any module is constructed.
func NewCollection(rootCfg *Config, devMode bool, logger *log.Logger) (*Collection, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &Collection{devMode: devMode, logger: logger}
	if err := c.Register(nil, rootCfg, false); err != nil {
		return nil, err
	}
	return c, nil
}

// Root returns the root module.
func (c *Collection) Root() *Module { return c.root }

// Register constructs a module from cfg and attaches it at path. An empty
// path sets the root. Nested configurations are registered recursively.
// In dev mode invalid configuration shapes fail with a *ValidationError.
func (c *Collection) Register(path []string, cfg *Config, runtime bool) error {
	if cfg == nil {
		cfg = &Config{}
	}
	if c.devMode {
		if err := validateConfig(path, cfg); err != nil {
			return err
		}
	}

	m := New(cfg, runtime)
	if len(path) == 0 {
		c.root = m
	} else {
		parent := c.Get(path[:len(path)-1])
		if parent == nil {
			c.logger.Printf("fluxstore: cannot register module at %q: parent is missing", joinPath(path))
			return ErrParentMissing
		}
		parent.AddChild(path[len(path)-1], m)
	}

	for _, key := range sortedKeys(cfg.Modules) {
		if err := c.Register(append(append([]string{}, path...), key), cfg.Modules[key], runtime); err != nil {
			return err
		}
	}
	return nil
}

// Get resolves a path to a module by repeated child lookup from the root.
// Returns nil if any segment is missing.
func (c *Collection) Get(path []string) *Module {
	m := c.root
	for _, key := range path {
		if m == nil {
			return nil
		}
		m = m.Child(key)
	}
	return m
}

// GetNamespace walks root to target accumulating "key/" for every module on
// the chain flagged Namespaced.
func (c *Collection) GetNamespace(path []string) string {
	m := c.root
	var ns strings.Builder
	for _, key := range path {
		if m == nil {
			break
		}
		m = m.Child(key)
		if m != nil && m.Namespaced() {
			ns.WriteString(key)
			ns.WriteByte('/')
		}
	}
	return ns.String()
}

// Unregister detaches the module at path from its parent. Missing modules
// no-op with a warning. Construction-time modules are protected: the call
// refuses to remove them and reports false.
func (c *Collection) Unregister(path []string) bool {
	if len(path) == 0 {
		return false
	}
	parent := c.Get(path[:len(path)-1])
	if parent == nil {
		c.logger.Printf("fluxstore: cannot unregister module at %q: parent is missing", joinPath(path))
		return false
	}
	key := path[len(path)-1]
	child := parent.Child(key)
	if child == nil {
		c.logger.Printf("fluxstore: cannot unregister module at %q: not registered", joinPath(path))
		return false
	}
	if !child.Runtime() {
		return false
	}
	parent.RemoveChild(key)
	return true
}

// IsRegistered reports whether a module exists at path.
func (c *Collection) IsRegistered(path []string) bool {
	if len(path) == 0 {
		return c.root != nil
	}
	parent := c.Get(path[:len(path)-1])
	return parent != nil && parent.HasChild(path[len(path)-1])
}

// Update recursively overlays new mutation, action and getter definitions
// onto existing modules at matching paths. A new child with no existing
// counterpart aborts that branch with a warning: adding modules through a
// hot update is unsupported and requires an explicit Register.
func (c *Collection) Update(newRootCfg *Config) error {
	if newRootCfg == nil {
		return ErrNilConfig
	}
	if c.devMode {
		if err := validateConfig(nil, newRootCfg); err != nil {
			return err
		}
	}
	c.update(nil, c.root, newRootCfg)
	return nil
}

func (c *Collection) update(path []string, target *Module, cfg *Config) {
	target.Update(cfg)

	for _, key := range sortedKeys(cfg.Modules) {
		childCfg := cfg.Modules[key]
		child := target.Child(key)
		if child == nil {
			c.logger.Printf(
				"fluxstore: cannot update module %q: adding modules at runtime requires Register, not a hot update",
				joinPath(append(append([]string{}, path...), key)),
			)
			continue
		}
		c.update(append(append([]string{}, path...), key), child, childCfg)
	}
}

func joinPath(path []string) string {
	return strings.Join(path, "/")
}
