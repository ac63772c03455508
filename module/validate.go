package module

import "fmt"

// ValidationError reports an invalid module configuration shape: the module
// path, the offending key, and what was found there.
type ValidationError struct {
	Path    string
	Section string
	Key     string
	Reason  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	where := e.Path
	if where == "" {
		where = "(root)"
	}
	if e.Key == "" {
		return fmt.Sprintf("module: invalid %s in module %q: %s", e.Section, where, e.Reason)
	}
	return fmt.Sprintf("module: invalid %s %q in module %q: %s", e.Section, e.Key, where, e.Reason)
}

// validateConfig checks one configuration (non-recursively for children;
// Register recurses and validates each level). Only called in dev mode.
func validateConfig(path []string, cfg *Config) error {
	where := joinPath(path)

	if _, ok := resolveState(cfg.State); !ok {
		return &ValidationError{
			Path:    where,
			Section: "state",
			Reason:  fmt.Sprintf("expected a state map or factory, got %T", cfg.State),
		}
	}
	for key, h := range cfg.Mutations {
		if h == nil {
			return &ValidationError{
				Path:    where,
				Section: "mutation",
				Key:     key,
				Reason:  "handler is nil",
			}
		}
	}
	for key, h := range cfg.Getters {
		if h == nil {
			return &ValidationError{
				Path:    where,
				Section: "getter",
				Key:     key,
				Reason:  "handler is nil",
			}
		}
	}
	for key, raw := range cfg.Actions {
		if _, ok := normalizeAction(raw); !ok {
			return &ValidationError{
				Path:    where,
				Section: "action",
				Key:     key,
				Reason:  fmt.Sprintf("expected an ActionFunc or ActionSpec, got %T", raw),
			}
		}
	}
	return nil
}
