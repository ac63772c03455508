package module

// Config is the raw configuration of one module.
type Config struct {
	// Namespaced isolates the module's mutation, action and getter keys
	// under the module's namespace prefix.
	Namespaced bool

	// State is the module's initial state: a StateMap, a StateFactory, or
	// nil for an empty map.
	State any

	// Mutations maps local mutation keys to handlers.
	Mutations map[string]MutationFunc

	// Actions maps local action keys to handlers: an ActionFunc or an
	// ActionSpec for the root-registration variant.
	Actions map[string]any

	// Getters maps local getter keys to derivation functions.
	Getters map[string]GetterFunc

	// Modules declares nested child modules.
	Modules map[string]*Config
}

// ActionSpec is the tagged variant of an action declaration. Root registers
// the action under its bare key even inside a namespaced module, opting it
// out of namespacing.
type ActionSpec struct {
	Handler ActionFunc
	Root    bool
}

// normalizeAction converts a raw action entry into an ActionSpec. The second
// return is false when the entry has an unsupported shape.
func normalizeAction(raw any) (ActionSpec, bool) {
	switch v := raw.(type) {
	case ActionSpec:
		return v, v.Handler != nil
	case *ActionSpec:
		if v == nil {
			return ActionSpec{}, false
		}
		return *v, v.Handler != nil
	case ActionFunc:
		return ActionSpec{Handler: v}, v != nil
	case func(ctx ActionContext, payload any) (any, error):
		return ActionSpec{Handler: v}, v != nil
	default:
		return ActionSpec{}, false
	}
}

// resolveState materializes a module's initial state map.
func resolveState(raw any) (StateMap, bool) {
	switch v := raw.(type) {
	case nil:
		return StateMap{}, true
	case StateMap:
		return v, true
	case StateFactory:
		if v == nil {
			return StateMap{}, true
		}
		return v(), true
	default:
		return nil, false
	}
}
