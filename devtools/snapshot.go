package devtools

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/fluxstore/module"
	"github.com/dshills/fluxstore/reactive"
)

// Snapshot serializes the module at path to JSON: its state subtree and the
// current value of every getter visible in its namespace. A nil or empty
// path snapshots the root module.
func (b *Bridge) Snapshot(path []string) (string, error) {
	info, ok := b.store.Inspect(path)
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnknownModule, path)
	}

	getters := make(map[string]any, len(info.LocalGetterKeys))
	for _, key := range info.LocalGetterKeys {
		getters[key] = b.store.Getter(info.Namespace + key)
	}

	out, err := json.Marshal(map[string]any{
		"state":   info.State,
		"getters": getters,
	})
	if err != nil {
		return "", fmt.Errorf("devtools: snapshot %v: %w", path, err)
	}
	return string(out), nil
}

// Query reads a JSON path inside the module's snapshot, e.g.
// Query([]string{"cart"}, "state.items.0").
func (b *Bridge) Query(path []string, jsonPath string) (gjson.Result, error) {
	snap, err := b.Snapshot(path)
	if err != nil {
		return gjson.Result{}, err
	}
	res := gjson.Get(snap, jsonPath)
	if !res.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: %q", ErrPathNotFound, jsonPath)
	}
	return res, nil
}

// Edit rewrites one value inside the module's state, addressed by a JSON
// path relative to the state subtree, and replaces the store's state with
// the result. The write round-trips through ReplaceState so the committing
// scope holds. Values go through JSON, so numbers come back as float64.
func (b *Bridge) Edit(path []string, jsonPath string, value any) error {
	info, ok := b.store.Inspect(path)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownModule, path)
	}

	raw, err := json.Marshal(info.State)
	if err != nil {
		return fmt.Errorf("devtools: edit %v: %w", path, err)
	}
	edited, err := sjson.Set(string(raw), jsonPath, value)
	if err != nil {
		return fmt.Errorf("devtools: edit %v at %q: %w", path, jsonPath, err)
	}

	var next module.StateMap
	if err := json.Unmarshal([]byte(edited), &next); err != nil {
		return fmt.Errorf("devtools: edit %v: %w", path, err)
	}

	if len(path) == 0 {
		b.store.ReplaceState(next)
		return nil
	}

	root, ok := reactive.DeepClone(b.store.State()).(module.StateMap)
	if !ok {
		return fmt.Errorf("devtools: edit %v: root state is not a map", path)
	}
	cur := root
	for _, seg := range path[:len(path)-1] {
		child, ok := cur[seg].(module.StateMap)
		if !ok {
			return fmt.Errorf("%w: %v", ErrUnknownModule, path)
		}
		cur = child
	}
	cur[path[len(path)-1]] = next
	b.store.ReplaceState(root)
	return nil
}
