package module

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

func testCollection(t *testing.T, cfg *Config) *Collection {
	t.Helper()
	c, err := NewCollection(cfg, true, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	return c
}

func nestedConfig() *Config {
	return &Config{
		State: StateMap{"root": true},
		Modules: map[string]*Config{
			"a": {
				Namespaced: true,
				State:      StateMap{"fromA": 1},
				Modules: map[string]*Config{
					"b": {
						State: StateMap{"fromB": 2},
						Modules: map[string]*Config{
							"c": {Namespaced: true, State: StateMap{"fromC": 3}},
						},
					},
				},
			},
		},
	}
}

func TestCollection_Get(t *testing.T) {
	c := testCollection(t, nestedConfig())

	if c.Get(nil) == nil {
		t.Fatal("expected root module")
	}
	if c.Get([]string{"a", "b", "c"}) == nil {
		t.Error("expected module at a/b/c")
	}
	if c.Get([]string{"a", "missing"}) != nil {
		t.Error("expected nil for missing path")
	}
}

func TestCollection_GetNamespace(t *testing.T) {
	c := testCollection(t, nestedConfig())

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"a"}, "a/"},
		{[]string{"a", "b"}, "a/"},
		{[]string{"a", "b", "c"}, "a/c/"},
	}
	for _, tt := range tests {
		if got := c.GetNamespace(tt.path); got != tt.want {
			t.Errorf("GetNamespace(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCollection_RegisterRuntime(t *testing.T) {
	c := testCollection(t, &Config{})

	if err := c.Register([]string{"x"}, &Config{State: StateMap{"n": 0}}, true); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !c.IsRegistered([]string{"x"}) {
		t.Error("expected x to be registered")
	}
	if !c.Get([]string{"x"}).Runtime() {
		t.Error("expected runtime module")
	}
}

func TestCollection_RegisterMissingParent(t *testing.T) {
	c := testCollection(t, &Config{})

	err := c.Register([]string{"no", "parent"}, &Config{}, true)
	if !errors.Is(err, ErrParentMissing) {
		t.Errorf("expected ErrParentMissing, got %v", err)
	}
}

func TestCollection_UnregisterRefusesStatic(t *testing.T) {
	c := testCollection(t, nestedConfig())

	if c.Unregister([]string{"a"}) {
		t.Error("expected refusal for construction-time module")
	}
	if !c.IsRegistered([]string{"a"}) {
		t.Error("construction-time module must remain registered")
	}
}

func TestCollection_UnregisterRuntime(t *testing.T) {
	c := testCollection(t, &Config{})
	if err := c.Register([]string{"x"}, &Config{}, true); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !c.Unregister([]string{"x"}) {
		t.Fatal("expected unregister to succeed")
	}
	if c.IsRegistered([]string{"x"}) {
		t.Error("expected x to be gone")
	}
}

func TestCollection_UnregisterMissingWarns(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewCollection(&Config{}, true, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}

	if c.Unregister([]string{"ghost"}) {
		t.Error("expected no-op for missing module")
	}
	if !strings.Contains(buf.String(), "not registered") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}

func TestCollection_UpdateOverlaysHandlers(t *testing.T) {
	called := ""
	c := testCollection(t, &Config{
		Mutations: map[string]MutationFunc{
			"set": func(StateMap, any) { called = "old" },
		},
	})

	err := c.Update(&Config{
		Mutations: map[string]MutationFunc{
			"set": func(StateMap, any) { called = "new" },
		},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	c.Root().ForEachMutation(func(_ string, h MutationFunc) { h(nil, nil) })
	if called != "new" {
		t.Errorf("expected overlaid handler, got %q", called)
	}
}

func TestCollection_UpdateRejectsNewChild(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewCollection(nestedConfig(), true, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}

	if err := c.Update(&Config{
		Modules: map[string]*Config{
			"brandNew": {},
		},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if c.IsRegistered([]string{"brandNew"}) {
		t.Error("hot update must not add modules")
	}
	if !strings.Contains(buf.String(), "requires Register") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}

func TestModule_StateFactory(t *testing.T) {
	factory := func() StateMap { return StateMap{"n": 0} }
	m1 := New(&Config{State: StateFactory(factory)}, false)
	m2 := New(&Config{State: StateFactory(factory)}, false)

	m1.State()["n"] = 42
	if m2.State()["n"] != 0 {
		t.Error("factory state must not be shared between modules")
	}
}

func TestModule_NilStateBecomesEmptyMap(t *testing.T) {
	m := New(&Config{}, false)
	if m.State() == nil {
		t.Error("expected empty state map")
	}
}
