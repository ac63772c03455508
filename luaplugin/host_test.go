package luaplugin

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/dshills/fluxstore/module"
	"github.com/dshills/fluxstore/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(&module.Config{
		State: module.StateMap{"count": 0, "log": []any{}},
		Mutations: map[string]module.MutationFunc{
			"increment": func(state module.StateMap, _ any) {
				state["count"] = state["count"].(int) + 1
			},
			"note": func(state module.StateMap, payload any) {
				state["log"] = append(state["log"].([]any), payload)
			},
		},
		Getters: map[string]module.GetterFunc{
			"count": func(ctx module.GetterContext) any { return ctx.State["count"] },
		},
		Actions: map[string]any{
			"bump": func(ctx module.ActionContext, _ any) (any, error) {
				ctx.Commit("increment", nil)
				return nil, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

func TestHost_OnMutation(t *testing.T) {
	s := testStore(t)
	h := NewHost(s)
	defer h.Close()

	err := h.Load(`
		seen = {}
		function onmutation(type, payload, state)
			seen[#seen + 1] = type .. ":" .. tostring(state.count)
		end
	`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.Commit("increment", nil)
	s.Commit("increment", nil)

	// Read the script's accumulator back through the bridge.
	got := h.bridge.toGo(h.L.GetGlobal("seen"))
	list, ok := got.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected two entries, got %v", got)
	}
	if list[0] != "increment:1" || list[1] != "increment:2" {
		t.Errorf("expected post-mutation state in handler, got %v", list)
	}
}

func TestHost_CommitFromScript(t *testing.T) {
	s := testStore(t)
	h := NewHost(s)
	defer h.Close()

	// The script reacts to increments by journaling through a second
	// mutation. The nested commit re-enters the host and must not deadlock
	// or recurse forever.
	err := h.Load(`
		function onmutation(type, payload, state)
			if type == "increment" then
				commit("note", "count is " .. tostring(state.count))
			end
		end
	`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.Commit("increment", nil)

	entries := s.State()["log"].([]any)
	if len(entries) != 1 || entries[0] != "count is 1" {
		t.Errorf("expected journaled entry, got %v", entries)
	}
}

func TestHost_OnAction(t *testing.T) {
	s := testStore(t)
	h := NewHost(s)
	defer h.Close()

	err := h.Load(`
		kinds = {}
		function onaction(kind, type, payload)
			kinds[#kinds + 1] = kind .. ":" .. type
		end
	`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Dispatch("bump", nil).Wait(ctx); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got := h.bridge.toGo(h.L.GetGlobal("kinds"))
	list, ok := got.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected before and after, got %v", got)
	}
	if list[0] != "before:bump" || list[1] != "after:bump" {
		t.Errorf("expected lifecycle kinds, got %v", list)
	}
}

func TestHost_GetterGlobal(t *testing.T) {
	s := testStore(t)
	h := NewHost(s)
	defer h.Close()

	err := h.Load(`
		observed = nil
		function onmutation(type, payload, state)
			observed = getter("count")
		end
	`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.Commit("increment", nil)

	if got := h.bridge.toGo(h.L.GetGlobal("observed")); got != 1 {
		t.Errorf("expected getter value 1, got %v", got)
	}
}

func TestHost_RejectsHandlerlessScript(t *testing.T) {
	s := testStore(t)
	h := NewHost(s)
	defer h.Close()

	if err := h.Load(`x = 1`); !errors.Is(err, ErrNoHandlers) {
		t.Errorf("expected ErrNoHandlers, got %v", err)
	}
}

func TestHost_ScriptErrorIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	s := testStore(t)
	h := NewHost(s, WithLogger(log.New(&buf, "", 0)))
	defer h.Close()

	err := h.Load(`
		function onmutation(type, payload, state)
			error("script blew up")
		end
	`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.Commit("increment", nil)

	if got := s.State()["count"]; got != 1 {
		t.Errorf("commit must survive the script error, got %v", got)
	}
	if !strings.Contains(buf.String(), "script blew up") {
		t.Errorf("expected logged script error, got %q", buf.String())
	}
}

func TestHost_LoadAfterClose(t *testing.T) {
	s := testStore(t)
	h := NewHost(s)
	h.Close()

	if err := h.Load(`function onmutation() end`); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSandbox_BlocksCodeLoading(t *testing.T) {
	s := testStore(t)
	h := NewHost(s)
	defer h.Close()

	err := h.Load(`
		function onmutation() end
		if load ~= nil or dofile ~= nil or loadfile ~= nil then
			error("code loading must be disabled")
		end
	`)
	if err != nil {
		t.Fatalf("expected sandboxed globals removed, got %v", err)
	}
}

func TestSandbox_RequireWhitelist(t *testing.T) {
	s := testStore(t)
	h := NewHost(s)
	defer h.Close()

	err := h.Load(`
		function onmutation() end
		local str = require("string")
		assert(str.upper("ok") == "OK")
	`)
	if err != nil {
		t.Fatalf("whitelisted module must load: %v", err)
	}

	if err := h.Load(`require("io")`); err == nil {
		t.Error("expected require('io') to fail")
	}
}
