package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dshills/fluxstore/module"
)

func await(t *testing.T, p *Pending) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestDispatch_ResolvesHandlerResult(t *testing.T) {
	cfg := &module.Config{
		State: module.StateMap{"n": 0},
		Mutations: map[string]module.MutationFunc{
			"m1": func(state module.StateMap, _ any) { state["n"] = 1 },
		},
		Actions: map[string]any{
			"a1": func(ctx module.ActionContext, _ any) (any, error) {
				ctx.Commit("m1", nil)
				return 42, nil
			},
		},
	}
	s := newTestStore(t, cfg)

	p := s.Dispatch("a1", nil)
	res, err := await(t, p)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res != 42 {
		t.Errorf("expected 42, got %v", res)
	}
	// The mutation's effect is visible before the dispatch resolves.
	if got := s.State()["n"]; got != 1 {
		t.Errorf("expected n=1 before resolution, got %v", got)
	}
	if p.State() != StateResolved {
		t.Errorf("expected resolved, got %v", p.State())
	}
}

func TestDispatch_UnknownTypeResolvesNil(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(t, &module.Config{}, WithLogger(log.New(&buf, "", 0)))

	res, err := await(t, s.Dispatch("ghost", nil))
	if err != nil || res != nil {
		t.Errorf("expected nil result, got (%v, %v)", res, err)
	}
	if !strings.Contains(buf.String(), "unknown action") {
		t.Errorf("expected diagnostic, got %q", buf.String())
	}
}

func TestDispatch_SharedTypeAggregatesInOrder(t *testing.T) {
	cfg := &module.Config{
		Modules: map[string]*module.Config{
			"first": {
				Actions: map[string]any{
					"shared": func(module.ActionContext, any) (any, error) { return "one", nil },
				},
			},
			"second": {
				Actions: map[string]any{
					"shared": func(module.ActionContext, any) (any, error) {
						time.Sleep(10 * time.Millisecond)
						return "two", nil
					},
				},
			},
		},
	}
	s := newTestStore(t, cfg)

	res, err := await(t, s.Dispatch("shared", nil))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	pair, ok := res.([]any)
	if !ok || len(pair) != 2 {
		t.Fatalf("expected ordered pair, got %v", res)
	}
	if pair[0] != "one" || pair[1] != "two" {
		t.Errorf("expected [one two], got %v", pair)
	}
}

func TestDispatch_RejectsWithFirstHandlerError(t *testing.T) {
	boom := errors.New("boom")
	cfg := &module.Config{
		Modules: map[string]*module.Config{
			"a": {
				Actions: map[string]any{
					"shared": func(module.ActionContext, any) (any, error) { return nil, boom },
				},
			},
			"b": {
				Actions: map[string]any{
					"shared": func(module.ActionContext, any) (any, error) { return nil, errors.New("later") },
				},
			},
		},
	}
	s := newTestStore(t, cfg)

	p := s.Dispatch("shared", nil)
	_, err := await(t, p)
	if !errors.Is(err, boom) {
		t.Errorf("expected first handler's error, got %v", err)
	}
	if p.State() != StateRejected {
		t.Errorf("expected rejected, got %v", p.State())
	}
}

func TestDispatch_HandlerPanicRejects(t *testing.T) {
	cfg := &module.Config{
		Actions: map[string]any{
			"explode": func(module.ActionContext, any) (any, error) { panic("kaboom") },
		},
	}
	s := newTestStore(t, cfg)

	_, err := await(t, s.Dispatch("explode", nil))
	if !errors.Is(err, ErrActionPanic) {
		t.Errorf("expected ErrActionPanic, got %v", err)
	}
}

func TestDispatch_NamespacedLocalContext(t *testing.T) {
	cfg := &module.Config{
		State: module.StateMap{"globalHits": 0},
		Mutations: map[string]module.MutationFunc{
			"hit": func(state module.StateMap, _ any) {
				state["globalHits"] = state["globalHits"].(int) + 1
			},
		},
		Modules: map[string]*module.Config{
			"cart": {
				Namespaced: true,
				State:      module.StateMap{"items": []any{}},
				Mutations: map[string]module.MutationFunc{
					"add": func(state module.StateMap, payload any) {
						state["items"] = append(state["items"].([]any), payload)
					},
				},
				Actions: map[string]any{
					"addAsync": func(ctx module.ActionContext, payload any) (any, error) {
						ctx.Commit("add", payload)                    // resolves to cart/add
						ctx.Commit("hit", nil, module.WithRoot())     // resolves globally
						return len(ctx.State["items"].([]any)), nil   // local state view
					},
				},
			},
		},
	}
	s := newTestStore(t, cfg)

	res, err := await(t, s.Dispatch("cart/addAsync", "apple"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res != 1 {
		t.Errorf("expected local size 1, got %v", res)
	}
	items := s.State()["cart"].(module.StateMap)["items"].([]any)
	if len(items) != 1 || items[0] != "apple" {
		t.Errorf("expected [apple], got %v", items)
	}
	if got := s.State()["globalHits"]; got != 1 {
		t.Errorf("expected root mutation to run once, got %v", got)
	}
}

func TestDispatch_RootActionBypassesNamespace(t *testing.T) {
	called := false
	cfg := &module.Config{
		Modules: map[string]*module.Config{
			"deep": {
				Namespaced: true,
				Actions: map[string]any{
					"globalPing": module.ActionSpec{
						Handler: func(module.ActionContext, any) (any, error) {
							called = true
							return "pong", nil
						},
						Root: true,
					},
				},
			},
		},
	}
	s := newTestStore(t, cfg)

	res, err := await(t, s.Dispatch("globalPing", nil))
	if err != nil || res != "pong" {
		t.Fatalf("expected pong under bare key, got (%v, %v)", res, err)
	}
	if !called {
		t.Error("handler did not run")
	}

	var buf bytes.Buffer
	s2 := newTestStore(t, cfg, WithLogger(log.New(&buf, "", 0)))
	if _, err := await(t, s2.Dispatch("deep/globalPing", nil)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(buf.String(), "unknown action") {
		t.Error("root action must not be reachable under its namespaced key")
	}
}

func TestDispatch_ActionSubscriberLifecycle(t *testing.T) {
	boom := errors.New("boom")
	cfg := &module.Config{
		Actions: map[string]any{
			"ok":   func(module.ActionContext, any) (any, error) { return 1, nil },
			"fail": func(module.ActionContext, any) (any, error) { return nil, boom },
		},
	}
	s := newTestStore(t, cfg)

	var events []string
	s.SubscribeAction(ActionHooks{
		Before: func(a Action, _ module.StateMap) { events = append(events, "before:"+a.Type) },
		After:  func(a Action, _ module.StateMap) { events = append(events, "after:"+a.Type) },
		Error: func(a Action, _ module.StateMap, err error) {
			events = append(events, "error:"+a.Type+":"+err.Error())
		},
	})

	if _, err := await(t, s.Dispatch("ok", nil)); err != nil {
		t.Fatalf("Dispatch ok: %v", err)
	}
	if _, err := await(t, s.Dispatch("fail", nil)); err == nil {
		t.Fatal("expected failure")
	}

	want := []string{"before:ok", "after:ok", "before:fail", "error:fail:boom"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], events[i])
		}
	}
}

func TestDispatch_SubscriberPanicIsIsolated(t *testing.T) {
	cfg := &module.Config{
		Actions: map[string]any{
			"ok": func(module.ActionContext, any) (any, error) { return 1, nil },
		},
	}
	var buf bytes.Buffer
	s := newTestStore(t, cfg, WithLogger(log.New(&buf, "", 0)))

	secondRan := false
	s.SubscribeAction(ActionHooks{
		Before: func(Action, module.StateMap) { panic("bad subscriber") },
	})
	s.SubscribeAction(ActionHooks{
		Before: func(Action, module.StateMap) { secondRan = true },
	})

	res, err := await(t, s.Dispatch("ok", nil))
	if err != nil || res != 1 {
		t.Fatalf("dispatch must survive subscriber panic, got (%v, %v)", res, err)
	}
	if !secondRan {
		t.Error("second subscriber must still run")
	}
	if !strings.Contains(buf.String(), "panicked") {
		t.Errorf("expected isolation log, got %q", buf.String())
	}
}

func TestDispatch_ConcurrentCommitsSerialized(t *testing.T) {
	const workers, commits = 4, 250
	cfg := &module.Config{
		State: module.StateMap{"items": []any{}},
		Mutations: map[string]module.MutationFunc{
			"push": func(state module.StateMap, payload any) {
				items := state["items"].([]any)
				// Yield between the read and the write so unserialized
				// handlers would interleave and lose appends.
				runtime.Gosched()
				state["items"] = append(items, payload)
			},
		},
		Actions: map[string]any{
			"flood": func(ctx module.ActionContext, payload any) (any, error) {
				for i := 0; i < commits; i++ {
					ctx.Commit("push", payload)
				}
				return nil, nil
			},
		},
	}
	s := newTestStore(t, cfg)

	pendings := make([]*Pending, workers)
	for i := range pendings {
		pendings[i] = s.Dispatch("flood", i)
	}
	for _, p := range pendings {
		if _, err := await(t, p); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	items := s.State()["items"].([]any)
	if len(items) != workers*commits {
		t.Errorf("lost commits: expected %d items, got %d", workers*commits, len(items))
	}
}

func TestDispatch_ConcurrentGetterReads(t *testing.T) {
	const workers, rounds = 4, 100
	cfg := &module.Config{
		State: module.StateMap{"total": 0},
		Mutations: map[string]module.MutationFunc{
			"bump": func(state module.StateMap, _ any) {
				state["total"] = state["total"].(int) + 1
			},
		},
		Getters: map[string]module.GetterFunc{
			"total": func(ctx module.GetterContext) any {
				return ctx.State["total"]
			},
			// Reads another getter, so every evaluation nests.
			"doubled": func(ctx module.GetterContext) any {
				return ctx.Getters.Value("total").(int) * 2
			},
		},
		Actions: map[string]any{
			"churn": func(ctx module.ActionContext, _ any) (any, error) {
				for i := 0; i < rounds; i++ {
					ctx.Commit("bump", nil)
					if v := ctx.Getters.Value("doubled").(int); v%2 != 0 {
						return nil, fmt.Errorf("torn getter value %d", v)
					}
				}
				return nil, nil
			},
		},
	}
	s := newTestStore(t, cfg)

	pendings := make([]*Pending, workers)
	for i := range pendings {
		pendings[i] = s.Dispatch("churn", nil)
	}
	for _, p := range pendings {
		if _, err := await(t, p); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	if got := s.Getter("doubled"); got != workers*rounds*2 {
		t.Errorf("expected %d, got %v", workers*rounds*2, got)
	}
}

func TestPending_WaitCancellable(t *testing.T) {
	release := make(chan struct{})
	cfg := &module.Config{
		Actions: map[string]any{
			"slow": func(module.ActionContext, any) (any, error) {
				<-release
				return "done", nil
			},
		},
	}
	s := newTestStore(t, cfg)

	p := s.Dispatch("slow", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if p.State() != StatePending {
		t.Errorf("abandoning the wait must not settle the action, got %v", p.State())
	}

	close(release)
	res, err := await(t, p)
	if err != nil || res != "done" {
		t.Errorf("expected done, got (%v, %v)", res, err)
	}
}
