package lock

import (
	"context"
	"errors"
	slotserrors "slotkeeper/internal/slots/errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// scriptedRedis answers commands in-process so no server is dialed. Each SET
// NX pops the next reply from setnx; the last reply repeats.
type scriptedRedis struct {
	mu    sync.Mutex
	setnx []bool
	cmds  [][]any
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *scriptedRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.cmds = append(h.cmds, cmd.Args())

		switch c := cmd.(type) {
		case *redis.BoolCmd:
			ok := len(h.setnx) > 0 && h.setnx[0]
			if len(h.setnx) > 1 {
				h.setnx = h.setnx[1:]
			}
			c.SetVal(ok)
		case *redis.Cmd:
			c.SetVal(int64(1))
		}
		return nil
	}
}

func (h *scriptedRedis) commands(name string) [][]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out [][]any
	for _, args := range h.cmds {
		if args[0] == name {
			out = append(out, args)
		}
	}
	return out
}

func newScriptedClient(t *testing.T, setnx ...bool) (*redis.Client, *scriptedRedis) {
	t.Helper()
	hook := &scriptedRedis{setnx: setnx}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	t.Cleanup(func() { client.Close() })
	return client, hook
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	client, hook := newScriptedClient(t, true)
	locker := NewRedisLocker(client, "slotkeeper:", 2*time.Second, time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "slot_lock_p1_2024-06-01")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	sets := hook.commands("set")
	if len(sets) != 1 {
		t.Fatalf("expected one SET, got %d", len(sets))
	}
	set := sets[0]
	if set[1] != "slotkeeper:slot_lock_p1_2024-06-01" {
		t.Errorf("key = %v, expected the prefixed lock key", set[1])
	}
	owner, _ := set[2].(string)
	if owner == "" {
		t.Fatal("expected an owner id as the value")
	}
	if set[3] != "ex" || set[4] != int64(2) || set[5] != "nx" {
		t.Errorf("expected EX 2 NX, got %v", set[3:])
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	evals := hook.commands("evalsha")
	if len(evals) != 1 {
		t.Fatalf("expected one EVALSHA, got %d", len(evals))
	}
	if evals[0][3] != "slotkeeper:slot_lock_p1_2024-06-01" || evals[0][4] != owner {
		t.Errorf("release must compare-and-delete our owner, got %v", evals[0])
	}
}

func TestRedisLocker_RetriesUntilFree(t *testing.T) {
	client, hook := newScriptedClient(t, false, false, true)
	locker := NewRedisLocker(client, "", time.Second, time.Second)

	if _, err := locker.Acquire(context.Background(), "k"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := len(hook.commands("set")); got != 3 {
		t.Errorf("SET attempts = %d, expected 3", got)
	}
}

func TestRedisLocker_TimesOutWhileHeld(t *testing.T) {
	client, _ := newScriptedClient(t, false)
	locker := NewRedisLocker(client, "", time.Second, 25*time.Millisecond)

	_, err := locker.Acquire(context.Background(), "k")
	if !errors.Is(err, slotserrors.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}
