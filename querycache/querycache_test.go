package querycache

import (
	"context"
	"errors"
	"testing"
	"time"
)

var ctxbg = context.Background()

func TestGetSetStale(t *testing.T) {
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }

	if _, ok := c.Get(Key{"access-tokens"}); ok {
		t.Fatalf("got hit on empty cache")
	}

	c.Set(Key{"access-tokens"}, "v1", 0)
	v, ok := c.Get(Key{"access-tokens"})
	if !ok || v.(string) != "v1" {
		t.Fatalf("got %v %v, expected v1 true", v, ok)
	}

	// Stale after the default bound.
	now = now.Add(StaleDefault + time.Second)
	if _, ok := c.Get(Key{"access-tokens"}); ok {
		t.Fatalf("got hit on stale entry")
	}

	// Notifications live much longer.
	c.Set(Key{"notifications"}, "n", StaleNotifications)
	now = now.Add(29 * time.Minute)
	if _, ok := c.Get(Key{"notifications"}); !ok {
		t.Fatalf("notifications entry stale too early")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(Key{"notifications"}); ok {
		t.Fatalf("notifications entry should be stale after 31m")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New()
	c.Set(Key{"access-tokens"}, "list", 0)
	c.Set(Key{"access-tokens", "tok1"}, "detail", 0)
	c.Set(Key{"mtas"}, "other", 0)

	c.Invalidate(Key{"access-tokens"})
	if _, ok := c.Get(Key{"access-tokens"}); ok {
		t.Fatalf("list not invalidated")
	}
	if _, ok := c.Get(Key{"access-tokens", "tok1"}); ok {
		t.Fatalf("detail not invalidated")
	}
	if _, ok := c.Get(Key{"mtas"}); !ok {
		t.Fatalf("unrelated entry invalidated")
	}
}

func TestKeyEncoding(t *testing.T) {
	c := New()
	c.Set(Key{"a", "bc"}, 1, 0)
	if _, ok := c.Get(Key{"ab", "c"}); ok {
		t.Fatalf("ambiguous key encoding")
	}
}

func TestFetchRetry(t *testing.T) {
	c := New()
	calls := 0
	boom := errors.New("boom")
	fail := func(ctx context.Context) (string, error) {
		calls++
		return "", boom
	}

	_, err := Fetch(ctxbg, c, Policy{}, Key{"x"}, 0, nil, fail)
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("got err %v after %d calls, expected boom after 3", err, calls)
	}

	calls = 0
	_, err = Fetch(ctxbg, c, Policy{Development: true}, Key{"x"}, 0, nil, fail)
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("got err %v after %d calls, expected boom after 1 in development", err, calls)
	}

	// Auth failures are not retried.
	calls = 0
	authErr := errors.New("unauthorized")
	_, err = Fetch(ctxbg, c, Policy{}, Key{"x"}, 0, func(err error) bool { return errors.Is(err, authErr) }, func(ctx context.Context) (string, error) {
		calls++
		return "", authErr
	})
	if !errors.Is(err, authErr) || calls != 1 {
		t.Fatalf("got err %v after %d calls, expected authErr after 1", err, calls)
	}

	// Success caches, second fetch does not call fn.
	calls = 0
	get := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}
	v, err := Fetch(ctxbg, c, Policy{}, Key{"y"}, 0, nil, get)
	if err != nil || v != "value" {
		t.Fatalf("got %q %v, expected value", v, err)
	}
	v, err = Fetch(ctxbg, c, Policy{}, Key{"y"}, 0, nil, get)
	if err != nil || v != "value" || calls != 1 {
		t.Fatalf("got %q %v after %d calls, expected cached value after 1 call", v, err, calls)
	}
}

func TestFlush(t *testing.T) {
	c := New()
	c.Set(Key{"a"}, 1, 0)
	c.Flush()
	if _, ok := c.Get(Key{"a"}); ok {
		t.Fatalf("entry survived flush")
	}
}
