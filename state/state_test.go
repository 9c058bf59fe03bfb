package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sparklive/rustmailerctl/mlog"
)

var ctxbg = context.Background()

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func xopen(t *testing.T) *Store {
	t.Helper()
	p := filepath.Join(t.TempDir(), "console.db")
	s, err := Open(ctxbg, mlog.New("state", nil), p)
	tcheck(t, err, "open state db")
	t.Cleanup(func() {
		err := s.Close()
		tcheck(t, err, "close state db")
	})
	return s
}

func TestToken(t *testing.T) {
	s := xopen(t)

	if got := s.Token(); got != "" {
		t.Fatalf("got token %q, expected empty before login", got)
	}

	err := s.SetToken(ctxbg, "abc123")
	tcheck(t, err, "set token")
	if got := s.Token(); got != "abc123" {
		t.Fatalf("got token %q, expected abc123", got)
	}

	// Last writer wins.
	err = s.SetToken(ctxbg, "def456")
	tcheck(t, err, "overwrite token")
	if got := s.Token(); got != "def456" {
		t.Fatalf("got token %q, expected def456", got)
	}

	// Clearing, as on logout or 401.
	err = s.SetToken(ctxbg, "")
	tcheck(t, err, "clear token")
	if got := s.Token(); got != "" {
		t.Fatalf("got token %q, expected empty after clear", got)
	}
	// Clearing again must not error.
	err = s.SetToken(ctxbg, "")
	tcheck(t, err, "clear cleared token")
}

func TestTokenPersistence(t *testing.T) {
	p := filepath.Join(t.TempDir(), "console.db")
	log := mlog.New("state", nil)

	s, err := Open(ctxbg, log, p)
	tcheck(t, err, "open state db")
	err = s.SetToken(ctxbg, "persisted")
	tcheck(t, err, "set token")
	err = s.Close()
	tcheck(t, err, "close state db")

	s, err = Open(ctxbg, log, p)
	tcheck(t, err, "reopen state db")
	defer s.Close()
	if got := s.Token(); got != "persisted" {
		t.Fatalf("got token %q, expected persisted after reopen", got)
	}
}

func TestPrefs(t *testing.T) {
	s := xopen(t)

	v, err := s.Pref(ctxbg, PrefTheme)
	tcheck(t, err, "get absent pref")
	if v != "" {
		t.Fatalf("got %q, expected empty for absent pref", v)
	}

	err = s.SetPref(ctxbg, PrefTheme, "dark")
	tcheck(t, err, "set pref")
	err = s.SetPref(ctxbg, PrefSelectedAccount, "3")
	tcheck(t, err, "set pref")

	v, err = s.Pref(ctxbg, PrefTheme)
	tcheck(t, err, "get pref")
	if v != "dark" {
		t.Fatalf("got %q, expected dark", v)
	}

	err = s.SetPref(ctxbg, PrefTheme, "light")
	tcheck(t, err, "update pref")
	v, err = s.Pref(ctxbg, PrefTheme)
	tcheck(t, err, "get pref")
	if v != "light" {
		t.Fatalf("got %q, expected light", v)
	}

	err = s.SetPref(ctxbg, PrefTheme, "")
	tcheck(t, err, "remove pref")
	v, err = s.Pref(ctxbg, PrefTheme)
	tcheck(t, err, "get removed pref")
	if v != "" {
		t.Fatalf("got %q, expected empty after removal", v)
	}
}

func TestLastKnown(t *testing.T) {
	s := xopen(t)

	v, err := s.LastKnown(ctxbg)
	tcheck(t, err, "get last known")
	if v != "" {
		t.Fatalf("got %q, expected empty", v)
	}

	err = s.StoreLastKnown(ctxbg, "1.2.3")
	tcheck(t, err, "store last known")
	err = s.StoreLastKnown(ctxbg, "1.3.0")
	tcheck(t, err, "update last known")

	v, err = s.LastKnown(ctxbg)
	tcheck(t, err, "get last known")
	if v != "1.3.0" {
		t.Fatalf("got %q, expected 1.3.0", v)
	}
}
