package envelope

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidCustomFlagName(t *testing.T) {
	check := func(exp bool, s string) {
		t.Helper()
		if got := ValidCustomFlagName(s); got != exp {
			t.Fatalf("valid %q: got %v, expected %v", s, got, exp)
		}
	}
	check(true, "$Important")
	check(true, "muted")
	check(true, "$label1")
	check(false, "")
	check(false, "has space")
	check(false, "tab\there")
	check(false, `par(en`)
	check(false, `back\slash`)
	check(false, `quo"te`)
	check(false, "curly{")
	check(false, "perc%ent")
	check(false, "ast*erisk")
	check(false, "brack]et")
	check(false, "non-ascii-ë")
	check(false, strings.Repeat("a", 256))
	check(true, strings.Repeat("a", 255))
}

func TestFlagStaging(t *testing.T) {
	m := NewFlagMutation(FlagAdd, "INBOX")

	err := m.Stage(Standard(FlagSeen))
	tcheck(t, err, "stage seen")

	// Staging again is rejected, set unchanged.
	err = m.Stage(Standard(FlagSeen))
	if !errors.Is(err, ErrDuplicateFlag) {
		t.Fatalf("got %v, expected ErrDuplicateFlag", err)
	}
	if len(m.Flags()) != 1 {
		t.Fatalf("got %d staged flags, expected 1", len(m.Flags()))
	}

	err = m.Stage(Custom("$Important"))
	tcheck(t, err, "stage custom")

	// Custom flag equality is case-insensitive.
	err = m.Stage(Custom("$important"))
	if !errors.Is(err, ErrDuplicateFlag) {
		t.Fatalf("got %v, expected ErrDuplicateFlag for case-insensitive duplicate", err)
	}

	err = m.Stage(Custom("bad flag"))
	if !errors.Is(err, ErrInvalidFlagName) {
		t.Fatalf("got %v, expected ErrInvalidFlagName", err)
	}

	// Unstage is idempotent.
	m.Unstage(Custom("$IMPORTANT"))
	m.Unstage(Custom("$IMPORTANT"))
	if len(m.Flags()) != 1 {
		t.Fatalf("got %d staged flags after unstage, expected 1", len(m.Flags()))
	}
	m.Unstage(Standard(FlagSeen))
	if !m.Empty() {
		t.Fatalf("expected empty staged set")
	}
}

func TestFlagMutationRequest(t *testing.T) {
	m := NewFlagMutation(FlagAdd, "INBOX")

	_, err := m.Request()
	if !errors.Is(err, ErrNoFlags) {
		t.Fatalf("got %v, expected ErrNoFlags", err)
	}

	err = m.Stage(Standard(FlagSeen))
	tcheck(t, err, "stage seen")
	err = m.Stage(Custom("$Important"))
	tcheck(t, err, "stage custom")

	_, err = m.Request()
	if !errors.Is(err, ErrNoUIDs) {
		t.Fatalf("got %v, expected ErrNoUIDs", err)
	}

	m.SetUIDs([]uint32{17, 42, 17})
	req, err := m.Request()
	tcheck(t, err, "build request")

	buf, err := json.Marshal(req)
	tcheck(t, err, "marshal request")
	exp := `{"uids":[17,42],"mailbox":"INBOX","action":{"add":[{"flag":"Seen","custom":null},{"flag":"Custom","custom":"$Important"}]}}`
	if string(buf) != exp {
		t.Fatalf("got %s, expected %s", buf, exp)
	}

	// Failed submission leaves the staged set intact for retry; explicit reset
	// clears it.
	if m.Empty() {
		t.Fatalf("staged set empty after building request")
	}
	m.Reset()
	if !m.Empty() {
		t.Fatalf("staged set not empty after reset")
	}

	m2 := NewFlagMutation(FlagOverwrite, "Archive")
	err = m2.Stage(Standard(FlagDeleted))
	tcheck(t, err, "stage deleted")
	m2.SetUIDs([]uint32{3})
	req2, err := m2.Request()
	tcheck(t, err, "build overwrite request")
	buf, err = json.Marshal(req2)
	tcheck(t, err, "marshal overwrite request")
	exp = `{"uids":[3],"mailbox":"Archive","action":{"overwrite":[{"flag":"Deleted","custom":null}]}}`
	if string(buf) != exp {
		t.Fatalf("got %s, expected %s", buf, exp)
	}

	m3 := NewFlagMutation("frobnicate", "INBOX")
	err = m3.Stage(Standard(FlagSeen))
	tcheck(t, err, "stage")
	m3.SetUIDs([]uint32{1})
	_, err = m3.Request()
	if !errors.Is(err, ErrBadAction) {
		t.Fatalf("got %v, expected ErrBadAction", err)
	}
}
