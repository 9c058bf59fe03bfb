package mta

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidPort(t *testing.T) {
	check := func(exp bool, p int) {
		t.Helper()
		if got := ValidPort(p); got != exp {
			t.Fatalf("port %d: got %v, expected %v", p, got, exp)
		}
	}
	check(true, 25)
	check(true, 465)
	check(true, 587)
	check(true, 1)
	check(true, 65535)
	check(false, 0)
	check(false, -1)
	check(false, 65536)
	check(false, 80)
	check(false, 443)
}

func validForm() Form {
	return Form{
		Host:       "smtp.example.com",
		Port:       587,
		Encryption: EncryptionStartTLS,
		Username:   "mailer",
		Password:   "secret",
	}
}

func TestValidate(t *testing.T) {
	invalid := func(f Form, mode Mode, field string) {
		t.Helper()
		errs := f.Validate(mode)
		for _, e := range errs {
			if e.Field == field {
				return
			}
		}
		t.Fatalf("expected error for %s, got %v", field, errs)
	}

	if errs := validForm().Validate(ModeCreate); errs != nil {
		t.Fatalf("expected valid form, got %v", errs)
	}

	f := validForm()
	f.Host = "  "
	invalid(f, ModeCreate, "host")

	f = validForm()
	f.Port = 443
	invalid(f, ModeCreate, "port")

	f = validForm()
	f.Encryption = "Tls"
	invalid(f, ModeCreate, "encryption")

	f = validForm()
	f.Username = ""
	invalid(f, ModeCreate, "username")

	f = validForm()
	f.Password = ""
	invalid(f, ModeCreate, "password")
	// Blank password on update means unchanged.
	if errs := f.Validate(ModeUpdate); errs != nil {
		t.Fatalf("expected valid update form, got %v", errs)
	}
}

func TestSubmitPassword(t *testing.T) {
	f := validForm()
	f.Password = ""
	buf, err := json.Marshal(f.Submit())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(buf), "password") {
		t.Fatalf("update payload with blank password transmits a password field: %s", buf)
	}

	f = validForm()
	buf, err = json.Marshal(f.Submit())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(buf), `"password":"secret"`) {
		t.Fatalf("payload missing password: %s", buf)
	}
}
