package oauth2client

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func validForm() Form {
	return Form{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		RedirectURI:  "https://mail.example.com/oauth2/callback",
		Scopes:       []string{"https://mail.google.com/"},
		Enabled:      true,
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

	f := validForm()
	if errs := f.Validate(ModeCreate); errs != nil {
		t.Fatalf("expected valid form, got %v", errs)
	}

	f = validForm()
	f.ClientSecret = ""
	invalid(f, ModeCreate, "client_secret")
	// On update a blank secret means unchanged.
	if errs := f.Validate(ModeUpdate); errs != nil {
		t.Fatalf("expected valid update form, got %v", errs)
	}

	f = validForm()
	f.ClientID = ""
	invalid(f, ModeCreate, "client_id")

	f = validForm()
	f.AuthURL = "not-a-url"
	invalid(f, ModeCreate, "auth_url")

	f = validForm()
	f.TokenURL = "ftp://example.com/token"
	invalid(f, ModeCreate, "token_url")

	f = validForm()
	f.RedirectURI = "https://mail.example.com/callback"
	invalid(f, ModeCreate, "redirect_uri")

	f = validForm()
	f.Description = strings.Repeat("x", 256)
	invalid(f, ModeCreate, "description")

	f = validForm()
	f.Scopes = []string{"ok", " "}
	invalid(f, ModeCreate, "scopes.1")

	f = validForm()
	f.ExtraParams = []Param{{"prompt", "consent"}, {"", "x"}}
	invalid(f, ModeCreate, "extra_params.1.key")
	f.ExtraParams = []Param{{"prompt", ""}}
	invalid(f, ModeCreate, "extra_params.0.value")
}

func TestSubmitSecret(t *testing.T) {
	f := validForm()
	f.ClientSecret = ""
	buf, err := json.Marshal(f.Submit(ModeUpdate))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(buf), "client_secret") {
		t.Fatalf("update payload with blank secret transmits a secret field: %s", buf)
	}

	f = validForm()
	buf, err = json.Marshal(f.Submit(ModeCreate))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(buf), `"client_secret":"client-secret"`) {
		t.Fatalf("create payload missing secret: %s", buf)
	}
}

func TestSubmitExtraParams(t *testing.T) {
	f := validForm()
	f.ExtraParams = []Param{{"access_type", "offline"}, {"prompt", "consent"}}
	req := f.Submit(ModeCreate)
	exp := map[string]string{"access_type": "offline", "prompt": "consent"}
	if !reflect.DeepEqual(req.ExtraParams, exp) {
		t.Fatalf("got %v, expected %v", req.ExtraParams, exp)
	}
	if !reflect.DeepEqual(req.Scopes, f.Scopes) {
		t.Fatalf("scope order not preserved: %v", req.Scopes)
	}
}

func TestPreset(t *testing.T) {
	var f Form
	if !f.Preset("gmail") {
		t.Fatalf("gmail preset not known")
	}
	if f.AuthURL != "https://accounts.google.com/o/oauth2/v2/auth" || f.TokenURL != "https://oauth2.googleapis.com/token" {
		t.Fatalf("unexpected gmail endpoints: %q %q", f.AuthURL, f.TokenURL)
	}
	if !reflect.DeepEqual(f.Scopes, []string{"https://mail.google.com/"}) {
		t.Fatalf("unexpected gmail scopes: %v", f.Scopes)
	}
	if !reflect.DeepEqual(f.ExtraParams, []Param{{"access_type", "offline"}, {"prompt", "consent"}}) {
		t.Fatalf("unexpected gmail extras: %v", f.ExtraParams)
	}

	// Non-destructive: user-set fields are kept.
	f = Form{AuthURL: "https://example.com/auth"}
	f.Preset("outlook")
	if f.AuthURL != "https://example.com/auth" {
		t.Fatalf("preset overwrote user value: %q", f.AuthURL)
	}
	if f.TokenURL != "https://login.microsoftonline.com/consumers/oauth2/v2.0/token" {
		t.Fatalf("unexpected outlook token url: %q", f.TokenURL)
	}

	if f.Preset("yandex") {
		t.Fatalf("unknown provider accepted")
	}
}

func TestDanglingProxies(t *testing.T) {
	id := func(v int64) *int64 { return &v }
	entities := []Entity{
		{ID: 1, UseProxy: id(10)},
		{ID: 2, UseProxy: id(11)},
		{ID: 3, UseProxy: id(10)},
		{ID: 4},
	}
	got := DanglingProxies(entities, map[int64]bool{11: true})
	if !reflect.DeepEqual(got, []int64{10}) {
		t.Fatalf("got %v, expected [10]", got)
	}
}
